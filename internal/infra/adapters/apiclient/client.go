// Package apiclient - HTTP клиент REST API сервера для консольного агента.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New создает клиента с cookie jar, JWT cookie после Login переиспользуется websocket соединением
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Me struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Login получает JWT cookie, при register=true сначала регистрирует пользователя
func (c *Client) Login(ctx context.Context, username, password string, register bool) (*Me, error) {
	body := credentials{Username: username, Password: password}

	if register {
		status, err := c.do(ctx, http.MethodPost, "/api/auth/register", body, nil)
		if err != nil && status != http.StatusConflict {
			return nil, fmt.Errorf("register: %w", err)
		}
	}

	var me Me
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &me); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return &me, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/logout", nil, nil)
	return err
}

func (c *Client) ICEServers(ctx context.Context) ([]webrtc.ICEServer, error) {
	var servers []webrtc.ICEServer

	if _, err := c.do(ctx, http.MethodGet, "/api/v1/ice", nil, &servers); err != nil {
		return nil, fmt.Errorf("get ice servers: %w", err)
	}

	return servers, nil
}

func (c *Client) OnlineUsers(ctx context.Context) ([]Me, error) {
	var users []Me

	if _, err := c.do(ctx, http.MethodGet, "/api/v1/users/online", nil, &users); err != nil {
		return nil, fmt.Errorf("get online users: %w", err)
	}

	return users, nil
}

// do выполняет запрос с JSON телом и разбирает JSON ответ в out, если он не nil
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader

	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, err
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)

		return resp.StatusCode, fmt.Errorf("%s %s: status %s: %s", method, path, resp.Status, apiErr.Error)
	}

	if out == nil {
		return resp.StatusCode, nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
	}

	return resp.StatusCode, nil
}
