// Package wsclient реализует signaling.Transport поверх websocket соединения с сервером.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 64 * 1024
)

var ErrClosed = errors.New("websocket client closed")

type Config struct {
	URL    string
	Jar    http.CookieJar
	Header http.Header
	Logger *slog.Logger
}

type Client struct {
	conn     *websocket.Conn
	registry *signaling.Registry
	log      *slog.Logger

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

var _ signaling.Transport = (*Client)(nil)

// Dial подключается к серверу и запускает чтение. Закрытие соединения видно через Done.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Jar:              cfg.Jar,
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", cfg.URL, err, resp.Status)
		}

		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	c := &Client{
		conn:     conn,
		registry: signaling.NewRegistry(),
		log:      cfg.Logger,
		done:     make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *Client) Send(ctx context.Context, event string, payload any, to string) error {
	select {
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg, err := events.NewMessage(event, payload)
	if err != nil {
		return err
	}
	msg.To = to

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err = c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	if err = c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}

	return nil
}

func (c *Client) On(event string, h signaling.Handler) func() {
	return c.registry.On(event, h)
}

// Done закрывается, когда соединение разорвано
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err - причина разрыва, nil при штатном Close
func (c *Client) Err() error {
	<-c.done
	return c.err
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	c.writeMu.Unlock()

	c.shutdown(nil)

	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		c.conn.Close()
		close(c.done)
	})
}

func (c *Client) readLoop() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}

			select {
			case <-c.done:
			default:
				if err != nil {
					c.log.Warn("websocket read", slog.Any(constant.Error, err))
				}
			}

			c.shutdown(err)
			return
		}

		var msg events.Message

		if err = json.Unmarshal(raw, &msg); err != nil {
			c.log.Warn("unmarshal websocket message", slog.Any(constant.Error, err))
			continue
		}

		if msg.Type == events.Error {
			var evt events.ErrorEvent
			_ = msg.Decode(&evt)
			c.log.Warn("server error", slog.String(constant.Error, evt.Message))
		}

		n := c.registry.Dispatch(msg.Type, signaling.Inbound{From: msg.From, Data: msg.Data})
		if n == 0 {
			c.log.Debug("unhandled event", slog.String(constant.Event, msg.Type))
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.shutdown(fmt.Errorf("ping: %w", err))
				return
			}
		case <-c.done:
			return
		}
	}
}
