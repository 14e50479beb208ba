package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/PeerCall/internal/application/config"
	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/infra/adapters/memory"
	"github.com/qrave1/PeerCall/internal/infra/appctx"
	"github.com/qrave1/PeerCall/internal/usecase"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
)

type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	wsRepo memory.WebsocketConnectionRepository

	signalingUsecase usecase.SignalingUsecase
	callLogUsecase   usecase.CallLogUsecase
	gameUsecase      usecase.GameUsecase
}

func NewWebSocketHandler(
	cfg *config.Config,
	wsRepo memory.WebsocketConnectionRepository,
	signalingUsecase usecase.SignalingUsecase,
	callLogUsecase usecase.CallLogUsecase,
	gameUsecase usecase.GameUsecase,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				origin := r.Header.Get("Origin")

				// Консольный агент не присылает Origin
				return origin == "" || origin == cfg.Domain
			},
		},
		wsRepo:           wsRepo,
		signalingUsecase: signalingUsecase,
		callLogUsecase:   callLogUsecase,
		gameUsecase:      gameUsecase,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := appctx.UserID(ctx)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}
	defer ws.Close()

	h.wsRepo.Add(userID, ws)
	h.signalingUsecase.HandleConnect(ctx, userID)

	defer func() {
		// Соединение могли уже заменить новым, тогда пользователь остается онлайн
		if h.wsRepo.Remove(userID, ws) {
			h.signalingUsecase.HandleDisconnect(context.WithoutCancel(ctx), userID)
			h.gameUsecase.HandleDisconnect(context.WithoutCancel(ctx), userID)
		}
	}()

	ws.SetReadLimit(maxMessageSize)

	if err = ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				// WriteControl можно вызывать параллельно с WriteJSON
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					slog.Warn("ping failed", slog.Any(constant.UserID, userID), slog.Any(constant.Error, err))
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("webSocket read error", slog.Any(constant.UserID, userID), slog.Any(constant.Error, err))
			}

			return nil
		}

		var msg events.Message

		if err = json.Unmarshal(raw, &msg); err != nil {
			h.signalingUsecase.SendError(userID, "malformed message")
			continue
		}

		if err = h.handleMessage(ctx, userID, &msg); err != nil {
			h.handleWebsocketError(userID, &msg, err)
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, userID uuid.UUID, msg *events.Message) error {
	switch {
	case msg.Type == events.Ping:
		h.signalingUsecase.HandlePing(ctx, userID)
		return nil

	case msg.Type == events.CallEndedLog:
		peerID, err := uuid.Parse(msg.To)
		if err != nil {
			return fmt.Errorf("%w: call-ended-log needs the peer in to", usecase.ErrBadRequest)
		}

		var evt events.CallEndedLogEvent
		if err = msg.Decode(&evt); err != nil {
			return fmt.Errorf("%w: %v", usecase.ErrBadRequest, err)
		}

		_, err = h.callLogUsecase.Record(ctx, userID, peerID, evt)
		return err

	case strings.HasPrefix(msg.Type, "game-"):
		return h.gameUsecase.HandleMessage(ctx, userID, msg)

	default:
		return h.signalingUsecase.HandleMessage(ctx, userID, msg)
	}
}

// handleWebsocketError - ошибки клиента уходят ему событием error, остальные только в лог
func (h *WebSocketHandler) handleWebsocketError(userID uuid.UUID, msg *events.Message, err error) {
	if errors.Is(err, usecase.ErrBadRequest) || errors.Is(err, usecase.ErrNotFound) {
		slog.Debug(
			"rejected websocket message",
			slog.String(constant.Event, msg.Type),
			slog.Any(constant.UserID, userID),
			slog.Any(constant.Error, err),
		)

		h.signalingUsecase.SendError(userID, err.Error())
		return
	}

	slog.Error(
		"handle websocket message",
		slog.String(constant.Event, msg.Type),
		slog.Any(constant.UserID, userID),
		slog.Any(constant.Error, err),
	)
}
