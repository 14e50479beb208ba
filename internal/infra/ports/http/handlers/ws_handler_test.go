package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/PeerCall/internal/application/config"
	"github.com/qrave1/PeerCall/internal/domain/backgammon"
	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/domain/models"
	"github.com/qrave1/PeerCall/internal/infra/adapters/memory"
	"github.com/qrave1/PeerCall/internal/infra/adapters/wsclient"
	"github.com/qrave1/PeerCall/internal/infra/ports/http/middleware"
	"github.com/qrave1/PeerCall/internal/signaling"
	"github.com/qrave1/PeerCall/internal/usecase"
)

const testSecret = "ws-test-secret"

type wsServer struct {
	url     string
	wsRepo  memory.WebsocketConnectionRepository
	calls   memory.CallRegistry
	callLog *memCallLogRepo
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()

	cfg := &config.Config{JWTSecret: testSecret}

	s := &wsServer{
		wsRepo:  memory.NewWSConnectionRepository(),
		calls:   memory.NewCallRegistry(),
		callLog: &memCallLogRepo{},
	}

	presence := memory.NewPresenceRepository()

	h := NewWebSocketHandler(
		cfg,
		s.wsRepo,
		usecase.NewSignalingUsecase(s.wsRepo, presence, s.calls),
		usecase.NewCallLogUsecase(s.callLog),
		usecase.NewGameUsecase(memory.NewGameRoomRepository(backgammon.DefaultRoller), s.wsRepo),
	)

	e := echo.New()
	e.GET("/ws", h.Handle, middleware.JWTAuthMiddleware(testSecret))

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	s.url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return s
}

// dial подключает пользователя с cookie и ждет регистрации соединения на сервере
func (s *wsServer) dial(t *testing.T, userID uuid.UUID) *wsclient.Client {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Cookie", middleware.CookieName+"="+token)

	client, err := wsclient.Dial(context.Background(), wsclient.Config{URL: s.url, Header: header})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.Eventually(t, func() bool { return s.wsRepo.IsConnected(userID) }, 2*time.Second, 10*time.Millisecond)

	return client
}

func receive(client *wsclient.Client, event string) <-chan signaling.Inbound {
	ch := make(chan signaling.Inbound, 8)
	client.On(event, func(in signaling.Inbound) { ch <- in })

	return ch
}

func waitInbound(t *testing.T, ch <-chan signaling.Inbound) signaling.Inbound {
	t.Helper()

	select {
	case in := <-ch:
		return in
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
		return signaling.Inbound{}
	}
}

func TestWebSocketRejectsWithoutCookie(t *testing.T) {
	s := newWSServer(t)

	_, err := wsclient.Dial(context.Background(), wsclient.Config{URL: s.url})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestWebSocketRelaysCallFlow(t *testing.T) {
	s := newWSServer(t)
	ctx := context.Background()

	alice, bob := uuid.New(), uuid.New()
	aliceConn := s.dial(t, alice)
	bobConn := s.dial(t, bob)

	requests := receive(bobConn, events.CallRequest)
	accepted := receive(aliceConn, events.CallAccepted)
	ended := receive(bobConn, events.CallEnded)

	require.NoError(t, aliceConn.Send(ctx, events.CallRequest, events.CallRequestEvent{CallType: "video"}, bob.String()))

	in := waitInbound(t, requests)
	assert.Equal(t, alice.String(), in.From)

	var req events.CallRequestEvent
	require.NoError(t, in.Decode(&req))
	assert.Equal(t, "video", req.CallType)

	require.NoError(t, bobConn.Send(ctx, events.CallAccepted, events.CallAcceptedEvent{}, alice.String()))
	assert.Equal(t, bob.String(), waitInbound(t, accepted).From)

	peer, ok := s.calls.Peer(alice)
	require.True(t, ok)
	assert.Equal(t, bob, peer)

	require.NoError(t, aliceConn.Send(ctx, events.EndCall, events.EndCallEvent{CallState: "connected"}, bob.String()))
	assert.Equal(t, alice.String(), waitInbound(t, ended).From)

	require.NoError(t, aliceConn.Send(ctx, events.CallEndedLog, events.CallEndedLogEvent{
		ReceiverID: bob.String(),
		CallType:   models.CallTypeVideo,
		Duration:   12,
		CallStatus: models.CallStatusCompleted,
	}, bob.String()))

	require.Eventually(t, func() bool { return len(s.callLog.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	log := s.callLog.snapshot()[0]
	assert.Equal(t, alice, log.OwnerID)
	assert.Equal(t, bob, log.PeerID)
	assert.Equal(t, 12, log.Duration)
	assert.Zero(t, s.calls.Count())
}

func TestWebSocketErrorsAndDisconnect(t *testing.T) {
	s := newWSServer(t)
	ctx := context.Background()

	alice, bob := uuid.New(), uuid.New()
	aliceConn := s.dial(t, alice)
	bobConn := s.dial(t, bob)

	errs := receive(aliceConn, events.Error)
	ended := receive(bobConn, events.CallEnded)

	require.NoError(t, aliceConn.Send(ctx, "teleport", nil, bob.String()))

	var evt events.ErrorEvent
	require.NoError(t, waitInbound(t, errs).Decode(&evt))
	assert.Contains(t, evt.Message, "unknown event")

	require.NoError(t, aliceConn.Send(ctx, events.CallRequest, events.CallRequestEvent{CallType: "voice"}, bob.String()))
	require.Eventually(t, func() bool { return s.calls.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, aliceConn.Close())

	assert.Equal(t, alice.String(), waitInbound(t, ended).From)
	require.Eventually(t, func() bool { return !s.wsRepo.IsConnected(alice) }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, s.calls.Count())
}
