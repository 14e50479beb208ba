package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/application/metric"
)

const writeWait = 10 * time.Second

var ErrNotConnected = errors.New("user not connected")

// WebsocketConnectionRepository интерфейс для работы с активными сессиями в памяти
type WebsocketConnectionRepository interface {
	Add(userID uuid.UUID, conn *websocket.Conn)
	// Remove удаляет соединение, только если оно все еще текущее для пользователя
	Remove(userID uuid.UUID, conn *websocket.Conn) bool

	Write(userID uuid.UUID, payload any) error
	Broadcast(payload any, except uuid.UUID)

	IsConnected(userID uuid.UUID) bool
	GetAllConnected() []uuid.UUID
}

type safeWS struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *safeWS) writeJSON(payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return s.conn.WriteJSON(payload)
}

type wsConnectionRepository struct {
	// wsConns хранит map[user_id]*ws.conn
	wsConns map[uuid.UUID]*safeWS

	mu sync.RWMutex
}

func NewWSConnectionRepository() WebsocketConnectionRepository {
	return &wsConnectionRepository{
		wsConns: make(map[uuid.UUID]*safeWS, 10),
	}
}

// Add заменяет прежнее соединение пользователя, старое закрывается
func (w *wsConnectionRepository) Add(userID uuid.UUID, conn *websocket.Conn) {
	w.mu.Lock()
	old, ok := w.wsConns[userID]
	w.wsConns[userID] = &safeWS{conn: conn}
	w.mu.Unlock()

	if ok {
		slog.Info("replace websocket connection", slog.Any(constant.UserID, userID))
		old.conn.Close()
		return
	}

	metric.IncrementWSActiveConnections()
}

func (w *wsConnectionRepository) Remove(userID uuid.UUID, conn *websocket.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	current, ok := w.wsConns[userID]
	if !ok || current.conn != conn {
		return false
	}

	delete(w.wsConns, userID)
	metric.DecrementWSActiveConnections()

	return true
}

func (w *wsConnectionRepository) Write(userID uuid.UUID, payload any) error {
	safews, ok := w.getSafeWS(userID)
	if !ok {
		return ErrNotConnected
	}

	if err := safews.writeJSON(payload); err != nil {
		return fmt.Errorf("write to websocket: %w", err)
	}

	return nil
}

func (w *wsConnectionRepository) Broadcast(payload any, except uuid.UUID) {
	for _, userID := range w.GetAllConnected() {
		if userID == except {
			continue
		}

		if err := w.Write(userID, payload); err != nil {
			slog.Error(
				"broadcast to websocket",
				slog.Any(constant.UserID, userID),
				slog.Any(constant.Error, err),
			)
		}
	}
}

func (w *wsConnectionRepository) IsConnected(userID uuid.UUID) bool {
	_, ok := w.getSafeWS(userID)
	return ok
}

func (w *wsConnectionRepository) GetAllConnected() []uuid.UUID {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(w.wsConns))
	for id := range w.wsConns {
		ids = append(ids, id)
	}

	return ids
}

func (w *wsConnectionRepository) getSafeWS(userID uuid.UUID) (*safeWS, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	conn, ok := w.wsConns[userID]
	return conn, ok
}
