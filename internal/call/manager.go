package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/signaling"
)

// RejectBusy - причина отказа, когда уже идет другой звонок
const RejectBusy = "busy"

type ManagerConfig struct {
	LocalID   string
	Transport signaling.Transport
	// NewMedia создает отдельный контроллер на каждую сессию
	NewMedia func() *MediaController
	LogSink  LogSink
	Hooks    Hooks
	Options  Options
	// OnIncoming получает сессию получателя в состоянии ringing
	OnIncoming func(*Session)
}

// Manager держит не больше одной активной сессии на клиента
type Manager struct {
	cfg ManagerConfig
	log *slog.Logger

	mu      sync.Mutex
	current *Session
	subs    signaling.Subscriptions
}

func NewManager(cfg ManagerConfig) *Manager {
	cfg.Options = cfg.Options.withDefaults()

	return &Manager{
		cfg: cfg,
		log: cfg.Options.Logger,
	}
}

// Start подписывается на входящие приглашения
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs.On(m.cfg.Transport, events.CallRequest, m.onRequest)
}

// Stop отписывается и завершает текущий звонок
func (m *Manager) Stop() {
	m.mu.Lock()
	m.subs.Cancel()
	current := m.current
	m.mu.Unlock()

	if current != nil {
		current.Hangup()
	}
}

func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current
}

// Call начинает исходящий звонок
func (m *Manager) Call(ctx context.Context, remoteID string, kind MediaKind) (*Session, error) {
	if remoteID == "" || remoteID == m.cfg.LocalID {
		return nil, fmt.Errorf("invalid remote peer %q", remoteID)
	}

	s, err := m.open(remoteID, kind, Initiator)
	if err != nil {
		return nil, err
	}

	s.start()

	return s, nil
}

func (m *Manager) onRequest(in signaling.Inbound) {
	var evt events.CallRequestEvent
	if err := in.Decode(&evt); err != nil {
		m.log.Warn("decode call request", slog.Any(constant.Error, err))
		return
	}

	kind, ok := ParseMediaKind(evt.CallType)
	if !ok {
		m.log.Warn("unknown call type", slog.String(constant.CallType, evt.CallType))
		return
	}

	// повторная доставка приглашения от собеседника текущего звонка
	if cur := m.Current(); cur != nil && cur.RemoteID() == in.From && cur.live() {
		m.log.Debug("duplicate call request", slog.String(constant.PeerID, in.From))
		return
	}

	s, err := m.open(in.From, kind, Receiver)
	if err != nil {
		m.log.Info("incoming call while busy", slog.String(constant.PeerID, in.From))

		payload := events.CallRejectedEvent{Reason: RejectBusy}
		if err = m.cfg.Transport.Send(context.Background(), events.CallRejected, payload, in.From); err != nil {
			m.log.Warn("send busy rejection", slog.Any(constant.Error, err))
		}

		return
	}

	s.start()

	if m.cfg.OnIncoming != nil {
		m.cfg.OnIncoming(s)
	}
}

func (m *Manager) open(remoteID string, kind MediaKind, role Role) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.live() {
		return nil, ErrBusy
	}

	s := newSession(sessionConfig{
		localID:   m.cfg.LocalID,
		remoteID:  remoteID,
		kind:      kind,
		role:      role,
		transport: m.cfg.Transport,
		media:     m.cfg.NewMedia(),
		logSink:   m.cfg.LogSink,
		hooks:     m.cfg.Hooks,
		opts:      m.cfg.Options,
	})

	m.current = s

	go func() {
		<-s.Done()

		m.mu.Lock()
		if m.current == s {
			m.current = nil
		}
		m.mu.Unlock()
	}()

	return s, nil
}
