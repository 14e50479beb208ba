package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/webrtc/v4"
	"github.com/sethvargo/go-retry"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/signaling"
)

const eventBufferSize = 64

var errNotInitialized = errors.New("peer connection not initialized")

// Options - тайминги сессии
type Options struct {
	RingTimeout      time.Duration
	InitTimeout      time.Duration
	InitPollInterval time.Duration
	FatalDelay       time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.RingTimeout <= 0 {
		o.RingTimeout = 30 * time.Second
	}
	if o.InitTimeout <= 0 {
		o.InitTimeout = 5 * time.Second
	}
	if o.InitPollInterval <= 0 {
		o.InitPollInterval = 100 * time.Millisecond
	}
	if o.FatalDelay <= 0 {
		o.FatalDelay = 3 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return o
}

// Hooks - уведомления для интерфейса. Вызываются из цикла сессии, блокировать нельзя.
type Hooks struct {
	OnState      func(*Session, State)
	OnTick       func(*Session, time.Duration)
	OnNotice     func(*Session, error)
	OnWhiteboard func(*Session, bool)
	OnEnded      func(*Session, Log)
}

type sessionConfig struct {
	localID   string
	remoteID  string
	kind      MediaKind
	role      Role
	transport signaling.Transport
	media     *MediaController
	logSink   LogSink
	hooks     Hooks
	opts      Options
}

// Session - один звонок. Все изменения состояния выполняются в одной горутине (run),
// внешние события (транспорт, колбэки pion, таймеры, действия пользователя) ставятся в очередь events.
type Session struct {
	id       string
	localID  string
	remoteID string
	kind     MediaKind
	role     Role

	opts      Options
	clock     clock.Clock
	log       *slog.Logger
	transport signaling.Transport
	media     *MediaController
	neg       *Negotiator
	life      *Lifecycle
	logSink   LogSink
	hooks     Hooks

	ctx    context.Context
	cancel context.CancelFunc
	events chan func()
	done   chan struct{}
	ready  chan struct{}

	subs           signaling.Subscriptions
	ringTimer      *clock.Timer
	initStarted    bool
	accepted       bool
	fatalPending   bool
	remoteNotified bool
	result         Log
}

func newSession(cfg sessionConfig) *Session {
	opts := cfg.opts.withDefaults()
	id := SessionID(cfg.localID, cfg.remoteID)

	log := opts.Logger.With(
		slog.String(constant.SessionID, id),
		slog.String(constant.PeerID, cfg.remoteID),
		slog.String(constant.Role, cfg.role.String()),
	)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:        id,
		localID:   cfg.localID,
		remoteID:  cfg.remoteID,
		kind:      cfg.kind,
		role:      cfg.role,
		opts:      opts,
		clock:     opts.Clock,
		log:       log,
		transport: cfg.transport,
		media:     cfg.media,
		life:      NewLifecycle(cfg.role, opts.Clock),
		logSink:   cfg.logSink,
		hooks:     cfg.hooks,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan func(), eventBufferSize),
		done:      make(chan struct{}),
		ready:     make(chan struct{}),
	}

	s.neg = NewNegotiator(cfg.role, cfg.kind, s.signal, log)

	return s
}

func (s *Session) ID() string              { return s.id }
func (s *Session) RemoteID() string        { return s.remoteID }
func (s *Session) Kind() MediaKind         { return s.kind }
func (s *Session) Role() Role              { return s.role }
func (s *Session) Done() <-chan struct{}   { return s.done }
func (s *Session) Media() *MediaController { return s.media }

// State - текущее состояние жизненного цикла
func (s *Session) live() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Session) State() State {
	state := StateEnded
	s.do(func() { state = s.life.State() })

	return state
}

// NegotiationState - текущее состояние сигналинга
func (s *Session) NegotiationState() NegotiationState {
	var state NegotiationState
	if !s.do(func() { state = s.neg.State() }) {
		return ""
	}

	return state
}

// Result - запись журнала, доступна после завершения
func (s *Session) Result() (Log, bool) {
	select {
	case <-s.done:
		return s.result, true
	default:
		return Log{}, false
	}
}

// start подписывается на события собеседника и запускает цикл
func (s *Session) start() {
	s.subscribe()

	go s.run()

	s.post(func() {
		s.ringTimer = s.clock.AfterFunc(s.opts.RingTimeout, func() {
			s.post(func() {
				if s.life.State() == StateRinging {
					s.log.Info("ring timeout")
					s.end(ReasonRingTimeout)
				}
			})
		})

		if s.role == Initiator {
			if err := s.signal(events.CallRequest, events.CallRequestEvent{CallType: string(s.kind)}); err != nil {
				s.fatal(fmt.Errorf("send call request: %w", err), ReasonHangup)
				return
			}

			s.startInit()
		}

		s.emitState()
	})
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.events:
			fn()

			if s.life.Ended() {
				return
			}
		case <-s.done:
			return
		}
	}
}

// post ставит событие в очередь цикла, false если сессия уже завершена
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// do выполняет fn в цикле и ждет завершения
func (s *Session) do(fn func()) bool {
	ran := make(chan struct{})

	if !s.post(func() {
		fn()
		close(ran)
	}) {
		return false
	}

	select {
	case <-ran:
		return true
	case <-s.done:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

func (s *Session) subscribe() {
	fromPeer := func(h func(signaling.Inbound)) signaling.Handler {
		return func(in signaling.Inbound) {
			if in.From != s.remoteID {
				return
			}

			s.post(func() { h(in) })
		}
	}

	if s.role == Initiator {
		s.subs.On(s.transport, events.CallAccepted, fromPeer(func(signaling.Inbound) { s.onAccepted() }))
		s.subs.On(s.transport, events.CallRejected, fromPeer(s.onRejected))
		s.subs.On(s.transport, events.CallAnswer, fromPeer(s.onAnswer))
	} else {
		s.subs.On(s.transport, events.CallOffer, fromPeer(s.onOffer))
	}

	s.subs.On(s.transport, events.IceCandidate, fromPeer(s.onCandidate))
	s.subs.On(s.transport, events.CallEnded, fromPeer(func(signaling.Inbound) { s.end(ReasonRemoteHangup) }))
	s.subs.On(s.transport, events.WhiteboardToggle, fromPeer(s.onWhiteboard))

	// user-logged-out рассылается всем, поэтому фильтруем по userId в payload
	s.subs.On(s.transport, events.UserLoggedOut, func(in signaling.Inbound) {
		var evt events.UserLoggedOutEvent
		if err := in.Decode(&evt); err != nil || evt.UserID != s.remoteID {
			return
		}

		s.post(func() {
			s.notice(fmt.Errorf("%s logged out: %s", evt.UserID, evt.Reason))
			s.end(ReasonRemoteLogout)
		})
	})
}

// Accept - получатель принимает входящий звонок
func (s *Session) Accept() error {
	var err error

	ok := s.do(func() {
		switch {
		case s.role != Receiver:
			err = fmt.Errorf("%w: accept by %s", ErrWrongRole, s.role)
			return
		case s.accepted:
			return
		}

		s.accepted = true
		s.stopRingTimer()
		s.startInit()

		if sendErr := s.signal(events.CallAccepted, events.CallAcceptedEvent{}); sendErr != nil {
			err = fmt.Errorf("send call accepted: %w", sendErr)
		}
	})
	if !ok {
		return ErrSessionEnded
	}

	return err
}

// Reject - получатель отклоняет звонок
func (s *Session) Reject(reason string) error {
	var err error

	ok := s.do(func() {
		if s.role != Receiver {
			err = fmt.Errorf("%w: reject by %s", ErrWrongRole, s.role)
			return
		}

		if sendErr := s.signal(events.CallRejected, events.CallRejectedEvent{Reason: reason}); sendErr != nil {
			s.log.Warn("send call rejected", slog.Any(constant.Error, sendErr))
		}

		s.remoteNotified = true
		s.end(ReasonHangup)
	})
	if !ok {
		return ErrSessionEnded
	}

	return err
}

// Hangup завершает звонок локально. Безопасен в любом состоянии и повторно.
func (s *Session) Hangup() {
	s.do(func() { s.end(ReasonHangup) })
}

func (s *Session) ToggleMute() (bool, error) {
	return s.media.ToggleMute()
}

func (s *Session) ToggleCamera() (bool, error) {
	return s.media.ToggleCamera()
}

// StartScreenShare - ошибки не завершают звонок, только показываются пользователю
func (s *Session) StartScreenShare(ctx context.Context) error {
	err := s.media.StartScreenShare(ctx)
	if err != nil && !errors.Is(err, ErrSessionEnded) {
		s.post(func() { s.notice(err) })
	}

	return err
}

func (s *Session) StopScreenShare(ctx context.Context) error {
	err := s.media.StopScreenShare(ctx)
	if err != nil && !errors.Is(err, ErrSessionEnded) {
		s.post(func() { s.notice(err) })
	}

	return err
}

// ToggleWhiteboard сообщает собеседнику об открытии/закрытии доски
func (s *Session) ToggleWhiteboard(ctx context.Context, open bool) error {
	return s.transport.Send(ctx, events.WhiteboardToggle, events.WhiteboardToggleEvent{IsOpen: open}, s.remoteID)
}

// startInit - первая фаза: захват устройств вне цикла, результат возвращается в цикл
func (s *Session) startInit() {
	if s.initStarted {
		return
	}
	s.initStarted = true

	hooks := MediaHooks{
		OnRemoteTrack: func() {
			s.post(s.markConnected)
		},
		OnICECandidate: func(c webrtc.ICECandidateInit) {
			s.post(func() { s.sendCandidate(c) })
		},
		OnConnectionState: func(state webrtc.PeerConnectionState) {
			s.post(func() { s.onConnectionState(state) })
		},
		OnCaptureEnded: func() {
			go func() { _ = s.StopScreenShare(s.ctx) }()
		},
	}

	go func() {
		pc, err := s.media.Initialize(s.ctx, s.kind, hooks)
		if !s.post(func() { s.onInitialized(pc, err) }) {
			s.media.Release()
		}
	}()
}

// onInitialized - вторая фаза: отложенный offer и очередь кандидатов обрабатываются сразу
func (s *Session) onInitialized(pc PeerConnection, err error) {
	if err != nil {
		if errors.Is(err, ErrSessionEnded) {
			return
		}

		s.fatal(err, ReasonMediaFailure)
		return
	}

	err = s.neg.Initialize(pc)
	close(s.ready)

	if err != nil && !errors.Is(err, ErrDuplicateOffer) {
		s.notice(err)
	}

	if s.role == Receiver && s.neg.Context().HasLocalDescription() {
		s.markConnecting()
	}
}

func (s *Session) initialized() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

func (s *Session) onAccepted() {
	if s.life.State() != StateRinging {
		return
	}

	s.stopRingTimer()
	s.markConnecting()

	if s.initialized() {
		s.sendOffer()
		return
	}

	go s.awaitInit()
}

// awaitInit - ограниченный опрос готовности соединения перед отправкой offer
func (s *Session) awaitInit() {
	backoff := retry.WithMaxDuration(s.opts.InitTimeout, retry.NewConstant(s.opts.InitPollInterval))

	err := retry.Do(s.ctx, backoff, func(context.Context) error {
		if !s.initialized() {
			return retry.RetryableError(errNotInitialized)
		}

		return nil
	})

	switch {
	case err == nil:
		s.post(s.sendOffer)
	case errors.Is(err, errNotInitialized):
		s.post(func() {
			s.fatal(fmt.Errorf("%w: waited %s", ErrNegotiationTimeout, s.opts.InitTimeout), ReasonNegotiationTimeout)
		})
	}
}

func (s *Session) sendOffer() {
	if err := s.neg.SendOffer(); err != nil {
		s.notice(err)
	}
}

func (s *Session) onRejected(in signaling.Inbound) {
	var evt events.CallRejectedEvent
	_ = in.Decode(&evt)

	s.log.Info("call rejected", slog.String("reason", evt.Reason))
	s.end(ReasonRejected)
}

func (s *Session) onOffer(in signaling.Inbound) {
	var evt events.CallOfferEvent
	if err := in.Decode(&evt); err != nil {
		s.notice(fmt.Errorf("%w: %v", ErrNegotiation, err))
		return
	}

	err := s.neg.HandleOffer(evt.Offer)
	switch {
	case errors.Is(err, ErrDuplicateOffer):
		s.log.Debug("duplicate offer ignored")
		return
	case err != nil:
		s.notice(err)
		return
	}

	if s.neg.Context().HasLocalDescription() {
		s.markConnecting()
	}
}

func (s *Session) onAnswer(in signaling.Inbound) {
	var evt events.CallAnswerEvent
	if err := in.Decode(&evt); err != nil {
		s.notice(fmt.Errorf("%w: %v", ErrNegotiation, err))
		return
	}

	if err := s.neg.HandleAnswer(evt.Answer); err != nil {
		s.notice(err)
	}
}

func (s *Session) onCandidate(in signaling.Inbound) {
	var evt events.IceCandidateEvent
	if err := in.Decode(&evt); err != nil {
		s.log.Warn("decode ice candidate", slog.Any(constant.Error, err))
		return
	}

	if err := s.neg.HandleCandidate(evt.Candidate); err != nil {
		s.log.Warn("handle ice candidate", slog.Any(constant.Error, err))
	}
}

func (s *Session) onWhiteboard(in signaling.Inbound) {
	var evt events.WhiteboardToggleEvent
	if err := in.Decode(&evt); err != nil {
		return
	}

	if s.hooks.OnWhiteboard != nil {
		s.hooks.OnWhiteboard(s, evt.IsOpen)
	}
}

func (s *Session) sendCandidate(c webrtc.ICECandidateInit) {
	if err := s.signal(events.IceCandidate, events.IceCandidateEvent{Candidate: c}); err != nil {
		s.log.Warn("send ice candidate", slog.Any(constant.Error, err))
	}
}

func (s *Session) onConnectionState(state webrtc.PeerConnectionState) {
	s.log.Info("peer connection state", slog.String(constant.State, state.String()))

	switch state {
	case webrtc.PeerConnectionStateConnected:
		s.markConnected()
	case webrtc.PeerConnectionStateFailed:
		s.fatal(errors.New("peer connection failed"), ReasonConnectionFailed)
	case webrtc.PeerConnectionStateDisconnected:
		// может восстановиться сам, ICE restart не делаем
		s.log.Warn("peer connection disconnected")
	}
}

func (s *Session) markConnecting() {
	if s.life.MarkConnecting() {
		s.emitState()
	}
}

func (s *Session) markConnected() {
	if !s.life.MarkConnected() {
		return
	}

	s.stopRingTimer()
	s.emitState()

	ticker := s.clock.Ticker(time.Second)
	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.post(s.tick)
			case <-s.done:
				return
			}
		}
	}()
}

func (s *Session) tick() {
	if s.hooks.OnTick != nil && s.life.State() == StateConnected {
		s.hooks.OnTick(s, s.life.Elapsed())
	}
}

// fatal показывает ошибку и завершает сессию с задержкой, чтобы сообщение успели прочитать
func (s *Session) fatal(err error, reason EndReason) {
	s.log.Error("fatal call error", slog.Any(constant.Error, err))
	s.notice(err)

	if s.fatalPending {
		return
	}
	s.fatalPending = true

	s.clock.AfterFunc(s.opts.FatalDelay, func() {
		s.post(func() { s.end(reason) })
	})
}

// end - единственный переход в ended: уведомление собеседника, освобождение ресурсов, одна запись журнала
func (s *Session) end(reason EndReason) {
	prev, status, ok := s.life.End(reason)
	if !ok {
		return
	}

	s.stopRingTimer()

	if !reason.Remote() && !s.remoteNotified {
		s.remoteNotified = true

		if err := s.signal(events.EndCall, events.EndCallEvent{CallState: string(prev)}); err != nil {
			s.log.Warn("notify remote about call end", slog.Any(constant.Error, err))
		}
	}

	s.subs.Cancel()
	s.media.Release()
	s.cancel()

	var duration time.Duration
	if status == StatusCompleted {
		duration = s.life.Elapsed()
	}

	receiverID := s.remoteID
	if s.role == Receiver {
		receiverID = s.localID
	}

	s.result = Log{
		SessionID:  s.id,
		PeerID:     s.remoteID,
		ReceiverID: receiverID,
		Role:       s.role,
		CallType:   s.kind,
		Status:     status,
		Reason:     reason,
		Duration:   duration,
		StartedAt:  s.life.StartedAt(),
		EndedAt:    s.clock.Now(),
	}

	s.log.Info(
		"call ended",
		slog.String(constant.Status, string(status)),
		slog.String("reason", reason.String()),
		slog.Duration(constant.Duration, duration),
	)

	if s.logSink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.logSink.Record(ctx, s.result); err != nil {
			s.log.Warn("record call log", slog.Any(constant.Error, err))
		}
		cancel()
	}

	s.emitState()

	if s.hooks.OnEnded != nil {
		s.hooks.OnEnded(s, s.result)
	}

	close(s.done)
}

func (s *Session) stopRingTimer() {
	if s.ringTimer != nil {
		s.ringTimer.Stop()
		s.ringTimer = nil
	}
}

func (s *Session) signal(event string, payload any) error {
	return s.transport.Send(s.ctx, event, payload, s.remoteID)
}

func (s *Session) emitState() {
	if s.hooks.OnState != nil {
		s.hooks.OnState(s, s.life.State())
	}
}

func (s *Session) notice(err error) {
	s.log.Warn("call notice", slog.Any(constant.Error, err))

	if s.hooks.OnNotice != nil {
		s.hooks.OnNotice(s, err)
	}
}
