package call

import (
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/domain/events"
)

// MaxPendingCandidates - емкость очереди кандидатов до появления remote description
const MaxPendingCandidates = 50

// NegotiationState - прогресс обмена offer/answer
type NegotiationState string

const (
	NegotiationUninitialized NegotiationState = "uninitialized"
	NegotiationInitialized   NegotiationState = "initialized"
	NegotiationOfferSent     NegotiationState = "offer-sent"
	NegotiationOfferReceived NegotiationState = "offer-received"
	NegotiationAnswered      NegotiationState = "answered"
	NegotiationStable        NegotiationState = "stable"
)

// NegotiationContext - учет сигналинга одной сессии
type NegotiationContext struct {
	initialized          bool
	hasRemoteDescription bool
	hasLocalDescription  bool
	processingOffer      bool

	pendingOffer      *webrtc.SessionDescription
	pendingCandidates []webrtc.ICECandidateInit
	dropped           int
}

func (n *NegotiationContext) Initialized() bool          { return n.initialized }
func (n *NegotiationContext) HasRemoteDescription() bool { return n.hasRemoteDescription }
func (n *NegotiationContext) HasLocalDescription() bool  { return n.hasLocalDescription }
func (n *NegotiationContext) ProcessingOffer() bool      { return n.processingOffer }
func (n *NegotiationContext) Dropped() int               { return n.dropped }

func (n *NegotiationContext) PendingCandidates() []webrtc.ICECandidateInit {
	return append([]webrtc.ICECandidateInit(nil), n.pendingCandidates...)
}

// QueueOffer сохраняет offer до инициализации. Второй offer не перезаписывает первый.
func (n *NegotiationContext) QueueOffer(offer webrtc.SessionDescription) bool {
	if n.pendingOffer != nil {
		return false
	}

	n.pendingOffer = &offer

	return true
}

func (n *NegotiationContext) takePendingOffer() *webrtc.SessionDescription {
	offer := n.pendingOffer
	n.pendingOffer = nil

	return offer
}

// QueueCandidate добавляет кандидата в очередь, сверх емкости кандидат отбрасывается
func (n *NegotiationContext) QueueCandidate(c webrtc.ICECandidateInit) bool {
	if len(n.pendingCandidates) >= MaxPendingCandidates {
		n.dropped++
		return false
	}

	n.pendingCandidates = append(n.pendingCandidates, c)

	return true
}

// BeginOffer - охрана идемпотентности: offer обрабатывается не больше одного раза
func (n *NegotiationContext) BeginOffer() error {
	if n.processingOffer || n.hasRemoteDescription || n.hasLocalDescription {
		return ErrDuplicateOffer
	}

	n.processingOffer = true

	return nil
}

// finishOffer снимает флаг. После ошибки это позволяет обработать заново доставленный offer.
func (n *NegotiationContext) finishOffer() {
	n.processingOffer = false
}

// Negotiator - конечный автомат обмена offer/answer/ICE.
// Не потокобезопасен, вызывается только из цикла сессии.
type Negotiator struct {
	role  Role
	kind  MediaKind
	state NegotiationState
	nc    NegotiationContext

	pc     PeerConnection
	signal func(event string, payload any) error
	log    *slog.Logger
}

func NewNegotiator(role Role, kind MediaKind, signal func(event string, payload any) error, log *slog.Logger) *Negotiator {
	if log == nil {
		log = slog.Default()
	}

	return &Negotiator{
		role:   role,
		kind:   kind,
		state:  NegotiationUninitialized,
		signal: signal,
		log:    log,
	}
}

func (n *Negotiator) State() NegotiationState      { return n.state }
func (n *Negotiator) Context() *NegotiationContext { return &n.nc }

// Initialize переводит автомат в initialized: обрабатывает отложенный offer и сливает очередь кандидатов
func (n *Negotiator) Initialize(pc PeerConnection) error {
	if n.nc.initialized {
		return nil
	}

	n.pc = pc
	n.nc.initialized = true
	n.state = NegotiationInitialized

	var err error
	if offer := n.nc.takePendingOffer(); offer != nil {
		err = n.processOffer(*offer)
	}

	n.drainCandidates()

	return err
}

// HandleOffer - поток получателя
func (n *Negotiator) HandleOffer(offer webrtc.SessionDescription) error {
	if n.role != Receiver {
		return fmt.Errorf("%w: offer received by %s", ErrWrongRole, n.role)
	}

	if !n.nc.initialized {
		if !n.nc.QueueOffer(offer) {
			n.log.Warn("offer already pending, ignoring redelivery")
		}

		return nil
	}

	return n.processOffer(offer)
}

func (n *Negotiator) processOffer(offer webrtc.SessionDescription) error {
	if err := n.nc.BeginOffer(); err != nil {
		return err
	}

	if err := n.pc.SetRemoteDescription(offer); err != nil {
		n.nc.finishOffer()
		return fmt.Errorf("%w: set remote description: %v", ErrNegotiation, err)
	}

	n.nc.hasRemoteDescription = true
	n.state = NegotiationOfferReceived

	answer, err := n.pc.CreateAnswer()
	if err != nil {
		n.nc.finishOffer()
		return fmt.Errorf("%w: create answer: %v", ErrNegotiation, err)
	}

	if err = n.pc.SetLocalDescription(answer); err != nil {
		n.nc.finishOffer()
		return fmt.Errorf("%w: set local description: %v", ErrNegotiation, err)
	}

	n.nc.hasLocalDescription = true

	if err = n.signal(events.CallAnswer, events.CallAnswerEvent{Answer: answer}); err != nil {
		n.nc.finishOffer()
		return fmt.Errorf("%w: send answer: %v", ErrNegotiation, err)
	}

	n.state = NegotiationAnswered
	n.nc.finishOffer()

	n.drainCandidates()
	n.state = NegotiationStable

	return nil
}

// SendOffer - поток инициатора после call-accepted. Повторный вызов ничего не делает.
func (n *Negotiator) SendOffer() error {
	if n.role != Initiator {
		return fmt.Errorf("%w: offer created by %s", ErrWrongRole, n.role)
	}

	if !n.nc.initialized {
		return fmt.Errorf("%w: not initialized", ErrNegotiation)
	}

	if n.nc.hasLocalDescription {
		return nil
	}

	offer, err := n.pc.CreateOffer()
	if err != nil {
		return fmt.Errorf("%w: create offer: %v", ErrNegotiation, err)
	}

	if err = n.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("%w: set local description: %v", ErrNegotiation, err)
	}

	n.nc.hasLocalDescription = true

	if err = n.signal(events.CallOffer, events.CallOfferEvent{Offer: offer, CallType: string(n.kind)}); err != nil {
		return fmt.Errorf("%w: send offer: %v", ErrNegotiation, err)
	}

	n.state = NegotiationOfferSent

	return nil
}

// HandleAnswer - ответ получателя у инициатора
func (n *Negotiator) HandleAnswer(answer webrtc.SessionDescription) error {
	if n.role != Initiator {
		return fmt.Errorf("%w: answer received by %s", ErrWrongRole, n.role)
	}

	if !n.nc.hasLocalDescription {
		return fmt.Errorf("%w: answer before offer", ErrNegotiation)
	}

	if n.nc.hasRemoteDescription {
		n.log.Warn("duplicate answer ignored")
		return nil
	}

	if err := n.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("%w: set remote description: %v", ErrNegotiation, err)
	}

	n.nc.hasRemoteDescription = true
	n.state = NegotiationAnswered

	n.drainCandidates()
	n.state = NegotiationStable

	return nil
}

// HandleCandidate применяет кандидата сразу или ставит в очередь до remote description
func (n *Negotiator) HandleCandidate(c webrtc.ICECandidateInit) error {
	if n.nc.initialized && n.nc.hasRemoteDescription {
		if err := n.pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("add ice candidate: %w", err)
		}

		return nil
	}

	if !n.nc.QueueCandidate(c) {
		n.log.Warn(
			"pending ice candidate queue full, candidate dropped",
			slog.Int("capacity", MaxPendingCandidates),
			slog.Int("dropped", n.nc.dropped),
		)
	}

	return nil
}

// drainCandidates применяет очередь в порядке поступления, только если есть remote description
func (n *Negotiator) drainCandidates() {
	if !n.nc.initialized || !n.nc.hasRemoteDescription {
		return
	}

	pending := n.nc.pendingCandidates
	n.nc.pendingCandidates = nil

	for _, c := range pending {
		if err := n.pc.AddICECandidate(c); err != nil {
			n.log.Warn("apply queued ice candidate", slog.Any(constant.Error, err))
		}
	}
}
