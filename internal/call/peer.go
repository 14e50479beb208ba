package call

import (
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

// MediaTrack - общий вид локального и удаленного трека
type MediaTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
}

// RemoteTrack - удаленный трек, *webrtc.TrackRemote подходит как есть
type RemoteTrack interface {
	MediaTrack
	StreamID() string
}

// LocalTrack - локальный трек, который можно выключать без ренеготиации
type LocalTrack interface {
	webrtc.TrackLocal

	SetEnabled(enabled bool)
	Enabled() bool
	// Stop идемпотентен
	Stop() error
	// OnEnded вызывается, когда источник завершился сам (например, пользователь остановил захват экрана)
	OnEnded(fn func())
}

// Sender - отправитель трека в уже согласованном соединении
type Sender interface {
	ReplaceTrack(track webrtc.TrackLocal) error
}

// PeerConnection - узкий срез webrtc.PeerConnection, нужный сессии
type PeerConnection interface {
	AddTrack(track webrtc.TrackLocal) (Sender, error)
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	OnTrack(fn func(RemoteTrack))
	// OnICECandidate получает nil по окончании сбора кандидатов
	OnICECandidate(fn func(*webrtc.ICECandidateInit))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))

	Close() error
}

// PeerFactory создает новое соединение на каждую сессию
type PeerFactory func() (PeerConnection, error)

// NewPeerFactory создает фабрику соединений pion с заданными STUN/TURN серверами
func NewPeerFactory(api *webrtc.API, iceServers []webrtc.ICEServer) PeerFactory {
	return func() (PeerConnection, error) {
		pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
		if err != nil {
			return nil, fmt.Errorf("new peer connection: %w", err)
		}

		return &pionPeer{pc: pc}, nil
	}
}

// HasRelay сообщает, есть ли среди ICE серверов TURN
func HasRelay(servers []webrtc.ICEServer) bool {
	for _, srv := range servers {
		for _, u := range srv.URLs {
			if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
				return true
			}
		}
	}

	return false
}

type pionPeer struct {
	pc *webrtc.PeerConnection
}

func (p *pionPeer) AddTrack(track webrtc.TrackLocal) (Sender, error) {
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return nil, err
	}

	// RTCP нужно вычитывать, иначе интерсепторы не получают отчеты
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	return sender, nil
}

func (p *pionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *pionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionPeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *pionPeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *pionPeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

func (p *pionPeer) OnTrack(fn func(RemoteTrack)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(track)
	})
}

func (p *pionPeer) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			fn(nil)
			return
		}

		init := c.ToJSON()
		fn(&init)
	})
}

func (p *pionPeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(fn)
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}
