package call

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/PeerCall/internal/signaling"
)

type sentMessage struct {
	event   string
	payload any
	to      string
}

type fakeTransport struct {
	registry *signaling.Registry

	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{registry: signaling.NewRegistry()}
}

func (f *fakeTransport) Send(_ context.Context, event string, payload any, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.sent = append(f.sent, sentMessage{event: event, payload: payload, to: to})

	return nil
}

func (f *fakeTransport) On(event string, h signaling.Handler) func() {
	return f.registry.On(event, h)
}

func (f *fakeTransport) deliver(t *testing.T, event, from string, payload any) {
	t.Helper()

	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		data = raw
	}

	f.registry.Dispatch(event, signaling.Inbound{From: from, Data: data})
}

func (f *fakeTransport) messages(event string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []sentMessage
	for _, m := range f.sent {
		if m.event == event {
			out = append(out, m)
		}
	}

	return out
}

func (f *fakeTransport) count(event string) int {
	return len(f.messages(event))
}

type fakeTrack struct {
	*webrtc.TrackLocalStaticRTP

	mu      sync.Mutex
	enabled bool
	stops   int
	onEnded []func()
}

func newFakeTrack(t *testing.T, kind webrtc.RTPCodecType, id string) *fakeTrack {
	t.Helper()

	mime := webrtc.MimeTypeOpus
	if kind == webrtc.RTPCodecTypeVideo {
		mime = webrtc.MimeTypeVP8
	}

	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: mime}, id, LocalStreamID)
	require.NoError(t, err)

	return &fakeTrack{TrackLocalStaticRTP: track, enabled: true}
}

func (f *fakeTrack) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}

func (f *fakeTrack) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeTrack) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeTrack) OnEnded(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEnded = append(f.onEnded, fn)
}

func (f *fakeTrack) stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops > 0
}

// end имитирует остановку захвата средствами ОС
func (f *fakeTrack) end() {
	f.mu.Lock()
	fns := append([]func(){}, f.onEnded...)
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

type fakeSender struct {
	mu       sync.Mutex
	replaced []webrtc.TrackLocal
	err      error
}

func (f *fakeSender) ReplaceTrack(track webrtc.TrackLocal) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil && track != nil {
		return f.err
	}

	f.replaced = append(f.replaced, track)

	return nil
}

func (f *fakeSender) replacements() []webrtc.TrackLocal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]webrtc.TrackLocal(nil), f.replaced...)
}

type fakeRemoteTrack struct {
	id     string
	stream string
	kind   webrtc.RTPCodecType
}

func (f fakeRemoteTrack) ID() string                { return f.id }
func (f fakeRemoteTrack) StreamID() string          { return f.stream }
func (f fakeRemoteTrack) Kind() webrtc.RTPCodecType { return f.kind }

type fakePeer struct {
	mu sync.Mutex

	senders    []*fakeSender
	local      []webrtc.SessionDescription
	remote     []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	offers     int
	answers    int
	closes     int

	// applied before remote description
	earlyCandidates int

	setRemoteErr error

	onTrack func(RemoteTrack)
	onICE   func(*webrtc.ICECandidateInit)
	onState func(webrtc.PeerConnectionState)
}

func (f *fakePeer) AddTrack(webrtc.TrackLocal) (Sender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := &fakeSender{}
	f.senders = append(f.senders, s)

	return s, nil
}

func (f *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer"}, nil
}

func (f *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (f *fakePeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.local = append(f.local, desc)
	return nil
}

func (f *fakePeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setRemoteErr != nil {
		err := f.setRemoteErr
		f.setRemoteErr = nil
		return err
	}

	f.remote = append(f.remote, desc)
	return nil
}

func (f *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.remote) == 0 {
		f.earlyCandidates++
	}
	f.candidates = append(f.candidates, c)

	return nil
}

func (f *fakePeer) OnTrack(fn func(RemoteTrack)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTrack = fn
}

func (f *fakePeer) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onICE = fn
}

func (f *fakePeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onState = fn
}

func (f *fakePeer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakePeer) emitTrack(track RemoteTrack) {
	f.mu.Lock()
	fn := f.onTrack
	f.mu.Unlock()
	fn(track)
}

func (f *fakePeer) emitState(state webrtc.PeerConnectionState) {
	f.mu.Lock()
	fn := f.onState
	f.mu.Unlock()
	fn(state)
}

func (f *fakePeer) emitCandidate(c webrtc.ICECandidateInit) {
	f.mu.Lock()
	fn := f.onICE
	f.mu.Unlock()
	fn(&c)
}

func (f *fakePeer) snapshot() fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()

	return fakePeer{
		local:           append([]webrtc.SessionDescription(nil), f.local...),
		remote:          append([]webrtc.SessionDescription(nil), f.remote...),
		candidates:      append([]webrtc.ICECandidateInit(nil), f.candidates...),
		offers:          f.offers,
		answers:         f.answers,
		closes:          f.closes,
		earlyCandidates: f.earlyCandidates,
	}
}

func (f *fakePeer) videoSender() *fakeSender {
	f.mu.Lock()
	defer f.mu.Unlock()

	// порядок AddTrack: аудио, затем видео
	return f.senders[len(f.senders)-1]
}

type fakeSource struct {
	t *testing.T

	mu        sync.Mutex
	err       error
	cameraErr error
	block     chan struct{}
	audio     *fakeTrack
	video     *fakeTrack
	cameras   []*fakeTrack
	displays  []*fakeTrack
}

func newFakeSource(t *testing.T) *fakeSource {
	return &fakeSource{t: t}
}

func (f *fakeSource) UserMedia(ctx context.Context, kind MediaKind) ([]LocalTrack, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	f.audio = newFakeTrack(f.t, webrtc.RTPCodecTypeAudio, "mic")
	tracks := []LocalTrack{f.audio}

	if kind == Video {
		f.video = newFakeTrack(f.t, webrtc.RTPCodecTypeVideo, "camera")
		tracks = append(tracks, f.video)
	}

	return tracks, nil
}

func (f *fakeSource) Camera(context.Context) (LocalTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cameraErr != nil {
		return nil, f.cameraErr
	}

	track := newFakeTrack(f.t, webrtc.RTPCodecTypeVideo, "camera")
	f.cameras = append(f.cameras, track)

	return track, nil
}

func (f *fakeSource) Display(context.Context) (LocalTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	track := newFakeTrack(f.t, webrtc.RTPCodecTypeVideo, "screen")
	f.displays = append(f.displays, track)

	return track, nil
}

type fakeSink struct {
	mu       sync.Mutex
	attached []Stream
	plays    int
	clears   int
}

func (f *fakeSink) Attach(stream Stream) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, stream)
	return nil
}

func (f *fakeSink) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *fakeSink) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
}

func (f *fakeSink) streams() []Stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Stream(nil), f.attached...)
}

type memoryLogSink struct {
	mu   sync.Mutex
	logs []Log
}

func (m *memoryLogSink) Record(_ context.Context, log Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryLogSink) records() []Log {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Log(nil), m.logs...)
}

var errDenied = errors.New("permission denied")

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond)
}
