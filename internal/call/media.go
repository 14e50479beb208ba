package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/qrave1/PeerCall/internal/application/constant"
)

// LocalStreamID - идентификатор локального потока в sink
const LocalStreamID = "local"

// MediaSource - захват устройств
type MediaSource interface {
	// UserMedia возвращает микрофон и, для видео, камеру
	UserMedia(ctx context.Context, kind MediaKind) ([]LocalTrack, error)
	Camera(ctx context.Context) (LocalTrack, error)
	Display(ctx context.Context) (LocalTrack, error)
}

// Stream - набор треков для отображения
type Stream struct {
	ID     string
	Tracks []MediaTrack
}

// Sink - внешний потребитель потока (окно, файл, лог)
type Sink interface {
	Attach(stream Stream) error
	Play() error
	Clear()
}

// MediaHooks - побочные каналы соединения, вызываются из горутин pion
type MediaHooks struct {
	OnRemoteTrack     func()
	OnICECandidate    func(webrtc.ICECandidateInit)
	OnConnectionState func(webrtc.PeerConnectionState)
	OnCaptureEnded    func()
}

// MediaController владеет локальными треками, соединением и подменой трека при демонстрации экрана
type MediaController struct {
	source     MediaSource
	newPeer    PeerFactory
	localSink  Sink
	remoteSink Sink
	log        *slog.Logger

	mu          sync.Mutex
	hooks       MediaHooks
	pc          PeerConnection
	audio       LocalTrack
	video       LocalTrack
	screen      LocalTrack
	videoSender Sender
	released    bool

	remoteTracks map[string][]MediaTrack
	shownStream  string
	shownCount   int
}

func NewMediaController(source MediaSource, newPeer PeerFactory, localSink, remoteSink Sink, log *slog.Logger) *MediaController {
	if log == nil {
		log = slog.Default()
	}

	return &MediaController{
		source:       source,
		newPeer:      newPeer,
		localSink:    localSink,
		remoteSink:   remoteSink,
		log:          log,
		remoteTracks: make(map[string][]MediaTrack),
	}
}

// Initialize захватывает устройства, создает соединение и подключает локальные треки
func (c *MediaController) Initialize(ctx context.Context, kind MediaKind, hooks MediaHooks) (PeerConnection, error) {
	tracks, err := c.source.UserMedia(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaAcquisition, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		stopAll(tracks)
		return nil, ErrSessionEnded
	}

	pc, err := c.newPeer()
	if err != nil {
		stopAll(tracks)
		return nil, fmt.Errorf("%w: %v", ErrMediaAcquisition, err)
	}

	c.pc = pc
	c.hooks = hooks

	for _, track := range tracks {
		sender, err := pc.AddTrack(track)
		if err != nil {
			stopAll(tracks)
			_ = pc.Close()
			c.pc = nil

			return nil, fmt.Errorf("%w: add %s track: %v", ErrMediaAcquisition, track.Kind(), err)
		}

		switch track.Kind() {
		case webrtc.RTPCodecTypeAudio:
			c.audio = track
		case webrtc.RTPCodecTypeVideo:
			c.video = track
			c.videoSender = sender
		}
	}

	pc.OnTrack(c.onRemoteTrack)

	pc.OnICECandidate(func(candidate *webrtc.ICECandidateInit) {
		if candidate != nil && hooks.OnICECandidate != nil {
			hooks.OnICECandidate(*candidate)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if hooks.OnConnectionState != nil {
			hooks.OnConnectionState(state)
		}
	})

	c.refreshLocalSink()

	return pc, nil
}

// onRemoteTrack обновляет sink только если поток новый или в нем стало больше треков
func (c *MediaController) onRemoteTrack(track RemoteTrack) {
	c.mu.Lock()

	if c.released {
		c.mu.Unlock()
		return
	}

	streamID := track.StreamID()

	known := c.remoteTracks[streamID]
	duplicate := false
	for _, t := range known {
		if t.ID() == track.ID() {
			duplicate = true
			break
		}
	}
	if !duplicate {
		known = append(known, track)
		c.remoteTracks[streamID] = known
	}

	if streamID != c.shownStream || len(known) > c.shownCount {
		c.shownStream = streamID
		c.shownCount = len(known)

		stream := Stream{ID: streamID, Tracks: append([]MediaTrack(nil), known...)}
		if err := c.remoteSink.Attach(stream); err != nil {
			c.log.Warn("attach remote stream", slog.String(constant.Stream, streamID), slog.Any(constant.Error, err))
		} else if err = c.remoteSink.Play(); err != nil {
			c.log.Warn("play remote stream", slog.String(constant.Stream, streamID), slog.Any(constant.Error, err))
		}
	}

	onRemote := c.hooks.OnRemoteTrack
	c.mu.Unlock()

	if onRemote != nil {
		onRemote()
	}
}

// ToggleMute переключает enabled у микрофона, возвращает true если звук выключен
func (c *MediaController) ToggleMute() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.audio == nil {
		return false, fmt.Errorf("%w: audio", ErrNoTrack)
	}

	c.audio.SetEnabled(!c.audio.Enabled())

	return !c.audio.Enabled(), nil
}

// ToggleCamera переключает enabled у видео, возвращает true если камера выключена.
// При включении sink переподключается, иначе часть рендереров не возобновляет отрисовку.
func (c *MediaController) ToggleCamera() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.video == nil {
		return false, fmt.Errorf("%w: video", ErrNoTrack)
	}

	enabled := !c.video.Enabled()
	c.video.SetEnabled(enabled)

	if enabled {
		c.refreshLocalSink()
	}

	return !enabled, nil
}

// StartScreenShare подменяет трек камеры захватом экрана в том же sender, без ренеготиации
func (c *MediaController) StartScreenShare(ctx context.Context) error {
	c.mu.Lock()
	if c.screen != nil {
		c.mu.Unlock()
		return nil
	}
	if c.videoSender == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no video sender", ErrScreenShare)
	}
	c.mu.Unlock()

	display, err := c.source.Display(ctx)
	if err != nil {
		return fmt.Errorf("%w: capture display: %v", ErrScreenShare, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		_ = display.Stop()
		return ErrSessionEnded
	}

	if err = c.videoSender.ReplaceTrack(display); err != nil {
		_ = display.Stop()
		return fmt.Errorf("%w: replace track: %v", ErrScreenShare, err)
	}

	camera := c.video
	c.video = display
	c.screen = display

	if camera != nil {
		if err = camera.Stop(); err != nil {
			c.log.Warn("stop camera track", slog.Any(constant.Error, err))
		}
	}

	onEnded := c.hooks.OnCaptureEnded
	display.OnEnded(func() {
		if onEnded != nil {
			onEnded()
		}
	})

	c.refreshLocalSink()

	return nil
}

// StopScreenShare возвращает свежий трек камеры. Ошибка камеры не завершает звонок:
// захват все равно останавливается, sender остается без видео.
func (c *MediaController) StopScreenShare(ctx context.Context) error {
	c.mu.Lock()
	if c.screen == nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	camera, camErr := c.source.Camera(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		if camera != nil {
			_ = camera.Stop()
		}
		return ErrSessionEnded
	}

	screen := c.screen
	if screen == nil {
		if camera != nil {
			_ = camera.Stop()
		}
		return nil
	}

	var replaceErr error
	if camErr == nil {
		if replaceErr = c.videoSender.ReplaceTrack(camera); replaceErr != nil {
			_ = camera.Stop()
		}
	}

	if camErr != nil || replaceErr != nil {
		if err := c.videoSender.ReplaceTrack(nil); err != nil {
			c.log.Warn("detach screen track", slog.Any(constant.Error, err))
		}
		camera = nil
	}

	c.screen = nil
	c.video = camera

	if err := screen.Stop(); err != nil {
		c.log.Warn("stop screen track", slog.Any(constant.Error, err))
	}

	c.refreshLocalSink()

	switch {
	case camErr != nil:
		return fmt.Errorf("%w: reacquire camera: %v", ErrScreenShare, camErr)
	case replaceErr != nil:
		return fmt.Errorf("%w: replace track: %v", ErrScreenShare, replaceErr)
	}

	return nil
}

func (c *MediaController) ScreenSharing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.screen != nil
}

// LocalTracks - текущие локальные треки (аудио, видео или экран)
func (c *MediaController) LocalTracks() []LocalTrack {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.localTracks()
}

func (c *MediaController) localTracks() []LocalTrack {
	var tracks []LocalTrack
	for _, t := range []LocalTrack{c.audio, c.video} {
		if t != nil {
			tracks = append(tracks, t)
		}
	}

	return tracks
}

// Release останавливает все треки и закрывает соединение. Идемпотентен.
func (c *MediaController) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	c.released = true

	tracks := c.localTracks()
	if c.screen != nil && c.screen != c.video {
		tracks = append(tracks, c.screen)
	}
	stopAll(tracks)

	c.audio, c.video, c.screen, c.videoSender = nil, nil, nil, nil

	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			c.log.Warn("close peer connection", slog.Any(constant.Error, err))
		}
		c.pc = nil
	}

	c.localSink.Clear()
	c.remoteSink.Clear()
}

func (c *MediaController) refreshLocalSink() {
	c.localSink.Clear()

	tracks := c.localTracks()
	stream := Stream{ID: LocalStreamID, Tracks: make([]MediaTrack, 0, len(tracks))}
	for _, t := range tracks {
		stream.Tracks = append(stream.Tracks, t)
	}

	if err := c.localSink.Attach(stream); err != nil {
		c.log.Warn("attach local stream", slog.Any(constant.Error, err))
		return
	}

	if err := c.localSink.Play(); err != nil {
		c.log.Warn("play local stream", slog.Any(constant.Error, err))
	}
}

func stopAll(tracks []LocalTrack) {
	for _, t := range tracks {
		_ = t.Stop()
	}
}
