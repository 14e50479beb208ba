package media

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/PeerCall/internal/application/constant"
)

// PacketReader - источник RTP пакетов захвата (mediadevices.RTPReadCloser)
type PacketReader interface {
	Read() ([]*rtp.Packet, func(), error)
	Close() error
}

// Track - локальный трек. Пакеты из захвата переливаются в TrackLocalStaticRTP,
// пока трек включен: выключенный трек остается в соединении и просто молчит.
type Track struct {
	*webrtc.TrackLocalStaticRTP

	reader  PacketReader
	release func() error
	log     *slog.Logger

	enabled atomic.Bool
	stopped atomic.Bool

	mu       sync.Mutex
	onEnded  []func()
	ended    bool
	stopOnce sync.Once
}

// NewTrack запускает перекачку пакетов из reader. release закрывает устройство захвата.
func NewTrack(codec webrtc.RTPCodecCapability, id, streamID string, reader PacketReader, release func() error, log *slog.Logger) (*Track, error) {
	local, err := webrtc.NewTrackLocalStaticRTP(codec, id, streamID)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = slog.Default()
	}

	t := &Track{
		TrackLocalStaticRTP: local,
		reader:              reader,
		release:             release,
		log:                 log.With(slog.String(constant.Track, id)),
	}
	t.enabled.Store(true)

	go t.pump()

	return t, nil
}

func (t *Track) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

func (t *Track) Enabled() bool {
	return t.enabled.Load()
}

// OnEnded регистрирует колбэк на завершение захвата со стороны источника. Stop его не вызывает.
func (t *Track) OnEnded(fn func()) {
	t.mu.Lock()
	if !t.ended {
		t.onEnded = append(t.onEnded, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	fn()
}

// Stop закрывает захват. Идемпотентен.
func (t *Track) Stop() error {
	var err error

	t.stopOnce.Do(func() {
		t.stopped.Store(true)

		err = t.reader.Close()
		if t.release != nil {
			err = errors.Join(err, t.release())
		}
	})

	return err
}

func (t *Track) pump() {
	for {
		pkts, release, err := t.reader.Read()
		if err != nil {
			if t.stopped.Load() {
				return
			}

			if !errors.Is(err, io.EOF) {
				t.log.Warn("read capture packets", slog.Any(constant.Error, err))
			}

			t.fireEnded()

			return
		}

		if t.enabled.Load() {
			for _, pkt := range pkts {
				if pkt == nil {
					continue
				}

				if err = t.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
					t.log.Warn("write rtp", slog.Any(constant.Error, err))
				}
			}
		}

		if release != nil {
			release()
		}
	}
}

func (t *Track) fireEnded() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	fns := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()

	t.log.Info("capture ended")

	for _, fn := range fns {
		fn()
	}
}
