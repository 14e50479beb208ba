package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/call"
)

// RTPSource - удаленный трек, из которого можно читать RTP (*webrtc.TrackRemote)
type RTPSource interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

type rtpWriter interface {
	WriteRTP(packet *rtp.Packet) error
	Close() error
}

// Recorder пишет удаленные треки в файлы: VP8 в IVF, Opus в Ogg, по файлу на трек
type Recorder struct {
	dir string
	log *slog.Logger

	mu      sync.Mutex
	writers map[string]rtpWriter
	files   []string
	wg      sync.WaitGroup
}

func NewRecorder(dir string, log *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}

	return &Recorder{
		dir:     dir,
		log:     log,
		writers: make(map[string]rtpWriter),
	}, nil
}

// Attach начинает запись новых треков потока. Уже записываемые треки пропускаются.
func (r *Recorder) Attach(stream call.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error

	for _, t := range stream.Tracks {
		src, ok := t.(RTPSource)
		if !ok {
			continue
		}

		if _, recording := r.writers[src.ID()]; recording {
			continue
		}

		w, path, err := r.open(stream.ID, src)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		r.writers[src.ID()] = w
		r.files = append(r.files, path)
		r.log.Info("recording remote track", slog.String(constant.Track, src.ID()), slog.String("path", path))

		r.wg.Add(1)
		go r.copy(src, w)
	}

	return errors.Join(errs...)
}

func (r *Recorder) Play() error {
	return nil
}

// Clear закрывает файлы и дожидается окончания копирования
func (r *Recorder) Clear() {
	r.mu.Lock()
	for id, w := range r.writers {
		if err := w.Close(); err != nil {
			r.log.Warn("close recording", slog.String(constant.Track, id), slog.Any(constant.Error, err))
		}
	}
	r.writers = make(map[string]rtpWriter)
	r.mu.Unlock()

	r.wg.Wait()
}

// Files - пути созданных файлов
func (r *Recorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.files...)
}

func (r *Recorder) open(streamID string, src RTPSource) (rtpWriter, string, error) {
	base := fmt.Sprintf("%s_%s_%s", time.Now().Format("20060102-150405"), sanitize(streamID), sanitize(src.ID()))
	codec := src.Codec()

	switch {
	case strings.EqualFold(codec.MimeType, webrtc.MimeTypeVP8):
		path := filepath.Join(r.dir, base+".ivf")
		w, err := ivfwriter.New(path)
		if err != nil {
			return nil, "", fmt.Errorf("create ivf writer: %w", err)
		}
		return w, path, nil
	case strings.EqualFold(codec.MimeType, webrtc.MimeTypeOpus):
		path := filepath.Join(r.dir, base+".ogg")
		channels := codec.Channels
		if channels == 0 {
			channels = 2
		}
		w, err := oggwriter.New(path, codec.ClockRate, channels)
		if err != nil {
			return nil, "", fmt.Errorf("create ogg writer: %w", err)
		}
		return w, path, nil
	}

	return nil, "", fmt.Errorf("unsupported codec %s", codec.MimeType)
}

// copy читает трек до его закрытия. Ошибка записи после Clear означает, что файл уже закрыт.
func (r *Recorder) copy(src RTPSource, w rtpWriter) {
	defer r.wg.Done()

	for {
		pkt, _, err := src.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.log.Debug("remote track read stopped", slog.String(constant.Track, src.ID()), slog.Any(constant.Error, err))
			}
			return
		}

		r.mu.Lock()
		current, open := r.writers[src.ID()]
		r.mu.Unlock()

		if !open || current != w {
			return
		}

		if err = w.WriteRTP(pkt); err != nil {
			r.log.Warn("write recording", slog.String(constant.Track, src.ID()), slog.Any(constant.Error, err))
			return
		}
	}
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, s)

	if s == "" {
		return "track"
	}

	return s
}
