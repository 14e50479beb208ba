//go:build linux

package media

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/call"
)

const rtpMTU = 1200

// DeviceSource захватывает камеру, микрофон и экран через pion/mediadevices (V4L2 + malgo)
type DeviceSource struct {
	selector    *mediadevices.CodecSelector
	constraints Constraints
	log         *slog.Logger
}

func NewDeviceSource(constraints Constraints, log *slog.Logger) (*DeviceSource, error) {
	if log == nil {
		log = slog.Default()
	}

	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	s := &DeviceSource{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
		constraints: constraints,
		log:         log,
	}

	for _, d := range mediadevices.EnumerateDevices() {
		log.Debug("media device", slog.String("kind", fmt.Sprint(d.Kind)), slog.String("label", d.Label))
	}

	return s, nil
}

func (s *DeviceSource) registerCodecs(m *webrtc.MediaEngine) error {
	s.selector.Populate(m)
	return nil
}

func (s *DeviceSource) UserMedia(ctx context.Context, kind call.MediaKind) ([]call.LocalTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.log.Info(
		"capture user media",
		slog.String(constant.CallType, string(kind)),
		slog.Int("sample_rate", s.constraints.SampleRate),
	)

	constraints := mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(s.constraints.SampleRate)
		},
		Codec: s.selector,
	}
	if kind == call.Video {
		constraints.Video = s.videoConstraints
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, fmt.Errorf("get user media: %w", err)
	}

	return s.wrap(stream.GetTracks())
}

func (s *DeviceSource) Camera(ctx context.Context) (call.LocalTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: s.videoConstraints,
		Codec: s.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get camera: %w", err)
	}

	return s.single(stream.GetTracks())
}

func (s *DeviceSource) Display(ctx context.Context) (call.LocalTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.FrameRate = prop.Float(s.constraints.FrameRate)
		},
		Codec: s.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get display media: %w", err)
	}

	return s.single(stream.GetTracks())
}

func (s *DeviceSource) videoConstraints(c *mediadevices.MediaTrackConstraints) {
	// MJPEG с некоторых камер ломает VP8 энкодер
	c.FrameFormat = prop.FrameFormatOneOf{
		frame.FormatYUYV,
		frame.FormatI420,
		frame.FormatI444,
		frame.FormatRGBA,
	}
	c.Width = prop.Int(s.constraints.Width)
	c.Height = prop.Int(s.constraints.Height)
	c.FrameRate = prop.Float(s.constraints.FrameRate)
}

func (s *DeviceSource) single(tracks []mediadevices.Track) (call.LocalTrack, error) {
	wrapped, err := s.wrap(tracks)
	if err != nil {
		return nil, err
	}

	if len(wrapped) == 0 {
		return nil, fmt.Errorf("no video track captured")
	}

	for _, extra := range wrapped[1:] {
		_ = extra.Stop()
	}

	return wrapped[0], nil
}

// wrap переводит треки mediadevices в Track с отдельным RTP reader.
// SSRC перезаписывается TrackLocalStaticRTP при отправке, поэтому здесь подойдет любой.
func (s *DeviceSource) wrap(tracks []mediadevices.Track) ([]call.LocalTrack, error) {
	out := make([]call.LocalTrack, 0, len(tracks))

	fail := func(err error) ([]call.LocalTrack, error) {
		for _, t := range out {
			_ = t.Stop()
		}
		for _, t := range tracks[len(out):] {
			_ = t.Close()
		}
		return nil, err
	}

	for _, mt := range tracks {
		codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
		if mt.Kind() == webrtc.RTPCodecTypeVideo {
			codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
		}

		reader, err := mt.NewRTPReader(codec.MimeType, rand.Uint32(), rtpMTU)
		if err != nil {
			return fail(fmt.Errorf("rtp reader for %s: %w", mt.Kind(), err))
		}

		track, err := NewTrack(codec, uuid.NewString(), call.LocalStreamID, reader, mt.Close, s.log)
		if err != nil {
			_ = reader.Close()
			return fail(fmt.Errorf("local %s track: %w", mt.Kind(), err))
		}

		out = append(out, track)
	}

	return out, nil
}
