//go:build !linux

package media

import (
	"context"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/qrave1/PeerCall/internal/call"
)

// DeviceSource без драйверов захвата: соединение работает только на прием
type DeviceSource struct {
	log *slog.Logger
}

func NewDeviceSource(_ Constraints, log *slog.Logger) (*DeviceSource, error) {
	if log == nil {
		log = slog.Default()
	}

	return &DeviceSource{log: log}, nil
}

func (s *DeviceSource) registerCodecs(m *webrtc.MediaEngine) error {
	return m.RegisterDefaultCodecs()
}

func (s *DeviceSource) UserMedia(context.Context, call.MediaKind) ([]call.LocalTrack, error) {
	return nil, ErrUnsupported
}

func (s *DeviceSource) Camera(context.Context) (call.LocalTrack, error) {
	return nil, ErrUnsupported
}

func (s *DeviceSource) Display(context.Context) (call.LocalTrack, error) {
	return nil, ErrUnsupported
}
