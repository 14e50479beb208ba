package call

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func TestHasRelay(t *testing.T) {
	tests := []struct {
		name    string
		servers []webrtc.ICEServer
		want    bool
	}{
		{"empty", nil, false},
		{"stun only", []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}, false},
		{"turn", []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
			{URLs: []string{"turn:relay.example.com:3478?transport=udp"}},
		}, true},
		{"turns", []webrtc.ICEServer{{URLs: []string{"turns:relay.example.com:5349"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasRelay(tt.servers))
		})
	}
}
