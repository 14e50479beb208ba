package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/PeerCall/internal/application/config"
)

func iceServers(t *testing.T, cfg *config.Config) []webrtc.ICEServer {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ice", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, NewIceHandler(cfg).IceServers(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var servers []webrtc.ICEServer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &servers))

	return servers
}

func TestIceServersStunOnly(t *testing.T) {
	cfg := &config.Config{STUNURLs: []string{"stun:stun.example.com:3478"}}

	servers := iceServers(t, cfg)
	require.Len(t, servers, 1)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, servers[0].URLs)
	assert.Empty(t, servers[0].Username)
}

func TestIceServersWithTurn(t *testing.T) {
	cfg := &config.Config{
		STUNURLs:      []string{"stun:stun.example.com:3478"},
		TurnUDPServer: webrtc.ICEServer{URLs: []string{"turn:relay.example.com:3478?transport=udp"}},
		TurnTCPServer: webrtc.ICEServer{URLs: []string{"turn:relay.example.com:3478?transport=tcp"}},
		CoturnServer:  config.CoturnConfig{Secret: "shared"},
	}

	servers := iceServers(t, cfg)
	require.Len(t, servers, 2)

	relay := servers[1]
	assert.Equal(t, cfg.TURNURLs(), relay.URLs)
	assert.NotEmpty(t, relay.Credential)

	// username - unix время истечения кредов
	expires, err := strconv.ParseInt(relay.Username, 10, 64)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(turnCredentialsTTL), time.Unix(expires, 0), time.Minute)
}
