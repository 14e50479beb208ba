package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pion/turn/v4"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/PeerCall/internal/application/config"
)

const turnCredentialsTTL = time.Hour

type IceHandler struct {
	cfg *config.Config
}

func NewIceHandler(cfg *config.Config) *IceHandler {
	return &IceHandler{cfg: cfg}
}

// IceServers выдает STUN и TURN с временными кредами по схеме TURN REST (username = срок действия)
func (h *IceHandler) IceServers(c echo.Context) error {
	servers := []webrtc.ICEServer{{URLs: h.cfg.STUNURLs}}

	turnURLs := h.cfg.TURNURLs()
	if len(turnURLs) == 0 {
		return c.JSON(http.StatusOK, servers)
	}

	username, password, err := turn.GenerateLongTermCredentials(h.cfg.CoturnServer.Secret, turnCredentialsTTL)
	if err != nil {
		return writeError(c, err, "could not generate turn credentials")
	}

	servers = append(servers, webrtc.ICEServer{
		URLs:       turnURLs,
		Username:   username,
		Credential: password,
	})

	return c.JSON(http.StatusOK, servers)
}
