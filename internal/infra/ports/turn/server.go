package turn

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/pion/logging"
	"github.com/pion/turn/v4"

	"github.com/qrave1/PeerCall/internal/application/config"
)

// Server - встроенный TURN relay. Креды те же, что выдает /api/v1/ice (общий секрет).
type Server struct {
	srv *turn.Server
}

func NewServer(cfg *config.Config) (*Server, error) {
	turnCfg := cfg.TurnServer
	addr := fmt.Sprintf("0.0.0.0:%d", turnCfg.Port)

	udpListener, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("udp listen: %w", err)
	}

	tcpListener, err := net.Listen("tcp4", addr)
	if err != nil {
		udpListener.Close()
		return nil, fmt.Errorf("tcp listen: %w", err)
	}

	relayAddressGenerator := &turn.RelayAddressGeneratorStatic{
		RelayAddress: net.ParseIP(turnCfg.PublicIP),
		Address:      "0.0.0.0",
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	loggerFactory.DefaultLogLevel = logging.LogLevelWarn
	if cfg.Debug {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	}

	srv, err := turn.NewServer(
		turn.ServerConfig{
			Realm:         turnCfg.Realm,
			AuthHandler:   turn.NewLongTermAuthHandler(cfg.CoturnServer.Secret, loggerFactory.NewLogger("turn")),
			LoggerFactory: loggerFactory,
			PacketConnConfigs: []turn.PacketConnConfig{
				{
					PacketConn:            udpListener,
					RelayAddressGenerator: relayAddressGenerator,
				},
			},
			ListenerConfigs: []turn.ListenerConfig{
				{
					Listener:              tcpListener,
					RelayAddressGenerator: relayAddressGenerator,
				},
			},
		},
	)
	if err != nil {
		udpListener.Close()
		tcpListener.Close()
		return nil, fmt.Errorf("new turn server: %w", err)
	}

	slog.Info(
		"TURN server started",
		slog.String("public_ip", turnCfg.PublicIP),
		slog.Int("port", turnCfg.Port),
		slog.String("realm", turnCfg.Realm),
	)

	return &Server{srv: srv}, nil
}

func (s *Server) Close() error {
	return s.srv.Close()
}
