package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/qrave1/PeerCall/internal/application/config"
	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/infra/adapters/apiclient"
	"github.com/qrave1/PeerCall/internal/infra/adapters/wsclient"
)

// clientFlags - общие флаги консольных клиентов
type clientFlags struct {
	server   string
	username string
	password string
	register bool
}

// connection - авторизованный клиент REST API и сигналинг поверх websocket
type connection struct {
	api *apiclient.Client
	me  *apiclient.Me
	ws  *wsclient.Client
}

func loadAgentConfig(f clientFlags) (*config.AgentConfig, error) {
	cfg, err := config.NewAgent()
	if err != nil {
		return nil, err
	}

	if f.server != "" {
		cfg.ServerURL = strings.TrimRight(f.server, "/")
	}
	if f.username != "" {
		cfg.Username = f.username
	}
	if f.password != "" {
		cfg.Password = f.password
	}

	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	return cfg, nil
}

func connect(ctx context.Context, cfg *config.AgentConfig, register bool) (*connection, error) {
	api, err := apiclient.New(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	me, err := api.Login(ctx, cfg.Username, cfg.Password, register)
	if err != nil {
		return nil, err
	}

	ws, err := wsclient.Dial(ctx, wsclient.Config{
		URL: cfg.WebsocketURL(),
		Jar: api.HTTP.Jar,
	})
	if err != nil {
		return nil, err
	}

	slog.Info(
		"connected",
		slog.Any(constant.UserID, me.ID),
		slog.String(constant.UserName, me.Username),
	)

	return &connection{api: api, me: me, ws: ws}, nil
}

// readCommands читает команды построчно, пока не кончится ввод или не отменят ctx
func readCommands(ctx context.Context, r io.Reader, handle func(cmd string, args []string) error) {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}

			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}

			if err := handle(fields[0], fields[1:]); err != nil {
				slog.Warn("command failed", slog.String("command", fields[0]), slog.Any(constant.Error, err))
			}
		}
	}
}
