package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/call"
	"github.com/qrave1/PeerCall/internal/infra/adapters/sqlite"
	"github.com/qrave1/PeerCall/internal/media"
)

var agentFlags struct {
	clientFlags
	call       string
	video      bool
	autoAnswer bool
	recordDir  string
	history    string
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Headless call client: answers or places calls, records remote media",
	Long: `Headless call client. Commands on stdin:
  call <user-id> [voice|video]   place a call
  accept | reject                answer the ringing call
  mute | camera                  toggle microphone or camera
  share | unshare                start or stop screen sharing
  whiteboard on|off              toggle the shared whiteboard
  hangup                         end the current call
  history [n]                    print recent calls
  online                         list online users`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd.Context())
	},
}

func init() {
	f := agentCmd.Flags()
	f.StringVar(&agentFlags.server, "server", "", "server URL (default SERVER_URL)")
	f.StringVarP(&agentFlags.username, "username", "u", "", "username (default AGENT_USERNAME)")
	f.StringVarP(&agentFlags.password, "password", "p", "", "password (default AGENT_PASSWORD)")
	f.BoolVar(&agentFlags.register, "register", false, "register the user before login")
	f.StringVar(&agentFlags.call, "call", "", "user id to call right after start")
	f.BoolVar(&agentFlags.video, "video", false, "video call instead of voice")
	f.BoolVar(&agentFlags.autoAnswer, "auto-answer", true, "accept incoming calls automatically")
	f.StringVar(&agentFlags.recordDir, "record-dir", "", "directory for remote media (default AGENT_RECORD_DIR)")
	f.StringVar(&agentFlags.history, "history", "", "sqlite call history path (default AGENT_HISTORY_PATH)")

	rootCmd.AddCommand(agentCmd)
}

func runAgent(parent context.Context) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadAgentConfig(agentFlags.clientFlags)
	if err != nil {
		return err
	}
	if agentFlags.recordDir != "" {
		cfg.RecordDir = agentFlags.recordDir
	}
	if agentFlags.history != "" {
		cfg.HistoryPath = agentFlags.history
	}

	log := slog.Default()

	conn, err := connect(ctx, cfg, agentFlags.register)
	if err != nil {
		return err
	}
	defer conn.ws.Close()

	iceServers, err := conn.api.ICEServers(ctx)
	if err != nil {
		return err
	}
	if !call.HasRelay(iceServers) {
		log.Warn("server offered no TURN relay, only direct and STUN paths will be tried")
	}

	source, err := media.NewDeviceSource(media.DefaultConstraints(), log)
	if err != nil {
		return fmt.Errorf("open devices: %w", err)
	}

	api, err := media.NewAPI(source)
	if err != nil {
		return err
	}
	newPeer := call.NewPeerFactory(api, iceServers)

	history, err := sqlite.OpenHistory(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer history.Close()

	newMedia := func() *call.MediaController {
		var remote call.Sink = media.NewLogSink("remote", log)

		dir := filepath.Join(cfg.RecordDir, time.Now().Format("20060102-150405"))
		if rec, err := media.NewRecorder(dir, log); err != nil {
			log.Warn("remote media will not be recorded", slog.Any(constant.Error, err))
		} else {
			remote = rec
		}

		return call.NewMediaController(source, newPeer, media.NewLogSink("local", log), remote, log)
	}

	manager := call.NewManager(call.ManagerConfig{
		LocalID:   conn.me.ID.String(),
		Transport: conn.ws,
		NewMedia:  newMedia,
		LogSink:   call.MultiLogSink{history, call.NewTransportLogSink(conn.ws)},
		Hooks: call.Hooks{
			OnState: func(s *call.Session, state call.State) {
				log.Info("call state", slog.String(constant.SessionID, s.ID()), slog.String(constant.State, string(state)))
			},
			OnTick: func(s *call.Session, d time.Duration) {
				log.Debug("call duration", slog.String(constant.SessionID, s.ID()), slog.Duration(constant.Duration, d))
			},
			OnNotice: func(s *call.Session, err error) {
				log.Warn("call notice", slog.String(constant.SessionID, s.ID()), slog.Any(constant.Error, err))
			},
			OnWhiteboard: func(s *call.Session, open bool) {
				log.Info("whiteboard", slog.String(constant.PeerID, s.RemoteID()), slog.Bool("open", open))
			},
			OnEnded: func(s *call.Session, l call.Log) {
				log.Info(
					"call ended",
					slog.String(constant.SessionID, s.ID()),
					slog.String(constant.Status, string(l.Status)),
					slog.Duration(constant.Duration, l.Duration),
				)
			},
		},
		Options: call.Options{
			RingTimeout:      cfg.RingTimeout,
			InitTimeout:      cfg.InitTimeout,
			InitPollInterval: cfg.InitPollInterval,
			FatalDelay:       cfg.FatalDelay,
			Logger:           log,
		},
		OnIncoming: func(s *call.Session) {
			log.Info("incoming call", slog.String(constant.PeerID, s.RemoteID()), slog.String(constant.CallType, string(s.Kind())))

			if agentFlags.autoAnswer {
				go func() {
					if err := s.Accept(); err != nil {
						log.Warn("accept call", slog.Any(constant.Error, err))
					}
				}()
			}
		},
	})

	manager.Start()
	defer manager.Stop()

	kind := call.Voice
	if agentFlags.video {
		kind = call.Video
	}

	if agentFlags.call != "" {
		if _, err = manager.Call(ctx, agentFlags.call, kind); err != nil {
			return err
		}
	}

	go readCommands(ctx, os.Stdin, func(name string, args []string) error {
		return agentCommand(ctx, manager, conn, history, name, args)
	})

	select {
	case <-ctx.Done():
		return nil
	case <-conn.ws.Done():
		return conn.ws.Err()
	}
}

func agentCommand(
	ctx context.Context,
	manager *call.Manager,
	conn *connection,
	history *sqlite.History,
	name string,
	args []string,
) error {
	switch name {
	case "call":
		if len(args) == 0 {
			return fmt.Errorf("usage: call <user-id> [voice|video]")
		}

		kind := call.Voice
		if len(args) > 1 {
			k, ok := call.ParseMediaKind(args[1])
			if !ok {
				return fmt.Errorf("unknown call type %q", args[1])
			}
			kind = k
		}

		_, err := manager.Call(ctx, args[0], kind)
		return err

	case "history":
		limit := 10
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			limit = n
		}

		entries, err := history.Recent(ctx, limit)
		if err != nil {
			return err
		}

		for _, e := range entries {
			fmt.Printf("%s  %-8s %-5s %-9s %4ds  %s\n",
				e.Ended().Format(time.DateTime), e.Role, e.CallType, e.Status, e.Duration, e.PeerID)
		}

		return nil

	case "online":
		users, err := conn.api.OnlineUsers(ctx)
		if err != nil {
			return err
		}

		for _, u := range users {
			fmt.Printf("%s  %s\n", u.ID, u.Username)
		}

		return nil
	}

	s := manager.Current()
	if s == nil {
		return fmt.Errorf("no active call")
	}

	switch name {
	case "accept":
		return s.Accept()
	case "reject":
		return s.Reject("")
	case "hangup":
		s.Hangup()
		return nil
	case "mute":
		muted, err := s.ToggleMute()
		if err == nil {
			fmt.Println(deviceStatus("microphone", muted))
		}
		return err
	case "camera":
		off, err := s.ToggleCamera()
		if err == nil {
			fmt.Println(deviceStatus("camera", off))
		}
		return err
	case "share":
		return s.StartScreenShare(ctx)
	case "unshare":
		return s.StopScreenShare(ctx)
	case "whiteboard":
		return s.ToggleWhiteboard(ctx, len(args) > 0 && args[0] == "on")
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

// deviceStatus - Toggle* возвращают true, когда устройство выключено
func deviceStatus(device string, off bool) string {
	return fmt.Sprintf("%s enabled: %t", device, !off)
}
