package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qrave1/PeerCall/internal/domain/backgammon"
	"github.com/qrave1/PeerCall/internal/game"
)

var gameFlags struct {
	clientFlags
	room string
}

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Play backgammon in a room from the terminal",
	Long: `Backgammon client. Commands on stdin:
  start          start the match when both players joined
  roll           roll the dice on your turn
  select <n>     pick a source point, then a destination (bar=24, off=25)
  quit           leave the room`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGame(cmd.Context())
	},
}

func init() {
	f := gameCmd.Flags()
	f.StringVar(&gameFlags.server, "server", "", "server URL (default SERVER_URL)")
	f.StringVarP(&gameFlags.username, "username", "u", "", "username (default AGENT_USERNAME)")
	f.StringVarP(&gameFlags.password, "password", "p", "", "password (default AGENT_PASSWORD)")
	f.BoolVar(&gameFlags.register, "register", false, "register the user before login")
	f.StringVar(&gameFlags.room, "room", "", "room id")
	_ = gameCmd.MarkFlagRequired("room")

	rootCmd.AddCommand(gameCmd)
}

func runGame(parent context.Context) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadAgentConfig(gameFlags.clientFlags)
	if err != nil {
		return err
	}

	conn, err := connect(ctx, cfg, gameFlags.register)
	if err != nil {
		return err
	}
	defer conn.ws.Close()

	client := game.NewClient(game.Config{
		RoomID:    gameFlags.room,
		LocalID:   conn.me.ID.String(),
		Transport: conn.ws,
		OnChange:  printView,
	})
	defer client.Close(context.WithoutCancel(ctx))

	if err = client.Join(ctx); err != nil {
		return err
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		readCommands(ctx, os.Stdin, func(name string, args []string) error {
			switch name {
			case "start":
				return client.Start(ctx)
			case "roll":
				return client.Roll(ctx)
			case "select":
				if len(args) == 0 {
					return fmt.Errorf("usage: select <point>")
				}

				point, err := strconv.Atoi(args[0])
				if err != nil {
					return err
				}

				return client.Select(ctx, point)
			case "quit":
				cancel()
				return nil
			default:
				return fmt.Errorf("unknown command %q", name)
			}
		})
	}()

	select {
	case <-ctx.Done():
	case <-done:
	case <-conn.ws.Done():
		return conn.ws.Err()
	}

	return nil
}

func printView(v game.View) {
	fmt.Printf("[%s] phase=%s you=%s turn=%s dice=%v movable=%v selected=%d\n",
		v.RoomID, v.Phase, v.Color, v.Current, v.Dice, v.Movable, v.Selected)

	fmt.Printf("  points=%v bar=%v off=%v\n", v.Points, v.Bar, v.Off)

	if v.Phase == backgammon.PhaseGameOver {
		fmt.Printf("  winner: %s\n", v.Winner)
	}

	if v.Error != "" {
		fmt.Printf("  error: %s\n", v.Error)
	}
}
