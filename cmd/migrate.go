package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/qrave1/PeerCall/internal/application/config"
	"github.com/qrave1/PeerCall/internal/infra/adapters/postgres/migrations"
)

var migrateFlags struct {
	dsn          string
	timeout      time.Duration
	allowMissing bool
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <command> [args]",
	Short: "Apply call log schema migrations (goose commands: up, down, status, redo, version)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := migrateFlags.dsn
		if dsn == "" {
			cfg, err := config.New()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			dsn = cfg.Postgres.DSN()
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), migrateFlags.timeout)
		defer cancel()

		return migrate(ctx, dsn, args[0], args[1:])
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFlags.dsn, "dsn", "", "postgres DSN, overrides POSTGRES_* settings")
	migrateCmd.Flags().DurationVar(&migrateFlags.timeout, "timeout", time.Minute, "migration deadline")
	migrateCmd.Flags().BoolVar(&migrateFlags.allowMissing, "allow-missing", false, "apply out-of-order migrations")

	rootCmd.AddCommand(migrateCmd)
}

func migrate(ctx context.Context, dsn, command string, args []string) error {
	goose.SetBaseFS(migrations.MigrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	var opts []goose.OptionsFunc
	if migrateFlags.allowMissing {
		opts = append(opts, goose.WithAllowMissing())
	}

	started := time.Now()

	if err = goose.RunWithOptionsContext(ctx, command, db, ".", args, opts...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}

	slog.Info("migrations done", slog.String("command", command), slog.Duration("took", time.Since(started)))

	return nil
}
