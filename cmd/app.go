package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qrave1/PeerCall/internal/application/config"
	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/application/metric"
	"github.com/qrave1/PeerCall/internal/infra/adapters/memory"
	"github.com/qrave1/PeerCall/internal/infra/adapters/postgres"
	"github.com/qrave1/PeerCall/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/PeerCall/internal/infra/adapters/redis"
	"github.com/qrave1/PeerCall/internal/infra/ports/http/handlers"
	"github.com/qrave1/PeerCall/internal/infra/ports/http/server"
	"github.com/qrave1/PeerCall/internal/infra/ports/turn"
	"github.com/qrave1/PeerCall/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		slog.Error("connect to postgres", slog.Any(constant.Error, err))
		os.Exit(1)
	}
	defer dbConn.Close()

	presenceRepo := memory.NewPresenceRepository()

	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Error("connect to redis", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer rdb.Close()

		presenceRepo = redis.NewPresenceRepository(rdb, "peercall")

		slog.Info("presence stored in redis", slog.String("addr", cfg.Redis.Addr))
	}

	if cfg.TurnServer.Enabled {
		turnSrv, err := turn.NewServer(cfg)
		if err != nil {
			slog.Error("start turn server", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer turnSrv.Close()
	}

	userRepo := repository.NewUserRepo(dbConn)
	callLogRepo := repository.NewCallLogRepo(dbConn)
	wsConnRepo := memory.NewWSConnectionRepository()
	callRegistry := memory.NewCallRegistry()
	gameRooms := memory.NewGameRoomRepository(nil)

	userUsecase := usecase.NewUserUsecase([]byte(cfg.JWTSecret), userRepo, presenceRepo, wsConnRepo, callRegistry)
	signalingUsecase := usecase.NewSignalingUsecase(wsConnRepo, presenceRepo, callRegistry)
	callLogUsecase := usecase.NewCallLogUsecase(callLogRepo)
	gameUsecase := usecase.NewGameUsecase(gameRooms, wsConnRepo)

	authHandler := handlers.NewAuthHandler(cfg, userUsecase)
	iceHandler := handlers.NewIceHandler(cfg)
	callLogHandler := handlers.NewCallLogHandler(callLogUsecase)
	wsHandler := handlers.NewWebSocketHandler(cfg, wsConnRepo, signalingUsecase, callLogUsecase, gameUsecase)

	echoSrv := server.New(cfg, authHandler, iceHandler, callLogHandler, wsHandler)

	metricsSrv := metric.NewServer(
		metric.HealthCheck{Name: "postgres", Check: dbConn.PingContext},
		metric.HealthCheck{Name: "presence", Check: func(ctx context.Context) error {
			_, err := presenceRepo.List(ctx)
			return err
		}},
	)

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	// Запускаем HTTP сервер
	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	// Запускаем сервер метрик
	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	// Ожидаем сигнал завершения или ошибку сервера
	select {
	case <-ctx.Done():
		slog.Info("Shutting down servers due to context cancel")
	case err := <-echoSrvCh:
		slog.Error(
			"HTTP server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error(
			"Metrics server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	}

	// Graceful shutdown
	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
	}
}
