package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tgmanager/tgmanager/internal/api"
	"github.com/tgmanager/tgmanager/internal/config"
	"github.com/tgmanager/tgmanager/internal/logger"
	"github.com/tgmanager/tgmanager/internal/scheduler"
	"github.com/tgmanager/tgmanager/internal/scheduler/tasks"
	"github.com/tgmanager/tgmanager/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logBroadcaster := logger.NewLogBroadcaster(nil, 1000)

	log := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Path:        cfg.Logging.Path,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
		Compress:    cfg.Logging.Compress,
		ExtraWriter: logBroadcaster,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("address", cfg.Server.Address()).
		Msg("tgmanager starting")

	hub := websocket.NewHub()
	go hub.Run()
	logBroadcaster.SetHub(hub)

	// The large-file protocol client is intentionally absent here: large
	// transfers are the node-client backend's job, and the router fails
	// fast when that path is requested without it.
	server := api.NewServer(cfg, hub, nil, log.Logger)
	server.SetLogAccess(logBroadcaster, log.LogFilePath())

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := tasks.RegisterTokenSweepTask(sched, server.TokenStore(), cfg.LinkTokens.SweepCron); err != nil {
		log.Fatal().Err(err).Msg("failed to register token sweep task")
	}
	if err := tasks.RegisterDownloadScanTask(sched, server.Downloads(), hub); err != nil {
		log.Fatal().Err(err).Msg("failed to register download scan task")
	}
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	server.SetScheduler(sched)

	// Inbound update polling; only useful with a bot token configured.
	pollCtx, stopPolling := context.WithCancel(context.Background())
	pollDone := make(chan struct{})
	if cfg.Telegram.BotToken != "" {
		go func() {
			defer close(pollDone)
			server.Dispatcher().Run(pollCtx)
		}()
	} else {
		close(pollDone)
		log.Warn().Msg("no bot token configured, update polling disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	stopPolling()
	<-pollDone

	server.Supervisor().ShutdownAll()

	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("tgmanager stopped")
}
