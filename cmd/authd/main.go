package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authd/config"
	"authd/internal/app"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const _readinessDrainDelay = 5 * time.Second

func main() {
	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	log.Info("authd", "env", cfg.Env)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storageApp, initStorageErr := app.NewStorageApp(cfg.StoragePath)
	if initStorageErr != nil {
		panic(initStorageErr)
	}

	application := app.New(log, cfg, storageApp)

	go func() {
		log.Info("server starting", "port", cfg.HTTP.Port)
		application.HTTPServer.MustRun()
	}()

	// Waiting for SIGINT (pkill -2) or SIGTERM
	<-rootCtx.Done()
	stop()

	log.Info("received shutdown signal, shutting down gracefully")

	// Give time for readiness check to propagate
	time.Sleep(_readinessDrainDelay)

	application.HTTPServer.Stop()

	if err := storageApp.Stop(); err != nil {
		log.Error("closing storage app", "err", err)
	}

	log.Info("server shut down gracefully")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
