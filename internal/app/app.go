package app

import (
	"log/slog"

	"authd/config"
	httpapp "authd/internal/app/http"
	"authd/internal/lib/jwt"
	"authd/internal/services/auth"
	"authd/internal/services/guard"
)

type App struct {
	HTTPServer *httpapp.App
	StorageApp *StorageApp
}

func New(log *slog.Logger, cfg *config.Config, storageApp *StorageApp) *App {
	codec := jwt.NewCodec(
		cfg.Token.AccessSecret,
		cfg.Token.RefreshSecret,
		cfg.Token.AccessTTL,
		cfg.Token.RefreshTTL,
	)

	storage := storageApp.Storage()

	authService := auth.New(log, storage, storage, storage, storage, codec)
	accessGuard := guard.New(log, codec, storage)

	httpApp := httpapp.New(log, authService, accessGuard, cfg.HTTP.Port, cfg.HTTP.Timeout)

	return &App{
		HTTPServer: httpApp,
		StorageApp: storageApp,
	}
}
