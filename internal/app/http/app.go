package httpapp

import (
	"fmt"
	"log/slog"
	"time"

	authhttp "authd/internal/http/auth"
	"authd/internal/http/middleware"
	"authd/internal/services/guard"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	log      *slog.Logger
	fiberApp *fiber.App
	port     int
}

// New builds the fiber app with recovery, request logging and the auth
// routes registered behind the guard middleware.
func New(log *slog.Logger, authService authhttp.Auth, accessGuard *guard.Guard, port int, timeout time.Duration) *App {
	fiberApp := fiber.New(fiber.Config{
		AppName:               "authd",
		DisableStartupMessage: true,
		ReadTimeout:           timeout,
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(middleware.RequestLogger(log))

	mw := middleware.NewAuth(log, accessGuard)
	authhttp.Register(fiberApp, log, authService, mw)

	return &App{
		log:      log,
		fiberApp: fiberApp,
		port:     port,
	}
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "httpapp.Run"

	a.log.Info("http server started", slog.Int("port", a.port))

	if err := a.fiberApp.Listen(fmt.Sprintf(":%d", a.port)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (a *App) Stop() {
	const op = "httpapp.Stop"

	a.log.With(slog.String("op", op)).
		Info("stopping http server", slog.Int("port", a.port))

	if err := a.fiberApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
		a.log.Error("http server shutdown failed", slog.String("op", op), slog.String("error", err.Error()))
	}
}
