package authhttp

import (
	"context"
	"log/slog"

	"authd/internal/domain/models"
	"authd/internal/http/middleware"
	"authd/internal/http/respond"
	"authd/internal/services/auth"
	"authd/internal/services/guard"

	"github.com/gofiber/fiber/v2"
)

// Auth is the slice of the auth service this boundary needs.
type Auth interface {
	Register(ctx context.Context, params auth.RegisterParams) (*auth.Result, error)
	Login(ctx context.Context, params auth.LoginParams) (*auth.Result, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, accountID int64) error
	Account(ctx context.Context, accountID int64) (models.AccountView, error)
	Sessions(ctx context.Context, accountID int64) ([]models.Session, error)
	ChangePassword(ctx context.Context, accountID int64, params auth.ChangePasswordParams) error
	UpdateAccount(ctx context.Context, accountID int64, upd models.AccountUpdate) (models.AccountView, error)
}

type serverAPI struct {
	log  *slog.Logger
	auth Auth
}

func Register(app *fiber.App, log *slog.Logger, authService Auth, mw *middleware.Auth) {
	s := &serverAPI{log: log, auth: authService}

	grp := app.Group("/api/auth")
	grp.Post("/register", s.register)
	grp.Post("/login", s.login)
	grp.Post("/refresh-token", s.refresh)
	grp.Post("/logout", mw.RequireAuth, s.logout)
	grp.Post("/logout-all", mw.RequireAuth, s.logoutAll)
	grp.Post("/change-password", mw.RequireAuth, s.changePassword)
	grp.Get("/me", mw.RequireAuth, s.me)
	grp.Get("/sessions", mw.RequireAuth, s.sessions)

	app.Patch("/api/accounts/:id", mw.RequireAuth, mw.RequireRoles(models.RoleAdmin), s.updateAccount)
}

func (s *serverAPI) register(c *fiber.Ctx) error {
	var params auth.RegisterParams
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := s.auth.Register(c.UserContext(), params)
	if err != nil {
		return respond.Err(c, err)
	}

	return respond.Created(c, "registered", result)
}

func (s *serverAPI) login(c *fiber.Ctx) error {
	var params auth.LoginParams
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := s.auth.Login(c.UserContext(), params)
	if err != nil {
		return respond.Err(c, err)
	}

	return respond.OK(c, "logged in", result)
}

type refreshPayload struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *serverAPI) refresh(c *fiber.Ctx) error {
	var payload refreshPayload
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	accessToken, err := s.auth.Refresh(c.UserContext(), payload.RefreshToken)
	if err != nil {
		return respond.Err(c, err)
	}

	return respond.OK(c, "", fiber.Map{"accessToken": accessToken})
}

func (s *serverAPI) logout(c *fiber.Ctx) error {
	var payload refreshPayload
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := s.auth.Logout(c.UserContext(), payload.RefreshToken); err != nil {
		return respond.Err(c, err)
	}

	return respond.OK(c, "logged out", nil)
}

func (s *serverAPI) logoutAll(c *fiber.Ctx) error {
	account, ok := middleware.AccountFromCtx(c)
	if !ok {
		return respond.Err(c, guard.ErrUnauthorized)
	}

	if err := s.auth.LogoutAll(c.UserContext(), account.ID); err != nil {
		return respond.Err(c, err)
	}

	return respond.OK(c, "logged out from all devices", nil)
}

func (s *serverAPI) changePassword(c *fiber.Ctx) error {
	account, ok := middleware.AccountFromCtx(c)
	if !ok {
		return respond.Err(c, guard.ErrUnauthorized)
	}

	var params auth.ChangePasswordParams
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := s.auth.ChangePassword(c.UserContext(), account.ID, params); err != nil {
		return respond.Err(c, err)
	}

	return respond.OK(c, "password changed", nil)
}

func (s *serverAPI) me(c *fiber.Ctx) error {
	account, ok := middleware.AccountFromCtx(c)
	if !ok {
		return respond.Err(c, guard.ErrUnauthorized)
	}

	view, err := s.auth.Account(c.UserContext(), account.ID)
	if err != nil {
		return respond.Err(c, err)
	}

	return respond.OK(c, "", fiber.Map{"user": view})
}

func (s *serverAPI) sessions(c *fiber.Ctx) error {
	account, ok := middleware.AccountFromCtx(c)
	if !ok {
		return respond.Err(c, guard.ErrUnauthorized)
	}

	sessions, err := s.auth.Sessions(c.UserContext(), account.ID)
	if err != nil {
		return respond.Err(c, err)
	}

	views := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, sessionView{
			CreatedAt: session.CreatedAt.Unix(),
			ExpiresAt: session.ExpiresAt.Unix(),
		})
	}

	return respond.OK(c, "", fiber.Map{"sessions": views})
}

// sessionView deliberately omits the token itself: listing sessions must
// not hand out working credentials.
type sessionView struct {
	CreatedAt int64 `json:"created_at"`
	ExpiresAt int64 `json:"expires_at"`
}

func (s *serverAPI) updateAccount(c *fiber.Ctx) error {
	accountID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "invalid account id")
	}

	var payload updateAccountPayload
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return respond.Err(c, err)
	}

	view, err := s.auth.UpdateAccount(c.UserContext(), int64(accountID), models.AccountUpdate{
		FullName: payload.FullName,
		Role:     payload.Role,
		Active:   payload.Active,
	})
	if err != nil {
		return respond.Err(c, err)
	}

	return respond.OK(c, "account updated", fiber.Map{"user": view})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "Bad Request",
		"message": message,
	})
}
