package middleware

import (
	"log/slog"
	"strings"

	"authd/internal/domain/models"
	"authd/internal/http/respond"
	"authd/internal/services/guard"

	"github.com/gofiber/fiber/v2"
)

const accountLocalsKey = "authd.account"

// Auth adapts the access guard to fiber handlers: it pulls the bearer
// token, authenticates it and stashes the resolved account in locals.
type Auth struct {
	log   *slog.Logger
	guard *guard.Guard
}

func NewAuth(log *slog.Logger, g *guard.Guard) *Auth {
	return &Auth{log: log, guard: g}
}

func (m *Auth) RequireAuth(c *fiber.Ctx) error {
	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return respond.Err(c, guard.ErrUnauthorized)
	}

	account, err := m.guard.Authenticate(c.UserContext(), token)
	if err != nil {
		return respond.Err(c, err)
	}

	c.Locals(accountLocalsKey, account)

	return c.Next()
}

// RequireRoles gates the route to the given roles. It must run after
// RequireAuth.
func (m *Auth) RequireRoles(roles ...models.AccountRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account, ok := AccountFromCtx(c)
		if !ok {
			return respond.Err(c, guard.ErrUnauthorized)
		}

		if err := m.guard.RequireRole(account, roles...); err != nil {
			return respond.Err(c, err)
		}

		return c.Next()
	}
}

func AccountFromCtx(c *fiber.Ctx) (models.Account, bool) {
	account, ok := c.Locals(accountLocalsKey).(models.Account)
	return account, ok
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
