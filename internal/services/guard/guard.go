package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"authd/internal/domain/models"
	"authd/internal/lib/jwt"
	"authd/internal/lib/logger/sl"
	"authd/internal/storage"
)

var (
	ErrUnauthorized     = errors.New("invalid token")
	ErrAccountInactive  = errors.New("account is inactive")
	ErrPermissionDenied = errors.New("permission denied")
)

type AccountProvider interface {
	AccountByID(ctx context.Context, accountID int64) (models.Account, error)
}

// Guard authorizes protected operations. It verifies the access token and
// re-resolves the account on every call instead of trusting the token's
// embedded snapshot, so role changes and deactivation take effect before
// the token expires.
type Guard struct {
	log      *slog.Logger
	codec    *jwt.Codec
	accounts AccountProvider
}

func New(log *slog.Logger, codec *jwt.Codec, accounts AccountProvider) *Guard {
	return &Guard{
		log:      log,
		codec:    codec,
		accounts: accounts,
	}
}

func (g *Guard) Authenticate(ctx context.Context, accessToken string) (models.Account, error) {
	const op = "Guard.Authenticate"

	log := g.log.With(slog.String("op", op))

	claims, err := g.codec.ParseAccess(accessToken)
	if err != nil {
		log.Info("access token rejected")
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	account, err := g.accounts.AccountByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Info("account gone for valid token", slog.Int64("account_id", claims.AccountID))
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}

		log.Error("failed to get account", sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	if !account.Active {
		log.Info("account is inactive", slog.Int64("account_id", account.ID))
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrAccountInactive)
	}

	return account, nil
}

func (g *Guard) RequireRole(account models.Account, roles ...models.AccountRole) error {
	const op = "Guard.RequireRole"

	for _, role := range roles {
		if account.Role == role {
			return nil
		}
	}

	g.log.With(slog.String("op", op)).Info("role not allowed",
		slog.Int64("account_id", account.ID),
		slog.String("role", string(account.Role)),
	)

	return fmt.Errorf("%s: %w", op, ErrPermissionDenied)
}
