package guard_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"authd/internal/domain/models"
	"authd/internal/lib/jwt"
	"authd/internal/services/guard"
	"authd/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct {
	accounts map[int64]models.Account
}

func (f *fakeAccounts) AccountByID(_ context.Context, accountID int64) (models.Account, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return models.Account{}, storage.ErrAccountNotFound
	}
	return account, nil
}

func newTestGuard(accounts ...models.Account) (*guard.Guard, *jwt.Codec, *fakeAccounts) {
	store := &fakeAccounts{accounts: make(map[int64]models.Account)}
	for _, a := range accounts {
		store.accounts[a.ID] = a
	}

	codec := jwt.NewCodec("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return guard.New(log, codec, store), codec, store
}

func alice() models.Account {
	return models.Account{
		ID:     1,
		Email:  "alice@x.com",
		Role:   models.RoleUser,
		Active: true,
	}
}

func TestAuthenticate_HappyPath(t *testing.T) {
	g, codec, _ := newTestGuard(alice())

	token, err := codec.NewAccessToken(alice())
	require.NoError(t, err)

	account, err := g.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), account.ID)
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	g, _, _ := newTestGuard(alice())

	_, err := g.Authenticate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, guard.ErrUnauthorized)
}

func TestAuthenticate_RefreshTokenRejected(t *testing.T) {
	g, codec, _ := newTestGuard(alice())

	refreshToken, err := codec.NewRefreshToken(1)
	require.NoError(t, err)

	_, err = g.Authenticate(context.Background(), refreshToken)
	assert.ErrorIs(t, err, guard.ErrUnauthorized)
}

// A valid token for a deleted account must not authenticate: the account
// is re-resolved on every call, never trusted from the claims.
func TestAuthenticate_AccountGone(t *testing.T) {
	g, codec, store := newTestGuard(alice())

	token, err := codec.NewAccessToken(alice())
	require.NoError(t, err)

	delete(store.accounts, 1)

	_, err = g.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, guard.ErrUnauthorized)
}

// Deactivation takes effect immediately, not at token expiry.
func TestAuthenticate_AccountDeactivated(t *testing.T) {
	g, codec, store := newTestGuard(alice())

	token, err := codec.NewAccessToken(alice())
	require.NoError(t, err)

	deactivated := alice()
	deactivated.Active = false
	store.accounts[1] = deactivated

	_, err = g.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, guard.ErrAccountInactive)
}

// A demotion applies to in-flight tokens: the role carried by the token
// is ignored in favor of the stored one.
func TestAuthenticate_UsesStoredRole(t *testing.T) {
	adminAlice := alice()
	adminAlice.Role = models.RoleAdmin

	g, codec, store := newTestGuard(adminAlice)

	token, err := codec.NewAccessToken(adminAlice)
	require.NoError(t, err)

	demoted := adminAlice
	demoted.Role = models.RoleUser
	store.accounts[1] = demoted

	account, err := g.Authenticate(context.Background(), token)
	require.NoError(t, err)

	assert.ErrorIs(t, g.RequireRole(account, models.RoleAdmin), guard.ErrPermissionDenied)
}

func TestRequireRole(t *testing.T) {
	g, _, _ := newTestGuard()

	user := alice()
	admin := alice()
	admin.Role = models.RoleAdmin

	assert.NoError(t, g.RequireRole(user, models.RoleUser))
	assert.NoError(t, g.RequireRole(admin, models.RoleAdmin))
	assert.NoError(t, g.RequireRole(user, models.RoleAdmin, models.RoleUser))

	assert.ErrorIs(t, g.RequireRole(user, models.RoleAdmin), guard.ErrPermissionDenied)
	assert.ErrorIs(t, g.RequireRole(admin), guard.ErrPermissionDenied)
}
