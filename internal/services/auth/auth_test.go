package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"authd/internal/domain/models"
	"authd/internal/lib/jwt"
	"authd/internal/services/auth"
	"authd/internal/storage"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]models.Account
	sessions map[string]models.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[int64]models.Account),
		sessions: make(map[string]models.Session),
	}
}

func (f *fakeStore) SaveAccount(_ context.Context, username, email string, passHash []byte, fullName string, role models.AccountRole) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.accounts {
		if a.Email == email || a.Username == username {
			return 0, storage.ErrAccountExists
		}
	}

	f.nextID++
	f.accounts[f.nextID] = models.Account{
		ID:        f.nextID,
		Username:  username,
		Email:     email,
		PassHash:  passHash,
		FullName:  fullName,
		Role:      role,
		Active:    true,
		CreatedAt: time.Now(),
	}

	return f.nextID, nil
}

func (f *fakeStore) AccountByEmail(_ context.Context, email string) (models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return models.Account{}, storage.ErrAccountNotFound
}

func (f *fakeStore) AccountByUsername(_ context.Context, username string) (models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return models.Account{}, storage.ErrAccountNotFound
}

func (f *fakeStore) AccountByID(_ context.Context, accountID int64) (models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[accountID]
	if !ok {
		return models.Account{}, storage.ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeStore) UpdateAccount(_ context.Context, accountID int64, upd models.AccountUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}

	if upd.FullName != nil {
		account.FullName = *upd.FullName
	}
	if upd.Role != nil {
		account.Role = *upd.Role
	}
	if upd.Active != nil {
		account.Active = *upd.Active
	}
	if upd.PassHash != nil {
		account.PassHash = upd.PassHash
	}
	account.UpdatedAt = time.Now()

	f.accounts[accountID] = account
	return nil
}

func (f *fakeStore) UpdateLastLogin(_ context.Context, accountID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[accountID]
	if !ok {
		return storage.ErrAccountNotFound
	}
	account.LastLogin = time.Now()
	f.accounts[accountID] = account
	return nil
}

func (f *fakeStore) SaveSession(_ context.Context, accountID int64, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.sessions[token]; ok {
		return storage.ErrSessionExists
	}

	f.sessions[token] = models.Session{
		ID:        int64(len(f.sessions) + 1),
		AccountID: accountID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeStore) Session(_ context.Context, token string) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[token]
	if !ok || !session.Live(time.Now()) {
		return models.Session{}, storage.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeStore) AccountSessions(_ context.Context, accountID int64) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var sessions []models.Session
	for _, session := range f.sessions {
		if session.AccountID == accountID && session.Live(time.Now()) {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (f *fakeStore) RevokeSession(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if session, ok := f.sessions[token]; ok {
		session.Revoked = true
		f.sessions[token] = session
	}
	return nil
}

func (f *fakeStore) RevokeAccountSessions(_ context.Context, accountID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for token, session := range f.sessions {
		if session.AccountID == accountID {
			session.Revoked = true
			f.sessions[token] = session
		}
	}
	return nil
}

func (f *fakeStore) liveSessions(accountID int64) int {
	sessions, _ := f.AccountSessions(context.Background(), accountID)
	return len(sessions)
}

func newTestAuth(t *testing.T) (*auth.Auth, *fakeStore, *jwt.Codec) {
	t.Helper()

	store := newFakeStore()
	codec := jwt.NewCodec("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return auth.New(log, store, store, store, store, codec), store, codec
}

func aliceParams() auth.RegisterParams {
	return auth.RegisterParams{
		Username:        "alice",
		Email:           "alice@x.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		FullName:        "Alice Doe",
	}
}

func TestRegister_HappyPath(t *testing.T) {
	ctx := context.Background()
	service, store, codec := newTestAuth(t)

	result, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	assert.Equal(t, models.RoleUser, result.Account.Role)
	assert.Equal(t, "alice", result.Account.Username)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)

	claims, err := codec.ParseAccess(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.Account.ID, claims.AccountID)
	assert.Equal(t, "alice@x.com", claims.Email)
	assert.Equal(t, models.RoleUser, claims.Role)

	assert.Equal(t, 1, store.liveSessions(result.Account.ID))
}

func TestRegister_DefaultsFullNameToUsername(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuth(t)

	params := aliceParams()
	params.FullName = ""

	result, err := service.Register(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, "alice", result.Account.FullName)
}

func TestRegister_ValidationReportsAllViolations(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuth(t)

	_, err := service.Register(ctx, auth.RegisterParams{
		Username:        "ab",
		Email:           "not-an-email",
		Password:        "abc",
		ConfirmPassword: "xyz",
	})
	require.Error(t, err)

	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)

	assert.Contains(t, verrs, "username")
	assert.Contains(t, verrs, "email")
	assert.Contains(t, verrs, "password")
	assert.Contains(t, verrs, "confirmPassword")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuth(t)

	_, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	params := aliceParams()
	params.Username = "alice2"

	_, err = service.Register(ctx, params)
	assert.ErrorIs(t, err, storage.ErrAccountExists)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuth(t)

	_, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	params := aliceParams()
	params.Email = "alice2@x.com"

	_, err = service.Register(ctx, params)
	assert.ErrorIs(t, err, storage.ErrAccountExists)
}

// Wrong password and unknown email must be indistinguishable, so a caller
// cannot probe which emails have accounts.
func TestLogin_IndistinguishableFailures(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuth(t)

	_, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	_, errWrongPass := service.Login(ctx, auth.LoginParams{Email: "alice@x.com", Password: "wrong-pass"})
	_, errNoAccount := service.Login(ctx, auth.LoginParams{Email: "nobody@x.com", Password: "whatever"})

	require.ErrorIs(t, errWrongPass, auth.ErrInvalidCredentials)
	require.ErrorIs(t, errNoAccount, auth.ErrInvalidCredentials)
	assert.Equal(t, errWrongPass.Error(), errNoAccount.Error())
}

func TestLogin_InactiveAccount(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestAuth(t)

	result, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	inactive := false
	require.NoError(t, store.UpdateAccount(ctx, result.Account.ID, models.AccountUpdate{Active: &inactive}))

	_, err = service.Login(ctx, auth.LoginParams{Email: "alice@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, auth.ErrAccountInactive)
}

func TestLogin_SecondIndependentSession(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestAuth(t)

	registered, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)
	assert.Equal(t, 1, store.liveSessions(registered.Account.ID))

	loggedIn, err := service.Login(ctx, auth.LoginParams{Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	assert.NotEqual(t, registered.Tokens.RefreshToken, loggedIn.Tokens.RefreshToken)
	assert.Equal(t, 2, store.liveSessions(registered.Account.ID))
}

func TestRefresh_IssuesNewAccessToken(t *testing.T) {
	ctx := context.Background()
	service, _, codec := newTestAuth(t)

	result, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	accessToken, err := service.Refresh(ctx, result.Tokens.RefreshToken)
	require.NoError(t, err)

	claims, err := codec.ParseAccess(accessToken)
	require.NoError(t, err)
	assert.Equal(t, result.Account.ID, claims.AccountID)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuth(t)

	result, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	_, err = service.Refresh(ctx, result.Tokens.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestRefresh_AfterLogout(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuth(t)

	result, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	require.NoError(t, service.Logout(ctx, result.Tokens.RefreshToken))

	_, err = service.Refresh(ctx, result.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestLogout_Idempotent(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuth(t)

	result, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	require.NoError(t, service.Logout(ctx, result.Tokens.RefreshToken))
	require.NoError(t, service.Logout(ctx, result.Tokens.RefreshToken))
	require.NoError(t, service.Logout(ctx, "never-issued"))
	require.NoError(t, service.Logout(ctx, ""))
}

func TestLogoutAll_RevokesEverySession(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestAuth(t)

	registered, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	loggedIn, err := service.Login(ctx, auth.LoginParams{Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, service.LogoutAll(ctx, registered.Account.ID))

	assert.Equal(t, 0, store.liveSessions(registered.Account.ID))

	_, err = service.Refresh(ctx, registered.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

	_, err = service.Refresh(ctx, loggedIn.Tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuth(t)

	result, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	err = service.ChangePassword(ctx, result.Account.ID, auth.ChangePasswordParams{
		CurrentPassword: "wrong-pass",
		NewPassword:     "secret2",
		ConfirmPassword: "secret2",
	})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestChangePassword_RevokesSessions(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestAuth(t)

	result, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	err = service.ChangePassword(ctx, result.Account.ID, auth.ChangePasswordParams{
		CurrentPassword: "secret1",
		NewPassword:     "secret2",
		ConfirmPassword: "secret2",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, store.liveSessions(result.Account.ID))

	_, err = service.Login(ctx, auth.LoginParams{Email: "alice@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = service.Login(ctx, auth.LoginParams{Email: "alice@x.com", Password: "secret2"})
	assert.NoError(t, err)
}

func TestUpdateAccount_RoleChangeRevokesSessions(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestAuth(t)

	result, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)
	require.Equal(t, 1, store.liveSessions(result.Account.ID))

	admin := models.RoleAdmin
	view, err := service.UpdateAccount(ctx, result.Account.ID, models.AccountUpdate{Role: &admin})
	require.NoError(t, err)

	assert.Equal(t, models.RoleAdmin, view.Role)
	assert.Equal(t, 0, store.liveSessions(result.Account.ID))
}

func TestUpdateAccount_FullNameOnlyKeepsSessions(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestAuth(t)

	result, err := service.Register(ctx, aliceParams())
	require.NoError(t, err)

	name := "Alice B. Doe"
	view, err := service.UpdateAccount(ctx, result.Account.ID, models.AccountUpdate{FullName: &name})
	require.NoError(t, err)

	assert.Equal(t, "Alice B. Doe", view.FullName)
	assert.Equal(t, 1, store.liveSessions(result.Account.ID))
}

func TestAccount_NotFound(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestAuth(t)

	_, err := service.Account(ctx, 999)
	assert.True(t, errors.Is(err, storage.ErrAccountNotFound))
}
