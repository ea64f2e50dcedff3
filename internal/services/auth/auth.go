package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"authd/internal/domain/models"
	"authd/internal/lib/hasher"
	"authd/internal/lib/jwt"
	"authd/internal/lib/logger/sl"
	"authd/internal/storage"
)

var (
	// ErrInvalidCredentials covers both "no such email" and "wrong
	// password" so a caller cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRefreshToken covers bad signature, expiry, revocation and
	// unknown tokens uniformly.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	ErrAccountInactive = errors.New("account is inactive")
)

type Auth struct {
	log             *slog.Logger
	accountSaver    AccountSaver
	accountProvider AccountProvider
	sessionSaver    SessionSaver
	sessionProvider SessionProvider
	codec           *jwt.Codec
}

type AccountSaver interface {
	SaveAccount(ctx context.Context, username, email string, passHash []byte, fullName string, role models.AccountRole) (int64, error)
	UpdateAccount(ctx context.Context, accountID int64, upd models.AccountUpdate) error
	UpdateLastLogin(ctx context.Context, accountID int64) error
}

type AccountProvider interface {
	AccountByEmail(ctx context.Context, email string) (models.Account, error)
	AccountByUsername(ctx context.Context, username string) (models.Account, error)
	AccountByID(ctx context.Context, accountID int64) (models.Account, error)
}

type SessionSaver interface {
	SaveSession(ctx context.Context, accountID int64, token string, expiresAt time.Time) error
	RevokeSession(ctx context.Context, token string) error
	RevokeAccountSessions(ctx context.Context, accountID int64) error
}

type SessionProvider interface {
	Session(ctx context.Context, token string) (models.Session, error)
	AccountSessions(ctx context.Context, accountID int64) ([]models.Session, error)
}

// Result is what register and login hand back to the boundary: the public
// account view plus a fresh token pair.
type Result struct {
	Account models.AccountView `json:"user"`
	Tokens  models.TokenPair   `json:"tokens"`
}

func New(
	log *slog.Logger,
	accountSaver AccountSaver,
	accountProvider AccountProvider,
	sessionSaver SessionSaver,
	sessionProvider SessionProvider,
	codec *jwt.Codec,
) *Auth {
	return &Auth{
		log:             log,
		accountSaver:    accountSaver,
		accountProvider: accountProvider,
		sessionSaver:    sessionSaver,
		sessionProvider: sessionProvider,
		codec:           codec,
	}
}

// Register creates a new account, opens its first session and returns the
// account view with a token pair. New accounts always get the user role.
func (a *Auth) Register(ctx context.Context, params RegisterParams) (*Result, error) {
	const op = "Auth.Register"

	log := a.log.With(
		slog.String("op", op),
		slog.String("username", params.Username),
	)

	log.Info("registering account")

	if err := params.Validate(); err != nil {
		log.Info("validation failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := a.accountProvider.AccountByEmail(ctx, params.Email); err == nil {
		log.Info("email already in use")
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAccountExists)
	} else if !errors.Is(err, storage.ErrAccountNotFound) {
		log.Error("failed to check email", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := a.accountProvider.AccountByUsername(ctx, params.Username); err == nil {
		log.Info("username already in use")
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAccountExists)
	} else if !errors.Is(err, storage.ErrAccountNotFound) {
		log.Error("failed to check username", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := hasher.Hash(params.Password)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	fullName := params.FullName
	if fullName == "" {
		fullName = params.Username
	}

	id, err := a.accountSaver.SaveAccount(ctx, params.Username, params.Email, passHash, fullName, models.RoleUser)
	if err != nil {
		log.Error("failed to save account", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	account, err := a.accountProvider.AccountByID(ctx, id)
	if err != nil {
		log.Error("failed to load created account", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokens, err := a.issueSession(ctx, log, account)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("account registered", slog.Int64("account_id", account.ID))

	return &Result{Account: account.View(), Tokens: tokens}, nil
}

// Login verifies the credentials and opens a new session. Each login
// produces an independent session, so concurrent devices coexist.
func (a *Auth) Login(ctx context.Context, params LoginParams) (*Result, error) {
	const op = "Auth.Login"

	log := a.log.With(
		slog.String("op", op),
		slog.String("email", params.Email),
	)

	log.Info("attempting to login")

	if err := params.Validate(); err != nil {
		log.Info("validation failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	account, err := a.accountProvider.AccountByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Warn("account not found", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		log.Error("failed to get account", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !hasher.Verify(params.Password, account.PassHash) {
		log.Info("invalid credentials")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !account.Active {
		log.Info("account is inactive")
		return nil, fmt.Errorf("%s: %w", op, ErrAccountInactive)
	}

	tokens, err := a.issueSession(ctx, log, account)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logged in", slog.Int64("account_id", account.ID))

	return &Result{Account: account.View(), Tokens: tokens}, nil
}

// Refresh mints a new access token for a live refresh session. The refresh
// token itself is not rotated; it stays valid until expiry or logout.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (string, error) {
	const op = "Auth.Refresh"

	log := a.log.With(slog.String("op", op))

	log.Info("refreshing access token")

	claims, err := a.codec.ParseRefresh(refreshToken)
	if err != nil {
		log.Info("refresh token rejected", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	session, err := a.sessionProvider.Session(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			log.Info("no live session for token")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
		}

		log.Error("failed to look up session", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if session.AccountID != claims.AccountID {
		log.Warn("session owner mismatch")
		return "", fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	account, err := a.accountProvider.AccountByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			log.Info("account gone for live session")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
		}

		log.Error("failed to get account", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	accessToken, err := a.codec.NewAccessToken(account)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("access token refreshed", slog.Int64("account_id", account.ID))

	return accessToken, nil
}

// Logout revokes the supplied refresh token. It succeeds regardless of
// whether the token was live, revoked or never issued.
func (a *Auth) Logout(ctx context.Context, refreshToken string) error {
	const op = "Auth.Logout"

	log := a.log.With(slog.String("op", op))

	if refreshToken == "" {
		return nil
	}

	if err := a.sessionSaver.RevokeSession(ctx, refreshToken); err != nil {
		log.Error("failed to revoke session", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logged out")

	return nil
}

// LogoutAll revokes every live session for the account.
func (a *Auth) LogoutAll(ctx context.Context, accountID int64) error {
	const op = "Auth.LogoutAll"

	log := a.log.With(
		slog.String("op", op),
		slog.Int64("account_id", accountID),
	)

	if err := a.sessionSaver.RevokeAccountSessions(ctx, accountID); err != nil {
		log.Error("failed to revoke sessions", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logged out everywhere")

	return nil
}

// Account returns the public view for an already-authenticated account id.
func (a *Auth) Account(ctx context.Context, accountID int64) (models.AccountView, error) {
	const op = "Auth.Account"

	account, err := a.accountProvider.AccountByID(ctx, accountID)
	if err != nil {
		a.log.With(slog.String("op", op)).Error("failed to get account", sl.Err(err))
		return models.AccountView{}, fmt.Errorf("%s: %w", op, err)
	}

	return account.View(), nil
}

// Sessions lists the live sessions for the account.
func (a *Auth) Sessions(ctx context.Context, accountID int64) ([]models.Session, error) {
	const op = "Auth.Sessions"

	sessions, err := a.sessionProvider.AccountSessions(ctx, accountID)
	if err != nil {
		a.log.With(slog.String("op", op)).Error("failed to get sessions", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sessions, nil
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every outstanding session for the account.
func (a *Auth) ChangePassword(ctx context.Context, accountID int64, params ChangePasswordParams) error {
	const op = "Auth.ChangePassword"

	log := a.log.With(
		slog.String("op", op),
		slog.Int64("account_id", accountID),
	)

	log.Info("attempting to change password")

	if err := params.Validate(); err != nil {
		log.Info("validation failed", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	account, err := a.accountProvider.AccountByID(ctx, accountID)
	if err != nil {
		log.Error("failed to get account", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if !hasher.Verify(params.CurrentPassword, account.PassHash) {
		log.Info("invalid current password")
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	newPassHash, err := hasher.Hash(params.NewPassword)
	if err != nil {
		log.Error("failed to hash new password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.accountSaver.UpdateAccount(ctx, accountID, models.AccountUpdate{PassHash: newPassHash}); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	// A stolen refresh token must not outlive the password it was
	// issued under.
	if err := a.sessionSaver.RevokeAccountSessions(ctx, accountID); err != nil {
		log.Error("failed to revoke sessions", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed")

	return nil
}

// UpdateAccount applies an enumerated field update. A role or active
// change revokes the account's sessions so the old privileges cannot be
// refreshed back.
func (a *Auth) UpdateAccount(ctx context.Context, accountID int64, upd models.AccountUpdate) (models.AccountView, error) {
	const op = "Auth.UpdateAccount"

	log := a.log.With(
		slog.String("op", op),
		slog.Int64("account_id", accountID),
	)

	log.Info("updating account")

	if err := a.accountSaver.UpdateAccount(ctx, accountID, upd); err != nil {
		log.Error("failed to update account", sl.Err(err))
		return models.AccountView{}, fmt.Errorf("%s: %w", op, err)
	}

	if upd.Role != nil || upd.Active != nil {
		if err := a.sessionSaver.RevokeAccountSessions(ctx, accountID); err != nil {
			log.Error("failed to revoke sessions", sl.Err(err))
			return models.AccountView{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	account, err := a.accountProvider.AccountByID(ctx, accountID)
	if err != nil {
		log.Error("failed to load updated account", sl.Err(err))
		return models.AccountView{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("account updated")

	return account.View(), nil
}

// issueSession mints a token pair, persists the refresh half and bumps
// last_login.
func (a *Auth) issueSession(ctx context.Context, log *slog.Logger, account models.Account) (models.TokenPair, error) {
	accessToken, err := a.codec.NewAccessToken(account)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return models.TokenPair{}, err
	}

	refreshToken, err := a.codec.NewRefreshToken(account.ID)
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return models.TokenPair{}, err
	}

	expiresAt := time.Now().Add(a.codec.RefreshTTL())

	if err := a.sessionSaver.SaveSession(ctx, account.ID, refreshToken, expiresAt); err != nil {
		log.Error("failed to save session", sl.Err(err))
		return models.TokenPair{}, err
	}

	if err := a.accountSaver.UpdateLastLogin(ctx, account.ID); err != nil {
		log.Error("failed to update last login", sl.Err(err))
		return models.TokenPair{}, err
	}

	return models.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
