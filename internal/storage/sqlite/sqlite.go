package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"authd/internal/domain/models"
	"authd/internal/storage"

	"github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveAccount(ctx context.Context, username, email string, passHash []byte, fullName string, role models.AccountRole) (int64, error) {
	const op = "storage.sqlite.SaveAccount"

	stmt, err := s.db.Prepare(`
		INSERT INTO accounts (username, email, pass_hash, full_name, role)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, username, email, passHash, fullName, role)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrAccountExists)
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) AccountByEmail(ctx context.Context, email string) (models.Account, error) {
	const op = "storage.sqlite.AccountByEmail"

	return s.account(ctx, op, "email = ?", email)
}

func (s *Storage) AccountByUsername(ctx context.Context, username string) (models.Account, error) {
	const op = "storage.sqlite.AccountByUsername"

	return s.account(ctx, op, "username = ?", username)
}

func (s *Storage) AccountByID(ctx context.Context, accountID int64) (models.Account, error) {
	const op = "storage.sqlite.AccountByID"

	return s.account(ctx, op, "id = ?", accountID)
}

func (s *Storage) account(ctx context.Context, op, where string, arg any) (models.Account, error) {
	stmt, err := s.db.Prepare(`
		SELECT id, username, email, pass_hash, full_name, role, active, last_login, created_at, updated_at
		FROM accounts WHERE ` + where)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var (
		account   models.Account
		lastLogin sql.NullTime
	)
	err = stmt.QueryRowContext(ctx, arg).Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PassHash,
		&account.FullName,
		&account.Role,
		&account.Active,
		&lastLogin,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
		}
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	if lastLogin.Valid {
		account.LastLogin = lastLogin.Time
	}

	return account, nil
}

func (s *Storage) UpdateLastLogin(ctx context.Context, accountID int64) error {
	const op = "storage.sqlite.UpdateLastLogin"

	stmt, err := s.db.Prepare("UPDATE accounts SET last_login = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = ?")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UpdateAccount applies the enumerated update fields. Arbitrary columns
// cannot be reached through this path.
func (s *Storage) UpdateAccount(ctx context.Context, accountID int64, upd models.AccountUpdate) error {
	const op = "storage.sqlite.UpdateAccount"

	set := make([]string, 0, 4)
	args := make([]any, 0, 5)

	if upd.FullName != nil {
		set = append(set, "full_name = ?")
		args = append(args, *upd.FullName)
	}
	if upd.Role != nil {
		set = append(set, "role = ?")
		args = append(args, *upd.Role)
	}
	if upd.Active != nil {
		set = append(set, "active = ?")
		args = append(args, *upd.Active)
	}
	if upd.PassHash != nil {
		set = append(set, "pass_hash = ?")
		args = append(args, upd.PassHash)
	}

	if len(set) == 0 {
		return nil
	}

	set = append(set, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, accountID)

	query := fmt.Sprintf("UPDATE accounts SET %s WHERE id = ?", strings.Join(set, ", "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAccountNotFound)
	}

	return nil
}

func (s *Storage) SaveSession(ctx context.Context, accountID int64, token string, expiresAt time.Time) error {
	const op = "storage.sqlite.SaveSession"

	stmt, err := s.db.Prepare(`
		INSERT INTO refresh_sessions (account_id, token, expires_at)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, accountID, token, expiresAt.UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%s: %w", op, storage.ErrSessionExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Session returns the session for token only while it is live. Expired,
// revoked and unknown tokens are indistinguishable to the caller.
func (s *Storage) Session(ctx context.Context, token string) (models.Session, error) {
	const op = "storage.sqlite.Session"

	stmt, err := s.db.Prepare(`
		SELECT id, account_id, token, expires_at, revoked, created_at
		FROM refresh_sessions WHERE token = ? AND revoked = 0 AND expires_at > ?
	`)
	if err != nil {
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var session models.Session
	err = stmt.QueryRowContext(ctx, token, time.Now().UTC()).Scan(
		&session.ID,
		&session.AccountID,
		&session.Token,
		&session.ExpiresAt,
		&session.Revoked,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Session{}, fmt.Errorf("%s: %w", op, storage.ErrSessionNotFound)
		}
		return models.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	return session, nil
}

func (s *Storage) AccountSessions(ctx context.Context, accountID int64) ([]models.Session, error) {
	const op = "storage.sqlite.AccountSessions"

	stmt, err := s.db.Prepare(`
		SELECT id, account_id, token, expires_at, revoked, created_at
		FROM refresh_sessions WHERE account_id = ? AND revoked = 0 AND expires_at > ?
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, accountID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		err := rows.Scan(
			&session.ID,
			&session.AccountID,
			&session.Token,
			&session.ExpiresAt,
			&session.Revoked,
			&session.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sessions, nil
}

// RevokeSession is idempotent: revoking an already-revoked or unknown
// token is a no-op.
func (s *Storage) RevokeSession(ctx context.Context, token string) error {
	const op = "storage.sqlite.RevokeSession"

	stmt, err := s.db.Prepare("UPDATE refresh_sessions SET revoked = 1 WHERE token = ?")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) RevokeAccountSessions(ctx context.Context, accountID int64) error {
	const op = "storage.sqlite.RevokeAccountSessions"

	stmt, err := s.db.Prepare("UPDATE refresh_sessions SET revoked = 1 WHERE account_id = ?")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
