package models

import "time"

// Session is one issued refresh token. Rows are revoked, never deleted,
// so the history of issued tokens survives for audit.
type Session struct {
	ID        int64
	AccountID int64
	Token     string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Live reports whether the session can still mint access tokens.
func (s Session) Live(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}
