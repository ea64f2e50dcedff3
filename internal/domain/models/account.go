package models

import (
	"time"
)

type AccountRole string

const (
	RoleUser  AccountRole = "user"
	RoleAdmin AccountRole = "admin"
)

type Account struct {
	ID        int64
	Username  string
	Email     string
	PassHash  []byte
	FullName  string
	Role      AccountRole
	Active    bool
	LastLogin time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// View returns the public projection of the account. The password hash
// never leaves the service through this path.
func (a Account) View() AccountView {
	return AccountView{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		FullName:  a.FullName,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		LastLogin: a.LastLogin,
	}
}

type AccountView struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FullName  string      `json:"full_name"`
	Role      AccountRole `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	LastLogin time.Time   `json:"last_login"`
}

// AccountUpdate enumerates the only fields the domain allows to change.
// A nil field is left untouched.
type AccountUpdate struct {
	FullName *string
	Role     *AccountRole
	Active   *bool
	PassHash []byte
}
