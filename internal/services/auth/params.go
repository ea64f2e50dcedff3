package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type RegisterParams struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FullName        string `json:"full_name"`
}

// Validate checks every rule and reports all violations at once.
func (p RegisterParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, validation.Required, validation.Length(3, 30)),
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&p.ConfirmPassword, validation.Required, validation.By(stringEquals(p.Password, "must match password"))),
		validation.Field(&p.FullName, validation.Length(0, 100)),
	)
}

type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p LoginParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
	)
}

type ChangePasswordParams struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (p ChangePasswordParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.CurrentPassword, validation.Required),
		validation.Field(&p.NewPassword, validation.Required, validation.Length(6, 100)),
		validation.Field(&p.ConfirmPassword, validation.Required, validation.By(stringEquals(p.NewPassword, "must match new password"))),
	)
}

func stringEquals(other, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != other {
			return errors.New(message)
		}
		return nil
	}
}
