package authhttp

import (
	"authd/internal/domain/models"

	validation "github.com/go-ozzo/ozzo-validation"
)

type updateAccountPayload struct {
	FullName *string             `json:"full_name"`
	Role     *models.AccountRole `json:"role"`
	Active   *bool               `json:"active"`
}

func (p updateAccountPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FullName, validation.Length(0, 100)),
		validation.Field(&p.Role, validation.In(models.RoleUser, models.RoleAdmin)),
	)
}
