// Package respond maps service errors onto the JSON error envelope and
// status codes the API exposes. Internal failures are always presented
// generically.
package respond

import (
	"errors"
	"fmt"
	"sort"

	"authd/internal/services/auth"
	"authd/internal/services/guard"
	"authd/internal/storage"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

func OK(c *fiber.Ctx, message string, data any) error {
	body := fiber.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(body)
}

func Created(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func Err(c *fiber.Ctx, err error) error {
	var verrs validation.Errors

	switch {
	case errors.As(err, &verrs):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    "Validation Error",
			"messages": validationMessages(verrs),
		})
	case errors.Is(err, storage.ErrAccountExists):
		return clientError(c, fiber.StatusBadRequest, "username or email already in use")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return clientError(c, fiber.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		return clientError(c, fiber.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, guard.ErrUnauthorized):
		return clientError(c, fiber.StatusUnauthorized, "invalid token")
	case errors.Is(err, auth.ErrAccountInactive), errors.Is(err, guard.ErrAccountInactive):
		return clientError(c, fiber.StatusForbidden, "account is disabled")
	case errors.Is(err, guard.ErrPermissionDenied):
		return clientError(c, fiber.StatusForbidden, "permission denied")
	case errors.Is(err, storage.ErrAccountNotFound):
		return clientError(c, fiber.StatusNotFound, "account not found")
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "something went wrong",
		})
	}
}

func clientError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   utils.StatusMessage(status),
		"message": message,
	})
}

func validationMessages(verrs validation.Errors) []string {
	fields := make([]string, 0, len(verrs))
	for field := range verrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(verrs))
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s: %s", field, verrs[field]))
	}
	return messages
}
