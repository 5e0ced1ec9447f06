package httpx

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/devhivehq/devhive-backend/internal/service"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func requestID(c *fiber.Ctx) string {
	if v := c.Locals("requestid"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func Error(c *fiber.Ctx, status int, code string, message string) error {
	if message == "" {
		message = "Request failed"
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(c),
	})
}

func BadRequest(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusBadRequest, code, message)
}

func Unauthorized(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message)
}

func Forbidden(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusForbidden, code, message)
}

func NotFound(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusNotFound, code, message)
}

func Conflict(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusConflict, code, message)
}

func Internal(c *fiber.Ctx, code string) error {
	return Error(c, fiber.StatusInternalServerError, code, "Internal server error")
}

func Unavailable(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusServiceUnavailable, code, message)
}

// FromServiceError maps the service error taxonomy onto HTTP statuses so
// handlers don't repeat the same errors.Is ladder.
func FromServiceError(c *fiber.Ctx, code string, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return BadRequest(c, code, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		return Unauthorized(c, code, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return Forbidden(c, code, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return NotFound(c, code, err.Error())
	case errors.Is(err, service.ErrConflict):
		return Conflict(c, code, err.Error())
	case errors.Is(err, service.ErrTransient):
		return Unavailable(c, code, err.Error())
	default:
		return Internal(c, code)
	}
}

func LocalUint(c *fiber.Ctx, key string) (uint, error) {
	v := c.Locals(key)
	if v == nil {
		return 0, fmt.Errorf("missing local %s", key)
	}
	u, ok := v.(uint)
	if !ok {
		return 0, fmt.Errorf("invalid local %s", key)
	}
	return u, nil
}
