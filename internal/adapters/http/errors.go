package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lukashofer/reisekosten/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, store_unavailable, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, 503, "store_unavailable", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// mapDomainError translates the engine's error taxonomy to a response.
// Validation and not-found errors are client-facing; store unavailability is
// a 503 so callers know the calculation did not complete.
func mapDomainError(c *fiber.Ctx, err error) error {
	switch {
	case domain.IsValidation(err):
		return errBadRequest(c, err.Error())
	case domain.IsNotFound(err):
		return errNotFound(c, err.Error())
	case domain.IsStoreUnavailable(err):
		return errUnavailable(c, err.Error())
	default:
		return errInternal(c, err.Error())
	}
}
