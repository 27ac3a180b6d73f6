package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/placemap/internal/core/domain"
	"github.com/samirrijal/placemap/internal/core/usecases"
)

// APIError is a structured error response.
type APIError struct {
	Status    int                     `json:"status"`
	Code      string                  `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string                  `json:"message"` // Human-readable message
	RequestID string                  `json:"request_id,omitempty"`
	Session   *domain.SessionSnapshot `json:"session,omitempty"`
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

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errBadGateway returns a 502 error.
func errBadGateway(c *fiber.Ctx, msg string) error {
	return newError(c, 502, "upstream_error", msg)
}

// searchError maps a failed session operation to a response. The session
// snapshot is attached so the client can redraw and show the notice.
func searchError(c *fiber.Ctx, err error, snap *domain.SessionSnapshot) error {
	status, code := 500, "internal_error"
	noticed := true
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status, code = 404, "not_found"
		snap, noticed = nil, false
	case errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrMissingEndpoint),
		errors.Is(err, domain.ErrInvalidCoordinate):
		status, code = 400, "bad_request"
	case errors.Is(err, domain.ErrPlaceNotFound),
		errors.Is(err, domain.ErrRouteResolution):
		status, code = 422, "unprocessable"
	case errors.Is(err, domain.ErrSuperseded):
		status, code = 409, "conflict"
		noticed = false
	case errors.Is(err, domain.ErrMapNotReady):
		status, code = 409, "not_ready"
	case errors.Is(err, usecases.ErrSessionLimit):
		status, code = 503, "unavailable"
		noticed = false
	}

	message := err.Error()
	if noticed && snap != nil && snap.LastNotice != nil {
		message = snap.LastNotice.Message
	}

	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
		Session:   snap,
	})
}
