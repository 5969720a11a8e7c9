package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, validation_failed, etc.
	Message   string `json:"message"` // Human-readable message
	Field     string `json:"field,omitempty"`
	Step      *int   `json:"step,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	return sendError(c, APIError{Status: status, Code: code, Message: message})
}

func sendError(c *fiber.Ctx, e APIError) error {
	e.RequestID, _ = c.Locals("requestid").(string)
	return c.Status(e.Status).JSON(e)
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errUnauthorized returns a 401 error.
func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnauthorized, "unauthorized", msg)
}

// errForbidden returns a 403 error.
func errForbidden(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusForbidden, "forbidden", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusConflict, "conflict", msg)
}

// errFromDomain maps a usecase error to its HTTP response. Unknown errors
// are logged and reported as a generic 500.
func errFromDomain(c *fiber.Ctx, err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		e := APIError{
			Status:  fiber.StatusUnprocessableEntity,
			Code:    "validation_failed",
			Message: ve.Reason,
			Field:   ve.Field,
		}
		if ve.Step >= 0 {
			step := ve.Step
			e.Step = &step
		}
		return sendError(c, e)
	}

	var se *domain.SubmissionError
	if errors.As(err, &se) {
		logging.FromContext(c.UserContext()).Warn("submission failed", "error", err)
		return newError(c, fiber.StatusBadGateway, "submission_failed", se.Cause.Error())
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, "resource not found")
	case errors.Is(err, domain.ErrUnauthorized):
		return errUnauthorized(c, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return errForbidden(c, "not allowed")
	case errors.Is(err, domain.ErrSubmissionInFlight),
		errors.Is(err, domain.ErrSupersededSubmission),
		errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrConfirmationPending),
		errors.Is(err, domain.ErrStepNotVisited),
		errors.Is(err, domain.ErrConflict):
		return errConflict(c, err.Error())
	}

	logging.FromContext(c.UserContext()).Error("request failed", "error", err)
	return errInternal(c, "internal error")
}
