package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/CRM-api/internal/application/dto"
	"github.com/jhoicas/CRM-api/internal/domain"
)

// errorStatus traduce errores de dominio a estado HTTP y código.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnknownSource):
		return fiber.StatusBadRequest, "UNKNOWN_SOURCE"
	case errors.Is(err, domain.ErrClosingNoteRequired):
		return fiber.StatusBadRequest, "CLOSING_NOTE_REQUIRED"
	case errors.Is(err, domain.ErrInvalidIdentity):
		return fiber.StatusBadRequest, "INVALID_EMAIL"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrMalformedRecord):
		return fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrConflictRetryExhausted), errors.Is(err, domain.ErrDuplicate):
		return fiber.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrUpstreamRateLimited):
		return fiber.StatusTooManyRequests, "UPSTREAM_RATE_LIMITED"
	case errors.Is(err, domain.ErrTransportFailure):
		return fiber.StatusBadGateway, "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, domain.ErrPaginationLoop):
		return fiber.StatusBadGateway, "PAGINATION_LOOP"
	}
	return fiber.StatusInternalServerError, "INTERNAL"
}

func writeError(c *fiber.Ctx, err error) error {
	status, code := errorStatus(err)
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
