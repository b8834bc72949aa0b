package apiv1

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Agape/internal/pkg/apperr"
)

var errBadID = errors.New("id must be a positive integer")

// statusFor maps the core error kinds to HTTP statuses
func statusFor(err error) (int, string) {
	switch apperr.Kind(err) {
	case apperr.ErrInvalidState, apperr.ErrDuplicate:
		return fiber.StatusConflict, "conflict"
	case apperr.ErrInvalidArgument, apperr.ErrInvalidAmount:
		return fiber.StatusBadRequest, "bad_request"
	case apperr.ErrInsufficientFunds, apperr.ErrNotQueued:
		return fiber.StatusUnprocessableEntity, "unprocessable_entity"
	case apperr.ErrNotFound:
		return fiber.StatusNotFound, "not_found"
	case apperr.ErrTransient:
		return fiber.StatusServiceUnavailable, "service_unavailable"
	default:
		return fiber.StatusInternalServerError, "internal_server_error"
	}
}

func writeError(c *fiber.Ctx, err error) error {
	status, code := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": code, "message": "Internal error"})
	}
	if status == fiber.StatusServiceUnavailable {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": msg})
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return uint(id), nil
}
