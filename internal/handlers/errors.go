package handlers

import (
	"log"

	"storefront/internal/apperrors"

	"github.com/gofiber/fiber/v2"
)

func statusFor(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return fiber.StatusBadRequest
	case apperrors.KindExternalService:
		return fiber.StatusBadGateway
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperrors.KindConflict:
		return fiber.StatusConflict
	case apperrors.KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as {message, errors?} with the status of its kind.
// Causes are logged, never returned to the client.
func respondError(c *fiber.Ctx, action string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("Error %s: %v", action, err)
	}

	body := fiber.Map{"message": apperrors.PublicMessage(err)}
	if fields := apperrors.FieldsOf(err); len(fields) > 0 {
		body["errors"] = fields
	}
	return c.Status(status).JSON(body)
}

func badRequestBody(c *fiber.Ctx, err error) error {
	log.Printf("Error parsing request body on %s: %v", c.Path(), err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
	})
}
