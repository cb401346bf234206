// Package apierr renders the single JSON error envelope shape used across
// every route: protocol_version plus a {code, message, retryable} error.
package apierr

import "github.com/gofiber/fiber/v2"

const protocolVersion = "arena/v0"

// Write sends the standard error envelope with the given HTTP status.
func Write(c *fiber.Ctx, status int, code, message string, retryable bool) error {
	return c.Status(status).JSON(fiber.Map{
		"protocol_version": protocolVersion,
		"error": fiber.Map{
			"code":      code,
			"message":   message,
			"retryable": retryable,
		},
	})
}

// Validation writes a 400 non-retryable validation error.
func Validation(c *fiber.Ctx, code, message string) error {
	return Write(c, fiber.StatusBadRequest, code, message, false)
}

// Internal writes a 500 retryable internal error, never leaking message detail.
func Internal(c *fiber.Ctx) error {
	return Write(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", true)
}
