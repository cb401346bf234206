package ratelimit

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Middleware builds a fiber.Handler enforcing l against the requesting
// client's IP, returning 429 with retryable=true on breach per the
// standard error envelope.
func Middleware(l *Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(c.IP(), time.Now()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"protocol_version": "arena/v0",
				"error": fiber.Map{
					"code":      "RATE_LIMITED",
					"message":   "rate limit exceeded",
					"retryable": true,
				},
			})
		}
		return c.Next()
	}
}
