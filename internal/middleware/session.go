// Package middleware holds the fiber handlers shared across route groups:
// session authentication and admin authorization.
package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pcgarena/internal/store"
)

const (
	// SessionCookieName is the HTTP-only cookie carrying the opaque session token.
	SessionCookieName = "pcgarena_session"
	// UserIDKey is the fiber.Locals key holding the authenticated user id.
	UserIDKey = "user_id"
	// SessionTokenKey is the fiber.Locals key holding the raw session token.
	SessionTokenKey = "session_token"
)

// ErrUnauthenticated is returned by RequireSession when no valid session is present.
var ErrUnauthenticated = errors.New("middleware: no valid session")

// OptionalSession decodes a session cookie when present and stashes the
// user id in locals, but never rejects the request — used ahead of routes
// like battles:next that work for anonymous sessions too.
func OptionalSession(st *store.Store, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookieName)
		if token == "" {
			return c.Next()
		}

		sess, err := st.GetSessionByToken(c.Context(), token)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logger.Warn("session lookup failed", zap.Error(err))
			}
			return c.Next()
		}
		if sess.ExpiresAt.Time.Before(time.Now()) {
			return c.Next()
		}

		c.Locals(UserIDKey, sess.UserID)
		c.Locals(SessionTokenKey, sess.Token)
		return c.Next()
	}
}

// RequireSession rejects any request without a valid, unexpired session,
// used on every mutating builder/admin endpoint.
func RequireSession(st *store.Store, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookieName)
		if token == "" {
			return unauthorized(c)
		}

		sess, err := st.GetSessionByToken(c.Context(), token)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logger.Error("session lookup failed", zap.Error(err))
			}
			return unauthorized(c)
		}
		if sess.ExpiresAt.Time.Before(time.Now()) {
			return unauthorized(c)
		}

		c.Locals(UserIDKey, sess.UserID)
		c.Locals(SessionTokenKey, sess.Token)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"error": fiber.Map{
			"code":      "UNAUTHENTICATED",
			"message":   "a valid session is required",
			"retryable": false,
		},
	})
}

// UserID retrieves the authenticated user id set by OptionalSession or
// RequireSession, if any.
func UserID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(UserIDKey).(string)
	return id, ok
}
