package middleware

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pcgarena/internal/store"
)

// ErrNotAdmin is returned when the caller authenticated but is not an admin.
var ErrNotAdmin = errors.New("middleware: not an admin")

// RequireAdmin accepts either the configured bearer key or a session
// belonging to a user flagged is_admin. Bearer key is checked first since
// it requires no storage round trip. The configured admin email list is not
// consulted: a session counts as admin only when its user has is_admin set.
func RequireAdmin(st *store.Store, bearerKey string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if bearerKey != "" && bearerMatches(c.Get(fiber.HeaderAuthorization), bearerKey) {
			return c.Next()
		}

		token := c.Cookies(SessionCookieName)
		if token == "" {
			return forbidden(c)
		}

		sess, err := st.GetSessionByToken(c.Context(), token)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logger.Error("session lookup failed", zap.Error(err))
			}
			return forbidden(c)
		}
		if sess.ExpiresAt.Time.Before(time.Now()) {
			return forbidden(c)
		}

		user, err := st.GetUserByID(c.Context(), sess.UserID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logger.Error("user lookup failed", zap.Error(err))
			}
			return forbidden(c)
		}
		if !user.IsAdmin {
			return forbidden(c)
		}

		c.Locals(UserIDKey, sess.UserID)
		return c.Next()
	}
}

func bearerMatches(header, expected string) bool {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	presented := header[len(prefix):]
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"error": fiber.Map{
			"code":      "FORBIDDEN",
			"message":   "admin access required",
			"retryable": false,
		},
	})
}
