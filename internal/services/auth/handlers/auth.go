// Package handlers adapts the auth Service to fiber routes.
package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pcgarena/internal/apierr"
	"pcgarena/internal/middleware"
	"pcgarena/internal/services/auth"
)

type Handlers struct {
	svc           auth.Service
	logger        *zap.Logger
	secureCookies bool
}

// New builds the auth Handlers. publicURL determines whether the session
// cookie is marked Secure: only over an https:// public URL, never on
// plain http (spec §4.5: "Secure (when over TLS)").
func New(svc auth.Service, logger *zap.Logger, publicURL string) *Handlers {
	return &Handlers{svc: svc, logger: logger, secureCookies: strings.HasPrefix(publicURL, "https://")}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Register handles POST /v1/auth/register. The response is identical
// whether or not the email is already taken, so the endpoint cannot be used
// to enumerate registered accounts.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.Validation(c, "INVALID_PAYLOAD", "malformed request body")
	}
	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		return apierr.Validation(c, "INVALID_PAYLOAD", "email, password, and display_name are required")
	}

	if err := h.svc.Register(c.Context(), req.Email, req.Password, req.DisplayName); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			return apierr.Validation(c, "INVALID_PAYLOAD", "malformed email address")
		case errors.Is(err, auth.ErrWeakPassword):
			return apierr.Validation(c, "INVALID_PAYLOAD", "password must be at least 8 characters with upper, lower, and digit")
		default:
			h.logger.Error("register failed", zap.Error(err))
			return apierr.Internal(c)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"message":          "if the email is not already registered, a verification link has been sent",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /v1/auth/login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.Validation(c, "INVALID_PAYLOAD", "malformed request body")
	}
	if req.Email == "" || req.Password == "" {
		return apierr.Validation(c, "INVALID_PAYLOAD", "email and password are required")
	}

	sess, err := h.svc.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return apierr.Write(c, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", false)
		case errors.Is(err, auth.ErrEmailNotVerified):
			return apierr.Write(c, fiber.StatusForbidden, "EMAIL_NOT_VERIFIED", "verify your email before logging in", false)
		default:
			h.logger.Error("login failed", zap.Error(err))
			return apierr.Internal(c)
		}
	}

	h.setSessionCookie(c, sess.Token)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"user_id":          sess.User.ID,
		"display_name":     sess.User.DisplayName,
	})
}

type googleRequest struct {
	IDToken string `json:"id_token"`
}

// Google handles POST /v1/auth/google (external-login via Google ID token).
func (h *Handlers) Google(c *fiber.Ctx) error {
	var req googleRequest
	if err := c.BodyParser(&req); err != nil || req.IDToken == "" {
		return apierr.Validation(c, "INVALID_PAYLOAD", "id_token is required")
	}

	sess, err := h.svc.ExternalLogin(c.Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, auth.ErrExternalTokenInvalid) {
			return apierr.Validation(c, "INVALID_TOKEN", "external identity token rejected")
		}
		h.logger.Error("external login failed", zap.Error(err))
		return apierr.Internal(c)
	}

	h.setSessionCookie(c, sess.Token)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"user_id":          sess.User.ID,
		"display_name":     sess.User.DisplayName,
	})
}

type tokenRequest struct {
	Token string `json:"token"`
}

// VerifyEmail handles POST /v1/auth/verify-email.
func (h *Handlers) VerifyEmail(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return apierr.Validation(c, "INVALID_PAYLOAD", "token is required")
	}

	if err := h.svc.VerifyEmail(c.Context(), req.Token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return apierr.Validation(c, "INVALID_TOKEN", "verification token is invalid or expired")
		}
		h.logger.Error("verify-email failed", zap.Error(err))
		return apierr.Internal(c)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"verified":         true,
	})
}

type emailRequest struct {
	Email string `json:"email"`
}

// ResendVerification handles POST /v1/auth/resend-verification. The
// response is constant regardless of account state to avoid enumeration.
func (h *Handlers) ResendVerification(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return apierr.Validation(c, "INVALID_PAYLOAD", "email is required")
	}

	if err := h.svc.ResendVerification(c.Context(), req.Email); err != nil {
		h.logger.Error("resend-verification failed", zap.Error(err))
		return apierr.Internal(c)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"message":          "if the account exists and is unverified, a new verification link has been sent",
	})
}

// ForgotPassword handles POST /v1/auth/forgot-password. Response is constant
// to prevent enumeration.
func (h *Handlers) ForgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return apierr.Validation(c, "INVALID_PAYLOAD", "email is required")
	}

	if err := h.svc.ForgotPassword(c.Context(), req.Email); err != nil {
		h.logger.Error("forgot-password failed", zap.Error(err))
		return apierr.Internal(c)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"message":          "if the account exists, a password reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPassword handles POST /v1/auth/reset-password.
func (h *Handlers) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		return apierr.Validation(c, "INVALID_PAYLOAD", "token and new_password are required")
	}

	if err := h.svc.ResetPassword(c.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			return apierr.Validation(c, "INVALID_TOKEN", "reset token is invalid or expired")
		case errors.Is(err, auth.ErrWeakPassword):
			return apierr.Validation(c, "INVALID_PAYLOAD", "password must be at least 8 characters with upper, lower, and digit")
		default:
			h.logger.Error("reset-password failed", zap.Error(err))
			return apierr.Internal(c)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"reset":            true,
	})
}

// Logout handles POST /v1/auth/logout.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	token, ok := c.Locals(middleware.SessionTokenKey).(string)
	if ok && token != "" {
		if err := h.svc.Logout(c.Context(), token); err != nil {
			h.logger.Error("logout failed", zap.Error(err))
		}
	}
	c.ClearCookie(middleware.SessionCookieName)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"message":          "logged out",
	})
}

// Me handles GET /v1/auth/me.
func (h *Handlers) Me(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return apierr.Write(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "a valid session is required", false)
	}

	u, err := h.svc.Me(c.Context(), userID)
	if err != nil {
		return apierr.Write(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "a valid session is required", false)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"user_id":          u.ID,
		"email":            u.Email,
		"display_name":     u.DisplayName,
		"email_verified":   u.EmailVerified,
		"is_admin":         u.IsAdmin,
	})
}

// MeAdmin handles GET /v1/auth/me/admin, confirming the caller passed
// RequireAdmin (mounted ahead of this route).
func (h *Handlers) MeAdmin(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"admin":            true,
	})
}

func (h *Handlers) setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		HTTPOnly: true,
		SameSite: "Lax",
		Secure:   h.secureCookies,
		Path:     "/",
	})
}
