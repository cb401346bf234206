// Package auth implements registration, password and external-identity
// login, email verification, password reset, and session lifecycle.
package auth

import (
	"context"
	"errors"

	"pcgarena/internal/store"
)

var (
	ErrInvalidCredentials   = errors.New("auth: invalid credentials")
	ErrEmailNotVerified     = errors.New("auth: email not verified")
	ErrWeakPassword         = errors.New("auth: password does not meet policy")
	ErrInvalidEmail         = errors.New("auth: malformed email")
	ErrInvalidToken         = errors.New("auth: invalid or expired token")
	ErrExternalTokenInvalid = errors.New("auth: external identity token rejected")
)

// Session bundles a freshly minted session token with its owning user, the
// shape every login-style call returns.
type Session struct {
	Token string
	User  *store.User
}

// Service is the auth & session layer (spec §4.5).
type Service interface {
	Register(ctx context.Context, email, password, displayName string) error
	Login(ctx context.Context, email, password string) (*Session, error)
	ExternalLogin(ctx context.Context, idToken string) (*Session, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Logout(ctx context.Context, sessionToken string) error
	Me(ctx context.Context, userID string) (*store.User, error)
}
