package auth

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"pcgarena/internal/config"
	"pcgarena/internal/email"
	"pcgarena/internal/identity"
	"pcgarena/internal/store"
	"pcgarena/internal/store/types"
)

type authService struct {
	cfg       config.AuthConfig
	publicURL string
	logger    *zap.Logger
	st        *store.Store
	notifier  email.Notifier
	verifier  identity.Verifier
}

// NewService builds the auth Service. verifier may be nil if no external
// identity provider is configured; ExternalLogin then always fails.
func NewService(cfg config.AuthConfig, publicURL string, logger *zap.Logger, st *store.Store, notifier email.Notifier, verifier identity.Verifier) Service {
	return &authService{
		cfg:       cfg,
		publicURL: publicURL,
		logger:    logger,
		st:        st,
		notifier:  notifier,
		verifier:  verifier,
	}
}

func (s *authService) Register(ctx context.Context, emailAddr, password, displayName string) error {
	if _, err := mail.ParseAddress(emailAddr); err != nil {
		return ErrInvalidEmail
	}
	if !meetsPasswordPolicy(password) {
		return ErrWeakPassword
	}

	now := types.Timestamp{Time: time.Now()}

	existing, err := s.st.GetUserByEmail(ctx, emailAddr)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup existing user: %w", err)
	}
	if existing != nil {
		// Response to the caller is identical to the success path (see
		// handlers) so this does not leak account existence.
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	hashStr := string(hash)

	u := &store.User{
		ID:            uuid.NewString(),
		Email:         emailAddr,
		DisplayName:   displayName,
		PasswordHash:  &hashStr,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.st.CreateUser(ctx, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	if err := s.issueVerificationToken(ctx, u, now); err != nil {
		s.logger.Error("failed to send verification email", zap.Error(err), zap.String("user_id", u.ID))
	}
	return nil
}

func (s *authService) issueVerificationToken(ctx context.Context, u *store.User, now types.Timestamp) error {
	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}
	if err := s.st.CreateEmailVerifyToken(ctx, &store.EmailVerifyToken{
		Token:     token,
		UserID:    u.ID,
		ExpiresAt: types.Timestamp{Time: now.Time.Add(s.cfg.EmailVerifyTokenTTL)},
	}); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	link := fmt.Sprintf("%s/verify-email?token=%s", s.publicURL, token)
	body := fmt.Sprintf("Welcome to PCG Arena. Verify your email by visiting:\n\n%s\n", link)
	return s.notifier.Send(ctx, u.Email, "Verify your PCG Arena account", body)
}

func (s *authService) Login(ctx context.Context, emailAddr, password string) (*Session, error) {
	u, err := s.st.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return s.mintSession(ctx, u)
}

func (s *authService) ExternalLogin(ctx context.Context, idToken string) (*Session, error) {
	if s.verifier == nil {
		return nil, ErrExternalTokenInvalid
	}
	ident, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, ErrExternalTokenInvalid
	}

	now := types.Timestamp{Time: time.Now()}
	u, err := s.st.GetUserByIdentity(ctx, ident.Issuer, ident.Subject)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("lookup identity: %w", err)
		}
		u = &store.User{
			ID:              uuid.NewString(),
			Email:           ident.Email,
			IdentityIssuer:  &ident.Issuer,
			IdentitySubject: &ident.Subject,
			DisplayName:     displayNameFor(ident),
			EmailVerified:   true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.st.CreateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("create user from identity: %w", err)
		}
	} else if !u.EmailVerified {
		if err := s.st.SetEmailVerified(ctx, u.ID, true, now); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		u.EmailVerified = true
	}

	return s.mintSession(ctx, u)
}

func displayNameFor(ident *identity.Identity) string {
	if ident.Name != "" {
		return ident.Name
	}
	return ident.Email
}

func (s *authService) mintSession(ctx context.Context, u *store.User) (*Session, error) {
	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	now := time.Now()
	if err := s.st.CreateSession(ctx, &store.Session{
		Token:     token,
		UserID:    u.ID,
		CreatedAt: types.Timestamp{Time: now},
		ExpiresAt: types.Timestamp{Time: now.Add(s.cfg.SessionTTL)},
	}); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Session{Token: token, User: u}, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	t, err := s.st.GetEmailVerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup verify token: %w", err)
	}
	now := time.Now()
	if t.ConsumedAt.Valid || t.ExpiresAt.IsExpired(now) {
		return ErrInvalidToken
	}

	return s.st.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.SetEmailVerified(ctx, t.UserID, true, types.Timestamp{Time: now}); err != nil {
			return err
		}
		return tx.ConsumeEmailVerifyToken(ctx, token, types.Timestamp{Time: now})
	})
}

func (s *authService) ResendVerification(ctx context.Context, emailAddr string) error {
	u, err := s.st.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if u.EmailVerified {
		return nil
	}
	if err := s.st.DeleteEmailVerifyTokensForUser(ctx, u.ID); err != nil {
		return fmt.Errorf("clear prior verification tokens: %w", err)
	}
	if err := s.issueVerificationToken(ctx, u, types.Timestamp{Time: time.Now()}); err != nil {
		s.logger.Error("failed to resend verification email", zap.Error(err), zap.String("user_id", u.ID))
	}
	return nil
}

func (s *authService) ForgotPassword(ctx context.Context, emailAddr string) error {
	u, err := s.st.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	now := time.Now()
	if err := s.st.CreatePasswordResetToken(ctx, &store.PasswordResetToken{
		Token:     token,
		UserID:    u.ID,
		ExpiresAt: types.Timestamp{Time: now.Add(s.cfg.PasswordResetTTL)},
	}); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.publicURL, token)
	body := fmt.Sprintf("Reset your PCG Arena password by visiting:\n\n%s\n\nIf you did not request this, ignore this email.\n", link)
	if err := s.notifier.Send(ctx, u.Email, "Reset your PCG Arena password", body); err != nil {
		s.logger.Error("failed to send reset email", zap.Error(err), zap.String("user_id", u.ID))
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !meetsPasswordPolicy(newPassword) {
		return ErrWeakPassword
	}
	t, err := s.st.GetPasswordResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}
	now := time.Now()
	if t.ConsumedAt.Valid || t.ExpiresAt.IsExpired(now) {
		return ErrInvalidToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.st.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.SetPasswordHash(ctx, t.UserID, string(hash), types.Timestamp{Time: now}); err != nil {
			return err
		}
		return tx.ConsumePasswordResetToken(ctx, token, types.Timestamp{Time: now})
	})
}

func (s *authService) Logout(ctx context.Context, sessionToken string) error {
	return s.st.DeleteSession(ctx, sessionToken)
}

func (s *authService) Me(ctx context.Context, userID string) (*store.User, error) {
	u, err := s.st.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// meetsPasswordPolicy enforces the ≥8 chars, upper+lower+digit minimum.
func meetsPasswordPolicy(password string) bool {
	if len(password) < 8 {
		return false
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}

// randomToken mints a session/verification/reset token: 32 random bytes,
// base64url-encoded per §4.5.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := cryptorand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
