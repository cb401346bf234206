package store

import (
	"context"
	"database/sql"
	"errors"

	"pcgarena/internal/store/types"
)

// CreateEmailVerifyToken inserts a single-use email verification token.
func (s *Store) CreateEmailVerifyToken(ctx context.Context, t *EmailVerifyToken) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO email_verify_tokens (token, user_id, expires_at, consumed_at)
		 VALUES (?, ?, ?, ?)`,
		t.Token, t.UserID, t.ExpiresAt, t.ConsumedAt)
	return err
}

// GetEmailVerifyToken fetches a token row by its key.
func (s *Store) GetEmailVerifyToken(ctx context.Context, token string) (*EmailVerifyToken, error) {
	var t EmailVerifyToken
	err := s.conn.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at, consumed_at FROM email_verify_tokens WHERE token = ?`,
		token).Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.ConsumedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ConsumeEmailVerifyToken marks a token consumed at the given time.
func (s *Store) ConsumeEmailVerifyToken(ctx context.Context, token string, consumedAt types.Timestamp) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE email_verify_tokens SET consumed_at = ? WHERE token = ?`,
		consumedAt, token)
	return err
}

// DeleteEmailVerifyTokensForUser removes any outstanding tokens for a user,
// used before issuing a fresh one on resend-verification.
func (s *Store) DeleteEmailVerifyTokensForUser(ctx context.Context, userID string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM email_verify_tokens WHERE user_id = ?`, userID)
	return err
}

// CreatePasswordResetToken inserts a single-use password reset token.
func (s *Store) CreatePasswordResetToken(ctx context.Context, t *PasswordResetToken) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (token, user_id, expires_at, consumed_at)
		 VALUES (?, ?, ?, ?)`,
		t.Token, t.UserID, t.ExpiresAt, t.ConsumedAt)
	return err
}

// GetPasswordResetToken fetches a token row by its key.
func (s *Store) GetPasswordResetToken(ctx context.Context, token string) (*PasswordResetToken, error) {
	var t PasswordResetToken
	err := s.conn.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at, consumed_at FROM password_reset_tokens WHERE token = ?`,
		token).Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.ConsumedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ConsumePasswordResetToken marks a token consumed at the given time.
func (s *Store) ConsumePasswordResetToken(ctx context.Context, token string, consumedAt types.Timestamp) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE password_reset_tokens SET consumed_at = ? WHERE token = ?`,
		consumedAt, token)
	return err
}
