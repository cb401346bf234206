package store

import (
	"context"
	"database/sql"
	"errors"

	"pcgarena/internal/store/types"
)

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO users (id, email, identity_issuer, identity_subject, display_name,
			password_hash, email_verified, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, nullStr(u.IdentityIssuer), nullStr(u.IdentitySubject), u.DisplayName,
		nullStr(u.PasswordHash), boolToInt(u.EmailVerified), boolToInt(u.IsAdmin),
		u.CreatedAt, u.UpdatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var issuer, subject, passwordHash sql.NullString
	var emailVerified, isAdmin int
	if err := row.Scan(&u.ID, &u.Email, &issuer, &subject, &u.DisplayName,
		&passwordHash, &emailVerified, &isAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.IdentityIssuer = strPtr(issuer)
	u.IdentitySubject = strPtr(subject)
	u.PasswordHash = strPtr(passwordHash)
	u.EmailVerified = emailVerified != 0
	u.IsAdmin = isAdmin != 0
	return &u, nil
}

const userColumns = `id, email, identity_issuer, identity_subject, display_name,
	password_hash, email_verified, is_admin, created_at, updated_at`

// GetUserByID fetches a user by primary key.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail fetches a user by unique email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// GetUserByIdentity fetches a user by (issuer, subject) for external-login find-or-create.
func (s *Store) GetUserByIdentity(ctx context.Context, issuer, subject string) (*User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE identity_issuer = ? AND identity_subject = ?`,
		issuer, subject)
	return scanUser(row)
}

// SetEmailVerified marks a user's email_verified flag.
func (s *Store) SetEmailVerified(ctx context.Context, userID string, verified bool, updatedAt types.Timestamp) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE users SET email_verified = ?, updated_at = ? WHERE id = ?`,
		boolToInt(verified), updatedAt, userID)
	return err
}

// SetPasswordHash updates a user's password hash (reset-password).
func (s *Store) SetPasswordHash(ctx context.Context, userID, hash string, updatedAt types.Timestamp) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, updatedAt, userID)
	return err
}

// IsEmailTaken reports whether a user with this email already exists.
func (s *Store) IsEmailTaken(ctx context.Context, email string) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
