package store

import (
	"context"
	"database/sql"
	"errors"

	"pcgarena/internal/store/types"
)

// ErrNotFound is returned when a lookup by key finds no row.
var ErrNotFound = errors.New("store: not found")

// CreateSession inserts a new login session.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, created_at, expires_at, flagged)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt, boolToInt(sess.Flagged))
	return err
}

// GetSessionByToken fetches a session by its opaque token.
func (s *Store) GetSessionByToken(ctx context.Context, token string) (*Session, error) {
	var sess Session
	var flagged int
	err := s.conn.QueryRowContext(ctx,
		`SELECT token, user_id, created_at, expires_at, flagged FROM sessions WHERE token = ?`,
		token).Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt, &flagged)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.Flagged = flagged != 0
	return &sess, nil
}

// DeleteSession removes a session (logout).
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// DeleteExpiredSessions purges sessions past their expiry, for the sweeper.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now types.Timestamp) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FlagSession marks a session as flagged for admin review.
func (s *Store) FlagSession(ctx context.Context, token string, flagged bool) error {
	res, err := s.conn.ExecContext(ctx, `UPDATE sessions SET flagged = ? WHERE token = ?`,
		boolToInt(flagged), token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
