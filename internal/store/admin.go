package store

import (
	"context"

	"pcgarena/internal/store/types"
)

// SeasonReset wipes every battle, vote, and rating event, then restores
// every rating to the configured initial value. Generators and levels are
// untouched; callers run this inside WithTx.
func (s *Store) SeasonReset(ctx context.Context, initialRating, initialRD, initialVolatility float64, updatedAt types.Timestamp) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM rating_events`); err != nil {
		return err
	}
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM votes`); err != nil {
		return err
	}
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM battles`); err != nil {
		return err
	}
	return s.ResetAllRatings(ctx, initialRating, initialRD, initialVolatility, updatedAt)
}
