package store

import (
	"context"
	"database/sql"
	"errors"

	"pcgarena/internal/store/types"
)

const ratingColumns = `generator_id, rating, rd, volatility, games_played, wins, losses,
	ties, skips, updated_at`

func scanRating(row rowScanner) (*Rating, error) {
	var r Rating
	if err := row.Scan(&r.GeneratorID, &r.Value, &r.RD, &r.Volatility, &r.GamesPlayed,
		&r.Wins, &r.Losses, &r.Ties, &r.Skips, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRating inserts the initial rating row for a newly submitted generator.
func (s *Store) CreateRating(ctx context.Context, r *Rating) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO ratings (generator_id, rating, rd, volatility, games_played, wins,
			losses, ties, skips, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.GeneratorID, r.Value, r.RD, r.Volatility, r.GamesPlayed, r.Wins, r.Losses,
		r.Ties, r.Skips, r.UpdatedAt)
	return err
}

// GetRating fetches a generator's current rating row.
func (s *Store) GetRating(ctx context.Context, generatorID string) (*Rating, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+ratingColumns+` FROM ratings WHERE generator_id = ?`,
		generatorID)
	r, err := scanRating(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// ListRatings returns every rating row, ordered by rating descending, for
// the leaderboard endpoint.
func (s *Store) ListRatings(ctx context.Context) ([]*Rating, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+ratingColumns+` FROM ratings ORDER BY rating DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Rating
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRatingOutcome is the counter-update primitive: callers pass
// exactly which bucket (win/loss/tie/skip) this generator's side of the
// result landed in, since the store cannot infer left/right from a
// generator id alone.
func (s *Store) UpdateRatingOutcome(ctx context.Context, generatorID string, value, rd, volatility float64, won, lost, tied, skipped bool, updatedAt types.Timestamp) error {
	toInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	_, err := s.conn.ExecContext(ctx, `
		UPDATE ratings
		SET rating = ?, rd = ?, volatility = ?, games_played = games_played + 1,
			wins = wins + ?, losses = losses + ?, ties = ties + ?, skips = skips + ?,
			updated_at = ?
		WHERE generator_id = ?`,
		value, rd, volatility, toInt(won), toInt(lost), toInt(tied), toInt(skipped),
		updatedAt, generatorID)
	return err
}

// ResetAllRatings restores every generator to the configured initial rating,
// used by the admin season-reset operation.
func (s *Store) ResetAllRatings(ctx context.Context, initialRating, initialRD, initialVolatility float64, updatedAt types.Timestamp) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE ratings
		SET rating = ?, rd = ?, volatility = ?, games_played = 0, wins = 0, losses = 0,
			ties = 0, skips = 0, updated_at = ?`,
		initialRating, initialRD, initialVolatility, updatedAt)
	return err
}

// PairBattleCount returns how many battles have ever paired these two
// generators (order-independent), for the matchmaker's coverage pass.
func (s *Store) PairBattleCount(ctx context.Context, generatorA, generatorB string) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM battles
		WHERE (left_generator_id = ? AND right_generator_id = ?)
		   OR (left_generator_id = ? AND right_generator_id = ?)`,
		generatorA, generatorB, generatorB, generatorA).Scan(&count)
	return count, err
}
