package store

import (
	"context"
)

const ratingEventColumns = `id, vote_id, battle_id, left_generator_id, right_generator_id,
	result, delta_left, delta_right, created_at`

func scanRatingEvent(row rowScanner) (*RatingEvent, error) {
	var e RatingEvent
	if err := row.Scan(&e.ID, &e.VoteID, &e.BattleID, &e.LeftGeneratorID, &e.RightGeneratorID,
		&e.Result, &e.DeltaLeft, &e.DeltaRight, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateRatingEvent records the audit row attributing a rating change to a
// single vote, applied in the same transaction as the rating update itself.
func (s *Store) CreateRatingEvent(ctx context.Context, e *RatingEvent) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO rating_events (id, vote_id, battle_id, left_generator_id,
			right_generator_id, result, delta_left, delta_right, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.VoteID, e.BattleID, e.LeftGeneratorID, e.RightGeneratorID, e.Result,
		e.DeltaLeft, e.DeltaRight, e.CreatedAt)
	return err
}

// ConfusionMatrixRow is one (generator_a, generator_b) aggregate used to
// render the head-to-head confusion matrix stats endpoint.
type ConfusionMatrixRow struct {
	GeneratorA string
	GeneratorB string
	AWins      int64
	BWins      int64
	Ties       int64
}

// ConfusionMatrix aggregates every LEFT/RIGHT/TIE rating event into a
// per-pair win/tie count, keyed consistently regardless of which generator
// was on the left or right of any individual battle.
func (s *Store) ConfusionMatrix(ctx context.Context) ([]ConfusionMatrixRow, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT left_generator_id, right_generator_id, result, COUNT(1)
		FROM rating_events
		GROUP BY left_generator_id, right_generator_id, result`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agg := make(map[[2]string]*ConfusionMatrixRow)
	key := func(a, b string) [2]string {
		if a <= b {
			return [2]string{a, b}
		}
		return [2]string{b, a}
	}

	for rows.Next() {
		var left, right, result string
		var count int64
		if err := rows.Scan(&left, &right, &result, &count); err != nil {
			return nil, err
		}
		k := key(left, right)
		row, ok := agg[k]
		if !ok {
			row = &ConfusionMatrixRow{GeneratorA: k[0], GeneratorB: k[1]}
			agg[k] = row
		}
		switch VoteResult(result) {
		case VoteTie:
			row.Ties += count
		case VoteLeft:
			if left == k[0] {
				row.AWins += count
			} else {
				row.BWins += count
			}
		case VoteRight:
			if right == k[0] {
				row.AWins += count
			} else {
				row.BWins += count
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]ConfusionMatrixRow, 0, len(agg))
	for _, row := range agg {
		out = append(out, *row)
	}
	return out, nil
}
