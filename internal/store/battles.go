package store

import (
	"context"
	"database/sql"
	"errors"

	"pcgarena/internal/store/types"
)

const battleColumns = `id, session_id, status, left_level_id, right_level_id,
	left_generator_id, right_generator_id, policy, player_id, issued_at, expires_at`

func scanBattle(row rowScanner) (*Battle, error) {
	var b Battle
	var playerID sql.NullString
	if err := row.Scan(&b.ID, &b.SessionID, &b.Status, &b.LeftLevelID, &b.RightLevelID,
		&b.LeftGeneratorID, &b.RightGeneratorID, &b.Policy, &playerID, &b.IssuedAt, &b.ExpiresAt); err != nil {
		return nil, err
	}
	b.PlayerID = strPtr(playerID)
	return &b, nil
}

// CreateBattle inserts a newly-issued battle.
func (s *Store) CreateBattle(ctx context.Context, b *Battle) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO battles (id, session_id, status, left_level_id, right_level_id,
			left_generator_id, right_generator_id, policy, player_id, issued_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SessionID, b.Status, b.LeftLevelID, b.RightLevelID, b.LeftGeneratorID,
		b.RightGeneratorID, b.Policy, nullStr(b.PlayerID), b.IssuedAt, b.ExpiresAt)
	return err
}

// GetBattleByID fetches a battle by primary key.
func (s *Store) GetBattleByID(ctx context.Context, id string) (*Battle, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+battleColumns+` FROM battles WHERE id = ?`, id)
	b, err := scanBattle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// UpdateBattleStatus transitions a battle's status, used for COMPLETED (on
// vote) and EXPIRED (by the sweeper). Returns ErrNotFound if no row matched,
// which lets callers distinguish a race (already transitioned) from a
// missing battle.
func (s *Store) UpdateBattleStatus(ctx context.Context, id string, from, to BattleStatus) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE battles SET status = ? WHERE id = ? AND status = ?`, to, id, from)
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

// ListExpiredIssuedBattles returns ISSUED battles whose expires_at has
// passed, for the background sweeper to transition to EXPIRED.
func (s *Store) ListExpiredIssuedBattles(ctx context.Context, now types.Timestamp, limit int) ([]*Battle, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+battleColumns+` FROM battles
		 WHERE status = ? AND expires_at < ?
		 ORDER BY expires_at ASC
		 LIMIT ?`,
		BattleIssued, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Battle
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CountBattlesBySession reports how many battles a session has ever been
// issued.
func (s *Store) CountBattlesBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM battles WHERE session_id = ?`, sessionID).Scan(&count)
	return count, err
}

// CountBattlesByGenerator reports how many battles have ever referenced a
// generator, used by the submission pipeline to decide whether a delete
// must preserve history via soft-delete.
func (s *Store) CountBattlesByGenerator(ctx context.Context, generatorID string) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM battles WHERE left_generator_id = ? OR right_generator_id = ?`,
		generatorID, generatorID).Scan(&count)
	return count, err
}
