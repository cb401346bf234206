package store

import (
	"context"
	"database/sql"
	"errors"
)

const voteColumns = `id, battle_id, session_id, result, left_tags, right_tags, telemetry,
	payload_hash, player_id, created_at`

func scanVote(row rowScanner) (*Vote, error) {
	var v Vote
	var playerID sql.NullString
	var leftTags, rightTags string
	if err := row.Scan(&v.ID, &v.BattleID, &v.SessionID, &v.Result, &leftTags, &rightTags,
		&v.Telemetry, &v.PayloadHash, &playerID, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.LeftTags = splitTags(leftTags)
	v.RightTags = splitTags(rightTags)
	v.PlayerID = strPtr(playerID)
	return &v, nil
}

// CreateVote inserts a vote. battle_id carries a UNIQUE constraint, so a
// duplicate submission for the same battle fails here rather than silently
// double-applying a rating update; callers should treat a unique-constraint
// error as "already voted" and return the existing vote instead.
func (s *Store) CreateVote(ctx context.Context, v *Vote) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO votes (id, battle_id, session_id, result, left_tags, right_tags,
			telemetry, payload_hash, player_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.BattleID, v.SessionID, v.Result, joinTags(v.LeftTags), joinTags(v.RightTags),
		v.Telemetry, v.PayloadHash, nullStr(v.PlayerID), v.CreatedAt)
	return err
}

// GetVoteByBattleID fetches the vote already recorded for a battle, for
// idempotent-resubmission handling.
func (s *Store) GetVoteByBattleID(ctx context.Context, battleID string) (*Vote, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+voteColumns+` FROM votes WHERE battle_id = ?`, battleID)
	v, err := scanVote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// CountVotesBySession reports how many votes a session has cast.
func (s *Store) CountVotesBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM votes WHERE session_id = ?`, sessionID).Scan(&count)
	return count, err
}
