package store

import (
	"context"
	"database/sql"
	"errors"
)

const levelColumns = `id, generator_id, format, width, height, tilemap, content_hash,
	is_active, created_at`

func scanLevel(row rowScanner) (*Level, error) {
	var l Level
	var isActive int
	if err := row.Scan(&l.ID, &l.GeneratorID, &l.Format, &l.Width, &l.Height, &l.Tilemap,
		&l.ContentHash, &isActive, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.IsActive = isActive != 0
	return &l, nil
}

// CreateLevel inserts a single level.
func (s *Store) CreateLevel(ctx context.Context, l *Level) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO levels (id, generator_id, format, width, height, tilemap, content_hash,
			is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.GeneratorID, l.Format, l.Width, l.Height, l.Tilemap, l.ContentHash,
		boolToInt(l.IsActive), l.CreatedAt)
	return err
}

// CreateLevels inserts a batch of levels produced by one submission, meant
// to run inside a Store.WithTx so a partial ZIP never leaves orphaned rows.
func (s *Store) CreateLevels(ctx context.Context, levels []*Level) error {
	for _, l := range levels {
		if err := s.CreateLevel(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// GetLevelByID fetches a level by primary key.
func (s *Store) GetLevelByID(ctx context.Context, id string) (*Level, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+levelColumns+` FROM levels WHERE id = ?`, id)
	l, err := scanLevel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// ListActiveLevelsByGenerator returns every level eligible to be drawn into
// a battle for the given generator.
func (s *Store) ListActiveLevelsByGenerator(ctx context.Context, generatorID string) ([]*Level, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+levelColumns+` FROM levels WHERE generator_id = ? AND is_active = 1`,
		generatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Level
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListLevelsByGenerator returns every level for a generator, active or
// not, for the generator-detail view.
func (s *Store) ListLevelsByGenerator(ctx context.Context, generatorID string) ([]*Level, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+levelColumns+` FROM levels WHERE generator_id = ? ORDER BY created_at ASC`,
		generatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Level
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetLevelByContentHash finds a level by its dedup hash within a generator.
func (s *Store) GetLevelByContentHash(ctx context.Context, generatorID, contentHash string) (*Level, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+levelColumns+` FROM levels WHERE generator_id = ? AND content_hash = ?`,
		generatorID, contentHash)
	l, err := scanLevel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// DeactivateLevelsByGenerator soft-deletes every level for a generator,
// used when the owner deletes a generator that already has battle history.
func (s *Store) DeactivateLevelsByGenerator(ctx context.Context, generatorID string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE levels SET is_active = 0 WHERE generator_id = ?`, generatorID)
	return err
}

// DeleteUnreferencedLevelsByGenerator hard-deletes levels for a generator
// that have never appeared in a battle, leaving battle-referenced levels
// (and the foreign key they satisfy) intact.
func (s *Store) DeleteUnreferencedLevelsByGenerator(ctx context.Context, generatorID string) error {
	_, err := s.conn.ExecContext(ctx, `
		DELETE FROM levels
		WHERE generator_id = ?
		  AND id NOT IN (SELECT left_level_id FROM battles)
		  AND id NOT IN (SELECT right_level_id FROM battles)`,
		generatorID)
	return err
}
