package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pcgarena/internal/store/types"
)

func joinTags(tags []string) string   { return strings.Join(tags, ",") }
func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

const generatorColumns = `id, name, version, description, tags, documentation_url,
	is_active, owner_user_id, created_at, updated_at`

func scanGenerator(row rowScanner) (*Generator, error) {
	var g Generator
	var description, docURL, ownerUserID sql.NullString
	var tags string
	var isActive int
	if err := row.Scan(&g.ID, &g.Name, &g.Version, &description, &tags, &docURL,
		&isActive, &ownerUserID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Description = strPtr(description)
	g.DocumentationURL = strPtr(docURL)
	g.OwnerUserID = strPtr(ownerUserID)
	g.Tags = splitTags(tags)
	g.IsActive = isActive != 0
	return &g, nil
}

// CreateGenerator inserts a new generator identity.
func (s *Store) CreateGenerator(ctx context.Context, g *Generator) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO generators (id, name, version, description, tags, documentation_url,
			is_active, owner_user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Version, nullStr(g.Description), joinTags(g.Tags), nullStr(g.DocumentationURL),
		boolToInt(g.IsActive), nullStr(g.OwnerUserID), g.CreatedAt, g.UpdatedAt)
	return err
}

// GetGeneratorByID fetches a generator by primary key.
func (s *Store) GetGeneratorByID(ctx context.Context, id string) (*Generator, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+generatorColumns+` FROM generators WHERE id = ?`, id)
	g, err := scanGenerator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return g, err
}

// ListActiveGenerators returns every generator eligible for matchmaking.
func (s *Store) ListActiveGenerators(ctx context.Context) ([]*Generator, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+generatorColumns+` FROM generators WHERE is_active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Generator
	for rows.Next() {
		g, err := scanGenerator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListGeneratorsByOwner returns every generator (active or not) owned by a user.
func (s *Store) ListGeneratorsByOwner(ctx context.Context, ownerUserID string) ([]*Generator, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+generatorColumns+` FROM generators WHERE owner_user_id = ?`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Generator
	for rows.Next() {
		g, err := scanGenerator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// CountActiveGeneratorsByOwner enforces the per-owner submission quota.
func (s *Store) CountActiveGeneratorsByOwner(ctx context.Context, ownerUserID string) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM generators WHERE owner_user_id = ? AND is_active = 1`,
		ownerUserID).Scan(&count)
	return count, err
}

// UpdateGeneratorMetadata replaces description/tags/documentation_url, used
// by the generator-update endpoint.
func (s *Store) UpdateGeneratorMetadata(ctx context.Context, id string, description, docURL *string, tags []string, updatedAt types.Timestamp) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE generators SET description = ?, tags = ?, documentation_url = ?, updated_at = ?
		 WHERE id = ?`,
		nullStr(description), joinTags(tags), nullStr(docURL), updatedAt, id)
	return err
}

// SetGeneratorActive enables or disables a generator (owner soft-delete or admin action).
func (s *Store) SetGeneratorActive(ctx context.Context, id string, active bool, updatedAt types.Timestamp) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE generators SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), updatedAt, id)
	return err
}

// DeleteGenerator hard-deletes a generator row together with its rating
// row. Levels have no cascading delete, so callers remove them first.
func (s *Store) DeleteGenerator(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM ratings WHERE generator_id = ?`, id); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx, `DELETE FROM generators WHERE id = ?`, id)
	return err
}

// UpdateGeneratorVersion bumps the version string recorded on a generator
// update submission. The rating row is untouched.
func (s *Store) UpdateGeneratorVersion(ctx context.Context, id, version string, updatedAt types.Timestamp) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE generators SET version = ?, updated_at = ? WHERE id = ?`,
		version, updatedAt, id)
	return err
}

// SoftDeleteGenerator disowns a generator that still has battle history:
// it is marked inactive, its owner cleared, and its display name suffixed
// so the leaderboard can still render historical rows.
func (s *Store) SoftDeleteGenerator(ctx context.Context, id, deletedName string, updatedAt types.Timestamp) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE generators SET name = ?, is_active = 0, owner_user_id = NULL, updated_at = ?
		 WHERE id = ?`,
		deletedName, updatedAt, id)
	return err
}
