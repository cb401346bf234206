// Package seed imports the startup generator/level manifest described by
// spec §4.1: a JSON manifest naming the seed generators, plus one
// directory of ASCII tilemap files per generator. Import runs once at
// process start, ahead of the HTTP listener, and aborts startup on any
// invalid seed file.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pcgarena/internal/config"
	"pcgarena/internal/store"
	"pcgarena/internal/store/types"
	"pcgarena/internal/tilemap"
)

// manifestGenerator is one entry of <seed>/generators.json.
type manifestGenerator struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	Description      string   `json:"description"`
	Tags             []string `json:"tags"`
	DocumentationURL string   `json:"documentation_url"`
}

// Import upserts every generator named in <dir>/generators.json, then
// validates and upserts every level file under <dir>/levels/<generator_id>.
// An invalid seed file returns an error; the caller must abort startup.
func Import(ctx context.Context, st *store.Store, rateCfg config.RatingConfig, dir string, logger *zap.Logger) error {
	if dir == "" {
		logger.Info("no seed path configured, skipping seed import")
		return nil
	}

	manifestPath := filepath.Join(dir, "generators.json")
	raw, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		logger.Info("no seed manifest found, skipping seed import", zap.String("path", manifestPath))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read seed manifest: %w", err)
	}

	var manifest []manifestGenerator
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("parse seed manifest: %w", err)
	}

	for _, g := range manifest {
		if err := importGenerator(ctx, st, rateCfg, dir, g, logger); err != nil {
			return fmt.Errorf("import generator %q: %w", g.ID, err)
		}
	}
	return nil
}

func importGenerator(ctx context.Context, st *store.Store, rateCfg config.RatingConfig, dir string, g manifestGenerator, logger *zap.Logger) error {
	now := types.Timestamp{Time: time.Now()}

	levels, err := loadLevels(dir, g.ID, now)
	if err != nil {
		return err
	}

	var description, docURL *string
	if g.Description != "" {
		description = &g.Description
	}
	if g.DocumentationURL != "" {
		docURL = &g.DocumentationURL
	}

	return st.WithTx(ctx, func(tx *store.Store) error {
		existing, err := tx.GetGeneratorByID(ctx, g.ID)
		switch {
		case err == nil:
			if err := tx.UpdateGeneratorMetadata(ctx, g.ID, description, docURL, g.Tags, now); err != nil {
				return err
			}
			if existing.Version != g.Version {
				if err := tx.UpdateGeneratorVersion(ctx, g.ID, g.Version, now); err != nil {
					return err
				}
			}
		case errors.Is(err, store.ErrNotFound):
			if err := tx.CreateGenerator(ctx, &store.Generator{
				ID: g.ID, Name: g.Name, Version: g.Version, Description: description,
				Tags: g.Tags, DocumentationURL: docURL, IsActive: true,
				CreatedAt: now, UpdatedAt: now,
			}); err != nil {
				return err
			}
			if err := tx.CreateRating(ctx, &store.Rating{
				GeneratorID: g.ID, Value: rateCfg.InitialRating, RD: rateCfg.InitialRD,
				Volatility: rateCfg.InitialVolatility, UpdatedAt: now,
			}); err != nil {
				return err
			}
		default:
			return err
		}

		for _, lvl := range levels {
			if _, err := tx.GetLevelByContentHash(ctx, g.ID, lvl.ContentHash); err == nil {
				continue
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if err := tx.CreateLevel(ctx, lvl); err != nil {
				return err
			}
		}

		logger.Info("seed generator imported", zap.String("generator_id", g.ID), zap.Int("levels", len(levels)))
		return nil
	})
}

// loadLevels validates every *.txt file under dir/levels/generatorID. A
// single invalid file fails the whole import, per spec.
func loadLevels(dir, generatorID string, now types.Timestamp) ([]*store.Level, error) {
	levelDir := filepath.Join(dir, "levels", generatorID)
	entries, err := os.ReadDir(levelDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read level directory: %w", err)
	}

	var levels []*store.Level
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
			continue
		}

		path := filepath.Join(levelDir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed level %s: %w", path, err)
		}

		result, err := tilemap.Validate(string(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid seed level %s: %w", path, err)
		}

		levels = append(levels, &store.Level{
			ID:          uuid.NewString(),
			GeneratorID: generatorID,
			Format:      store.LevelFormat,
			Width:       result.Width,
			Height:      store.LevelHeight,
			Tilemap:     result.Canonical,
			ContentHash: "sha256:" + result.ContentHash,
			IsActive:    true,
			CreatedAt:   now,
		})
	}
	return levels, nil
}
