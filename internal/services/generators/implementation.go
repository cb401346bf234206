package generators

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pcgarena/internal/config"
	"pcgarena/internal/store"
	"pcgarena/internal/store/types"
	"pcgarena/internal/tilemap"
)

const (
	maxZipBytes         = 10 * 1024 * 1024
	minLevelsPerUpload  = 50
	maxLevelsPerUpload  = 200
	maxActiveGenerators = 3
)

var generatorIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{2,31}$`)

type service struct {
	rateCfg config.RatingConfig
	logger  *zap.Logger
	st      *store.Store
}

func NewService(rateCfg config.RatingConfig, logger *zap.Logger, st *store.Store) Service {
	return &service{rateCfg: rateCfg, logger: logger, st: st}
}

func validateGeneratorID(id string) error {
	if !generatorIDPattern.MatchString(id) {
		return ErrInvalidGeneratorID
	}
	return nil
}

// extractLevels unpacks a ZIP archive into validated, hash-deduplicated
// level rows. The first file that fails to open or validate stops the scan
// and is named in the returned ValidationError.
func extractLevels(generatorID string, zipBytes []byte, now types.Timestamp) ([]*store.Level, error) {
	if len(zipBytes) == 0 {
		return nil, ErrInvalidZip
	}
	if len(zipBytes) > maxZipBytes {
		return nil, ErrZipTooLarge
	}

	r, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidZip, err)
	}

	seen := make(map[string]bool)
	levels := make([]*store.Level, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, &ValidationError{LevelFailure{File: f.Name, Reason: err.Error()}}
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &ValidationError{LevelFailure{File: f.Name, Reason: err.Error()}}
		}

		result, err := tilemap.Validate(string(raw))
		if err != nil {
			return nil, &ValidationError{LevelFailure{File: f.Name, Reason: err.Error()}}
		}

		hash := "sha256:" + result.ContentHash
		if seen[hash] {
			continue
		}
		seen[hash] = true

		levels = append(levels, &store.Level{
			ID:          uuid.NewString(),
			GeneratorID: generatorID,
			Format:      store.LevelFormat,
			Width:       result.Width,
			Height:      store.LevelHeight,
			Tilemap:     result.Canonical,
			ContentHash: hash,
			IsActive:    true,
			CreatedAt:   now,
		})
	}

	if len(levels) < minLevelsPerUpload {
		return nil, fmt.Errorf("%w: got %d", ErrNotEnoughLevels, len(levels))
	}
	if len(levels) > maxLevelsPerUpload {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyLevels, len(levels))
	}
	return levels, nil
}

func (s *service) Upload(ctx context.Context, in SubmissionInput) (*Summary, error) {
	if err := validateGeneratorID(in.GeneratorID); err != nil {
		return nil, err
	}
	now := types.Timestamp{Time: time.Now()}

	if _, err := s.st.GetGeneratorByID(ctx, in.GeneratorID); err == nil {
		return nil, ErrGeneratorIDExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup generator: %w", err)
	}

	count, err := s.st.CountActiveGeneratorsByOwner(ctx, in.OwnerUserID)
	if err != nil {
		return nil, fmt.Errorf("count owner generators: %w", err)
	}
	if count >= maxActiveGenerators {
		return nil, ErrMaxGeneratorsExceeded
	}

	levels, err := extractLevels(in.GeneratorID, in.ZipBytes, now)
	if err != nil {
		return nil, err
	}

	owner := in.OwnerUserID
	g := &store.Generator{
		ID: in.GeneratorID, Name: in.Name, Version: nonEmptyOr(in.Version, "1"),
		Description: in.Description, Tags: in.Tags, DocumentationURL: in.DocumentationURL,
		IsActive: true, OwnerUserID: &owner, CreatedAt: now, UpdatedAt: now,
	}

	err = s.st.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.CreateGenerator(ctx, g); err != nil {
			return fmt.Errorf("create generator: %w", err)
		}
		if err := tx.CreateRating(ctx, &store.Rating{
			GeneratorID: g.ID, Value: s.rateCfg.InitialRating, RD: s.rateCfg.InitialRD,
			Volatility: s.rateCfg.InitialVolatility, UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("create rating: %w", err)
		}
		if err := tx.CreateLevels(ctx, levels); err != nil {
			return fmt.Errorf("create levels: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Summary{
		ID: g.ID, Name: g.Name, Version: g.Version, Description: g.Description,
		Tags: g.Tags, DocumentationURL: g.DocumentationURL, IsActive: true, LevelCount: len(levels),
	}, nil
}

func (s *service) Update(ctx context.Context, in SubmissionInput) (*Summary, error) {
	existing, err := s.st.GetGeneratorByID(ctx, in.GeneratorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGeneratorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup generator: %w", err)
	}
	if existing.OwnerUserID == nil || *existing.OwnerUserID != in.OwnerUserID {
		return nil, ErrNotOwner
	}

	now := types.Timestamp{Time: time.Now()}
	levels, err := extractLevels(in.GeneratorID, in.ZipBytes, now)
	if err != nil {
		return nil, err
	}

	version := nonEmptyOr(in.Version, existing.Version)
	description := in.Description
	if description == nil {
		description = existing.Description
	}
	docURL := in.DocumentationURL
	if docURL == nil {
		docURL = existing.DocumentationURL
	}
	tags := in.Tags
	if tags == nil {
		tags = existing.Tags
	}

	err = s.st.WithTx(ctx, func(tx *store.Store) error {
		// Old levels first: unreferenced ones are hard-deleted, whatever
		// remains (battle-referenced) is deactivated but kept. Both
		// operations only ever touch rows that predate this submission.
		if err := tx.DeleteUnreferencedLevelsByGenerator(ctx, in.GeneratorID); err != nil {
			return fmt.Errorf("delete unreferenced levels: %w", err)
		}
		if err := tx.DeactivateLevelsByGenerator(ctx, in.GeneratorID); err != nil {
			return fmt.Errorf("deactivate old levels: %w", err)
		}
		if err := tx.CreateLevels(ctx, levels); err != nil {
			return fmt.Errorf("create levels: %w", err)
		}
		if err := tx.UpdateGeneratorVersion(ctx, in.GeneratorID, version, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
		if err := tx.UpdateGeneratorMetadata(ctx, in.GeneratorID, description, docURL, tags, now); err != nil {
			return fmt.Errorf("update metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Summary{
		ID: in.GeneratorID, Name: existing.Name, Version: version, Description: description,
		Tags: tags, DocumentationURL: docURL, IsActive: true, LevelCount: len(levels),
	}, nil
}

func (s *service) Delete(ctx context.Context, generatorID, ownerUserID string) error {
	existing, err := s.st.GetGeneratorByID(ctx, generatorID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrGeneratorNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup generator: %w", err)
	}
	if existing.OwnerUserID == nil || *existing.OwnerUserID != ownerUserID {
		return ErrNotOwner
	}

	now := types.Timestamp{Time: time.Now()}
	referenced, err := s.st.CountBattlesByGenerator(ctx, generatorID)
	if err != nil {
		return fmt.Errorf("count battles: %w", err)
	}

	return s.st.WithTx(ctx, func(tx *store.Store) error {
		if referenced > 0 {
			if err := tx.DeactivateLevelsByGenerator(ctx, generatorID); err != nil {
				return fmt.Errorf("deactivate levels: %w", err)
			}
			return tx.SoftDeleteGenerator(ctx, generatorID, existing.Name+" [deleted]", now)
		}
		if err := tx.DeleteUnreferencedLevelsByGenerator(ctx, generatorID); err != nil {
			return fmt.Errorf("delete levels: %w", err)
		}
		return tx.DeleteGenerator(ctx, generatorID)
	})
}

func (s *service) ListOwned(ctx context.Context, ownerUserID string) ([]Summary, error) {
	gens, err := s.st.ListGeneratorsByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("list owned generators: %w", err)
	}

	out := make([]Summary, 0, len(gens))
	for _, g := range gens {
		active, err := s.st.ListActiveLevelsByGenerator(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("count levels for %s: %w", g.ID, err)
		}
		out = append(out, Summary{
			ID: g.ID, Name: g.Name, Version: g.Version, Description: g.Description,
			Tags: g.Tags, DocumentationURL: g.DocumentationURL, IsActive: g.IsActive,
			LevelCount: len(active),
		})
	}
	return out, nil
}

func (s *service) GetDetail(ctx context.Context, generatorID string) (*Detail, error) {
	g, err := s.st.GetGeneratorByID(ctx, generatorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGeneratorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup generator: %w", err)
	}
	rating, err := s.st.GetRating(ctx, generatorID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup rating: %w", err)
	}
	levels, err := s.st.ListLevelsByGenerator(ctx, generatorID)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}

	refs := make([]LevelRef, 0, len(levels))
	active := 0
	for _, l := range levels {
		if l.IsActive {
			active++
		}
		refs = append(refs, LevelRef{ID: l.ID, Width: l.Width, Height: l.Height, ContentHash: l.ContentHash, IsActive: l.IsActive})
	}

	d := &Detail{
		Summary: Summary{
			ID: g.ID, Name: g.Name, Version: g.Version, Description: g.Description,
			Tags: g.Tags, DocumentationURL: g.DocumentationURL, IsActive: g.IsActive, LevelCount: active,
		},
		Levels: refs,
	}
	if rating != nil {
		d.Rating = rating.Value
		d.RD = rating.RD
		d.GamesPlayed = rating.GamesPlayed
	}
	return d, nil
}

func nonEmptyOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
