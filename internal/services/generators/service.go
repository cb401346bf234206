// Package generators implements the authenticated generator-submission
// pipeline: ZIP ingestion, per-file tilemap validation, quota enforcement,
// and the update/delete history-preservation rules of spec §4.6.
package generators

import (
	"context"
	"errors"
)

var (
	ErrNotOwner              = errors.New("generators: caller does not own this generator")
	ErrGeneratorNotFound     = errors.New("generators: generator not found")
	ErrGeneratorIDExists     = errors.New("generators: generator id already in use")
	ErrInvalidGeneratorID    = errors.New("generators: invalid generator id")
	ErrMaxGeneratorsExceeded = errors.New("generators: owner already has 3 active generators")
	ErrInvalidZip            = errors.New("generators: archive is not a valid zip")
	ErrZipTooLarge           = errors.New("generators: archive exceeds the 10MB limit")
	ErrNotEnoughLevels       = errors.New("generators: fewer than 50 valid levels in archive")
	ErrTooManyLevels         = errors.New("generators: more than 200 valid levels in archive")
	ErrLevelValidationFailed = errors.New("generators: a level file failed validation")
)

// LevelFailure pinpoints the offending file in a failed submission.
type LevelFailure struct {
	File   string
	Reason string
}

// ValidationError wraps ErrLevelValidationFailed with the specific file
// and reason, surfaced in the error response's details object.
type ValidationError struct {
	LevelFailure
}

func (e *ValidationError) Error() string {
	return "generators: " + e.File + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrLevelValidationFailed }

// SubmissionInput is the parsed multipart body of an upload or update.
type SubmissionInput struct {
	GeneratorID      string
	Name             string
	Description      *string
	Version          string
	Tags             []string
	DocumentationURL *string
	OwnerUserID      string
	ZipBytes         []byte
}

// Summary is the generator row returned after a successful submission.
type Summary struct {
	ID               string
	Name             string
	Version          string
	Description      *string
	Tags             []string
	DocumentationURL *string
	IsActive         bool
	LevelCount       int
}

// Detail is the public generator-detail view, including its full level list.
type Detail struct {
	Summary
	Rating      float64
	RD          float64
	GamesPlayed int64
	Levels      []LevelRef
}

// LevelRef is a single level's identity within a generator detail view.
type LevelRef struct {
	ID          string
	Width       int
	Height      int
	ContentHash string
	IsActive    bool
}

// Service is the generator-submission pipeline.
type Service interface {
	Upload(ctx context.Context, in SubmissionInput) (*Summary, error)
	Update(ctx context.Context, in SubmissionInput) (*Summary, error)
	Delete(ctx context.Context, generatorID, ownerUserID string) error
	ListOwned(ctx context.Context, ownerUserID string) ([]Summary, error)
	GetDetail(ctx context.Context, generatorID string) (*Detail, error)
}
