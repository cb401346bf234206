// Package admin implements the bearer-key/admin-session-gated operator
// endpoints: generator enable/disable, season reset, session flag, and
// on-demand backup (spec §4.7).
package admin

import (
	"context"
	"errors"
)

var (
	ErrGeneratorNotFound = errors.New("admin: generator not found")
	ErrSessionNotFound   = errors.New("admin: session not found")
)

// Service is the admin operations surface.
type Service interface {
	SetGeneratorActive(ctx context.Context, generatorID string, active bool) error
	SeasonReset(ctx context.Context) error
	FlagSession(ctx context.Context, token string, flagged bool) error
	Backup(ctx context.Context, destPath string) error
}
