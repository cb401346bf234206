// Package leaderboard serves the read-only ranking view over the rating
// table (spec §6 GET /v1/leaderboard).
package leaderboard

import (
	"context"
	"time"
)

// RatingSystem describes the rating algorithm in effect, echoed verbatim
// so clients never have to hardcode Glicko-2 constants.
type RatingSystem struct {
	Name          string
	InitialRating float64
	InitialRD     float64
}

// Entry is one ranked generator row.
type Entry struct {
	Rank             int
	GeneratorID      string
	Name             string
	Version          string
	DocumentationURL *string
	Rating           float64
	GamesPlayed      int64
	Wins             int64
	Losses           int64
	Ties             int64
	Skips            int64
}

// Board is the full leaderboard response payload.
type Board struct {
	UpdatedAtUTC      time.Time
	RatingSystem      RatingSystem
	MatchmakingPolicy string
	Generators        []Entry
}

// Service serves the current leaderboard snapshot.
type Service interface {
	Get(ctx context.Context) (*Board, error)
}
