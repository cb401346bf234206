// Package battles implements the battles:next matchmaking draw and the
// votes transaction that scores it (spec §4.4).
package battles

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedClientVersion = errors.New("battles: unsupported client version")
	ErrNoBattleAvailable        = errors.New("battles: no battle available")
	ErrBattleNotFound           = errors.New("battles: battle not found")
	ErrBattleAlreadyVoted       = errors.New("battles: battle already voted")
	ErrDuplicateVoteConflict    = errors.New("battles: duplicate vote conflict")
	ErrInvalidTag               = errors.New("battles: tag outside the fixed vocabulary")
	ErrInvalidPayload           = errors.New("battles: invalid payload")
)

// GeneratorRef is the identity fields the client needs to display or
// (post-vote) attribute a side of the battle.
type GeneratorRef struct {
	ID               string
	Name             string
	Version          string
	DocumentationURL *string
}

// Side is one half of a battle envelope.
type Side struct {
	LevelID     string
	Generator   GeneratorRef
	Width       int
	Height      int
	Tilemap     string
	ContentHash string
}

// Envelope is the full battles:next response payload.
type Envelope struct {
	BattleID                  string
	IssuedAtUTC               string
	ExpiresAtUTC              string
	PlayOrder                 string
	SuggestedTimeLimitSeconds int
	Left                      Side
	Right                     Side
}

// VoteInput is the votes request payload.
type VoteInput struct {
	ClientVersion string
	SessionID     string
	BattleID      string
	Result        string
	LeftTags      []string
	RightTags     []string
	Telemetry     string // raw JSON object, passed through opaque
	PlayerID      *string
}

// LeaderboardEntry is the compact per-generator row in a vote response's
// leaderboard_preview.
type LeaderboardEntry struct {
	GeneratorID string
	Rating      float64
	GamesPlayed int64
}

// VoteOutcome is the votes response payload.
type VoteOutcome struct {
	Accepted           bool
	VoteID             string
	LeaderboardPreview []LeaderboardEntry
}

// Service is the battle draw and vote-scoring layer.
type Service interface {
	Next(ctx context.Context, clientVersion, sessionID string, playerID *string) (*Envelope, error)
	Vote(ctx context.Context, in VoteInput) (*VoteOutcome, error)
}
