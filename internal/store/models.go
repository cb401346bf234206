package store

import "pcgarena/internal/store/types"

// BattleStatus enumerates the Battle lifecycle state machine (§4.4).
type BattleStatus string

const (
	BattleIssued    BattleStatus = "ISSUED"
	BattleCompleted BattleStatus = "COMPLETED"
	BattleExpired   BattleStatus = "EXPIRED"
)

// VoteResult enumerates the categorical verdict a client submits.
type VoteResult string

const (
	VoteLeft  VoteResult = "LEFT"
	VoteRight VoteResult = "RIGHT"
	VoteTie   VoteResult = "TIE"
	VoteSkip  VoteResult = "SKIP"
)

// MatchmakingPolicy enumerates the battle-issuance policies.
type MatchmakingPolicy string

const (
	PolicyUniformV0 MatchmakingPolicy = "uniform_v0"
	PolicyAGISV1    MatchmakingPolicy = "agis_v1"
)

// LevelFormat is the only supported level encoding.
const LevelFormat = "ASCII_TILEMAP"

// LevelHeight is fixed by spec.
const LevelHeight = 16

// User is a registered or externally-identified account.
type User struct {
	ID              string
	Email           string
	IdentityIssuer  *string
	IdentitySubject *string
	DisplayName     string
	PasswordHash    *string
	EmailVerified   bool
	IsAdmin         bool
	CreatedAt       types.Timestamp
	UpdatedAt       types.Timestamp
}

// Session is an opaque, server-side-tracked login session.
type Session struct {
	Token     string
	UserID    string
	CreatedAt types.Timestamp
	ExpiresAt types.Timestamp
	Flagged   bool
}

// EmailVerifyToken is a single-use, 24h token sent on registration.
type EmailVerifyToken struct {
	Token      string
	UserID     string
	ExpiresAt  types.Timestamp
	ConsumedAt types.NullTimestamp
}

// PasswordResetToken is a single-use, 1h token sent on forgot-password.
type PasswordResetToken struct {
	Token      string
	UserID     string
	ExpiresAt  types.Timestamp
	ConsumedAt types.NullTimestamp
}

// Generator is an identity for a procedural level-generation process.
type Generator struct {
	ID               string
	Name             string
	Version          string
	Description      *string
	Tags             []string
	DocumentationURL *string
	IsActive         bool
	OwnerUserID      *string
	CreatedAt        types.Timestamp
	UpdatedAt        types.Timestamp
}

// Level is a single 16-row ASCII tilemap produced by a Generator.
type Level struct {
	ID          string
	GeneratorID string
	Format      string
	Width       int
	Height      int
	Tilemap     string
	ContentHash string
	IsActive    bool
	CreatedAt   types.Timestamp
}

// Rating is a generator's Glicko-2 skill estimate plus outcome counters.
type Rating struct {
	GeneratorID string
	Value       float64
	RD          float64
	Volatility  float64
	GamesPlayed int64
	Wins        int64
	Losses      int64
	Ties        int64
	Skips       int64
	UpdatedAt   types.Timestamp
}

// Battle pairs two levels from two distinct generators for one session.
type Battle struct {
	ID               string
	SessionID        string
	Status           BattleStatus
	LeftLevelID      string
	RightLevelID     string
	LeftGeneratorID  string
	RightGeneratorID string
	Policy           MatchmakingPolicy
	PlayerID         *string
	IssuedAt         types.Timestamp
	ExpiresAt        types.Timestamp
}

// Vote is the categorical outcome a client submits for a battle.
type Vote struct {
	ID          string
	BattleID    string
	SessionID   string
	Result      VoteResult
	LeftTags    []string
	RightTags   []string
	Telemetry   string // raw JSON object, opaque to the store
	PayloadHash string
	PlayerID    *string
	CreatedAt   types.Timestamp
}

// RatingEvent is the per-vote audit record attributing a rating change.
type RatingEvent struct {
	ID               string
	VoteID           string
	BattleID         string
	LeftGeneratorID  string
	RightGeneratorID string
	Result           VoteResult
	DeltaLeft        float64
	DeltaRight       float64
	CreatedAt        types.Timestamp
}
