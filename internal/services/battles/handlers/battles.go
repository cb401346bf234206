// Package handlers adapts the battles Service to fiber routes.
package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pcgarena/internal/apierr"
	"pcgarena/internal/services/battles"
)

type Handlers struct {
	svc    battles.Service
	logger *zap.Logger
}

func New(svc battles.Service, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

type nextRequest struct {
	ClientVersion string  `json:"client_version"`
	SessionID     string  `json:"session_id"`
	PlayerID      *string `json:"player_id"`
}

// Next handles POST /v1/battles:next.
func (h *Handlers) Next(c *fiber.Ctx) error {
	var req nextRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.Validation(c, "INVALID_PAYLOAD", "malformed request body")
	}
	if req.ClientVersion == "" || req.SessionID == "" {
		return apierr.Validation(c, "INVALID_PAYLOAD", "client_version and session_id are required")
	}

	env, err := h.svc.Next(c.Context(), req.ClientVersion, req.SessionID, req.PlayerID)
	if err != nil {
		switch {
		case errors.Is(err, battles.ErrUnsupportedClientVersion):
			return apierr.Validation(c, "UNSUPPORTED_CLIENT_VERSION", "this client version is no longer supported")
		case errors.Is(err, battles.ErrNoBattleAvailable):
			return apierr.Write(c, fiber.StatusServiceUnavailable, "NO_BATTLE_AVAILABLE", "no battle can be issued right now", true)
		default:
			h.logger.Error("battles:next failed", zap.Error(err))
			return apierr.Internal(c)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"battle_id":        env.BattleID,
		"issued_at_utc":    env.IssuedAtUTC,
		"expires_at_utc":   env.ExpiresAtUTC,
		"presentation": fiber.Map{
			"play_order":                   env.PlayOrder,
			"suggested_time_limit_seconds": env.SuggestedTimeLimitSeconds,
		},
		"left":  sideJSON(env.Left),
		"right": sideJSON(env.Right),
	})
}

func sideJSON(s battles.Side) fiber.Map {
	return fiber.Map{
		"level_id": s.LevelID,
		"generator": fiber.Map{
			"id":                s.Generator.ID,
			"name":              s.Generator.Name,
			"version":           s.Generator.Version,
			"documentation_url": s.Generator.DocumentationURL,
		},
		"format": fiber.Map{
			"type":    "ASCII_TILEMAP",
			"width":   s.Width,
			"height":  s.Height,
			"newline": "\n",
		},
		"level_payload": fiber.Map{
			"tilemap": s.Tilemap,
		},
		"content_hash": s.ContentHash,
	}
}

type voteRequest struct {
	ClientVersion string          `json:"client_version"`
	SessionID     string          `json:"session_id"`
	BattleID      string          `json:"battle_id"`
	Result        string          `json:"result"`
	LeftTags      []string        `json:"left_tags"`
	RightTags     []string        `json:"right_tags"`
	Telemetry     json.RawMessage `json:"telemetry"`
	PlayerID      *string         `json:"player_id"`
}

// Vote handles POST /v1/votes.
func (h *Handlers) Vote(c *fiber.Ctx) error {
	var req voteRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.Validation(c, "INVALID_PAYLOAD", "malformed request body")
	}
	if req.ClientVersion == "" || req.SessionID == "" || req.BattleID == "" || req.Result == "" {
		return apierr.Validation(c, "INVALID_PAYLOAD", "client_version, session_id, battle_id, and result are required")
	}

	telemetry := "{}"
	if len(req.Telemetry) > 0 {
		telemetry = string(req.Telemetry)
	}

	outcome, err := h.svc.Vote(c.Context(), battles.VoteInput{
		ClientVersion: req.ClientVersion,
		SessionID:     req.SessionID,
		BattleID:      req.BattleID,
		Result:        req.Result,
		LeftTags:      req.LeftTags,
		RightTags:     req.RightTags,
		Telemetry:     telemetry,
		PlayerID:      req.PlayerID,
	})
	if err != nil {
		switch {
		case errors.Is(err, battles.ErrUnsupportedClientVersion):
			return apierr.Validation(c, "UNSUPPORTED_CLIENT_VERSION", "this client version is no longer supported")
		case errors.Is(err, battles.ErrInvalidPayload):
			return apierr.Validation(c, "INVALID_PAYLOAD", "result must be one of LEFT, RIGHT, TIE, SKIP")
		case errors.Is(err, battles.ErrInvalidTag):
			return apierr.Validation(c, "INVALID_TAG", "tags must come from the fixed vocabulary")
		case errors.Is(err, battles.ErrBattleNotFound):
			return apierr.Write(c, fiber.StatusNotFound, "BATTLE_NOT_FOUND", "no such battle", false)
		case errors.Is(err, battles.ErrBattleAlreadyVoted):
			return apierr.Write(c, fiber.StatusConflict, "BATTLE_ALREADY_VOTED", "this battle can no longer accept a vote", false)
		case errors.Is(err, battles.ErrDuplicateVoteConflict):
			return apierr.Write(c, fiber.StatusConflict, "DUPLICATE_VOTE_CONFLICT", "a different vote was already recorded for this battle", false)
		default:
			h.logger.Error("votes failed", zap.Error(err))
			return apierr.Internal(c)
		}
	}

	preview := make([]fiber.Map, 0, len(outcome.LeaderboardPreview))
	for _, e := range outcome.LeaderboardPreview {
		preview = append(preview, fiber.Map{
			"generator_id": e.GeneratorID,
			"rating":       e.Rating,
			"games_played": e.GamesPlayed,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version":    "arena/v0",
		"accepted":            outcome.Accepted,
		"vote_id":             outcome.VoteID,
		"leaderboard_preview": preview,
	})
}

// RegisterRoutes mounts battles:next and votes under the given router group,
// each behind its own chain of route-specific middleware (the two endpoints
// carry distinct rate-limit budgets and metrics counters). Both are
// reachable without an authenticated session; anonymous play is first-class.
func RegisterRoutes(group fiber.Router, h *Handlers, nextMiddleware, votesMiddleware []fiber.Handler) {
	group.Post("/battles:next", append(append([]fiber.Handler{}, nextMiddleware...), h.Next)...)
	group.Post("/votes", append(append([]fiber.Handler{}, votesMiddleware...), h.Vote)...)
}
