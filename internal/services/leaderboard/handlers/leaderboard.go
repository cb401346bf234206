// Package handlers adapts the leaderboard Service to fiber routes.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pcgarena/internal/apierr"
	"pcgarena/internal/services/leaderboard"
)

type Handlers struct {
	svc    leaderboard.Service
	logger *zap.Logger
}

func New(svc leaderboard.Service, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

// Get handles GET /v1/leaderboard.
func (h *Handlers) Get(c *fiber.Ctx) error {
	board, err := h.svc.Get(c.Context())
	if err != nil {
		h.logger.Error("leaderboard lookup failed", zap.Error(err))
		return apierr.Internal(c)
	}

	rows := make([]fiber.Map, 0, len(board.Generators))
	for _, e := range board.Generators {
		rows = append(rows, fiber.Map{
			"rank":              e.Rank,
			"generator_id":      e.GeneratorID,
			"name":              e.Name,
			"version":           e.Version,
			"documentation_url": e.DocumentationURL,
			"rating":            e.Rating,
			"games_played":      e.GamesPlayed,
			"wins":              e.Wins,
			"losses":            e.Losses,
			"ties":              e.Ties,
			"skips":             e.Skips,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"updated_at_utc":   board.UpdatedAtUTC,
		"rating_system": fiber.Map{
			"name":           board.RatingSystem.Name,
			"initial_rating": board.RatingSystem.InitialRating,
			"initial_rd":     board.RatingSystem.InitialRD,
		},
		"matchmaking_policy": board.MatchmakingPolicy,
		"generators":         rows,
	})
}

// RegisterRoutes mounts GET /v1/leaderboard. Public, read-only, no session
// required.
func RegisterRoutes(group fiber.Router, h *Handlers) {
	group.Get("/leaderboard", h.Get)
}
