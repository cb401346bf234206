// Package handlers adapts the stats Service to fiber routes.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pcgarena/internal/apierr"
	"pcgarena/internal/services/stats"
)

type Handlers struct {
	svc    stats.Service
	logger *zap.Logger
}

func New(svc stats.Service, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

// ConfusionMatrix handles GET /v1/stats/confusion-matrix.
func (h *Handlers) ConfusionMatrix(c *fiber.Ctx) error {
	m, err := h.svc.ConfusionMatrix(c.Context())
	if err != nil {
		h.logger.Error("confusion matrix lookup failed", zap.Error(err))
		return apierr.Internal(c)
	}

	pairs := make([]fiber.Map, 0, len(m.Pairs))
	for _, p := range m.Pairs {
		pairs = append(pairs, fiber.Map{
			"generator_a": p.GeneratorA,
			"generator_b": p.GeneratorB,
			"a_wins":      p.AWins,
			"b_wins":      p.BWins,
			"ties":        p.Ties,
			"battles":     p.Battles,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version":        "arena/v0",
		"pairs":                   pairs,
		"total_pairs":             m.TotalPairs,
		"pairs_with_data":         m.PairsWithData,
		"pairs_at_target":         m.PairsAtTarget,
		"target_battles_per_pair": m.TargetBattlesPerPair,
		"coverage_percent":        m.CoveragePercent,
	})
}

// RegisterRoutes mounts GET /v1/stats/confusion-matrix. Public, read-only.
func RegisterRoutes(group fiber.Router, h *Handlers) {
	group.Get("/stats/confusion-matrix", h.ConfusionMatrix)
}
