// Package handlers adapts the admin Service to fiber routes. Every route
// here must be mounted behind middleware.RequireAdmin.
package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pcgarena/internal/apierr"
	"pcgarena/internal/middleware"
	"pcgarena/internal/services/admin"
	"pcgarena/internal/store"
)

func backupSuffix() string {
	return time.Now().UTC().Format("20060102T150405Z")
}

type Handlers struct {
	svc        admin.Service
	backupPath string
	logger     *zap.Logger
}

// New builds the admin Handlers. backupPath is the destination file the
// on-demand backup writes to; a timestamp suffix is appended per call.
func New(svc admin.Service, backupPath string, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, backupPath: backupPath, logger: logger}
}

// EnableGenerator handles POST /admin/generators/{id}/enable.
func (h *Handlers) EnableGenerator(c *fiber.Ctx) error {
	return h.setActive(c, true)
}

// DisableGenerator handles POST /admin/generators/{id}/disable.
func (h *Handlers) DisableGenerator(c *fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *Handlers) setActive(c *fiber.Ctx, active bool) error {
	if err := h.svc.SetGeneratorActive(c.Context(), c.Params("id"), active); err != nil {
		if errors.Is(err, admin.ErrGeneratorNotFound) {
			return apierr.Write(c, fiber.StatusNotFound, "GENERATOR_NOT_FOUND", "no such generator", false)
		}
		h.logger.Error("set generator active failed", zap.Error(err))
		return apierr.Internal(c)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"protocol_version": "arena/v0", "is_active": active})
}

// SeasonReset handles POST /admin/season/reset.
func (h *Handlers) SeasonReset(c *fiber.Ctx) error {
	if err := h.svc.SeasonReset(c.Context()); err != nil {
		h.logger.Error("season reset failed", zap.Error(err))
		return apierr.Internal(c)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"protocol_version": "arena/v0", "reset": true})
}

type flagSessionRequest struct {
	Flagged bool `json:"flagged"`
}

// FlagSession handles POST /admin/sessions/{id}/flag.
func (h *Handlers) FlagSession(c *fiber.Ctx) error {
	var req flagSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.Validation(c, "INVALID_PAYLOAD", "malformed request body")
	}

	if err := h.svc.FlagSession(c.Context(), c.Params("id"), req.Flagged); err != nil {
		if errors.Is(err, admin.ErrSessionNotFound) {
			return apierr.Write(c, fiber.StatusNotFound, "SESSION_NOT_FOUND", "no such session", false)
		}
		h.logger.Error("flag session failed", zap.Error(err))
		return apierr.Internal(c)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"protocol_version": "arena/v0", "flagged": req.Flagged})
}

// Backup handles POST /admin/backup.
func (h *Handlers) Backup(c *fiber.Ctx) error {
	dest := h.backupPath + "." + backupSuffix()
	if err := h.svc.Backup(c.Context(), dest); err != nil {
		h.logger.Error("backup failed", zap.Error(err))
		return apierr.Internal(c)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"protocol_version": "arena/v0", "backup_path": dest})
}

// RegisterRoutes mounts every admin operation behind RequireAdmin.
func RegisterRoutes(group fiber.Router, h *Handlers, st *store.Store, bearerKey string, logger *zap.Logger) {
	admin := group.Group("/admin", middleware.RequireAdmin(st, bearerKey, logger))
	admin.Post("/generators/:id/enable", h.EnableGenerator)
	admin.Post("/generators/:id/disable", h.DisableGenerator)
	admin.Post("/season/reset", h.SeasonReset)
	admin.Post("/sessions/:id/flag", h.FlagSession)
	admin.Post("/backup", h.Backup)
}
