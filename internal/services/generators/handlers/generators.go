// Package handlers adapts the generators Service to fiber routes.
package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"pcgarena/internal/apierr"
	"pcgarena/internal/middleware"
	"pcgarena/internal/services/generators"
	"pcgarena/internal/store"
)

type Handlers struct {
	svc    generators.Service
	st     *store.Store
	logger *zap.Logger
}

func New(svc generators.Service, st *store.Store, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, st: st, logger: logger}
}

// Mine handles GET /v1/builders/me/generators.
func (h *Handlers) Mine(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return apierr.Write(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "a valid session is required", false)
	}

	list, err := h.svc.ListOwned(c.Context(), userID)
	if err != nil {
		h.logger.Error("list owned generators failed", zap.Error(err))
		return apierr.Internal(c)
	}

	out := make([]fiber.Map, 0, len(list))
	for _, g := range list {
		out = append(out, summaryJSON(g))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"protocol_version": "arena/v0",
		"generators":       out,
	})
}

func summaryJSON(s generators.Summary) fiber.Map {
	return fiber.Map{
		"generator_id":      s.ID,
		"name":              s.Name,
		"version":           s.Version,
		"description":       s.Description,
		"tags":              s.Tags,
		"documentation_url": s.DocumentationURL,
		"is_active":         s.IsActive,
		"level_count":       s.LevelCount,
	}
}

// Detail handles GET /v1/generators/{id}.
func (h *Handlers) Detail(c *fiber.Ctx) error {
	id := c.Params("id")
	d, err := h.svc.GetDetail(c.Context(), id)
	if err != nil {
		if errors.Is(err, generators.ErrGeneratorNotFound) {
			return apierr.Write(c, fiber.StatusNotFound, "GENERATOR_NOT_FOUND", "no such generator", false)
		}
		h.logger.Error("generator detail failed", zap.Error(err))
		return apierr.Internal(c)
	}

	levels := make([]fiber.Map, 0, len(d.Levels))
	for _, l := range d.Levels {
		levels = append(levels, fiber.Map{
			"level_id":     l.ID,
			"width":        l.Width,
			"height":       l.Height,
			"content_hash": l.ContentHash,
			"is_active":    l.IsActive,
		})
	}

	resp := summaryJSON(d.Summary)
	resp["rating"] = d.Rating
	resp["rating_deviation"] = d.RD
	resp["games_played"] = d.GamesPlayed
	resp["levels"] = levels
	resp["protocol_version"] = "arena/v0"
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *Handlers) parseSubmission(c *fiber.Ctx, requireGeneratorID string) (*generators.SubmissionInput, error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return nil, errUnauthenticated
	}

	generatorID := c.FormValue("generator_id", requireGeneratorID)
	if generatorID == "" {
		return nil, errMissingGeneratorID
	}

	fh, err := c.FormFile("levels_zip")
	if err != nil {
		return nil, errMissingZip
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errMissingZip
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, errMissingZip
	}

	in := &generators.SubmissionInput{
		GeneratorID: generatorID,
		Name:        c.FormValue("name"),
		Version:     c.FormValue("version"),
		OwnerUserID: userID,
		ZipBytes:    buf,
	}
	if v := c.FormValue("description"); v != "" {
		in.Description = &v
	}
	if v := c.FormValue("documentation_url"); v != "" {
		in.DocumentationURL = &v
	}
	if v := c.FormValue("tags"); v != "" {
		in.Tags = splitCSV(v)
	}
	return in, nil
}

func splitCSV(raw string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	return out
}

var (
	errUnauthenticated    = fiber.NewError(fiber.StatusUnauthorized, "a valid session is required")
	errMissingGeneratorID = fiber.NewError(fiber.StatusBadRequest, "generator_id is required")
	errMissingZip         = fiber.NewError(fiber.StatusBadRequest, "levels_zip file is required")
)

// Upload handles POST /v1/builders/generators/upload.
func (h *Handlers) Upload(c *fiber.Ctx) error {
	in, err := h.parseSubmission(c, "")
	if err != nil {
		return validationOrAuthError(c, err)
	}
	if in.Name == "" {
		return apierr.Validation(c, "INVALID_PAYLOAD", "name is required")
	}

	summary, err := h.svc.Upload(c.Context(), *in)
	if err != nil {
		return submissionError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(withProtocol(summaryJSON(*summary)))
}

// Update handles PUT /v1/builders/generators/{id}/upload.
func (h *Handlers) Update(c *fiber.Ctx) error {
	in, err := h.parseSubmission(c, c.Params("id"))
	if err != nil {
		return validationOrAuthError(c, err)
	}

	summary, err := h.svc.Update(c.Context(), *in)
	if err != nil {
		return submissionError(c, h.logger, err)
	}
	return c.Status(fiber.StatusOK).JSON(withProtocol(summaryJSON(*summary)))
}

// Delete handles DELETE /v1/builders/generators/{id}.
func (h *Handlers) Delete(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return apierr.Write(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "a valid session is required", false)
	}

	if err := h.svc.Delete(c.Context(), c.Params("id"), userID); err != nil {
		return submissionError(c, h.logger, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"protocol_version": "arena/v0", "deleted": true})
}

func withProtocol(m fiber.Map) fiber.Map {
	m["protocol_version"] = "arena/v0"
	return m
}

func validationOrAuthError(c *fiber.Ctx, err error) error {
	if err == errUnauthenticated {
		return apierr.Write(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", err.Error(), false)
	}
	return apierr.Validation(c, "INVALID_PAYLOAD", err.Error())
}

func submissionError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	switch {
	case errors.Is(err, generators.ErrInvalidGeneratorID):
		return apierr.Validation(c, "INVALID_GENERATOR_ID", "generator id must be 3-32 chars, start with a letter, and use only [A-Za-z0-9_-]")
	case errors.Is(err, generators.ErrGeneratorIDExists):
		return apierr.Write(c, fiber.StatusConflict, "GENERATOR_ID_EXISTS", "this generator id is already taken", false)
	case errors.Is(err, generators.ErrGeneratorNotFound):
		return apierr.Write(c, fiber.StatusNotFound, "GENERATOR_NOT_FOUND", "no such generator", false)
	case errors.Is(err, generators.ErrNotOwner):
		return apierr.Write(c, fiber.StatusForbidden, "NOT_OWNER", "you do not own this generator", false)
	case errors.Is(err, generators.ErrMaxGeneratorsExceeded):
		return apierr.Validation(c, "MAX_GENERATORS_EXCEEDED", "an account may have at most 3 active generators")
	case errors.Is(err, generators.ErrInvalidZip):
		return apierr.Validation(c, "INVALID_ZIP", "archive could not be read as a zip file")
	case errors.Is(err, generators.ErrZipTooLarge):
		return apierr.Validation(c, "ZIP_TOO_LARGE", "archive exceeds the 10MB limit")
	case errors.Is(err, generators.ErrNotEnoughLevels):
		return apierr.Validation(c, "NOT_ENOUGH_LEVELS", "archive must contain at least 50 valid levels")
	case errors.Is(err, generators.ErrTooManyLevels):
		return apierr.Validation(c, "TOO_MANY_LEVELS", "archive must contain at most 200 valid levels")
	case errors.Is(err, generators.ErrLevelValidationFailed):
		var ve *generators.ValidationError
		details := fiber.Map{}
		if errors.As(err, &ve) {
			details["file"] = ve.File
			details["reason"] = ve.Reason
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"protocol_version": "arena/v0",
			"error": fiber.Map{
				"code": "LEVEL_VALIDATION_FAILED", "message": "a level file failed validation",
				"retryable": false, "details": details,
			},
		})
	default:
		logger.Error("generator submission failed", zap.Error(err))
		return apierr.Internal(c)
	}
}

// RegisterRoutes mounts the read-only generator detail route on the public
// group and the authenticated builder routes behind RequireSession.
func RegisterRoutes(group fiber.Router, h *Handlers, st *store.Store, logger *zap.Logger) {
	group.Get("/generators/:id", h.Detail)

	builders := group.Group("/builders", middleware.RequireSession(st, logger))
	builders.Get("/me/generators", h.Mine)
	builders.Post("/generators/upload", h.Upload)
	builders.Put("/generators/:id/upload", h.Update)
	builders.Delete("/generators/:id", h.Delete)
}
