package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pcgarena/internal/config"
	"pcgarena/internal/store"
	"pcgarena/internal/store/types"
)

type service struct {
	rateCfg config.RatingConfig
	logger  *zap.Logger
	st      *store.Store
}

func NewService(rateCfg config.RatingConfig, logger *zap.Logger, st *store.Store) Service {
	return &service{rateCfg: rateCfg, logger: logger, st: st}
}

func (s *service) SetGeneratorActive(ctx context.Context, generatorID string, active bool) error {
	if _, err := s.st.GetGeneratorByID(ctx, generatorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGeneratorNotFound
		}
		return fmt.Errorf("lookup generator: %w", err)
	}
	return s.st.SetGeneratorActive(ctx, generatorID, active, types.Timestamp{Time: time.Now()})
}

func (s *service) SeasonReset(ctx context.Context) error {
	now := types.Timestamp{Time: time.Now()}
	err := s.st.WithTx(ctx, func(tx *store.Store) error {
		return tx.SeasonReset(ctx, s.rateCfg.InitialRating, s.rateCfg.InitialRD, s.rateCfg.InitialVolatility, now)
	})
	if err != nil {
		return fmt.Errorf("season reset: %w", err)
	}
	s.logger.Info("season reset applied")
	return nil
}

func (s *service) FlagSession(ctx context.Context, token string, flagged bool) error {
	if _, err := s.st.GetSessionByToken(ctx, token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("lookup session: %w", err)
	}
	return s.st.FlagSession(ctx, token, flagged)
}

func (s *service) Backup(ctx context.Context, destPath string) error {
	if err := s.st.Backup(ctx, destPath); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	s.logger.Info("backup written", zap.String("path", destPath))
	return nil
}
