// Package sweeper runs the background task that transitions ISSUED battles
// past their suggested expiry into EXPIRED (spec §5), under the same
// writer discipline as every other store mutation.
package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"pcgarena/internal/store"
	"pcgarena/internal/store/types"
)

// batchSize bounds how many expired battles are swept per tick, so one
// catastrophic backlog can't starve a single sweep cycle.
const batchSize = 200

// Sweeper periodically expires battles whose deadline has passed.
type Sweeper struct {
	st       *store.Store
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// New builds a Sweeper. interval is the tick cadence; spec §9 leaves the
// exact cadence unprescribed as long as it stays comfortably under any
// suggested_time_limit_seconds the matchmaker issues.
func New(st *store.Store, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		st:       st,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in a background goroutine until Stop is called.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.sweepOnce()
			}
		}
	}()
}

// Stop signals the sweep loop to exit and blocks until it has.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

// sweepOnce expires one batch of overdue ISSUED battles. Errors are logged
// and the tick moves on: a failed sweep cycle is never fatal, matching the
// background-task error policy of spec §7.
func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := types.Timestamp{Time: time.Now()}
	expired, err := s.st.ListExpiredIssuedBattles(ctx, now, batchSize)
	if err != nil {
		s.logger.Error("sweeper: list expired battles failed", zap.Error(err))
		return
	}

	for _, b := range expired {
		err := s.st.UpdateBattleStatus(ctx, b.ID, store.BattleIssued, store.BattleExpired)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("sweeper: expire battle failed", zap.String("battle_id", b.ID), zap.Error(err))
			continue
		}
	}

	if len(expired) > 0 {
		s.logger.Info("sweeper: expired battles", zap.Int("count", len(expired)))
	}
}
