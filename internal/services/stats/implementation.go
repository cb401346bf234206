package stats

import (
	"context"
	"fmt"

	"pcgarena/internal/config"
	"pcgarena/internal/store"
)

type service struct {
	mmCfg config.MatchmakingConfig
	st    *store.Store
}

func NewService(mmCfg config.MatchmakingConfig, st *store.Store) Service {
	return &service{mmCfg: mmCfg, st: st}
}

func (s *service) ConfusionMatrix(ctx context.Context) (*ConfusionMatrix, error) {
	generators, err := s.st.ListActiveGenerators(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active generators: %w", err)
	}
	totalPairs := len(generators) * (len(generators) - 1) / 2

	rows, err := s.st.ConfusionMatrix(ctx)
	if err != nil {
		return nil, fmt.Errorf("confusion matrix: %w", err)
	}

	pairs := make([]PairOutcome, 0, len(rows))
	atTarget := 0
	for _, r := range rows {
		battles := r.AWins + r.BWins + r.Ties
		if int(battles) >= s.mmCfg.TargetBattlesPerPair {
			atTarget++
		}
		pairs = append(pairs, PairOutcome{
			GeneratorA: r.GeneratorA, GeneratorB: r.GeneratorB,
			AWins: r.AWins, BWins: r.BWins, Ties: r.Ties, Battles: battles,
		})
	}

	coverage := 0.0
	if totalPairs > 0 {
		coverage = float64(atTarget) / float64(totalPairs) * 100
	}

	return &ConfusionMatrix{
		Pairs: pairs, TotalPairs: totalPairs, PairsWithData: len(pairs),
		PairsAtTarget: atTarget, TargetBattlesPerPair: s.mmCfg.TargetBattlesPerPair,
		CoveragePercent: coverage,
	}, nil
}
