// Package stats serves aggregate diagnostics over the vote history: the
// pairwise confusion matrix and matchmaking coverage (spec §6 GET
// /v1/stats/confusion-matrix).
package stats

import "context"

// PairOutcome is one unordered generator pair's aggregate head-to-head record.
type PairOutcome struct {
	GeneratorA string
	GeneratorB string
	AWins      int64
	BWins      int64
	Ties       int64
	Battles    int64
}

// ConfusionMatrix is the full stats response payload.
type ConfusionMatrix struct {
	Pairs                []PairOutcome
	TotalPairs           int
	PairsWithData        int
	PairsAtTarget        int
	TargetBattlesPerPair int
	CoveragePercent      float64
}

// Service computes aggregate vote statistics.
type Service interface {
	ConfusionMatrix(ctx context.Context) (*ConfusionMatrix, error)
}
