// Package matchmaker selects which two generators are paired into a
// battle. Levels are not chosen here.
package matchmaker

import (
	"errors"
	"math"
	"math/rand"
)

// ErrNoBattleAvailable is returned when fewer than two candidates are
// given. Callers surface this as the retryable NO_BATTLE_AVAILABLE error.
var ErrNoBattleAvailable = errors.New("matchmaker: no battle available")

// Policy names recorded on the persisted battle for reproducibility.
const (
	PolicyUniformV0 = "uniform_v0"
	PolicyAGISV1    = "agis_v1"
)

// Config holds the AGIS tuning knobs, sourced from configuration.
type Config struct {
	TargetBattlesPerPair int     // T
	RatingSigma          float64 // σ
	QualityBias          float64 // β
	MinGamesSignificance int     // N0, not read by either sampling pass
}

// Candidate is one active generator's current standing, as seen by the
// matchmaker.
type Candidate struct {
	GeneratorID string
	Rating      float64
	RD          float64
}

// PairCount reports how many battles have ever paired two generators
// (order-independent).
type PairCount struct {
	A, B  string
	Count int
}

// Picked is the matchmaker's chosen ordered pair plus the policy tag used.
type Picked struct {
	Left, Right string
	Policy      string
}

// Pick runs the coverage-first, then-informative AGIS policy over the
// given candidates and pairwise battle counts, using rng for every random
// draw so callers can inject a seeded source in tests. Fewer than two
// candidates is ErrNoBattleAvailable.
func Pick(cfg Config, candidates []Candidate, pairCounts []PairCount, rng *rand.Rand) (Picked, error) {
	if len(candidates) < 2 {
		return Picked{}, ErrNoBattleAvailable
	}

	countOf := pairCountIndex(pairCounts)

	underCovered := underCoveredPairs(candidates, countOf, cfg.TargetBattlesPerPair)
	if len(underCovered) > 0 {
		pair := underCovered[rng.Intn(len(underCovered))]
		return assignSides(pair[0], pair[1], PolicyAGISV1, rng), nil
	}

	pair := sampleInformativePair(cfg, candidates, rng)
	return assignSides(pair[0], pair[1], PolicyAGISV1, rng), nil
}

// PickUniform is the uniform_v0 fallback policy: pick two distinct active
// generators with equal probability, no rating or coverage weighting.
func PickUniform(candidates []Candidate, rng *rand.Rand) (Picked, error) {
	if len(candidates) < 2 {
		return Picked{}, ErrNoBattleAvailable
	}
	i := rng.Intn(len(candidates))
	j := rng.Intn(len(candidates) - 1)
	if j >= i {
		j++
	}
	return assignSides(candidates[i], candidates[j], PolicyUniformV0, rng), nil
}

func pairCountIndex(counts []PairCount) map[[2]string]int {
	idx := make(map[[2]string]int, len(counts))
	for _, c := range counts {
		idx[normalizedKey(c.A, c.B)] = c.Count
	}
	return idx
}

func normalizedKey(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

func underCoveredPairs(candidates []Candidate, countOf map[[2]string]int, target int) [][2]Candidate {
	var pairs [][2]Candidate
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			key := normalizedKey(candidates[i].GeneratorID, candidates[j].GeneratorID)
			if countOf[key] < target {
				pairs = append(pairs, [2]Candidate{candidates[i], candidates[j]})
			}
		}
	}
	return pairs
}

func sampleInformativePair(cfg Config, candidates []Candidate, rng *rand.Rand) [2]Candidate {
	type weighted struct {
		pair   [2]Candidate
		weight float64
	}

	var weights []weighted
	total := 0.0
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			w := pairWeight(cfg, candidates[i], candidates[j])
			weights = append(weights, weighted{pair: [2]Candidate{candidates[i], candidates[j]}, weight: w})
			total += w
		}
	}

	if total <= 0 {
		// Degenerate case (every weight underflowed to zero): fall back to
		// uniform selection over all candidate pairs.
		return weights[rng.Intn(len(weights))].pair
	}

	draw := rng.Float64() * total
	cursor := 0.0
	for _, w := range weights {
		cursor += w.weight
		if draw <= cursor {
			return w.pair
		}
	}
	return weights[len(weights)-1].pair
}

func pairWeight(cfg Config, a, b Candidate) float64 {
	ratingDiff := a.Rating - b.Rating
	sigma := cfg.RatingSigma
	if sigma <= 0 {
		sigma = 1
	}
	proximity := math.Exp(-(ratingDiff * ratingDiff) / (2 * sigma * sigma))

	uncertainty := (a.RD + b.RD) / 2
	if uncertainty < 1 {
		uncertainty = 1
	}

	meanRating := (a.Rating + b.Rating) / 2
	qualityBias := qualityScore(meanRating)

	return proximity * uncertainty * (1 + cfg.QualityBias*qualityBias)
}

// qualityScore is a monotone function of mean rating, normalized into
// [0,1] with a logistic curve centered at 1500 so the informative pass
// still has some appetite for exploring high-rated generators without
// letting quality bias dominate proximity and uncertainty.
func qualityScore(meanRating float64) float64 {
	return 1 / (1 + math.Exp(-(meanRating-1500)/200))
}

func assignSides(a, b Candidate, policy string, rng *rand.Rand) Picked {
	if rng.Intn(2) == 0 {
		return Picked{Left: a.GeneratorID, Right: b.GeneratorID, Policy: policy}
	}
	return Picked{Left: b.GeneratorID, Right: a.GeneratorID, Policy: policy}
}
