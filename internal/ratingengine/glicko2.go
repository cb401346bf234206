// Package ratingengine implements the Glicko-2 rating system used to score
// generators against one another from a stream of pairwise vote outcomes.
package ratingengine

import "math"

// glicko2Scale converts between the public rating scale and the internal
// Glicko-2 "mu" scale the algorithm operates on. The conversion is always
// centered on 1500, whatever the configured InitialRating.
const glicko2Scale = 173.7178

// Config holds the system-wide Glicko-2 parameters. These come from
// configuration, never hardcoded, so an operator can retune the rating
// system between seasons.
type Config struct {
	InitialRating     float64
	InitialRD         float64
	InitialVolatility float64
	Tau               float64 // volatility-change constant, typically 0.3-1.2
}

// Rating is one generator's current skill estimate, on the public scale.
type Rating struct {
	Value      float64
	RD         float64
	Volatility float64
}

// Result is the categorical outcome of a single battle, from the
// perspective of one side.
type Result int

const (
	// Loss scores 0.0 for this side.
	Loss Result = iota
	// Tie scores 0.5 for both sides.
	Tie
	// Win scores 1.0 for this side.
	Win
)

func (r Result) score() float64 {
	switch r {
	case Win:
		return 1.0
	case Tie:
		return 0.5
	default:
		return 0.0
	}
}

func (r Result) opponent() Result {
	switch r {
	case Win:
		return Loss
	case Loss:
		return Win
	default:
		return Tie
	}
}

// Update is the new rating triple for one side after one battle.
type Update struct {
	Rating
	Delta float64 // Value - previous Value, for the rating event audit row
}

func toInternal(r Rating) (mu, phi float64) {
	mu = (r.Value - 1500) / glicko2Scale
	phi = r.RD / glicko2Scale
	return
}

func fromInternal(mu, phi, sigma float64) Rating {
	return Rating{
		Value:      mu*glicko2Scale + 1500,
		RD:         phi * glicko2Scale,
		Volatility: sigma,
	}
}

func g(phi float64) float64 {
	return 1 / math.Sqrt(1+3*phi*phi/(math.Pi*math.Pi))
}

func e(mu, muOpp, phiOpp float64) float64 {
	return 1 / (1 + math.Exp(-g(phiOpp)*(mu-muOpp)))
}

// updateVolatility solves for the new volatility sigma' via the iterative
// procedure in Glickman's "Example of the Glicko-2 system" (step 5), using
// Illinois-algorithm bisection on f(x).
func updateVolatility(phi, v, delta, sigma, tau float64) float64 {
	a := math.Log(sigma * sigma)
	epsilon := 0.000001

	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (delta*delta - phi*phi - v - ex)
		den := 2 * math.Pow(phi*phi+v+ex, 2)
		return num/den - (x-a)/(tau*tau)
	}

	A := a
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a-k*tau) < 0 {
			k++
		}
		B = a - k*tau
	}

	fA, fB := f(A), f(B)
	for math.Abs(B-A) > epsilon {
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C)
		if fC*fB < 0 {
			A, fA = B, fB
		} else {
			fA = fA / 2
		}
		B, fB = C, fC
	}

	return math.Exp(A / 2)
}

// ApplyVote runs one Glicko-2 rating period (a single battle) for both
// sides of a vote and returns the new rating triple plus the signed delta
// for each, the way a rating-event audit row records it. A Skip result
// carries no Glicko-2 meaning; callers must not invoke ApplyVote for
// skipped battles (see the battles service, which records the skip
// counter without calling into this package).
func ApplyVote(cfg Config, left, right Rating, leftResult Result) (leftUpdate, rightUpdate Update) {
	rightResult := leftResult.opponent()

	leftUpdate = applyOneSidedPeriod(cfg, left, right, leftResult)
	rightUpdate = applyOneSidedPeriod(cfg, right, left, rightResult)
	return leftUpdate, rightUpdate
}

func applyOneSidedPeriod(cfg Config, self, opponent Rating, result Result) Update {
	mu, phi := toInternal(self)
	muOpp, phiOpp := toInternal(opponent)

	gOpp := g(phiOpp)
	eOpp := e(mu, muOpp, phiOpp)
	score := result.score()

	v := 1 / (gOpp * gOpp * eOpp * (1 - eOpp))
	delta := v * gOpp * (score - eOpp)

	sigmaPrime := updateVolatility(phi, v, delta, self.Volatility, cfg.Tau)

	phiStar := math.Sqrt(phi*phi + sigmaPrime*sigmaPrime)
	phiPrime := 1 / math.Sqrt(1/(phiStar*phiStar)+1/v)
	muPrime := mu + phiPrime*phiPrime*gOpp*(score-eOpp)

	updated := fromInternal(muPrime, phiPrime, sigmaPrime)
	return Update{
		Rating: updated,
		Delta:  updated.Value - self.Value,
	}
}

// InitialRating builds the Rating every newly-submitted generator starts
// with, from configuration.
func InitialRating(cfg Config) Rating {
	return Rating{
		Value:      cfg.InitialRating,
		RD:         cfg.InitialRD,
		Volatility: cfg.InitialVolatility,
	}
}
