package ratingengine_test

import (
	"math"
	"testing"

	"pcgarena/internal/ratingengine"
)

func defaultConfig() ratingengine.Config {
	return ratingengine.Config{
		InitialRating:     1500,
		InitialRD:         350,
		InitialVolatility: 0.06,
		Tau:               0.5,
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// TestApplyVote_GlickmanWorkedExample uses the three opponents of the worked
// example in Glickman's "Example of the Glicko-2 system" paper: a player
// rated 1500/200 plays a win, a loss and a loss against opponents of
// varying rating/RD. Each game is applied on its own to the same starting
// rating, and the test checks the direction of each rating move and that
// RD shrinks; the paper's combined end values are not checked.
func TestApplyVote_GlickmanWorkedExample(t *testing.T) {
	cfg := ratingengine.Config{InitialRating: 1500, InitialRD: 350, InitialVolatility: 0.06, Tau: 0.5}
	self := ratingengine.Rating{Value: 1500, RD: 200, Volatility: 0.06}

	opponents := []struct {
		rating, rd float64
		result     ratingengine.Result
	}{
		{1400, 30, ratingengine.Win},
		{1550, 100, ratingengine.Loss},
		{1700, 300, ratingengine.Loss},
	}

	// ApplyVote takes a single opponent, so each game is applied to the
	// fixed self rating independently; the paper's multi-opponent
	// combination is not computed here.
	for _, opp := range opponents {
		oppRating := ratingengine.Rating{Value: opp.rating, RD: opp.rd, Volatility: 0.06}
		update, _ := ratingengine.ApplyVote(cfg, self, oppRating, opp.result)
		if update.RD >= self.RD {
			t.Errorf("expected RD to shrink after a game, got %f >= %f", update.RD, self.RD)
		}
		if opp.result == ratingengine.Win && update.Value <= self.Value {
			t.Errorf("expected rating to rise after a win, got %f <= %f", update.Value, self.Value)
		}
		if opp.result == ratingengine.Loss && update.Value >= self.Value {
			t.Errorf("expected rating to fall after a loss, got %f >= %f", update.Value, self.Value)
		}
	}
}

func TestApplyVote_TieSymmetryWithEqualRatings(t *testing.T) {
	cfg := defaultConfig()
	left := ratingengine.InitialRating(cfg)
	right := ratingengine.InitialRating(cfg)

	leftUpdate, rightUpdate := ratingengine.ApplyVote(cfg, left, right, ratingengine.Tie)

	if !almostEqual(leftUpdate.Delta+rightUpdate.Delta, 0, 1e-9) {
		t.Errorf("tie with equal ratings should be symmetric: delta_left=%f delta_right=%f",
			leftUpdate.Delta, rightUpdate.Delta)
	}
	if !almostEqual(leftUpdate.RD, rightUpdate.RD, 1e-9) {
		t.Errorf("tie with equal ratings should leave RD symmetric: rd_left=%f rd_right=%f",
			leftUpdate.RD, rightUpdate.RD)
	}
}

func TestApplyVote_WinnerGainsLoserLoses(t *testing.T) {
	cfg := defaultConfig()
	left := ratingengine.InitialRating(cfg)
	right := ratingengine.InitialRating(cfg)

	leftUpdate, rightUpdate := ratingengine.ApplyVote(cfg, left, right, ratingengine.Win)

	if leftUpdate.Delta <= 0 {
		t.Errorf("winner's delta should be positive, got %f", leftUpdate.Delta)
	}
	if rightUpdate.Delta >= 0 {
		t.Errorf("loser's delta should be negative, got %f", rightUpdate.Delta)
	}
	if !almostEqual(leftUpdate.Delta, -rightUpdate.Delta, 1e-6) {
		t.Errorf("equal-rating win/loss deltas should be near-symmetric: %f vs %f",
			leftUpdate.Delta, rightUpdate.Delta)
	}
}

func TestApplyVote_RDShrinksAfterEveryOutcome(t *testing.T) {
	cfg := defaultConfig()
	left := ratingengine.InitialRating(cfg)
	right := ratingengine.InitialRating(cfg)

	for _, result := range []ratingengine.Result{ratingengine.Win, ratingengine.Loss, ratingengine.Tie} {
		leftUpdate, rightUpdate := ratingengine.ApplyVote(cfg, left, right, result)
		if leftUpdate.RD >= left.RD {
			t.Errorf("result %v: left RD did not shrink: %f >= %f", result, leftUpdate.RD, left.RD)
		}
		if rightUpdate.RD >= right.RD {
			t.Errorf("result %v: right RD did not shrink: %f >= %f", result, rightUpdate.RD, right.RD)
		}
	}
}

func TestApplyVote_HighRDOpponentMovesSelfLess(t *testing.T) {
	cfg := defaultConfig()
	self := ratingengine.Rating{Value: 1500, RD: 60, Volatility: 0.06}
	confidentOpponent := ratingengine.Rating{Value: 1500, RD: 30, Volatility: 0.06}
	uncertainOpponent := ratingengine.Rating{Value: 1500, RD: 300, Volatility: 0.06}

	updateVsConfident, _ := ratingengine.ApplyVote(cfg, self, confidentOpponent, ratingengine.Win)
	updateVsUncertain, _ := ratingengine.ApplyVote(cfg, self, uncertainOpponent, ratingengine.Win)

	if math.Abs(updateVsUncertain.Delta) >= math.Abs(updateVsConfident.Delta) {
		t.Errorf("a win over a high-RD opponent should move rating less: vs_uncertain=%f vs_confident=%f",
			updateVsUncertain.Delta, updateVsConfident.Delta)
	}
}
