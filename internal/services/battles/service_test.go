package battles_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"pcgarena/internal/config"
	"pcgarena/internal/services/battles"
	"pcgarena/internal/store"
	"pcgarena/internal/store/types"
	"pcgarena/internal/storetest"
)

func ts(t time.Time) types.Timestamp { return types.Timestamp{Time: t} }

func newTestConfig() (config.MatchmakingConfig, config.RatingConfig) {
	return config.MatchmakingConfig{
			Policy:               "agis_v1",
			TargetBattlesPerPair: 10,
			RatingSigma:          150,
			QualityBias:          0.2,
			MinGamesSignificance: 30,
			SuggestedTimeLimit:   3 * time.Minute,
		}, config.RatingConfig{
			InitialRating:     1500,
			InitialRD:         350,
			InitialVolatility: 0.06,
			Tau:               0.5,
		}
}

func newTestService(t *testing.T) (battles.Service, *store.Store) {
	st := storetest.NewStore(t)
	mmCfg, rateCfg := newTestConfig()
	svc := battles.NewService(mmCfg, rateCfg, zaptest.NewLogger(t), st)
	return svc, st
}

func seedGenerator(t *testing.T, st *store.Store, id string) {
	t.Helper()
	ctx := context.Background()
	now := ts(time.Now())

	if err := st.CreateGenerator(ctx, &store.Generator{
		ID: id, Name: id, Version: "1", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateGenerator(%s): %v", id, err)
	}
	if err := st.CreateRating(ctx, &store.Rating{
		GeneratorID: id, Value: 1500, RD: 350, Volatility: 0.06, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateRating(%s): %v", id, err)
	}
	if err := st.CreateLevel(ctx, &store.Level{
		ID: "lvl-" + id, GeneratorID: id, Format: store.LevelFormat, Width: 20,
		Height: store.LevelHeight, Tilemap: "map for " + id, ContentHash: "hash-" + id,
		IsActive: true, CreatedAt: now,
	}); err != nil {
		t.Fatalf("CreateLevel(%s): %v", id, err)
	}
}

func TestNext_RejectsUnsupportedClientVersion(t *testing.T) {
	svc, st := newTestService(t)
	seedGenerator(t, st, "gen-a")
	seedGenerator(t, st, "gen-b")

	_, err := svc.Next(context.Background(), "2.0.0", "sess-1", nil)
	if !errors.Is(err, battles.ErrUnsupportedClientVersion) {
		t.Errorf("err = %v, want ErrUnsupportedClientVersion", err)
	}
}

func TestNext_NoBattleAvailableWithFewerThanTwoGenerators(t *testing.T) {
	svc, st := newTestService(t)
	seedGenerator(t, st, "gen-solo")

	_, err := svc.Next(context.Background(), "1.0.0", "sess-1", nil)
	if !errors.Is(err, battles.ErrNoBattleAvailable) {
		t.Errorf("err = %v, want ErrNoBattleAvailable", err)
	}
}

func TestNext_IssuesBattleBetweenTwoDistinctGenerators(t *testing.T) {
	svc, st := newTestService(t)
	seedGenerator(t, st, "gen-a")
	seedGenerator(t, st, "gen-b")

	env, err := svc.Next(context.Background(), "1.2.0", "sess-1", nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if env.BattleID == "" {
		t.Error("BattleID is empty")
	}
	if env.Left.Generator.ID == env.Right.Generator.ID {
		t.Errorf("both sides drew the same generator: %s", env.Left.Generator.ID)
	}
	if env.PlayOrder != "LEFT_THEN_RIGHT" {
		t.Errorf("PlayOrder = %q, want LEFT_THEN_RIGHT", env.PlayOrder)
	}

	stored, err := st.GetBattleByID(context.Background(), env.BattleID)
	if err != nil {
		t.Fatalf("GetBattleByID: %v", err)
	}
	if stored.Status != store.BattleIssued {
		t.Errorf("stored battle status = %s, want ISSUED", stored.Status)
	}
}

func TestVote_AcceptsAndUpdatesRatings(t *testing.T) {
	svc, st := newTestService(t)
	seedGenerator(t, st, "gen-a")
	seedGenerator(t, st, "gen-b")
	ctx := context.Background()

	env, err := svc.Next(ctx, "1.0.0", "sess-1", nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	outcome, err := svc.Vote(ctx, battles.VoteInput{
		ClientVersion: "1.0.0", SessionID: "sess-1", BattleID: env.BattleID,
		Result: "LEFT", LeftTags: []string{"fun"}, RightTags: nil, Telemetry: "{}",
	})
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if !outcome.Accepted || outcome.VoteID == "" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	stored, err := st.GetBattleByID(ctx, env.BattleID)
	if err != nil {
		t.Fatalf("GetBattleByID: %v", err)
	}
	if stored.Status != store.BattleCompleted {
		t.Errorf("status = %s, want COMPLETED", stored.Status)
	}

	winner, err := st.GetRating(ctx, env.Left.Generator.ID)
	if err != nil {
		t.Fatalf("GetRating(left): %v", err)
	}
	if winner.Wins != 1 || winner.GamesPlayed != 1 {
		t.Errorf("unexpected winner rating: %+v", winner)
	}
}

func TestVote_RejectsInvalidTag(t *testing.T) {
	svc, st := newTestService(t)
	seedGenerator(t, st, "gen-a")
	seedGenerator(t, st, "gen-b")
	ctx := context.Background()

	env, err := svc.Next(ctx, "1.0.0", "sess-1", nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	_, err = svc.Vote(ctx, battles.VoteInput{
		ClientVersion: "1.0.0", SessionID: "sess-1", BattleID: env.BattleID,
		Result: "LEFT", LeftTags: []string{"not_a_real_tag"},
	})
	if !errors.Is(err, battles.ErrInvalidTag) {
		t.Errorf("err = %v, want ErrInvalidTag", err)
	}
}

func TestVote_UnknownBattleNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Vote(context.Background(), battles.VoteInput{
		ClientVersion: "1.0.0", SessionID: "sess-1", BattleID: "does-not-exist", Result: "LEFT",
	})
	if !errors.Is(err, battles.ErrBattleNotFound) {
		t.Errorf("err = %v, want ErrBattleNotFound", err)
	}
}

func TestVote_IdempotentReplayReturnsSameVoteID(t *testing.T) {
	svc, st := newTestService(t)
	seedGenerator(t, st, "gen-a")
	seedGenerator(t, st, "gen-b")
	ctx := context.Background()

	env, err := svc.Next(ctx, "1.0.0", "sess-1", nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	in := battles.VoteInput{
		ClientVersion: "1.0.0", SessionID: "sess-1", BattleID: env.BattleID,
		Result: "TIE", LeftTags: []string{"fun"}, RightTags: []string{"boring"},
	}

	first, err := svc.Vote(ctx, in)
	if err != nil {
		t.Fatalf("first Vote: %v", err)
	}
	second, err := svc.Vote(ctx, in)
	if err != nil {
		t.Fatalf("replayed Vote: %v", err)
	}
	if first.VoteID != second.VoteID {
		t.Errorf("VoteID changed on replay: %s vs %s", first.VoteID, second.VoteID)
	}

	rating, err := st.GetRating(ctx, env.Left.Generator.ID)
	if err != nil {
		t.Fatalf("GetRating: %v", err)
	}
	if rating.GamesPlayed != 1 {
		t.Errorf("GamesPlayed = %d, want 1 (replay must not double-apply)", rating.GamesPlayed)
	}
}

func TestVote_ConflictingReplayIsRejected(t *testing.T) {
	svc, st := newTestService(t)
	seedGenerator(t, st, "gen-a")
	seedGenerator(t, st, "gen-b")
	ctx := context.Background()

	env, err := svc.Next(ctx, "1.0.0", "sess-1", nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	if _, err := svc.Vote(ctx, battles.VoteInput{
		ClientVersion: "1.0.0", SessionID: "sess-1", BattleID: env.BattleID, Result: "LEFT",
	}); err != nil {
		t.Fatalf("first Vote: %v", err)
	}

	_, err = svc.Vote(ctx, battles.VoteInput{
		ClientVersion: "1.0.0", SessionID: "sess-1", BattleID: env.BattleID, Result: "RIGHT",
	})
	if !errors.Is(err, battles.ErrDuplicateVoteConflict) {
		t.Errorf("err = %v, want ErrDuplicateVoteConflict", err)
	}
}

func TestVote_SkipRecordsCounterWithoutRatingChange(t *testing.T) {
	svc, st := newTestService(t)
	seedGenerator(t, st, "gen-a")
	seedGenerator(t, st, "gen-b")
	ctx := context.Background()

	env, err := svc.Next(ctx, "1.0.0", "sess-1", nil)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	before, err := st.GetRating(ctx, env.Left.Generator.ID)
	if err != nil {
		t.Fatalf("GetRating before: %v", err)
	}

	if _, err := svc.Vote(ctx, battles.VoteInput{
		ClientVersion: "1.0.0", SessionID: "sess-1", BattleID: env.BattleID, Result: "SKIP",
	}); err != nil {
		t.Fatalf("Vote: %v", err)
	}

	after, err := st.GetRating(ctx, env.Left.Generator.ID)
	if err != nil {
		t.Fatalf("GetRating after: %v", err)
	}
	if after.Skips != 1 {
		t.Errorf("Skips = %d, want 1", after.Skips)
	}
	if after.Value != before.Value {
		t.Errorf("rating value changed on skip: %v -> %v", before.Value, after.Value)
	}
}
