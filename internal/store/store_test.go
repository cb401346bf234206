package store_test

import (
	"context"
	"testing"
	"time"

	"pcgarena/internal/store"
	"pcgarena/internal/store/types"
	"pcgarena/internal/storetest"
)

func ts(t time.Time) types.Timestamp { return types.Timestamp{Time: t} }

func TestCreateAndGetUser(t *testing.T) {
	db := storetest.NewDB(t)
	st := store.New(db)
	ctx := context.Background()

	now := ts(time.Now())
	u := &store.User{
		ID: "user-1", Email: "player@example.com", DisplayName: "Player One",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := st.GetUserByEmail(ctx, "player@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != "user-1" || got.DisplayName != "Player One" {
		t.Errorf("unexpected user: %+v", got)
	}
	if got.IdentityIssuer != nil {
		t.Errorf("expected nil identity issuer, got %v", *got.IdentityIssuer)
	}
}

func TestCreateUser_ExternalIdentity(t *testing.T) {
	db := storetest.NewDB(t)
	st := store.New(db)
	ctx := context.Background()

	now := ts(time.Now())
	issuer, subject := "https://accounts.google.com", "sub-123"
	u := &store.User{
		ID: "user-2", Email: "ext@example.com", DisplayName: "Ext User",
		IdentityIssuer: &issuer, IdentitySubject: &subject,
		EmailVerified: true, CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := st.GetUserByIdentity(ctx, issuer, subject)
	if err != nil {
		t.Fatalf("GetUserByIdentity: %v", err)
	}
	if got.ID != "user-2" || !got.EmailVerified {
		t.Errorf("unexpected user: %+v", got)
	}
}

func TestIsEmailTaken(t *testing.T) {
	db := storetest.NewDB(t)
	st := store.New(db)
	ctx := context.Background()
	now := ts(time.Now())

	taken, err := st.IsEmailTaken(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("IsEmailTaken: %v", err)
	}
	if taken {
		t.Fatal("expected false before any user exists")
	}

	if err := st.CreateUser(ctx, &store.User{
		ID: "u", Email: "nobody@example.com", DisplayName: "N", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	taken, err = st.IsEmailTaken(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("IsEmailTaken: %v", err)
	}
	if !taken {
		t.Fatal("expected true after user exists")
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := storetest.NewDB(t)
	st := store.New(db)
	ctx := context.Background()
	now := ts(time.Now())

	if err := st.CreateUser(ctx, &store.User{
		ID: "u1", Email: "a@example.com", DisplayName: "A", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	sess := &store.Session{
		Token: "tok-1", UserID: "u1", CreatedAt: now,
		ExpiresAt: ts(time.Now().Add(30 * 24 * time.Hour)),
	}
	if err := st.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := st.GetSessionByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetSessionByToken: %v", err)
	}
	if got.UserID != "u1" || got.Flagged {
		t.Errorf("unexpected session: %+v", got)
	}

	if err := st.FlagSession(ctx, "tok-1", true); err != nil {
		t.Fatalf("FlagSession: %v", err)
	}
	got, err = st.GetSessionByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetSessionByToken: %v", err)
	}
	if !got.Flagged {
		t.Error("expected session to be flagged")
	}

	if err := st.DeleteSession(ctx, "tok-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := st.GetSessionByToken(ctx, "tok-1"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestGeneratorAndLevelAndRatingFlow(t *testing.T) {
	db := storetest.NewDB(t)
	st := store.New(db)
	ctx := context.Background()
	now := ts(time.Now())

	gen := &store.Generator{
		ID: "gen-a", Name: "Generator A", Version: "1", IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateGenerator(ctx, gen); err != nil {
		t.Fatalf("CreateGenerator: %v", err)
	}

	rating := &store.Rating{GeneratorID: "gen-a", Value: 1500, RD: 350, Volatility: 0.06, UpdatedAt: now}
	if err := st.CreateRating(ctx, rating); err != nil {
		t.Fatalf("CreateRating: %v", err)
	}

	level := &store.Level{
		ID: "lvl-1", GeneratorID: "gen-a", Format: store.LevelFormat, Width: 20,
		Height: store.LevelHeight, Tilemap: "tilemap text", ContentHash: "hash1",
		IsActive: true, CreatedAt: now,
	}
	if err := st.CreateLevel(ctx, level); err != nil {
		t.Fatalf("CreateLevel: %v", err)
	}

	active, err := st.ListActiveLevelsByGenerator(ctx, "gen-a")
	if err != nil {
		t.Fatalf("ListActiveLevelsByGenerator: %v", err)
	}
	if len(active) != 1 || active[0].ID != "lvl-1" {
		t.Errorf("unexpected active levels: %+v", active)
	}

	if err := st.UpdateRatingOutcome(ctx, "gen-a", 1520, 340, 0.06, true, false, false, false, now); err != nil {
		t.Fatalf("UpdateRatingOutcome: %v", err)
	}
	updated, err := st.GetRating(ctx, "gen-a")
	if err != nil {
		t.Fatalf("GetRating: %v", err)
	}
	if updated.GamesPlayed != 1 || updated.Wins != 1 || updated.Value != 1520 {
		t.Errorf("unexpected rating after outcome: %+v", updated)
	}
}

func TestBattleAndVoteTransaction(t *testing.T) {
	db := storetest.NewDB(t)
	st := store.New(db)
	ctx := context.Background()
	now := ts(time.Now())

	for _, id := range []string{"gen-a", "gen-b"} {
		if err := st.CreateGenerator(ctx, &store.Generator{
			ID: id, Name: id, Version: "1", IsActive: true, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatalf("CreateGenerator(%s): %v", id, err)
		}
		if err := st.CreateRating(ctx, &store.Rating{GeneratorID: id, Value: 1500, RD: 350, Volatility: 0.06, UpdatedAt: now}); err != nil {
			t.Fatalf("CreateRating(%s): %v", id, err)
		}
		if err := st.CreateLevel(ctx, &store.Level{
			ID: "lvl-" + id, GeneratorID: id, Format: store.LevelFormat, Width: 20,
			Height: store.LevelHeight, Tilemap: "map", ContentHash: "hash-" + id,
			IsActive: true, CreatedAt: now,
		}); err != nil {
			t.Fatalf("CreateLevel(%s): %v", id, err)
		}
	}

	battle := &store.Battle{
		ID: "battle-1", SessionID: "sess-1", Status: store.BattleIssued,
		LeftLevelID: "lvl-gen-a", RightLevelID: "lvl-gen-b",
		LeftGeneratorID: "gen-a", RightGeneratorID: "gen-b",
		Policy: store.PolicyAGISV1, IssuedAt: now, ExpiresAt: ts(time.Now().Add(3 * time.Minute)),
	}
	if err := st.CreateBattle(ctx, battle); err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	err := st.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.UpdateBattleStatus(ctx, "battle-1", store.BattleIssued, store.BattleCompleted); err != nil {
			return err
		}
		vote := &store.Vote{
			ID: "vote-1", BattleID: "battle-1", SessionID: "sess-1", Result: store.VoteLeft,
			PayloadHash: "payload-hash", CreatedAt: now,
		}
		if err := tx.CreateVote(ctx, vote); err != nil {
			return err
		}
		if err := tx.UpdateRatingOutcome(ctx, "gen-a", 1520, 340, 0.06, true, false, false, false, now); err != nil {
			return err
		}
		if err := tx.UpdateRatingOutcome(ctx, "gen-b", 1480, 340, 0.06, false, true, false, false, now); err != nil {
			return err
		}
		return tx.CreateRatingEvent(ctx, &store.RatingEvent{
			ID: "event-1", VoteID: "vote-1", BattleID: "battle-1",
			LeftGeneratorID: "gen-a", RightGeneratorID: "gen-b",
			Result: store.VoteLeft, DeltaLeft: 20, DeltaRight: -20, CreatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("vote transaction: %v", err)
	}

	gotBattle, err := st.GetBattleByID(ctx, "battle-1")
	if err != nil {
		t.Fatalf("GetBattleByID: %v", err)
	}
	if gotBattle.Status != store.BattleCompleted {
		t.Errorf("expected COMPLETED, got %s", gotBattle.Status)
	}

	gotVote, err := st.GetVoteByBattleID(ctx, "battle-1")
	if err != nil {
		t.Fatalf("GetVoteByBattleID: %v", err)
	}
	if gotVote.Result != store.VoteLeft {
		t.Errorf("unexpected vote: %+v", gotVote)
	}

	ratingA, err := st.GetRating(ctx, "gen-a")
	if err != nil {
		t.Fatalf("GetRating(gen-a): %v", err)
	}
	if ratingA.Wins != 1 || ratingA.GamesPlayed != 1 {
		t.Errorf("unexpected rating-a: %+v", ratingA)
	}
}

func TestBattleVoteTransaction_RollsBackOnError(t *testing.T) {
	db := storetest.NewDB(t)
	st := store.New(db)
	ctx := context.Background()
	now := ts(time.Now())

	if err := st.CreateGenerator(ctx, &store.Generator{
		ID: "gen-a", Name: "gen-a", Version: "1", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateGenerator: %v", err)
	}
	if err := st.CreateLevel(ctx, &store.Level{
		ID: "lvl-a", GeneratorID: "gen-a", Format: store.LevelFormat, Width: 20,
		Height: store.LevelHeight, Tilemap: "map", ContentHash: "h", IsActive: true, CreatedAt: now,
	}); err != nil {
		t.Fatalf("CreateLevel: %v", err)
	}
	if err := st.CreateBattle(ctx, &store.Battle{
		ID: "battle-x", SessionID: "sess", Status: store.BattleIssued,
		LeftLevelID: "lvl-a", RightLevelID: "lvl-a",
		LeftGeneratorID: "gen-a", RightGeneratorID: "gen-a",
		Policy: store.PolicyAGISV1, IssuedAt: now, ExpiresAt: ts(time.Now().Add(time.Minute)),
	}); err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	err := st.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.UpdateBattleStatus(ctx, "battle-x", store.BattleIssued, store.BattleCompleted); err != nil {
			return err
		}
		// GetRating against a generator with no rating row fails, forcing
		// a rollback of the already-applied status transition.
		_, err := tx.GetRating(ctx, "gen-a")
		return err
	})
	if err == nil {
		t.Fatal("expected transaction to fail")
	}

	gotBattle, err := st.GetBattleByID(ctx, "battle-x")
	if err != nil {
		t.Fatalf("GetBattleByID: %v", err)
	}
	if gotBattle.Status != store.BattleIssued {
		t.Errorf("expected rollback to preserve ISSUED status, got %s", gotBattle.Status)
	}
}

func TestExpiredBattleSweep(t *testing.T) {
	db := storetest.NewDB(t)
	st := store.New(db)
	ctx := context.Background()
	now := ts(time.Now())

	if err := st.CreateGenerator(ctx, &store.Generator{
		ID: "gen-a", Name: "gen-a", Version: "1", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateGenerator: %v", err)
	}
	if err := st.CreateLevel(ctx, &store.Level{
		ID: "lvl-a", GeneratorID: "gen-a", Format: store.LevelFormat, Width: 20,
		Height: store.LevelHeight, Tilemap: "map", ContentHash: "h", IsActive: true, CreatedAt: now,
	}); err != nil {
		t.Fatalf("CreateLevel: %v", err)
	}

	past := time.Now().Add(-time.Minute)
	if err := st.CreateBattle(ctx, &store.Battle{
		ID: "battle-expired", SessionID: "sess", Status: store.BattleIssued,
		LeftLevelID: "lvl-a", RightLevelID: "lvl-a",
		LeftGeneratorID: "gen-a", RightGeneratorID: "gen-a",
		Policy: store.PolicyAGISV1, IssuedAt: ts(past), ExpiresAt: ts(past),
	}); err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	expired, err := st.ListExpiredIssuedBattles(ctx, ts(time.Now()), 10)
	if err != nil {
		t.Fatalf("ListExpiredIssuedBattles: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "battle-expired" {
		t.Fatalf("expected one expired battle, got %+v", expired)
	}

	if err := st.UpdateBattleStatus(ctx, "battle-expired", store.BattleIssued, store.BattleExpired); err != nil {
		t.Fatalf("UpdateBattleStatus: %v", err)
	}

	expired, err = st.ListExpiredIssuedBattles(ctx, ts(time.Now()), 10)
	if err != nil {
		t.Fatalf("ListExpiredIssuedBattles: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expected no expired ISSUED battles remaining, got %+v", expired)
	}
}
