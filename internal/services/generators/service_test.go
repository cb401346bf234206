package generators_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"pcgarena/internal/config"
	"pcgarena/internal/services/generators"
	"pcgarena/internal/store"
	"pcgarena/internal/store/types"
	"pcgarena/internal/storetest"
)

func ts(t time.Time) types.Timestamp { return types.Timestamp{Time: t} }

func newTestConfig() config.RatingConfig {
	return config.RatingConfig{InitialRating: 1000, InitialRD: 350, InitialVolatility: 0.06, Tau: 0.5}
}

func newTestService(t *testing.T) (generators.Service, *store.Store) {
	st := storetest.NewStore(t)
	svc := generators.NewService(newTestConfig(), zaptest.NewLogger(t), st)
	return svc, st
}

// validLevel builds a 16-line tilemap, distinguished by seed so distinct
// calls produce distinct content hashes.
func validLevel(seed int) string {
	row := fmt.Sprintf("X----%02d----X", seed)
	lines := make([]string, 16)
	for i := range lines {
		lines[i] = row
	}
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}

func buildZip(t *testing.T, count int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for i := 0; i < count; i++ {
		f, err := w.Create(fmt.Sprintf("level_%03d.txt", i))
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := f.Write([]byte(validLevel(i))); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func buildZipWithBadFile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for i := 0; i < 49; i++ {
		f, _ := w.Create(fmt.Sprintf("level_%03d.txt", i))
		f.Write([]byte(validLevel(i)))
	}
	bad, _ := w.Create("level_bad.txt")
	bad.Write([]byte("only one line\n"))
	w.Close()
	return buf.Bytes()
}

func TestUpload_CreatesGeneratorRatingAndLevels(t *testing.T) {
	svc, st := newTestService(t)

	summary, err := svc.Upload(context.Background(), generators.SubmissionInput{
		GeneratorID: "neural-v1", Name: "Neural V1", OwnerUserID: "user-1",
		ZipBytes: buildZip(t, 75),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if summary.LevelCount != 75 {
		t.Errorf("LevelCount = %d, want 75", summary.LevelCount)
	}

	rating, err := st.GetRating(context.Background(), "neural-v1")
	if err != nil {
		t.Fatalf("GetRating: %v", err)
	}
	if rating.Value != 1000 {
		t.Errorf("initial rating = %v, want 1000", rating.Value)
	}
}

func TestUpload_RejectsInvalidGeneratorID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), generators.SubmissionInput{
		GeneratorID: "1-starts-with-digit", Name: "X", OwnerUserID: "user-1",
		ZipBytes: buildZip(t, 60),
	})
	if !errors.Is(err, generators.ErrInvalidGeneratorID) {
		t.Errorf("err = %v, want ErrInvalidGeneratorID", err)
	}
}

func TestUpload_RejectsTooFewLevels(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), generators.SubmissionInput{
		GeneratorID: "too-small", Name: "X", OwnerUserID: "user-1",
		ZipBytes: buildZip(t, 10),
	})
	if !errors.Is(err, generators.ErrNotEnoughLevels) {
		t.Errorf("err = %v, want ErrNotEnoughLevels", err)
	}
}

func TestUpload_RejectsTooManyLevels(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), generators.SubmissionInput{
		GeneratorID: "too-big", Name: "X", OwnerUserID: "user-1",
		ZipBytes: buildZip(t, 201),
	})
	if !errors.Is(err, generators.ErrTooManyLevels) {
		t.Errorf("err = %v, want ErrTooManyLevels", err)
	}
}

func TestUpload_PinpointsInvalidLevelFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), generators.SubmissionInput{
		GeneratorID: "bad-file", Name: "X", OwnerUserID: "user-1",
		ZipBytes: buildZipWithBadFile(t),
	})
	var ve *generators.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if ve.File != "level_bad.txt" {
		t.Errorf("ve.File = %q, want level_bad.txt", ve.File)
	}
}

func TestUpload_EnforcesMaxGeneratorsPerOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Upload(ctx, generators.SubmissionInput{
			GeneratorID: fmt.Sprintf("gen-%d", i), Name: "X", OwnerUserID: "user-1",
			ZipBytes: buildZip(t, 60),
		}); err != nil {
			t.Fatalf("Upload #%d: %v", i, err)
		}
	}

	_, err := svc.Upload(ctx, generators.SubmissionInput{
		GeneratorID: "gen-fourth", Name: "X", OwnerUserID: "user-1",
		ZipBytes: buildZip(t, 60),
	})
	if !errors.Is(err, generators.ErrMaxGeneratorsExceeded) {
		t.Errorf("err = %v, want ErrMaxGeneratorsExceeded", err)
	}
}

func TestUpdate_PreservesRatingAndReferencedLevel(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, generators.SubmissionInput{
		GeneratorID: "neural-v1", Name: "Neural", OwnerUserID: "user-1",
		ZipBytes: buildZip(t, 60),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	before, err := st.GetRating(ctx, "neural-v1")
	if err != nil {
		t.Fatalf("GetRating before: %v", err)
	}
	now := time.Now()
	if err := st.UpdateRatingOutcome(ctx, "neural-v1", 1050, 300, 0.06, true, false, false, false,
		ts(now)); err != nil {
		t.Fatalf("UpdateRatingOutcome: %v", err)
	}

	levels, err := st.ListActiveLevelsByGenerator(ctx, "neural-v1")
	if err != nil {
		t.Fatalf("ListActiveLevelsByGenerator: %v", err)
	}
	referencedLevel := levels[0]

	if err := st.CreateBattle(ctx, &store.Battle{
		ID: "btl-ref", SessionID: "sess-1", Status: store.BattleIssued,
		LeftLevelID: referencedLevel.ID, RightLevelID: levels[1].ID,
		LeftGeneratorID: "neural-v1", RightGeneratorID: "neural-v1", Policy: store.PolicyUniformV0,
		IssuedAt: ts(now), ExpiresAt: ts(now.Add(time.Hour)),
	}); err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	_, err = svc.Update(ctx, generators.SubmissionInput{
		GeneratorID: "neural-v1", OwnerUserID: "user-1", Version: "2",
		ZipBytes: buildZip(t, 60),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	after, err := st.GetRating(ctx, "neural-v1")
	if err != nil {
		t.Fatalf("GetRating after: %v", err)
	}
	if after.Value != 1050 || after.RD != 300 {
		t.Errorf("rating changed across update: %+v vs %+v", before, after)
	}

	stillPresent, err := st.GetLevelByID(ctx, referencedLevel.ID)
	if err != nil {
		t.Fatalf("GetLevelByID(referenced): %v", err)
	}
	if stillPresent.IsActive {
		t.Error("battle-referenced level should be deactivated, not hard-deleted")
	}

	if _, err := st.GetLevelByID(ctx, levels[2].ID); !errors.Is(err, store.ErrNotFound) {
		t.Error("unreferenced old level should have been hard-deleted")
	}
}

func TestUpdate_RejectsNonOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, generators.SubmissionInput{
		GeneratorID: "neural-v1", Name: "Neural", OwnerUserID: "user-1",
		ZipBytes: buildZip(t, 60),
	}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	_, err := svc.Update(ctx, generators.SubmissionInput{
		GeneratorID: "neural-v1", OwnerUserID: "user-2", ZipBytes: buildZip(t, 60),
	})
	if !errors.Is(err, generators.ErrNotOwner) {
		t.Errorf("err = %v, want ErrNotOwner", err)
	}
}

func TestDelete_HardDeletesWithNoBattleHistory(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, generators.SubmissionInput{
		GeneratorID: "neural-v1", Name: "Neural", OwnerUserID: "user-1",
		ZipBytes: buildZip(t, 60),
	}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := svc.Delete(ctx, "neural-v1", "user-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := st.GetGeneratorByID(ctx, "neural-v1"); !errors.Is(err, store.ErrNotFound) {
		t.Error("generator with no battle history should be hard-deleted")
	}
}

func TestDelete_SoftDeletesWithBattleHistory(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := svc.Upload(ctx, generators.SubmissionInput{
		GeneratorID: "neural-v1", Name: "Neural", OwnerUserID: "user-1",
		ZipBytes: buildZip(t, 60),
	}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	levels, _ := st.ListActiveLevelsByGenerator(ctx, "neural-v1")
	if err := st.CreateBattle(ctx, &store.Battle{
		ID: "btl-1", SessionID: "s1", Status: store.BattleCompleted,
		LeftLevelID: levels[0].ID, RightLevelID: levels[1].ID,
		LeftGeneratorID: "neural-v1", RightGeneratorID: "neural-v1", Policy: store.PolicyUniformV0,
		IssuedAt: ts(now), ExpiresAt: ts(now.Add(time.Hour)),
	}); err != nil {
		t.Fatalf("CreateBattle: %v", err)
	}

	if err := svc.Delete(ctx, "neural-v1", "user-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	g, err := st.GetGeneratorByID(ctx, "neural-v1")
	if err != nil {
		t.Fatalf("generator should still exist after soft-delete: %v", err)
	}
	if g.IsActive {
		t.Error("soft-deleted generator should be inactive")
	}
	if g.OwnerUserID != nil {
		t.Error("soft-deleted generator should have its owner cleared")
	}
}
