package battles

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pcgarena/internal/config"
	"pcgarena/internal/matchmaker"
	"pcgarena/internal/ratingengine"
	"pcgarena/internal/store"
	"pcgarena/internal/store/types"
)

// tagVocabulary is the closed set of tags a vote may attach to a side (§6).
var tagVocabulary = map[string]bool{
	"fun": true, "boring": true, "good_flow": true, "creative": true,
	"unfair": true, "confusing": true, "too_hard": true, "too_easy": true,
	"not_mario_like": true,
}

const leaderboardPreviewSize = 5

// supportedClientMajor is the only client major version this server
// accepts; "1.4.0" and "1.0.0" are both fine, "2.0.0" is not.
const supportedClientMajor = "1"

type service struct {
	cfg     config.MatchmakingConfig
	rateCfg config.RatingConfig
	logger  *zap.Logger
	st      *store.Store
	rngMu   sync.Mutex
	rng     *rand.Rand
}

// NewService builds the battles Service.
func NewService(cfg config.MatchmakingConfig, rateCfg config.RatingConfig, logger *zap.Logger, st *store.Store) Service {
	return &service{
		cfg:     cfg,
		rateCfg: rateCfg,
		logger:  logger,
		st:      st,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func checkClientVersion(v string) error {
	major := strings.SplitN(v, ".", 2)[0]
	if major == "" || major != supportedClientMajor {
		return ErrUnsupportedClientVersion
	}
	return nil
}

func (s *service) Next(ctx context.Context, clientVersion, sessionID string, playerID *string) (*Envelope, error) {
	if err := checkClientVersion(clientVersion); err != nil {
		return nil, err
	}

	generators, err := s.st.ListActiveGenerators(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active generators: %w", err)
	}
	if len(generators) < 2 {
		return nil, ErrNoBattleAvailable
	}

	candidates := make([]matchmaker.Candidate, 0, len(generators))
	byID := make(map[string]*store.Generator, len(generators))
	for _, g := range generators {
		r, err := s.st.GetRating(ctx, g.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get rating for %s: %w", g.ID, err)
		}
		candidates = append(candidates, matchmaker.Candidate{GeneratorID: g.ID, Rating: r.Value, RD: r.RD})
		byID[g.ID] = g
	}
	if len(candidates) < 2 {
		return nil, ErrNoBattleAvailable
	}

	pairCounts, err := s.pairCountsFor(ctx, candidates)
	if err != nil {
		return nil, err
	}

	// matchmaker.Pick/PickUniform expect a single-threaded *rand.Rand; draws
	// are serialized behind a mutex rather than giving each call its own
	// unseeded source.
	s.rngMu.Lock()
	rng := s.rng
	var picked matchmaker.Picked
	if s.cfg.Policy == matchmaker.PolicyUniformV0 {
		picked, err = matchmaker.PickUniform(candidates, rng)
	} else {
		picked, err = matchmaker.Pick(matchmaker.Config{
			TargetBattlesPerPair: s.cfg.TargetBattlesPerPair,
			RatingSigma:          s.cfg.RatingSigma,
			QualityBias:          s.cfg.QualityBias,
			MinGamesSignificance: s.cfg.MinGamesSignificance,
		}, candidates, pairCounts, rng)
	}
	s.rngMu.Unlock()
	if err != nil {
		if errors.Is(err, matchmaker.ErrNoBattleAvailable) {
			return nil, ErrNoBattleAvailable
		}
		return nil, fmt.Errorf("matchmaker pick: %w", err)
	}

	leftLevel, err := s.randomActiveLevel(ctx, picked.Left)
	if err != nil {
		return nil, err
	}
	rightLevel, err := s.randomActiveLevel(ctx, picked.Right)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(s.cfg.SuggestedTimeLimit)
	battle := &store.Battle{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		Status:           store.BattleIssued,
		LeftLevelID:      leftLevel.ID,
		RightLevelID:     rightLevel.ID,
		LeftGeneratorID:  picked.Left,
		RightGeneratorID: picked.Right,
		Policy:           store.MatchmakingPolicy(picked.Policy),
		PlayerID:         playerID,
		IssuedAt:         types.Timestamp{Time: now},
		ExpiresAt:        types.Timestamp{Time: expiresAt},
	}
	if err := s.st.CreateBattle(ctx, battle); err != nil {
		return nil, fmt.Errorf("create battle: %w", err)
	}

	return &Envelope{
		BattleID:                  battle.ID,
		IssuedAtUTC:               now.UTC().Format(time.RFC3339),
		ExpiresAtUTC:              expiresAt.UTC().Format(time.RFC3339),
		PlayOrder:                 "LEFT_THEN_RIGHT",
		SuggestedTimeLimitSeconds: int(s.cfg.SuggestedTimeLimit.Seconds()),
		Left:                      sideFor(leftLevel, byID[picked.Left]),
		Right:                     sideFor(rightLevel, byID[picked.Right]),
	}, nil
}

func sideFor(l *store.Level, g *store.Generator) Side {
	return Side{
		LevelID: l.ID,
		Generator: GeneratorRef{
			ID: g.ID, Name: g.Name, Version: g.Version, DocumentationURL: g.DocumentationURL,
		},
		Width:       l.Width,
		Height:      l.Height,
		Tilemap:     l.Tilemap,
		ContentHash: l.ContentHash,
	}
}

func (s *service) randomActiveLevel(ctx context.Context, generatorID string) (*store.Level, error) {
	levels, err := s.st.ListActiveLevelsByGenerator(ctx, generatorID)
	if err != nil {
		return nil, fmt.Errorf("list levels for %s: %w", generatorID, err)
	}
	if len(levels) == 0 {
		return nil, ErrNoBattleAvailable
	}
	s.rngMu.Lock()
	idx := s.rng.Intn(len(levels))
	s.rngMu.Unlock()
	return levels[idx], nil
}

func (s *service) pairCountsFor(ctx context.Context, candidates []matchmaker.Candidate) ([]matchmaker.PairCount, error) {
	var counts []matchmaker.PairCount
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			n, err := s.st.PairBattleCount(ctx, candidates[i].GeneratorID, candidates[j].GeneratorID)
			if err != nil {
				return nil, fmt.Errorf("pair battle count: %w", err)
			}
			counts = append(counts, matchmaker.PairCount{A: candidates[i].GeneratorID, B: candidates[j].GeneratorID, Count: n})
		}
	}
	return counts, nil
}

func (s *service) Vote(ctx context.Context, in VoteInput) (*VoteOutcome, error) {
	if err := checkClientVersion(in.ClientVersion); err != nil {
		return nil, err
	}
	result := store.VoteResult(in.Result)
	switch result {
	case store.VoteLeft, store.VoteRight, store.VoteTie, store.VoteSkip:
	default:
		return nil, ErrInvalidPayload
	}

	battle, err := s.st.GetBattleByID(ctx, in.BattleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBattleNotFound
		}
		return nil, fmt.Errorf("get battle: %w", err)
	}

	payloadHash := canonicalVoteHash(in)

	if battle.Status == store.BattleCompleted {
		existing, err := s.st.GetVoteByBattleID(ctx, battle.ID)
		if err != nil {
			return nil, fmt.Errorf("get existing vote: %w", err)
		}
		if existing.PayloadHash == payloadHash {
			return s.outcomeFor(ctx, existing.ID)
		}
		return nil, ErrDuplicateVoteConflict
	}
	if battle.Status == store.BattleExpired {
		return nil, ErrBattleAlreadyVoted
	}

	if err := validateTags(in.LeftTags); err != nil {
		return nil, err
	}
	if err := validateTags(in.RightTags); err != nil {
		return nil, err
	}

	voteID := uuid.NewString()
	now := types.Timestamp{Time: time.Now()}

	err = s.st.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.UpdateBattleStatus(ctx, battle.ID, store.BattleIssued, store.BattleCompleted); err != nil {
			return err
		}

		if err := tx.CreateVote(ctx, &store.Vote{
			ID: voteID, BattleID: battle.ID, SessionID: in.SessionID, Result: result,
			LeftTags: in.LeftTags, RightTags: in.RightTags, Telemetry: in.Telemetry,
			PayloadHash: payloadHash, PlayerID: in.PlayerID, CreatedAt: now,
		}); err != nil {
			return err
		}

		if result == store.VoteSkip {
			return s.applySkip(ctx, tx, battle, now)
		}
		return s.applyOutcome(ctx, tx, battle, voteID, result, now)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Another request completed this battle first; re-resolve as a
			// duplicate submission against whatever vote landed.
			existing, getErr := s.st.GetVoteByBattleID(ctx, battle.ID)
			if getErr == nil && existing.PayloadHash == payloadHash {
				return s.outcomeFor(ctx, existing.ID)
			}
			return nil, ErrDuplicateVoteConflict
		}
		return nil, fmt.Errorf("vote transaction: %w", err)
	}

	return s.outcomeFor(ctx, voteID)
}

func (s *service) applySkip(ctx context.Context, tx *store.Store, battle *store.Battle, now types.Timestamp) error {
	for _, generatorID := range []string{battle.LeftGeneratorID, battle.RightGeneratorID} {
		r, err := tx.GetRating(ctx, generatorID)
		if err != nil {
			return err
		}
		if err := tx.UpdateRatingOutcome(ctx, generatorID, r.Value, r.RD, r.Volatility,
			false, false, false, true, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) applyOutcome(ctx context.Context, tx *store.Store, battle *store.Battle, voteID string, result store.VoteResult, now types.Timestamp) error {
	leftRating, err := tx.GetRating(ctx, battle.LeftGeneratorID)
	if err != nil {
		return err
	}
	rightRating, err := tx.GetRating(ctx, battle.RightGeneratorID)
	if err != nil {
		return err
	}

	var leftResult ratingengine.Result
	switch result {
	case store.VoteLeft:
		leftResult = ratingengine.Win
	case store.VoteRight:
		leftResult = ratingengine.Loss
	default:
		leftResult = ratingengine.Tie
	}

	cfg := ratingengine.Config{
		InitialRating:     s.rateCfg.InitialRating,
		InitialRD:         s.rateCfg.InitialRD,
		InitialVolatility: s.rateCfg.InitialVolatility,
		Tau:               s.rateCfg.Tau,
	}
	leftUpdate, rightUpdate := ratingengine.ApplyVote(cfg,
		ratingengine.Rating{Value: leftRating.Value, RD: leftRating.RD, Volatility: leftRating.Volatility},
		ratingengine.Rating{Value: rightRating.Value, RD: rightRating.RD, Volatility: rightRating.Volatility},
		leftResult)

	leftWon, leftLost, leftTied := outcomeFlags(leftResult)
	rightWon, rightLost, rightTied := outcomeFlags(opponentResult(result))

	if err := tx.UpdateRatingOutcome(ctx, battle.LeftGeneratorID,
		leftUpdate.Value, leftUpdate.RD, leftUpdate.Volatility, leftWon, leftLost, leftTied, false, now); err != nil {
		return err
	}
	if err := tx.UpdateRatingOutcome(ctx, battle.RightGeneratorID,
		rightUpdate.Value, rightUpdate.RD, rightUpdate.Volatility, rightWon, rightLost, rightTied, false, now); err != nil {
		return err
	}

	return tx.CreateRatingEvent(ctx, &store.RatingEvent{
		ID: uuid.NewString(), VoteID: voteID, BattleID: battle.ID,
		LeftGeneratorID: battle.LeftGeneratorID, RightGeneratorID: battle.RightGeneratorID,
		Result: result, DeltaLeft: leftUpdate.Delta, DeltaRight: rightUpdate.Delta, CreatedAt: now,
	})
}

func opponentResult(result store.VoteResult) ratingengine.Result {
	switch result {
	case store.VoteLeft:
		return ratingengine.Loss
	case store.VoteRight:
		return ratingengine.Win
	default:
		return ratingengine.Tie
	}
}

func outcomeFlags(r ratingengine.Result) (won, lost, tied bool) {
	switch r {
	case ratingengine.Win:
		return true, false, false
	case ratingengine.Loss:
		return false, true, false
	default:
		return false, false, true
	}
}

func (s *service) outcomeFor(ctx context.Context, voteID string) (*VoteOutcome, error) {
	ratings, err := s.st.ListRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	preview := make([]LeaderboardEntry, 0, leaderboardPreviewSize)
	for i, r := range ratings {
		if i >= leaderboardPreviewSize {
			break
		}
		preview = append(preview, LeaderboardEntry{GeneratorID: r.GeneratorID, Rating: r.Value, GamesPlayed: r.GamesPlayed})
	}
	return &VoteOutcome{Accepted: true, VoteID: voteID, LeaderboardPreview: preview}, nil
}

func validateTags(tags []string) error {
	for _, t := range tags {
		if !tagVocabulary[t] {
			return ErrInvalidTag
		}
	}
	return nil
}

// canonicalVoteHash hashes the fields that define "the same vote" for
// idempotent-replay detection: differing telemetry alone does not count as
// a conflicting resubmission, only a differing result or tag set does.
func canonicalVoteHash(in VoteInput) string {
	left := append([]string(nil), in.LeftTags...)
	right := append([]string(nil), in.RightTags...)
	sort.Strings(left)
	sort.Strings(right)

	h := sha256.New()
	h.Write([]byte(in.SessionID))
	h.Write([]byte(in.BattleID))
	h.Write([]byte(in.Result))
	h.Write([]byte(strconv.Itoa(len(left))))
	for _, t := range left {
		h.Write([]byte(t))
	}
	h.Write([]byte(strconv.Itoa(len(right))))
	for _, t := range right {
		h.Write([]byte(t))
	}
	return hex.EncodeToString(h.Sum(nil))
}
