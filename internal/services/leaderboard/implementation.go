package leaderboard

import (
	"context"
	"fmt"
	"time"

	"pcgarena/internal/config"
	"pcgarena/internal/store"
)

type service struct {
	rateCfg config.RatingConfig
	mmCfg   config.MatchmakingConfig
	st      *store.Store
}

func NewService(rateCfg config.RatingConfig, mmCfg config.MatchmakingConfig, st *store.Store) Service {
	return &service{rateCfg: rateCfg, mmCfg: mmCfg, st: st}
}

func (s *service) Get(ctx context.Context) (*Board, error) {
	ratings, err := s.st.ListRatings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}

	entries := make([]Entry, 0, len(ratings))
	for _, r := range ratings {
		g, err := s.st.GetGeneratorByID(ctx, r.GeneratorID)
		if err != nil {
			return nil, fmt.Errorf("lookup generator %s: %w", r.GeneratorID, err)
		}
		if !g.IsActive {
			continue
		}
		entries = append(entries, Entry{
			Rank: len(entries) + 1, GeneratorID: g.ID, Name: g.Name, Version: g.Version,
			DocumentationURL: g.DocumentationURL, Rating: r.Value, GamesPlayed: r.GamesPlayed,
			Wins: r.Wins, Losses: r.Losses, Ties: r.Ties, Skips: r.Skips,
		})
	}

	return &Board{
		UpdatedAtUTC: time.Now().UTC(),
		RatingSystem: RatingSystem{
			Name: "Glicko-2", InitialRating: s.rateCfg.InitialRating, InitialRD: s.rateCfg.InitialRD,
		},
		MatchmakingPolicy: s.mmCfg.Policy,
		Generators:        entries,
	}, nil
}
