// Package leaderboard serves ranked views of per-challenge scores. Writes
// happen inside the submission pipeline; this service only reads, and every
// read recomputes the ranking from storage.
package leaderboard

import (
	"context"

	"github.com/victornm/codequest/internal/domain"
)

type Store interface {
	// RankForChallenge returns entries ordered by score descending, ties
	// broken by the more recent last accepted submission.
	RankForChallenge(ctx context.Context, challengeID int64) ([]domain.LeaderboardEntry, error)
}

type Config struct {
	Store Store
}

type Service struct {
	store Store
}

func NewService(c Config) *Service {
	return &Service{store: c.Store}
}

type RankRequest struct {
	ChallengeID int64
}

// Rank returns the challenge's leaderboard. An empty slice means nobody has
// an accepted submission yet; that is not an error.
func (s *Service) Rank(ctx context.Context, req RankRequest) ([]domain.LeaderboardEntry, error) {
	return s.store.RankForChallenge(ctx, req.ChallengeID)
}
