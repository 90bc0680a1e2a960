// Package memory is an in-process storage implementation with the same
// contracts as the postgres one. It backs tests and local development
// without a database.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/victornm/codequest/internal/domain"
	"github.com/victornm/codequest/internal/errors"
)

type pairKey struct {
	userID      int64
	challengeID int64
}

type Storage struct {
	mu sync.Mutex

	nextChallengeID int64
	challenges      map[int64]domain.Challenge
	submissions     []domain.Submission
	leaderboard     map[pairKey]domain.LeaderboardEntry
	usernames       map[int64]string
}

func NewStorage() *Storage {
	return &Storage{
		nextChallengeID: 1,
		challenges:      make(map[int64]domain.Challenge),
		leaderboard:     make(map[pairKey]domain.LeaderboardEntry),
		usernames:       make(map[int64]string),
	}
}

// SetUsername registers a display name for ranked reads. In production the
// account service owns this mapping.
func (s *Storage) SetUsername(userID int64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usernames[userID] = username
}

func (s *Storage) CreateChallenge(_ context.Context, ch *domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch.ChallengeID = s.nextChallengeID
	s.nextChallengeID++
	s.challenges[ch.ChallengeID] = *ch

	return nil
}

func (s *Storage) GetChallenge(_ context.Context, challengeID int64) (domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[challengeID]
	if !ok {
		return domain.Challenge{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("challenge not found: id=%d", challengeID))
	}

	return ch, nil
}

func (s *Storage) ListChallenges(_ context.Context) ([]domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenges := make([]domain.Challenge, 0, len(s.challenges))
	for _, ch := range s.challenges {
		challenges = append(challenges, ch)
	}

	sort.Slice(challenges, func(i, j int) bool {
		return challenges[i].ChallengeID < challenges[j].ChallengeID
	})

	return challenges, nil
}

// ApplySubmission appends to the ledger and conditionally bumps the
// leaderboard entry under one lock, mirroring the postgres transaction.
func (s *Storage) ApplySubmission(_ context.Context, sub domain.Submission, points int64) (*domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submissions = append(s.submissions, sub)

	if sub.Verdict != domain.VerdictAccepted {
		return nil, nil
	}

	k := pairKey{userID: sub.UserID, challengeID: sub.ChallengeID}

	e, ok := s.leaderboard[k]
	if !ok {
		e = domain.LeaderboardEntry{
			UserID:      sub.UserID,
			ChallengeID: sub.ChallengeID,
		}
	}
	e.Score += points
	e.LastSubmissionTime = sub.SubmitTime
	s.leaderboard[k] = e

	return &e, nil
}

func (s *Storage) ListSubmissionsByUser(_ context.Context, userID int64) ([]domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subs []domain.Submission
	for i := len(s.submissions) - 1; i >= 0; i-- {
		if s.submissions[i].UserID == userID {
			subs = append(subs, s.submissions[i])
		}
	}

	return subs, nil
}

func (s *Storage) RankForChallenge(_ context.Context, challengeID int64) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []domain.LeaderboardEntry
	for _, e := range s.leaderboard {
		if e.ChallengeID != challengeID {
			continue
		}

		if name, ok := s.usernames[e.UserID]; ok {
			e.Username = name
		} else {
			e.Username = strconv.FormatInt(e.UserID, 10)
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].LastSubmissionTime.After(entries[j].LastSubmissionTime)
	})

	return entries, nil
}
