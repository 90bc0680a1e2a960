// Package submission runs the grading pipeline: resolve the challenge, grade
// the output, append to the ledger and bump the leaderboard in one step.
package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/codequest/internal/domain"
	"github.com/victornm/codequest/internal/event"
	"github.com/victornm/codequest/internal/grading"
)

type ChallengeGetter interface {
	GetChallenge(ctx context.Context, challengeID int64) (domain.Challenge, error)
}

type Store interface {
	// ApplySubmission must append the submission and, for accepted verdicts,
	// apply the leaderboard increment atomically: either both land or
	// neither does, and concurrent increments for one (user, challenge)
	// pair must not lose an update.
	ApplySubmission(ctx context.Context, sub domain.Submission, points int64) (*domain.LeaderboardEntry, error)
	ListSubmissionsByUser(ctx context.Context, userID int64) ([]domain.Submission, error)
}

type Config struct {
	Challenges ChallengeGetter
	Store      Store
	EventBus   *event.Bus
}

type Service struct {
	challenges ChallengeGetter
	store      Store
	eb         *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		challenges: c.Challenges,
		store:      c.Store,
		eb:         c.EventBus,
	}
}

type SubmitRequest struct {
	UserID          int64
	ChallengeID     int64
	SubmittedOutput string
	SubmitTime      time.Time
}

type SubmitResponse struct {
	Submission domain.Submission
	// Entry is the leaderboard entry after this submission, nil when the
	// verdict is rejected.
	Entry *domain.LeaderboardEntry
}

// Submit grades the output against the challenge and records the attempt.
// Every attempt lands in the ledger, accepted or not; repeated accepted
// submissions for the same pair keep adding the challenge's points. A
// storage failure is returned as-is: the verdict is never reported unless
// the ledger recorded it.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	ch, err := s.challenges.GetChallenge(ctx, req.ChallengeID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate submission ID: %w", err)
	}

	submitTime := req.SubmitTime
	if submitTime.IsZero() {
		submitTime = time.Now()
	}

	sub := domain.Submission{
		SubmissionID:    id.String(),
		UserID:          req.UserID,
		ChallengeID:     req.ChallengeID,
		SubmittedOutput: req.SubmittedOutput,
		Verdict:         grading.Evaluate(ch, req.SubmittedOutput),
		SubmitTime:      submitTime,
	}

	entry, err := s.store.ApplySubmission(ctx, sub, ch.Points)
	if err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventSubmissionGraded{
		Submission: sub,
	})

	return &SubmitResponse{
		Submission: sub,
		Entry:      entry,
	}, nil
}

type HistoryRequest struct {
	UserID int64
}

// History returns the user's past submissions, most recent first.
func (s *Service) History(ctx context.Context, req HistoryRequest) ([]domain.Submission, error) {
	return s.store.ListSubmissionsByUser(ctx, req.UserID)
}
