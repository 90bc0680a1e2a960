package domain

import (
	"time"
)

// Verdict is the outcome of grading a submission.
type Verdict string

const (
	VerdictAccepted Verdict = "Accepted"
	VerdictRejected Verdict = "Rejected"
)

// Challenge is a coding challenge. Challenges are immutable after creation.
type Challenge struct {
	ChallengeID    int64
	Title          string
	Description    string
	Difficulty     string
	Points         int64
	ExpectedOutput string
}

// Submission is a single submit attempt, accepted or not. Submissions are
// append-only: once recorded they are never mutated or deleted.
type Submission struct {
	SubmissionID    string
	UserID          int64
	ChallengeID     int64
	SubmittedOutput string
	Verdict         Verdict
	SubmitTime      time.Time
}

// LeaderboardEntry is the materialized cumulative score for one
// (user, challenge) pair. Score is the sum of the challenge's points over
// every accepted submission for that pair; LastSubmissionTime moves only on
// accepted submissions. The ledger of submissions stays the source of truth,
// an entry is always recomputable from it.
type LeaderboardEntry struct {
	UserID             int64
	Username           string
	ChallengeID        int64
	Score              int64
	LastSubmissionTime time.Time
}

// PendingAction is a submission parked while its author walks through the
// registration dialogue. It is replayed at most once, after registration
// verifies.
type PendingAction struct {
	ChallengeID     int64
	SubmittedOutput string
}
