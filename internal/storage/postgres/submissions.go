package postgres

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/codequest/internal/domain"
	"github.com/victornm/codequest/internal/errors"
)

// ApplySubmission appends the submission to the ledger and, when the verdict
// is accepted, bumps the (user, challenge) leaderboard entry by points in the
// same transaction. The upsert is a single atomic read-modify-write at the
// database, so concurrent accepted submissions for one pair never lose an
// update. Returns the resulting leaderboard entry, nil for rejected verdicts.
func (s *Storage) ApplySubmission(ctx context.Context, sub domain.Submission, points int64) (entry *domain.LeaderboardEntry, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("storage: begin transaction"),
			errors.WithCause(err))
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const insSubmissionStmt = `
INSERT INTO submissions (submission_id, user_id, challenge_id, submitted_output, verdict, submit_time)
VALUES ($1, $2, $3, $4, $5, $6);`

	_, err = tx.Exec(ctx, insSubmissionStmt,
		sub.SubmissionID, sub.UserID, sub.ChallengeID, sub.SubmittedOutput, string(sub.Verdict), sub.SubmitTime,
	)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("storage: insert submission"),
			errors.WithCause(err))
	}

	if sub.Verdict == domain.VerdictAccepted {
		const upsertStmt = `
INSERT INTO leaderboard (user_id, challenge_id, score, last_submission_time)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, challenge_id) DO UPDATE
SET score = leaderboard.score + EXCLUDED.score,
    last_submission_time = EXCLUDED.last_submission_time
RETURNING user_id, challenge_id, score, last_submission_time;`

		entry = new(domain.LeaderboardEntry)
		err = tx.QueryRow(ctx, upsertStmt, sub.UserID, sub.ChallengeID, points, sub.SubmitTime).Scan(
			&entry.UserID, &entry.ChallengeID, &entry.Score, &entry.LastSubmissionTime,
		)
		if err != nil {
			return nil, errors.New(errors.CodeUnavailable,
				errors.WithMessagef("storage: upsert leaderboard entry"),
				errors.WithCause(err))
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("storage: commit submission"),
			errors.WithCause(err))
	}

	return entry, nil
}

// ListSubmissionsByUser returns the user's submission history, most recent
// first.
func (s *Storage) ListSubmissionsByUser(ctx context.Context, userID int64) ([]domain.Submission, error) {
	const stmt = `
SELECT submission_id, user_id, challenge_id, submitted_output, verdict, submit_time
FROM submissions
WHERE user_id = $1
ORDER BY submit_time DESC, submission_id DESC;`

	rows, err := s.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("storage: list submissions"),
			errors.WithCause(err))
	}

	subs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Submission, error) {
		var (
			sub     domain.Submission
			verdict string
		)
		if err := r.Scan(&sub.SubmissionID, &sub.UserID, &sub.ChallengeID, &sub.SubmittedOutput, &verdict, &sub.SubmitTime); err != nil {
			return domain.Submission{}, err
		}
		sub.Verdict = domain.Verdict(verdict)
		return sub, nil
	})
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("storage: list submissions"),
			errors.WithCause(err))
	}

	return subs, nil
}
