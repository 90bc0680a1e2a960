package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/codequest/internal/domain"
	"github.com/victornm/codequest/internal/errors"
)

// RankForChallenge returns the challenge's leaderboard ordered by score
// descending, ties broken by the more recent accepted submission. Usernames
// come from the account store's users table; unknown users fall back to the
// numeric id rendered as text.
func (s *Storage) RankForChallenge(ctx context.Context, challengeID int64) ([]domain.LeaderboardEntry, error) {
	const stmt = `
SELECT lb.user_id, COALESCE(u.username, lb.user_id::text), lb.challenge_id, lb.score, lb.last_submission_time
FROM leaderboard lb
LEFT JOIN users u ON u.user_id = lb.user_id
WHERE lb.challenge_id = $1
ORDER BY lb.score DESC, lb.last_submission_time DESC;`

	rows, err := s.db.Query(ctx, stmt, challengeID)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("storage: rank challenge"),
			errors.WithCause(err))
	}

	entries, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.LeaderboardEntry, error) {
		var e domain.LeaderboardEntry
		err := r.Scan(&e.UserID, &e.Username, &e.ChallengeID, &e.Score, &e.LastSubmissionTime)
		return e, err
	})
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("storage: rank challenge"),
			errors.WithCause(err))
	}

	return entries, nil
}
