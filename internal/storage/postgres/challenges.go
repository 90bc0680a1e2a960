package postgres

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/codequest/internal/domain"
	"github.com/victornm/codequest/internal/errors"
)

// CreateChallenge inserts the challenge and assigns its ID.
func (s *Storage) CreateChallenge(ctx context.Context, ch *domain.Challenge) error {
	const stmt = `
INSERT INTO challenges (title, description, difficulty, points, expected_output)
VALUES ($1, $2, $3, $4, $5)
RETURNING challenge_id;`

	err := s.db.QueryRow(ctx, stmt,
		ch.Title, ch.Description, ch.Difficulty, ch.Points, ch.ExpectedOutput,
	).Scan(&ch.ChallengeID)
	if err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("storage: insert challenge"),
			errors.WithCause(err))
	}

	return nil
}

func (s *Storage) GetChallenge(ctx context.Context, challengeID int64) (domain.Challenge, error) {
	const stmt = `
SELECT challenge_id, title, description, difficulty, points, expected_output
FROM challenges
WHERE challenge_id = $1;`

	var ch domain.Challenge
	err := s.db.QueryRow(ctx, stmt, challengeID).Scan(
		&ch.ChallengeID, &ch.Title, &ch.Description, &ch.Difficulty, &ch.Points, &ch.ExpectedOutput,
	)

	if stderrors.Is(err, pgx.ErrNoRows) {
		return domain.Challenge{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("challenge not found: id=%d", challengeID))
	}

	if err != nil {
		return domain.Challenge{}, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("storage: get challenge"),
			errors.WithCause(err))
	}

	return ch, nil
}

func (s *Storage) ListChallenges(ctx context.Context) ([]domain.Challenge, error) {
	const stmt = `
SELECT challenge_id, title, description, difficulty, points, expected_output
FROM challenges
ORDER BY challenge_id;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("storage: list challenges"),
			errors.WithCause(err))
	}

	challenges, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Challenge, error) {
		var ch domain.Challenge
		err := r.Scan(&ch.ChallengeID, &ch.Title, &ch.Description, &ch.Difficulty, &ch.Points, &ch.ExpectedOutput)
		return ch, err
	})
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("storage: list challenges"),
			errors.WithCause(err))
	}

	return challenges, nil
}
