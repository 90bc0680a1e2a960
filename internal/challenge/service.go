package challenge

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/codequest/internal/domain"
	"github.com/victornm/codequest/internal/errors"
)

const defaultCacheTTL = 10 * time.Minute

type Store interface {
	CreateChallenge(ctx context.Context, ch *domain.Challenge) error
	GetChallenge(ctx context.Context, challengeID int64) (domain.Challenge, error)
	ListChallenges(ctx context.Context) ([]domain.Challenge, error)
}

type Config struct {
	Store Store

	// Redis enables the read-through challenge cache when set. Challenges
	// are immutable after creation and read on every grade, so entries are
	// cached as-is with a TTL.
	Redis    redis.UniversalClient
	Prefix   string
	CacheTTL time.Duration
}

type Service struct {
	store Store
	cache *cache
}

func NewService(c Config) *Service {
	s := &Service{store: c.Store}

	if c.Redis != nil {
		ttl := c.CacheTTL
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}

		s.cache = &cache{
			redis:  c.Redis,
			prefix: c.Prefix,
			ttl:    ttl,
		}
	}

	return s
}

type CreateChallengeRequest struct {
	Title          string
	Description    string
	Difficulty     string
	Points         int64
	ExpectedOutput string
}

// CreateChallenge validates and stores a new challenge.
func (s *Service) CreateChallenge(ctx context.Context, req CreateChallengeRequest) (*domain.Challenge, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("challenge title must not be empty"))
	}

	if req.Points <= 0 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("challenge points must be positive, got %d", req.Points))
	}

	if req.ExpectedOutput == "" {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("challenge expected output must not be empty"))
	}

	ch := &domain.Challenge{
		Title:          req.Title,
		Description:    req.Description,
		Difficulty:     req.Difficulty,
		Points:         req.Points,
		ExpectedOutput: req.ExpectedOutput,
	}

	if err := s.store.CreateChallenge(ctx, ch); err != nil {
		return nil, err
	}

	return ch, nil
}

// GetChallenge resolves a challenge by id, consulting the cache first.
func (s *Service) GetChallenge(ctx context.Context, challengeID int64) (domain.Challenge, error) {
	if s.cache != nil {
		if ch, ok := s.cache.get(ctx, challengeID); ok {
			return ch, nil
		}
	}

	ch, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return domain.Challenge{}, err
	}

	if s.cache != nil {
		s.cache.set(ctx, ch)
	}

	return ch, nil
}

func (s *Service) ListChallenges(ctx context.Context) ([]domain.Challenge, error) {
	return s.store.ListChallenges(ctx)
}
