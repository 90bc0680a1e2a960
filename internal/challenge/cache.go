package challenge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/codequest/internal/domain"
)

// cache is a read-through redis cache for immutable challenges. Failures are
// logged and treated as misses, the store stays authoritative.
type cache struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func (c *cache) get(ctx context.Context, challengeID int64) (domain.Challenge, bool) {
	b, err := c.redis.Get(ctx, c.key(challengeID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return domain.Challenge{}, false
	}

	if err != nil {
		slog.WarnContext(ctx, "challenge: cache read failed", "error", err)
		return domain.Challenge{}, false
	}

	var ch domain.Challenge
	if err := json.Unmarshal(b, &ch); err != nil {
		slog.WarnContext(ctx, "challenge: cache entry corrupt", "error", err)
		return domain.Challenge{}, false
	}

	return ch, true
}

func (c *cache) set(ctx context.Context, ch domain.Challenge) {
	b, err := json.Marshal(ch)
	if err != nil {
		slog.WarnContext(ctx, "challenge: cache marshal failed", "error", err)
		return
	}

	if err := c.redis.Set(ctx, c.key(ch.ChallengeID), b, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "challenge: cache write failed", "error", err)
	}
}

func (c *cache) key(challengeID int64) string {
	return fmt.Sprintf("%s:challenge:%d", c.prefix, challengeID)
}
