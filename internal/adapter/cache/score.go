package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"edufund-backend/internal/domain/scoring"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scoreKeyPrefix = "score:"

var _ scoring.Provider = (*ScoreCache)(nil)

// ScoreCache fronts a scoring.Provider with Redis. Redis failures fall through
// to the provider; missing scores are not cached.
type ScoreCache struct {
	rdb  *redis.Client
	next scoring.Provider
	ttl  time.Duration
	log  *zap.Logger
}

func NewScoreCache(rdb *redis.Client, next scoring.Provider, ttl time.Duration, log *zap.Logger) *ScoreCache {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ScoreCache{rdb: rdb, next: next, ttl: ttl, log: log}
}

func (c *ScoreCache) GetScore(ctx context.Context, borrowerID string) (*scoring.Score, error) {
	key := scoreKeyPrefix + borrowerID
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var s scoring.Score
		if jerr := json.Unmarshal(raw, &s); jerr == nil {
			return &s, nil
		}
		c.log.Warn("score cache: corrupt entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("score cache: read failed", zap.String("key", key), zap.Error(err))
	}

	s, err := c.next.GetScore(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	payload, _ := json.Marshal(s)
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("score cache: write failed", zap.String("key", key), zap.Error(err))
	}
	return s, nil
}

// Invalidate drops the cached score after a new one is stored.
func (c *ScoreCache) Invalidate(ctx context.Context, borrowerID string) error {
	return c.rdb.Del(ctx, scoreKeyPrefix+borrowerID).Err()
}
