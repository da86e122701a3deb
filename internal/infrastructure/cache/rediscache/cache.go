// Package rediscache stores classification verdicts in Redis keyed by content
// hash. The cache is best effort: any Redis failure degrades to a miss, so a
// cache outage only costs extra model calls.
package rediscache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

type ClassificationCache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func New(rdb *redis.Client, logger *slog.Logger) *ClassificationCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassificationCache{rdb: rdb, logger: logger}
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (c *ClassificationCache) Get(ctx context.Context, key string) (domain.Classification, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("classification cache read failed", "error", err)
		}
		return domain.Classification{}, false
	}

	var cls domain.Classification
	if err := json.Unmarshal(raw, &cls); err != nil {
		c.logger.Warn("classification cache entry corrupt, dropping", "error", err)
		_ = c.rdb.Del(ctx, key).Err()
		return domain.Classification{}, false
	}
	return cls, true
}

func (c *ClassificationCache) Set(ctx context.Context, key string, cls domain.Classification, ttl time.Duration) {
	raw, err := json.Marshal(cls)
	if err != nil {
		c.logger.Warn("classification cache encode failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("classification cache write failed", "error", err)
	}
}
