package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper guards at-least-once deliveries with a Redis SETNX marker.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// AcquireOnce returns true the first time handler sees key and false for a
// duplicate. When Redis is unreachable it returns true and leaves duplicate
// suppression to the database constraints behind the handler.
func (d *Deduper) AcquireOnce(ctx context.Context, handler string, key string) bool {
	dedupKey := fmt.Sprintf("dedup:%s:%s", handler, key)

	ok, err := d.rdb.SetNX(ctx, dedupKey, 1, d.ttl).Result()
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("Redis dedup check failed, allowing processing",
				zap.String("handler", handler),
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && d.logger != nil {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("dedup_key", dedupKey),
		)
	}

	return ok
}

// Release drops the marker so a failed delivery can be retried.
func (d *Deduper) Release(ctx context.Context, handler string, key string) {
	dedupKey := fmt.Sprintf("dedup:%s:%s", handler, key)
	if err := d.rdb.Del(ctx, dedupKey).Err(); err != nil && d.logger != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("dedup_key", dedupKey),
			zap.Error(err),
		)
	}
}
