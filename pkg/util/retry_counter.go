package util

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetryCounter counts redeliveries of a message so consumers can give up and
// dead-letter it.
type RetryCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRetryCounter(rdb *redis.Client, ttl time.Duration) *RetryCounter {
	return &RetryCounter{rdb: rdb, ttl: ttl}
}

// IncrementAndGet increments the retry count for key and returns the new value
func (r *RetryCounter) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	if count == 1 {
		r.rdb.Expire(ctx, key, r.ttl)
	}

	return count, nil
}

func (r *RetryCounter) Reset(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// FormatRetryKey derives a retry key from the consuming queue and message body
func FormatRetryKey(queue string, body []byte) string {
	sum := sha1.Sum(body)
	return fmt.Sprintf("retry:%s:%s", queue, hex.EncodeToString(sum[:]))
}
