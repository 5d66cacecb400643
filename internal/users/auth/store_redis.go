// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/storageup/internal/platform/sec"
)

// RedisRequestLimiter counts requests per client key with one expiring
// counter each. It satisfies middleware.KeyedLimiter.
type RedisRequestLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisRequestLimiter admits up to limit requests per key every window.
// Keys are stored under prefix.
func NewRedisRequestLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisRequestLimiter {
	return &RedisRequestLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

/*
Allow counts one request for key.

Description: The window starts with the first request for key. SET NX EX and
INCR run in one MULTI block so the counter never exists without its expiry.
Keys are hashed before they reach Redis.

Parameters:
  - context: context.Context
  - key: string (usually the client IP)

Returns:
  - bool: true while the count is within the limit
  - error: Connectivity errors
*/
func (limiter *RedisRequestLimiter) Allow(context context.Context, key string) (bool, error) {
	redisKey := limiter.prefix + sec.HashToken(key)

	var count *redis.IntCmd
	_, err := limiter.client.TxPipelined(context, func(pipe redis.Pipeliner) error {
		pipe.SetNX(context, redisKey, 0, limiter.window)
		count = pipe.Incr(context, redisKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis_request_limit_failed: %w", err)
	}

	return count.Val() <= int64(limiter.limit), nil
}
