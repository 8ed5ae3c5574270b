package redis

import (
	"context"
	"fmt"
	"time"

	"ghostinbox/backend/internal/storage"
)

// RateLimiter 固定窗口限流，多个实例共享计数
type RateLimiter struct {
	client   *Client
	prefix   string
	requests int64
	window   time.Duration
}

var _ storage.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter 创建限流器，每个窗口每个键最多 requests 次
func NewRateLimiter(client *Client, prefix string, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:   client,
		prefix:   prefix,
		requests: int64(requests),
		window:   window,
	}
}

// Allow 增加计数，超过上限时拒绝
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := l.key(key)
	pipe := l.client.rdb.Pipeline()

	incr := pipe.Incr(ctx, redisKey)
	// 只在新键上设置过期时间，窗口从第一次请求开始计算
	pipe.ExpireNX(ctx, redisKey, l.window)
	ttl := pipe.PTTL(ctx, redisKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if incr.Val() <= l.requests {
		return true, 0, nil
	}

	retryAfter := ttl.Val()
	if retryAfter <= 0 {
		retryAfter = l.window
	}
	return false, retryAfter, nil
}

func (l *RateLimiter) key(key string) string {
	return l.prefix + "ratelimit:" + key
}
