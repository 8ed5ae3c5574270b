// Package memory 提供单进程内的限流器和互斥锁，未配置 Redis 时使用
package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ghostinbox/backend/internal/storage"
)

// pruneInterval 清理长时间未使用的限流条目的间隔
const pruneInterval = 5 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 基于令牌桶的按键限流，每个窗口最多 requests 次，允许突发
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	window    time.Duration
	nextPrune time.Time
	now       func() time.Time
}

var _ storage.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter 创建限流器
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	return &RateLimiter{
		limiters:  make(map[string]*limiterEntry),
		limit:     rate.Limit(float64(requests) / window.Seconds()),
		burst:     requests,
		window:    window,
		nextPrune: time.Now().Add(pruneInterval),
		now:       time.Now,
	}
}

// Allow 消耗一个令牌
func (l *RateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, l.window, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

// pruneLocked 删除超过一个窗口未访问的条目，此时令牌桶已满，删除不影响限流结果
func (l *RateLimiter) pruneLocked(now time.Time) {
	if now.Before(l.nextPrune) {
		return
	}
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.window {
			delete(l.limiters, key)
		}
	}
	l.nextPrune = now.Add(pruneInterval)
}
