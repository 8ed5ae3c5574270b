// Package storage 定义进程间共享的轻量状态：限流计数和清理互斥锁。
//
// 邮件本身只存放在远端邮箱中，这里不保存任何邮件数据。
package storage

import (
	"context"
	"time"
)

// RateLimiter 按键限流
type RateLimiter interface {
	// Allow 记录一次请求并返回是否放行；拒绝时 retryAfter 为建议的重试等待时间
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// Locker 互斥锁，用于防止多个清理任务交错执行
type Locker interface {
	// TryLock 尝试获取锁，不阻塞；acquired 为 false 表示锁已被占用。
	// 锁在 ttl 后自动失效，防止持有者崩溃后永久占用。
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), acquired bool, err error)
}

// Pinger 可探测连通性的后端
type Pinger interface {
	Ping(ctx context.Context) error
}
