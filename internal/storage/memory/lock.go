package memory

import (
	"context"
	"sync"
	"time"

	"ghostinbox/backend/internal/storage"
)

// Locker 进程内互斥锁，带过期时间
type Locker struct {
	mu   sync.Mutex
	held map[string]lockEntry
	seq  uint64
	now  func() time.Time
}

type lockEntry struct {
	token     uint64
	expiresAt time.Time
}

var _ storage.Locker = (*Locker)(nil)

// NewLocker 创建进程内互斥锁
func NewLocker() *Locker {
	return &Locker{
		held: make(map[string]lockEntry),
		now:  time.Now,
	}
}

// TryLock 获取锁，已被占用且未过期时返回 acquired=false
func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.held[key]; ok && now.Before(entry.expiresAt) {
		return nil, false, nil
	}

	l.seq++
	token := l.seq
	l.held[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}

	unlock := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// 锁过期后可能已被其他持有者获取
		if entry, ok := l.held[key]; ok && entry.token == token {
			delete(l.held, key)
		}
	}
	return unlock, true, nil
}
