package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ghostinbox/backend/internal/storage"
)

// releaseScript 只删除自己持有的锁
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SET NX PX 的分布式锁
type Locker struct {
	client *Client
	prefix string
}

var _ storage.Locker = (*Locker)(nil)

// NewLocker 创建分布式锁
func NewLocker(client *Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// TryLock 尝试获取锁，令牌为随机 UUID
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	redisKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ok, err := l.client.rdb.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.client.rdb, []string{redisKey}, token).Err(); err != nil {
			l.client.log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}
	return unlock, true, nil
}
