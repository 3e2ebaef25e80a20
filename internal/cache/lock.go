package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"PolicyWizard/storage/redis"
)

// 基于 SetNx 的分布式锁，保证同一向导会话的状态变更串行执行
const (
	lockPrefix = "lock"

	lockRetryInterval = 20 * time.Millisecond
)

var ErrLockTimeout = errors.New("timed out waiting for session lock")

// unlockScript 只删除自己持有的锁，锁过期后被他人获取时不会误删
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock 成功时返回持有者 token，解锁时需要带上
func TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	fullkey := redis.Key(lockPrefix, key)
	token := uuid.NewString()

	result, err := redis.Client().SetNX(ctx, fullkey, token, ttl).Result()
	if err != nil {
		return "", false, err
	}

	return token, result, nil
}

// Unlock 返回 false 表示锁已不属于 token 的持有者
func Unlock(ctx context.Context, key, token string) (bool, error) {
	fullkey := redis.Key(lockPrefix, key)

	deleted, err := unlockScript.Run(ctx, redis.Client(), []string{fullkey}, token).Int()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

// Acquire 轮询 TryLock 直到成功或 ctx 结束
func Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		token, ok, err := TryLock(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// 解锁不受请求 ctx 影响
				_, _ = Unlock(context.Background(), key, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
