package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// unlockScript deletes the key only while it still holds the caller's token.
var unlockScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v == false then
	return 0
end
if v ~= ARGV[1] then
	return -1
end
return redis.call("DEL", KEYS[1])
`)

// RedisLocker shares locks between instances through SET NX.
type RedisLocker struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisLocker(client *redis.Client, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{client: client, log: logger}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, string, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		l.log.Error("RedisLocker.TryLock error calling SetNX",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, "", err
	}
	if !acquired {
		l.log.Info("RedisLocker.TryLock not acquired", zap.String("key", key))
		return false, "", nil
	}
	return true, token, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	res, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		l.log.Error("RedisLocker.Unlock error running unlock script",
			zap.String("key", key),
			zap.Error(err),
		)
		return err
	}
	if res < 0 {
		l.log.Error("RedisLocker.Unlock lock ownership mismatch", zap.String("key", key))
		return ErrNotOwner
	}
	return nil
}
