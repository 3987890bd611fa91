package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld 租约已被其他执行者持有
var ErrLeaseHeld = errors.New("lease held by another worker")

var releaseLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease 基于 Redis SET NX 的互斥租约
type Lease struct {
	key   string
	token string
}

// AcquireLease 获取租约；Redis 未启用时直接返回空租约
func AcquireLease(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if !Enabled() {
		return &Lease{key: key}, nil
	}
	token := uuid.NewString()
	ok, err := current.client.SetNX(ctx, buildKey(key), token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	return &Lease{key: key, token: token}, nil
}

// Release 释放租约，仅删除自己持有的 key
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.token == "" || !Enabled() {
		return nil
	}
	err := releaseLeaseScript.Run(ctx, current.client, []string{buildKey(l.key)}, l.token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
