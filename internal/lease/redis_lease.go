package lease

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisManager struct {
	rdb *redis.Client
}

func NewRedisManager(rdb *redis.Client) *RedisManager {
	return &RedisManager{rdb: rdb}
}

func (m *RedisManager) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return m.rdb.SetNX(ctx, key, owner, ttl).Result()
}

// releaseScript deletes the lease only if the caller still owns it, so a
// slow run cannot drop a lease that already expired and was re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (m *RedisManager) Release(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, m.rdb, []string{key}, owner).Err()
}

func (m *RedisManager) Held(ctx context.Context, key string) (bool, error) {
	n, err := m.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
