package booking

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker guards booking creation per spot across processes using
// SET NX with a TTL so a crashed holder cannot wedge the spot.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(context.Background(), key, "1", ttl).Result()
}

func (l *RedisLocker) Release(key string) error {
	return l.client.Del(context.Background(), key).Err()
}

var _ Locker = (*RedisLocker)(nil)
