package lock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"arcadeswap-api/pkg/uid"

	"github.com/redis/go-redis/v9"
)

// releaseIfOwnerScript deletes the key only while it still holds our token,
// so a lease that expired and was re-acquired by someone else is left alone.
var releaseIfOwnerScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

const releaseTimeout = 2 * time.Second

// RedisConfig holds connection settings for RedisLocker.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisLocker implements Locker with SET NX PX leases shared by all instances.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(cfg RedisConfig) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "arcadeswap:lock"
	}

	log.Printf("[RedisLocker] Connected - DB:%d, prefix:%s", cfg.DB, keyPrefix)
	return &RedisLocker{client: client, keyPrefix: keyPrefix}, nil
}

func (l *RedisLocker) key(name string) string {
	return l.keyPrefix + ":" + name
}

// TryAcquire takes the lease on key or returns ErrLockHeld.
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uid.New()
	redisKey := l.key(key)

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseIfOwnerScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				log.Printf("[RedisLocker] Failed to release %s: %v", key, err)
			}
		})
	}, nil
}

// Stats reports locker state for the admin dashboard.
func (l *RedisLocker) Stats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{"type": "redis"}
	if err := l.client.Ping(ctx).Err(); err != nil {
		stats["status"] = "error"
		stats["error"] = err.Error()
		return stats
	}
	stats["status"] = "connected"
	return stats
}

// Close closes the Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

var _ Locker = (*RedisLocker)(nil)
