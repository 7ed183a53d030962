package lock

import (
	"context"
	"fmt"
	"time"

	"reserva/internal/config"
	"reserva/internal/models"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token, so a
// holder whose TTL already expired cannot release somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client     *redis.Client
	retryDelay time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisLocker(client *redis.Client, retryDelay time.Duration) *RedisLocker {
	if retryDelay <= 0 {
		retryDelay = 100 * time.Millisecond
	}
	return &RedisLocker{
		client:     client,
		retryDelay: retryDelay,
	}
}

// Acquire attempts an atomic SET NX with the given TTL, retrying up to
// maxRetries times. Exhaustion is not an error: granted=false tells the
// caller the slot is contended right now.
func (l *RedisLocker) Acquire(ctx context.Context, resourceItemID string, period models.Period, ttl time.Duration, maxRetries int) (bool, string, error) {
	if l.client == nil {
		return false, "", fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		ttl = models.DefaultLockTTLSeconds * time.Second
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	key := SlotKey(resourceItemID, period)
	token := newToken(key)

	for attempt := 1; ; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return false, "", fmt.Errorf("failed to acquire slot lock: %w", err)
		}
		if ok {
			return true, token, nil
		}
		if attempt >= maxRetries {
			return false, "", nil
		}

		select {
		case <-ctx.Done():
			return false, "", ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

// Release frees the lock if the token still owns it. Releasing an expired
// or already-released lock is a no-op.
func (l *RedisLocker) Release(ctx context.Context, token string) error {
	if l.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key, err := splitToken(token)
	if err != nil {
		return err
	}
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release slot lock: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
