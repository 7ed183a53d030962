package lock

import (
	"context"
	"sync"
	"time"

	"reserva/internal/models"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is an in-process locker used in tests and as the failover
// fallback when redis is unavailable. It only serializes within one process;
// the storage overlap check covers the rest.
type MemoryLocker struct {
	mu         sync.Mutex
	held       map[string]memoryEntry
	retryDelay time.Duration
}

func NewMemoryLocker(retryDelay time.Duration) *MemoryLocker {
	if retryDelay <= 0 {
		retryDelay = 10 * time.Millisecond
	}
	return &MemoryLocker{
		held:       make(map[string]memoryEntry),
		retryDelay: retryDelay,
	}
}

func (l *MemoryLocker) tryAcquire(key, token string, ttl time.Duration, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.held[key]; ok && now.Before(entry.expiresAt) {
		return false
	}
	l.held[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}
	return true
}

func (l *MemoryLocker) Acquire(ctx context.Context, resourceItemID string, period models.Period, ttl time.Duration, maxRetries int) (bool, string, error) {
	if ttl <= 0 {
		ttl = models.DefaultLockTTLSeconds * time.Second
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	key := SlotKey(resourceItemID, period)
	token := newToken(key)

	for attempt := 1; ; attempt++ {
		if l.tryAcquire(key, token, ttl, time.Now()) {
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

func (l *MemoryLocker) Release(ctx context.Context, token string) error {
	key, err := splitToken(token)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.held[key]; ok && entry.token == token {
		delete(l.held, key)
	}
	return nil
}
