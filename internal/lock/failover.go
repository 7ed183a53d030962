package lock

import (
	"context"
	"sync/atomic"
	"time"

	"reserva/internal/domain"
	"reserva/internal/models"

	"github.com/rs/zerolog"
)

// FailoverLocker prefers the redis locker and degrades to the in-memory one
// when redis errors out. Degraded mode only serializes inside this process,
// which is acceptable because the storage overlap check stays authoritative.
type FailoverLocker struct {
	primary   domain.SlotLocker
	fallback  domain.SlotLocker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed primary attempt
}

func NewFailoverLocker(primary, fallback domain.SlotLocker, logger *zerolog.Logger) *FailoverLocker {
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (l *FailoverLocker) primaryUsable() bool {
	if !l.isDown.Load() {
		return true
	}
	// Try to recover after a minute.
	return time.Since(time.Unix(0, l.lastCheck.Load())) > time.Minute
}

func (l *FailoverLocker) markDown(err error) {
	l.logger.Error().Err(err).Msg("Primary slot locker failed, falling back to memory")
	l.isDown.Store(true)
	l.lastCheck.Store(time.Now().UnixNano())
}

func (l *FailoverLocker) Acquire(ctx context.Context, resourceItemID string, period models.Period, ttl time.Duration, maxRetries int) (bool, string, error) {
	if l.primaryUsable() {
		granted, token, err := l.primary.Acquire(ctx, resourceItemID, period, ttl, maxRetries)
		if err == nil {
			l.isDown.Store(false)
			return granted, token, nil
		}
		if ctx.Err() != nil {
			return false, "", err
		}
		l.markDown(err)
	}

	return l.fallback.Acquire(ctx, resourceItemID, period, ttl, maxRetries)
}

func (l *FailoverLocker) Release(ctx context.Context, token string) error {
	// Release against both: the token is only held by one of them and
	// releasing a foreign token is a no-op.
	var primaryErr error
	if !l.isDown.Load() {
		primaryErr = l.primary.Release(ctx, token)
	}
	if err := l.fallback.Release(ctx, token); err != nil {
		return err
	}
	return primaryErr
}
