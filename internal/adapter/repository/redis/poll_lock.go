package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/iho/tontiflex/internal/usecase"
)

// PollLocker implements usecase.PollLocker with a redsync mutex per key, so only
// one process polls a given transaction.
type PollLocker struct {
	rs     *redsync.Redsync
	prefix string
}

// NewPollLocker creates a new PollLocker.
func NewPollLocker(client redis.UniversalClient) *PollLocker {
	return &PollLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: "tontiflex:poll:",
	}
}

// TryAcquire makes one attempt to take key for ttl.
func (l *PollLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (usecase.Lease, bool, error) {
	mutex := l.rs.NewMutex(
		l.prefix+key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire poll lock %s: %w", key, err)
	}
	return &lease{mutex: mutex}, true, nil
}

type lease struct {
	mutex *redsync.Mutex
}

// Release gives the key back. An already expired lease is not an error.
func (l *lease) Release(ctx context.Context) error {
	if _, err := l.mutex.UnlockContext(ctx); err != nil && !errors.Is(err, redsync.ErrLockAlreadyExpired) {
		return err
	}
	return nil
}
