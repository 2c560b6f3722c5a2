package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/txledger/internal/adapter/lock"
	"github.com/iho/txledger/internal/domain"
)

var (
	// ErrLockExpiryInvalid is returned when lock expiry is not positive.
	ErrLockExpiryInvalid = errors.New("lock expiry must be greater than 0")
	// ErrLockTriesInvalid is returned when lock tries is less than 1.
	ErrLockTriesInvalid = errors.New("lock tries must be at least 1")
)

// LockOptions configures each per-key mutex.
type LockOptions struct {
	// Expiry bounds how long a crashed holder can keep a key.
	Expiry time.Duration
	// Tries is the number of acquisition attempts per key.
	Tries      int
	RetryDelay time.Duration
}

// DefaultLockOptions returns defaults for ledger commits.
func DefaultLockOptions() LockOptions {
	return LockOptions{
		Expiry:     10 * time.Second,
		Tries:      32,
		RetryDelay: 50 * time.Millisecond,
	}
}

func (o LockOptions) validate() error {
	if o.Expiry <= 0 {
		return ErrLockExpiryInvalid
	}
	if o.Tries < 1 {
		return ErrLockTriesInvalid
	}

	return nil
}

// LockManager implements usecase.Locker with one RedLock mutex per key,
// so commits are serialized across every process sharing the Redis.
type LockManager struct {
	redsync *redsync.Redsync
	opts    LockOptions
	prefix  string
	logger  zerolog.Logger
}

// NewLockManager creates a LockManager backed by client.
func NewLockManager(client redis.UniversalClient, opts LockOptions, logger zerolog.Logger) (*LockManager, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &LockManager{
		redsync: redsync.New(goredis.NewPool(client)),
		opts:    opts,
		prefix:  "lock:",
		logger:  logger,
	}, nil
}

// WithLock acquires keys in sorted order, runs fn and releases them in
// reverse order.
func (m *LockManager) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	keys = lock.SortKeys(keys)

	held := make([]*redsync.Mutex, 0, len(keys))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			if ok, err := held[i].UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
				m.logger.Warn().
					Err(err).
					Str("lock_key", held[i].Name()).
					Msg("lock was not held at release")
			}
		}
	}()

	for _, key := range keys {
		mutex := m.redsync.NewMutex(
			m.prefix+key,
			redsync.WithExpiry(m.opts.Expiry),
			redsync.WithTries(m.opts.Tries),
			redsync.WithRetryDelay(m.opts.RetryDelay),
		)

		if err := mutex.LockContext(ctx); err != nil {
			m.logger.Debug().Err(err).Str("lock_key", key).Msg("failed to acquire lock")
			return fmt.Errorf("%w: %s: %v", domain.ErrLockAcquisitionFailed, key, err)
		}
		held = append(held, mutex)
	}

	return fn(ctx)
}
