package lock

import "context"

// StoreOnly is a Locker that takes no coordinator lock. Mutual exclusion
// then comes from the store's row locks alone, so it is only safe with a
// store whose BalanceRepository locks rows (postgres).
type StoreOnly struct{}

// NewStoreOnly creates a StoreOnly locker.
func NewStoreOnly() StoreOnly {
	return StoreOnly{}
}

// WithLock runs fn directly.
func (StoreOnly) WithLock(ctx context.Context, _ []string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
