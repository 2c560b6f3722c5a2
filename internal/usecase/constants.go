package usecase

import "time"

const (
	// DefaultTransactionTimeout caps one database transaction, row lock
	// waits included.
	DefaultTransactionTimeout = 10 * time.Second

	// BalanceCacheTTL is the default lifetime of a cached balance read.
	BalanceCacheTTL = 30 * time.Second
)
