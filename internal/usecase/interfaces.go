package usecase

import (
	"context"
	"time"

	"github.com/iho/txledger/internal/domain"
)

// TransactionRepository defines data access for ledger transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, t *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Transaction, error)
	// Update persists status, metadata and updated_at. Other fields are immutable.
	Update(ctx context.Context, tx Transaction, t *domain.Transaction) error
	Delete(ctx context.Context, tx Transaction, id string) error
	ListByHolder(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error)
	// Totals aggregates every transaction touching key, grouped by processor,
	// side and status. It must observe writes made earlier in tx.
	Totals(ctx context.Context, tx Transaction, key domain.BalanceKey, excludeInvisible bool) ([]domain.LegTotal, error)
}

// BalanceRepository defines data access for balances.
type BalanceRepository interface {
	// GetOrCreateForUpdate returns the balance row for key, creating a zero
	// balance on first reference, and holds its row lock until tx ends.
	GetOrCreateForUpdate(ctx context.Context, tx Transaction, key domain.BalanceKey) (*domain.Balance, error)
	Get(ctx context.Context, key domain.BalanceKey) (*domain.Balance, error)
	Save(ctx context.Context, tx Transaction, balance *domain.Balance) error
	List(ctx context.Context, limit, offset int) ([]*domain.Balance, error)
}

// BalanceStateRepository stores append-only balance snapshots.
type BalanceStateRepository interface {
	Create(ctx context.Context, tx Transaction, state *domain.BalanceState) error
	ListByBalance(ctx context.Context, balanceID string, limit, offset int) ([]*domain.BalanceState, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// BatchSequencer issues monotonically increasing batch ids.
type BatchSequencer interface {
	Next(ctx context.Context) (int64, error)
}

// Locker serializes work on a set of keys. Keys are acquired in sorted
// order and released after fn returns.
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

// EventDispatcher delivers lifecycle events. Dispatch runs inside the
// database transaction that produced the event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, tx Transaction, event domain.TransactionEvent) error
}

// Retrier re-runs an operation on transient storage failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotentResponse is the response replayed for a repeated idempotency key.
type IdempotentResponse struct {
	Body   []byte `json:"body"`
	Status int    `json:"status"`
}

// IdempotencyStore tracks idempotency keys of mutating requests.
type IdempotencyStore interface {
	// Reserve claims key for an in-flight request. When the key is already
	// taken it reports false together with the stored response, or a nil
	// response while the first request is still running.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, *IdempotentResponse, error)
	// Complete replaces the claim with the final response.
	Complete(ctx context.Context, key string, resp IdempotentResponse, ttl time.Duration) error
	// Release drops the claim so the request can be retried.
	Release(ctx context.Context, key string) error
}
