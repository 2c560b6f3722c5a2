package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/infrastructure/metrics"
)

// BalanceCacheKey is the cache key of a balance read.
func BalanceCacheKey(key domain.BalanceKey) string {
	return key.LockKey()
}

// BalanceUseCase serves balance reads and operator recalculations.
type BalanceUseCase struct {
	ledger      *Ledger
	balanceRepo BalanceRepository
	stateRepo   BalanceStateRepository
	cache       Cache
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	cacheTTL    time.Duration
}

// NewBalanceUseCase creates a new BalanceUseCase. cache and stateRepo may be nil.
func NewBalanceUseCase(
	ledger *Ledger,
	balanceRepo BalanceRepository,
	stateRepo BalanceStateRepository,
	cache Cache,
	metrics *metrics.Metrics,
) *BalanceUseCase {
	return &BalanceUseCase{
		ledger:      ledger,
		balanceRepo: balanceRepo,
		stateRepo:   stateRepo,
		cache:       cache,
		metrics:     metrics,
		logger:      zerolog.Nop(),
		cacheTTL:    BalanceCacheTTL,
	}
}

// WithCacheTTL sets how long balance reads stay cached.
func (uc *BalanceUseCase) WithCacheTTL(ttl time.Duration) *BalanceUseCase {
	uc.cacheTTL = ttl
	return uc
}

// WithLogger sets the logger.
func (uc *BalanceUseCase) WithLogger(logger zerolog.Logger) *BalanceUseCase {
	uc.logger = logger
	return uc
}

// Get returns the balance of holder in currency. A balance that was never
// referenced reads as zero.
func (uc *BalanceUseCase) Get(ctx context.Context, holder domain.HolderRef, currency string) (*domain.Balance, error) {
	if err := domain.ValidateHolder(holder); err != nil {
		return nil, err
	}
	if _, err := uc.ledger.cfg.Accounting.Numeric.Scale(currency); err != nil {
		return nil, err
	}

	key := domain.BalanceKey{Holder: holder, Currency: currency}
	if cached := uc.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	balance, err := uc.balanceRepo.Get(ctx, key)
	if errors.Is(err, domain.ErrBalanceNotFound) {
		return &domain.Balance{Holder: holder, Currency: currency}, nil
	}
	if err != nil {
		return nil, err
	}

	uc.toCache(ctx, key, balance)
	return balance, nil
}

// List returns stored balances.
func (uc *BalanceUseCase) List(ctx context.Context, limit, offset int) ([]*domain.Balance, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return uc.balanceRepo.List(ctx, limit, offset)
}

// States returns the recorded snapshots of a balance.
func (uc *BalanceUseCase) States(
	ctx context.Context,
	holder domain.HolderRef,
	currency string,
	limit, offset int,
) ([]*domain.BalanceState, error) {
	if uc.stateRepo == nil {
		return []*domain.BalanceState{}, nil
	}

	balance, err := uc.balanceRepo.Get(ctx, domain.BalanceKey{Holder: holder, Currency: currency})
	if errors.Is(err, domain.ErrBalanceNotFound) {
		return []*domain.BalanceState{}, nil
	}
	if err != nil {
		return nil, err
	}

	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return uc.stateRepo.ListByBalance(ctx, balance.ID, limit, offset)
}

// Recalculate rebuilds a balance from its transaction history.
func (uc *BalanceUseCase) Recalculate(ctx context.Context, holder domain.HolderRef, currency string) (*domain.Balance, error) {
	if err := domain.ValidateHolder(holder); err != nil {
		return nil, err
	}

	return uc.ledger.Recalculate(ctx, domain.BalanceKey{Holder: holder, Currency: currency})
}

func (uc *BalanceUseCase) fromCache(ctx context.Context, key domain.BalanceKey) *domain.Balance {
	if uc.cache == nil {
		return nil
	}

	data, err := uc.cache.Get(ctx, BalanceCacheKey(key))
	if err != nil || data == nil {
		uc.countLookup("miss")
		return nil
	}

	var balance domain.Balance
	if err := json.Unmarshal(data, &balance); err != nil {
		uc.logger.Warn().Err(err).Str("balance", key.LockKey()).Msg("dropping unreadable cached balance")
		uc.countLookup("miss")
		return nil
	}

	uc.countLookup("hit")
	return &balance
}

func (uc *BalanceUseCase) toCache(ctx context.Context, key domain.BalanceKey, balance *domain.Balance) {
	if uc.cache == nil {
		return
	}

	data, err := json.Marshal(balance)
	if err != nil {
		return
	}

	if err := uc.cache.Set(ctx, BalanceCacheKey(key), data, uc.cacheTTL); err != nil {
		uc.logger.Warn().Err(err).Str("balance", key.LockKey()).Msg("failed to cache balance")
	}
}

func (uc *BalanceUseCase) countLookup(result string) {
	if uc.metrics != nil {
		uc.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

