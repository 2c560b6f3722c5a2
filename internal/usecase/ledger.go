package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/infrastructure/metrics"
	"github.com/iho/txledger/internal/processor"
)

// LedgerConfig configures the transaction engine.
type LedgerConfig struct {
	DefaultCurrency string
	Accounting      AccountingConfig
}

// DefaultLedgerConfig mirrors the stock configuration.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		DefaultCurrency: "USD",
		Accounting:      DefaultAccountingConfig(),
	}
}

// Ledger creates transactions and drives every balance-affecting change:
// commits, status changes, deletions and standalone recalculations.
type Ledger struct {
	cfg          LedgerConfig
	registry     *processor.Registry
	txManager    TransactionManager
	txRepo       TransactionRepository
	balanceRepo  BalanceRepository
	sequencer    BatchSequencer
	locker       Locker
	dispatcher   EventDispatcher
	recalculator *Recalculator
	idGen        IDGenerator
	retrier      Retrier
	cache        Cache
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// NewLedger creates a new Ledger. A nil dispatcher is accepted but every
// mutation then fails with ErrEventDispatcherRequired.
func NewLedger(
	cfg LedgerConfig,
	registry *processor.Registry,
	txManager TransactionManager,
	txRepo TransactionRepository,
	balanceRepo BalanceRepository,
	sequencer BatchSequencer,
	locker Locker,
	dispatcher EventDispatcher,
	recalculator *Recalculator,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *Ledger {
	return &Ledger{
		cfg:          cfg,
		registry:     registry,
		txManager:    txManager,
		txRepo:       txRepo,
		balanceRepo:  balanceRepo,
		sequencer:    sequencer,
		locker:       locker,
		dispatcher:   dispatcher,
		recalculator: recalculator,
		idGen:        idGen,
		metrics:      metrics,
		logger:       zerolog.Nop(),
	}
}

// WithRetrier sets a retrier for transient storage failures.
func (l *Ledger) WithRetrier(retrier Retrier) *Ledger {
	l.retrier = retrier
	return l
}

// WithCache sets the balance cache invalidated after each mutation.
func (l *Ledger) WithCache(cache Cache) *Ledger {
	l.cache = cache
	return l
}

// WithLogger sets the logger.
func (l *Ledger) WithLogger(logger zerolog.Logger) *Ledger {
	l.logger = logger
	return l
}

// Config returns the ledger configuration.
func (l *Ledger) Config() LedgerConfig {
	return l.cfg
}

// Transaction starts a new Creator in the default currency.
func (l *Ledger) Transaction() *Creator {
	return newCreator(l)
}

// Deposit starts a deposit of amount.
func (l *Ledger) Deposit(amount decimal.Decimal) *Creator {
	return newCreator(l).Processor(processor.KeyDeposit).Amount(amount)
}

// Charge starts a charge of amount.
func (l *Ledger) Charge(amount decimal.Decimal) *Creator {
	return newCreator(l).Processor(processor.KeyCharge).Amount(amount)
}

// Transfer starts a transfer of amount.
func (l *Ledger) Transfer(amount decimal.Decimal) *Creator {
	return newCreator(l).Processor(processor.KeyTransfer).Amount(amount)
}

// CommitBatch commits every creator as one batch: one batch id, one lock
// set and one database transaction. Either all legs persist or none.
func (l *Ledger) CommitBatch(ctx context.Context, creators ...*Creator) (txs []*domain.Transaction, err error) {
	start := time.Now()
	defer func() { l.observeCommit(start, creators, err) }()

	if len(creators) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrBatchIntegrityViolation)
	}

	var (
		lockKeys    []string
		balanceKeys []domain.BalanceKey
		seen        = make(map[*Creator]struct{}, len(creators))
	)
	for _, c := range creators {
		if c == nil {
			return nil, fmt.Errorf("%w: nil creator", domain.ErrBatchIntegrityViolation)
		}
		// One creator owns one transaction model; listing it twice would
		// persist the same leg under two ids.
		if _, ok := seen[c]; ok {
			return nil, fmt.Errorf("%w: creator listed more than once", domain.ErrBatchIntegrityViolation)
		}
		seen[c] = struct{}{}
		if c.ledger != l {
			return nil, errors.New("creator belongs to another ledger")
		}
		if err := c.validate(); err != nil {
			return nil, err
		}
		lockKeys = append(lockKeys, lockSet(c.tx, c.lock)...)
		balanceKeys = append(balanceKeys, c.tx.BalanceKeys()...)
	}
	balanceKeys = sortedBalanceKeys(balanceKeys)

	err = l.mutate(ctx, sortedUnique(lockKeys), balanceKeys, func(ctx context.Context, tx Transaction) error {
		return l.commitLegs(ctx, tx, creators, balanceKeys)
	})
	if err != nil {
		return nil, err
	}

	txs = make([]*domain.Transaction, 0, len(creators))
	for _, c := range creators {
		txs = append(txs, c.tx)
	}

	return txs, nil
}

func (l *Ledger) commitLegs(ctx context.Context, tx Transaction, creators []*Creator, keys []domain.BalanceKey) error {
	// Row locks first, in key order, so the funds check reads settled values.
	balances := make(map[domain.BalanceKey]*domain.Balance, len(keys))
	for _, k := range keys {
		b, err := l.balanceRepo.GetOrCreateForUpdate(ctx, tx, k)
		if err != nil {
			return err
		}
		balances[k] = b
	}

	for _, c := range creators {
		if err := c.normalize(); err != nil {
			return err
		}
	}

	for _, c := range creators {
		if c.before == nil {
			continue
		}
		if err := c.before(ctx, c, c.tx); err != nil {
			return err
		}
	}

	batchID, err := l.sequencer.Next(ctx)
	if err != nil {
		return fmt.Errorf("next batch id: %w", err)
	}

	legs := make([]*domain.Transaction, 0, len(creators))
	for _, c := range creators {
		id := batchID
		c.tx.BatchID = &id
		legs = append(legs, c.tx)
	}

	if err := l.validateBatch(creators, legs); err != nil {
		return err
	}

	for _, c := range creators {
		if hook, ok := c.processor.(processor.CreatingHook); ok {
			if err := hook.Creating(ctx, c.tx); err != nil {
				return err
			}
		}
	}

	// Hooks may have changed the amount; settle the final figures.
	for _, c := range creators {
		if err := c.normalize(); err != nil {
			return err
		}
		for _, k := range c.tx.BalanceKeys() {
			if _, ok := balances[k]; !ok {
				return errHookChangedBalances
			}
		}
	}

	if err := checkFunds(creators, balances); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, c := range creators {
		c.tx.ID = l.idGen.Generate()
		c.tx.CreatedAt = now
		c.tx.UpdatedAt = now

		if err := c.tx.Validate(); err != nil {
			return err
		}
		if err := l.txRepo.Create(ctx, tx, c.tx); err != nil {
			return err
		}
	}

	for _, k := range keys {
		if _, err := l.recalculator.Recalculate(ctx, tx, k); err != nil {
			return err
		}
	}

	for _, c := range creators {
		if err := l.dispatch(ctx, tx, domain.EventTypeTransactionCreated, c.tx, ""); err != nil {
			return err
		}
	}

	for _, c := range creators {
		if c.after == nil {
			continue
		}
		if err := c.after(ctx, c, c.tx); err != nil {
			return err
		}
	}

	return nil
}

func (l *Ledger) validateBatch(creators []*Creator, legs []*domain.Transaction) error {
	seen := make(map[string]struct{}, len(creators))
	for _, c := range creators {
		if _, ok := seen[c.tx.Processor]; ok {
			continue
		}
		seen[c.tx.Processor] = struct{}{}

		if v, ok := c.processor.(processor.BatchValidator); ok {
			if err := v.ValidateBatch(legs); err != nil {
				return err
			}
		}
	}

	return nil
}

func checkFunds(creators []*Creator, balances map[domain.BalanceKey]*domain.Balance) error {
	required := make(map[domain.BalanceKey]decimal.Decimal)
	var order []domain.BalanceKey

	for _, c := range creators {
		if c.tx.From == nil || c.overcharge {
			continue
		}

		key := domain.BalanceKey{Holder: *c.tx.From, Currency: c.tx.Currency}
		if _, ok := required[key]; !ok {
			order = append(order, key)
		}
		required[key] = required[key].Add(c.processor.Convention().Required(c.tx.Amount, c.tx.Commission))
	}

	for _, key := range order {
		have := balances[key].Value
		if have.LessThan(required[key]) {
			return fmt.Errorf("%w: %s holds %s, needs %s", domain.ErrInsufficientFunds, key, have, required[key])
		}
	}

	return nil
}

// UpdateStatus changes the status and merges meta into the metadata of a
// transaction. A status change recalculates both balances and emits
// status_changed before updated.
func (l *Ledger) UpdateStatus(
	ctx context.Context,
	id string,
	status domain.TransactionStatus,
	meta map[string]any,
) (*domain.Transaction, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	if err := domain.ValidateMetadata(meta); err != nil {
		return nil, err
	}
	if l.dispatcher == nil {
		return nil, domain.ErrEventDispatcherRequired
	}

	current, err := l.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	keys := sortedBalanceKeys(current.BalanceKeys())

	var updated *domain.Transaction
	err = l.mutate(ctx, balanceLockKeys(keys), keys, func(ctx context.Context, tx Transaction) error {
		for _, k := range keys {
			if _, err := l.balanceRepo.GetOrCreateForUpdate(ctx, tx, k); err != nil {
				return err
			}
		}

		t, err := l.txRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		p, err := l.registry.Resolve(t.Processor)
		if err != nil {
			return err
		}

		previous := t.Status
		t.Status = status
		if len(meta) > 0 && t.Metadata == nil {
			t.Metadata = make(map[string]any, len(meta))
		}
		for k, v := range meta {
			t.Metadata[k] = v
		}
		if err := domain.ValidateMetadata(t.Metadata); err != nil {
			return err
		}

		if hook, ok := p.(processor.UpdatingHook); ok {
			if err := hook.Updating(ctx, t, previous); err != nil {
				return err
			}
		}

		t.UpdatedAt = time.Now().UTC()
		if err := l.txRepo.Update(ctx, tx, t); err != nil {
			return err
		}

		if previous != t.Status {
			for _, k := range keys {
				if _, err := l.recalculator.Recalculate(ctx, tx, k); err != nil {
					return err
				}
			}
			if err := l.dispatch(ctx, tx, domain.EventTypeTransactionStatusChanged, t, previous); err != nil {
				return err
			}
		}

		if err := l.dispatch(ctx, tx, domain.EventTypeTransactionUpdated, t, ""); err != nil {
			return err
		}

		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if l.metrics != nil {
		l.metrics.StatusChanges.WithLabelValues(string(updated.Status)).Inc()
	}

	return updated, nil
}

// Delete removes a transaction and recalculates the balances it touched.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	if l.dispatcher == nil {
		return domain.ErrEventDispatcherRequired
	}

	current, err := l.txRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	keys := sortedBalanceKeys(current.BalanceKeys())

	err = l.mutate(ctx, balanceLockKeys(keys), keys, func(ctx context.Context, tx Transaction) error {
		for _, k := range keys {
			if _, err := l.balanceRepo.GetOrCreateForUpdate(ctx, tx, k); err != nil {
				return err
			}
		}

		t, err := l.txRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		p, err := l.registry.Resolve(t.Processor)
		if err != nil {
			return err
		}
		if hook, ok := p.(processor.DeletingHook); ok {
			if err := hook.Deleting(ctx, t); err != nil {
				return err
			}
		}

		if err := l.txRepo.Delete(ctx, tx, id); err != nil {
			return err
		}

		for _, k := range keys {
			if _, err := l.recalculator.Recalculate(ctx, tx, k); err != nil {
				return err
			}
		}

		return l.dispatch(ctx, tx, domain.EventTypeTransactionDeleted, t, "")
	})
	if err != nil {
		return err
	}

	if l.metrics != nil {
		l.metrics.TransactionsDeleted.Inc()
	}

	return nil
}

// Recalculate rebuilds one balance from history under its lock.
func (l *Ledger) Recalculate(ctx context.Context, key domain.BalanceKey) (*domain.Balance, error) {
	if _, err := l.cfg.Accounting.Numeric.Scale(key.Currency); err != nil {
		return nil, err
	}

	var balance *domain.Balance
	keys := []domain.BalanceKey{key}
	err := l.mutate(ctx, balanceLockKeys(keys), keys, func(ctx context.Context, tx Transaction) error {
		var err error
		balance, err = l.recalculator.Recalculate(ctx, tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}

	return balance, nil
}

// mutate runs fn in a database transaction under the coordinator locks,
// retrying transient failures, and drops cached balances afterwards.
func (l *Ledger) mutate(
	ctx context.Context,
	lockKeys []string,
	touched []domain.BalanceKey,
	fn func(ctx context.Context, tx Transaction) error,
) error {
	op := func() error {
		return l.withLock(ctx, lockKeys, func(ctx context.Context) error {
			txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
			defer cancel()

			tx, err := l.txManager.Begin(txCtx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(txCtx) }()

			if err := fn(txCtx, tx); err != nil {
				return err
			}

			return tx.Commit(txCtx)
		})
	}

	var err error
	if l.retrier != nil {
		err = l.retrier.Retry(ctx, op)
	} else {
		err = op()
	}
	if err != nil {
		return err
	}

	l.invalidate(ctx, touched)
	return nil
}

func (l *Ledger) withLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if len(keys) == 0 || l.locker == nil {
		return fn(ctx)
	}

	start := time.Now()
	return l.locker.WithLock(ctx, keys, func(ctx context.Context) error {
		if l.metrics != nil {
			l.metrics.LockWait.Observe(time.Since(start).Seconds())
		}
		return fn(ctx)
	})
}

func (l *Ledger) dispatch(
	ctx context.Context,
	tx Transaction,
	eventType string,
	t *domain.Transaction,
	previous domain.TransactionStatus,
) error {
	event := domain.TransactionEvent{
		Type:           eventType,
		Transaction:    t.Clone(),
		PreviousStatus: previous,
		OccurredAt:     time.Now().UTC(),
	}

	if err := l.dispatcher.Dispatch(ctx, tx, event); err != nil {
		return fmt.Errorf("dispatch %s: %w", eventType, err)
	}

	if l.metrics != nil {
		l.metrics.EventsDispatched.WithLabelValues(eventType).Inc()
	}

	return nil
}

func (l *Ledger) invalidate(ctx context.Context, keys []domain.BalanceKey) {
	if l.cache == nil {
		return
	}

	for _, k := range keys {
		if err := l.cache.Delete(ctx, BalanceCacheKey(k)); err != nil {
			l.logger.Warn().Err(err).Str("balance", k.LockKey()).Msg("failed to invalidate cached balance")
		}
	}
}

func (l *Ledger) observeCommit(start time.Time, creators []*Creator, err error) {
	if l.metrics == nil {
		return
	}

	if err != nil {
		l.metrics.CommitErrors.WithLabelValues(ErrorType(err)).Inc()
		if errors.Is(err, domain.ErrLockAcquisitionFailed) {
			l.metrics.LockFailures.Inc()
		}
		return
	}

	l.metrics.CommitDuration.Observe(time.Since(start).Seconds())
	l.metrics.BatchSize.Observe(float64(len(creators)))
	for _, c := range creators {
		l.metrics.TransactionsCommitted.WithLabelValues(c.tx.Processor).Inc()
	}
}

// ErrorType maps an error to a low-cardinality label.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrUnknownProcessor):
		return "unknown_processor"
	case errors.Is(err, domain.ErrMissingCounterparty):
		return "missing_counterparty"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrEventDispatcherRequired):
		return "event_dispatcher_required"
	case errors.Is(err, domain.ErrBatchIntegrityViolation):
		return "batch_integrity_violation"
	case errors.Is(err, domain.ErrLockAcquisitionFailed):
		return "lock_acquisition_failed"
	case errors.Is(err, domain.ErrUnknownCurrency), errors.Is(err, domain.ErrInvalidCurrency):
		return "unknown_currency"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "internal"
	}
}
