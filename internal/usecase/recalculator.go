package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/infrastructure/metrics"
	"github.com/iho/txledger/internal/processor"
)

// AccountingConfig controls how balances are derived from history.
type AccountingConfig struct {
	Numeric            domain.Numeric
	AccountingStatuses []domain.TransactionStatus
	ComputePending     bool
	ComputeOnHold      bool
	LogStates          bool
	// ExcludeInvisible drops invisible transactions from balance totals.
	ExcludeInvisible bool
}

// DefaultAccountingConfig mirrors the stock configuration.
func DefaultAccountingConfig() AccountingConfig {
	return AccountingConfig{
		Numeric:            domain.DefaultNumeric(),
		AccountingStatuses: domain.DefaultAccountingStatuses(),
	}
}

// Recalculator derives balance figures from transaction history. Callers
// must hold the balance lock for key.
type Recalculator struct {
	balanceRepo BalanceRepository
	txRepo      TransactionRepository
	stateRepo   BalanceStateRepository
	registry    *processor.Registry
	idGen       IDGenerator
	cfg         AccountingConfig
	accounting  domain.StatusSet
	metrics     *metrics.Metrics
}

// NewRecalculator creates a new Recalculator. stateRepo may be nil when
// state logging is disabled.
func NewRecalculator(
	balanceRepo BalanceRepository,
	txRepo TransactionRepository,
	stateRepo BalanceStateRepository,
	registry *processor.Registry,
	idGen IDGenerator,
	cfg AccountingConfig,
	metrics *metrics.Metrics,
) *Recalculator {
	return &Recalculator{
		balanceRepo: balanceRepo,
		txRepo:      txRepo,
		stateRepo:   stateRepo,
		registry:    registry,
		idGen:       idGen,
		cfg:         cfg,
		accounting:  domain.NewStatusSet(cfg.AccountingStatuses...),
		metrics:     metrics,
	}
}

// Recalculate recomputes and saves the balance for key inside tx.
func (r *Recalculator) Recalculate(ctx context.Context, tx Transaction, key domain.BalanceKey) (*domain.Balance, error) {
	start := time.Now()

	balance, err := r.balanceRepo.GetOrCreateForUpdate(ctx, tx, key)
	if err != nil {
		return nil, err
	}

	totals, err := r.txRepo.Totals(ctx, tx, key, r.cfg.ExcludeInvisible)
	if err != nil {
		return nil, err
	}

	value, pending, onHold, err := r.sum(totals)
	if err != nil {
		return nil, err
	}

	before := balance.Value

	if balance.Value, err = r.cfg.Numeric.Normalize(key.Currency, value); err != nil {
		return nil, err
	}
	balance.Pending = nil
	if r.cfg.ComputePending {
		p, err := r.cfg.Numeric.Normalize(key.Currency, pending)
		if err != nil {
			return nil, err
		}
		balance.Pending = &p
	}
	balance.OnHold = nil
	if r.cfg.ComputeOnHold {
		h, err := r.cfg.Numeric.Normalize(key.Currency, onHold)
		if err != nil {
			return nil, err
		}
		balance.OnHold = &h
	}

	now := time.Now().UTC()
	balance.RecalculatedAt = &now
	balance.UpdatedAt = now

	if err := r.balanceRepo.Save(ctx, tx, balance); err != nil {
		return nil, err
	}

	if r.cfg.LogStates && r.stateRepo != nil {
		state := &domain.BalanceState{
			ID:           r.idGen.Generate(),
			BalanceID:    balance.ID,
			ValueBefore:  before,
			ValueAfter:   balance.Value,
			PendingAfter: balance.Pending,
			OnHoldAfter:  balance.OnHold,
			CreatedAt:    now,
		}
		if err := r.stateRepo.Create(ctx, tx, state); err != nil {
			return nil, err
		}
	}

	if r.metrics != nil {
		r.metrics.Recalculations.WithLabelValues(key.Currency).Inc()
		r.metrics.RecalculateDuration.Observe(time.Since(start).Seconds())
	}

	return balance, nil
}

// Expected computes the balance value history implies, without saving.
func (r *Recalculator) Expected(ctx context.Context, tx Transaction, key domain.BalanceKey) (decimal.Decimal, error) {
	totals, err := r.txRepo.Totals(ctx, tx, key, r.cfg.ExcludeInvisible)
	if err != nil {
		return decimal.Zero, err
	}

	value, _, _, err := r.sum(totals)
	if err != nil {
		return decimal.Zero, err
	}

	return r.cfg.Numeric.Normalize(key.Currency, value)
}

func (r *Recalculator) sum(totals []domain.LegTotal) (value, pending, onHold decimal.Decimal, err error) {
	for _, t := range totals {
		p, err := r.registry.Resolve(t.Processor)
		if err != nil {
			return value, pending, onHold, fmt.Errorf("recalculate: %w", err)
		}

		effect := p.Convention().Effect(t.Side, t.Amount, t.Commission)
		if r.accounting.Contains(t.Status) {
			value = value.Add(effect)
		}

		switch t.Status {
		case domain.StatusPending:
			pending = pending.Add(effect)
		case domain.StatusOnHold:
			onHold = onHold.Add(effect)
		}
	}

	return value, pending, onHold, nil
}
