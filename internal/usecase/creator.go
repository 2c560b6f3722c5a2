package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/processor"
)

// Hook runs inside the commit's database transaction, around persistence.
// An error aborts the commit.
type Hook func(ctx context.Context, c *Creator, tx *domain.Transaction) error

// CommissionOptions tune Creator.Commission.
type CommissionOptions struct {
	Strategy domain.CommissionStrategy
	Minimum  decimal.Decimal
	Fixed    decimal.Decimal
}

// Creator assembles one transaction. Setters record the first error they
// hit; Commit returns it.
type Creator struct {
	ledger     *Ledger
	tx         *domain.Transaction
	processor  processor.Processor
	commission *domain.Commission
	before     Hook
	after      Hook
	lock       LockOverride
	overcharge bool
	err        error
}

func newCreator(l *Ledger) *Creator {
	return &Creator{
		ledger: l,
		tx: &domain.Transaction{
			Currency: l.cfg.DefaultCurrency,
			Status:   domain.StatusPending,
		},
	}
}

func (c *Creator) fail(err error) *Creator {
	if c.err == nil {
		c.err = err
	}
	return c
}

// Err returns the first setter error.
func (c *Creator) Err() error {
	return c.err
}

// Model exposes the transaction being assembled.
func (c *Creator) Model() *domain.Transaction {
	return c.tx
}

// Amount sets the amount. It must be positive.
func (c *Creator) Amount(amount decimal.Decimal) *Creator {
	if !amount.IsPositive() {
		return c.fail(domain.ErrInvalidAmount)
	}
	c.tx.Amount = amount
	return c
}

// Currency sets the currency code.
func (c *Creator) Currency(code string) *Creator {
	c.tx.Currency = code
	return c
}

// Commission computes the commission right away from the current amount.
// It is recomputed from the final amount at commit.
func (c *Creator) Commission(value decimal.Decimal, opts CommissionOptions) *Creator {
	rule := domain.Commission{
		Strategy: opts.Strategy,
		Value:    value,
		Minimum:  opts.Minimum,
		Fixed:    opts.Fixed,
	}
	if rule.Strategy == "" {
		rule.Strategy = domain.CommissionFixed
	}

	commission, err := rule.Calculate(c.tx.Amount, c.ledger.cfg.Accounting.Numeric, c.tx.Currency)
	if err != nil {
		return c.fail(err)
	}

	c.commission = &rule
	c.tx.Commission = commission
	return c
}

// Processor resolves key and applies the processor's initial status.
func (c *Creator) Processor(key string) *Creator {
	p, err := c.ledger.registry.Resolve(key)
	if err != nil {
		return c.fail(err)
	}

	c.processor = p
	c.tx.Processor = key
	c.tx.Status = processor.InitialStatus(p)
	return c
}

// From sets the debited holder. Nil clears it.
func (c *Creator) From(h domain.Holder) *Creator {
	c.tx.From = refPtr(h)
	return c
}

// To sets the credited holder. Nil clears it.
func (c *Creator) To(h domain.Holder) *Creator {
	c.tx.To = refPtr(h)
	return c
}

// Overcharge disables the sufficient funds check.
func (c *Creator) Overcharge(allow bool) *Creator {
	c.overcharge = allow
	return c
}

// Before replaces the hook run before persistence.
func (c *Creator) Before(hook Hook) *Creator {
	c.before = hook
	return c
}

// After replaces the hook run after persistence.
func (c *Creator) After(hook Hook) *Creator {
	c.after = hook
	return c
}

// Invisible marks the transaction as hidden from holder listings.
func (c *Creator) Invisible(invisible bool) *Creator {
	c.tx.Invisible = invisible
	return c
}

// Meta replaces the metadata.
func (c *Creator) Meta(meta map[string]any) *Creator {
	if err := domain.ValidateMetadata(meta); err != nil {
		return c.fail(err)
	}

	c.tx.Metadata = make(map[string]any, len(meta))
	for k, v := range meta {
		c.tx.Metadata[k] = v
	}
	return c
}

// Status overrides the status picked by the processor.
func (c *Creator) Status(status domain.TransactionStatus) *Creator {
	if !status.IsValid() {
		return c.fail(fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status))
	}

	c.tx.Status = status
	return c
}

// Lock serializes the commit on key instead of the default balance.
func (c *Creator) Lock(key string) *Creator {
	c.lock = LockOverride{Mode: LockCustom, Key: key}
	return c
}

// NoLock skips the lock coordinator.
func (c *Creator) NoLock() *Creator {
	c.lock = LockOverride{Mode: LockDisabled}
	return c
}

// Commit persists the transaction and returns it.
func (c *Creator) Commit(ctx context.Context) (*domain.Transaction, error) {
	txs, err := c.ledger.CommitBatch(ctx, c)
	if err != nil {
		return nil, err
	}

	return txs[0], nil
}

func (c *Creator) validate() error {
	if c.err != nil {
		return c.err
	}
	if c.tx.From == nil && !c.overcharge {
		return domain.ErrMissingCounterparty
	}
	if c.ledger.dispatcher == nil {
		return domain.ErrEventDispatcherRequired
	}
	if c.processor == nil {
		return fmt.Errorf("%w: processor not set", domain.ErrUnknownProcessor)
	}
	if err := domain.ValidateAmount(c.tx.Amount); err != nil {
		return err
	}
	if err := domain.ValidateCurrency(c.tx.Currency); err != nil {
		return err
	}
	if _, err := c.ledger.cfg.Accounting.Numeric.Scale(c.tx.Currency); err != nil {
		return err
	}
	if c.tx.From == nil && c.tx.To == nil {
		return domain.ErrMissingCounterparty
	}
	for _, ref := range []*domain.HolderRef{c.tx.From, c.tx.To} {
		if ref == nil {
			continue
		}
		if err := domain.ValidateHolder(*ref); err != nil {
			return err
		}
	}
	if c.tx.From != nil && c.tx.To != nil && *c.tx.From == *c.tx.To {
		return domain.ErrSameCounterparty
	}

	return nil
}

// normalize rounds amount and commission to the currency scale,
// recomputing the commission from the current amount.
func (c *Creator) normalize() error {
	n := c.ledger.cfg.Accounting.Numeric

	amount, err := n.Normalize(c.tx.Currency, c.tx.Amount)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s rounds to zero in %s", domain.ErrInvalidAmount, c.tx.Amount, c.tx.Currency)
	}
	c.tx.Amount = amount

	if c.commission != nil {
		commission, err := c.commission.Calculate(c.tx.Amount, n, c.tx.Currency)
		if err != nil {
			return err
		}
		c.tx.Commission = commission
		return nil
	}

	if c.tx.Commission, err = n.Normalize(c.tx.Currency, c.tx.Commission); err != nil {
		return err
	}
	if c.tx.Commission.IsNegative() {
		return domain.ErrInvalidCommission
	}

	return nil
}

func refPtr(h domain.Holder) *domain.HolderRef {
	if h == nil {
		return nil
	}

	ref := domain.RefOf(h)
	if ref.IsZero() {
		return nil
	}

	return &ref
}

// errHookChangedBalances rejects hooks that move a transaction onto a
// balance outside the commit's lock set.
var errHookChangedBalances = errors.New("hook changed transaction counterparties or currency")
