package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/txledger/internal/domain"
)

// CommissionInput describes a commission rule in a CreateTransactionInput.
type CommissionInput struct {
	Value    decimal.Decimal
	Strategy domain.CommissionStrategy
	Minimum  decimal.Decimal
	Fixed    decimal.Decimal
}

// CreateTransactionInput is the declarative form of a Creator, used by
// transports that cannot hold a builder across calls.
type CreateTransactionInput struct {
	Metadata   map[string]any
	From       *domain.HolderRef
	To         *domain.HolderRef
	Commission *CommissionInput
	Processor  string
	Currency   string
	Status     domain.TransactionStatus
	LockKey    string
	Amount     decimal.Decimal
	Overcharge bool
	Invisible  bool
	NoLock     bool
}

// TransactionUseCase serves transaction reads and the input-driven form of
// the ledger mutations.
type TransactionUseCase struct {
	ledger *Ledger
	txRepo TransactionRepository
}

// NewTransactionUseCase creates a new TransactionUseCase.
func NewTransactionUseCase(ledger *Ledger, txRepo TransactionRepository) *TransactionUseCase {
	return &TransactionUseCase{ledger: ledger, txRepo: txRepo}
}

// Creator turns input into a Creator bound to the ledger.
func (uc *TransactionUseCase) Creator(input CreateTransactionInput) *Creator {
	c := uc.ledger.Transaction().Processor(input.Processor).Amount(input.Amount)

	if input.Currency != "" {
		c.Currency(input.Currency)
	}
	if input.From != nil {
		c.From(*input.From)
	}
	if input.To != nil {
		c.To(*input.To)
	}
	if input.Commission != nil {
		c.Commission(input.Commission.Value, CommissionOptions{
			Strategy: input.Commission.Strategy,
			Minimum:  input.Commission.Minimum,
			Fixed:    input.Commission.Fixed,
		})
	}
	if input.Status != "" {
		c.Status(input.Status)
	}
	if input.Metadata != nil {
		c.Meta(input.Metadata)
	}

	switch {
	case input.NoLock:
		c.NoLock()
	case input.LockKey != "":
		c.Lock(input.LockKey)
	}

	return c.Overcharge(input.Overcharge).Invisible(input.Invisible)
}

// Create commits a single transaction.
func (uc *TransactionUseCase) Create(ctx context.Context, input CreateTransactionInput) (*domain.Transaction, error) {
	return uc.Creator(input).Commit(ctx)
}

// CreateBatch commits every input as one batch.
func (uc *TransactionUseCase) CreateBatch(ctx context.Context, inputs []CreateTransactionInput) ([]*domain.Transaction, error) {
	creators := make([]*Creator, len(inputs))
	for i, input := range inputs {
		creators[i] = uc.Creator(input)
	}

	return uc.ledger.CommitBatch(ctx, creators...)
}

// UpdateStatus changes the status of a transaction and merges meta into its
// metadata.
func (uc *TransactionUseCase) UpdateStatus(
	ctx context.Context,
	id string,
	status domain.TransactionStatus,
	meta map[string]any,
) (*domain.Transaction, error) {
	return uc.ledger.UpdateStatus(ctx, id, status, meta)
}

// Delete removes a transaction and recalculates the balances it touched.
func (uc *TransactionUseCase) Delete(ctx context.Context, id string) error {
	return uc.ledger.Delete(ctx, id)
}

// Get retrieves a transaction by ID.
func (uc *TransactionUseCase) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	return uc.txRepo.GetByID(ctx, id)
}

// ListByHolder lists transactions touching a holder, newest first.
func (uc *TransactionUseCase) ListByHolder(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	if err := domain.ValidateHolder(filter.Holder); err != nil {
		return nil, err
	}

	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)

	return uc.txRepo.ListByHolder(ctx, filter)
}
