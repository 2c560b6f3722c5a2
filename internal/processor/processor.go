// Package processor defines transaction semantics: how a transaction moves
// the balances on each side, which status it starts in and which lifecycle
// hooks run around it.
package processor

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/txledger/internal/domain"
)

// SignConvention decides which side of a transaction pays the commission.
// The from side loses the amount, the to side gains it.
type SignConvention struct {
	DebitCommission  bool
	CreditCommission bool
}

// Effect returns the signed change a transaction applies to one side.
func (c SignConvention) Effect(side domain.Side, amount, commission decimal.Decimal) decimal.Decimal {
	if side == domain.SideDebit {
		total := amount
		if c.DebitCommission {
			total = total.Add(commission)
		}
		return total.Neg()
	}

	total := amount
	if c.CreditCommission {
		total = total.Sub(commission)
	}
	return total
}

// Required is the amount the from side must hold for the transaction.
func (c SignConvention) Required(amount, commission decimal.Decimal) decimal.Decimal {
	return c.Effect(domain.SideDebit, amount, commission).Neg()
}

// Processor is a stateless transaction policy.
type Processor interface {
	Convention() SignConvention
}

// InitialSuccess marks processors whose transactions start as success.
type InitialSuccess interface {
	InitialSuccess()
}

// InitialHolding marks processors whose transactions start on hold.
type InitialHolding interface {
	InitialHolding()
}

// CreatingHook runs inside the commit before the transaction is written.
type CreatingHook interface {
	Creating(ctx context.Context, tx *domain.Transaction) error
}

// UpdatingHook runs before a status or metadata change is written.
type UpdatingHook interface {
	Updating(ctx context.Context, tx *domain.Transaction, previous domain.TransactionStatus) error
}

// DeletingHook runs before a transaction is deleted.
type DeletingHook interface {
	Deleting(ctx context.Context, tx *domain.Transaction) error
}

// BatchValidator checks every leg of a batch before anything is written.
// An error rejects the whole batch.
type BatchValidator interface {
	ValidateBatch(legs []*domain.Transaction) error
}

// InitialStatus picks the creation status from the processor capabilities.
// Holding wins over success.
func InitialStatus(p Processor) domain.TransactionStatus {
	if _, ok := p.(InitialHolding); ok {
		return domain.StatusOnHold
	}
	if _, ok := p.(InitialSuccess); ok {
		return domain.StatusSuccess
	}

	return domain.StatusPending
}
