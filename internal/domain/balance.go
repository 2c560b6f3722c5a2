package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceKey identifies one holder's position in one currency.
type BalanceKey struct {
	Holder   HolderRef
	Currency string
}

// LockKey is the coordinator key serializing writers of this balance.
func (k BalanceKey) LockKey() string {
	return "balance:" + k.Holder.Type + ":" + k.Holder.ID + ":" + k.Currency
}

func (k BalanceKey) String() string {
	return k.LockKey()
}

// Balance is the derived position of a holder in one currency. It is only
// written by the recalculator.
type Balance struct {
	CreatedAt      time.Time
	UpdatedAt      time.Time
	RecalculatedAt *time.Time
	Pending        *decimal.Decimal
	OnHold         *decimal.Decimal
	ID             string
	Holder         HolderRef
	Currency       string
	Value          decimal.Decimal
	Version        int64
}

// Key returns the balance key.
func (b *Balance) Key() BalanceKey {
	return BalanceKey{Holder: b.Holder, Currency: b.Currency}
}

// BalanceState is an append-only snapshot taken on each recalculation.
type BalanceState struct {
	CreatedAt    time.Time
	PendingAfter *decimal.Decimal
	OnHoldAfter  *decimal.Decimal
	ID           string
	BalanceID    string
	ValueBefore  decimal.Decimal
	ValueAfter   decimal.Decimal
}
