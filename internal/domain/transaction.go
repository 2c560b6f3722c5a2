package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single ledger movement. Once persisted only Status and
// Metadata change.
type Transaction struct {
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Metadata   map[string]any
	BatchID    *int64
	From       *HolderRef
	To         *HolderRef
	ID         string
	Processor  string
	Currency   string
	Status     TransactionStatus
	Amount     decimal.Decimal
	Commission decimal.Decimal
	Invisible  bool
}

// Validate checks the fields every stored transaction must carry.
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Commission.IsNegative() {
		return ErrInvalidCommission
	}
	if t.From == nil && t.To == nil {
		return ErrMissingCounterparty
	}
	if t.From != nil && t.To != nil && *t.From == *t.To {
		return ErrSameCounterparty
	}
	if !t.Status.IsValid() {
		return ErrInvalidStatus
	}

	return nil
}

// Touches reports whether the transaction moves the balance identified by key.
func (t *Transaction) Touches(key BalanceKey) bool {
	if t.Currency != key.Currency {
		return false
	}

	return (t.From != nil && *t.From == key.Holder) || (t.To != nil && *t.To == key.Holder)
}

// BalanceKeys returns the balances moved by the transaction, from first.
func (t *Transaction) BalanceKeys() []BalanceKey {
	keys := make([]BalanceKey, 0, 2)
	if t.From != nil {
		keys = append(keys, BalanceKey{Holder: *t.From, Currency: t.Currency})
	}
	if t.To != nil {
		keys = append(keys, BalanceKey{Holder: *t.To, Currency: t.Currency})
	}

	return keys
}

// Clone returns a deep copy safe to hand to hooks and subscribers.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.BatchID != nil {
		id := *t.BatchID
		c.BatchID = &id
	}
	if t.From != nil {
		from := *t.From
		c.From = &from
	}
	if t.To != nil {
		to := *t.To
		c.To = &to
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}

	return &c
}

// Side is the position of a holder in a transaction.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// LegTotal is an aggregate of transactions for one balance, grouped by
// processor, side and status.
type LegTotal struct {
	Processor  string
	Side       Side
	Status     TransactionStatus
	Amount     decimal.Decimal
	Commission decimal.Decimal
}

// TransactionFilter selects transactions touching one holder.
type TransactionFilter struct {
	Holder           HolderRef
	Currency         string
	Limit            int
	Offset           int
	IncludeInvisible bool
}
