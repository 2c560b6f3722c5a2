package dto

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/usecase"
)

// CommissionRequest describes a commission rule. Amounts are decimal strings.
type CommissionRequest struct {
	Value    string `json:"value"`
	Strategy string `json:"strategy,omitempty"`
	Minimum  string `json:"minimum,omitempty"`
	Fixed    string `json:"fixed,omitempty"`
}

// CreateTransactionRequest represents a request to create a transaction.
// Holders are written as "type:id".
type CreateTransactionRequest struct {
	Metadata   map[string]any     `json:"metadata,omitempty"`
	Commission *CommissionRequest `json:"commission,omitempty"`
	Processor  string             `json:"processor"`
	Amount     string             `json:"amount"`
	Currency   string             `json:"currency,omitempty"`
	From       string             `json:"from,omitempty"`
	To         string             `json:"to,omitempty"`
	Status     string             `json:"status,omitempty"`
	LockKey    string             `json:"lock_key,omitempty"`
	Overcharge bool               `json:"overcharge,omitempty"`
	Invisible  bool               `json:"invisible,omitempty"`
	NoLock     bool               `json:"no_lock,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransactionRequest) ToUseCaseInput() (usecase.CreateTransactionInput, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return usecase.CreateTransactionInput{}, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, r.Amount)
	}

	input := usecase.CreateTransactionInput{
		Metadata:   r.Metadata,
		Processor:  r.Processor,
		Currency:   r.Currency,
		Status:     domain.TransactionStatus(r.Status),
		LockKey:    r.LockKey,
		Amount:     amount,
		Overcharge: r.Overcharge,
		Invisible:  r.Invisible,
		NoLock:     r.NoLock,
	}

	if input.From, err = parseHolder(r.From); err != nil {
		return usecase.CreateTransactionInput{}, err
	}
	if input.To, err = parseHolder(r.To); err != nil {
		return usecase.CreateTransactionInput{}, err
	}

	if r.Commission != nil {
		if input.Commission, err = r.Commission.toInput(); err != nil {
			return usecase.CreateTransactionInput{}, err
		}
	}

	return input, nil
}

func (r *CommissionRequest) toInput() (*usecase.CommissionInput, error) {
	strategy, err := domain.ParseCommissionStrategy(r.Strategy)
	if err != nil {
		return nil, err
	}

	in := &usecase.CommissionInput{Strategy: strategy}
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{r.Value, &in.Value},
		{r.Minimum, &in.Minimum},
		{r.Fixed, &in.Fixed},
	} {
		if f.raw == "" {
			continue
		}
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCommission, f.raw)
		}
	}

	return in, nil
}

func parseHolder(s string) (*domain.HolderRef, error) {
	if s == "" {
		return nil, nil
	}

	ref, err := domain.ParseHolderRef(s)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// CreateBatchRequest represents legs committed as one batch.
type CreateBatchRequest struct {
	Legs []CreateTransactionRequest `json:"legs"`
}

// ToUseCaseInput converts every leg, reporting the index of the first bad one.
func (r *CreateBatchRequest) ToUseCaseInput() ([]usecase.CreateTransactionInput, error) {
	inputs := make([]usecase.CreateTransactionInput, len(r.Legs))
	for i := range r.Legs {
		in, err := r.Legs[i].ToUseCaseInput()
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		inputs[i] = in
	}

	return inputs, nil
}

// UpdateStatusRequest changes the status of a transaction.
type UpdateStatusRequest struct {
	Metadata map[string]any `json:"metadata,omitempty"`
	Status   string         `json:"status"`
}

// ToStatus parses the requested status.
func (r *UpdateStatusRequest) ToStatus() (domain.TransactionStatus, error) {
	return domain.ParseStatus(r.Status)
}
