package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/usecase"
)

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	BatchID    *int64         `json:"batch_id,omitempty"`
	From       string         `json:"from,omitempty"`
	To         string         `json:"to,omitempty"`
	ID         string         `json:"id"`
	Processor  string         `json:"processor"`
	Currency   string         `json:"currency"`
	Status     string         `json:"status"`
	Amount     string         `json:"amount"`
	Commission string         `json:"commission"`
	Invisible  bool           `json:"invisible,omitempty"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	resp := &TransactionResponse{
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
		Metadata:   t.Metadata,
		BatchID:    t.BatchID,
		ID:         t.ID,
		Processor:  t.Processor,
		Currency:   t.Currency,
		Status:     string(t.Status),
		Amount:     t.Amount.String(),
		Commission: t.Commission.String(),
		Invisible:  t.Invisible,
	}
	if t.From != nil {
		resp.From = t.From.String()
	}
	if t.To != nil {
		resp.To = t.To.String()
	}

	return resp
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txs []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txs))
	for i, t := range txs {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// BalanceResponse represents a balance in API responses. Pending and
// on_hold are omitted unless extra values are enabled.
type BalanceResponse struct {
	UpdatedAt      time.Time  `json:"updated_at"`
	RecalculatedAt *time.Time `json:"recalculated_at,omitempty"`
	Pending        *string    `json:"pending,omitempty"`
	OnHold         *string    `json:"on_hold,omitempty"`
	ID             string     `json:"id,omitempty"`
	Holder         string     `json:"holder"`
	Currency       string     `json:"currency"`
	Value          string     `json:"value"`
	Version        int64      `json:"version"`
}

// BalanceFromDomain converts a domain balance to a response.
func BalanceFromDomain(b *domain.Balance) *BalanceResponse {
	return &BalanceResponse{
		UpdatedAt:      b.UpdatedAt,
		RecalculatedAt: b.RecalculatedAt,
		Pending:        decimalString(b.Pending),
		OnHold:         decimalString(b.OnHold),
		ID:             b.ID,
		Holder:         b.Holder.String(),
		Currency:       b.Currency,
		Value:          b.Value.String(),
		Version:        b.Version,
	}
}

// BalancesFromDomain converts domain balances to responses.
func BalancesFromDomain(balances []*domain.Balance) []*BalanceResponse {
	result := make([]*BalanceResponse, len(balances))
	for i, b := range balances {
		result[i] = BalanceFromDomain(b)
	}
	return result
}

// BalanceStateResponse represents one recalculation snapshot.
type BalanceStateResponse struct {
	CreatedAt    time.Time `json:"created_at"`
	PendingAfter *string   `json:"pending_after,omitempty"`
	OnHoldAfter  *string   `json:"on_hold_after,omitempty"`
	ID           string    `json:"id"`
	ValueBefore  string    `json:"value_before"`
	ValueAfter   string    `json:"value_after"`
}

// BalanceStatesFromDomain converts balance states to responses.
func BalanceStatesFromDomain(states []*domain.BalanceState) []*BalanceStateResponse {
	result := make([]*BalanceStateResponse, len(states))
	for i, s := range states {
		result[i] = &BalanceStateResponse{
			CreatedAt:    s.CreatedAt,
			PendingAfter: decimalString(s.PendingAfter),
			OnHoldAfter:  decimalString(s.OnHoldAfter),
			ID:           s.ID,
			ValueBefore:  s.ValueBefore.String(),
			ValueAfter:   s.ValueAfter.String(),
		}
	}
	return result
}

// DiscrepancyResponse is a balance whose stored value drifted from history.
type DiscrepancyResponse struct {
	Holder     string `json:"holder"`
	Currency   string `json:"currency"`
	Recorded   string `json:"recorded"`
	Calculated string `json:"calculated"`
	Difference string `json:"difference"`
}

// ReconciliationReportResponse summarizes a reconciliation run.
type ReconciliationReportResponse struct {
	CheckedAt          time.Time              `json:"checked_at"`
	Discrepancies      []*DiscrepancyResponse `json:"discrepancies"`
	TotalBalances      int                    `json:"total_balances"`
	ReconciledBalances int                    `json:"reconciled_balances"`
}

// ReconciliationReportFromUseCase converts a report to a response.
func ReconciliationReportFromUseCase(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	resp := &ReconciliationReportResponse{
		CheckedAt:          r.CheckedAt,
		Discrepancies:      make([]*DiscrepancyResponse, len(r.Discrepancies)),
		TotalBalances:      r.TotalBalances,
		ReconciledBalances: r.ReconciledBalances,
	}
	for i, d := range r.Discrepancies {
		resp.Discrepancies[i] = &DiscrepancyResponse{
			Holder:     d.Key.Holder.String(),
			Currency:   d.Key.Currency,
			Recorded:   d.RecordedBalance.String(),
			Calculated: d.CalculatedBalance.String(),
			Difference: d.Difference.String(),
		}
	}

	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
