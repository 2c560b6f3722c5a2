package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/txledger/internal/domain"
)

// ReconciliationUseCase compares stored balances with their history.
type ReconciliationUseCase struct {
	txManager    TransactionManager
	balanceRepo  BalanceRepository
	recalculator *Recalculator
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	txManager TransactionManager,
	balanceRepo BalanceRepository,
	recalculator *Recalculator,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		txManager:    txManager,
		balanceRepo:  balanceRepo,
		recalculator: recalculator,
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	Key               domain.BalanceKey
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileBalance recomputes one balance from history without saving it.
func (uc *ReconciliationUseCase) ReconcileBalance(ctx context.Context, key domain.BalanceKey) (*ReconciliationResult, error) {
	balance, err := uc.balanceRepo.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	expected, err := uc.recalculator.Expected(txCtx, tx, key)
	if err != nil {
		return nil, err
	}

	diff := balance.Value.Sub(expected)

	return &ReconciliationResult{
		Key:               key,
		RecordedBalance:   balance.Value,
		CalculatedBalance: expected,
		Difference:        diff,
		IsReconciled:      diff.IsZero(),
		LastChecked:       time.Now().UTC(),
	}, nil
}

// ReconcileAllBalances reconciles every stored balance.
func (uc *ReconciliationUseCase) ReconcileAllBalances(ctx context.Context) ([]*ReconciliationResult, error) {
	const pageSize = 1000

	var results []*ReconciliationResult
	for offset := 0; ; offset += pageSize {
		balances, err := uc.balanceRepo.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, balance := range balances {
			result, err := uc.ReconcileBalance(ctx, balance.Key())
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile balance %s: %w", balance.Key(), err)
			}
			results = append(results, result)
		}

		if len(balances) < pageSize {
			break
		}
	}

	return results, nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalBalances      int
	ReconciledBalances int
	Discrepancies      []*ReconciliationResult
	CheckedAt          time.Time
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllBalances(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalBalances: len(results),
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     time.Now().UTC(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledBalances++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	return report, nil
}
