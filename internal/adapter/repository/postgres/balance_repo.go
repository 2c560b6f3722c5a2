package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/infrastructure/postgres/generated"
	"github.com/iho/txledger/internal/usecase"
)

// ErrBalanceVersionConflict is returned when a balance row changed between
// read and write. Writers hold the row lock, so it signals a bug.
var ErrBalanceVersionConflict = errors.New("balance version conflict")

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	queries *generated.Queries
	idGen   usecase.IDGenerator
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db generated.DBTX, idGen usecase.IDGenerator) *BalanceRepository {
	return &BalanceRepository{
		queries: generated.New(db),
		idGen:   idGen,
	}
}

// GetOrCreateForUpdate inserts a zero balance on first reference and then
// takes the row lock with SELECT ... FOR UPDATE.
func (r *BalanceRepository) GetOrCreateForUpdate(ctx context.Context, tx usecase.Transaction, key domain.BalanceKey) (*domain.Balance, error) {
	q, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	err = q.EnsureBalance(ctx, generated.EnsureBalanceParams{
		ID:         r.idGen.Generate(),
		HolderType: key.Holder.Type,
		HolderID:   key.Holder.ID,
		Currency:   key.Currency,
		CreatedAt:  timeToPgTimestamptz(time.Now().UTC()),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure balance %s: %w", key, err)
	}

	row, err := q.GetBalanceForUpdate(ctx, generated.GetBalanceForUpdateParams{
		HolderType: key.Holder.Type,
		HolderID:   key.Holder.ID,
		Currency:   key.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("lock balance %s: %w", key, err)
	}

	return rowToBalance(row), nil
}

// Get retrieves a balance without locking it.
func (r *BalanceRepository) Get(ctx context.Context, key domain.BalanceKey) (*domain.Balance, error) {
	row, err := r.queries.GetBalance(ctx, generated.GetBalanceParams{
		HolderType: key.Holder.Type,
		HolderID:   key.Holder.ID,
		Currency:   key.Currency,
	})
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrBalanceNotFound
		}

		return nil, err
	}

	return rowToBalance(row), nil
}

// Save writes the derived figures and bumps the version.
func (r *BalanceRepository) Save(ctx context.Context, tx usecase.Transaction, balance *domain.Balance) error {
	q, err := txQueries(tx)
	if err != nil {
		return err
	}

	version, err := q.UpdateBalance(ctx, generated.UpdateBalanceParams{
		ID:             balance.ID,
		Value:          decimalToNumeric(balance.Value),
		Pending:        decimalPtrToNumeric(balance.Pending),
		OnHold:         decimalPtrToNumeric(balance.OnHold),
		RecalculatedAt: timePtrToPgTimestamptz(balance.RecalculatedAt),
		UpdatedAt:      timeToPgTimestamptz(balance.UpdatedAt),
		Version:        balance.Version,
	})
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("%w: %s at version %d", ErrBalanceVersionConflict, balance.Key(), balance.Version)
		}

		return err
	}

	balance.Version = version
	return nil
}

// List retrieves balances ordered by holder and currency.
func (r *BalanceRepository) List(ctx context.Context, limit, offset int) ([]*domain.Balance, error) {
	rows, err := r.queries.ListBalances(ctx, generated.ListBalancesParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	balances := make([]*domain.Balance, 0, len(rows))
	for _, row := range rows {
		balances = append(balances, rowToBalance(row))
	}

	return balances, nil
}

func rowToBalance(row generated.Balance) *domain.Balance {
	return &domain.Balance{
		ID:             row.ID,
		Holder:         domain.HolderRef{ID: row.HolderID, Type: row.HolderType},
		Currency:       row.Currency,
		Value:          numericToDecimal(row.Value),
		Pending:        numericToDecimalPtr(row.Pending),
		OnHold:         numericToDecimalPtr(row.OnHold),
		Version:        row.Version,
		RecalculatedAt: pgTimestamptzToTimePtr(row.RecalculatedAt),
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}

// BalanceStateRepository implements usecase.BalanceStateRepository.
type BalanceStateRepository struct {
	queries *generated.Queries
}

// NewBalanceStateRepository creates a new BalanceStateRepository.
func NewBalanceStateRepository(db generated.DBTX) *BalanceStateRepository {
	return &BalanceStateRepository{queries: generated.New(db)}
}

// Create appends a snapshot within tx.
func (r *BalanceStateRepository) Create(ctx context.Context, tx usecase.Transaction, state *domain.BalanceState) error {
	q, err := txQueries(tx)
	if err != nil {
		return err
	}

	return q.CreateBalanceState(ctx, generated.CreateBalanceStateParams{
		ID:           state.ID,
		BalanceID:    state.BalanceID,
		ValueBefore:  decimalToNumeric(state.ValueBefore),
		ValueAfter:   decimalToNumeric(state.ValueAfter),
		PendingAfter: decimalPtrToNumeric(state.PendingAfter),
		OnHoldAfter:  decimalPtrToNumeric(state.OnHoldAfter),
		CreatedAt:    timeToPgTimestamptz(state.CreatedAt),
	})
}

// ListByBalance lists snapshots of a balance, newest first.
func (r *BalanceStateRepository) ListByBalance(ctx context.Context, balanceID string, limit, offset int) ([]*domain.BalanceState, error) {
	rows, err := r.queries.ListBalanceStates(ctx, generated.ListBalanceStatesParams{
		BalanceID: balanceID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		return nil, err
	}

	states := make([]*domain.BalanceState, 0, len(rows))
	for _, row := range rows {
		states = append(states, &domain.BalanceState{
			ID:           row.ID,
			BalanceID:    row.BalanceID,
			ValueBefore:  numericToDecimal(row.ValueBefore),
			ValueAfter:   numericToDecimal(row.ValueAfter),
			PendingAfter: numericToDecimalPtr(row.PendingAfter),
			OnHoldAfter:  numericToDecimalPtr(row.OnHoldAfter),
			CreatedAt:    row.CreatedAt.Time,
		})
	}

	return states, nil
}
