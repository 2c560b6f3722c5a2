package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/infrastructure/postgres/generated"
	"github.com/iho/txledger/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	queries *generated.Queries
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db generated.DBTX) *TransactionRepository {
	return &TransactionRepository{queries: generated.New(db)}
}

// Create inserts a transaction within tx.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	q, err := txQueries(tx)
	if err != nil {
		return err
	}

	metadata, err := marshalMetadata(t.Metadata)
	if err != nil {
		return err
	}

	var batchID pgtype.Int8
	if t.BatchID != nil {
		batchID = pgtype.Int8{Int64: *t.BatchID, Valid: true}
	}

	params := generated.CreateTransactionParams{
		ID:         t.ID,
		BatchID:    batchID,
		Processor:  t.Processor,
		Currency:   t.Currency,
		Status:     string(t.Status),
		Amount:     decimalToNumeric(t.Amount),
		Commission: decimalToNumeric(t.Commission),
		Invisible:  t.Invisible,
		Metadata:   metadata,
		CreatedAt:  timeToPgTimestamptz(t.CreatedAt),
		UpdatedAt:  timeToPgTimestamptz(t.UpdatedAt),
	}
	if t.From != nil {
		params.FromType = textOf(t.From.Type)
		params.FromID = textOf(t.From.ID)
	}
	if t.To != nil {
		params.ToType = textOf(t.To.Type)
		params.ToID = textOf(t.To.ID)
	}

	return q.CreateTransaction(ctx, params)
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row, err := r.queries.GetTransactionByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, err
	}

	return rowToTransaction(row)
}

// GetByIDForUpdate retrieves a transaction and locks its row until tx ends.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	q, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	row, err := q.GetTransactionByIDForUpdate(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, err
	}

	return rowToTransaction(row)
}

// Update persists status, metadata and updated_at.
func (r *TransactionRepository) Update(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	q, err := txQueries(tx)
	if err != nil {
		return err
	}

	metadata, err := marshalMetadata(t.Metadata)
	if err != nil {
		return err
	}

	n, err := q.UpdateTransaction(ctx, generated.UpdateTransactionParams{
		ID:        t.ID,
		Status:    string(t.Status),
		Metadata:  metadata,
		UpdatedAt: timeToPgTimestamptz(t.UpdatedAt),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// Delete removes a transaction.
func (r *TransactionRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	q, err := txQueries(tx)
	if err != nil {
		return err
	}

	n, err := q.DeleteTransaction(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// ListByHolder lists transactions touching a holder, newest first.
func (r *TransactionRepository) ListByHolder(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	rows, err := r.queries.ListTransactionsByHolder(ctx, generated.ListTransactionsByHolderParams{
		HolderType:       textOf(filter.Holder.Type),
		HolderID:         textOf(filter.Holder.ID),
		Currency:         textOf(filter.Currency),
		IncludeInvisible: filter.IncludeInvisible,
		RowLimit:         int32(filter.Limit),
		RowOffset:        int32(filter.Offset),
	})
	if err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := rowToTransaction(row)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}

	return txs, nil
}

// Totals aggregates the transactions touching key inside tx, so rows written
// earlier in the same commit are included.
func (r *TransactionRepository) Totals(
	ctx context.Context,
	tx usecase.Transaction,
	key domain.BalanceKey,
	excludeInvisible bool,
) ([]domain.LegTotal, error) {
	q, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.TransactionTotals(ctx, generated.TransactionTotalsParams{
		HolderType:       textOf(key.Holder.Type),
		HolderID:         textOf(key.Holder.ID),
		Currency:         key.Currency,
		ExcludeInvisible: excludeInvisible,
	})
	if err != nil {
		return nil, err
	}

	totals := make([]domain.LegTotal, 0, len(rows))
	for _, row := range rows {
		totals = append(totals, domain.LegTotal{
			Processor:  row.Processor,
			Side:       domain.Side(row.Side),
			Status:     domain.TransactionStatus(row.Status),
			Amount:     numericToDecimal(row.Amount),
			Commission: numericToDecimal(row.Commission),
		})
	}

	return totals, nil
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	return data, nil
}

func holderFromColumns(typ, id pgtype.Text) *domain.HolderRef {
	if !typ.Valid || !id.Valid {
		return nil
	}

	return &domain.HolderRef{ID: id.String, Type: typ.String}
}

func rowToTransaction(row generated.Transaction) (*domain.Transaction, error) {
	var metadata map[string]any
	if row.Metadata != nil {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", row.ID, err)
		}
	}

	var batchID *int64
	if row.BatchID.Valid {
		id := row.BatchID.Int64
		batchID = &id
	}

	return &domain.Transaction{
		ID:         row.ID,
		BatchID:    batchID,
		Processor:  row.Processor,
		Currency:   row.Currency,
		Status:     domain.TransactionStatus(row.Status),
		Amount:     numericToDecimal(row.Amount),
		Commission: numericToDecimal(row.Commission),
		From:       holderFromColumns(row.FromType, row.FromID),
		To:         holderFromColumns(row.ToType, row.ToID),
		Invisible:  row.Invisible,
		Metadata:   metadata,
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}, nil
}
