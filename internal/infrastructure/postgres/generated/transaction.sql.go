package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createTransaction = `-- name: CreateTransaction :exec
INSERT INTO transactions (id, batch_id, processor, currency, status, amount, commission, from_type, from_id, to_type, to_id, invisible, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

type CreateTransactionParams struct {
	ID         string             `json:"id"`
	BatchID    pgtype.Int8        `json:"batch_id"`
	Processor  string             `json:"processor"`
	Currency   string             `json:"currency"`
	Status     string             `json:"status"`
	Amount     pgtype.Numeric     `json:"amount"`
	Commission pgtype.Numeric     `json:"commission"`
	FromType   pgtype.Text        `json:"from_type"`
	FromID     pgtype.Text        `json:"from_id"`
	ToType     pgtype.Text        `json:"to_type"`
	ToID       pgtype.Text        `json:"to_id"`
	Invisible  bool               `json:"invisible"`
	Metadata   []byte             `json:"metadata"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
	UpdatedAt  pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.Exec(ctx, createTransaction,
		arg.ID,
		arg.BatchID,
		arg.Processor,
		arg.Currency,
		arg.Status,
		arg.Amount,
		arg.Commission,
		arg.FromType,
		arg.FromID,
		arg.ToType,
		arg.ToID,
		arg.Invisible,
		arg.Metadata,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const deleteTransaction = `-- name: DeleteTransaction :execrows
DELETE FROM transactions WHERE id = $1
`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getTransactionByID = `-- name: GetTransactionByID :one
SELECT id, batch_id, processor, currency, status, amount, commission, from_type, from_id, to_type, to_id, invisible, metadata, created_at, updated_at
FROM transactions
WHERE id = $1
`

func (q *Queries) GetTransactionByID(ctx context.Context, id string) (Transaction, error) {
	row := q.db.QueryRow(ctx, getTransactionByID, id)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.BatchID,
		&i.Processor,
		&i.Currency,
		&i.Status,
		&i.Amount,
		&i.Commission,
		&i.FromType,
		&i.FromID,
		&i.ToType,
		&i.ToID,
		&i.Invisible,
		&i.Metadata,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTransactionByIDForUpdate = `-- name: GetTransactionByIDForUpdate :one
SELECT id, batch_id, processor, currency, status, amount, commission, from_type, from_id, to_type, to_id, invisible, metadata, created_at, updated_at
FROM transactions
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetTransactionByIDForUpdate(ctx context.Context, id string) (Transaction, error) {
	row := q.db.QueryRow(ctx, getTransactionByIDForUpdate, id)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.BatchID,
		&i.Processor,
		&i.Currency,
		&i.Status,
		&i.Amount,
		&i.Commission,
		&i.FromType,
		&i.FromID,
		&i.ToType,
		&i.ToID,
		&i.Invisible,
		&i.Metadata,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTransactionsByHolder = `-- name: ListTransactionsByHolder :many
SELECT id, batch_id, processor, currency, status, amount, commission, from_type, from_id, to_type, to_id, invisible, metadata, created_at, updated_at
FROM transactions
WHERE ((from_type = $1 AND from_id = $2) OR (to_type = $1 AND to_id = $2))
  AND ($3::text IS NULL OR currency = $3)
  AND ($4::bool OR NOT invisible)
ORDER BY created_at DESC, id DESC
LIMIT $5 OFFSET $6
`

type ListTransactionsByHolderParams struct {
	HolderType       pgtype.Text `json:"holder_type"`
	HolderID         pgtype.Text `json:"holder_id"`
	Currency         pgtype.Text `json:"currency"`
	IncludeInvisible bool        `json:"include_invisible"`
	RowLimit         int32       `json:"row_limit"`
	RowOffset        int32       `json:"row_offset"`
}

func (q *Queries) ListTransactionsByHolder(ctx context.Context, arg ListTransactionsByHolderParams) ([]Transaction, error) {
	rows, err := q.db.Query(ctx, listTransactionsByHolder,
		arg.HolderType,
		arg.HolderID,
		arg.Currency,
		arg.IncludeInvisible,
		arg.RowLimit,
		arg.RowOffset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.BatchID,
			&i.Processor,
			&i.Currency,
			&i.Status,
			&i.Amount,
			&i.Commission,
			&i.FromType,
			&i.FromID,
			&i.ToType,
			&i.ToID,
			&i.Invisible,
			&i.Metadata,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const nextBatchID = `-- name: NextBatchID :one
SELECT nextval('transaction_batch_seq')::bigint
`

func (q *Queries) NextBatchID(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, nextBatchID)
	var column_1 int64
	err := row.Scan(&column_1)
	return column_1, err
}

const transactionTotals = `-- name: TransactionTotals :many
SELECT processor, 'debit'::text AS side, status,
       SUM(amount)::numeric AS amount, SUM(commission)::numeric AS commission
FROM transactions
WHERE from_type = $1 AND from_id = $2 AND currency = $3
  AND NOT ($4::bool AND invisible)
GROUP BY processor, status
UNION ALL
SELECT processor, 'credit'::text AS side, status,
       SUM(amount)::numeric AS amount, SUM(commission)::numeric AS commission
FROM transactions
WHERE to_type = $1 AND to_id = $2 AND currency = $3
  AND NOT ($4::bool AND invisible)
GROUP BY processor, status
ORDER BY processor, side, status
`

type TransactionTotalsParams struct {
	HolderType       pgtype.Text `json:"holder_type"`
	HolderID         pgtype.Text `json:"holder_id"`
	Currency         string      `json:"currency"`
	ExcludeInvisible bool        `json:"exclude_invisible"`
}

type TransactionTotalsRow struct {
	Processor  string         `json:"processor"`
	Side       string         `json:"side"`
	Status     string         `json:"status"`
	Amount     pgtype.Numeric `json:"amount"`
	Commission pgtype.Numeric `json:"commission"`
}

func (q *Queries) TransactionTotals(ctx context.Context, arg TransactionTotalsParams) ([]TransactionTotalsRow, error) {
	rows, err := q.db.Query(ctx, transactionTotals,
		arg.HolderType,
		arg.HolderID,
		arg.Currency,
		arg.ExcludeInvisible,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionTotalsRow
	for rows.Next() {
		var i TransactionTotalsRow
		if err := rows.Scan(
			&i.Processor,
			&i.Side,
			&i.Status,
			&i.Amount,
			&i.Commission,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTransaction = `-- name: UpdateTransaction :execrows
UPDATE transactions
SET status = $2, metadata = $3, updated_at = $4
WHERE id = $1
`

type UpdateTransactionParams struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Metadata  []byte             `json:"metadata"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateTransaction,
		arg.ID,
		arg.Status,
		arg.Metadata,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
