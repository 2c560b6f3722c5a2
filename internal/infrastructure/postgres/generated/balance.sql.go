package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createBalanceState = `-- name: CreateBalanceState :exec
INSERT INTO balance_states (id, balance_id, value_before, value_after, pending_after, on_hold_after, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type CreateBalanceStateParams struct {
	ID           string             `json:"id"`
	BalanceID    string             `json:"balance_id"`
	ValueBefore  pgtype.Numeric     `json:"value_before"`
	ValueAfter   pgtype.Numeric     `json:"value_after"`
	PendingAfter pgtype.Numeric     `json:"pending_after"`
	OnHoldAfter  pgtype.Numeric     `json:"on_hold_after"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateBalanceState(ctx context.Context, arg CreateBalanceStateParams) error {
	_, err := q.db.Exec(ctx, createBalanceState,
		arg.ID,
		arg.BalanceID,
		arg.ValueBefore,
		arg.ValueAfter,
		arg.PendingAfter,
		arg.OnHoldAfter,
		arg.CreatedAt,
	)
	return err
}

const ensureBalance = `-- name: EnsureBalance :exec
INSERT INTO balances (id, holder_type, holder_id, currency, value, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, 0, $5, $5)
ON CONFLICT (holder_type, holder_id, currency) DO NOTHING
`

type EnsureBalanceParams struct {
	ID         string             `json:"id"`
	HolderType string             `json:"holder_type"`
	HolderID   string             `json:"holder_id"`
	Currency   string             `json:"currency"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) EnsureBalance(ctx context.Context, arg EnsureBalanceParams) error {
	_, err := q.db.Exec(ctx, ensureBalance,
		arg.ID,
		arg.HolderType,
		arg.HolderID,
		arg.Currency,
		arg.CreatedAt,
	)
	return err
}

const getBalance = `-- name: GetBalance :one
SELECT id, holder_type, holder_id, currency, value, pending, on_hold, version, recalculated_at, created_at, updated_at
FROM balances
WHERE holder_type = $1 AND holder_id = $2 AND currency = $3
`

type GetBalanceParams struct {
	HolderType string `json:"holder_type"`
	HolderID   string `json:"holder_id"`
	Currency   string `json:"currency"`
}

func (q *Queries) GetBalance(ctx context.Context, arg GetBalanceParams) (Balance, error) {
	row := q.db.QueryRow(ctx, getBalance, arg.HolderType, arg.HolderID, arg.Currency)
	var i Balance
	err := row.Scan(
		&i.ID,
		&i.HolderType,
		&i.HolderID,
		&i.Currency,
		&i.Value,
		&i.Pending,
		&i.OnHold,
		&i.Version,
		&i.RecalculatedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getBalanceForUpdate = `-- name: GetBalanceForUpdate :one
SELECT id, holder_type, holder_id, currency, value, pending, on_hold, version, recalculated_at, created_at, updated_at
FROM balances
WHERE holder_type = $1 AND holder_id = $2 AND currency = $3
FOR UPDATE
`

type GetBalanceForUpdateParams struct {
	HolderType string `json:"holder_type"`
	HolderID   string `json:"holder_id"`
	Currency   string `json:"currency"`
}

func (q *Queries) GetBalanceForUpdate(ctx context.Context, arg GetBalanceForUpdateParams) (Balance, error) {
	row := q.db.QueryRow(ctx, getBalanceForUpdate, arg.HolderType, arg.HolderID, arg.Currency)
	var i Balance
	err := row.Scan(
		&i.ID,
		&i.HolderType,
		&i.HolderID,
		&i.Currency,
		&i.Value,
		&i.Pending,
		&i.OnHold,
		&i.Version,
		&i.RecalculatedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listBalanceStates = `-- name: ListBalanceStates :many
SELECT id, balance_id, value_before, value_after, pending_after, on_hold_after, created_at
FROM balance_states
WHERE balance_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`

type ListBalanceStatesParams struct {
	BalanceID string `json:"balance_id"`
	Limit     int32  `json:"limit"`
	Offset    int32  `json:"offset"`
}

func (q *Queries) ListBalanceStates(ctx context.Context, arg ListBalanceStatesParams) ([]BalanceState, error) {
	rows, err := q.db.Query(ctx, listBalanceStates, arg.BalanceID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BalanceState
	for rows.Next() {
		var i BalanceState
		if err := rows.Scan(
			&i.ID,
			&i.BalanceID,
			&i.ValueBefore,
			&i.ValueAfter,
			&i.PendingAfter,
			&i.OnHoldAfter,
			&i.CreatedAt,
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

const listBalances = `-- name: ListBalances :many
SELECT id, holder_type, holder_id, currency, value, pending, on_hold, version, recalculated_at, created_at, updated_at
FROM balances
ORDER BY holder_type, holder_id, currency
LIMIT $1 OFFSET $2
`

type ListBalancesParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListBalances(ctx context.Context, arg ListBalancesParams) ([]Balance, error) {
	rows, err := q.db.Query(ctx, listBalances, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Balance
	for rows.Next() {
		var i Balance
		if err := rows.Scan(
			&i.ID,
			&i.HolderType,
			&i.HolderID,
			&i.Currency,
			&i.Value,
			&i.Pending,
			&i.OnHold,
			&i.Version,
			&i.RecalculatedAt,
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

const updateBalance = `-- name: UpdateBalance :one
UPDATE balances
SET value = $2, pending = $3, on_hold = $4, recalculated_at = $5, updated_at = $6, version = version + 1
WHERE id = $1 AND version = $7
RETURNING version
`

type UpdateBalanceParams struct {
	ID             string             `json:"id"`
	Value          pgtype.Numeric     `json:"value"`
	Pending        pgtype.Numeric     `json:"pending"`
	OnHold         pgtype.Numeric     `json:"on_hold"`
	RecalculatedAt pgtype.Timestamptz `json:"recalculated_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
	Version        int64              `json:"version"`
}

func (q *Queries) UpdateBalance(ctx context.Context, arg UpdateBalanceParams) (int64, error) {
	row := q.db.QueryRow(ctx, updateBalance,
		arg.ID,
		arg.Value,
		arg.Pending,
		arg.OnHold,
		arg.RecalculatedAt,
		arg.UpdatedAt,
		arg.Version,
	)
	var version int64
	err := row.Scan(&version)
	return version, err
}
