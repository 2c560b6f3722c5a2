package generated

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Balance struct {
	ID             string             `json:"id"`
	HolderType     string             `json:"holder_type"`
	HolderID       string             `json:"holder_id"`
	Currency       string             `json:"currency"`
	Value          pgtype.Numeric     `json:"value"`
	Pending        pgtype.Numeric     `json:"pending"`
	OnHold         pgtype.Numeric     `json:"on_hold"`
	Version        int64              `json:"version"`
	RecalculatedAt pgtype.Timestamptz `json:"recalculated_at"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}

type BalanceState struct {
	ID           string             `json:"id"`
	BalanceID    string             `json:"balance_id"`
	ValueBefore  pgtype.Numeric     `json:"value_before"`
	ValueAfter   pgtype.Numeric     `json:"value_after"`
	PendingAfter pgtype.Numeric     `json:"pending_after"`
	OnHoldAfter  pgtype.Numeric     `json:"on_hold_after"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

type OutboxEvent struct {
	ID            string             `json:"id"`
	AggregateID   string             `json:"aggregate_id"`
	AggregateType string             `json:"aggregate_type"`
	EventType     string             `json:"event_type"`
	Payload       []byte             `json:"payload"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	Published     bool               `json:"published"`
	PublishedAt   pgtype.Timestamptz `json:"published_at"`
}

type Transaction struct {
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
