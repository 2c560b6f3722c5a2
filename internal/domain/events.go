package domain

import "time"

// Event types
const (
	EventTypeTransactionCreated       = "transaction.created"
	EventTypeTransactionUpdated       = "transaction.updated"
	EventTypeTransactionStatusChanged = "transaction.status_changed"
	EventTypeTransactionDeleted       = "transaction.deleted"
)

// Aggregate types
const (
	AggregateTypeTransaction = "transaction"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransactionEvent is a lifecycle notification carrying a full snapshot.
type TransactionEvent struct {
	Type           string
	Transaction    *Transaction
	PreviousStatus TransactionStatus
	OccurredAt     time.Time
}

// Payload flattens the event for storage and publishing.
func (e TransactionEvent) Payload() map[string]any {
	tx := e.Transaction
	payload := map[string]any{
		"transaction_id": tx.ID,
		"processor":      tx.Processor,
		"currency":       tx.Currency,
		"status":         string(tx.Status),
		"amount":         tx.Amount.String(),
		"commission":     tx.Commission.String(),
		"invisible":      tx.Invisible,
		"created_at":     tx.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":     tx.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"event_at":       e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if tx.BatchID != nil {
		payload["batch_id"] = *tx.BatchID
	}
	if tx.From != nil {
		payload["from"] = tx.From.String()
	}
	if tx.To != nil {
		payload["to"] = tx.To.String()
	}
	if len(tx.Metadata) > 0 {
		payload["metadata"] = tx.Metadata
	}
	if e.PreviousStatus != "" {
		payload["previous_status"] = string(e.PreviousStatus)
	}

	return payload
}

// ToOutbox converts the event into an outbox row with the given id.
func (e TransactionEvent) ToOutbox(id string) *OutboxEvent {
	return &OutboxEvent{
		ID:            id,
		AggregateID:   e.Transaction.ID,
		AggregateType: AggregateTypeTransaction,
		EventType:     e.Type,
		Payload:       e.Payload(),
		CreatedAt:     e.OccurredAt,
	}
}
