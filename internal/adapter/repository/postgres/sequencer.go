package postgres

import (
	"context"

	"github.com/iho/txledger/internal/infrastructure/postgres/generated"
)

// Sequencer issues batch ids from the transaction_batch_seq sequence.
type Sequencer struct {
	queries *generated.Queries
}

// NewSequencer creates a new Sequencer.
func NewSequencer(db generated.DBTX) *Sequencer {
	return &Sequencer{queries: generated.New(db)}
}

// Next returns the next batch id. Sequence values are never rolled back,
// so ids stay unique across aborted commits.
func (s *Sequencer) Next(ctx context.Context) (int64, error) {
	return s.queries.NextBatchID(ctx)
}
