package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

// Create stores a new transaction.
func (r *TransactionRepository) Create(_ context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	mtx, err := asTx(r.store, tx)
	if err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[t.ID]; exists {
		return fmt.Errorf("memory: transaction %s already exists", t.ID)
	}

	s.writes++
	s.transactions[t.ID] = t.Clone()
	s.txSeq[t.ID] = s.writes
	mtx.record(func() {
		delete(s.transactions, t.ID)
		delete(s.txSeq, t.ID)
	})

	return nil
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	t, ok := r.store.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}

	return t.Clone(), nil
}

// GetByIDForUpdate retrieves a transaction inside tx.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	if _, err := asTx(r.store, tx); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// Update persists status, metadata and updated_at.
func (r *TransactionRepository) Update(_ context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	mtx, err := asTx(r.store, tx)
	if err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactions[t.ID]
	if !ok {
		return domain.ErrTransactionNotFound
	}

	previous := stored.Clone()
	updated := stored.Clone()
	patch := t.Clone()
	updated.Status = patch.Status
	updated.Metadata = patch.Metadata
	updated.UpdatedAt = patch.UpdatedAt
	s.transactions[t.ID] = updated

	mtx.record(func() { s.transactions[t.ID] = previous })

	return nil
}

// Delete removes a transaction.
func (r *TransactionRepository) Delete(_ context.Context, tx usecase.Transaction, id string) error {
	mtx, err := asTx(r.store, tx)
	if err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactions[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}

	seq := s.txSeq[id]
	delete(s.transactions, id)
	delete(s.txSeq, id)
	mtx.record(func() {
		s.transactions[id] = stored
		s.txSeq[id] = seq
	})

	return nil
}

// ListByHolder lists transactions touching a holder, newest first.
func (r *TransactionRepository) ListByHolder(_ context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Transaction
	for _, t := range s.transactions {
		if t.Invisible && !filter.IncludeInvisible {
			continue
		}
		if filter.Currency != "" && t.Currency != filter.Currency {
			continue
		}
		if !touchesHolder(t, filter.Holder) {
			continue
		}
		matched = append(matched, t)
	}

	sort.Slice(matched, func(i, j int) bool {
		return s.txSeq[matched[i].ID] > s.txSeq[matched[j].ID]
	})

	if filter.Offset >= len(matched) {
		return []*domain.Transaction{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	out := make([]*domain.Transaction, 0, len(matched))
	for _, t := range matched {
		out = append(out, t.Clone())
	}

	return out, nil
}

type totalKey struct {
	processor string
	side      domain.Side
	status    domain.TransactionStatus
}

// Totals aggregates the transactions touching key.
func (r *TransactionRepository) Totals(
	_ context.Context,
	tx usecase.Transaction,
	key domain.BalanceKey,
	excludeInvisible bool,
) ([]domain.LegTotal, error) {
	if _, err := asTx(r.store, tx); err != nil {
		return nil, err
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[totalKey]*domain.LegTotal)
	add := func(t *domain.Transaction, side domain.Side) {
		k := totalKey{processor: t.Processor, side: side, status: t.Status}
		total, ok := sums[k]
		if !ok {
			total = &domain.LegTotal{Processor: t.Processor, Side: side, Status: t.Status}
			sums[k] = total
		}
		total.Amount = total.Amount.Add(t.Amount)
		total.Commission = total.Commission.Add(t.Commission)
	}

	for _, t := range s.transactions {
		if t.Currency != key.Currency || (excludeInvisible && t.Invisible) {
			continue
		}
		if t.From != nil && *t.From == key.Holder {
			add(t, domain.SideDebit)
		}
		if t.To != nil && *t.To == key.Holder {
			add(t, domain.SideCredit)
		}
	}

	out := make([]domain.LegTotal, 0, len(sums))
	for _, total := range sums {
		out = append(out, *total)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Processor != b.Processor {
			return a.Processor < b.Processor
		}
		if a.Side != b.Side {
			return a.Side < b.Side
		}
		return a.Status < b.Status
	})

	return out, nil
}

func touchesHolder(t *domain.Transaction, holder domain.HolderRef) bool {
	return (t.From != nil && *t.From == holder) || (t.To != nil && *t.To == holder)
}
