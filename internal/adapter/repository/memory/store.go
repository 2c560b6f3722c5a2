// Package memory is an in-process store for the ledger. It keeps data in
// maps and undoes a transaction's writes on rollback. It takes no row locks:
// balance writers must be serialized by a usecase.Locker such as
// lock.KeyedMutex.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/usecase"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

// Store holds every ledger table in memory.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	txSeq        map[string]int64
	balances     map[domain.BalanceKey]*domain.Balance
	states       []*domain.BalanceState
	outbox       []*domain.OutboxEvent
	writes       int64
	batchSeq     atomic.Int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]*domain.Transaction),
		txSeq:        make(map[string]int64),
		balances:     make(map[domain.BalanceKey]*domain.Balance),
	}
}

// Begin starts a transaction.
func (s *Store) Begin(_ context.Context) (usecase.Transaction, error) {
	return &Tx{store: s}, nil
}

// Transactions returns the transaction repository.
func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{store: s}
}

// Balances returns the balance repository.
func (s *Store) Balances() *BalanceRepository {
	return &BalanceRepository{store: s}
}

// States returns the balance state repository.
func (s *Store) States() *BalanceStateRepository {
	return &BalanceStateRepository{store: s}
}

// Outbox returns the outbox repository.
func (s *Store) Outbox() *OutboxRepository {
	return &OutboxRepository{store: s}
}

// Sequencer returns the batch sequencer.
func (s *Store) Sequencer() *Sequencer {
	return &Sequencer{store: s}
}

func newID() string {
	return ulid.Make().String()
}

// Tx records undo steps for the writes made through it.
type Tx struct {
	store *Store
	mu    sync.Mutex
	undo  []func()
	done  bool
}

// Commit keeps the writes.
func (t *Tx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done = true
	t.undo = nil
	return nil
}

// Rollback reverts the writes. It is a no-op after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil
	}
	t.done = true
	undo := t.undo
	t.undo = nil
	t.mu.Unlock()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
	return nil
}

// record adds an undo step. The store lock must be held.
func (t *Tx) record(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.undo = append(t.undo, fn)
}

func asTx(s *Store, tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil || t.store != s {
		return nil, errForeignTx
	}
	if t.done {
		return nil, errors.New("memory: transaction already finished")
	}

	return t, nil
}

// Sequencer implements usecase.BatchSequencer with an atomic counter.
type Sequencer struct {
	store *Store
}

// Next returns the next batch id.
func (q *Sequencer) Next(_ context.Context) (int64, error) {
	return q.store.batchSeq.Add(1), nil
}
