package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/usecase"
)

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	store *Store
}

func cloneBalance(b *domain.Balance) *domain.Balance {
	c := *b
	if b.RecalculatedAt != nil {
		at := *b.RecalculatedAt
		c.RecalculatedAt = &at
	}
	if b.Pending != nil {
		p := *b.Pending
		c.Pending = &p
	}
	if b.OnHold != nil {
		h := *b.OnHold
		c.OnHold = &h
	}

	return &c
}

// GetOrCreateForUpdate returns the balance for key, creating it if needed.
func (r *BalanceRepository) GetOrCreateForUpdate(
	_ context.Context,
	tx usecase.Transaction,
	key domain.BalanceKey,
) (*domain.Balance, error) {
	mtx, err := asTx(r.store, tx)
	if err != nil {
		return nil, err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.balances[key]; ok {
		return cloneBalance(b), nil
	}

	now := time.Now().UTC()
	b := &domain.Balance{
		ID:        newID(),
		Holder:    key.Holder,
		Currency:  key.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.balances[key] = b
	mtx.record(func() { delete(s.balances, key) })

	return cloneBalance(b), nil
}

// Get retrieves a balance.
func (r *BalanceRepository) Get(_ context.Context, key domain.BalanceKey) (*domain.Balance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	b, ok := r.store.balances[key]
	if !ok {
		return nil, domain.ErrBalanceNotFound
	}

	return cloneBalance(b), nil
}

// Save stores derived figures and bumps the version.
func (r *BalanceRepository) Save(_ context.Context, tx usecase.Transaction, balance *domain.Balance) error {
	mtx, err := asTx(r.store, tx)
	if err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balance.Key()
	previous, ok := s.balances[key]
	if !ok {
		return domain.ErrBalanceNotFound
	}

	balance.Version = previous.Version + 1
	s.balances[key] = cloneBalance(balance)
	mtx.record(func() { s.balances[key] = previous })

	return nil
}

// List returns balances ordered by key.
func (r *BalanceRepository) List(_ context.Context, limit, offset int) ([]*domain.Balance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	all := make([]*domain.Balance, 0, len(r.store.balances))
	for _, b := range r.store.balances {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Key().LockKey() < all[j].Key().LockKey() })

	if offset >= len(all) {
		return []*domain.Balance{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]*domain.Balance, 0, len(all))
	for _, b := range all {
		out = append(out, cloneBalance(b))
	}

	return out, nil
}

// BalanceStateRepository implements usecase.BalanceStateRepository.
type BalanceStateRepository struct {
	store *Store
}

// Create appends a state.
func (r *BalanceStateRepository) Create(_ context.Context, tx usecase.Transaction, state *domain.BalanceState) error {
	mtx, err := asTx(r.store, tx)
	if err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *state
	s.states = append(s.states, &c)
	mtx.record(func() {
		for i := len(s.states) - 1; i >= 0; i-- {
			if s.states[i].ID == c.ID {
				s.states = append(s.states[:i], s.states[i+1:]...)
				return
			}
		}
	})

	return nil
}

// ListByBalance lists states of a balance, newest first.
func (r *BalanceStateRepository) ListByBalance(_ context.Context, balanceID string, limit, offset int) ([]*domain.BalanceState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.BalanceState
	for i := len(r.store.states) - 1; i >= 0; i-- {
		st := r.store.states[i]
		if st.BalanceID != balanceID {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		c := *st
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}

	if out == nil {
		out = []*domain.BalanceState{}
	}

	return out, nil
}
