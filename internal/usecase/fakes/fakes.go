// Package fakes holds hand-written in-memory stand-ins for usecase
// dependencies. Each method can be overridden through its Func field.
package fakes

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/usecase"
)

// TransactionManager is a fake usecase.TransactionManager.
type TransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

func (m *TransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &Transaction{}, nil
}

// Transaction is a fake usecase.Transaction.
type Transaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *Transaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *Transaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// IDGenerator is a fake usecase.IDGenerator.
type IDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

func (m *IDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return "fake-id-" + strconv.Itoa(m.counter)
}

// Cache is an in-memory Cache with overridable methods.
type Cache struct {
	mu   sync.RWMutex
	data map[string][]byte

	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
}

func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

func (m *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

func (m *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Cache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Has reports whether key is cached.
func (m *Cache) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

// EventDispatcher records dispatched events.
type EventDispatcher struct {
	mu     sync.Mutex
	events []domain.TransactionEvent

	DispatchFunc func(ctx context.Context, tx usecase.Transaction, event domain.TransactionEvent) error
}

func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{}
}

func (m *EventDispatcher) Dispatch(ctx context.Context, tx usecase.Transaction, event domain.TransactionEvent) error {
	if m.DispatchFunc != nil {
		if err := m.DispatchFunc(ctx, tx, event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns the events dispatched so far.
func (m *EventDispatcher) Events() []domain.TransactionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TransactionEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Types returns the types of the events dispatched so far.
func (m *EventDispatcher) Types() []string {
	events := m.Events()
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

// Locker runs fn directly and records the requested keys.
type Locker struct {
	mu    sync.Mutex
	calls [][]string

	WithLockFunc func(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

func NewLocker() *Locker {
	return &Locker{}
}

func (m *Locker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), keys...))
	m.mu.Unlock()

	if m.WithLockFunc != nil {
		return m.WithLockFunc(ctx, keys, fn)
	}
	return fn(ctx)
}

// Calls returns the key sets passed to WithLock.
func (m *Locker) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.calls))
	copy(out, m.calls)
	return out
}
