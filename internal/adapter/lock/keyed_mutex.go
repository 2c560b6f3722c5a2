// Package lock provides in-process implementations of usecase.Locker.
package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iho/txledger/internal/domain"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is a Locker with one mutex per key, valid within one process.
// Idle keys are dropped once no goroutine holds or waits for them.
type KeyedMutex struct {
	mu          sync.Mutex
	entries     map[string]*entry
	waitTimeout time.Duration
}

// NewKeyedMutex creates a KeyedMutex. A positive waitTimeout bounds how long
// WithLock waits for each key.
func NewKeyedMutex(waitTimeout time.Duration) *KeyedMutex {
	return &KeyedMutex{
		entries:     make(map[string]*entry),
		waitTimeout: waitTimeout,
	}
}

// WithLock acquires keys in sorted order, runs fn and releases them in
// reverse order.
func (m *KeyedMutex) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	keys = SortKeys(keys)

	held := make([]string, 0, len(keys))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			m.release(held[i])
		}
	}()

	for _, key := range keys {
		if err := m.acquire(ctx, key); err != nil {
			return err
		}
		held = append(held, key)
	}

	return fn(ctx)
}

func (m *KeyedMutex) acquire(ctx context.Context, key string) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	waitCtx := ctx
	if m.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.waitTimeout)
		defer cancel()
	}

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		m.unref(key)
		return fmt.Errorf("%w: %s: %v", domain.ErrLockAcquisitionFailed, key, waitCtx.Err())
	}
}

func (m *KeyedMutex) release(key string) {
	m.mu.Lock()
	e := m.entries[key]
	m.mu.Unlock()

	<-e.sem
	m.unref(key)
}

func (m *KeyedMutex) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// size reports the number of tracked keys.
func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// SortKeys returns the distinct keys in acquisition order.
func SortKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}
