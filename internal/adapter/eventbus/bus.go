// Package eventbus implements usecase.EventDispatcher.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/usecase"
)

// Handler receives a lifecycle event. Returning an error aborts the
// operation that emitted it.
type Handler func(ctx context.Context, event domain.TransactionEvent) error

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// Bus delivers events synchronously to in-process subscribers, in
// subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers h for eventType, or for every type with AllEvents.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Dispatch runs the matching handlers.
func (b *Bus) Dispatch(ctx context.Context, _ usecase.Transaction, event domain.TransactionEvent) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type])+len(b.handlers[AllEvents]))
	handlers = append(handlers, b.handlers[event.Type]...)
	handlers = append(handlers, b.handlers[AllEvents]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return fmt.Errorf("%s handler: %w", event.Type, err)
		}
	}

	return nil
}

// Outbox writes events to the outbox table in the emitting transaction, so
// they are published only if the change commits.
type Outbox struct {
	repo  usecase.OutboxRepository
	idGen usecase.IDGenerator
}

// NewOutbox creates an Outbox dispatcher.
func NewOutbox(repo usecase.OutboxRepository, idGen usecase.IDGenerator) *Outbox {
	return &Outbox{repo: repo, idGen: idGen}
}

// Dispatch stores the event.
func (o *Outbox) Dispatch(ctx context.Context, tx usecase.Transaction, event domain.TransactionEvent) error {
	return o.repo.Create(ctx, tx, event.ToOutbox(o.idGen.Generate()))
}

// Fanout dispatches to several dispatchers in order.
type Fanout []usecase.EventDispatcher

// Dispatch stops at the first failing dispatcher.
func (f Fanout) Dispatch(ctx context.Context, tx usecase.Transaction, event domain.TransactionEvent) error {
	for _, d := range f {
		if err := d.Dispatch(ctx, tx, event); err != nil {
			return err
		}
	}

	return nil
}
