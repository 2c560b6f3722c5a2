package eventbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/txledger/internal/adapter/eventbus"
	"github.com/iho/txledger/internal/adapter/repository/memory"
	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/usecase"
	"github.com/iho/txledger/internal/usecase/fakes"
)

func event(eventType string) domain.TransactionEvent {
	return domain.TransactionEvent{
		Type: eventType,
		Transaction: &domain.Transaction{
			ID:        "tx-1",
			Processor: "deposit",
			Currency:  "USD",
			Status:    domain.StatusSuccess,
			Amount:    decimal.NewFromInt(10),
		},
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := eventbus.NewBus()

	var got []string
	bus.Subscribe(domain.EventTypeTransactionCreated, func(_ context.Context, e domain.TransactionEvent) error {
		got = append(got, "first:"+e.Type)
		return nil
	})
	bus.Subscribe(domain.EventTypeTransactionDeleted, func(_ context.Context, e domain.TransactionEvent) error {
		got = append(got, "deleted:"+e.Type)
		return nil
	})
	bus.Subscribe(eventbus.AllEvents, func(_ context.Context, e domain.TransactionEvent) error {
		got = append(got, "all:"+e.Type)
		return nil
	})
	bus.Subscribe(domain.EventTypeTransactionCreated, func(_ context.Context, e domain.TransactionEvent) error {
		got = append(got, "second:"+e.Type)
		return nil
	})

	require.NoError(t, bus.Dispatch(context.Background(), nil, event(domain.EventTypeTransactionCreated)))

	assert.Equal(t, []string{
		"first:transaction.created",
		"second:transaction.created",
		"all:transaction.created",
	}, got)
}

func TestBusStopsAtFirstError(t *testing.T) {
	bus := eventbus.NewBus()
	rejected := errors.New("limit exceeded")

	called := false
	bus.Subscribe(domain.EventTypeTransactionCreated, func(context.Context, domain.TransactionEvent) error {
		return rejected
	})
	bus.Subscribe(domain.EventTypeTransactionCreated, func(context.Context, domain.TransactionEvent) error {
		called = true
		return nil
	})

	err := bus.Dispatch(context.Background(), nil, event(domain.EventTypeTransactionCreated))
	require.ErrorIs(t, err, rejected)
	assert.Contains(t, err.Error(), domain.EventTypeTransactionCreated)
	assert.False(t, called)
}

func TestOutboxWritesInsideTransaction(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	outbox := eventbus.NewOutbox(store.Outbox(), fakes.NewIDGenerator())

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, outbox.Dispatch(ctx, tx, event(domain.EventTypeTransactionCreated)))
	require.NoError(t, tx.Rollback(ctx))

	events, err := store.Outbox().GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events, "rolled back events must not be published")

	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, outbox.Dispatch(ctx, tx, event(domain.EventTypeTransactionCreated)))
	require.NoError(t, tx.Commit(ctx))

	events, err = store.Outbox().GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "tx-1", events[0].AggregateID)
	assert.Equal(t, domain.AggregateTypeTransaction, events[0].AggregateType)
	assert.Equal(t, "10", events[0].Payload["amount"])
}

func TestFanoutDispatchesInOrder(t *testing.T) {
	first := fakes.NewEventDispatcher()
	second := fakes.NewEventDispatcher()
	failing := eventbus.NewBus()
	failing.Subscribe(eventbus.AllEvents, func(context.Context, domain.TransactionEvent) error {
		return errors.New("veto")
	})

	fanout := eventbus.Fanout{first, second}
	require.NoError(t, fanout.Dispatch(context.Background(), nil, event(domain.EventTypeTransactionUpdated)))
	assert.Equal(t, []string{domain.EventTypeTransactionUpdated}, first.Types())
	assert.Equal(t, []string{domain.EventTypeTransactionUpdated}, second.Types())

	third := fakes.NewEventDispatcher()
	fanout = eventbus.Fanout{failing, third}
	require.Error(t, fanout.Dispatch(context.Background(), nil, event(domain.EventTypeTransactionUpdated)))
	assert.Empty(t, third.Events())
}

var _ usecase.EventDispatcher = eventbus.Fanout(nil)
