package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/txledger/internal/adapter/lock"
	"github.com/iho/txledger/internal/adapter/repository/memory"
	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/processor"
	"github.com/iho/txledger/internal/usecase"
	"github.com/iho/txledger/internal/usecase/fakes"
)

type user struct{ id string }

func (u user) HolderID() string   { return u.id }
func (u user) HolderType() string { return "user" }

var (
	alice = user{id: "alice"}
	bob   = user{id: "bob"}
)

type ledgerEnv struct {
	store        *memory.Store
	events       *fakes.EventDispatcher
	cache        *fakes.Cache
	recalculator *usecase.Recalculator
	ledger       *usecase.Ledger
	balances     *usecase.BalanceUseCase
	txs          *usecase.TransactionUseCase
}

type envOption func(*envOptions)

type envOptions struct {
	cfg        usecase.LedgerConfig
	locker     usecase.Locker
	sequencer  usecase.BatchSequencer
	noDispatch bool
}

func withAccounting(fn func(*usecase.AccountingConfig)) envOption {
	return func(o *envOptions) { fn(&o.cfg.Accounting) }
}

func withLocker(l usecase.Locker) envOption {
	return func(o *envOptions) { o.locker = l }
}

func withSequencer(s usecase.BatchSequencer) envOption {
	return func(o *envOptions) { o.sequencer = s }
}

func withoutDispatcher() envOption {
	return func(o *envOptions) { o.noDispatch = true }
}

func newLedgerEnv(t *testing.T, opts ...envOption) *ledgerEnv {
	t.Helper()

	store := memory.NewStore()
	o := envOptions{
		cfg:       usecase.DefaultLedgerConfig(),
		locker:    lock.NewKeyedMutex(5 * time.Second),
		sequencer: store.Sequencer(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	events := fakes.NewEventDispatcher()
	var dispatcher usecase.EventDispatcher = events
	if o.noDispatch {
		dispatcher = nil
	}

	registry := processor.DefaultRegistry()
	idGen := fakes.NewIDGenerator()
	cache := fakes.NewCache()

	recalculator := usecase.NewRecalculator(
		store.Balances(), store.Transactions(), store.States(), registry, idGen, o.cfg.Accounting, nil,
	)
	ledger := usecase.NewLedger(
		o.cfg, registry, store, store.Transactions(), store.Balances(), o.sequencer,
		o.locker, dispatcher, recalculator, idGen, nil,
	).WithCache(cache)

	return &ledgerEnv{
		store:        store,
		events:       events,
		cache:        cache,
		recalculator: recalculator,
		ledger:       ledger,
		balances:     usecase.NewBalanceUseCase(ledger, store.Balances(), store.States(), cache, nil),
		txs:          usecase.NewTransactionUseCase(ledger, store.Transactions()),
	}
}

func (e *ledgerEnv) deposit(t *testing.T, to domain.Holder, amount string) *domain.Transaction {
	t.Helper()

	tx, err := e.ledger.Deposit(dec(amount)).To(to).Overcharge(true).Commit(context.Background())
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	return tx
}

func (e *ledgerEnv) balance(t *testing.T, h domain.Holder, currency string) *domain.Balance {
	t.Helper()

	b, err := e.balances.Get(context.Background(), domain.RefOf(h), currency)
	if err != nil {
		t.Fatalf("balance read failed: %v", err)
	}
	return b
}

func (e *ledgerEnv) history(t *testing.T, h domain.Holder) []*domain.Transaction {
	t.Helper()

	txs, err := e.store.Transactions().ListByHolder(context.Background(), domain.TransactionFilter{
		Holder:           domain.RefOf(h),
		Limit:            100,
		IncludeInvisible: true,
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	return txs
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()

	if !got.Equal(dec(want)) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
