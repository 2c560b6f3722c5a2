package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/processor"
	"github.com/iho/txledger/internal/usecase"
	"github.com/iho/txledger/internal/usecase/fakes"
)

var setLockTimeout = regexp.QuoteMeta("set_config('lock_timeout'")

func TestTxManagerSetsLockTimeout(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBegin()
	pool.ExpectExec(setLockTimeout).
		WithArgs("1500ms").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	pool.ExpectCommit()

	manager := newTxManagerWithPool(pool).WithLockTimeout(1500 * time.Millisecond)
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	assertExpectations(t, pool)
}

func TestTxManagerWithoutLockTimeout(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBegin()
	pool.ExpectRollback()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	assertExpectations(t, pool)
}

func TestTxManagerBeginError(t *testing.T) {
	pool := newMockPool(t)
	beginErr := errors.New("connection refused")
	pool.ExpectBegin().WillReturnError(beginErr)

	tx, err := newTxManagerWithPool(pool).WithLockTimeout(time.Second).Begin(context.Background())
	if !errors.Is(err, beginErr) {
		t.Fatalf("expected begin error, got err=%v tx=%v", err, tx)
	}
}

func TestTxManagerLockTimeoutFailureRollsBack(t *testing.T) {
	pool := newMockPool(t)
	setErr := errors.New("permission denied")
	pool.ExpectBegin()
	pool.ExpectExec(setLockTimeout).WithArgs("1000ms").WillReturnError(setErr)
	pool.ExpectRollback()

	tx, err := newTxManagerWithPool(pool).WithLockTimeout(time.Second).Begin(context.Background())
	if !errors.Is(err, setErr) || tx != nil {
		t.Fatalf("expected set error and no tx, got err=%v tx=%v", err, tx)
	}

	assertExpectations(t, pool)
}

func TestTxRollbackAfterCommitIsNoop(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBegin()
	pool.ExpectCommit()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// The ledger defers Rollback around every commit.
	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback after commit should be a no-op, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestTxRollbackTwice(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBegin()
	pool.ExpectRollback()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := tx.Rollback(context.Background()); err != nil {
			t.Fatalf("rollback %d failed: %v", i+1, err)
		}
	}

	assertExpectations(t, pool)
}

func TestLedgerCommitBatchReportsRowLockTimeout(t *testing.T) {
	pool := newMockPool(t)
	ids := staticIDs("bal-1")

	retrier := NewRetrier(zerolog.Nop()).WithMaxRetries(1)
	retrier.initialInterval = time.Millisecond
	retrier.maxInterval = time.Millisecond

	// One attempt plus one retry, each ending on the row lock wait.
	for i := 0; i < 2; i++ {
		pool.ExpectBegin()
		pool.ExpectExec(setLockTimeout).
			WithArgs("2000ms").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		pool.ExpectExec(regexp.QuoteMeta("INSERT INTO balances")).
			WithArgs("bal-1", "user", "alice", "USD", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		pool.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WithArgs("user", "alice", "USD").
			WillReturnError(&pgconn.PgError{Code: pgErrLockNotAvailable, Message: "canceling statement due to lock timeout"})
		pool.ExpectRollback()
	}

	cfg := usecase.DefaultLedgerConfig()
	registry := processor.DefaultRegistry()
	txRepo := NewTransactionRepository(pool)
	balanceRepo := NewBalanceRepository(pool, ids)
	recalculator := usecase.NewRecalculator(balanceRepo, txRepo, nil, registry, ids, cfg.Accounting, nil)
	ledger := usecase.NewLedger(
		cfg,
		registry,
		newTxManagerWithPool(pool).WithLockTimeout(2*time.Second),
		txRepo,
		balanceRepo,
		NewSequencer(pool),
		nil,
		fakes.NewEventDispatcher(),
		recalculator,
		ids,
		nil,
	).WithRetrier(retrier)

	alice := domain.HolderRef{ID: "alice", Type: "user"}
	_, err := ledger.CommitBatch(context.Background(),
		ledger.Deposit(decimal.RequireFromString("10")).To(alice).Overcharge(true))

	if !errors.Is(err, domain.ErrLockAcquisitionFailed) {
		t.Fatalf("expected lock acquisition failure, got %v", err)
	}
	if usecase.ErrorType(err) != "lock_acquisition_failed" {
		t.Fatalf("unexpected error type %q", usecase.ErrorType(err))
	}

	assertExpectations(t, pool)
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}
