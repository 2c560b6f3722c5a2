package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/txledger/internal/adapter/eventbus"
	httpAdapter "github.com/iho/txledger/internal/adapter/http"
	"github.com/iho/txledger/internal/adapter/http/handler"
	"github.com/iho/txledger/internal/adapter/http/middleware"
	"github.com/iho/txledger/internal/adapter/lock"
	"github.com/iho/txledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/txledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/txledger/internal/adapter/repository/redis"
	"github.com/iho/txledger/internal/infrastructure/auth"
	"github.com/iho/txledger/internal/infrastructure/config"
	"github.com/iho/txledger/internal/infrastructure/eventpublisher"
	"github.com/iho/txledger/internal/infrastructure/logger"
	"github.com/iho/txledger/internal/infrastructure/metrics"
	"github.com/iho/txledger/internal/infrastructure/postgres"
	"github.com/iho/txledger/internal/infrastructure/redis"
	"github.com/iho/txledger/internal/processor"
	"github.com/iho/txledger/internal/usecase"
)

// storage is the set of repositories behind one store backend.
type storage struct {
	txManager usecase.TransactionManager
	txs       usecase.TransactionRepository
	balances  usecase.BalanceRepository
	states    usecase.BalanceStateRepository
	outbox    usecase.OutboxRepository
	sequencer usecase.BatchSequencer
	retrier   usecase.Retrier
}

// app is a fully wired ledger process.
type app struct {
	handler     http.Handler
	bus         *eventbus.Bus
	publisher   *eventpublisher.EventPublisher
	rateLimiter *middleware.RateLimiter
	closers     []func()
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, reg prometheus.Registerer) (_ *app, err error) {
	a := &app{bus: eventbus.NewBus()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	ledgerCfg, err := cfg.LedgerConfig()
	if err != nil {
		return nil, err
	}

	m := metrics.NewWithRegisterer(reg)
	idGen := postgresRepo.NewULIDGenerator()
	var checks []handler.Check

	var store storage
	switch cfg.Ledger.StoreBackend {
	case config.BackendPostgres:
		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		checks = append(checks, handler.Check{Name: "postgres", Ping: pool.Ping})
		log.Info().Msg("connected to postgres")

		store = postgresStorage(pool, idGen, cfg, log)
	case config.BackendMemory:
		store = memoryStorage(memory.NewStore())
		log.Warn().Msg("using in-memory store, data is lost on restart")
	}

	var rdb *goredis.Client
	if needsRedis(cfg) {
		rdb, err = redis.NewClient(ctx, redis.ClientConfig{
			URL:      cfg.RedisURL,
			PoolSize: cfg.RedisPoolSize,
			Timeout:  cfg.RedisTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		checks = append(checks, handler.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		log.Info().Msg("connected to redis")
	}

	locker, err := newLocker(cfg, rdb, logger.Component(log, "locker"))
	if err != nil {
		return nil, err
	}

	if cfg.Ledger.SequenceBackend == config.BackendRedis {
		store.sequencer = redisRepo.NewSequencer(rdb)
	}

	var dispatcher usecase.EventDispatcher = a.bus
	if cfg.Outbox.Publisher != config.BackendNone {
		dispatcher = eventbus.Fanout{a.bus, eventbus.NewOutbox(store.outbox, idGen)}

		pub, closePub := newPublisher(cfg, logger.Component(log, "publisher"))
		if closePub != nil {
			a.closers = append(a.closers, closePub)
		}
		a.publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: store.outbox,
			Publisher:  pub,
			Logger:     logger.Component(log, "outbox"),
			Metrics:    m,
			BatchSize:  cfg.Outbox.BatchSize,
			Interval:   cfg.Outbox.Interval,
			Retention:  cfg.Outbox.Retention,
		})
	}

	registry := processor.DefaultRegistry()
	recalculator := usecase.NewRecalculator(
		store.balances, store.txs, store.states, registry, idGen, ledgerCfg.Accounting, m,
	)
	ledger := usecase.NewLedger(
		ledgerCfg, registry, store.txManager, store.txs, store.balances, store.sequencer,
		locker, dispatcher, recalculator, idGen, m,
	).WithLogger(logger.Component(log, "ledger"))
	if store.retrier != nil {
		ledger.WithRetrier(store.retrier)
	}

	var cache usecase.Cache
	if cfg.Ledger.BalanceCacheTTL > 0 {
		cache = redisRepo.NewCache(rdb)
		ledger.WithCache(cache)
	}

	transactions := usecase.NewTransactionUseCase(ledger, store.txs)
	balances := usecase.NewBalanceUseCase(ledger, store.balances, store.states, cache, m).
		WithLogger(logger.Component(log, "balances"))
	if cache != nil {
		balances.WithCacheTTL(cfg.Ledger.BalanceCacheTTL)
	}
	reconciliation := usecase.NewReconciliationUseCase(store.txManager, store.balances, recalculator)

	routerCfg := httpAdapter.RouterConfig{
		TransactionHandler: handler.NewTransactionHandler(transactions),
		BalanceHandler:     handler.NewBalanceHandler(balances, reconciliation),
		HealthHandler:      handler.NewHealthHandler(checks...),
		IdempotencyTTL:     cfg.IdempotencyTTL,
		Metrics:            m,
		Logger:             logger.Component(log, "http"),
	}
	if rdb != nil {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(rdb)
	}
	if cfg.AuthEnabled {
		routerCfg.JWTManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}
	if cfg.RateLimitRPS > 0 {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).WithMetrics(m)
		routerCfg.RateLimiter = a.rateLimiter
	}

	a.handler = httpAdapter.NewRouter(routerCfg)

	return a, nil
}

func postgresStorage(pool *pgxpool.Pool, idGen usecase.IDGenerator, cfg *config.Config, log zerolog.Logger) storage {
	return storage{
		txManager: postgresRepo.NewTxManager(pool).WithLockTimeout(cfg.Ledger.RowLockTimeout),
		txs:       postgresRepo.NewTransactionRepository(pool),
		balances:  postgresRepo.NewBalanceRepository(pool, idGen),
		states:    postgresRepo.NewBalanceStateRepository(pool),
		outbox:    postgresRepo.NewOutboxRepository(pool),
		sequencer: postgresRepo.NewSequencer(pool),
		retrier: postgresRepo.NewRetrier(logger.Component(log, "retrier")).
			WithMaxRetries(cfg.Ledger.MaxRetries),
	}
}

func memoryStorage(s *memory.Store) storage {
	return storage{
		txManager: s,
		txs:       s.Transactions(),
		balances:  s.Balances(),
		states:    s.States(),
		outbox:    s.Outbox(),
		sequencer: s.Sequencer(),
	}
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Ledger.StoreBackend == config.BackendPostgres ||
		cfg.Ledger.LockBackend == config.BackendRedis ||
		cfg.Ledger.SequenceBackend == config.BackendRedis ||
		cfg.Ledger.BalanceCacheTTL > 0
}

// newLocker picks the balance lock coordinator. The in-memory store has no
// row locks, so it always gets at least a process-local mutex.
func newLocker(cfg *config.Config, rdb *goredis.Client, log zerolog.Logger) (usecase.Locker, error) {
	switch cfg.Ledger.LockBackend {
	case config.BackendRedis:
		return redisRepo.NewLockManager(rdb, redisRepo.LockOptions{
			Expiry:     cfg.Ledger.LockExpiry,
			Tries:      cfg.Ledger.LockTries,
			RetryDelay: cfg.Ledger.LockRetryDelay,
		}, log)
	case config.BackendStore:
		if cfg.Ledger.StoreBackend == config.BackendPostgres {
			return lock.NewStoreOnly(), nil
		}
	}

	return lock.NewKeyedMutex(cfg.Ledger.LockExpiry), nil
}

func newPublisher(cfg *config.Config, log zerolog.Logger) (eventpublisher.Publisher, func()) {
	if cfg.Outbox.Publisher == config.BackendKafka {
		p := eventpublisher.NewKafkaPublisher(cfg.Outbox.KafkaBrokers, cfg.Outbox.KafkaTopic)
		log.Info().
			Strs("brokers", cfg.Outbox.KafkaBrokers).
			Str("topic", cfg.Outbox.KafkaTopic).
			Msg("kafka publisher initialized")
		return p, func() {
			if err := p.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka writer")
			}
		}
	}

	return eventpublisher.NewLogPublisher(log), nil
}

// limiterCleanupInterval is how often idle rate limiters are dropped.
const limiterCleanupInterval = time.Minute
