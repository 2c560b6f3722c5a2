package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction metrics
	TransactionsCommitted *prometheus.CounterVec
	TransactionsDeleted   prometheus.Counter
	StatusChanges         *prometheus.CounterVec
	CommitDuration        prometheus.Histogram
	CommitErrors          *prometheus.CounterVec
	BatchSize             prometheus.Histogram

	// Balance metrics
	Recalculations      *prometheus.CounterVec
	RecalculateDuration prometheus.Histogram
	CacheLookups        *prometheus.CounterVec

	// Lock metrics
	LockWait     prometheus.Histogram
	LockFailures prometheus.Counter

	// Event metrics
	EventsDispatched *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Transaction metrics
		TransactionsCommitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txledger_transactions_committed_total",
				Help: "Total number of transactions committed by processor",
			},
			[]string{"processor"},
		),
		TransactionsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "txledger_transactions_deleted_total",
			Help: "Total number of transactions deleted",
		}),
		StatusChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txledger_status_changes_total",
				Help: "Total transaction status changes by new status",
			},
			[]string{"status"},
		),
		CommitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "txledger_commit_duration_seconds",
			Help:    "Duration of commit operations",
			Buckets: prometheus.DefBuckets,
		}),
		CommitErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txledger_commit_errors_total",
				Help: "Total number of commit errors by type",
			},
			[]string{"error_type"},
		),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "txledger_batch_legs",
			Help:    "Number of legs per committed batch",
			Buckets: []float64{1, 2, 3, 5, 10, 25},
		}),

		// Balance metrics
		Recalculations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txledger_balance_recalculations_total",
				Help: "Total balance recalculations by currency",
			},
			[]string{"currency"},
		),
		RecalculateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "txledger_balance_recalculate_duration_seconds",
			Help:    "Duration of balance recalculations",
			Buckets: prometheus.DefBuckets,
		}),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txledger_balance_cache_lookups_total",
				Help: "Balance cache lookups by result",
			},
			[]string{"result"},
		),

		// Lock metrics
		LockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "txledger_lock_wait_seconds",
			Help:    "Time spent waiting for balance locks",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		LockFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "txledger_lock_failures_total",
			Help: "Total lock acquisition failures",
		}),

		// Event metrics
		EventsDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txledger_events_dispatched_total",
				Help: "Lifecycle events dispatched by type",
			},
			[]string{"event_type"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txledger_events_published_total",
				Help: "Outbox events published by result",
			},
			[]string{"result"},
		),

		// Authentication metrics
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txledger_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),
	}
}
