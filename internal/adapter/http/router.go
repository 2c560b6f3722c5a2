package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/txledger/internal/adapter/http/handler"
	"github.com/iho/txledger/internal/adapter/http/middleware"
	"github.com/iho/txledger/internal/infrastructure/auth"
	"github.com/iho/txledger/internal/infrastructure/metrics"
	"github.com/iho/txledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	TransactionHandler *handler.TransactionHandler
	BalanceHandler     *handler.BalanceHandler
	HealthHandler      *handler.HealthHandler
	IdempotencyStore   usecase.IdempotencyStore
	IdempotencyTTL     time.Duration
	RateLimiter        *middleware.RateLimiter
	// JWTManager enables bearer authentication on /api/v1 when set.
	JWTManager *auth.JWTManager
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager, cfg.Metrics))
		}
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore).WithTTL(cfg.IdempotencyTTL).Wrap)
		}

		operator := requireRole(cfg, auth.RoleOperator)
		admin := requireRole(cfg, auth.RoleAdmin)

		r.Route("/transactions", func(r chi.Router) {
			r.With(operator, lockOverrides(cfg)).Post("/", cfg.TransactionHandler.Create)
			r.With(operator, lockOverrides(cfg)).Post("/batch", cfg.TransactionHandler.CreateBatch)
			r.Get("/{id}", cfg.TransactionHandler.Get)
			r.With(operator).Patch("/{id}/status", cfg.TransactionHandler.UpdateStatus)
			r.With(operator).Delete("/{id}", cfg.TransactionHandler.Delete)
		})

		r.Route("/holders/{holder}", func(r chi.Router) {
			r.Get("/transactions", cfg.TransactionHandler.ListByHolder)
			r.Get("/balances/{currency}", cfg.BalanceHandler.Get)
			r.Get("/balances/{currency}/states", cfg.BalanceHandler.States)
			r.With(admin).Post("/balances/{currency}/recalculate", cfg.BalanceHandler.Recalculate)
		})

		r.Get("/balances", cfg.BalanceHandler.List)
		r.With(admin).Get("/reconciliation", cfg.BalanceHandler.Reconcile)
	})

	return r
}

// requireRole is a no-op when authentication is disabled.
func requireRole(cfg RouterConfig, role auth.Role) func(http.Handler) http.Handler {
	if cfg.JWTManager == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RequireRole(role)
}

// lockOverrides lets admins choose the lock key or skip the coordinator.
// With authentication disabled every caller may.
func lockOverrides(cfg RouterConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.JWTManager == nil {
				r = handler.AllowLockOverrides(r)
			} else if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && claims.Role.Allows(auth.RoleAdmin) {
				r = handler.AllowLockOverrides(r)
			}
			next.ServeHTTP(w, r)
		})
	}
}
