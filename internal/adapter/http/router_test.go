package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/txledger/internal/adapter/http/handler"
	apimiddleware "github.com/iho/txledger/internal/adapter/http/middleware"
	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/infrastructure/auth"
	"github.com/iho/txledger/internal/usecase"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_MetricsEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /metrics to return 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_in_flight") {
		t.Fatal("expected http metrics to be exported")
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	body := `{"processor":"deposit","amount":"10","to":"user:alice","overcharge":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if !store.checkCalled {
		t.Fatalf("expected idempotency store to be used")
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestNewRouter_EnforcesRoles(t *testing.T) {
	jwtManager := auth.NewJWTManager("router-secret", time.Hour)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.JWTManager = jwtManager
	}))

	token := func(role auth.Role) string {
		tok, err := jwtManager.Generate("svc", role)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		return "Bearer " + tok
	}

	tests := []struct {
		name     string
		method   string
		path     string
		auth     string
		expected int
	}{
		{"anonymous read", http.MethodGet, "/api/v1/transactions/tx-1", "", http.StatusUnauthorized},
		{"viewer read", http.MethodGet, "/api/v1/transactions/tx-1", token(auth.RoleViewer), http.StatusOK},
		{"viewer write", http.MethodDelete, "/api/v1/transactions/tx-1", token(auth.RoleViewer), http.StatusForbidden},
		{"operator write", http.MethodDelete, "/api/v1/transactions/tx-1", token(auth.RoleOperator), http.StatusNoContent},
		{"operator reconcile", http.MethodGet, "/api/v1/reconciliation", token(auth.RoleOperator), http.StatusForbidden},
		{"admin reconcile", http.MethodGet, "/api/v1/reconciliation", token(auth.RoleAdmin), http.StatusOK},
		{"health stays open", http.MethodGet, "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestNewRouter_LockOverridesRequireAdmin(t *testing.T) {
	jwtManager := auth.NewJWTManager("router-secret", time.Hour)
	secured := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.JWTManager = jwtManager
	}))
	open := NewRouter(newRouterConfig())

	token := func(role auth.Role) string {
		tok, err := jwtManager.Generate("svc", role)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		return "Bearer " + tok
	}

	const (
		plain  = `{"processor":"deposit","amount":"10","to":"user:bob","overcharge":true}`
		noLock = `{"processor":"deposit","amount":"10","to":"user:bob","overcharge":true,"no_lock":true}`
	)

	tests := []struct {
		name     string
		router   http.Handler
		auth     string
		body     string
		expected int
	}{
		{"operator plain", secured, token(auth.RoleOperator), plain, http.StatusCreated},
		{"operator no_lock", secured, token(auth.RoleOperator), noLock, http.StatusForbidden},
		{"admin no_lock", secured, token(auth.RoleAdmin), noLock, http.StatusCreated},
		{"auth disabled no_lock", open, "", noLock, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/", strings.NewReader(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			tt.router.ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Fatalf("expected %d, got %d: %s", tt.expected, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"POST /api/v1/transactions/",
		"POST /api/v1/transactions/batch",
		"GET /api/v1/transactions/{id}",
		"PATCH /api/v1/transactions/{id}/status",
		"DELETE /api/v1/transactions/{id}",
		"GET /api/v1/holders/{holder}/transactions",
		"GET /api/v1/holders/{holder}/balances/{currency}",
		"GET /api/v1/holders/{holder}/balances/{currency}/states",
		"POST /api/v1/holders/{holder}/balances/{currency}/recalculate",
		"GET /api/v1/balances",
		"GET /api/v1/reconciliation",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	cfg := RouterConfig{
		HealthHandler:      handler.NewHealthHandler(),
		TransactionHandler: handler.NewTransactionHandler(stubTransactionService{}),
		BalanceHandler:     handler.NewBalanceHandler(stubBalanceService{}, stubReconciliationService{}),
		Logger:             zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubTransactionService struct{}

func (stubTransactionService) Create(context.Context, usecase.CreateTransactionInput) (*domain.Transaction, error) {
	return &domain.Transaction{ID: "tx", Amount: decimal.NewFromInt(10)}, nil
}

func (stubTransactionService) CreateBatch(context.Context, []usecase.CreateTransactionInput) ([]*domain.Transaction, error) {
	return []*domain.Transaction{}, nil
}

func (stubTransactionService) Get(_ context.Context, id string) (*domain.Transaction, error) {
	return &domain.Transaction{ID: id}, nil
}

func (stubTransactionService) ListByHolder(context.Context, domain.TransactionFilter) ([]*domain.Transaction, error) {
	return []*domain.Transaction{}, nil
}

func (stubTransactionService) UpdateStatus(
	_ context.Context, id string, status domain.TransactionStatus, _ map[string]any,
) (*domain.Transaction, error) {
	return &domain.Transaction{ID: id, Status: status}, nil
}

func (stubTransactionService) Delete(context.Context, string) error {
	return nil
}

type stubBalanceService struct{}

func (stubBalanceService) Get(_ context.Context, holder domain.HolderRef, currency string) (*domain.Balance, error) {
	return &domain.Balance{Holder: holder, Currency: currency}, nil
}

func (stubBalanceService) List(context.Context, int, int) ([]*domain.Balance, error) {
	return []*domain.Balance{}, nil
}

func (stubBalanceService) States(context.Context, domain.HolderRef, string, int, int) ([]*domain.BalanceState, error) {
	return []*domain.BalanceState{}, nil
}

func (stubBalanceService) Recalculate(_ context.Context, holder domain.HolderRef, currency string) (*domain.Balance, error) {
	return &domain.Balance{Holder: holder, Currency: currency}, nil
}

type stubReconciliationService struct{}

func (stubReconciliationService) GenerateReconciliationReport(context.Context) (*usecase.ReconciliationReport, error) {
	return &usecase.ReconciliationReport{}, nil
}

type stubIdempotencyStore struct {
	checkCalled bool
}

func (s *stubIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, *usecase.IdempotentResponse, error) {
	s.checkCalled = true
	return true, nil, nil
}

func (s *stubIdempotencyStore) Complete(ctx context.Context, key string, resp usecase.IdempotentResponse, ttl time.Duration) error {
	return nil
}

func (s *stubIdempotencyStore) Release(ctx context.Context, key string) error {
	return nil
}
