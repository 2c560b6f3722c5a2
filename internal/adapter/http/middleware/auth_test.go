package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/txledger/internal/infrastructure/auth"
	"github.com/iho/txledger/internal/infrastructure/metrics"
)

func TestAuthMiddleware(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Minute)
	viewerToken, err := manager.Generate("dashboard", auth.RoleViewer)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	operatorToken, err := manager.Generate("billing", auth.RoleOperator)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	protected := AuthMiddleware(manager, nil)(RequireRole(auth.RoleOperator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims.Subject != "billing" {
			t.Errorf("expected billing claims in context, got %+v", claims)
		}
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "role too low", header: "Bearer " + viewerToken, want: http.StatusForbidden},
		{name: "allowed", header: "Bearer " + operatorToken, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			protected.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole(auth.RoleViewer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthMiddlewareCountsFailures(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	manager := auth.NewJWTManager("secret", time.Minute)
	protected := AuthMiddleware(manager, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []string{"", "Bearer nope", "Bearer nope"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		protected.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(m.AuthFailures.WithLabelValues("missing_header")); got != 1 {
		t.Fatalf("expected 1 missing header failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.AuthFailures.WithLabelValues("invalid_token")); got != 2 {
		t.Fatalf("expected 2 invalid token failures, got %v", got)
	}
}
