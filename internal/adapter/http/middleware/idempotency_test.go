package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	redisRepo "github.com/iho/txledger/internal/adapter/repository/redis"
	"github.com/iho/txledger/internal/usecase"
)

type fakeIdempotencyStore struct {
	reserveFn  func(ctx context.Context, key string, ttl time.Duration) (bool, *usecase.IdempotentResponse, error)
	completeFn func(ctx context.Context, key string, resp usecase.IdempotentResponse, ttl time.Duration) error
	released   []string
}

func (f *fakeIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, *usecase.IdempotentResponse, error) {
	if f.reserveFn != nil {
		return f.reserveFn(ctx, key, ttl)
	}
	return true, nil, nil
}

func (f *fakeIdempotencyStore) Complete(ctx context.Context, key string, resp usecase.IdempotentResponse, ttl time.Duration) error {
	if f.completeFn != nil {
		return f.completeFn(ctx, key, resp, ttl)
	}
	return nil
}

func (f *fakeIdempotencyStore) Release(_ context.Context, key string) error {
	f.released = append(f.released, key)
	return nil
}

func postWithKey(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", bytes.NewBufferString(`{}`))
	req.Header.Set(IdempotencyKeyHeader, key)
	return req
}

func TestIdempotencyMiddleware_StoreErrorFailsRequest(t *testing.T) {
	var called bool
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, *usecase.IdempotentResponse, error) {
			return false, nil, context.DeadlineExceeded
		},
	}
	rr := httptest.NewRecorder()

	NewIdempotencyMiddleware(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, postWithKey("key-err"))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReleasesKeyOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "unprocessable", status: http.StatusUnprocessableEntity},
		{name: "conflict", status: http.StatusConflict},
		{name: "internal", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var completed bool
			store := &fakeIdempotencyStore{
				completeFn: func(ctx context.Context, key string, resp usecase.IdempotentResponse, ttl time.Duration) error {
					completed = true
					return nil
				},
			}

			NewIdempotencyMiddleware(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})).ServeHTTP(httptest.NewRecorder(), postWithKey("key-fail"))

			if completed {
				t.Fatalf("expected error responses not to be stored")
			}
			if len(store.released) != 1 || store.released[0] != "POST:/api/v1/transactions:key-fail" {
				t.Fatalf("expected key to be released, got %v", store.released)
			}
		})
	}
}

func TestIdempotencyMiddleware_ReleasesKeyOnPanic(t *testing.T) {
	store := &fakeIdempotencyStore{}
	handler := Recovery(zerolog.Nop())(NewIdempotencyMiddleware(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, postWithKey("key-panic"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if len(store.released) != 1 {
		t.Fatalf("expected key to be released after panic, got %v", store.released)
	}
}

func TestIdempotencyMiddleware_ReleasesKeyWhenCompleteFails(t *testing.T) {
	store := &fakeIdempotencyStore{
		completeFn: func(ctx context.Context, key string, resp usecase.IdempotentResponse, ttl time.Duration) error {
			return context.DeadlineExceeded
		},
	}

	NewIdempotencyMiddleware(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})).ServeHTTP(httptest.NewRecorder(), postWithKey("key-lost"))

	if len(store.released) != 1 {
		t.Fatalf("expected key to be released, got %v", store.released)
	}
}

func TestIdempotencyMiddleware_SkipsNonMutatingRequests(t *testing.T) {
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, *usecase.IdempotentResponse, error) {
			t.Fatalf("store should not be consulted for GET")
			return false, nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balances", nil)
	req.Header.Set(IdempotencyKeyHeader, "key-get")

	called := false
	NewIdempotencyMiddleware(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Fatalf("expected next handler to be called")
	}
}

func TestIdempotencyMiddleware_ReplaysStoredResponse(t *testing.T) {
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, *usecase.IdempotentResponse, error) {
			return false, &usecase.IdempotentResponse{Status: http.StatusCreated, Body: []byte(`{"id":"tx-1"}`)}, nil
		},
	}
	rr := httptest.NewRecorder()

	NewIdempotencyMiddleware(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called on replay")
	})).ServeHTTP(rr, postWithKey("key-201"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected replayed status 201, got %d", rr.Code)
	}
	if rr.Header().Get("X-Idempotency-Replay") != "true" {
		t.Fatalf("expected X-Idempotency-Replay header to be set")
	}
	if got := rr.Body.String(); got != `{"id":"tx-1"}` {
		t.Fatalf("unexpected replayed body: %s", got)
	}
	if len(store.released) != 0 {
		t.Fatalf("replay must not release the key, got %v", store.released)
	}
}

func TestIdempotencyMiddleware_RejectsInFlightDuplicate(t *testing.T) {
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, *usecase.IdempotentResponse, error) {
			return false, nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/transactions/tx-1/status", bytes.NewBufferString(`{}`))
	req.Header.Set(IdempotencyKeyHeader, "key-dup")
	rr := httptest.NewRecorder()

	NewIdempotencyMiddleware(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run while the first request is in flight")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ScopesKeyByRoute(t *testing.T) {
	var seen string
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, *usecase.IdempotentResponse, error) {
			seen = key
			return true, nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/transactions/tx-9", nil)
	req.Header.Set(IdempotencyKeyHeader, "abc")

	NewIdempotencyMiddleware(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(httptest.NewRecorder(), req)

	if seen != "DELETE:/api/v1/transactions/tx-9:abc" {
		t.Fatalf("unexpected scoped key %q", seen)
	}
}

func TestIdempotencyMiddleware_StoresSuccessfulResponse(t *testing.T) {
	var (
		stored      usecase.IdempotentResponse
		claimTTL    time.Duration
		responseTTL time.Duration
	)
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, *usecase.IdempotentResponse, error) {
			claimTTL = ttl
			return true, nil, nil
		},
		completeFn: func(ctx context.Context, key string, resp usecase.IdempotentResponse, ttl time.Duration) error {
			stored = resp
			responseTTL = ttl
			return nil
		},
	}
	rr := httptest.NewRecorder()

	NewIdempotencyMiddleware(store).WithTTL(time.Hour).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})).ServeHTTP(rr, postWithKey("key-456"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}
	if stored.Status != http.StatusCreated || string(stored.Body) != `{"ok":true}` {
		t.Fatalf("unexpected stored response %+v", stored)
	}
	if claimTTL != processingTTL || responseTTL != time.Hour {
		t.Fatalf("expected claim=%s response=1h, got %s and %s", processingTTL, claimTTL, responseTTL)
	}
	if len(store.released) != 0 {
		t.Fatalf("stored response must not be released, got %v", store.released)
	}
}

func TestIdempotencyMiddleware_RetryAfterFailureWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	statuses := []int{http.StatusUnprocessableEntity, http.StatusCreated}
	handler := NewIdempotencyMiddleware(redisRepo.NewIdempotencyStore(client)).Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(statuses[calls])
			calls++
		}),
	)

	want := []struct {
		status int
		calls  int
	}{
		{status: http.StatusUnprocessableEntity, calls: 1},
		{status: http.StatusCreated, calls: 2},
		{status: http.StatusCreated, calls: 2},
	}
	for i, w := range want {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, postWithKey("retry-key"))

		if rr.Code != w.status || calls != w.calls {
			t.Fatalf("attempt %d: expected status=%d calls=%d, got status=%d calls=%d",
				i+1, w.status, w.calls, rr.Code, calls)
		}
	}
}
