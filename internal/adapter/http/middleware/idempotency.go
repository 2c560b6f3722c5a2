package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/iho/txledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	replayHeader         = "X-Idempotency-Replay"
	idempotencyTTL       = 24 * time.Hour
	// processingTTL bounds how long an abandoned claim blocks retries of
	// the same key.
	processingTTL = 30 * time.Second
)

// IdempotencyMiddleware replays the first successful response of a
// mutating request carrying an Idempotency-Key. Failed responses release
// the key so a corrected request can be retried with it.
type IdempotencyMiddleware struct {
	store usecase.IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{store: store, ttl: idempotencyTTL}
}

// WithTTL sets how long a stored response is replayed.
func (m *IdempotencyMiddleware) WithTTL(ttl time.Duration) *IdempotencyMiddleware {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		key = r.Method + ":" + r.URL.Path + ":" + key

		claimed, stored, err := m.store.Reserve(r.Context(), key, processingTTL)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "idempotency check failed")
			return
		}

		if !claimed {
			if stored == nil {
				writeJSONError(w, http.StatusConflict, "request with this idempotency key is in progress")
				return
			}

			replay(w, stored)
			return
		}

		// The claim must not outlive a failed or panicking handler.
		completed := false
		defer func() {
			if !completed {
				_ = m.store.Release(context.WithoutCancel(r.Context()), key)
			}
		}()

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode >= 200 && recorder.statusCode < 300 {
			resp := usecase.IdempotentResponse{Status: recorder.statusCode, Body: recorder.body.Bytes()}
			completed = m.store.Complete(context.WithoutCancel(r.Context()), key, resp, m.ttl) == nil
		}
	})
}

func replay(w http.ResponseWriter, stored *usecase.IdempotentResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(replayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
