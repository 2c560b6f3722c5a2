package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/txledger/internal/usecase"
)

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{name: "created", status: http.StatusCreated, level: "info"},
		{name: "insufficient funds", status: http.StatusUnprocessableEntity, level: "warn"},
		{name: "internal", status: http.StatusInternalServerError, level: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewLoggingMiddleware(zerolog.New(&buf)).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{}`))
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/transactions", nil))

			line := decodeLogLine(t, &buf)
			if line["level"] != tt.level {
				t.Fatalf("expected level %s, got %v", tt.level, line["level"])
			}
			if line["status"] != float64(tt.status) || line["bytes"] != float64(2) {
				t.Fatalf("unexpected status/bytes in %v", line)
			}
		})
	}
}

func TestLoggingMiddleware_FlagsReplay(t *testing.T) {
	var buf bytes.Buffer
	store := &fakeIdempotencyStore{}
	handler := NewLoggingMiddleware(zerolog.New(&buf)).Wrap(
		NewIdempotencyMiddleware(store).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)
	store.reserveFn = func(_ context.Context, _ string, _ time.Duration) (bool, *usecase.IdempotentResponse, error) {
		return false, &usecase.IdempotentResponse{Status: http.StatusCreated, Body: []byte(`{"id":"tx-1"}`)}, nil
	}

	handler.ServeHTTP(httptest.NewRecorder(), postWithKey("key-replay"))

	line := decodeLogLine(t, &buf)
	if line["replay"] != true || line["status"] != float64(http.StatusCreated) {
		t.Fatalf("expected replayed 201 to be flagged, got %v", line)
	}
}

func TestLoggingMiddleware_ImplicitOK(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(zerolog.New(&buf)).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	line := decodeLogLine(t, &buf)
	if line["status"] != float64(http.StatusOK) || line["replay"] != false {
		t.Fatalf("unexpected log line %v", line)
	}
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return line
}
