package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/txledger/internal/usecase"
)

const inFlightMarker = "in-flight"

// IdempotencyStore keeps idempotency claims and replayable responses in
// Redis. A key holds either the in-flight marker or a JSON envelope.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: "idempotency:",
	}
}

// Reserve claims key with SETNX. A lost race reads back whatever the winner
// stored.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, *usecase.IdempotentResponse, error) {
	fullKey := s.prefix + key

	claimed, err := s.client.SetNX(ctx, fullKey, inFlightMarker, ttl).Result()
	if err != nil {
		return false, nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if claimed {
		return true, nil, nil
	}

	raw, err := s.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Released or expired between SETNX and GET; the holder is gone
		// but the caller lost the race, so report it as still in flight.
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("read idempotency key: %w", err)
	}
	if string(raw) == inFlightMarker {
		return false, nil, nil
	}

	var resp usecase.IdempotentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false, nil, fmt.Errorf("decode idempotent response: %w", err)
	}

	return false, &resp, nil
}

// Complete stores the final response, replacing the in-flight marker.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp usecase.IdempotentResponse, ttl time.Duration) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode idempotent response: %w", err)
	}

	return s.client.Set(ctx, s.prefix+key, payload, ttl).Err()
}

// Release deletes the claim. Only the in-flight marker is removed so a
// stored response is never dropped by a late release.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, s.client, []string{s.prefix + key}, inFlightMarker).Err()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
