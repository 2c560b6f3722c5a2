package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultSequenceKey holds the batch id counter.
const DefaultSequenceKey = "ledger:batch:seq"

// Sequencer implements usecase.BatchSequencer with INCR, so every process
// sharing the Redis instance draws from one sequence.
type Sequencer struct {
	client *redis.Client
	key    string
}

// NewSequencer creates a Sequencer on DefaultSequenceKey.
func NewSequencer(client *redis.Client) *Sequencer {
	return &Sequencer{client: client, key: DefaultSequenceKey}
}

// WithKey overrides the counter key.
func (s *Sequencer) WithKey(key string) *Sequencer {
	s.key = key
	return s
}

// Next returns the next batch id.
func (s *Sequencer) Next(ctx context.Context) (int64, error) {
	id, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", s.key, err)
	}

	return id, nil
}
