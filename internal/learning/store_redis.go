package learning

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps patterns and selector records in two Redis hashes
type RedisStore struct {
	client       *redis.Client
	patternsKey  string
	selectorsKey string
}

// NewRedisStore creates a store using hashes <prefix>:patterns and
// <prefix>:selectors.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "scout"
	}
	return &RedisStore{
		client:       client,
		patternsKey:  prefix + ":patterns",
		selectorsKey: prefix + ":selectors",
	}
}

// Load reads both hashes
func (s *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	data := newSnapshot()

	patterns, err := s.client.HGetAll(ctx, s.patternsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}
	for id, raw := range patterns {
		var p ErrorPattern
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to decode pattern %s: %w", id, err)
		}
		data.Patterns[id] = &p
	}

	selectors, err := s.client.HGetAll(ctx, s.selectorsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load selectors: %w", err)
	}
	for key, raw := range selectors {
		var r SelectorRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("failed to decode selector %s: %w", key, err)
		}
		data.Selectors[key] = &r
	}

	return data, nil
}

// SavePattern writes one pattern field
func (s *RedisStore) SavePattern(ctx context.Context, pattern *ErrorPattern) error {
	body, err := json.Marshal(pattern)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.patternsKey, pattern.ErrorID, body).Err()
}

// DeletePatterns removes pattern fields
func (s *RedisStore) DeletePatterns(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.client.HDel(ctx, s.patternsKey, ids...).Err()
}

// SaveSelector writes one selector field
func (s *RedisStore) SaveSelector(ctx context.Context, record *SelectorRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.selectorsKey, selectorKey(record.Field, record.Selector), body).Err()
}

// Close does nothing; the client is shared with the publisher and closed there
func (s *RedisStore) Close() error { return nil }
