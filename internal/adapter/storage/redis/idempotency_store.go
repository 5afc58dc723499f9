package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

const inProgressMarker = "__in_progress__"

// IdempotencyStore implements ports.IdempotencyStore using Redis.
type IdempotencyStore struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyStore creates a new Redis-backed idempotency store.
func NewIdempotencyStore(client *goredis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: "wlg:idempotency:",
	}
}

// Reserve claims key with an in-progress marker. It returns false if the key is already taken.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, inProgressMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency reserve: %w", err)
	}
	return ok, nil
}

// Get returns the stored response for key, or inProgress while the original request runs.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*domain.IdempotentResponse, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis idempotency get: %w", err)
	}
	if string(val) == inProgressMarker {
		return nil, true, nil
	}

	var resp domain.IdempotentResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, false, fmt.Errorf("decode idempotent response: %w", err)
	}
	return &resp, false, nil
}

// Save replaces the in-progress marker with the final response.
func (s *IdempotencyStore) Save(ctx context.Context, key string, resp *domain.IdempotentResponse, ttl time.Duration) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode idempotent response: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}

// Release drops the key so the request may be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis idempotency release: %w", err)
	}
	return nil
}
