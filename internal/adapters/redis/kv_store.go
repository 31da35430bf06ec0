package redis

// Package redis provides Redis-based adapters for the gateway.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a generic TTL-keyed byte store backed by Redis. It gives the
// spec cache (component D) a second tier shared across gateway replicas, so
// a cold start on one replica doesn't force a backend spec fetch that a
// sibling replica already paid for.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// NewStore creates a new Redis-backed Store.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Set stores value under key with the given TTL. A zero TTL stores the value
// without expiration; the TTL is passed to go-redis unchanged.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	return s.client.Set(ctx, s.prefix+key, value, ttl).Err()
}

// Get retrieves the value stored under key. Returns ErrNotFound if absent
// or expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Delete removes the value stored under key, if any.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+key).Err()
}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

// ErrNotFound is returned when a key is not present (or has expired).
var ErrNotFound error = notFoundError{}
