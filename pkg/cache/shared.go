package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrSharedMiss indicates the requested key was not found in the shared tier
	ErrSharedMiss = errors.New("shared cache miss")

	// ErrInvalidEntry indicates the shared cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// SharedEntry is the serialized form of a payload in the shared tier.
type SharedEntry struct {
	// Payload is the response body
	Payload []byte `json:"payload"`

	// StoredAt is when the payload was written
	StoredAt time.Time `json:"stored_at"`
}

// SharedStore is an optional second cache tier backed by Redis, shared across
// process instances. Expiry is delegated to Redis key TTLs; the in-memory
// Store remains the authoritative first tier.
type SharedStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSharedStore creates a shared store with the given TTL for new entries.
func NewSharedStore(redisClient *redis.Client, ttl time.Duration) *SharedStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SharedStore{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Get retrieves a payload by key.
// Returns ErrSharedMiss if the key doesn't exist.
func (s *SharedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			SharedMisses.Inc()
			return nil, ErrSharedMiss
		}
		SharedErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry SharedEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		SharedErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	SharedHits.Inc()
	return entry.Payload, nil
}

// Set stores a payload under key with the store's TTL. Redis removes the key
// when the TTL elapses.
func (s *SharedStore) Set(ctx context.Context, key string, payload []byte) error {
	entry := SharedEntry{
		Payload:  payload,
		StoredAt: time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		SharedErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal shared entry: %w", err)
	}

	if err := s.redis.Set(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		SharedErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a payload by key.
func (s *SharedStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, redisKey(key)).Err(); err != nil {
		SharedErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// redisKey namespaces fingerprints in the shared keyspace.
func redisKey(key string) string {
	return "fetch:shared:" + key
}
