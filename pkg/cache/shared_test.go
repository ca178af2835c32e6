package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestSharedStore_GetSetDelete(t *testing.T) {
	redisClient := setupTestRedis(t)
	shared := NewSharedStore(redisClient, time.Minute)
	ctx := context.Background()

	if _, err := shared.Get(ctx, "missing"); err != ErrSharedMiss {
		t.Errorf("Get(missing) error = %v, want ErrSharedMiss", err)
	}

	if err := shared.Set(ctx, "k1", []byte("payload")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := shared.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Payload = %q, want %q", got, "payload")
	}

	if err := shared.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := shared.Get(ctx, "k1"); err != ErrSharedMiss {
		t.Errorf("Get after delete error = %v, want ErrSharedMiss", err)
	}
}

func TestSharedStore_TTL(t *testing.T) {
	redisClient := setupTestRedis(t)
	shared := NewSharedStore(redisClient, time.Second)
	ctx := context.Background()

	if err := shared.Set(ctx, "short", []byte("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ttl, err := redisClient.TTL(ctx, redisKey("short")).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Second {
		t.Errorf("Redis TTL = %v, want (0, 1s]", ttl)
	}
}

func TestSharedStore_CorruptEntry(t *testing.T) {
	redisClient := setupTestRedis(t)
	shared := NewSharedStore(redisClient, time.Minute)
	ctx := context.Background()

	if err := redisClient.Set(ctx, redisKey("bad"), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	_, err := shared.Get(ctx, "bad")
	if err == nil || err == ErrSharedMiss {
		t.Errorf("Get(corrupt) error = %v, want invalid entry error", err)
	}
}
