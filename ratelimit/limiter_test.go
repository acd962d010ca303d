package ratelimit

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/goliatone/go-reveal/core"
)

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, stderrors.New("connection refused")
}

func TestLimiter_RejectsAfterLimitAndResetsNextWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	limiter := NewLimiter(store, 2, time.Minute)
	limiter.Now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if decision := limiter.Allow(context.Background(), "10.0.0.1"); !decision.Allowed {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}
	decision := limiter.Allow(context.Background(), "10.0.0.1")
	if decision.Allowed {
		t.Fatalf("expected third request to be rejected")
	}
	if decision.RetryAfter != 50*time.Second || decision.Remaining != 0 {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if other := limiter.Allow(context.Background(), "10.0.0.2"); !other.Allowed {
		t.Fatalf("expected independent keys")
	}

	now = now.Add(time.Minute)
	if decision := limiter.Allow(context.Background(), "10.0.0.1"); !decision.Allowed || decision.Remaining != 1 {
		t.Fatalf("expected window reset, got %+v", decision)
	}
}

func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	limiter := NewLimiter(failingStore{}, 1, time.Minute)
	for i := 0; i < 3; i++ {
		if decision := limiter.Allow(context.Background(), "k"); !decision.Allowed {
			t.Fatalf("expected fail open on store error")
		}
	}
}

func TestThrottledError_ToServiceError(t *testing.T) {
	mapped := ThrottledError{Key: "10.0.0.1", RetryAfter: 3 * time.Second}.ToServiceError()
	if mapped.TextCode != core.ErrorRateLimited {
		t.Fatalf("expected %q text code, got %q", core.ErrorRateLimited, mapped.TextCode)
	}
	if mapped.Code != 429 {
		t.Fatalf("expected status code 429, got %d", mapped.Code)
	}
}

func TestMemoryStore_SweepsExpiredBucketsOncePerInterval(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	store := NewMemoryStore()
	store.SweepInterval = 10 * time.Second
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := store.Increment(ctx, "a", time.Second); err != nil {
		t.Fatalf("increment: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := store.Increment(ctx, "b", time.Second); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if _, ok := store.items["a"]; !ok {
		t.Fatalf("expected expired bucket to survive until the next sweep")
	}

	count, err := store.Increment(ctx, "a", time.Second)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected expired bucket to restart its window, got count %d", count)
	}

	now = now.Add(10 * time.Second)
	if _, err := store.Increment(ctx, "c", time.Second); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if _, ok := store.items["a"]; ok {
		t.Fatalf("expected expired bucket a to be swept")
	}
	if _, ok := store.items["b"]; ok {
		t.Fatalf("expected expired bucket b to be swept")
	}
}

func TestConnect_ParsesURLAndAddress(t *testing.T) {
	client, err := Connect("redis://localhost:6380/2")
	if err != nil {
		t.Fatalf("connect url: %v", err)
	}
	defer client.Close()
	if client.Options().Addr != "localhost:6380" || client.Options().DB != 2 {
		t.Fatalf("unexpected options %+v", client.Options())
	}

	plain, err := Connect("cache:6379")
	if err != nil {
		t.Fatalf("connect addr: %v", err)
	}
	defer plain.Close()
	if plain.Options().Addr != "cache:6379" {
		t.Fatalf("unexpected addr %q", plain.Options().Addr)
	}

	if _, err := Connect(" "); err == nil {
		t.Fatalf("expected empty url error")
	}
}

func TestRedisStore_Increment(t *testing.T) {
	redisURL := os.Getenv("REVEAL_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("REVEAL_TEST_REDIS_URL not set")
	}
	client, err := Connect(redisURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	store := NewRedisStore(client)
	bucket := fmt.Sprintf("reveal:test:%d", time.Now().UnixNano())
	defer client.Del(context.Background(), bucket)
	for want := int64(1); want <= 3; want++ {
		got, err := store.Increment(context.Background(), bucket, time.Minute)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}
	ttl, err := client.PTTL(context.Background(), bucket).Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %s", ttl)
	}
}
