package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// Set TEST_REDIS_URL to run against a scratch Redis database.
func testRedis(t *testing.T) *Redis {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	r, err := New(url)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Ping(context.Background()); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestAcquireRelease(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	key := "popcornguide:test:lock"
	_ = Del(ctx, r, key)

	lock, err := Acquire(ctx, r, key, time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := Acquire(ctx, r, key, time.Minute); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked, got %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := Acquire(ctx, r, key, time.Minute)
	if err != nil {
		t.Fatalf("Expected the lock to be free after Release, got %v", err)
	}
	if err := again.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestHistory(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	key := "popcornguide:test:history"
	_ = Del(ctx, r, key)
	t.Cleanup(func() { _ = Del(context.Background(), r, key) })

	type entry struct {
		N int `json:"n"`
	}
	for i := 0; i < HistoryLimit+5; i++ {
		if err := PushHistory(ctx, r, key, entry{N: i}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := History[entry](ctx, r, key, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].N != HistoryLimit+4 {
		t.Errorf("Expected newest first, got %v", got)
	}
	all, err := History[entry](ctx, r, key, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != HistoryLimit {
		t.Errorf("Expected %d entries kept, got %d", HistoryLimit, len(all))
	}
}

func TestGetMissingKey(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	key := "popcornguide:test:missing"
	_ = Del(ctx, r, key)

	_, ok, err := Get[map[string]int](ctx, r, key)
	if err != nil || ok {
		t.Errorf("Expected a clean miss, got ok=%v err=%v", ok, err)
	}
	if err := Set(ctx, r, key, map[string]int{"a": 1}, time.Minute); err != nil {
		t.Fatal(err)
	}
	v, ok, err := Get[map[string]int](ctx, r, key)
	if err != nil || !ok || v["a"] != 1 {
		t.Errorf("unexpected read: %v %v %v", v, ok, err)
	}
	_ = Del(ctx, r, key)
}
