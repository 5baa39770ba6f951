package statscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

// creates a cache connected to miniredis for testing
func newMini(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	c, err := New(ctx, mr.Addr(), time.Minute, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestPutGet_RoundTrip(t *testing.T) {
	c, _ := newMini(t)
	ctx := context.Background()

	key := Key("summary", "microsoft", "")
	if _, ok := c.Get(ctx, key); ok {
		t.Fatalf("unexpected hit on empty cache")
	}

	c.Put(ctx, key, []byte(`{"total":42}`))
	body, ok := c.Get(ctx, key)
	if !ok {
		t.Fatalf("expected hit after Put")
	}
	if string(body) != `{"total":42}` {
		t.Fatalf("body=%s", body)
	}
}

func TestGet_FallsBackToRedisWhenMemoryCold(t *testing.T) {
	c, mr := newMini(t)
	ctx := context.Background()

	key := Key("top", "google", "count:5")
	c.Put(ctx, key, []byte("rows"))
	c.mem.Purge() // simulate a fresh process against a warm redis

	body, ok := c.Get(ctx, key)
	if !ok || string(body) != "rows" {
		t.Fatalf("redis tier miss: ok=%v body=%s", ok, body)
	}
	if !mr.Exists(key) {
		t.Fatalf("key missing from redis")
	}
}

func TestInvalidate_DropsOnlyStatsKeys(t *testing.T) {
	c, mr := newMini(t)
	ctx := context.Background()

	c.Put(ctx, Key("summary", "microsoft", ""), []byte("a"))
	c.Put(ctx, Key("top", "google", "area:10"), []byte("b"))
	if err := mr.Set("unrelated:key", "keep"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, ok := c.Get(ctx, Key("summary", "microsoft", "")); ok {
		t.Fatalf("stats key survived invalidation")
	}
	if !mr.Exists("unrelated:key") {
		t.Fatalf("invalidation must not touch non-stats keys")
	}
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(context.Background(), "", time.Minute, 16); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestTTL_IsApplied(t *testing.T) {
	c, mr := newMini(t)
	ctx := context.Background()

	key := Key("summary", "google", "")
	c.Put(ctx, key, []byte("x"))

	mr.FastForward(2 * time.Minute)
	c.mem.Purge()
	if _, ok := c.Get(ctx, key); ok {
		t.Fatalf("entry must expire after the ttl")
	}
}
