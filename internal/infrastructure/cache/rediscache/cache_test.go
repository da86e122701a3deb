package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

func newTestCache(t *testing.T) (*ClassificationCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, nil), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cls := domain.Classification{
		Category:   domain.CategoryOffer,
		Confidence: 0.96,
		Reasoning:  "explicit offer",
	}
	cache.Set(ctx, "cls:abc", cls, time.Hour)

	got, ok := cache.Get(ctx, "cls:abc")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.Category != cls.Category || got.Confidence != cls.Confidence {
		t.Fatalf("unexpected cached verdict: %+v", got)
	}

	ttl := mr.TTL("cls:abc")
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected ttl: %v", ttl)
	}
}

func TestCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)
	if _, ok := cache.Get(context.Background(), "cls:missing"); ok {
		t.Fatalf("expected miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "cls:abc", domain.FallbackClassification(), time.Minute)
	mr.FastForward(2 * time.Minute)

	if _, ok := cache.Get(ctx, "cls:abc"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestCacheDropsCorruptEntries(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	if err := mr.Set("cls:abc", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok := cache.Get(ctx, "cls:abc"); ok {
		t.Fatalf("corrupt entry must read as a miss")
	}
	if mr.Exists("cls:abc") {
		t.Fatalf("corrupt entry must be deleted")
	}
}

func TestCacheSurvivesRedisOutage(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	mr.Close()

	cache.Set(ctx, "cls:abc", domain.FallbackClassification(), time.Minute)
	if _, ok := cache.Get(ctx, "cls:abc"); ok {
		t.Fatalf("outage must degrade to a miss")
	}
}
