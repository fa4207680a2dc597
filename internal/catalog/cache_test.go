package catalog

import (
	"testing"
	"time"

	"moviescout/internal/domain"
)

func TestTTLCacheExpiresEntries(t *testing.T) {
	cache := newTTLCache[domain.DetailRecord](time.Minute, 10)
	now := time.Now()
	cache.set("detail:a", domain.DetailRecord{ID: "a"}, now)

	if record, ok := cache.get("detail:a", now.Add(30*time.Second)); !ok || record.ID != "a" {
		t.Fatalf("expected fresh entry, got %+v ok=%v", record, ok)
	}
	if _, ok := cache.get("detail:a", now.Add(time.Minute)); ok {
		t.Fatalf("expired entry must not be returned")
	}
	if cache.len() != 0 {
		t.Fatalf("expired entry must be removed on read")
	}
}

func TestTTLCacheTrimsOldestEntries(t *testing.T) {
	cache := newTTLCache[int](time.Hour, 2)
	now := time.Now()
	cache.set("a", 1, now)
	cache.set("b", 2, now.Add(time.Second))
	cache.set("c", 3, now.Add(2*time.Second))

	if cache.len() != 2 {
		t.Fatalf("len = %d, want 2", cache.len())
	}
	if _, ok := cache.get("a", now.Add(3*time.Second)); ok {
		t.Fatalf("oldest entry must be trimmed")
	}
}

func TestCacheKeysNormalizeInput(t *testing.T) {
	if hitsCacheKey("  Batman ") != hitsCacheKey("batman") {
		t.Fatalf("term keys must ignore case and padding")
	}
	if detailCacheKey(" tt0372784 ") != "detail:tt0372784" {
		t.Fatalf("unexpected detail key %q", detailCacheKey(" tt0372784 "))
	}
}

func TestCachedHitsAreCopies(t *testing.T) {
	svc := newTestService(t, &fakeSearch{}, &fakeDetail{})
	svc.storeHits(t.Context(), "q", []domain.SearchHit{{ID: "A"}})

	hits, ok := svc.cachedHits(t.Context(), "q")
	if !ok || len(hits) != 1 {
		t.Fatalf("expected cached hits, got %+v", hits)
	}
	hits[0].ID = "mutated"
	again, _ := svc.cachedHits(t.Context(), "q")
	if again[0].ID != "A" {
		t.Fatalf("cache must not alias returned slices")
	}
}
