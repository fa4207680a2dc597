package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"moviescout/internal/domain"
	"moviescout/internal/metrics"
)

const (
	defaultCacheTTL        = 30 * time.Minute
	defaultCacheMaxEntries = 2000
)

type cacheEntry[T any] struct {
	value     T
	updatedAt time.Time
	expiresAt time.Time
}

// ttlCache is a bounded in-memory cache. Entries past expiresAt are never returned.
type ttlCache[T any] struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry[T]
	ttl        time.Duration
	maxEntries int
}

func newTTLCache[T any](ttl time.Duration, maxEntries int) *ttlCache[T] {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	return &ttlCache[T]{
		entries:    make(map[string]*cacheEntry[T]),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (c *ttlCache[T]) get(key string, now time.Time) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !now.Before(entry.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return entry.value, true
}

func (c *ttlCache[T]) set(key string, value T, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry[T]{
		value:     value,
		updatedAt: now,
		expiresAt: now.Add(c.ttl),
	}
	c.trimLocked(now)
}

func (c *ttlCache[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ttlCache[T]) trimLocked(now time.Time) {
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cacheEntry[T]
	}
	items := make([]pair, 0, len(c.entries))
	for key, entry := range c.entries {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-c.maxEntries; i++ {
		delete(c.entries, items[i].key)
	}
}

func hitsCacheKey(term string) string {
	return "hits:" + strings.ToLower(strings.TrimSpace(term))
}

func detailCacheKey(id string) string {
	return "detail:" + strings.TrimSpace(id)
}

func (s *Service) cachedHits(ctx context.Context, term string) ([]domain.SearchHit, bool) {
	if s.cacheDisabled {
		return nil, false
	}
	key := hitsCacheKey(term)
	now := s.now()
	if hits, ok := s.hitCache.get(key, now); ok {
		metrics.CacheHitsTotal.WithLabelValues(capabilitySearch).Inc()
		return cloneHits(hits), true
	}
	if s.redisCache != nil {
		var hits []domain.SearchHit
		found, err := s.redisCache.Get(ctx, key, &hits)
		if err != nil {
			slog.Debug("redis cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		if found {
			metrics.CacheHitsTotal.WithLabelValues(capabilitySearch).Inc()
			s.hitCache.set(key, cloneHits(hits), now)
			return hits, true
		}
	}
	metrics.CacheMissesTotal.WithLabelValues(capabilitySearch).Inc()
	return nil, false
}

func (s *Service) storeHits(ctx context.Context, term string, hits []domain.SearchHit) {
	if s.cacheDisabled {
		return
	}
	key := hitsCacheKey(term)
	s.hitCache.set(key, cloneHits(hits), s.now())
	if s.redisCache != nil {
		if err := s.redisCache.Set(ctx, key, hits, s.hitCache.ttl); err != nil {
			slog.Debug("redis cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

func (s *Service) cachedDetail(ctx context.Context, id string) (domain.DetailRecord, bool) {
	if s.cacheDisabled {
		return domain.DetailRecord{}, false
	}
	key := detailCacheKey(id)
	now := s.now()
	if record, ok := s.detailCache.get(key, now); ok {
		metrics.CacheHitsTotal.WithLabelValues(capabilityDetail).Inc()
		return record, true
	}
	if s.redisCache != nil {
		var record domain.DetailRecord
		found, err := s.redisCache.Get(ctx, key, &record)
		if err != nil {
			slog.Debug("redis cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		if found && record.ID != "" {
			metrics.CacheHitsTotal.WithLabelValues(capabilityDetail).Inc()
			s.detailCache.set(key, record, now)
			return record, true
		}
	}
	metrics.CacheMissesTotal.WithLabelValues(capabilityDetail).Inc()
	return domain.DetailRecord{}, false
}

func (s *Service) storeDetail(ctx context.Context, id string, record domain.DetailRecord) {
	if s.cacheDisabled {
		return
	}
	key := detailCacheKey(id)
	s.detailCache.set(key, record, s.now())
	if s.redisCache != nil {
		if err := s.redisCache.Set(ctx, key, record, s.detailCache.ttl); err != nil {
			slog.Debug("redis cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

func cloneHits(hits []domain.SearchHit) []domain.SearchHit {
	if hits == nil {
		return nil
	}
	return append([]domain.SearchHit(nil), hits...)
}
