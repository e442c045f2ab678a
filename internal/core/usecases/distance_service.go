package usecases

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lukashofer/reisekosten/internal/core/domain"
	"github.com/lukashofer/reisekosten/internal/core/ports"
	"github.com/lukashofer/reisekosten/internal/pkg/metrics"
)

// DistanceFunc computes the great-circle distance in km between two points.
// It must be pure and deterministic; the cache invariants depend on it.
type DistanceFunc func(a, b domain.GeoPoint) float64

// DistanceService resolves distances through a two-tier cache: a valkey hot
// tier in front of the durable Postgres cache, with the calculator as ground
// truth. Either tier being unreachable degrades to direct computation; the
// cache is an optimization, never a correctness dependency.
type DistanceService struct {
	calc   DistanceFunc
	cache  ports.DistanceCacheRepository
	hot    ports.CacheService
	ttl    time.Duration
	hotTTL int
}

// NewDistanceService creates a new DistanceService. cache and hot may be nil;
// the service then computes directly.
func NewDistanceService(calc DistanceFunc, cache ports.DistanceCacheRepository, hot ports.CacheService, ttl time.Duration, hotTTLSeconds int) *DistanceService {
	return &DistanceService{calc: calc, cache: cache, hot: hot, ttl: ttl, hotTTL: hotTTLSeconds}
}

func hotKey(canonicalKey string) string {
	return "dist:" + canonicalKey
}

// Distance returns the distance in km between a and b, and whether it was
// served from cache. Concurrent misses for the same pair may both compute and
// both write; the stored values are bit-identical, so no coordination is
// needed.
func (s *DistanceService) Distance(ctx context.Context, a, b domain.GeoPoint, useCache bool) (float64, bool, error) {
	if err := a.Validate(); err != nil {
		return 0, false, err
	}
	if err := b.Validate(); err != nil {
		return 0, false, err
	}

	key := domain.CacheKey(a, b)
	now := time.Now().UTC()

	if useCache {
		if entry := s.lookup(ctx, key, now); entry != nil {
			return entry.DistanceKm, true, nil
		}
	}

	// Canonicalize before computing so cached and fresh results for the same
	// key are bit-identical.
	ca, cb := domain.CanonicalPair(a, b)
	km := s.calc(ca, cb)

	s.store(ctx, &domain.DistanceCacheEntry{
		Key:        key,
		Origin:     ca,
		Dest:       cb,
		DistanceKm: km,
		ComputedAt: now,
		ExpiresAt:  now.Add(s.ttl),
	})

	return km, false, nil
}

// lookup checks the hot tier, then the durable cache. Returns nil on miss,
// expiry, or store failure.
func (s *DistanceService) lookup(ctx context.Context, key string, now time.Time) *domain.DistanceCacheEntry {
	if s.hot != nil {
		if data, err := s.hot.Get(ctx, hotKey(key)); err == nil {
			var entry domain.DistanceCacheEntry
			if err := json.Unmarshal(data, &entry); err == nil && entry.Live(now) {
				metrics.CacheHits.WithLabelValues("hot").Inc()
				return &entry
			}
		}
		metrics.CacheMisses.WithLabelValues("hot").Inc()
	}

	if s.cache == nil {
		return nil
	}

	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		// Fail open: the miss path computes directly.
		slog.Warn("distance cache unreachable, computing directly", "key", key, "error", err)
		metrics.CacheFailOpen.Inc()
		return nil
	}
	if entry == nil || !entry.Live(now) {
		metrics.CacheMisses.WithLabelValues("durable").Inc()
		return nil
	}

	metrics.CacheHits.WithLabelValues("durable").Inc()
	s.backfillHot(ctx, entry)
	return entry
}

// store upserts the durable entry and backfills the hot tier. Both writes are
// best-effort; a failed write only costs a recomputation later.
func (s *DistanceService) store(ctx context.Context, entry *domain.DistanceCacheEntry) {
	if s.cache != nil {
		if err := s.cache.Upsert(ctx, entry); err != nil {
			slog.Warn("distance cache write failed", "key", entry.Key, "error", err)
			metrics.CacheFailOpen.Inc()
			return
		}
	}
	s.backfillHot(ctx, entry)
}

func (s *DistanceService) backfillHot(ctx context.Context, entry *domain.DistanceCacheEntry) {
	if s.hot == nil {
		return
	}
	if data, err := json.Marshal(entry); err == nil {
		_ = s.hot.Set(ctx, hotKey(entry.Key), data, s.hotTTL)
	}
}
