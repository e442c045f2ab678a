package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/lukashofer/reisekosten/internal/core/domain"
	"github.com/lukashofer/reisekosten/internal/core/ports"
	"github.com/lukashofer/reisekosten/internal/pkg/metrics"
)

// MaintenanceService runs targeted invalidation and expiry cleanup against
// the distance cache. It never touches the calculation path; a calculation
// racing a delete simply observes a miss and recomputes.
type MaintenanceService struct {
	cache     ports.DistanceCacheRepository
	hot       ports.CacheService
	audit     ports.AuditRepository
	locations ports.LocationRepository
	events    ports.EventPublisher
}

// NewMaintenanceService creates a new MaintenanceService. hot and events may
// be nil.
func NewMaintenanceService(
	cache ports.DistanceCacheRepository,
	hot ports.CacheService,
	audit ports.AuditRepository,
	locations ports.LocationRepository,
	events ports.EventPublisher,
) *MaintenanceService {
	return &MaintenanceService{
		cache:     cache,
		hot:       hot,
		audit:     audit,
		locations: locations,
		events:    events,
	}
}

// InvalidateByLocation deletes every cache entry whose key includes the given
// location, matched at key precision. Returns the number of entries deleted.
func (s *MaintenanceService) InvalidateByLocation(ctx context.Context, loc domain.GeoPoint) (int, error) {
	if err := loc.Validate(); err != nil {
		return 0, err
	}

	keys, err := s.cache.DeleteByLocation(ctx, loc.Canonical())
	if err != nil {
		return 0, &domain.StoreUnavailableError{Store: "cache", Err: err}
	}

	s.evictHot(ctx, keys)
	s.announce(ctx, "location", len(keys))
	metrics.CacheEntriesDeleted.WithLabelValues("invalidation").Add(float64(len(keys)))
	return len(keys), nil
}

// InvalidateByEmployee deletes every cache entry touching a location known to
// belong to the employee: the registered home location plus every employee
// location the audit trail has seen.
func (s *MaintenanceService) InvalidateByEmployee(ctx context.Context, employeeID string) (int, error) {
	if employeeID == "" {
		return 0, &domain.ValidationError{Field: "employee_id", Message: "must not be empty"}
	}

	locs, err := s.audit.LocationsByEmployee(ctx, employeeID)
	if err != nil {
		return 0, &domain.StoreUnavailableError{Store: "audit", Err: err}
	}
	if current, err := s.locations.EmployeeLocation(ctx, employeeID); err == nil {
		locs = append(locs, current.Canonical())
	} else if !domain.IsNotFound(err) {
		return 0, &domain.StoreUnavailableError{Store: "locations", Err: err}
	}

	deleted, err := s.invalidateLocations(ctx, locs)
	if err != nil {
		return 0, err
	}
	s.announce(ctx, "employee:"+employeeID, deleted)
	return deleted, nil
}

// InvalidateBySubproject deletes every cache entry touching a location known
// to belong to the subproject.
func (s *MaintenanceService) InvalidateBySubproject(ctx context.Context, subprojectID string) (int, error) {
	if subprojectID == "" {
		return 0, &domain.ValidationError{Field: "subproject_id", Message: "must not be empty"}
	}

	locs, err := s.audit.LocationsBySubproject(ctx, subprojectID)
	if err != nil {
		return 0, &domain.StoreUnavailableError{Store: "audit", Err: err}
	}
	if current, err := s.locations.SubprojectLocation(ctx, subprojectID); err == nil {
		locs = append(locs, current.Canonical())
	} else if !domain.IsNotFound(err) {
		return 0, &domain.StoreUnavailableError{Store: "locations", Err: err}
	}

	deleted, err := s.invalidateLocations(ctx, locs)
	if err != nil {
		return 0, err
	}
	s.announce(ctx, "subproject:"+subprojectID, deleted)
	return deleted, nil
}

// CleanupExpired bulk-deletes every entry past its expiry. Idempotent: a run
// with nothing expired deletes zero entries.
func (s *MaintenanceService) CleanupExpired(ctx context.Context) (int, error) {
	keys, err := s.cache.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, &domain.StoreUnavailableError{Store: "cache", Err: err}
	}

	s.evictHot(ctx, keys)
	metrics.CacheEntriesDeleted.WithLabelValues("expiry").Add(float64(len(keys)))

	if s.events != nil && len(keys) > 0 {
		if perr := s.events.PublishCacheCleanup(ctx, len(keys)); perr != nil {
			slog.Warn("cache cleanup event publish failed", "error", perr)
		}
	}
	return len(keys), nil
}

// CacheStats reports total and expired entry counts in the durable cache.
func (s *MaintenanceService) CacheStats(ctx context.Context) (total, expired int64, err error) {
	total, expired, err = s.cache.Stats(ctx, time.Now().UTC())
	if err != nil {
		return 0, 0, &domain.StoreUnavailableError{Store: "cache", Err: err}
	}
	return total, expired, nil
}

func (s *MaintenanceService) invalidateLocations(ctx context.Context, locs []domain.GeoPoint) (int, error) {
	seen := make(map[string]struct{})
	deleted := 0
	for _, loc := range locs {
		k := domain.CacheKey(loc, loc)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		keys, err := s.cache.DeleteByLocation(ctx, loc)
		if err != nil {
			return 0, &domain.StoreUnavailableError{Store: "cache", Err: err}
		}
		s.evictHot(ctx, keys)
		deleted += len(keys)
	}
	metrics.CacheEntriesDeleted.WithLabelValues("invalidation").Add(float64(deleted))
	return deleted, nil
}

func (s *MaintenanceService) evictHot(ctx context.Context, keys []string) {
	if s.hot == nil || len(keys) == 0 {
		return
	}
	hotKeys := make([]string, len(keys))
	for i, k := range keys {
		hotKeys[i] = hotKey(k)
	}
	if err := s.hot.DeleteMany(ctx, hotKeys); err != nil {
		// Hot entries carry their own expiry and TTL out regardless.
		slog.Warn("hot tier eviction failed", "keys", len(hotKeys), "error", err)
	}
}

func (s *MaintenanceService) announce(ctx context.Context, scope string, deleted int) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishCacheInvalidation(ctx, scope, deleted); err != nil {
		slog.Warn("cache invalidation event publish failed", "scope", scope, "error", err)
	}
}
