package ports

import (
	"context"
	"time"

	"github.com/lukashofer/reisekosten/internal/core/domain"
)

// DistanceCacheRepository persists computed distances keyed by canonical
// coordinate pair. Upserts are idempotent; last writer wins.
type DistanceCacheRepository interface {
	Get(ctx context.Context, key string) (*domain.DistanceCacheEntry, error)
	Upsert(ctx context.Context, entry *domain.DistanceCacheEntry) error
	// DeleteByLocation removes every entry whose canonical key includes the
	// given (already canonicalized) coordinate on either side of the pair.
	// Returns the keys of the deleted entries.
	DeleteByLocation(ctx context.Context, loc domain.GeoPoint) ([]string, error)
	// DeleteExpired removes every entry past its expiry, returning the keys
	// removed. A run with nothing expired is a no-op.
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
	// Stats returns total and expired entry counts.
	Stats(ctx context.Context, now time.Time) (total int64, expired int64, err error)
}

// AuditRepository persists the append-only calculation audit trail.
// No update or delete operation exists; retention is an external policy.
type AuditRepository interface {
	Insert(ctx context.Context, rec *domain.AuditRecord) error
	// Query returns records matching the filter, newest first, capped by
	// filter.Limit.
	Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error)
	// LocationsByEmployee returns the distinct employee locations the audit
	// trail has seen for an employee.
	LocationsByEmployee(ctx context.Context, employeeID string) ([]domain.GeoPoint, error)
	// LocationsBySubproject returns the distinct subproject locations the
	// audit trail has seen for a subproject.
	LocationsBySubproject(ctx context.Context, subprojectID string) ([]domain.GeoPoint, error)
}

// LocationRepository resolves registered locations for employees and
// subprojects.
type LocationRepository interface {
	EmployeeLocation(ctx context.Context, employeeID string) (*domain.GeoPoint, error)
	SubprojectLocation(ctx context.Context, subprojectID string) (*domain.GeoPoint, error)
}
