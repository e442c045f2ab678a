package ports

import (
	"context"

	"github.com/lukashofer/reisekosten/internal/core/domain"
)

// CacheService is the hot read-through tier in front of the durable distance
// cache. Values are opaque bytes with a TTL.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) error
}

// EventPublisher fans calculation and maintenance events out to a message
// broker. All publishes are best-effort; they never gate a calculation result.
type EventPublisher interface {
	PublishCalculation(ctx context.Context, rec *domain.AuditRecord) error
	PublishCacheInvalidation(ctx context.Context, scope string, deleted int) error
	PublishCacheCleanup(ctx context.Context, deleted int) error
}
