package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lukashofer/reisekosten/internal/core/domain"
)

// DistanceCacheRepo implements ports.DistanceCacheRepository with pgx.
// Coordinates are stored already canonicalized, so location-scoped deletes
// can match on plain equality.
type DistanceCacheRepo struct {
	db *DB
}

// NewDistanceCacheRepo creates a new DistanceCacheRepo.
func NewDistanceCacheRepo(db *DB) *DistanceCacheRepo {
	return &DistanceCacheRepo{db: db}
}

// Get returns the entry for a canonical key, or nil when absent. Expiry is
// not filtered here; the caller decides whether an expired entry is a miss.
func (r *DistanceCacheRepo) Get(ctx context.Context, key string) (*domain.DistanceCacheEntry, error) {
	var e domain.DistanceCacheEntry
	err := r.db.Pool.QueryRow(ctx, `
		SELECT key, origin_lat, origin_lon, dest_lat, dest_lon,
		       distance_km, computed_at, expires_at
		FROM distance_cache WHERE key = $1
	`, key).Scan(
		&e.Key, &e.Origin.Lat, &e.Origin.Lon, &e.Dest.Lat, &e.Dest.Lon,
		&e.DistanceKm, &e.ComputedAt, &e.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Upsert inserts or overwrites the entry for its canonical key. Concurrent
// writers for the same key store identical distances, so last-writer-wins
// needs no locking.
func (r *DistanceCacheRepo) Upsert(ctx context.Context, e *domain.DistanceCacheEntry) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO distance_cache (key, origin_lat, origin_lon, dest_lat, dest_lon,
		                            distance_km, computed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO UPDATE
		SET distance_km = EXCLUDED.distance_km,
		    computed_at = EXCLUDED.computed_at,
		    expires_at  = EXCLUDED.expires_at
	`, e.Key, e.Origin.Lat, e.Origin.Lon, e.Dest.Lat, e.Dest.Lon,
		e.DistanceKm, e.ComputedAt, e.ExpiresAt)
	return err
}

// DeleteByLocation removes every entry whose pair includes the canonicalized
// coordinate on either side, returning the deleted keys.
func (r *DistanceCacheRepo) DeleteByLocation(ctx context.Context, loc domain.GeoPoint) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		DELETE FROM distance_cache
		WHERE (origin_lat = $1 AND origin_lon = $2)
		   OR (dest_lat = $1 AND dest_lon = $2)
		RETURNING key
	`, loc.Lat, loc.Lon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectKeys(rows)
}

// DeleteExpired removes every entry past its expiry.
func (r *DistanceCacheRepo) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		DELETE FROM distance_cache WHERE expires_at <= $1 RETURNING key
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectKeys(rows)
}

// Stats returns total and expired entry counts.
func (r *DistanceCacheRepo) Stats(ctx context.Context, now time.Time) (int64, int64, error) {
	var total, expired int64
	err := r.db.Pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE expires_at <= $1)
		FROM distance_cache
	`, now).Scan(&total, &expired)
	if err != nil {
		return 0, 0, err
	}
	return total, expired, nil
}

func collectKeys(rows pgx.Rows) ([]string, error) {
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
