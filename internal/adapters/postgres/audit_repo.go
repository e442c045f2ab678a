package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lukashofer/reisekosten/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository with pgx. Inserts only; rows are
// never updated or deleted here — retention is an out-of-band policy.
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Insert appends one audit record.
func (r *AuditRepo) Insert(ctx context.Context, rec *domain.AuditRecord) error {
	var spLat, spLon *float64
	if rec.SubprojectLocation != nil {
		spLat, spLon = &rec.SubprojectLocation.Lat, &rec.SubprojectLocation.Lon
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO calculation_audit
			(id, calculation_type, employee_id, subproject_id,
			 employee_lat, employee_lon, subproject_lat, subproject_lon,
			 cost_per_km, distance_km, daily_allowance_chf,
			 calculation_timestamp, calculation_version, request_context)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, rec.ID, string(rec.CalculationType), rec.EmployeeID, rec.SubprojectID,
		rec.EmployeeLocation.Lat, rec.EmployeeLocation.Lon, spLat, spLon,
		rec.CostPerKm, rec.DistanceKm, rec.DailyAllowanceCHF,
		rec.CalculationTimestamp, rec.CalculationVersion, rec.RequestContext)
	return err
}

// Query returns records matching the filter, newest first.
func (r *AuditRepo) Query(ctx context.Context, f domain.AuditFilter) ([]domain.AuditRecord, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.EmployeeID != "" {
		where = append(where, "employee_id = "+arg(f.EmployeeID))
	}
	if f.SubprojectID != "" {
		where = append(where, "subproject_id = "+arg(f.SubprojectID))
	}
	if f.CalculationType != "" {
		where = append(where, "calculation_type = "+arg(string(f.CalculationType)))
	}
	if !f.Start.IsZero() {
		where = append(where, "calculation_timestamp >= "+arg(f.Start))
	}
	if !f.End.IsZero() {
		where = append(where, "calculation_timestamp <= "+arg(f.End))
	}

	q := `
		SELECT id, calculation_type, COALESCE(employee_id, ''), COALESCE(subproject_id, ''),
		       employee_lat, employee_lon, subproject_lat, subproject_lon,
		       COALESCE(cost_per_km, 0), distance_km, COALESCE(daily_allowance_chf, 0),
		       calculation_timestamp, calculation_version, COALESCE(request_context, '{}')
		FROM calculation_audit`
	if len(where) > 0 {
		q += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	q += "\n\t\tORDER BY calculation_timestamp DESC\n\t\tLIMIT " + arg(f.Limit)

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.AuditRecord
	for rows.Next() {
		var (
			rec          domain.AuditRecord
			calcType     string
			spLat, spLon *float64
		)
		if err := rows.Scan(
			&rec.ID, &calcType, &rec.EmployeeID, &rec.SubprojectID,
			&rec.EmployeeLocation.Lat, &rec.EmployeeLocation.Lon, &spLat, &spLon,
			&rec.CostPerKm, &rec.DistanceKm, &rec.DailyAllowanceCHF,
			&rec.CalculationTimestamp, &rec.CalculationVersion, &rec.RequestContext,
		); err != nil {
			return nil, err
		}
		rec.CalculationType = domain.CalculationType(calcType)
		if spLat != nil && spLon != nil {
			rec.SubprojectLocation = &domain.GeoPoint{Lat: *spLat, Lon: *spLon}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LocationsByEmployee returns the distinct employee locations recorded for an
// employee, canonicalized for cache-key matching.
func (r *AuditRepo) LocationsByEmployee(ctx context.Context, employeeID string) ([]domain.GeoPoint, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT employee_lat, employee_lon
		FROM calculation_audit
		WHERE employee_id = $1
	`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPoints(rows)
}

// LocationsBySubproject returns the distinct subproject locations recorded
// for a subproject, canonicalized for cache-key matching.
func (r *AuditRepo) LocationsBySubproject(ctx context.Context, subprojectID string) ([]domain.GeoPoint, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT subproject_lat, subproject_lon
		FROM calculation_audit
		WHERE subproject_id = $1 AND subproject_lat IS NOT NULL
	`, subprojectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPoints(rows)
}

func collectPoints(rows pgx.Rows) ([]domain.GeoPoint, error) {
	var pts []domain.GeoPoint
	for rows.Next() {
		var p domain.GeoPoint
		if err := rows.Scan(&p.Lat, &p.Lon); err != nil {
			return nil, err
		}
		pts = append(pts, p.Canonical())
	}
	return pts, rows.Err()
}
