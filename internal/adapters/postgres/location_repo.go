package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lukashofer/reisekosten/internal/core/domain"
)

// LocationRepo implements ports.LocationRepository against the employee and
// subproject location index.
type LocationRepo struct {
	db *DB
}

// NewLocationRepo creates a new LocationRepo.
func NewLocationRepo(db *DB) *LocationRepo {
	return &LocationRepo{db: db}
}

// EmployeeLocation returns an employee's registered home location.
func (r *LocationRepo) EmployeeLocation(ctx context.Context, employeeID string) (*domain.GeoPoint, error) {
	var p domain.GeoPoint
	err := r.db.Pool.QueryRow(ctx, `
		SELECT lat, lon FROM employee_locations WHERE employee_id = $1
	`, employeeID).Scan(&p.Lat, &p.Lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "employee location", ID: employeeID}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SubprojectLocation returns a subproject's registered site location.
func (r *LocationRepo) SubprojectLocation(ctx context.Context, subprojectID string) (*domain.GeoPoint, error) {
	var p domain.GeoPoint
	err := r.db.Pool.QueryRow(ctx, `
		SELECT lat, lon FROM subproject_locations WHERE subproject_id = $1
	`, subprojectID).Scan(&p.Lat, &p.Lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "subproject location", ID: subprojectID}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
