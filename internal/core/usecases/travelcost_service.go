package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lukashofer/reisekosten/internal/core/domain"
	"github.com/lukashofer/reisekosten/internal/core/ports"
	"github.com/lukashofer/reisekosten/internal/pkg/metrics"
	"github.com/lukashofer/reisekosten/internal/pkg/money"
)

// TravelCostService is the engine facade: it exposes the three calculation
// operations, resolving locations, caching distances, and auditing results.
//
// Audit policy: the travel-cost path treats the audit write as part of the
// calculation — if the write fails, the calculation fails. Distance-only and
// allowance-only calculations audit best-effort and log the failure.
type TravelCostService struct {
	distance  *DistanceService
	allowance *AllowanceService
	audit     *AuditService
	locations ports.LocationRepository
	events    ports.EventPublisher
}

// NewTravelCostService creates a new TravelCostService. events may be nil.
func NewTravelCostService(
	distance *DistanceService,
	allowance *AllowanceService,
	audit *AuditService,
	locations ports.LocationRepository,
	events ports.EventPublisher,
) *TravelCostService {
	return &TravelCostService{
		distance:  distance,
		allowance: allowance,
		audit:     audit,
		locations: locations,
		events:    events,
	}
}

// DistanceResult is the outcome of a distance-only calculation.
type DistanceResult struct {
	DistanceKm           float64   `json:"distance_km"`
	CalculationTimestamp time.Time `json:"calculation_timestamp"`
	CacheUsed            bool      `json:"cache_used"`
}

// TravelCostRequest carries one full travel-cost calculation. Locations may
// be given inline or resolved from the registered location index by ID.
type TravelCostRequest struct {
	EmployeeID         string
	SubprojectID       string
	EmployeeLocation   *domain.GeoPoint
	SubprojectLocation *domain.GeoPoint
	CostPerKm          float64
	UseCache           bool
	RequestContext     map[string]any
}

// CalculateDistance resolves the distance between two locations.
func (s *TravelCostService) CalculateDistance(ctx context.Context, a, b domain.GeoPoint, useCache bool) (*DistanceResult, error) {
	km, cached, err := s.distance.Distance(ctx, a, b, useCache)
	if err != nil {
		return nil, err
	}

	s.recordBestEffort(ctx, domain.AuditRecord{
		CalculationType:    domain.CalculationDistance,
		EmployeeLocation:   a,
		SubprojectLocation: &b,
		DistanceKm:         km,
	})
	metrics.CalculationsTotal.WithLabelValues(string(domain.CalculationDistance)).Inc()

	return &DistanceResult{
		DistanceKm:           km,
		CalculationTimestamp: time.Now().UTC(),
		CacheUsed:            cached,
	}, nil
}

// CalculateAllowance derives a monetary allowance from a known distance.
func (s *TravelCostService) CalculateAllowance(ctx context.Context, distanceKm, costPerKm float64, days int) (*domain.AllowanceResult, error) {
	res, err := s.allowance.Allowance(distanceKm, costPerKm, days)
	if err != nil {
		return nil, err
	}

	s.recordBestEffort(ctx, domain.AuditRecord{
		CalculationType:   domain.CalculationAllowance,
		CostPerKm:         costPerKm,
		DistanceKm:        distanceKm,
		DailyAllowanceCHF: res.DailyAllowance,
	})
	metrics.CalculationsTotal.WithLabelValues(string(domain.CalculationAllowance)).Inc()

	return res, nil
}

// CalculateTravelCost runs the full path: resolve locations, resolve
// distance, derive daily/weekly/monthly allowances, and write the mandatory
// audit record. The calculation is only successful once the record is
// durable.
func (s *TravelCostService) CalculateTravelCost(ctx context.Context, req TravelCostRequest) (*domain.TravelCost, error) {
	if req.CostPerKm <= 0 {
		return nil, &domain.ValidationError{Field: "cost_per_km", Message: fmt.Sprintf("must be positive, got %v", req.CostPerKm)}
	}

	empLoc, err := s.resolveLocation(ctx, req.EmployeeLocation, req.EmployeeID, "employee_id",
		func(ctx context.Context, id string) (*domain.GeoPoint, error) { return s.locations.EmployeeLocation(ctx, id) })
	if err != nil {
		return nil, err
	}
	spLoc, err := s.resolveLocation(ctx, req.SubprojectLocation, req.SubprojectID, "subproject_id",
		func(ctx context.Context, id string) (*domain.GeoPoint, error) { return s.locations.SubprojectLocation(ctx, id) })
	if err != nil {
		return nil, err
	}

	km, cached, err := s.distance.Distance(ctx, *empLoc, *spLoc, req.UseCache)
	if err != nil {
		return nil, err
	}

	daily := money.DailyAllowance(km, req.CostPerKm)

	rec, err := s.audit.Record(ctx, domain.AuditRecord{
		CalculationType:    domain.CalculationTravelCost,
		EmployeeID:         req.EmployeeID,
		SubprojectID:       req.SubprojectID,
		EmployeeLocation:   *empLoc,
		SubprojectLocation: spLoc,
		CostPerKm:          req.CostPerKm,
		DistanceKm:         km,
		DailyAllowanceCHF:  daily,
		RequestContext:     req.RequestContext,
	})
	if err != nil {
		return nil, err
	}

	metrics.CalculationsTotal.WithLabelValues(string(domain.CalculationTravelCost)).Inc()

	if s.events != nil {
		if perr := s.events.PublishCalculation(ctx, rec); perr != nil {
			slog.Warn("calculation event publish failed", "id", rec.ID, "error", perr)
		}
	}

	return &domain.TravelCost{
		DistanceKm:           km,
		DailyAllowanceCHF:    daily,
		WeeklyAllowanceCHF:   money.WeeklyEstimate(daily),
		MonthlyAllowanceCHF:  money.MonthlyEstimate(daily),
		CalculationTimestamp: rec.CalculationTimestamp,
		CacheUsed:            cached,
	}, nil
}

func (s *TravelCostService) resolveLocation(
	ctx context.Context,
	inline *domain.GeoPoint,
	id, field string,
	fetch func(context.Context, string) (*domain.GeoPoint, error),
) (*domain.GeoPoint, error) {
	if inline != nil {
		if err := inline.Validate(); err != nil {
			return nil, err
		}
		return inline, nil
	}
	if id == "" {
		return nil, &domain.ValidationError{Field: field, Message: "location or identifier is required"}
	}
	if s.locations == nil {
		return nil, &domain.NotFoundError{Resource: "location", ID: id}
	}
	return fetch(ctx, id)
}

func (s *TravelCostService) recordBestEffort(ctx context.Context, rec domain.AuditRecord) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Record(ctx, rec); err != nil {
		slog.Warn("audit write failed for non-mandatory calculation",
			"type", string(rec.CalculationType), "error", err)
	}
}
