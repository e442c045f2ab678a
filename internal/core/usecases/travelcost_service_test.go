package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lukashofer/reisekosten/internal/core/domain"
	"github.com/lukashofer/reisekosten/internal/core/usecases"
)

// --- Mock LocationRepository ---

type mockLocationRepo struct {
	employeeFn   func(ctx context.Context, id string) (*domain.GeoPoint, error)
	subprojectFn func(ctx context.Context, id string) (*domain.GeoPoint, error)
}

func (m *mockLocationRepo) EmployeeLocation(ctx context.Context, employeeID string) (*domain.GeoPoint, error) {
	if m.employeeFn != nil {
		return m.employeeFn(ctx, employeeID)
	}
	return nil, &domain.NotFoundError{Resource: "employee location", ID: employeeID}
}

func (m *mockLocationRepo) SubprojectLocation(ctx context.Context, subprojectID string) (*domain.GeoPoint, error) {
	if m.subprojectFn != nil {
		return m.subprojectFn(ctx, subprojectID)
	}
	return nil, &domain.NotFoundError{Resource: "subproject location", ID: subprojectID}
}

// --- Mock EventPublisher ---

type mockEvents struct {
	calcFn       func(ctx context.Context, rec *domain.AuditRecord) error
	invalidateFn func(ctx context.Context, scope string, deleted int) error
	cleanupFn    func(ctx context.Context, deleted int) error
}

func (m *mockEvents) PublishCalculation(ctx context.Context, rec *domain.AuditRecord) error {
	if m.calcFn != nil {
		return m.calcFn(ctx, rec)
	}
	return nil
}

func (m *mockEvents) PublishCacheInvalidation(ctx context.Context, scope string, deleted int) error {
	if m.invalidateFn != nil {
		return m.invalidateFn(ctx, scope, deleted)
	}
	return nil
}

func (m *mockEvents) PublishCacheCleanup(ctx context.Context, deleted int) error {
	if m.cleanupFn != nil {
		return m.cleanupFn(ctx, deleted)
	}
	return nil
}

// --- Test setup ---

func newTravelCostService(audit *mockAuditRepo, locations *mockLocationRepo, events *mockEvents) *usecases.TravelCostService {
	distance := usecases.NewDistanceService(fixedDistance(93.752, nil), &mockCacheRepo{}, nil, 24*time.Hour, 300)
	allowance := usecases.NewAllowanceService()
	auditSvc := usecases.NewAuditService(audit)

	if events == nil {
		// A typed nil would dodge the service's nil check.
		return usecases.NewTravelCostService(distance, allowance, auditSvc, locations, nil)
	}
	return usecases.NewTravelCostService(distance, allowance, auditSvc, locations, events)
}

// --- Tests ---

func TestCalculateTravelCost_Success(t *testing.T) {
	var inserted []domain.AuditRecord
	audit := &mockAuditRepo{
		insertFn: func(ctx context.Context, rec *domain.AuditRecord) error {
			inserted = append(inserted, *rec)
			return nil
		},
	}
	published := 0
	events := &mockEvents{
		calcFn: func(ctx context.Context, rec *domain.AuditRecord) error {
			published++
			return nil
		},
	}

	svc := newTravelCostService(audit, &mockLocationRepo{}, events)

	res, err := svc.CalculateTravelCost(context.Background(), usecases.TravelCostRequest{
		EmployeeID:         "emp-1",
		SubprojectID:       "sp-9",
		EmployeeLocation:   &zurich,
		SubprojectLocation: &bern,
		CostPerKm:          0.68,
		UseCache:           true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.DistanceKm != 93.752 {
		t.Errorf("expected 93.752 km, got %v", res.DistanceKm)
	}
	if res.DailyAllowanceCHF != 63.75 {
		t.Errorf("expected daily 63.75, got %v", res.DailyAllowanceCHF)
	}
	if res.WeeklyAllowanceCHF != 318.75 {
		t.Errorf("expected weekly 318.75, got %v", res.WeeklyAllowanceCHF)
	}
	if res.MonthlyAllowanceCHF != 1402.50 {
		t.Errorf("expected monthly 1402.50, got %v", res.MonthlyAllowanceCHF)
	}
	if res.CalculationTimestamp.IsZero() {
		t.Error("expected a calculation timestamp")
	}

	if len(inserted) != 1 {
		t.Fatalf("expected exactly one audit record, got %d", len(inserted))
	}
	rec := inserted[0]
	if rec.CalculationType != domain.CalculationTravelCost {
		t.Errorf("expected travel_cost record, got %s", rec.CalculationType)
	}
	if rec.EmployeeID != "emp-1" || rec.SubprojectID != "sp-9" {
		t.Errorf("expected identifiers on the record, got %q/%q", rec.EmployeeID, rec.SubprojectID)
	}
	if rec.DailyAllowanceCHF != 63.75 {
		t.Errorf("audit record must carry the issued figure, got %v", rec.DailyAllowanceCHF)
	}
	if published != 1 {
		t.Errorf("expected one calculation event, got %d", published)
	}
}

func TestCalculateTravelCost_AuditFailureFailsCalculation(t *testing.T) {
	audit := &mockAuditRepo{
		insertFn: func(ctx context.Context, rec *domain.AuditRecord) error {
			return errors.New("connection refused")
		},
	}

	svc := newTravelCostService(audit, &mockLocationRepo{}, nil)

	_, err := svc.CalculateTravelCost(context.Background(), usecases.TravelCostRequest{
		EmployeeLocation:   &zurich,
		SubprojectLocation: &bern,
		CostPerKm:          0.68,
	})
	if !domain.IsStoreUnavailable(err) {
		t.Errorf("a lost audit write must fail the calculation, got %v", err)
	}
}

func TestCalculateTravelCost_InvalidRate(t *testing.T) {
	svc := newTravelCostService(&mockAuditRepo{}, &mockLocationRepo{}, nil)

	for _, rate := range []float64{0, -0.5} {
		_, err := svc.CalculateTravelCost(context.Background(), usecases.TravelCostRequest{
			EmployeeLocation:   &zurich,
			SubprojectLocation: &bern,
			CostPerKm:          rate,
		})
		if !domain.IsValidation(err) {
			t.Errorf("rate %v: expected a validation error, got %v", rate, err)
		}
	}
}

func TestCalculateTravelCost_ResolvesLocationsByID(t *testing.T) {
	locations := &mockLocationRepo{
		employeeFn: func(ctx context.Context, id string) (*domain.GeoPoint, error) {
			if id != "emp-1" {
				t.Errorf("expected lookup for emp-1, got %q", id)
			}
			return &zurich, nil
		},
		subprojectFn: func(ctx context.Context, id string) (*domain.GeoPoint, error) {
			if id != "sp-9" {
				t.Errorf("expected lookup for sp-9, got %q", id)
			}
			return &bern, nil
		},
	}

	svc := newTravelCostService(&mockAuditRepo{}, locations, nil)

	res, err := svc.CalculateTravelCost(context.Background(), usecases.TravelCostRequest{
		EmployeeID:   "emp-1",
		SubprojectID: "sp-9",
		CostPerKm:    0.68,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DistanceKm != 93.752 {
		t.Errorf("expected 93.752 km, got %v", res.DistanceKm)
	}
}

func TestCalculateTravelCost_UnknownEmployee(t *testing.T) {
	svc := newTravelCostService(&mockAuditRepo{}, &mockLocationRepo{}, nil)

	_, err := svc.CalculateTravelCost(context.Background(), usecases.TravelCostRequest{
		EmployeeID:         "ghost",
		SubprojectLocation: &bern,
		CostPerKm:          0.68,
	})
	if !domain.IsNotFound(err) {
		t.Errorf("expected a not-found error, got %v", err)
	}
}

func TestCalculateTravelCost_MissingLocationAndID(t *testing.T) {
	svc := newTravelCostService(&mockAuditRepo{}, &mockLocationRepo{}, nil)

	_, err := svc.CalculateTravelCost(context.Background(), usecases.TravelCostRequest{
		SubprojectLocation: &bern,
		CostPerKm:          0.68,
	})
	if !domain.IsValidation(err) {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestCalculateDistance_AuditsBestEffort(t *testing.T) {
	var inserted []domain.AuditRecord
	audit := &mockAuditRepo{
		insertFn: func(ctx context.Context, rec *domain.AuditRecord) error {
			inserted = append(inserted, *rec)
			return nil
		},
	}

	svc := newTravelCostService(audit, &mockLocationRepo{}, nil)

	res, err := svc.CalculateDistance(context.Background(), zurich, bern, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DistanceKm != 93.752 {
		t.Errorf("expected 93.752 km, got %v", res.DistanceKm)
	}
	if len(inserted) != 1 || inserted[0].CalculationType != domain.CalculationDistance {
		t.Errorf("expected one distance audit record, got %+v", inserted)
	}
}

func TestCalculateDistance_SurvivesAuditFailure(t *testing.T) {
	audit := &mockAuditRepo{
		insertFn: func(ctx context.Context, rec *domain.AuditRecord) error {
			return errors.New("connection refused")
		},
	}

	svc := newTravelCostService(audit, &mockLocationRepo{}, nil)

	res, err := svc.CalculateDistance(context.Background(), zurich, bern, true)
	if err != nil {
		t.Fatalf("a distance-only calculation survives a lost audit write: %v", err)
	}
	if res.DistanceKm != 93.752 {
		t.Errorf("expected 93.752 km, got %v", res.DistanceKm)
	}
}

func TestCalculateAllowance_AuditsBestEffort(t *testing.T) {
	var inserted []domain.AuditRecord
	audit := &mockAuditRepo{
		insertFn: func(ctx context.Context, rec *domain.AuditRecord) error {
			inserted = append(inserted, *rec)
			return nil
		},
	}

	svc := newTravelCostService(audit, &mockLocationRepo{}, nil)

	res, err := svc.CalculateAllowance(context.Background(), 50, 0.70, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalAllowance != 175.00 {
		t.Errorf("expected total 175.00, got %v", res.TotalAllowance)
	}
	if len(inserted) != 1 || inserted[0].CalculationType != domain.CalculationAllowance {
		t.Errorf("expected one allowance audit record, got %+v", inserted)
	}
}
