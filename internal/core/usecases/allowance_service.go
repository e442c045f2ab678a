package usecases

import (
	"fmt"

	"github.com/lukashofer/reisekosten/internal/core/domain"
	"github.com/lukashofer/reisekosten/internal/pkg/money"
)

// MaxDays caps the day count of a multi-day allowance.
const MaxDays = 365

// AllowanceService derives monetary allowances from distance and cost rate.
// Pure calculation; no store access.
type AllowanceService struct{}

// NewAllowanceService creates a new AllowanceService.
func NewAllowanceService() *AllowanceService {
	return &AllowanceService{}
}

// Allowance computes the daily allowance and the multi-day total. The daily
// figure is rounded to the cent before multiplying by the day count, and the
// product is rounded again. Historical audit records depend on this two-stage
// rounding reproducing identically.
func (s *AllowanceService) Allowance(distanceKm, costPerKm float64, days int) (*domain.AllowanceResult, error) {
	if distanceKm < 0 {
		return nil, &domain.ValidationError{Field: "distance_km", Message: fmt.Sprintf("must be non-negative, got %v", distanceKm)}
	}
	if costPerKm <= 0 {
		return nil, &domain.ValidationError{Field: "cost_per_km", Message: fmt.Sprintf("must be positive, got %v", costPerKm)}
	}
	if days < 1 || days > MaxDays {
		return nil, &domain.ValidationError{Field: "days", Message: fmt.Sprintf("must be in [1, %d], got %d", MaxDays, days)}
	}

	daily := money.DailyAllowance(distanceKm, costPerKm)
	total := money.MultiDayAllowance(daily, days)

	return &domain.AllowanceResult{
		DistanceKm:     distanceKm,
		CostPerKm:      costPerKm,
		Days:           days,
		DailyAllowance: daily,
		TotalAllowance: total,
	}, nil
}
