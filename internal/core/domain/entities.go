package domain

import (
	"time"
)

// CalculationVersion is stamped on every audit record so that historical
// figures can be traced back to the math that produced them.
const CalculationVersion = "1.0.0"

// CalculationType classifies what a calculation produced.
type CalculationType string

const (
	CalculationDistance   CalculationType = "distance"
	CalculationAllowance  CalculationType = "allowance"
	CalculationTravelCost CalculationType = "travel_cost"
)

// Valid reports whether t is a known calculation type.
func (t CalculationType) Valid() bool {
	switch t {
	case CalculationDistance, CalculationAllowance, CalculationTravelCost:
		return true
	}
	return false
}

// DistanceCacheEntry is one cached distance for a canonical coordinate pair.
// Recomputing the same pair always yields a bit-identical DistanceKm, so
// concurrent writers may race freely; last writer wins.
type DistanceCacheEntry struct {
	Key        string    `json:"key"`
	Origin     GeoPoint  `json:"origin"`
	Dest       GeoPoint  `json:"dest"`
	DistanceKm float64   `json:"distance_km"`
	ComputedAt time.Time `json:"computed_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Live reports whether the entry may still be served as a cache hit.
func (e *DistanceCacheEntry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// AllowanceResult is the outcome of one allowance calculation. Request-scoped,
// never persisted on its own.
type AllowanceResult struct {
	DistanceKm     float64 `json:"distance_km"`
	CostPerKm      float64 `json:"cost_per_km"`
	Days           int     `json:"days"`
	DailyAllowance float64 `json:"daily_allowance"`
	TotalAllowance float64 `json:"total_allowance"`
}

// TravelCost is the full travel-cost calculation result.
type TravelCost struct {
	DistanceKm           float64   `json:"distance_km"`
	DailyAllowanceCHF    float64   `json:"daily_allowance_chf"`
	WeeklyAllowanceCHF   float64   `json:"weekly_allowance_chf"`
	MonthlyAllowanceCHF  float64   `json:"monthly_allowance_chf"`
	CalculationTimestamp time.Time `json:"calculation_timestamp"`
	CacheUsed            bool      `json:"cache_used"`
}

// AuditRecord is one immutable entry in the calculation audit trail.
// Written once, never updated or deleted by the engine.
type AuditRecord struct {
	ID                   string          `json:"id"`
	CalculationType      CalculationType `json:"calculation_type"`
	EmployeeID           string          `json:"employee_id,omitempty"`
	SubprojectID         string          `json:"subproject_id,omitempty"`
	EmployeeLocation     GeoPoint        `json:"employee_location"`
	SubprojectLocation   *GeoPoint       `json:"subproject_location,omitempty"`
	CostPerKm            float64         `json:"cost_per_km,omitempty"`
	DistanceKm           float64         `json:"distance_km"`
	DailyAllowanceCHF    float64         `json:"daily_allowance_chf,omitempty"`
	CalculationTimestamp time.Time       `json:"calculation_timestamp"`
	CalculationVersion   string          `json:"calculation_version"`
	RequestContext       map[string]any  `json:"request_context,omitempty"`
}

// AuditFilter narrows an audit query. Zero values mean "no constraint".
type AuditFilter struct {
	EmployeeID      string
	SubprojectID    string
	CalculationType CalculationType
	Start           time.Time
	End             time.Time
	Limit           int
}

// EmployeeLocationRecord is an employee's registered home location.
type EmployeeLocationRecord struct {
	EmployeeID string    `json:"employee_id"`
	Location   GeoPoint  `json:"location"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SubprojectLocationRecord is a subproject's registered site location.
type SubprojectLocationRecord struct {
	SubprojectID string    `json:"subproject_id"`
	Location     GeoPoint  `json:"location"`
	UpdatedAt    time.Time `json:"updated_at"`
}
