package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lukashofer/reisekosten/internal/core/domain"
	"github.com/lukashofer/reisekosten/internal/core/usecases"
	"github.com/lukashofer/reisekosten/internal/pkg/telemetry"
)

// ---- Request DTOs ----
// The engine takes strongly-typed payloads, validated before any computation
// or store access.

type distanceRequest struct {
	EmployeeLocation   *domain.GeoPoint `json:"employee_location"`
	SubprojectLocation *domain.GeoPoint `json:"subproject_location"`
	UseCache           *bool            `json:"use_cache"`
}

type allowanceRequest struct {
	DistanceKm float64 `json:"distance_km"`
	CostPerKm  float64 `json:"cost_per_km"`
	Days       *int    `json:"days"`
}

type travelCostRequest struct {
	EmployeeID         string           `json:"employee_id"`
	SubprojectID       string           `json:"subproject_id"`
	EmployeeLocation   *domain.GeoPoint `json:"employee_location"`
	SubprojectLocation *domain.GeoPoint `json:"subproject_location"`
	CostPerKm          float64          `json:"cost_per_km"`
	UseCache           *bool            `json:"use_cache"`
	RequestContext     map[string]any   `json:"request_context"`
}

type invalidateRequest struct {
	EmployeeID   string           `json:"employee_id"`
	SubprojectID string           `json:"subproject_id"`
	Location     *domain.GeoPoint `json:"location"`
}

type deletedResponse struct {
	DeletedCount int `json:"deleted_count"`
}

func boolOrTrue(b *bool) bool {
	if b == nil {
		return true
	}
	return *b
}

// CalculateDistanceHandler computes the distance between two locations.
func CalculateDistanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req distanceRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}
		if req.EmployeeLocation == nil || req.SubprojectLocation == nil {
			return errBadRequest(c, "employee_location and subproject_location are required")
		}

		res, err := deps.TravelCosts.CalculateDistance(c.Context(),
			*req.EmployeeLocation, *req.SubprojectLocation, boolOrTrue(req.UseCache))
		if err != nil {
			return mapDomainError(c, err)
		}
		return c.JSON(res)
	}
}

// CalculateAllowanceHandler derives an allowance from a known distance.
func CalculateAllowanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req allowanceRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}

		days := 1
		if req.Days != nil {
			days = *req.Days
		}

		res, err := deps.TravelCosts.CalculateAllowance(c.Context(), req.DistanceKm, req.CostPerKm, days)
		if err != nil {
			return mapDomainError(c, err)
		}
		return c.JSON(res)
	}
}

// CalculateTravelCostHandler runs the full travel-cost path, including the
// mandatory audit write.
func CalculateTravelCostHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req travelCostRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}

		ctx, span := telemetry.StartSpan(c.Context(), "calculate_travel_cost")
		defer span.End()

		res, err := deps.TravelCosts.CalculateTravelCost(ctx, usecases.TravelCostRequest{
			EmployeeID:         req.EmployeeID,
			SubprojectID:       req.SubprojectID,
			EmployeeLocation:   req.EmployeeLocation,
			SubprojectLocation: req.SubprojectLocation,
			CostPerKm:          req.CostPerKm,
			UseCache:           boolOrTrue(req.UseCache),
			RequestContext:     req.RequestContext,
		})
		if err != nil {
			return mapDomainError(c, err)
		}
		return c.JSON(res)
	}
}

// QueryAuditHandler returns audit records, newest first, with offset/limit
// pagination over the capped result.
func QueryAuditHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := domain.AuditFilter{
			EmployeeID:      c.Query("employee_id"),
			SubprojectID:    c.Query("subproject_id"),
			CalculationType: domain.CalculationType(c.Query("type")),
			Limit:           c.QueryInt("limit", 0),
		}

		var err error
		if filter.Start, err = parseQueryTime(c.Query("start_date")); err != nil {
			return errBadRequest(c, "start_date: "+err.Error())
		}
		if filter.End, err = parseQueryTime(c.Query("end_date")); err != nil {
			return errBadRequest(c, "end_date: "+err.Error())
		}

		offset := c.QueryInt("offset", 0)
		if offset < 0 {
			offset = 0
		}
		if offset > 0 {
			// Materialize enough rows to serve the requested page.
			limit := filter.Limit
			if limit <= 0 {
				limit = usecases.DefaultAuditLimit
			}
			filter.Limit = offset + limit
			if filter.Limit > usecases.MaxAuditLimit {
				filter.Limit = usecases.MaxAuditLimit
			}
		}

		recs, err := deps.Audit.Query(c.Context(), filter)
		if err != nil {
			return mapDomainError(c, err)
		}

		total := len(recs)
		limit := filter.Limit
		if limit <= 0 {
			limit = usecases.DefaultAuditLimit
		}
		if offset >= total {
			recs = nil
		} else {
			recs = recs[offset:]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: recs, Pagination: pg})
	}
}

// InvalidateCacheHandler deletes cache entries scoped by employee,
// subproject, or location. Exactly one scope must be given.
func InvalidateCacheHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req invalidateRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}

		scopes := 0
		if req.EmployeeID != "" {
			scopes++
		}
		if req.SubprojectID != "" {
			scopes++
		}
		if req.Location != nil {
			scopes++
		}
		if scopes != 1 {
			return errBadRequest(c, "exactly one of employee_id, subproject_id, or location is required")
		}

		var (
			deleted int
			err     error
		)
		switch {
		case req.EmployeeID != "":
			deleted, err = deps.Maintenance.InvalidateByEmployee(c.Context(), req.EmployeeID)
		case req.SubprojectID != "":
			deleted, err = deps.Maintenance.InvalidateBySubproject(c.Context(), req.SubprojectID)
		default:
			deleted, err = deps.Maintenance.InvalidateByLocation(c.Context(), *req.Location)
		}
		if err != nil {
			return mapDomainError(c, err)
		}
		return c.JSON(deletedResponse{DeletedCount: deleted})
	}
}

// CleanupCacheHandler bulk-deletes expired cache entries.
func CleanupCacheHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deleted, err := deps.Maintenance.CleanupExpired(c.Context())
		if err != nil {
			return mapDomainError(c, err)
		}
		return c.JSON(deletedResponse{DeletedCount: deleted})
	}
}

// CacheStats holds row counts for the distance cache table.
type CacheStats struct {
	TotalEntries   int64 `json:"total_entries"`
	ExpiredEntries int64 `json:"expired_entries"`
}

// CacheStatsHandler returns distance-cache occupancy counts.
func CacheStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		total, expired, err := deps.Maintenance.CacheStats(c.Context())
		if err != nil {
			return mapDomainError(c, err)
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(CacheStats{TotalEntries: total, ExpiredEntries: expired})
	}
}

// parseQueryTime accepts RFC 3339 timestamps or plain dates.
func parseQueryTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
