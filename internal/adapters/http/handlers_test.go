package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/lukashofer/reisekosten/internal/adapters/http"
	"github.com/lukashofer/reisekosten/internal/core/domain"
	"github.com/lukashofer/reisekosten/internal/core/usecases"
)

// ---- Mock repositories ----

type mockCacheRepo struct {
	getFn              func(ctx context.Context, key string) (*domain.DistanceCacheEntry, error)
	upsertFn           func(ctx context.Context, entry *domain.DistanceCacheEntry) error
	deleteByLocationFn func(ctx context.Context, loc domain.GeoPoint) ([]string, error)
	deleteExpiredFn    func(ctx context.Context, now time.Time) ([]string, error)
	statsFn            func(ctx context.Context, now time.Time) (int64, int64, error)
}

func (m *mockCacheRepo) Get(ctx context.Context, key string) (*domain.DistanceCacheEntry, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, nil
}
func (m *mockCacheRepo) Upsert(ctx context.Context, entry *domain.DistanceCacheEntry) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, entry)
	}
	return nil
}
func (m *mockCacheRepo) DeleteByLocation(ctx context.Context, loc domain.GeoPoint) ([]string, error) {
	if m.deleteByLocationFn != nil {
		return m.deleteByLocationFn(ctx, loc)
	}
	return nil, nil
}
func (m *mockCacheRepo) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx, now)
	}
	return nil, nil
}
func (m *mockCacheRepo) Stats(ctx context.Context, now time.Time) (int64, int64, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, now)
	}
	return 0, 0, nil
}

type mockAuditRepo struct {
	insertFn func(ctx context.Context, rec *domain.AuditRecord) error
	queryFn  func(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error)
}

func (m *mockAuditRepo) Insert(ctx context.Context, rec *domain.AuditRecord) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, rec)
	}
	return nil
}
func (m *mockAuditRepo) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, filter)
	}
	return nil, nil
}
func (m *mockAuditRepo) LocationsByEmployee(ctx context.Context, employeeID string) ([]domain.GeoPoint, error) {
	return nil, nil
}
func (m *mockAuditRepo) LocationsBySubproject(ctx context.Context, subprojectID string) ([]domain.GeoPoint, error) {
	return nil, nil
}

type mockLocationRepo struct{}

func (m *mockLocationRepo) EmployeeLocation(ctx context.Context, employeeID string) (*domain.GeoPoint, error) {
	return nil, &domain.NotFoundError{Resource: "employee location", ID: employeeID}
}
func (m *mockLocationRepo) SubprojectLocation(ctx context.Context, subprojectID string) (*domain.GeoPoint, error) {
	return nil, &domain.NotFoundError{Resource: "subproject location", ID: subprojectID}
}

// ---- Test helpers ----

func stubCalc(a, b domain.GeoPoint) float64 { return 93.752 }

type mockStores struct {
	cache *mockCacheRepo
	audit *mockAuditRepo
}

func makeDeps(opts ...func(*mockStores)) *handler.Dependencies {
	stores := &mockStores{cache: &mockCacheRepo{}, audit: &mockAuditRepo{}}
	for _, o := range opts {
		o(stores)
	}

	distance := usecases.NewDistanceService(stubCalc, stores.cache, nil, 24*time.Hour, 300)
	allowance := usecases.NewAllowanceService()
	audit := usecases.NewAuditService(stores.audit)
	locations := &mockLocationRepo{}

	return &handler.Dependencies{
		TravelCosts: usecases.NewTravelCostService(distance, allowance, audit, locations, nil),
		Audit:       audit,
		Maintenance: usecases.NewMaintenanceService(stores.cache, nil, stores.audit, locations, nil),
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func doPost(t *testing.T, app *fiber.App, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, b
}

// ---- Calculation handler tests ----

func TestCalculateDistance_Success(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doPost(t, app, "/v1/calculations/distance", `{
		"employee_location": {"lat": 47.376887, "lon": 8.540192},
		"subproject_location": {"lat": 46.947974, "lon": 7.447447}
	}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var result struct {
		DistanceKm float64 `json:"distance_km"`
		CacheUsed  bool    `json:"cache_used"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.DistanceKm != 93.752 {
		t.Errorf("expected 93.752 km, got %v", result.DistanceKm)
	}
	if result.CacheUsed {
		t.Error("cold cache must report cache_used=false")
	}
}

func TestCalculateDistance_InvalidLatitude(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doPost(t, app, "/v1/calculations/distance", `{
		"employee_location": {"lat": 91, "lon": 0},
		"subproject_location": {"lat": 46.947974, "lon": 7.447447}
	}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d: %s", status, body)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.Unmarshal(body, &apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request, got %s", apiErr.Code)
	}
}

func TestCalculateDistance_MissingLocations(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := doPost(t, app, "/v1/calculations/distance", `{}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestCalculateAllowance_Success(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doPost(t, app, "/v1/calculations/allowance", `{
		"distance_km": 50,
		"cost_per_km": 0.70,
		"days": 5
	}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var result struct {
		DailyAllowance float64 `json:"daily_allowance"`
		TotalAllowance float64 `json:"total_allowance"`
	}
	json.Unmarshal(body, &result)
	if result.DailyAllowance != 35.00 {
		t.Errorf("expected daily 35.00, got %v", result.DailyAllowance)
	}
	if result.TotalAllowance != 175.00 {
		t.Errorf("expected total 175.00, got %v", result.TotalAllowance)
	}
}

func TestCalculateAllowance_DefaultsToOneDay(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doPost(t, app, "/v1/calculations/allowance", `{
		"distance_km": 50,
		"cost_per_km": 0.70
	}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var result struct {
		Days           int     `json:"days"`
		TotalAllowance float64 `json:"total_allowance"`
	}
	json.Unmarshal(body, &result)
	if result.Days != 1 {
		t.Errorf("expected default of 1 day, got %d", result.Days)
	}
	if result.TotalAllowance != 35.00 {
		t.Errorf("expected total 35.00, got %v", result.TotalAllowance)
	}
}

func TestCalculateAllowance_NegativeDistance(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := doPost(t, app, "/v1/calculations/allowance", `{
		"distance_km": -5,
		"cost_per_km": 0.70
	}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestCalculateTravelCost_Success(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doPost(t, app, "/v1/calculations/travel-cost", `{
		"employee_id": "emp-1",
		"subproject_id": "sp-9",
		"employee_location": {"lat": 47.376887, "lon": 8.540192},
		"subproject_location": {"lat": 46.947974, "lon": 7.447447},
		"cost_per_km": 0.68
	}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var result struct {
		DistanceKm          float64 `json:"distance_km"`
		DailyAllowanceCHF   float64 `json:"daily_allowance_chf"`
		WeeklyAllowanceCHF  float64 `json:"weekly_allowance_chf"`
		MonthlyAllowanceCHF float64 `json:"monthly_allowance_chf"`
	}
	json.Unmarshal(body, &result)
	if result.DistanceKm != 93.752 {
		t.Errorf("expected 93.752 km, got %v", result.DistanceKm)
	}
	if result.DailyAllowanceCHF != 63.75 {
		t.Errorf("expected daily 63.75, got %v", result.DailyAllowanceCHF)
	}
	if result.WeeklyAllowanceCHF != 318.75 {
		t.Errorf("expected weekly 318.75, got %v", result.WeeklyAllowanceCHF)
	}
	if result.MonthlyAllowanceCHF != 1402.50 {
		t.Errorf("expected monthly 1402.50, got %v", result.MonthlyAllowanceCHF)
	}
}

func TestCalculateTravelCost_MissingRate(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := doPost(t, app, "/v1/calculations/travel-cost", `{
		"employee_location": {"lat": 47.376887, "lon": 8.540192},
		"subproject_location": {"lat": 46.947974, "lon": 7.447447}
	}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestCalculateTravelCost_UnknownEmployee(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doPost(t, app, "/v1/calculations/travel-cost", `{
		"employee_id": "ghost",
		"subproject_location": {"lat": 46.947974, "lon": 7.447447},
		"cost_per_km": 0.68
	}`)
	if status != 404 {
		t.Fatalf("expected 404, got %d: %s", status, body)
	}
}

func TestCalculateTravelCost_AuditStoreDown(t *testing.T) {
	app := setupApp(makeDeps(func(s *mockStores) {
		s.audit.insertFn = func(ctx context.Context, rec *domain.AuditRecord) error {
			return context.DeadlineExceeded
		}
	}))

	status, body := doPost(t, app, "/v1/calculations/travel-cost", `{
		"employee_location": {"lat": 47.376887, "lon": 8.540192},
		"subproject_location": {"lat": 46.947974, "lon": 7.447447},
		"cost_per_km": 0.68
	}`)
	if status != 503 {
		t.Fatalf("expected 503, got %d: %s", status, body)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.Unmarshal(body, &apiErr)
	if apiErr.Code != "store_unavailable" {
		t.Errorf("expected store_unavailable, got %s", apiErr.Code)
	}
}

// ---- Audit handler tests ----

func TestQueryAudit_Success(t *testing.T) {
	app := setupApp(makeDeps(func(s *mockStores) {
		s.audit.queryFn = func(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
			if filter.EmployeeID != "emp-1" {
				t.Errorf("expected employee filter emp-1, got %q", filter.EmployeeID)
			}
			return []domain.AuditRecord{
				{ID: "r1", CalculationType: domain.CalculationTravelCost, EmployeeID: "emp-1"},
				{ID: "r2", CalculationType: domain.CalculationDistance, EmployeeID: "emp-1"},
			}, nil
		}
	}))

	req := httptest.NewRequest("GET", "/v1/audit?employee_id=emp-1", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.AuditRecord `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 records, got %d", len(result.Data))
	}
	if result.Pagination.Total != 2 {
		t.Errorf("expected total 2, got %d", result.Pagination.Total)
	}
}

func TestQueryAudit_LimitTooHigh(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/audit?limit=1001", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestQueryAudit_UnknownType(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/audit?type=teleport", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestQueryAudit_BadDate(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/audit?start_date=yesterday", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestQueryAudit_PlainDateAccepted(t *testing.T) {
	app := setupApp(makeDeps(func(s *mockStores) {
		s.audit.queryFn = func(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
			if filter.Start.IsZero() {
				t.Error("expected parsed start date")
			}
			return nil, nil
		}
	}))

	req := httptest.NewRequest("GET", "/v1/audit?start_date=2026-08-01", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

// ---- Cache maintenance handler tests ----

func TestInvalidateCache_ByLocation(t *testing.T) {
	app := setupApp(makeDeps(func(s *mockStores) {
		s.cache.deleteByLocationFn = func(ctx context.Context, loc domain.GeoPoint) ([]string, error) {
			return []string{"k1", "k2"}, nil
		}
	}))

	status, body := doPost(t, app, "/v1/cache/invalidate", `{
		"location": {"lat": 47.376887, "lon": 8.540192}
	}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var result struct {
		DeletedCount int `json:"deleted_count"`
	}
	json.Unmarshal(body, &result)
	if result.DeletedCount != 2 {
		t.Errorf("expected 2 deleted, got %d", result.DeletedCount)
	}
}

func TestInvalidateCache_NoScope(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := doPost(t, app, "/v1/cache/invalidate", `{}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestInvalidateCache_TwoScopes(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := doPost(t, app, "/v1/cache/invalidate", `{
		"employee_id": "emp-1",
		"subproject_id": "sp-9"
	}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestCleanupCache(t *testing.T) {
	app := setupApp(makeDeps(func(s *mockStores) {
		s.cache.deleteExpiredFn = func(ctx context.Context, now time.Time) ([]string, error) {
			return []string{"k1", "k2", "k3"}, nil
		}
	}))

	status, body := doPost(t, app, "/v1/cache/cleanup", `{}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var result struct {
		DeletedCount int `json:"deleted_count"`
	}
	json.Unmarshal(body, &result)
	if result.DeletedCount != 3 {
		t.Errorf("expected 3 deleted, got %d", result.DeletedCount)
	}
}

func TestCacheStats(t *testing.T) {
	app := setupApp(makeDeps(func(s *mockStores) {
		s.cache.statsFn = func(ctx context.Context, now time.Time) (int64, int64, error) {
			return 42, 3, nil
		}
	}))

	req := httptest.NewRequest("GET", "/v1/cache/stats", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		TotalEntries   int64 `json:"total_entries"`
		ExpiredEntries int64 `json:"expired_entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.TotalEntries != 42 || result.ExpiredEntries != 3 {
		t.Errorf("expected 42/3, got %d/%d", result.TotalEntries, result.ExpiredEntries)
	}
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestReady_NoDatabase(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503 without a database, got %d", resp.StatusCode)
	}
}
