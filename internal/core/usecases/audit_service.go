package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lukashofer/reisekosten/internal/core/domain"
	"github.com/lukashofer/reisekosten/internal/core/ports"
	"github.com/lukashofer/reisekosten/internal/pkg/metrics"
)

// Audit query result caps.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 1000
)

// AuditService writes and queries the append-only calculation audit trail.
// Records are immutable once written; there is no update path.
type AuditService struct {
	repo ports.AuditRepository
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo ports.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record assigns an ID, timestamp, and calculation version, then appends the
// record. A failed append is surfaced as a store-unavailable error so callers
// can decide whether the calculation survives it.
func (s *AuditService) Record(ctx context.Context, rec domain.AuditRecord) (*domain.AuditRecord, error) {
	rec.ID = uuid.NewString()
	rec.CalculationTimestamp = time.Now().UTC()
	rec.CalculationVersion = domain.CalculationVersion

	if err := s.repo.Insert(ctx, &rec); err != nil {
		metrics.AuditWriteFailures.Inc()
		return nil, &domain.StoreUnavailableError{Store: "audit", Err: err}
	}

	metrics.AuditWrites.Inc()
	return &rec, nil
}

// Query returns audit records matching the filter, newest first. The limit
// defaults to DefaultAuditLimit and is hard-capped at MaxAuditLimit.
func (s *AuditService) Query(ctx context.Context, f domain.AuditFilter) ([]domain.AuditRecord, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLimit
	}
	if f.Limit > MaxAuditLimit {
		return nil, &domain.ValidationError{Field: "limit", Message: fmt.Sprintf("must be in [1, %d], got %d", MaxAuditLimit, f.Limit)}
	}
	if f.CalculationType != "" && !f.CalculationType.Valid() {
		return nil, &domain.ValidationError{Field: "calculation_type", Message: fmt.Sprintf("unknown calculation type %q", f.CalculationType)}
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return nil, &domain.ValidationError{Field: "end_date", Message: "end date is before start date"}
	}

	recs, err := s.repo.Query(ctx, f)
	if err != nil {
		return nil, &domain.StoreUnavailableError{Store: "audit", Err: err}
	}
	return recs, nil
}
