package http

import (
	"github.com/lukashofer/reisekosten/internal/adapters/postgres"
	"github.com/lukashofer/reisekosten/internal/adapters/valkey"
	"github.com/lukashofer/reisekosten/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	TravelCosts *usecases.TravelCostService
	Audit       *usecases.AuditService
	Maintenance *usecases.MaintenanceService
	DB          *postgres.DB
	Cache       *valkey.Cache
}
