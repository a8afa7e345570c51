// Package batch provides the evaluation batch bounded context: eligibility,
// sequencing, the inactivation guard and the batch aggregate lifecycle.
package batch

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/batch/handler"
	"compliance_portal_backend/internal/batch/repository"
	"compliance_portal_backend/internal/batch/service"
	"compliance_portal_backend/internal/events"
	apphttp "compliance_portal_backend/internal/http"
	"compliance_portal_backend/platform/logger"
	"compliance_portal_backend/platform/validator"
)

// Module is the batch bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the batch module. The report gateway is
// passed in because reservation and emission admission belong to the report
// context but run inside batch transactions.
func NewModule(pool *pgxpool.Pool, reports service.ReportGateway, auditor audit.Recorder, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, pool, reports, auditor, bus, log)
	h := handler.New(svc, val)
	return &Module{handler: h, svc: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "batch"
}

// Service returns the batch service for other modules.
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts batch routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/batches")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
