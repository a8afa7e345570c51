// Package contractor provides the contractor onboarding bounded context:
// signup, the onboarding state machine, and activation.
package contractor

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/contractor/handler"
	"compliance_portal_backend/internal/contractor/repository"
	"compliance_portal_backend/internal/contractor/service"
	"compliance_portal_backend/internal/events"
	apphttp "compliance_portal_backend/internal/http"
	"compliance_portal_backend/platform/logger"
	"compliance_portal_backend/platform/validator"
)

// Module is the contractor bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the contractor module.
func NewModule(pool *pgxpool.Pool, bus events.Bus, auditor audit.Recorder, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, pool, auditor, bus, log)
	h := handler.New(svc, val)
	return &Module{handler: h, svc: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "contractor"
}

// Service returns the contractor service for other modules (the payment
// reconciler drives the payment confirmation edge through it).
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts contractor routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/contractors")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
