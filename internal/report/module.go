// Package report provides the report bounded context: the reservation made
// at batch activation, the emission queue and the delivery of issued
// artifacts to object storage.
package report

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/events"
	apphttp "compliance_portal_backend/internal/http"
	"compliance_portal_backend/internal/report/handler"
	"compliance_portal_backend/internal/report/repository"
	"compliance_portal_backend/internal/report/service"
	"compliance_portal_backend/platform/config"
	"compliance_portal_backend/platform/logger"
	"compliance_portal_backend/platform/validator"
)

// DrainScheduler kicks the emission worker after a batch is admitted to the
// queue, so issuance does not wait for the periodic drain. Satisfied by the
// scheduler client; nil disables the kick and leaves the periodic drain in
// charge.
type DrainScheduler interface {
	EnqueueEmissionDrain(ctx context.Context) error
}

// Module is the report bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
	repo    *repository.Repository
	gateway *service.Gateway
}

func NewModule(pool *pgxpool.Pool, store service.ObjectStore, sched DrainScheduler, auditor audit.Recorder, bus events.Bus, val *validator.Validator, cfg config.EmissionConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, pool, store, auditor, bus, log, cfg.GetEmissionMaxAttempts())
	h := handler.New(svc, val)
	m := &Module{
		handler: h,
		svc:     svc,
		repo:    repo,
		gateway: service.NewGateway(repo, cfg.GetEmissionMaxAttempts()),
	}

	if sched != nil {
		bus.Subscribe("batch.concluded", events.HandlerFunc(func(ctx context.Context, _ events.Event) error {
			if err := sched.EnqueueEmissionDrain(ctx); err != nil {
				log.Error("failed to schedule emission drain", "error", err)
			}
			return nil
		}))
	}
	return m
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "report"
}

// Gateway returns the surface the batch module drives inside its
// transactions.
func (m *Module) Gateway() *service.Gateway {
	return m.gateway
}

// Repository returns the report repository for the emission worker.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts report routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/reports")
	m.handler.RegisterRoutes(group)

	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/reports"), ctx.Admin.Group("/emission-queue"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
