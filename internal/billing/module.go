// Package billing provides the billing bounded context: the payment gateway
// webhook reconciler, the plan catalog, and payment records.
package billing

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/billing/catalog"
	"compliance_portal_backend/internal/billing/handler"
	"compliance_portal_backend/internal/billing/repository"
	"compliance_portal_backend/internal/billing/service"
	"compliance_portal_backend/internal/events"
	apphttp "compliance_portal_backend/internal/http"
	"compliance_portal_backend/platform/config"
	"compliance_portal_backend/platform/logger"
	"compliance_portal_backend/platform/validator"
)

// Module is the billing bounded context module implementing http.Module.
type Module struct {
	handler      *handler.Handler
	reconciler   *service.Reconciler
	webhookToken string
}

// NewModule creates and initializes the billing module. The plan catalog is
// loaded eagerly so a broken catalog fails startup instead of the first
// quote request.
func NewModule(pool *pgxpool.Pool, confirmer service.ContractorConfirmer, auditor audit.Recorder, bus events.Bus, val *validator.Validator, cfg config.WebhookConfig, catalogPath string, log *logger.Logger) (*Module, error) {
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	reconciler := service.NewReconciler(repo, pool, confirmer, auditor, bus, log)
	h := handler.New(reconciler, repo, cat, val)

	return &Module{
		handler:      h,
		reconciler:   reconciler,
		webhookToken: cfg.GetGatewayWebhookToken(),
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "billing"
}

// Reconciler returns the reconciler for external callers.
func (m *Module) Reconciler() *service.Reconciler {
	return m.reconciler
}

// RegisterRoutes mounts billing routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public webhook endpoint (gateway token auth, no JWT)
	webhook := ctx.V1.Group("/webhooks")
	webhook.Use(ctx.WebhookRateLimiter.RateLimit())
	webhook.Use(handler.GatewayTokenAuth(m.webhookToken))
	webhook.POST("/payment-gateway", m.handler.HandleGatewayWebhook)

	// Authenticated billing queries
	billing := ctx.Protected.Group("/billing")
	billing.POST("/plans/quote", m.handler.HandleQuotePlan)

	// Admin review of held events
	ctx.Admin.GET("/billing/unreconciled", m.handler.HandleListUnreconciled)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
