package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"compliance_portal_backend/internal/billing/catalog"
	"compliance_portal_backend/internal/billing/repository"
	"compliance_portal_backend/internal/billing/service"
	"compliance_portal_backend/internal/billing/transport"
	"compliance_portal_backend/platform/httpkit"
	"compliance_portal_backend/platform/validator"
)

type Handler struct {
	reconciler *service.Reconciler
	repo       *repository.Repository
	catalog    *catalog.Catalog
	val        *validator.Validator
}

func New(reconciler *service.Reconciler, repo *repository.Repository, cat *catalog.Catalog, val *validator.Validator) *Handler {
	return &Handler{reconciler: reconciler, repo: repo, catalog: cat, val: val}
}

// GatewayTokenAuth validates the shared webhook token the gateway sends on
// every delivery. Constant-time compare so the check does not leak the
// token through timing.
func GatewayTokenAuth(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("asaas-access-token"))
		if len(expected) == 0 || subtle.ConstantTimeCompare(expected, got) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
		c.Next()
	}
}

// HandleGatewayWebhook ingests one gateway event. The reconciler guarantees
// idempotency, so the gateway may redeliver freely; any 2xx stops retries.
func (h *Handler) HandleGatewayWebhook(c *gin.Context) {
	var evt transport.GatewayEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid webhook payload", nil)
		return
	}

	outcome, err := h.reconciler.ProcessEvent(c.Request.Context(), evt)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.WebhookAck{Received: true, Outcome: outcome})
}

// HandleListUnreconciled lists held events for manual review.
func (h *Handler) HandleListUnreconciled(c *gin.Context) {
	items, err := h.repo.ListUnreconciled(c.Request.Context(), 50)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to list unreconciled events", nil)
		return
	}

	resp := make([]transport.UnreconciledEventResponse, 0, len(items))
	for _, e := range items {
		resp = append(resp, transport.UnreconciledEventResponse{
			ID:               e.ID,
			GatewayPaymentID: e.GatewayPaymentID,
			EventType:        e.EventType,
			ProcessedAt:      e.ProcessedAt,
		})
	}
	httpkit.OK(c, gin.H{"items": resp})
}

// HandleQuotePlan prices a plan for a given headcount from the catalog.
func (h *Handler) HandleQuotePlan(c *gin.Context) {
	var req transport.PlanQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	per, err := h.catalog.PerHeadCents(req.Plan, req.Headcount)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	httpkit.OK(c, transport.PlanQuoteResponse{
		Plan:         req.Plan,
		Headcount:    req.Headcount,
		PerHeadCents: per,
		TotalCents:   per * int64(req.Headcount),
	})
}
