package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/report/service"
	"compliance_portal_backend/internal/report/transport"
	"compliance_portal_backend/internal/tenant"
	"compliance_portal_backend/platform/httpkit"
	"compliance_portal_backend/platform/validator"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the tenant-facing report endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:batchId", h.Get)
	rg.POST("/:batchId/deliver", h.Deliver)
}

// RegisterAdminRoutes mounts the operator-only endpoints. The exhausted
// listing lives under its own prefix so it does not collide with the
// batch id parameter.
func (h *Handler) RegisterAdminRoutes(reports, queue *gin.RouterGroup) {
	reports.POST("/:batchId/emergency-emission", h.EmergencyEmission)
	queue.GET("/exhausted", h.ListExhausted)
}

func requestScope(c *gin.Context) (tenant.Scope, audit.Actor, bool) {
	ident := httpkit.MustGetIdentity(c)
	actor := audit.Actor{ID: ident.ActorID(), Role: ident.Role()}

	var reqClinic, reqEntity *uuid.UUID
	if raw := c.Query("clinic_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid clinic_id", nil)
			return tenant.Scope{}, audit.Actor{}, false
		}
		reqClinic = &id
	}
	if raw := c.Query("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid entity_id", nil)
			return tenant.Scope{}, audit.Actor{}, false
		}
		reqEntity = &id
	}

	scope, err := tenant.Resolve(actor.Role, ident.ClinicID(), ident.EntityID(), reqClinic, reqEntity)
	if err != nil {
		httpkit.HandleError(c, err)
		return tenant.Scope{}, audit.Actor{}, false
	}
	return scope, actor, true
}

func batchID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) Get(c *gin.Context) {
	scope, _, ok := requestScope(c)
	if !ok {
		return
	}
	id, ok := batchID(c)
	if !ok {
		return
	}

	resp, err := h.svc.Get(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Deliver(c *gin.Context) {
	scope, actor, ok := requestScope(c)
	if !ok {
		return
	}
	id, ok := batchID(c)
	if !ok {
		return
	}

	resp, err := h.svc.Deliver(c.Request.Context(), scope, actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) EmergencyEmission(c *gin.Context) {
	scope, actor, ok := requestScope(c)
	if !ok {
		return
	}
	id, ok := batchID(c)
	if !ok {
		return
	}

	var req transport.EmergencyEmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.EmergencyEmission(c.Request.Context(), scope, actor, id, req); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"admitted": true})
}

func (h *Handler) ListExhausted(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	resp, err := h.svc.ListExhausted(c.Request.Context(), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}
