package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/batch/service"
	"compliance_portal_backend/internal/batch/transport"
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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Activate)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/evaluations", h.ListEvaluations)
	rg.POST("/:id/evaluations/:evaluationId/inactivate", h.Inactivate)
	rg.POST("/:id/evaluations/:evaluationId/conclude", h.Conclude)
	rg.POST("/:id/evaluations/:evaluationId/reset", h.Reset)
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

func pathIDs(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, uuid.Nil, false
	}
	evaluationID, err := uuid.Parse(c.Param("evaluationId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, uuid.Nil, false
	}
	return batchID, evaluationID, true
}

func (h *Handler) Activate(c *gin.Context) {
	scope, actor, ok := requestScope(c)
	if !ok {
		return
	}

	var req transport.ActivateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	resp, err := h.svc.Activate(c.Request.Context(), scope, actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, resp)
}

func (h *Handler) GetByID(c *gin.Context) {
	scope, _, ok := requestScope(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	resp, err := h.svc.Get(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) List(c *gin.Context) {
	scope, _, ok := requestScope(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := h.svc.List(c.Request.Context(), scope, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ListEvaluations(c *gin.Context) {
	scope, _, ok := requestScope(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	resp, err := h.svc.ListEvaluations(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Inactivate(c *gin.Context) {
	scope, actor, ok := requestScope(c)
	if !ok {
		return
	}
	batchID, evaluationID, ok := pathIDs(c)
	if !ok {
		return
	}

	var req transport.InactivateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.Inactivate(c.Request.Context(), scope, actor, batchID, evaluationID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Conclude(c *gin.Context) {
	scope, actor, ok := requestScope(c)
	if !ok {
		return
	}
	batchID, evaluationID, ok := pathIDs(c)
	if !ok {
		return
	}

	resp, err := h.svc.Conclude(c.Request.Context(), scope, actor, batchID, evaluationID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Reset(c *gin.Context) {
	scope, actor, ok := requestScope(c)
	if !ok {
		return
	}
	batchID, evaluationID, ok := pathIDs(c)
	if !ok {
		return
	}

	var req transport.ResetEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.Reset(c.Request.Context(), scope, actor, batchID, evaluationID, req); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"reset": true})
}
