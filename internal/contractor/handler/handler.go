package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/contractor/domain"
	"compliance_portal_backend/internal/contractor/repository"
	"compliance_portal_backend/internal/contractor/service"
	"compliance_portal_backend/internal/contractor/transport"
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
	rg.POST("", h.Signup)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/transition", h.Transition)
	rg.POST("/:id/reject", h.Reject)
	rg.POST("/:id/accept-contract", h.AcceptContract)
	rg.POST("/:id/activate", h.Activate)
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

func (h *Handler) Signup(c *gin.Context) {
	scope, _, ok := requestScope(c)
	if !ok {
		return
	}

	var req transport.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.Signup(c.Request.Context(), scope, req)
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

	filter := repository.ListFilter{}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unknown status filter", nil)
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}

	resp, err := h.svc.List(c.Request.Context(), scope, filter)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Transition(c *gin.Context) {
	scope, actor, ok := requestScope(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.Transition(c.Request.Context(), scope, actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Reject(c *gin.Context) {
	scope, actor, ok := requestScope(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.Reject(c.Request.Context(), scope, actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) AcceptContract(c *gin.Context) {
	scope, actor, ok := requestScope(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	resp, err := h.svc.AcceptContract(c.Request.Context(), scope, actor, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Activate(c *gin.Context) {
	scope, actor, ok := requestScope(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.Activate(c.Request.Context(), scope, actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}
