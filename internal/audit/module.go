package audit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apphttp "compliance_portal_backend/internal/http"
	"compliance_portal_backend/internal/tenant"
	"compliance_portal_backend/platform/httpkit"
)

// Module exposes the audit feed to administrators.
type Module struct {
	svc *Service
}

func NewModule(svc *Service) *Module {
	return &Module{svc: svc}
}

func (m *Module) Name() string { return "audit" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/audit", m.handleList)
}

// handleList serves the filterable audit feed, newest first. All filters
// are optional query parameters; target_id narrows to one audited record
// while clinic_id and entity_id narrow to a tenant.
func (m *Module) handleList(c *gin.Context) {
	filter := ListFilter{
		Entity: c.Query("entity"),
		Action: c.Query("action"),
	}

	if raw := c.Query("target_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid target_id", nil)
			return
		}
		filter.EntityID = &id
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		filter.Limit = n
	}

	if c.Query("clinic_id") != "" || c.Query("entity_id") != "" {
		var scope tenant.Scope
		if raw := c.Query("clinic_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				httpkit.Error(c, http.StatusBadRequest, "invalid clinic_id", nil)
				return
			}
			scope.ClinicID = &id
		}
		if raw := c.Query("entity_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				httpkit.Error(c, http.StatusBadRequest, "invalid entity_id", nil)
				return
			}
			scope.EntityID = &id
		}
		if err := scope.Validate(); err != nil {
			httpkit.HandleError(c, err)
			return
		}
		filter.Scope = &scope
	}

	entries, err := m.svc.List(c.Request.Context(), filter)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to list audit entries", nil)
		return
	}

	resp := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, gin.H{
			"id":         e.ID,
			"actor_id":   e.ActorID,
			"actor_role": e.ActorRole,
			"action":     e.Action,
			"entity":     e.Entity,
			"entity_id":  e.EntityID,
			"payload":    e.Payload,
			"created_at": e.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"items": resp})
}
