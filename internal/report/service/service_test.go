package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/report/transport"
	"compliance_portal_backend/internal/tenant"
	"compliance_portal_backend/platform/apperr"
	"compliance_portal_backend/platform/httpkit"
)

func TestEmergencyEmissionRejectsNonAdmin(t *testing.T) {
	svc := &Service{}
	clinicID := uuid.New()
	scope := tenant.Scope{ClinicID: &clinicID}
	actor := audit.Actor{ID: uuid.New(), Role: httpkit.RoleClinicManager}

	err := svc.EmergencyEmission(context.Background(), scope, actor, uuid.New(), transport.EmergencyEmissionRequest{
		Reason: "renderer outage delayed the batch past its legal deadline",
	})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestEmergencyEmissionRequiresReason(t *testing.T) {
	svc := &Service{}
	clinicID := uuid.New()
	scope := tenant.Scope{ClinicID: &clinicID}
	actor := audit.Actor{ID: uuid.New(), Role: httpkit.RoleAdmin}

	for _, reason := range []string{"", "short", "  padded  "} {
		err := svc.EmergencyEmission(context.Background(), scope, actor, uuid.New(), transport.EmergencyEmissionRequest{
			Reason: reason,
		})
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("reason %q: expected validation error, got %v", reason, err)
		}
	}
}
