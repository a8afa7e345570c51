package tenant

import (
	"testing"

	"compliance_portal_backend/platform/apperr"
	"compliance_portal_backend/platform/httpkit"

	"github.com/google/uuid"
)

func TestResolvePinsManagersToOwnSilo(t *testing.T) {
	ownClinic := uuid.New()
	ownEntity := uuid.New()
	otherClinic := uuid.New()

	scope, err := Resolve(httpkit.RoleClinicManager, &ownClinic, nil, &otherClinic, nil)
	if err != nil {
		t.Fatalf("clinic manager resolve failed: %v", err)
	}
	if scope.ClinicID == nil || *scope.ClinicID != ownClinic {
		t.Fatal("clinic manager must be pinned to the clinic claim, not the requested clinic")
	}

	scope, err = Resolve(httpkit.RoleEntityManager, nil, &ownEntity, &otherClinic, nil)
	if err != nil {
		t.Fatalf("entity manager resolve failed: %v", err)
	}
	if scope.EntityID == nil || *scope.EntityID != ownEntity {
		t.Fatal("entity manager must be pinned to the entity claim")
	}

	if _, err := Resolve(httpkit.RoleClinicManager, nil, nil, &otherClinic, nil); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("clinic manager without a clinic claim: expected forbidden, got %v", err)
	}
}

func TestResolveAdminMustNameExactlyOneTarget(t *testing.T) {
	clinicID := uuid.New()
	entityID := uuid.New()

	scope, err := Resolve(httpkit.RoleAdmin, nil, nil, &clinicID, nil)
	if err != nil {
		t.Fatalf("admin resolve failed: %v", err)
	}
	if scope.ClinicID == nil || *scope.ClinicID != clinicID {
		t.Fatal("admin scope must carry the requested clinic")
	}

	if _, err := Resolve(httpkit.RoleAdmin, nil, nil, nil, nil); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("admin with no target: expected validation error, got %v", err)
	}
	if _, err := Resolve(httpkit.RoleIssuer, nil, nil, &clinicID, &entityID); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("issuer with both targets: expected validation error, got %v", err)
	}
}

func TestResolveRejectsNonRequestRoles(t *testing.T) {
	clinicID := uuid.New()

	if _, err := Resolve(httpkit.RoleSystem, nil, nil, &clinicID, nil); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("system role: expected forbidden, got %v", err)
	}
	if _, err := Resolve(httpkit.Role("auditor"), nil, nil, &clinicID, nil); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("unknown role: expected forbidden, got %v", err)
	}
}
