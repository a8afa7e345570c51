package tenant

import (
	"testing"

	"compliance_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestScopeValidateRequiresExactlyOneOwner(t *testing.T) {
	clinicID := uuid.New()
	entityID := uuid.New()

	if err := ForClinic(clinicID).Validate(); err != nil {
		t.Fatalf("clinic scope should be valid, got %v", err)
	}
	if err := ForEntity(entityID).Validate(); err != nil {
		t.Fatalf("entity scope should be valid, got %v", err)
	}

	empty := Scope{}
	if err := empty.Validate(); err == nil {
		t.Fatal("empty scope must be rejected")
	}

	both := Scope{ClinicID: &clinicID, EntityID: &entityID}
	err := both.Validate()
	if err == nil {
		t.Fatal("scope with both owners must be rejected")
	}
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("double-owner scope is an invariant violation, got kind %v", apperr.GetKind(err))
	}
}

func TestScopeLockKeySeparatesSilos(t *testing.T) {
	id := uuid.New()

	clinicKey := ForClinic(id).LockKey()
	entityKey := ForEntity(id).LockKey()

	if clinicKey == entityKey {
		t.Fatal("same owner id in different silos must lock different keys")
	}
	if clinicKey != ForClinic(id).LockKey() {
		t.Fatal("lock key must be stable for the same scope")
	}
}
