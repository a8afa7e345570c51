// Package tenant defines the explicit tenant scope threaded through every
// repository and service call. A scope identifies exactly one owner silo:
// a clinic or an independent entity. The two silos never share rows, joins,
// or identifiers.
package tenant

import (
	"compliance_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// Kind identifies which silo a scope belongs to.
type Kind string

const (
	KindClinic Kind = "clinic"
	KindEntity Kind = "entity"
)

// Scope is the owner of a tenant-partitioned row. Exactly one of ClinicID
// or EntityID is set; anything else is an invariant violation and must
// abort the operation rather than proceed with ambiguous semantics.
type Scope struct {
	ClinicID *uuid.UUID
	EntityID *uuid.UUID
}

// ForClinic builds a clinic-silo scope.
func ForClinic(id uuid.UUID) Scope {
	return Scope{ClinicID: &id}
}

// ForEntity builds an entity-silo scope.
func ForEntity(id uuid.UUID) Scope {
	return Scope{EntityID: &id}
}

// Validate checks the exactly-one-owner invariant.
func (s Scope) Validate() error {
	if s.ClinicID != nil && s.EntityID != nil {
		return apperr.Internal("tenant scope has both clinic and entity owners")
	}
	if s.ClinicID == nil && s.EntityID == nil {
		return apperr.Validation("tenant scope is required")
	}
	return nil
}

// Kind returns which silo the scope addresses. Validate must have passed.
func (s Scope) Kind() Kind {
	if s.ClinicID != nil {
		return KindClinic
	}
	return KindEntity
}

// OwnerID returns the owning identifier. Validate must have passed.
func (s Scope) OwnerID() uuid.UUID {
	if s.ClinicID != nil {
		return *s.ClinicID
	}
	if s.EntityID != nil {
		return *s.EntityID
	}
	return uuid.Nil
}

// LockKey derives a stable 64-bit advisory lock key for the scope, used to
// serialize per-organization sequence assignment. Clinic and entity silos
// hash to disjoint key spaces.
func (s Scope) LockKey() int64 {
	id := s.OwnerID()
	// Fold the UUID into 63 bits; the top bit separates the silos.
	var key int64
	for i := 0; i < 8; i++ {
		key = key<<8 | int64(id[i])
	}
	key &= 0x3FFFFFFFFFFFFFFF
	if s.Kind() == KindEntity {
		key |= 0x4000000000000000
	}
	return key
}
