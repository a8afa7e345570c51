package tenant

import (
	"github.com/google/uuid"

	"compliance_portal_backend/platform/apperr"
	"compliance_portal_backend/platform/httpkit"
)

// Resolve derives the effective scope of a request. Tenant-bound actors are
// pinned to their own silo regardless of what they asked for; admins must
// name exactly one target silo explicitly. The switch covers every role in
// the closed set; anything else is rejected outright.
func Resolve(role httpkit.Role, ownClinicID, ownEntityID, requestedClinicID, requestedEntityID *uuid.UUID) (Scope, error) {
	switch role {
	case httpkit.RoleClinicManager:
		if ownClinicID == nil {
			return Scope{}, apperr.Forbidden("clinic manager has no clinic claim")
		}
		return ForClinic(*ownClinicID), nil
	case httpkit.RoleEntityManager:
		if ownEntityID == nil {
			return Scope{}, apperr.Forbidden("entity manager has no entity claim")
		}
		return ForEntity(*ownEntityID), nil
	case httpkit.RoleAdmin, httpkit.RoleIssuer:
		s := Scope{ClinicID: requestedClinicID, EntityID: requestedEntityID}
		if err := s.Validate(); err != nil {
			return Scope{}, apperr.Validation("request must target exactly one of clinic_id or entity_id")
		}
		return s, nil
	case httpkit.RoleSystem:
		return Scope{}, apperr.Forbidden("system role cannot act through the API")
	default:
		return Scope{}, apperr.Forbidden("unknown role")
	}
}
