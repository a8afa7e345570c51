// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Role is the closed set of actor roles known to the system.
// Role-sensitive branches must switch exhaustively over these values;
// an unknown role is a validation failure, never a silent default.
type Role string

const (
	// RoleAdmin is the platform operator with cross-tenant powers.
	RoleAdmin Role = "admin"
	// RoleClinicManager manages a clinic silo (client companies, employees, batches).
	RoleClinicManager Role = "clinic_manager"
	// RoleEntityManager manages an independent-entity silo.
	RoleEntityManager Role = "entity_manager"
	// RoleIssuer is the technical report issuer.
	RoleIssuer Role = "issuer"
	// RoleSystem marks actions taken by the system itself (reconciler,
	// emission worker). It is never minted into a token; ParseRole rejects it.
	RoleSystem Role = "system"
)

// ParseRole validates a raw role string against the closed set.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleClinicManager, RoleEntityManager, RoleIssuer:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Identity represents the authenticated actor's identity and tenant claims.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access actor information without depending on Gin.
type Identity interface {
	// ActorID returns the authenticated actor's ID.
	ActorID() uuid.UUID
	// Role returns the actor's role.
	Role() Role
	// ClinicID returns the clinic the actor belongs to, if any.
	ClinicID() *uuid.UUID
	// EntityID returns the independent entity the actor belongs to, if any.
	EntityID() *uuid.UUID
	// IsAuthenticated returns true if the actor is authenticated.
	IsAuthenticated() bool
}

// identity is the concrete implementation of Identity.
type identity struct {
	actorID       uuid.UUID
	role          Role
	clinicID      *uuid.UUID
	entityID      *uuid.UUID
	authenticated bool
}

func (i *identity) ActorID() uuid.UUID   { return i.actorID }
func (i *identity) Role() Role           { return i.role }
func (i *identity) ClinicID() *uuid.UUID { return i.clinicID }
func (i *identity) EntityID() *uuid.UUID { return i.entityID }
func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if actor info is not present.
func GetIdentity(c *gin.Context) Identity {
	actorRaw, actorOK := c.Get(ContextActorIDKey)
	roleRaw, roleOK := c.Get(ContextRoleKey)

	if !actorOK || !roleOK {
		return &identity{authenticated: false}
	}

	actorID, ok := actorRaw.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	role, ok := roleRaw.(Role)
	if !ok {
		return &identity{authenticated: false}
	}

	id := &identity{
		actorID:       actorID,
		role:          role,
		authenticated: true,
	}

	if clinicID, ok := c.Get(ContextClinicIDKey); ok {
		if v, ok := clinicID.(uuid.UUID); ok {
			id.clinicID = &v
		}
	}
	if entityID, ok := c.Get(ContextEntityIDKey); ok {
		if v, ok := entityID.(uuid.UUID); ok {
			id.entityID = &v
		}
	}

	return id
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the actor is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
