// Package auth holds the typed caller identity that every service operation
// authorizes against.
package auth

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleCustomer     Role = "CUSTOMER"
	RoleAdminKos     Role = "ADMINKOS"
	RoleReceptionist Role = "RECEPTIONIST"
	RoleSuperAdmin   Role = "SUPERADMIN"
	RoleSystem       Role = "SYSTEM"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdminKos, RoleReceptionist, RoleSuperAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor is built once per request from the verified token.
// PropertyID is set for receptionists, who work at a single property.
type Actor struct {
	UserID     uuid.UUID
	Role       Role
	PropertyID *uuid.UUID
}

// System is the actor used by scheduled jobs and gateway callbacks.
func System() Actor {
	return Actor{Role: RoleSystem}
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

func (a Actor) Privileged() bool {
	return a.Is(RoleSuperAdmin, RoleSystem)
}

// CanManageProperty reports whether the actor may run operational steps
// (check-in, check-out, validation) for a property.
func (a Actor) CanManageProperty(ownerID, propertyID uuid.UUID) bool {
	switch a.Role {
	case RoleSuperAdmin, RoleSystem:
		return true
	case RoleAdminKos:
		return a.UserID == ownerID
	case RoleReceptionist:
		return a.PropertyID != nil && *a.PropertyID == propertyID
	}
	return false
}

// CanAccessBooking reports read access to a booking and its payments.
func (a Actor) CanAccessBooking(customerID, ownerID, propertyID uuid.UUID) bool {
	if a.Role == RoleCustomer {
		return a.UserID == customerID
	}
	return a.CanManageProperty(ownerID, propertyID)
}
