// Package scope decides which CRM records an identity may see or change.
//
// Every resource row carries an ownership fact: who created it and who it is
// assigned to. An identity's effective scope for a (resource, action) pair is
// either an explicit per-user permission override or the role default, and is
// one of a small closed set of values. The same scope evaluation backs both
// single-record checks (Resolver.CanAct) and list filtering
// (Resolver.BuildFilter); the two are required to agree for every possible
// ownership fact.
package scope

import (
	"errors"
	"fmt"
	"strings"
)

// Scope constrains which records an identity may act on.
type Scope string

const (
	// ScopeNone denies everything.
	ScopeNone Scope = "none"
	// ScopeCreated allows records the identity created.
	ScopeCreated Scope = "created"
	// ScopeAssigned allows records assigned to the identity.
	ScopeAssigned Scope = "assigned"
	// ScopeSubordinates allows records owned by the admin or by any employee
	// the admin created. Only meaningful for admins.
	ScopeSubordinates Scope = "subordinates"
	// ScopeAll allows every record.
	ScopeAll Scope = "all"
)

// ErrInvalidScope reports a scope value outside the closed set.
var ErrInvalidScope = errors.New("scope: invalid scope value")

// ParseScope validates a stored scope string. Anything outside the closed set
// is rejected so that broken configuration can never widen access.
func ParseScope(raw string) (Scope, error) {
	s := Scope(strings.TrimSpace(strings.ToLower(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, raw)
	}
	return s, nil
}

// Valid reports whether s is one of the known scope values.
func (s Scope) Valid() bool {
	switch s {
	case ScopeNone, ScopeCreated, ScopeAssigned, ScopeSubordinates, ScopeAll:
		return true
	}
	return false
}

// Resource identifies a CRM record type subject to scope checks.
type Resource string

const (
	ResourceLead          Resource = "lead"
	ResourceCustomer      Resource = "customer"
	ResourceCommunication Resource = "communication"
	ResourceUser          Resource = "user"
)

// Resources lists every resource type in a fixed order.
var Resources = []Resource{ResourceLead, ResourceCustomer, ResourceCommunication, ResourceUser}

// Valid reports whether r is a known resource type.
func (r Resource) Valid() bool {
	switch r {
	case ResourceLead, ResourceCustomer, ResourceCommunication, ResourceUser:
		return true
	}
	return false
}

// Action identifies what the caller wants to do with a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Actions lists every action in a fixed order.
var Actions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete:
		return true
	}
	return false
}

// Role is the coarse account type an identity carries.
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
	RoleEmployee  Role = "employee"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleDeveloper, RoleAdmin, RoleEmployee:
		return true
	}
	return false
}
