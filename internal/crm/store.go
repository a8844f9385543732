package crm

import (
	"context"

	"relaycrm.org/internal/scope"
)

// LeadStore persists leads.
type LeadStore interface {
	Create(ctx context.Context, l *Lead) error
	Get(ctx context.Context, id string) (Lead, error)
	List(ctx context.Context, p scope.Predicate) ([]Lead, error)
	Update(ctx context.Context, id string, upd LeadUpdate) (Lead, error)
	Delete(ctx context.Context, id string) error
}

// CustomerStore persists customers.
type CustomerStore interface {
	Create(ctx context.Context, c *Customer) error
	Get(ctx context.Context, id string) (Customer, error)
	List(ctx context.Context, p scope.Predicate) ([]Customer, error)
	Update(ctx context.Context, id string, upd CustomerUpdate) (Customer, error)
	Delete(ctx context.Context, id string) error
}

// CommunicationStore persists communications. Rows come back with the linked
// lead/customer ownership columns resolved.
type CommunicationStore interface {
	Create(ctx context.Context, c *Communication) error
	Get(ctx context.Context, id string) (Communication, error)
	List(ctx context.Context, p scope.Predicate) ([]Communication, error)
	Delete(ctx context.Context, id string) error
}

// RenewalStore persists renewals. Rows come back with the linked customer's
// ownership columns resolved.
type RenewalStore interface {
	Create(ctx context.Context, r *Renewal) error
	Get(ctx context.Context, id string) (Renewal, error)
	List(ctx context.Context, p scope.Predicate) ([]Renewal, error)
	Update(ctx context.Context, id string, upd RenewalUpdate) (Renewal, error)
}

// UserStore persists accounts, hierarchy edges and permission overrides.
type UserStore interface {
	// CreateEmployee inserts an employee account and its hierarchy edge in a
	// single atomic unit, re-checking the owning admin's employee limit
	// inside the transaction. A lost race returns ErrLimitReached.
	CreateEmployee(ctx context.Context, u *User) error
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, p scope.Predicate) ([]User, error)
	Update(ctx context.Context, id string, upd UserUpdate) (User, error)
	Delete(ctx context.Context, id string) error

	PermissionOverrides(ctx context.Context, userID string) (map[scope.PermKey]scope.Scope, error)
	SetPermissionOverrides(ctx context.Context, userID string, overrides map[scope.PermKey]scope.Scope) error
}
