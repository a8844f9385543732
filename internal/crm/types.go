package crm

import (
	"time"

	"relaycrm.org/internal/scope"
)

// Lead statuses.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusConverted = "converted"
	LeadStatusLost      = "lost"
)

// Customer statuses.
const (
	CustomerStatusActive  = "active"
	CustomerStatusChurned = "churned"
)

// Renewal statuses.
const (
	RenewalStatusUpcoming = "upcoming"
	RenewalStatusClosed   = "closed"
	RenewalStatusLost     = "lost"
)

// Communication channels.
const (
	ChannelCall    = "call"
	ChannelEmail   = "email"
	ChannelMeeting = "meeting"
	ChannelNote    = "note"
)

// User statuses.
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// Lead is a potential customer being worked by the sales team.
type Lead struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Company    string    `json:"company,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Status     string    `json:"status"`
	CreatedBy  string    `json:"created_by"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Fact returns the lead's ownership fact for scope evaluation.
func (l Lead) Fact() scope.Fact {
	return scope.Fact{CreatorID: l.CreatedBy, AssigneeID: l.AssignedTo}
}

// Customer is a converted, paying account.
type Customer struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Company    string    `json:"company,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Status     string    `json:"status"`
	LeadID     string    `json:"lead_id,omitempty"`
	CreatedBy  string    `json:"created_by"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Fact returns the customer's ownership fact for scope evaluation.
func (c Customer) Fact() scope.Fact {
	return scope.Fact{CreatorID: c.CreatedBy, AssigneeID: c.AssignedTo}
}

// Communication is one logged interaction (call, email, meeting, note)
// attached to exactly one lead or customer.
type Communication struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"lead_id,omitempty"`
	CustomerID string    `json:"customer_id,omitempty"`
	Channel    string    `json:"channel"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body,omitempty"`
	MadeBy     string    `json:"made_by"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`

	// ownership of the linked lead/customer, resolved by the store when the
	// row is loaded
	LinkedCreatedBy  string `json:"-"`
	LinkedAssignedTo string `json:"-"`
}

// Fact returns the communication's dual ownership fact: who logged it plus
// the linked contact's ownership.
func (c Communication) Fact() scope.Fact {
	return scope.Fact{
		CreatorID: c.MadeBy,
		Linked: &scope.Fact{
			CreatorID:  c.LinkedCreatedBy,
			AssigneeID: c.LinkedAssignedTo,
		},
	}
}

// Renewal tracks an upcoming contract renewal on a customer. Renewals have no
// ownership of their own; access follows the customer they belong to.
type Renewal struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	DueAt      time.Time `json:"due_at"`
	Notes      string    `json:"notes,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// linked customer ownership, resolved by the store
	LinkedCreatedBy  string `json:"-"`
	LinkedAssignedTo string `json:"-"`
}

// Fact returns the linked customer's ownership fact.
func (r Renewal) Fact() scope.Fact {
	return scope.Fact{CreatorID: r.LinkedCreatedBy, AssigneeID: r.LinkedAssignedTo}
}

// User is a CRM account: developer, admin or employee. Employees carry the
// id of the admin that created them; admins may carry an employee cap.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Role             scope.Role `json:"role"`
	Status           string     `json:"status"`
	PasswordHash     string     `json:"-"`
	CreatedByAdminID string     `json:"created_by_admin_id,omitempty"`
	EmployeeLimit    *int       `json:"employee_limit,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Fact returns the user record's ownership fact: the creating admin on the
// creator axis and the user's own id on the assignee axis, which is what the
// self-view rule evaluates.
func (u User) Fact() scope.Fact {
	return scope.Fact{CreatorID: u.CreatedByAdminID, AssigneeID: u.ID}
}

// Update payloads. Nil fields are left unchanged.

type LeadUpdate struct {
	Name       *string
	Company    *string
	Email      *string
	Phone      *string
	Status     *string
	AssignedTo *string
}

type CustomerUpdate struct {
	Name       *string
	Company    *string
	Email      *string
	Phone      *string
	Status     *string
	AssignedTo *string
}

type RenewalUpdate struct {
	Status *string
	Amount *int64
	DueAt  *time.Time
	Notes  *string
}

type UserUpdate struct {
	Email    *string
	Password *string
	Status   *string
}
