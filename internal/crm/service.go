package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"relaycrm.org/internal/scope"
)

// Service implements the CRM operations. Every operation authorizes through
// the scope resolver before touching the store; list operations apply the
// equivalent predicate so a record never appears in a listing the caller
// could not open directly.
type Service struct {
	leads     LeadStore
	customers CustomerStore
	comms     CommunicationStore
	renewals  RenewalStore
	users     UserStore

	resolver *scope.Resolver
	quota    *scope.QuotaEnforcer
	hash     func(password string) (string, error)
	verify   func(hash, password string) (bool, error)
}

// Config wires the Service.
type Config struct {
	Leads          LeadStore
	Customers      CustomerStore
	Communications CommunicationStore
	Renewals       RenewalStore
	Users          UserStore
	Resolver       *scope.Resolver
	Quota          *scope.QuotaEnforcer
	HashPassword   func(password string) (string, error)
	VerifyPassword func(hash, password string) (bool, error)
}

// NewService constructs the CRM service.
func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Leads == nil, cfg.Customers == nil, cfg.Communications == nil,
		cfg.Renewals == nil, cfg.Users == nil:
		return nil, errors.New("crm: all stores are required")
	case cfg.Resolver == nil:
		return nil, errors.New("crm: scope resolver is required")
	case cfg.Quota == nil:
		return nil, errors.New("crm: quota enforcer is required")
	case cfg.HashPassword == nil, cfg.VerifyPassword == nil:
		return nil, errors.New("crm: password hasher is required")
	}
	return &Service{
		leads:     cfg.Leads,
		customers: cfg.Customers,
		comms:     cfg.Communications,
		renewals:  cfg.Renewals,
		users:     cfg.Users,
		resolver:  cfg.Resolver,
		quota:     cfg.Quota,
		hash:      cfg.HashPassword,
		verify:    cfg.VerifyPassword,
	}, nil
}

// Authenticate checks a credential pair and returns the matching active
// account. A bad email and a bad password come back as the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return User{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("%w: bad credentials", ErrPermissionDenied)
		}
		return User{}, err
	}
	ok, err := s.verify(u.PasswordHash, password)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, fmt.Errorf("%w: bad credentials", ErrPermissionDenied)
	}
	if u.Status != UserStatusActive {
		return User{}, fmt.Errorf("%w: account disabled", ErrPermissionDenied)
	}
	return u, nil
}

func (s *Service) authorize(ctx context.Context, actor scope.Identity, res scope.Resource, act scope.Action, fact scope.Fact) error {
	d, err := s.resolver.CanAct(ctx, actor, res, act, fact)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, d.Reason)
	}
	return nil
}

// Identity assembles the scope identity for an authenticated account:
// role plus stored permission overrides. Disabled accounts are rejected.
func (s *Service) Identity(ctx context.Context, userID string) (scope.Identity, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return scope.Identity{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return scope.Identity{}, err
	}
	if u.Status != UserStatusActive {
		return scope.Identity{}, fmt.Errorf("%w: account disabled", ErrPermissionDenied)
	}
	overrides, err := s.users.PermissionOverrides(ctx, userID)
	if err != nil {
		return scope.Identity{}, err
	}
	return scope.Identity{ID: u.ID, Role: u.Role, Permissions: overrides}, nil
}

// Leads ---------------------------------------------------------------------

// LeadInput carries the fields a caller may set when opening a lead.
type LeadInput struct {
	Name       string
	Company    string
	Email      string
	Phone      string
	AssignedTo string
}

func (s *Service) CreateLead(ctx context.Context, actor scope.Identity, in LeadInput) (Lead, error) {
	if err := s.authorize(ctx, actor, scope.ResourceLead, scope.ActionCreate, scope.Fact{}); err != nil {
		return Lead{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Lead{}, fmt.Errorf("%w: lead name is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email != "" && !strings.Contains(email, "@") {
		return Lead{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	assignee := strings.TrimSpace(in.AssignedTo)
	if assignee != "" {
		if err := s.requireAccount(ctx, assignee); err != nil {
			return Lead{}, err
		}
	}
	lead := Lead{
		Name:       name,
		Company:    strings.TrimSpace(in.Company),
		Email:      email,
		Phone:      strings.TrimSpace(in.Phone),
		Status:     LeadStatusNew,
		CreatedBy:  actor.ID,
		AssignedTo: assignee,
	}
	if err := s.leads.Create(ctx, &lead); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (s *Service) GetLead(ctx context.Context, actor scope.Identity, id string) (Lead, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Lead{}, fmt.Errorf("%w: lead id is required", ErrInvalidInput)
	}
	lead, err := s.leads.Get(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceLead, scope.ActionView, lead.Fact()); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (s *Service) ListLeads(ctx context.Context, actor scope.Identity) ([]Lead, error) {
	p, err := s.resolver.BuildFilter(ctx, actor, scope.ResourceLead, scope.ActionView)
	if err != nil {
		return nil, err
	}
	return s.leads.List(ctx, p)
}

func (s *Service) UpdateLead(ctx context.Context, actor scope.Identity, id string, upd LeadUpdate) (Lead, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Lead{}, fmt.Errorf("%w: lead id is required", ErrInvalidInput)
	}
	lead, err := s.leads.Get(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceLead, scope.ActionEdit, lead.Fact()); err != nil {
		return Lead{}, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Lead{}, fmt.Errorf("%w: lead name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email != "" && !strings.Contains(email, "@") {
			return Lead{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if !validLeadStatus(status) {
			return Lead{}, fmt.Errorf("%w: unsupported lead status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	if upd.AssignedTo != nil {
		assignee := strings.TrimSpace(*upd.AssignedTo)
		if assignee != "" {
			if err := s.requireAccount(ctx, assignee); err != nil {
				return Lead{}, err
			}
		}
		upd.AssignedTo = &assignee
	}
	return s.leads.Update(ctx, id, upd)
}

func (s *Service) DeleteLead(ctx context.Context, actor scope.Identity, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: lead id is required", ErrInvalidInput)
	}
	lead, err := s.leads.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, scope.ResourceLead, scope.ActionDelete, lead.Fact()); err != nil {
		return err
	}
	return s.leads.Delete(ctx, id)
}

// ConvertLead closes a lead as converted and opens a customer carrying its
// contact fields and assignment.
func (s *Service) ConvertLead(ctx context.Context, actor scope.Identity, id string) (Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Customer{}, fmt.Errorf("%w: lead id is required", ErrInvalidInput)
	}
	lead, err := s.leads.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceLead, scope.ActionEdit, lead.Fact()); err != nil {
		return Customer{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceCustomer, scope.ActionCreate, scope.Fact{}); err != nil {
		return Customer{}, err
	}
	if lead.Status == LeadStatusConverted {
		return Customer{}, fmt.Errorf("%w: lead already converted", ErrConflict)
	}
	customer := Customer{
		Name:       lead.Name,
		Company:    lead.Company,
		Email:      lead.Email,
		Phone:      lead.Phone,
		Status:     CustomerStatusActive,
		LeadID:     lead.ID,
		CreatedBy:  actor.ID,
		AssignedTo: lead.AssignedTo,
	}
	if err := s.customers.Create(ctx, &customer); err != nil {
		return Customer{}, err
	}
	converted := LeadStatusConverted
	if _, err := s.leads.Update(ctx, id, LeadUpdate{Status: &converted}); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

func validLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusConverted, LeadStatusLost:
		return true
	}
	return false
}

// Customers -----------------------------------------------------------------

// CustomerInput carries the fields a caller may set when creating a customer.
type CustomerInput struct {
	Name       string
	Company    string
	Email      string
	Phone      string
	AssignedTo string
}

func (s *Service) CreateCustomer(ctx context.Context, actor scope.Identity, in CustomerInput) (Customer, error) {
	if err := s.authorize(ctx, actor, scope.ResourceCustomer, scope.ActionCreate, scope.Fact{}); err != nil {
		return Customer{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Customer{}, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email != "" && !strings.Contains(email, "@") {
		return Customer{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	assignee := strings.TrimSpace(in.AssignedTo)
	if assignee != "" {
		if err := s.requireAccount(ctx, assignee); err != nil {
			return Customer{}, err
		}
	}
	customer := Customer{
		Name:       name,
		Company:    strings.TrimSpace(in.Company),
		Email:      email,
		Phone:      strings.TrimSpace(in.Phone),
		Status:     CustomerStatusActive,
		CreatedBy:  actor.ID,
		AssignedTo: assignee,
	}
	if err := s.customers.Create(ctx, &customer); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, actor scope.Identity, id string) (Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Customer{}, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	customer, err := s.customers.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceCustomer, scope.ActionView, customer.Fact()); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, actor scope.Identity) ([]Customer, error) {
	p, err := s.resolver.BuildFilter(ctx, actor, scope.ResourceCustomer, scope.ActionView)
	if err != nil {
		return nil, err
	}
	return s.customers.List(ctx, p)
}

func (s *Service) UpdateCustomer(ctx context.Context, actor scope.Identity, id string, upd CustomerUpdate) (Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Customer{}, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	customer, err := s.customers.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceCustomer, scope.ActionEdit, customer.Fact()); err != nil {
		return Customer{}, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Customer{}, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email != "" && !strings.Contains(email, "@") {
			return Customer{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != CustomerStatusActive && status != CustomerStatusChurned {
			return Customer{}, fmt.Errorf("%w: unsupported customer status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	if upd.AssignedTo != nil {
		assignee := strings.TrimSpace(*upd.AssignedTo)
		if assignee != "" {
			if err := s.requireAccount(ctx, assignee); err != nil {
				return Customer{}, err
			}
		}
		upd.AssignedTo = &assignee
	}
	return s.customers.Update(ctx, id, upd)
}

func (s *Service) DeleteCustomer(ctx context.Context, actor scope.Identity, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	customer, err := s.customers.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, scope.ResourceCustomer, scope.ActionDelete, customer.Fact()); err != nil {
		return err
	}
	return s.customers.Delete(ctx, id)
}

// Communications ------------------------------------------------------------

// CommunicationInput describes one interaction to log. Exactly one of LeadID
// and CustomerID must be set.
type CommunicationInput struct {
	LeadID     string
	CustomerID string
	Channel    string
	Subject    string
	Body       string
	OccurredAt time.Time
}

func (s *Service) LogCommunication(ctx context.Context, actor scope.Identity, in CommunicationInput) (Communication, error) {
	leadID := strings.TrimSpace(in.LeadID)
	customerID := strings.TrimSpace(in.CustomerID)
	if (leadID == "") == (customerID == "") {
		return Communication{}, fmt.Errorf("%w: exactly one of lead_id and customer_id is required", ErrInvalidInput)
	}
	channel := strings.TrimSpace(strings.ToLower(in.Channel))
	if !validChannel(channel) {
		return Communication{}, fmt.Errorf("%w: unsupported channel %s", ErrInvalidInput, channel)
	}
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return Communication{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if err := s.authorize(ctx, actor, scope.ResourceCommunication, scope.ActionCreate, scope.Fact{}); err != nil {
		return Communication{}, err
	}

	// the caller must be able to see the contact they are logging against
	if leadID != "" {
		if _, err := s.GetLead(ctx, actor, leadID); err != nil {
			return Communication{}, err
		}
	} else {
		if _, err := s.GetCustomer(ctx, actor, customerID); err != nil {
			return Communication{}, err
		}
	}

	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	comm := Communication{
		LeadID:     leadID,
		CustomerID: customerID,
		Channel:    channel,
		Subject:    subject,
		Body:       strings.TrimSpace(in.Body),
		MadeBy:     actor.ID,
		OccurredAt: occurred,
	}
	if err := s.comms.Create(ctx, &comm); err != nil {
		return Communication{}, err
	}
	return comm, nil
}

func (s *Service) GetCommunication(ctx context.Context, actor scope.Identity, id string) (Communication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Communication{}, fmt.Errorf("%w: communication id is required", ErrInvalidInput)
	}
	comm, err := s.comms.Get(ctx, id)
	if err != nil {
		return Communication{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceCommunication, scope.ActionView, comm.Fact()); err != nil {
		return Communication{}, err
	}
	return comm, nil
}

func (s *Service) ListCommunications(ctx context.Context, actor scope.Identity) ([]Communication, error) {
	p, err := s.resolver.BuildFilter(ctx, actor, scope.ResourceCommunication, scope.ActionView)
	if err != nil {
		return nil, err
	}
	return s.comms.List(ctx, p)
}

func (s *Service) DeleteCommunication(ctx context.Context, actor scope.Identity, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: communication id is required", ErrInvalidInput)
	}
	comm, err := s.comms.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, scope.ResourceCommunication, scope.ActionDelete, comm.Fact()); err != nil {
		return err
	}
	return s.comms.Delete(ctx, id)
}

func validChannel(c string) bool {
	switch c {
	case ChannelCall, ChannelEmail, ChannelMeeting, ChannelNote:
		return true
	}
	return false
}

// Renewals ------------------------------------------------------------------

// RenewalInput describes a renewal to open on a customer.
type RenewalInput struct {
	CustomerID string
	Amount     int64
	Currency   string
	DueAt      time.Time
	Notes      string
}

// CreateRenewal opens a renewal on a customer. Renewals carry no ownership of
// their own; the check is the edit permission on the linked customer.
func (s *Service) CreateRenewal(ctx context.Context, actor scope.Identity, in RenewalInput) (Renewal, error) {
	customerID := strings.TrimSpace(in.CustomerID)
	if customerID == "" {
		return Renewal{}, fmt.Errorf("%w: customer_id is required", ErrInvalidInput)
	}
	if in.Amount < 0 {
		return Renewal{}, fmt.Errorf("%w: amount must be >= 0", ErrInvalidInput)
	}
	currency := strings.TrimSpace(strings.ToUpper(in.Currency))
	if currency == "" {
		return Renewal{}, fmt.Errorf("%w: currency is required", ErrInvalidInput)
	}
	if in.DueAt.IsZero() {
		return Renewal{}, fmt.Errorf("%w: due_at is required", ErrInvalidInput)
	}
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return Renewal{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceCustomer, scope.ActionEdit, customer.Fact()); err != nil {
		return Renewal{}, err
	}
	renewal := Renewal{
		CustomerID: customerID,
		Status:     RenewalStatusUpcoming,
		Amount:     in.Amount,
		Currency:   currency,
		DueAt:      in.DueAt.UTC(),
		Notes:      strings.TrimSpace(in.Notes),
		CreatedBy:  actor.ID,
	}
	if err := s.renewals.Create(ctx, &renewal); err != nil {
		return Renewal{}, err
	}
	return renewal, nil
}

func (s *Service) GetRenewal(ctx context.Context, actor scope.Identity, id string) (Renewal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Renewal{}, fmt.Errorf("%w: renewal id is required", ErrInvalidInput)
	}
	renewal, err := s.renewals.Get(ctx, id)
	if err != nil {
		return Renewal{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceCustomer, scope.ActionView, renewal.Fact()); err != nil {
		return Renewal{}, err
	}
	return renewal, nil
}

func (s *Service) ListRenewals(ctx context.Context, actor scope.Identity) ([]Renewal, error) {
	// renewals are visible exactly when their customer is
	p, err := s.resolver.BuildFilter(ctx, actor, scope.ResourceCustomer, scope.ActionView)
	if err != nil {
		return nil, err
	}
	return s.renewals.List(ctx, p)
}

func (s *Service) UpdateRenewal(ctx context.Context, actor scope.Identity, id string, upd RenewalUpdate) (Renewal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Renewal{}, fmt.Errorf("%w: renewal id is required", ErrInvalidInput)
	}
	renewal, err := s.renewals.Get(ctx, id)
	if err != nil {
		return Renewal{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceCustomer, scope.ActionEdit, renewal.Fact()); err != nil {
		return Renewal{}, err
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		switch status {
		case RenewalStatusUpcoming, RenewalStatusClosed, RenewalStatusLost:
		default:
			return Renewal{}, fmt.Errorf("%w: unsupported renewal status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	if upd.Amount != nil && *upd.Amount < 0 {
		return Renewal{}, fmt.Errorf("%w: amount must be >= 0", ErrInvalidInput)
	}
	return s.renewals.Update(ctx, id, upd)
}

// Users ---------------------------------------------------------------------

// EmployeeInput describes a new employee account. AdminID is honored only
// when the actor is a developer creating an employee on an admin's behalf;
// admins always own the employees they create.
type EmployeeInput struct {
	Email    string
	Password string
	AdminID  string
}

func (s *Service) CreateEmployee(ctx context.Context, actor scope.Identity, in EmployeeInput) (User, error) {
	if err := s.authorize(ctx, actor, scope.ResourceUser, scope.ActionCreate, scope.Fact{}); err != nil {
		return User{}, err
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	password := strings.TrimSpace(in.Password)
	if password == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	adminID := ""
	switch actor.Role {
	case scope.RoleAdmin:
		adminID = actor.ID
	case scope.RoleDeveloper:
		adminID = strings.TrimSpace(in.AdminID)
		if adminID != "" {
			admin, err := s.users.Get(ctx, adminID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return User{}, fmt.Errorf("%w: admin does not exist", ErrInvalidInput)
				}
				return User{}, err
			}
			if admin.Role != scope.RoleAdmin {
				return User{}, fmt.Errorf("%w: owning account must be an admin", ErrInvalidInput)
			}
		}
	}

	if adminID != "" {
		d, err := s.quota.CanCreateEmployee(ctx, adminID)
		if err != nil {
			return User{}, err
		}
		if !d.Allowed {
			return User{}, ErrLimitReached
		}
	}

	hash, err := s.hash(password)
	if err != nil {
		return User{}, err
	}
	user := User{
		Email:            email,
		Role:             scope.RoleEmployee,
		Status:           UserStatusActive,
		PasswordHash:     hash,
		CreatedByAdminID: adminID,
	}
	// the store repeats the limit check inside the insert transaction; a
	// concurrent creation losing the race comes back as ErrLimitReached
	if err := s.users.CreateEmployee(ctx, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, actor scope.Identity, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceUser, scope.ActionView, u.Fact()); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, actor scope.Identity) ([]User, error) {
	p, err := s.resolver.BuildFilter(ctx, actor, scope.ResourceUser, scope.ActionView)
	if err != nil {
		return nil, err
	}
	return s.users.List(ctx, p)
}

func (s *Service) UpdateUser(ctx context.Context, actor scope.Identity, id string, upd UserUpdate) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceUser, scope.ActionEdit, u.Fact()); err != nil {
		return User{}, err
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != UserStatusActive && status != UserStatusDisabled {
			return User{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	if upd.Password != nil {
		password := strings.TrimSpace(*upd.Password)
		if password == "" {
			return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := s.hash(password)
		if err != nil {
			return User{}, err
		}
		upd.Password = &hash
	}
	return s.users.Update(ctx, id, upd)
}

func (s *Service) DeleteUser(ctx context.Context, actor scope.Identity, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, scope.ResourceUser, scope.ActionDelete, u.Fact()); err != nil {
		return err
	}
	return s.users.Delete(ctx, id)
}

// SetPermissions replaces the target user's permission overrides. Scope
// values are validated here so broken configuration never reaches storage;
// subordinates scope is only storable on admin accounts.
func (s *Service) SetPermissions(ctx context.Context, actor scope.Identity, userID string, overrides map[scope.PermKey]scope.Scope) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	target, err := s.users.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if err := s.authorize(ctx, actor, scope.ResourceUser, scope.ActionEdit, target.Fact()); err != nil {
		return User{}, err
	}
	for key, sc := range overrides {
		if !key.Resource.Valid() {
			return User{}, fmt.Errorf("%w: unknown resource %q", ErrInvalidInput, key.Resource)
		}
		if !key.Action.Valid() {
			return User{}, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, key.Action)
		}
		if !sc.Valid() {
			return User{}, fmt.Errorf("%w: %q is not a scope", ErrInvalidInput, sc)
		}
		if sc == scope.ScopeSubordinates && target.Role != scope.RoleAdmin {
			return User{}, fmt.Errorf("%w: subordinates scope requires an admin account", ErrInvalidInput)
		}
	}
	if err := s.users.SetPermissionOverrides(ctx, userID, overrides); err != nil {
		return User{}, err
	}
	return target, nil
}

func (s *Service) requireAccount(ctx context.Context, userID string) error {
	if _, err := s.users.Get(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: assignee does not exist", ErrInvalidInput)
		}
		return err
	}
	return nil
}
