package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"relaycrm.org/internal/auth"
	"relaycrm.org/internal/crm"
	"relaycrm.org/internal/scope"
)

// memDB is a map-backed store shared by the per-resource wrappers below.
type memDB struct {
	seq      int
	leads    map[string]crm.Lead
	custs    map[string]crm.Customer
	comms    map[string]crm.Communication
	renewals map[string]crm.Renewal
	users    map[string]crm.User
	perms    map[string]map[scope.PermKey]scope.Scope
}

func newMemDB() *memDB {
	return &memDB{
		leads:    map[string]crm.Lead{},
		custs:    map[string]crm.Customer{},
		comms:    map[string]crm.Communication{},
		renewals: map[string]crm.Renewal{},
		users:    map[string]crm.User{},
		perms:    map[string]map[scope.PermKey]scope.Scope{},
	}
}

func (db *memDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

type memLeads struct{ db *memDB }

func (m *memLeads) Create(_ context.Context, l *crm.Lead) error {
	l.ID = m.db.nextID("lead")
	m.db.leads[l.ID] = *l
	return nil
}
func (m *memLeads) Get(_ context.Context, id string) (crm.Lead, error) {
	l, ok := m.db.leads[id]
	if !ok {
		return crm.Lead{}, crm.ErrNotFound
	}
	return l, nil
}
func (m *memLeads) List(_ context.Context, p scope.Predicate) ([]crm.Lead, error) {
	var out []crm.Lead
	for _, l := range m.db.leads {
		if p.Matches(l.Fact()) {
			out = append(out, l)
		}
	}
	return out, nil
}
func (m *memLeads) Update(_ context.Context, id string, upd crm.LeadUpdate) (crm.Lead, error) {
	l, ok := m.db.leads[id]
	if !ok {
		return crm.Lead{}, crm.ErrNotFound
	}
	if upd.Name != nil {
		l.Name = *upd.Name
	}
	if upd.Status != nil {
		l.Status = *upd.Status
	}
	if upd.AssignedTo != nil {
		l.AssignedTo = *upd.AssignedTo
	}
	m.db.leads[id] = l
	return l, nil
}
func (m *memLeads) Delete(_ context.Context, id string) error {
	if _, ok := m.db.leads[id]; !ok {
		return crm.ErrNotFound
	}
	delete(m.db.leads, id)
	return nil
}

type memCustomers struct{ db *memDB }

func (m *memCustomers) Create(_ context.Context, c *crm.Customer) error {
	c.ID = m.db.nextID("cust")
	m.db.custs[c.ID] = *c
	return nil
}
func (m *memCustomers) Get(_ context.Context, id string) (crm.Customer, error) {
	c, ok := m.db.custs[id]
	if !ok {
		return crm.Customer{}, crm.ErrNotFound
	}
	return c, nil
}
func (m *memCustomers) List(_ context.Context, p scope.Predicate) ([]crm.Customer, error) {
	var out []crm.Customer
	for _, c := range m.db.custs {
		if p.Matches(c.Fact()) {
			out = append(out, c)
		}
	}
	return out, nil
}
func (m *memCustomers) Update(_ context.Context, id string, upd crm.CustomerUpdate) (crm.Customer, error) {
	c, ok := m.db.custs[id]
	if !ok {
		return crm.Customer{}, crm.ErrNotFound
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	if upd.AssignedTo != nil {
		c.AssignedTo = *upd.AssignedTo
	}
	m.db.custs[id] = c
	return c, nil
}
func (m *memCustomers) Delete(_ context.Context, id string) error {
	if _, ok := m.db.custs[id]; !ok {
		return crm.ErrNotFound
	}
	delete(m.db.custs, id)
	return nil
}

type memComms struct{ db *memDB }

func (m *memComms) Create(_ context.Context, c *crm.Communication) error {
	c.ID = m.db.nextID("comm")
	if c.LeadID != "" {
		l := m.db.leads[c.LeadID]
		c.LinkedCreatedBy, c.LinkedAssignedTo = l.CreatedBy, l.AssignedTo
	} else {
		cu := m.db.custs[c.CustomerID]
		c.LinkedCreatedBy, c.LinkedAssignedTo = cu.CreatedBy, cu.AssignedTo
	}
	m.db.comms[c.ID] = *c
	return nil
}
func (m *memComms) Get(_ context.Context, id string) (crm.Communication, error) {
	c, ok := m.db.comms[id]
	if !ok {
		return crm.Communication{}, crm.ErrNotFound
	}
	return c, nil
}
func (m *memComms) List(_ context.Context, p scope.Predicate) ([]crm.Communication, error) {
	var out []crm.Communication
	for _, c := range m.db.comms {
		if p.Matches(c.Fact()) {
			out = append(out, c)
		}
	}
	return out, nil
}
func (m *memComms) Delete(_ context.Context, id string) error {
	if _, ok := m.db.comms[id]; !ok {
		return crm.ErrNotFound
	}
	delete(m.db.comms, id)
	return nil
}

type memRenewals struct{ db *memDB }

func (m *memRenewals) Create(_ context.Context, r *crm.Renewal) error {
	r.ID = m.db.nextID("ren")
	cu := m.db.custs[r.CustomerID]
	r.LinkedCreatedBy, r.LinkedAssignedTo = cu.CreatedBy, cu.AssignedTo
	m.db.renewals[r.ID] = *r
	return nil
}
func (m *memRenewals) Get(_ context.Context, id string) (crm.Renewal, error) {
	r, ok := m.db.renewals[id]
	if !ok {
		return crm.Renewal{}, crm.ErrNotFound
	}
	return r, nil
}
func (m *memRenewals) List(_ context.Context, p scope.Predicate) ([]crm.Renewal, error) {
	var out []crm.Renewal
	for _, r := range m.db.renewals {
		if p.Matches(r.Fact()) {
			out = append(out, r)
		}
	}
	return out, nil
}
func (m *memRenewals) Update(_ context.Context, id string, upd crm.RenewalUpdate) (crm.Renewal, error) {
	r, ok := m.db.renewals[id]
	if !ok {
		return crm.Renewal{}, crm.ErrNotFound
	}
	if upd.Status != nil {
		r.Status = *upd.Status
	}
	m.db.renewals[id] = r
	return r, nil
}

type memUsers struct{ db *memDB }

func (m *memUsers) CreateEmployee(_ context.Context, u *crm.User) error {
	u.ID = m.db.nextID("user")
	m.db.users[u.ID] = *u
	return nil
}
func (m *memUsers) Create(_ context.Context, u *crm.User) error {
	u.ID = m.db.nextID("user")
	m.db.users[u.ID] = *u
	return nil
}
func (m *memUsers) Get(_ context.Context, id string) (crm.User, error) {
	u, ok := m.db.users[id]
	if !ok {
		return crm.User{}, crm.ErrNotFound
	}
	return u, nil
}
func (m *memUsers) FindByEmail(_ context.Context, email string) (crm.User, error) {
	for _, u := range m.db.users {
		if u.Email == email {
			return u, nil
		}
	}
	return crm.User{}, crm.ErrNotFound
}
func (m *memUsers) List(_ context.Context, p scope.Predicate) ([]crm.User, error) {
	var out []crm.User
	for _, u := range m.db.users {
		if p.Matches(u.Fact()) {
			out = append(out, u)
		}
	}
	return out, nil
}
func (m *memUsers) Update(_ context.Context, id string, upd crm.UserUpdate) (crm.User, error) {
	u, ok := m.db.users[id]
	if !ok {
		return crm.User{}, crm.ErrNotFound
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Password != nil {
		u.PasswordHash = *upd.Password
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	m.db.users[id] = u
	return u, nil
}
func (m *memUsers) Delete(_ context.Context, id string) error {
	if _, ok := m.db.users[id]; !ok {
		return crm.ErrNotFound
	}
	delete(m.db.users, id)
	return nil
}
func (m *memUsers) PermissionOverrides(_ context.Context, userID string) (map[scope.PermKey]scope.Scope, error) {
	return m.db.perms[userID], nil
}
func (m *memUsers) SetPermissionOverrides(_ context.Context, userID string, overrides map[scope.PermKey]scope.Scope) error {
	m.db.perms[userID] = overrides
	return nil
}

// memUsers also answers hierarchy and quota lookups, like the real store.
func (m *memUsers) SubordinatesOf(_ context.Context, adminID string) (map[string]struct{}, error) {
	subs := map[string]struct{}{}
	for id, u := range m.db.users {
		if u.CreatedByAdminID == adminID {
			subs[id] = struct{}{}
		}
	}
	return subs, nil
}
func (m *memUsers) AdminOf(_ context.Context, employeeID string) (string, error) {
	return m.db.users[employeeID].CreatedByAdminID, nil
}
func (m *memUsers) CountEmployeesOf(ctx context.Context, adminID string) (int, error) {
	subs, _ := m.SubordinatesOf(ctx, adminID)
	return len(subs), nil
}
func (m *memUsers) EmployeeLimit(_ context.Context, adminID string) (int, bool, error) {
	u := m.db.users[adminID]
	if u.EmployeeLimit == nil {
		return 0, false, nil
	}
	return *u.EmployeeLimit, true, nil
}

type apiClient struct {
	baseURL string
	client  *http.Client
	db      *memDB
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("RELAY_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	db := newMemDB()
	db.users["admin-1"] = crm.User{
		ID: "admin-1", Email: "admin@relay.example", Role: scope.RoleAdmin,
		Status: crm.UserStatusActive, PasswordHash: "hashed:admin-pass",
	}
	db.users["emp-1"] = crm.User{
		ID: "emp-1", Email: "emp@relay.example", Role: scope.RoleEmployee,
		Status: crm.UserStatusActive, PasswordHash: "hashed:emp-pass",
		CreatedByAdminID: "admin-1",
	}

	users := &memUsers{db: db}
	resolver, err := scope.NewResolver(users)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	quota, err := scope.NewQuotaEnforcer(users, users)
	if err != nil {
		t.Fatalf("NewQuotaEnforcer: %v", err)
	}
	svc, err := crm.NewService(crm.Config{
		Leads:          &memLeads{db: db},
		Customers:      &memCustomers{db: db},
		Communications: &memComms{db: db},
		Renewals:       &memRenewals{db: db},
		Users:          users,
		Resolver:       resolver,
		Quota:          quota,
		HashPassword:   func(p string) (string, error) { return "hashed:" + p, nil },
		VerifyPassword: func(h, p string) (bool, error) { return h == "hashed:"+p, nil },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	api := New(svc, ReadyProbe{}, "test")
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{baseURL: srv.URL, client: srv.Client(), db: db, t: t}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) decode(resp *http.Response, dst any) {
	c.t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		c.t.Fatalf("decode response: %v", err)
	}
}

func (c *apiClient) obtainToken(email, password string) string {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/auth/token", map[string]string{
		"email": email, "password": password,
	}, "")
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	c.decode(resp, &payload)
	return payload.Token
}

func TestHealthzIsPublic(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/healthz", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestLeadsRequireAuthentication(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/v1/leads", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuthTokenBadCredentials(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodPost, "/v1/auth/token", map[string]string{
		"email": "admin@relay.example", "password": "wrong",
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLeadLifecycle(t *testing.T) {
	c := newTestAPI(t)
	token := c.obtainToken("admin@relay.example", "admin-pass")

	resp := c.do(http.MethodPost, "/v1/leads", map[string]string{
		"name": "Acme Corp", "email": "sales@acme.com", "assigned_to": "emp-1",
	}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc == "" {
		t.Fatalf("missing Location header")
	}
	var lead crm.Lead
	c.decode(resp, &lead)
	if lead.CreatedBy != "admin-1" || lead.Status != crm.LeadStatusNew {
		t.Fatalf("unexpected lead: %+v", lead)
	}

	resp = c.do(http.MethodGet, "/v1/leads/"+lead.ID, nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/v1/leads", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	var listing struct {
		Items []crm.Lead `json:"items"`
	}
	c.decode(resp, &listing)
	if len(listing.Items) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(listing.Items))
	}
}

func TestEmployeeCannotSeeForeignLead(t *testing.T) {
	c := newTestAPI(t)
	c.db.leads["lead-x"] = crm.Lead{
		ID: "lead-x", Name: "Foreign", Status: crm.LeadStatusNew,
		CreatedBy: "someone-else", AssignedTo: "someone-else",
	}
	token := c.obtainToken("emp@relay.example", "emp-pass")

	resp := c.do(http.MethodGet, "/v1/leads/lead-x", nil, token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	respList := c.do(http.MethodGet, "/v1/leads", nil, token)
	var listing struct {
		Items []crm.Lead `json:"items"`
	}
	c.decode(respList, &listing)
	if len(listing.Items) != 0 {
		t.Fatalf("listing must hide foreign leads, got %+v", listing.Items)
	}
}

func TestConvertLeadEndpoint(t *testing.T) {
	c := newTestAPI(t)
	c.db.leads["lead-1"] = crm.Lead{
		ID: "lead-1", Name: "Acme", Status: crm.LeadStatusQualified,
		CreatedBy: "emp-1", AssignedTo: "emp-1",
	}
	token := c.obtainToken("emp@relay.example", "emp-pass")

	resp := c.do(http.MethodPost, "/v1/leads/lead-1/convert", nil, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("convert status = %d, want 201", resp.StatusCode)
	}
	var customer crm.Customer
	c.decode(resp, &customer)
	if customer.LeadID != "lead-1" || customer.Name != "Acme" {
		t.Fatalf("unexpected customer: %+v", customer)
	}
	if c.db.leads["lead-1"].Status != crm.LeadStatusConverted {
		t.Fatalf("lead status = %q, want converted", c.db.leads["lead-1"].Status)
	}
}

func TestLogCommunicationEndpoint(t *testing.T) {
	c := newTestAPI(t)
	c.db.custs["cust-1"] = crm.Customer{
		ID: "cust-1", Name: "Acme", Status: crm.CustomerStatusActive,
		CreatedBy: "admin-1", AssignedTo: "emp-1",
	}
	token := c.obtainToken("emp@relay.example", "emp-pass")

	resp := c.do(http.MethodPost, "/v1/communications", map[string]string{
		"customer_id": "cust-1", "channel": "call", "subject": "Q3 check-in",
	}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var comm crm.Communication
	c.decode(resp, &comm)
	if comm.MadeBy != "emp-1" {
		t.Fatalf("made_by = %q, want emp-1", comm.MadeBy)
	}

	// both links at once is rejected
	resp = c.do(http.MethodPost, "/v1/communications", map[string]string{
		"lead_id": "lead-1", "customer_id": "cust-1", "channel": "call", "subject": "s",
	}, token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateEmployeeLimitConflict(t *testing.T) {
	c := newTestAPI(t)
	limit := 1
	admin := c.db.users["admin-1"]
	admin.EmployeeLimit = &limit
	c.db.users["admin-1"] = admin
	token := c.obtainToken("admin@relay.example", "admin-pass")

	resp := c.do(http.MethodPost, "/v1/users", map[string]string{
		"email": "new@relay.example", "password": "s3cret",
	}, token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestSetPermissionsEndpoint(t *testing.T) {
	c := newTestAPI(t)
	token := c.obtainToken("admin@relay.example", "admin-pass")

	resp := c.do(http.MethodPut, "/v1/users/emp-1/permissions", map[string]any{
		"overrides": []map[string]string{
			{"resource": "lead", "action": "view", "scope": "all"},
		},
	}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	key := scope.PermKey{Resource: scope.ResourceLead, Action: scope.ActionView}
	if c.db.perms["emp-1"][key] != scope.ScopeAll {
		t.Fatalf("override not stored: %+v", c.db.perms["emp-1"])
	}

	resp = c.do(http.MethodPut, "/v1/users/emp-1/permissions", map[string]any{
		"overrides": []map[string]string{
			{"resource": "lead", "action": "view", "scope": "everything"},
		},
	}, token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUserSelfViewEndpoint(t *testing.T) {
	c := newTestAPI(t)
	token := c.obtainToken("emp@relay.example", "emp-pass")

	resp := c.do(http.MethodGet, "/v1/users/emp-1", nil, token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("self view status = %d, want 200", resp.StatusCode)
	}
}
