package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"relaycrm.org/internal/crm"
	"relaycrm.org/internal/scope"
)

func leadRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "company", "email", "phone", "status", "created_by", "assigned_to", "created_at", "updated_at",
	}).AddRow("lead-1", "Acme", nil, "sales@acme.com", nil, "new", "emp-1", nil, now, now)
}

func TestGetLeadMapsNulls(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("select id, name, company, email, phone, status").WithArgs("lead-1").
		WillReturnRows(leadRows(now))

	lead, err := store.Leads().Get(context.Background(), "lead-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if lead.Company != "" || lead.AssignedTo != "" {
		t.Fatalf("null columns must map to empty strings: %+v", lead)
	}
	if lead.Email != "sales@acme.com" {
		t.Fatalf("email = %q", lead.Email)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetLeadNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, name, company, email, phone, status").WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Leads().Get(context.Background(), "ghost")
	if !errors.Is(err, crm.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestListLeadsBindsPredicateArgs(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(`where \(created_by = \$1 or assigned_to = \$2 or created_by in \(\$3\)\)`).
		WithArgs("adm-1", "adm-1", "emp-1").
		WillReturnRows(leadRows(now))

	p := scope.Predicate{Any: []scope.Cond{
		{Field: scope.FieldCreator, Equals: "adm-1"},
		{Field: scope.FieldAssignee, Equals: "adm-1"},
		{Field: scope.FieldCreator, In: []string{"emp-1"}},
	}}
	leads, err := store.Leads().List(context.Background(), p)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(leads) != 1 || leads[0].ID != "lead-1" {
		t.Fatalf("unexpected result: %+v", leads)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListLeadsMatchNone(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("where false").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	leads, err := store.Leads().List(context.Background(), scope.MatchNone())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(leads) != 0 {
		t.Fatalf("expected no rows, got %+v", leads)
	}
}

func TestUpdateLeadDynamicSet(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectExec(`update leads set status = \$1, assigned_to = \$2, updated_at = now\(\) where id = \$3`).
		WithArgs("qualified", sqlmock.AnyArg(), "lead-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select id, name, company, email, phone, status").WithArgs("lead-1").
		WillReturnRows(leadRows(now))

	status, assignee := "qualified", ""
	if _, err := store.Leads().Update(context.Background(), "lead-1", crm.LeadUpdate{Status: &status, AssignedTo: &assignee}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteLeadNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from leads").WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Leads().Delete(context.Background(), "ghost"); !errors.Is(err, crm.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
