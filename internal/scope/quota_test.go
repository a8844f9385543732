package scope

import (
	"context"
	"errors"
	"testing"
)

type stubQuotaStore struct {
	limitFn func(ctx context.Context, adminID string) (int, bool, error)
}

func (s *stubQuotaStore) EmployeeLimit(ctx context.Context, adminID string) (int, bool, error) {
	if s.limitFn != nil {
		return s.limitFn(ctx, adminID)
	}
	return 0, false, nil
}

func TestQuotaUnlimited(t *testing.T) {
	q, err := NewQuotaEnforcer(StaticDirectory{}, &stubQuotaStore{})
	if err != nil {
		t.Fatalf("NewQuotaEnforcer: %v", err)
	}
	d, err := q.CanCreateEmployee(context.Background(), "A")
	if err != nil {
		t.Fatalf("CanCreateEmployee: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("uncapped admin should be allowed")
	}
}

func TestQuotaLimitReached(t *testing.T) {
	// admin B already has two employees and a limit of two
	dir := StaticDirectory{Admins: map[string]string{"E1": "B", "E2": "B"}}
	quotas := &stubQuotaStore{limitFn: func(_ context.Context, adminID string) (int, bool, error) {
		if adminID != "B" {
			t.Fatalf("unexpected admin id %s", adminID)
		}
		return 2, true, nil
	}}
	q, err := NewQuotaEnforcer(dir, quotas)
	if err != nil {
		t.Fatalf("NewQuotaEnforcer: %v", err)
	}

	// the answer is stable across repeated checks
	for i := 0; i < 3; i++ {
		d, err := q.CanCreateEmployee(context.Background(), "B")
		if err != nil {
			t.Fatalf("CanCreateEmployee: %v", err)
		}
		if d.Allowed {
			t.Fatalf("expected deny at the limit")
		}
		if d.Reason != ReasonLimitReached {
			t.Fatalf("unexpected reason: %s", d.Reason)
		}
	}
}

func TestQuotaUnderLimit(t *testing.T) {
	dir := StaticDirectory{Admins: map[string]string{"E1": "B"}}
	quotas := &stubQuotaStore{limitFn: func(context.Context, string) (int, bool, error) {
		return 2, true, nil
	}}
	q, err := NewQuotaEnforcer(dir, quotas)
	if err != nil {
		t.Fatalf("NewQuotaEnforcer: %v", err)
	}
	d, err := q.CanCreateEmployee(context.Background(), "B")
	if err != nil {
		t.Fatalf("CanCreateEmployee: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow under the limit")
	}
}

func TestQuotaStoreFailureFailsClosed(t *testing.T) {
	quotas := &stubQuotaStore{limitFn: func(context.Context, string) (int, bool, error) {
		return 0, false, errors.New("store down")
	}}
	q, err := NewQuotaEnforcer(StaticDirectory{}, quotas)
	if err != nil {
		t.Fatalf("NewQuotaEnforcer: %v", err)
	}
	d, err := q.CanCreateEmployee(context.Background(), "B")
	if err == nil {
		t.Fatalf("expected error")
	}
	if d.Allowed {
		t.Fatalf("store failure must not allow")
	}
}

func TestQuotaZeroLimit(t *testing.T) {
	quotas := &stubQuotaStore{limitFn: func(context.Context, string) (int, bool, error) {
		return 0, true, nil
	}}
	q, err := NewQuotaEnforcer(StaticDirectory{}, quotas)
	if err != nil {
		t.Fatalf("NewQuotaEnforcer: %v", err)
	}
	d, err := q.CanCreateEmployee(context.Background(), "B")
	if err != nil {
		t.Fatalf("CanCreateEmployee: %v", err)
	}
	if d.Allowed {
		t.Fatalf("zero limit must deny")
	}
}
