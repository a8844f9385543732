package scope

import (
	"context"
	"errors"
)

// QuotaStore supplies the per-admin employee cap. ok=false means the admin is
// uncapped.
type QuotaStore interface {
	EmployeeLimit(ctx context.Context, adminID string) (limit int, ok bool, err error)
}

// QuotaEnforcer caps how many employee accounts an admin may create. The
// check here is advisory for fast feedback; the storage layer repeats it
// atomically inside the creation transaction, and a lost race surfaces as the
// same limit_reached denial.
type QuotaEnforcer struct {
	dir    Directory
	quotas QuotaStore
}

// NewQuotaEnforcer constructs a QuotaEnforcer.
func NewQuotaEnforcer(dir Directory, quotas QuotaStore) (*QuotaEnforcer, error) {
	if dir == nil {
		return nil, errors.New("scope: hierarchy directory is required")
	}
	if quotas == nil {
		return nil, errors.New("scope: quota store is required")
	}
	return &QuotaEnforcer{dir: dir, quotas: quotas}, nil
}

// CanCreateEmployee reports whether the admin may create one more employee
// account. Checking repeatedly without creating anyone never changes the
// answer.
func (q *QuotaEnforcer) CanCreateEmployee(ctx context.Context, adminID string) (Decision, error) {
	limit, capped, err := q.quotas.EmployeeLimit(ctx, adminID)
	if err != nil {
		return Deny(ReasonLimitReached), err
	}
	if !capped {
		return Allow(), nil
	}
	if limit < 0 {
		limit = 0
	}
	count, err := q.dir.CountEmployeesOf(ctx, adminID)
	if err != nil {
		return Deny(ReasonLimitReached), err
	}
	if count < limit {
		return Allow(), nil
	}
	return Deny(ReasonLimitReached), nil
}
