package scope

import "context"

// Directory resolves the admin→employee ownership graph. Implementations are
// thin read-through views over the user store: the graph can change between
// requests, so nothing here is cached. An edge whose referenced account no
// longer exists must be treated as absent.
type Directory interface {
	// SubordinatesOf returns the ids of every existing employee created by
	// the given admin.
	SubordinatesOf(ctx context.Context, adminID string) (map[string]struct{}, error)

	// AdminOf returns the id of the admin that created the employee, or ""
	// when the employee has none.
	AdminOf(ctx context.Context, employeeID string) (string, error)

	// CountEmployeesOf returns the current number of employees created by
	// the admin.
	CountEmployeesOf(ctx context.Context, adminID string) (int, error)
}

// StaticDirectory is a fixed in-memory Directory keyed employee→admin. Used
// by tests and local tooling; the production implementation lives in the
// Postgres store.
type StaticDirectory struct {
	// Admins maps employee id to the admin that created it.
	Admins map[string]string
}

var _ Directory = StaticDirectory{}

func (d StaticDirectory) SubordinatesOf(_ context.Context, adminID string) (map[string]struct{}, error) {
	subs := make(map[string]struct{})
	if adminID == "" {
		return subs, nil
	}
	for emp, admin := range d.Admins {
		if admin == adminID {
			subs[emp] = struct{}{}
		}
	}
	return subs, nil
}

func (d StaticDirectory) AdminOf(_ context.Context, employeeID string) (string, error) {
	return d.Admins[employeeID], nil
}

func (d StaticDirectory) CountEmployeesOf(ctx context.Context, adminID string) (int, error) {
	subs, err := d.SubordinatesOf(ctx, adminID)
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}
