package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"relaycrm.org/internal/crm"
	"relaycrm.org/internal/ids"
	"relaycrm.org/internal/scope"
)

// Users persists accounts and permission overrides and answers hierarchy and
// quota lookups. The admin-employee edge is the created_by_admin_id column.
type Users struct {
	db *sql.DB
}

var userColumns = fieldColumns{
	scope.FieldCreator:  "created_by_admin_id",
	scope.FieldAssignee: "id",
}

const userSelect = `
	select id, email, role, status, password_hash, created_by_admin_id, employee_limit, created_at, updated_at
	from users
`

func scanUser(row interface{ Scan(...any) error }) (crm.User, error) {
	var (
		u       crm.User
		role    string
		adminID sql.NullString
		limit   sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &role, &u.Status, &u.PasswordHash, &adminID, &limit, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return crm.User{}, err
	}
	u.Role = scope.Role(role)
	u.CreatedByAdminID = adminID.String
	if limit.Valid {
		v := int(limit.Int64)
		u.EmployeeLimit = &v
	}
	return u, nil
}

// CreateEmployee inserts the account after re-checking the owning admin's
// employee limit with the admin row locked, so two concurrent creations
// cannot both pass the check.
func (s *Users) CreateEmployee(ctx context.Context, u *crm.User) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if u.CreatedByAdminID != "" {
		var limit sql.NullInt64
		err := tx.QueryRowContext(ctx, `
			select employee_limit from users where id = $1 and role = 'admin' for update
		`, u.CreatedByAdminID).Scan(&limit)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: admin does not exist", crm.ErrInvalidInput)
		}
		if err != nil {
			return err
		}
		if limit.Valid {
			allowed := limit.Int64
			if allowed < 0 {
				allowed = 0
			}
			var count int64
			if err := tx.QueryRowContext(ctx, `
				select count(*) from users where created_by_admin_id = $1
			`, u.CreatedByAdminID).Scan(&count); err != nil {
				return err
			}
			if count >= allowed {
				return crm.ErrLimitReached
			}
		}
	}

	u.ID = ids.New()
	row := tx.QueryRowContext(ctx, `
		insert into users (id, email, role, status, password_hash, created_by_admin_id)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at, updated_at
	`, u.ID, u.Email, string(u.Role), u.Status, u.PasswordHash, nullIfEmpty(u.CreatedByAdminID))
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return crm.ErrConflict
		}
		return err
	}
	return tx.Commit()
}

// Create inserts an account without quota checks. Used for admins, developers
// and seeding.
func (s *Users) Create(ctx context.Context, u *crm.User) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	u.ID = ids.New()
	var limit sql.NullInt64
	if u.EmployeeLimit != nil {
		limit = sql.NullInt64{Int64: int64(*u.EmployeeLimit), Valid: true}
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, email, role, status, password_hash, created_by_admin_id, employee_limit)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, u.ID, u.Email, string(u.Role), u.Status, u.PasswordHash, nullIfEmpty(u.CreatedByAdminID), limit)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return crm.ErrConflict
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: admin does not exist", crm.ErrInvalidInput)
			}
		}
		return err
	}
	return nil
}

func (s *Users) Get(ctx context.Context, id string) (crm.User, error) {
	if s.db == nil {
		return crm.User{}, errors.New("database connection unavailable")
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+` where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return crm.User{}, crm.ErrNotFound
	}
	return u, err
}

func (s *Users) FindByEmail(ctx context.Context, email string) (crm.User, error) {
	if s.db == nil {
		return crm.User{}, errors.New("database connection unavailable")
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+` where email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return crm.User{}, crm.ErrNotFound
	}
	return u, err
}

func (s *Users) List(ctx context.Context, p scope.Predicate) ([]crm.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	clause, args, _ := predicateSQL(p, userColumns, 1)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`%s where %s order by email`, userSelect, clause), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []crm.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Users) Update(ctx context.Context, id string, upd crm.UserUpdate) (crm.User, error) {
	if s.db == nil {
		return crm.User{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", idx))
		args = append(args, *upd.Email)
		idx++
	}
	if upd.Password != nil {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *upd.Password)
		idx++
	}
	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return crm.User{}, crm.ErrConflict
			}
			return crm.User{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return crm.User{}, err
		}
		if aff == 0 {
			return crm.User{}, crm.ErrNotFound
		}
	}
	return s.Get(ctx, id)
}

func (s *Users) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return crm.ErrNotFound
	}
	return nil
}

func (s *Users) PermissionOverrides(ctx context.Context, userID string) (map[scope.PermKey]scope.Scope, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select resource, action, scope
		from permission_overrides
		where user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := map[scope.PermKey]scope.Scope{}
	for rows.Next() {
		var res, act, sc string
		if err := rows.Scan(&res, &act, &sc); err != nil {
			return nil, err
		}
		key := scope.PermKey{Resource: scope.Resource(res), Action: scope.Action(act)}
		overrides[key] = scope.Scope(sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

func (s *Users) SetPermissionOverrides(ctx context.Context, userID string, overrides map[scope.PermKey]scope.Scope) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from users where id = $1`, userID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crm.ErrNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from permission_overrides where user_id = $1`, userID); err != nil {
		return err
	}
	for key, sc := range overrides {
		if _, err := tx.ExecContext(ctx, `
			insert into permission_overrides (user_id, resource, action, scope)
			values ($1, $2, $3, $4)
		`, userID, string(key.Resource), string(key.Action), string(sc)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SubordinatesOf returns the ids of the employees created by the admin.
func (s *Users) SubordinatesOf(ctx context.Context, adminID string) (map[string]struct{}, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id from users where created_by_admin_id = $1
	`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		subs[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

// AdminOf returns the id of the admin that created the employee, or the empty
// string for unowned accounts.
func (s *Users) AdminOf(ctx context.Context, employeeID string) (string, error) {
	if s.db == nil {
		return "", errors.New("database connection unavailable")
	}
	var adminID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		select created_by_admin_id from users where id = $1
	`, employeeID).Scan(&adminID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return adminID.String, nil
}

func (s *Users) CountEmployeesOf(ctx context.Context, adminID string) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from users where created_by_admin_id = $1
	`, adminID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// EmployeeLimit reports the admin's employee cap. Admins without a configured
// limit are uncapped.
func (s *Users) EmployeeLimit(ctx context.Context, adminID string) (int, bool, error) {
	if s.db == nil {
		return 0, false, errors.New("database connection unavailable")
	}
	var limit sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		select employee_limit from users where id = $1
	`, adminID).Scan(&limit)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if !limit.Valid {
		return 0, false, nil
	}
	return int(limit.Int64), true, nil
}
