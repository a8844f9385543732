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

// Leads persists leads.
type Leads struct {
	db *sql.DB
}

var leadColumns = fieldColumns{
	scope.FieldCreator:  "created_by",
	scope.FieldAssignee: "assigned_to",
}

func (s *Leads) Create(ctx context.Context, l *crm.Lead) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	l.ID = ids.New()
	row := s.db.QueryRowContext(ctx, `
		insert into leads (id, name, company, email, phone, status, created_by, assigned_to)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at, updated_at
	`, l.ID, l.Name, nullIfEmpty(l.Company), nullIfEmpty(l.Email), nullIfEmpty(l.Phone),
		l.Status, l.CreatedBy, nullIfEmpty(l.AssignedTo))
	if err := row.Scan(&l.CreatedAt, &l.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: assignee does not exist", crm.ErrInvalidInput)
		}
		return err
	}
	return nil
}

func (s *Leads) Get(ctx context.Context, id string) (crm.Lead, error) {
	if s.db == nil {
		return crm.Lead{}, errors.New("database connection unavailable")
	}
	var (
		l                 crm.Lead
		company, email    sql.NullString
		phone, assignedTo sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, company, email, phone, status, created_by, assigned_to, created_at, updated_at
		from leads
		where id = $1
	`, id).Scan(&l.ID, &l.Name, &company, &email, &phone, &l.Status, &l.CreatedBy, &assignedTo, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return crm.Lead{}, crm.ErrNotFound
	}
	if err != nil {
		return crm.Lead{}, err
	}
	l.Company, l.Email, l.Phone, l.AssignedTo = company.String, email.String, phone.String, assignedTo.String
	return l, nil
}

func (s *Leads) List(ctx context.Context, p scope.Predicate) ([]crm.Lead, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	clause, args, _ := predicateSQL(p, leadColumns, 1)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select id, name, company, email, phone, status, created_by, assigned_to, created_at, updated_at
		from leads
		where %s
		order by created_at desc
	`, clause), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []crm.Lead
	for rows.Next() {
		var (
			l                 crm.Lead
			company, email    sql.NullString
			phone, assignedTo sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Name, &company, &email, &phone, &l.Status, &l.CreatedBy, &assignedTo, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Company, l.Email, l.Phone, l.AssignedTo = company.String, email.String, phone.String, assignedTo.String
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return leads, nil
}

func (s *Leads) Update(ctx context.Context, id string, upd crm.LeadUpdate) (crm.Lead, error) {
	if s.db == nil {
		return crm.Lead{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Company != nil {
		sets = append(sets, fmt.Sprintf("company = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Company))
		idx++
	}
	if upd.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Email))
		idx++
	}
	if upd.Phone != nil {
		sets = append(sets, fmt.Sprintf("phone = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Phone))
		idx++
	}
	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if upd.AssignedTo != nil {
		sets = append(sets, fmt.Sprintf("assigned_to = $%d", idx))
		args = append(args, nullIfEmpty(*upd.AssignedTo))
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update leads set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return crm.Lead{}, fmt.Errorf("%w: assignee does not exist", crm.ErrInvalidInput)
			}
			return crm.Lead{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return crm.Lead{}, err
		}
		if aff == 0 {
			return crm.Lead{}, crm.ErrNotFound
		}
	}
	return s.Get(ctx, id)
}

func (s *Leads) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from leads where id = $1`, id)
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
