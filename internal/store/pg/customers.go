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

// Customers persists customers.
type Customers struct {
	db *sql.DB
}

var customerColumns = fieldColumns{
	scope.FieldCreator:  "created_by",
	scope.FieldAssignee: "assigned_to",
}

func (s *Customers) Create(ctx context.Context, c *crm.Customer) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	c.ID = ids.New()
	row := s.db.QueryRowContext(ctx, `
		insert into customers (id, name, company, email, phone, status, lead_id, created_by, assigned_to)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning created_at, updated_at
	`, c.ID, c.Name, nullIfEmpty(c.Company), nullIfEmpty(c.Email), nullIfEmpty(c.Phone),
		c.Status, nullIfEmpty(c.LeadID), c.CreatedBy, nullIfEmpty(c.AssignedTo))
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return crm.ErrConflict
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: linked record does not exist", crm.ErrInvalidInput)
			}
		}
		return err
	}
	return nil
}

func (s *Customers) Get(ctx context.Context, id string) (crm.Customer, error) {
	if s.db == nil {
		return crm.Customer{}, errors.New("database connection unavailable")
	}
	var (
		c                     crm.Customer
		company, email, phone sql.NullString
		leadID, assignedTo    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, company, email, phone, status, lead_id, created_by, assigned_to, created_at, updated_at
		from customers
		where id = $1
	`, id).Scan(&c.ID, &c.Name, &company, &email, &phone, &c.Status, &leadID, &c.CreatedBy, &assignedTo, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return crm.Customer{}, crm.ErrNotFound
	}
	if err != nil {
		return crm.Customer{}, err
	}
	c.Company, c.Email, c.Phone = company.String, email.String, phone.String
	c.LeadID, c.AssignedTo = leadID.String, assignedTo.String
	return c, nil
}

func (s *Customers) List(ctx context.Context, p scope.Predicate) ([]crm.Customer, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	clause, args, _ := predicateSQL(p, customerColumns, 1)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select id, name, company, email, phone, status, lead_id, created_by, assigned_to, created_at, updated_at
		from customers
		where %s
		order by created_at desc
	`, clause), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []crm.Customer
	for rows.Next() {
		var (
			c                     crm.Customer
			company, email, phone sql.NullString
			leadID, assignedTo    sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &company, &email, &phone, &c.Status, &leadID, &c.CreatedBy, &assignedTo, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Company, c.Email, c.Phone = company.String, email.String, phone.String
		c.LeadID, c.AssignedTo = leadID.String, assignedTo.String
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Customers) Update(ctx context.Context, id string, upd crm.CustomerUpdate) (crm.Customer, error) {
	if s.db == nil {
		return crm.Customer{}, errors.New("database connection unavailable")
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
		query := fmt.Sprintf(`update customers set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return crm.Customer{}, fmt.Errorf("%w: assignee does not exist", crm.ErrInvalidInput)
			}
			return crm.Customer{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return crm.Customer{}, err
		}
		if aff == 0 {
			return crm.Customer{}, crm.ErrNotFound
		}
	}
	return s.Get(ctx, id)
}

func (s *Customers) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from customers where id = $1`, id)
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
