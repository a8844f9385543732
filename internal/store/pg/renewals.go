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

// Renewals persists contract renewals. Reads join the owning customer so rows
// carry its ownership; the list filter is the customer-view predicate, which
// is why the field map points at the customer's columns.
type Renewals struct {
	db *sql.DB
}

var renewalColumns = fieldColumns{
	scope.FieldCreator:  "c.created_by",
	scope.FieldAssignee: "c.assigned_to",
}

const renewalSelect = `
	select r.id, r.customer_id, r.status, r.amount, r.currency, r.due_at, r.notes, r.created_by, r.created_at, r.updated_at,
	       c.created_by, coalesce(c.assigned_to, '')
	from renewals r
	join customers c on c.id = r.customer_id
`

func (s *Renewals) Create(ctx context.Context, r *crm.Renewal) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	r.ID = ids.New()
	row := s.db.QueryRowContext(ctx, `
		insert into renewals (id, customer_id, status, amount, currency, due_at, notes, created_by)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at, updated_at
	`, r.ID, r.CustomerID, r.Status, r.Amount, r.Currency, r.DueAt, nullIfEmpty(r.Notes), r.CreatedBy)
	if err := row.Scan(&r.CreatedAt, &r.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: customer does not exist", crm.ErrInvalidInput)
		}
		return err
	}
	return nil
}

func (s *Renewals) Get(ctx context.Context, id string) (crm.Renewal, error) {
	if s.db == nil {
		return crm.Renewal{}, errors.New("database connection unavailable")
	}
	var (
		r     crm.Renewal
		notes sql.NullString
	)
	err := s.db.QueryRowContext(ctx, renewalSelect+` where r.id = $1`, id).Scan(
		&r.ID, &r.CustomerID, &r.Status, &r.Amount, &r.Currency, &r.DueAt, &notes, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
		&r.LinkedCreatedBy, &r.LinkedAssignedTo)
	if errors.Is(err, sql.ErrNoRows) {
		return crm.Renewal{}, crm.ErrNotFound
	}
	if err != nil {
		return crm.Renewal{}, err
	}
	r.Notes = notes.String
	return r, nil
}

func (s *Renewals) List(ctx context.Context, p scope.Predicate) ([]crm.Renewal, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	clause, args, _ := predicateSQL(p, renewalColumns, 1)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`%s where %s order by r.due_at asc`, renewalSelect, clause), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var renewals []crm.Renewal
	for rows.Next() {
		var (
			r     crm.Renewal
			notes sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.Status, &r.Amount, &r.Currency, &r.DueAt, &notes, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
			&r.LinkedCreatedBy, &r.LinkedAssignedTo); err != nil {
			return nil, err
		}
		r.Notes = notes.String
		renewals = append(renewals, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return renewals, nil
}

func (s *Renewals) Update(ctx context.Context, id string, upd crm.RenewalUpdate) (crm.Renewal, error) {
	if s.db == nil {
		return crm.Renewal{}, errors.New("database connection unavailable")
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if upd.Amount != nil {
		sets = append(sets, fmt.Sprintf("amount = $%d", idx))
		args = append(args, *upd.Amount)
		idx++
	}
	if upd.DueAt != nil {
		sets = append(sets, fmt.Sprintf("due_at = $%d", idx))
		args = append(args, *upd.DueAt)
		idx++
	}
	if upd.Notes != nil {
		sets = append(sets, fmt.Sprintf("notes = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Notes))
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update renewals set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return crm.Renewal{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return crm.Renewal{}, err
		}
		if aff == 0 {
			return crm.Renewal{}, crm.ErrNotFound
		}
	}
	return s.Get(ctx, id)
}
