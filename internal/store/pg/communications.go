package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"relaycrm.org/internal/crm"
	"relaycrm.org/internal/ids"
	"relaycrm.org/internal/scope"
)

// Communications persists logged interactions. Reads join the linked lead or
// customer so rows carry that contact's ownership for scope checks.
type Communications struct {
	db *sql.DB
}

// A communication has no assignee axis of its own; the field is absent from
// the map so assignee conditions match nothing.
var communicationColumns = fieldColumns{
	scope.FieldCreator:        "c.made_by",
	scope.FieldLinkedCreator:  "coalesce(l.created_by, cu.created_by)",
	scope.FieldLinkedAssignee: "coalesce(l.assigned_to, cu.assigned_to)",
}

const communicationSelect = `
	select c.id, c.lead_id, c.customer_id, c.channel, c.subject, c.body, c.made_by, c.occurred_at, c.created_at,
	       coalesce(l.created_by, cu.created_by, ''),
	       coalesce(l.assigned_to, cu.assigned_to, '')
	from communications c
	left join leads l on l.id = c.lead_id
	left join customers cu on cu.id = c.customer_id
`

func (s *Communications) Create(ctx context.Context, c *crm.Communication) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	c.ID = ids.New()
	row := s.db.QueryRowContext(ctx, `
		insert into communications (id, lead_id, customer_id, channel, subject, body, made_by, occurred_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at
	`, c.ID, nullIfEmpty(c.LeadID), nullIfEmpty(c.CustomerID), c.Channel, c.Subject,
		nullIfEmpty(c.Body), c.MadeBy, c.OccurredAt)
	if err := row.Scan(&c.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: linked record does not exist", crm.ErrInvalidInput)
		}
		return err
	}
	return nil
}

func (s *Communications) Get(ctx context.Context, id string) (crm.Communication, error) {
	if s.db == nil {
		return crm.Communication{}, errors.New("database connection unavailable")
	}
	var (
		c              crm.Communication
		leadID, custID sql.NullString
		body           sql.NullString
	)
	err := s.db.QueryRowContext(ctx, communicationSelect+` where c.id = $1`, id).Scan(
		&c.ID, &leadID, &custID, &c.Channel, &c.Subject, &body, &c.MadeBy, &c.OccurredAt, &c.CreatedAt,
		&c.LinkedCreatedBy, &c.LinkedAssignedTo)
	if errors.Is(err, sql.ErrNoRows) {
		return crm.Communication{}, crm.ErrNotFound
	}
	if err != nil {
		return crm.Communication{}, err
	}
	c.LeadID, c.CustomerID, c.Body = leadID.String, custID.String, body.String
	return c, nil
}

func (s *Communications) List(ctx context.Context, p scope.Predicate) ([]crm.Communication, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	clause, args, _ := predicateSQL(p, communicationColumns, 1)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`%s where %s order by c.occurred_at desc`, communicationSelect, clause), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comms []crm.Communication
	for rows.Next() {
		var (
			c              crm.Communication
			leadID, custID sql.NullString
			body           sql.NullString
		)
		if err := rows.Scan(&c.ID, &leadID, &custID, &c.Channel, &c.Subject, &body, &c.MadeBy, &c.OccurredAt, &c.CreatedAt,
			&c.LinkedCreatedBy, &c.LinkedAssignedTo); err != nil {
			return nil, err
		}
		c.LeadID, c.CustomerID, c.Body = leadID.String, custID.String, body.String
		comms = append(comms, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comms, nil
}

func (s *Communications) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from communications where id = $1`, id)
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
