package pg

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"relaycrm.org/internal/crm"
	"relaycrm.org/internal/scope"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store bundles the per-resource stores over one connection pool.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Leads() *Leads                   { return &Leads{db: s.db} }
func (s *Store) Customers() *Customers           { return &Customers{db: s.db} }
func (s *Store) Communications() *Communications { return &Communications{db: s.db} }
func (s *Store) Renewals() *Renewals             { return &Renewals{db: s.db} }
func (s *Store) Users() *Users                   { return &Users{db: s.db} }

var (
	_ crm.LeadStore          = (*Leads)(nil)
	_ crm.CustomerStore      = (*Customers)(nil)
	_ crm.CommunicationStore = (*Communications)(nil)
	_ crm.RenewalStore       = (*Renewals)(nil)
	_ crm.UserStore          = (*Users)(nil)
	_ scope.Directory        = (*Users)(nil)
	_ scope.QuotaStore       = (*Users)(nil)
)

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
