package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/grapher3d/grapher-core/internal/infrastructure/database"
	"github.com/grapher3d/grapher-core/internal/infrastructure/logging"
)

// ErrDataAccess marks every failure that came from the database.
var ErrDataAccess = errors.New("data access failed")

// ErrColumnCount is returned by Insert when the value count differs from the
// schema's column count.
var ErrColumnCount = errors.New("value count does not match column count")

// Store runs schema-relative statements. Each unit of work acquires its own
// connection and releases it before returning.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	db      *sql.DB
	dialect database.Dialect
	timeout time.Duration
	logger  *logging.Logger
	newID   func() int32
}

// Option configures a Store.
type Option func(*Store)

// WithQueryTimeout bounds every unit of work. Zero means no bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithLogger sets the logger used for statement failures and IgnoreErr.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDSource replaces the random id source. Intended for tests.
func WithIDSource(fn func() int32) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates a Store over db.
func New(db *sql.DB, dialect database.Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  logging.Discard(),
		newID:   randomID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open wraps an opened database connection.
func Open(db *database.DB, opts ...Option) *Store {
	return New(db.DB, db.Dialect(), opts...)
}

// Do runs fn on a dedicated connection. The connection is released on
// every exit path.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, q *Queries) error) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquiring connection: %w", ErrDataAccess, err)
	}
	defer conn.Close() //nolint:errcheck // Returning the connection to the pool

	return fn(ctx, s.queries(conn))
}

// InTx runs fn inside a transaction on a dedicated connection. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, q *Queries) error) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquiring connection: %w", ErrDataAccess, err)
	}
	defer conn.Close() //nolint:errcheck // Returning the connection to the pool

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting transaction: %w", ErrDataAccess, err)
	}

	if err := fn(ctx, s.queries(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", ErrDataAccess, err)
	}
	return nil
}

// SelectWhere returns the rows of schema matching where.
func (s *Store) SelectWhere(ctx context.Context, schema *TableSchema, where Predicate, args ...any) ([]Row, error) {
	var rows []Row
	err := s.Do(ctx, func(ctx context.Context, q *Queries) error {
		var err error
		rows, err = q.SelectWhere(ctx, schema, where, args...)
		return err
	})
	return rows, err
}

// SelectAll returns every row of schema.
func (s *Store) SelectAll(ctx context.Context, schema *TableSchema) ([]Row, error) {
	return s.SelectWhere(ctx, schema, All)
}

// Exists reports whether any row of schema matches where.
func (s *Store) Exists(ctx context.Context, schema *TableSchema, where Predicate, args ...any) (bool, error) {
	var found bool
	err := s.Do(ctx, func(ctx context.Context, q *Queries) error {
		var err error
		found, err = q.Exists(ctx, schema, where, args...)
		return err
	})
	return found, err
}

// Insert adds one row. values must align with the schema's columns.
func (s *Store) Insert(ctx context.Context, schema *TableSchema, values ...any) error {
	return s.Do(ctx, func(ctx context.Context, q *Queries) error {
		return q.Insert(ctx, schema, values...)
	})
}

// DeleteWhere removes the rows of schema matching where.
func (s *Store) DeleteWhere(ctx context.Context, schema *TableSchema, where Predicate, args ...any) error {
	return s.Do(ctx, func(ctx context.Context, q *Queries) error {
		return q.DeleteWhere(ctx, schema, where, args...)
	})
}

// CreateTable creates the table described by schema.
func (s *Store) CreateTable(ctx context.Context, schema *TableSchema) error {
	return s.Do(ctx, func(ctx context.Context, q *Queries) error {
		return q.CreateTable(ctx, schema)
	})
}

// DropTable drops the named table.
func (s *Store) DropTable(ctx context.Context, name string) error {
	return s.Do(ctx, func(ctx context.Context, q *Queries) error {
		return q.DropTable(ctx, name)
	})
}

// ExecPrepared runs stmt with bound args.
func (s *Store) ExecPrepared(ctx context.Context, stmt Statement, args ...any) error {
	return s.Do(ctx, func(ctx context.Context, q *Queries) error {
		return q.ExecPrepared(ctx, stmt, args...)
	})
}

// Exec runs stmt without arguments.
func (s *Store) Exec(ctx context.Context, stmt Statement) error {
	return s.Do(ctx, func(ctx context.Context, q *Queries) error {
		return q.Exec(ctx, stmt)
	})
}

// IgnoreErr runs fn and logs instead of returning its error. Only for
// idempotent provisioning steps such as dropping a table that may not exist.
func (s *Store) IgnoreErr(ctx context.Context, step string, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		s.logger.Warn("ignoring provisioning error", "step", step, "error", err)
	}
}

// HealthCheck verifies the database answers.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrDataAccess, err)
	}
	return nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) queries(ex executor) *Queries {
	return &Queries{ex: ex, dialect: s.dialect, logger: s.logger, newID: s.newID}
}
