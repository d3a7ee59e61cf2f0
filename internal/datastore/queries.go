package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grapher3d/grapher-core/internal/infrastructure/database"
	"github.com/grapher3d/grapher-core/internal/infrastructure/logging"
)

// executor is satisfied by *sql.Conn and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Queries executes statements within one unit of work obtained from
// Store.Do or Store.InTx. It must not be retained after fn returns.
type Queries struct {
	ex      executor
	dialect database.Dialect
	logger  *logging.Logger
	newID   func() int32
}

// SelectWhere runs SELECT * FROM <table> WHERE <where> and returns rows in
// schema column order. Result columns are matched to schema columns by
// name, ignoring case.
func (q *Queries) SelectWhere(ctx context.Context, schema *TableSchema, where Predicate, args ...any) ([]Row, error) {
	query := statement(fmt.Sprintf("SELECT * FROM %s WHERE %s", schema.Name(), where))

	rows, err := q.ex.QueryContext(ctx, q.dialect.Rebind(query.String()), args...)
	if err != nil {
		return nil, q.fail("select", schema.Name(), query, err)
	}
	defer rows.Close()

	resultCols, err := rows.Columns()
	if err != nil {
		return nil, q.fail("select", schema.Name(), query, err)
	}

	// position[i] is the result column holding schema column i, or -1.
	position := make([]int, schema.ColumnCount())
	for i := range position {
		position[i] = -1
		for j, name := range resultCols {
			if strings.EqualFold(name, schema.ColumnAt(i)) {
				position[i] = j
				break
			}
		}
	}

	var out []Row
	raw := make([]any, len(resultCols))
	ptrs := make([]any, len(resultCols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, q.fail("select", schema.Name(), query, err)
		}
		row := make(Row, schema.ColumnCount())
		for i, j := range position {
			if j >= 0 {
				row[i] = stringify(raw[j])
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, q.fail("select", schema.Name(), query, err)
	}

	return out, nil
}

// Exists reports whether any row matches where.
func (q *Queries) Exists(ctx context.Context, schema *TableSchema, where Predicate, args ...any) (bool, error) {
	rows, err := q.SelectWhere(ctx, schema, where, args...)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Insert runs INSERT INTO <table> VALUES (?, ...) with one placeholder per
// column.
func (q *Queries) Insert(ctx context.Context, schema *TableSchema, values ...any) error {
	if len(values) != schema.ColumnCount() {
		return fmt.Errorf("%w: inserting into %s: %w (got %d, want %d)",
			ErrDataAccess, schema.Name(), ErrColumnCount, len(values), schema.ColumnCount())
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", schema.ColumnCount()), ",")
	stmt := statement(fmt.Sprintf("INSERT INTO %s VALUES (%s)", schema.Name(), placeholders))
	return q.execContext(ctx, "insert", schema.Name(), stmt, values...)
}

// DeleteWhere runs DELETE FROM <table> WHERE <where>.
func (q *Queries) DeleteWhere(ctx context.Context, schema *TableSchema, where Predicate, args ...any) error {
	stmt := statement(fmt.Sprintf("DELETE FROM %s WHERE %s", schema.Name(), where))
	return q.execContext(ctx, "delete", schema.Name(), stmt, args...)
}

// CreateTable runs CREATE TABLE <table> (<columns>).
func (q *Queries) CreateTable(ctx context.Context, schema *TableSchema) error {
	stmt := statement(fmt.Sprintf("CREATE TABLE %s (%s)", schema.Name(), schema.FullColumnDefinition()))
	return q.execContext(ctx, "create table", schema.Name(), stmt)
}

// DropTable runs DROP TABLE <name>.
func (q *Queries) DropTable(ctx context.Context, name string) error {
	stmt := statement("DROP TABLE " + name)
	return q.execContext(ctx, "drop table", name, stmt)
}

// ExecPrepared runs stmt with bound args.
func (q *Queries) ExecPrepared(ctx context.Context, stmt Statement, args ...any) error {
	return q.execContext(ctx, "exec", "", stmt, args...)
}

// Exec runs stmt without arguments.
func (q *Queries) Exec(ctx context.Context, stmt Statement) error {
	return q.execContext(ctx, "exec", "", stmt)
}

// UniqueID returns a random id not present in schema's "id" column.
// Candidates are drawn until one is free, at most maxIDAttempts times.
func (q *Queries) UniqueID(ctx context.Context, schema *TableSchema) (int32, error) {
	if _, ok := schema.ColumnIndexOf("id"); !ok {
		return 0, fmt.Errorf("table %s has no id column", schema.Name())
	}
	for range maxIDAttempts {
		candidate := q.newID()
		taken, err := q.Exists(ctx, schema, Where("id=?"), candidate)
		if err != nil {
			return 0, err
		}
		if !taken {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("%w: %s: %w", ErrDataAccess, schema.Name(), ErrIDExhausted)
}

func (q *Queries) execContext(ctx context.Context, op, table string, stmt Statement, args ...any) error {
	if _, err := q.ex.ExecContext(ctx, q.dialect.Rebind(stmt.String()), args...); err != nil {
		return q.fail(op, table, stmt, err)
	}
	return nil
}

func (q *Queries) fail(op, table string, stmt Statement, err error) error {
	q.logger.Debug("statement failed", "op", op, "table", table, "sql", stmt.String(), "error", err)
	if table == "" {
		return fmt.Errorf("%w: %s: %w", ErrDataAccess, op, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrDataAccess, op, table, err)
}

// stringify renders a scanned driver value the same way for every backend.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
