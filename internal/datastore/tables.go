package datastore

import (
	"context"
	"fmt"

	"github.com/grapher3d/grapher-core/internal/infrastructure/logging"
)

// Table names.
const (
	UsersTable          = "Users"
	GraphsTable         = "Graph"
	GraphEquationsTable = "GraphEquations"
)

// Column widths, in characters. Services reject longer values before
// writing.
const (
	EmailSize       = 254
	GraphNameSize   = 44
	DescriptionSize = 280
	EquationSize    = 255
)

func varchar(n int) string { return fmt.Sprintf("varchar(%d)", n) }

// Tables is the registry of every table the server uses.
type Tables struct {
	Users          *TableSchema
	Graphs         *TableSchema
	GraphEquations *TableSchema
}

// NewTables declares the schema. Column order is binding order for Insert.
func NewTables() *Tables {
	return &Tables{
		Users: MustTableSchema(UsersTable,
			Column{Name: "id", Type: "int NOT NULL PRIMARY KEY"},
			Column{Name: "email", Type: varchar(EmailSize) + " NOT NULL"},
			Column{Name: "passwordHash", Type: "varchar(256)"},
			Column{Name: "passwordSalt", Type: "varchar(256)"},
		),
		Graphs: MustTableSchema(GraphsTable,
			Column{Name: "id", Type: "int NOT NULL PRIMARY KEY"},
			Column{Name: "owner", Type: "int NOT NULL"},
			Column{Name: "graphName", Type: varchar(GraphNameSize) + " NOT NULL"},
			Column{Name: "description", Type: varchar(DescriptionSize)},
			Column{Name: "animate", Type: "boolean"},
		),
		GraphEquations: MustTableSchema(GraphEquationsTable,
			Column{Name: "zIndex", Type: "int NOT NULL"},
			Column{Name: "ownerGraph", Type: "int NOT NULL"},
			Column{Name: "equation", Type: varchar(EquationSize)},
			Column{Name: "disabled", Type: "boolean"},
		),
	}
}

// All returns the tables in creation order.
func (t *Tables) All() []*TableSchema {
	return []*TableSchema{t.Users, t.Graphs, t.GraphEquations}
}

// Provision drops and recreates every table. Failures are logged and
// skipped so that a fresh database (nothing to drop) and a re-run both
// succeed.
func Provision(ctx context.Context, store *Store, tables *Tables, logger *logging.Logger) {
	for _, table := range tables.All() {
		store.IgnoreErr(ctx, "drop "+table.Name(), func(ctx context.Context) error {
			return store.DropTable(ctx, table.Name())
		})
		store.IgnoreErr(ctx, "create "+table.Name(), func(ctx context.Context) error {
			return store.CreateTable(ctx, table)
		})
		logger.Info("table provisioned", "table", table.Name(), "columns", table.ColumnCount())
	}
}

// EnsureTables creates any table that does not exist yet, leaving
// existing tables and their rows untouched.
func EnsureTables(ctx context.Context, store *Store, tables *Tables, logger *logging.Logger) error {
	for _, table := range tables.All() {
		_, err := store.SelectWhere(ctx, table, Where("1=0"))
		if err == nil {
			continue
		}
		if err := store.CreateTable(ctx, table); err != nil {
			return err
		}
		logger.Info("table created", "table", table.Name())
	}
	return nil
}
