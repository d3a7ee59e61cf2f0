package datastore

import "strings"

// trusted is unexported: outside this package only untyped string
// constants convert to it. Runtime strings cannot become SQL text.
type trusted string

// Predicate is a WHERE fragment written by server code. End-user values
// never appear in it; they are passed as bound arguments for its '?'
// placeholders.
type Predicate struct {
	text string
}

// Where wraps a constant WHERE fragment such as "owner=? AND graphName=?".
func Where(text trusted) Predicate {
	return Predicate{text: string(text)}
}

// All matches every row.
var All = Where("1=1")

// And joins predicates with AND. Arguments bind in the order given. Empty
// predicates are skipped; if none remain the result is All.
func And(preds ...Predicate) Predicate {
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		if p.text != "" {
			parts = append(parts, "("+p.text+")")
		}
	}
	if len(parts) == 0 {
		return All
	}
	return Predicate{text: strings.Join(parts, " AND ")}
}

// String returns the SQL text.
func (p Predicate) String() string { return p.text }

// Statement is a complete SQL statement written by server code, for the
// low-level ExecPrepared and Exec primitives.
type Statement struct {
	text string
}

// SQL wraps a constant statement.
func SQL(text trusted) Statement {
	return Statement{text: string(text)}
}

// String returns the SQL text.
func (s Statement) String() string { return s.text }

// statement is used inside the package to assemble schema-relative SQL from
// table and column names, which come from TableSchema declarations.
func statement(text string) Statement {
	return Statement{text: text}
}
