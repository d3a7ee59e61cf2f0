// Package graph implements the owned graph resources: a named graph with a
// description, an animate flag and an ordered list of equations.
//
// Every operation takes the caller's session token. Reads and writes on a
// named graph go through the authorization gate first; a graph is only
// visible to the user that created it.
package graph

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/grapher3d/grapher-core/internal/apperr"
	"github.com/grapher3d/grapher-core/internal/auth"
	"github.com/grapher3d/grapher-core/internal/datastore"
	"github.com/grapher3d/grapher-core/internal/infrastructure/logging"
)

// Client-facing messages.
const (
	MsgNameRequired = "Requires name argument"
	MsgDuplicate    = "Duplicate Graph"
)

// tooLong reports a value wider than its column.
func tooLong(field string, size int) error {
	return apperr.New(apperr.Validation, fmt.Sprintf("%s exceeds %d characters", field, size))
}

// Graph is the full detail of one graph.
type Graph struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Animate     bool       `json:"animate"`
	Equations   []Equation `json:"equations"`
}

// Equation is one line of a graph, ordered by ZIndex.
type Equation struct {
	ZIndex   int    `json:"zIndex"`
	Equation string `json:"equation"`
	Disabled bool   `json:"disabled"`
}

// Update replaces a graph's description and equations.
// Animate is left unchanged when nil.
type Update struct {
	Name        string
	Description string
	Animate     *bool
	Equations   []EquationInput
}

// EquationInput is a submitted equation; its position is its z-index.
type EquationInput struct {
	Text     string
	Disabled bool
}

// EmailLookup resolves a user's email.
type EmailLookup interface {
	Email(ctx context.Context, uid int32) (string, error)
}

var (
	byOwner            = datastore.Where("owner=?")
	byOwnerAndName     = datastore.Where("owner=? AND graphName=?")
	byGraphName        = datastore.Where("graphName=?")
	byOwnerGraph       = datastore.Where("ownerGraph=?")
	byOwnerGraphSorted = datastore.Where("ownerGraph=? ORDER BY zIndex")
	byID               = datastore.Where("id=?")

	setDescription        = datastore.SQL("UPDATE Graph SET description=? WHERE id=?")
	setDescriptionAnimate = datastore.SQL("UPDATE Graph SET description=?, animate=? WHERE id=?")
)

// Service implements the graph operations.
type Service struct {
	gate     *auth.Gate
	emails   EmailLookup
	store    *datastore.Store
	tables   *datastore.Tables
	notifier Notifier
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates a graph service. A nil notifier disables events.
func NewService(gate *auth.Gate, emails EmailLookup, store *datastore.Store, tables *datastore.Tables, notifier Notifier, logger *logging.Logger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		gate:     gate,
		emails:   emails,
		store:    store,
		tables:   tables,
		notifier: notifier,
		logger:   logger.With("component", "graph"),
		now:      time.Now,
	}
}

// Ownership is the gate resource for the caller's graph called name.
func Ownership(tables *datastore.Tables, name string) auth.Resource {
	return auth.Resource{
		Table:    tables.Graphs,
		Identity: byGraphName,
		Args:     []any{name},
	}
}

// List returns the names of the caller's graphs.
func (s *Service) List(ctx context.Context, token string) ([]string, error) {
	uid, err := s.gate.Authenticate(token)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.SelectWhere(ctx, s.tables.Graphs, byOwner, uid)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, s.tables.Graphs.Field(row, "graphName"))
	}
	return names, nil
}

// Get returns the named graph with its equations in z-index order.
func (s *Service) Get(ctx context.Context, token, name string) (*Graph, error) {
	uid, err := s.gate.Authorize(ctx, token, Ownership(s.tables, name))
	if err != nil {
		return nil, err
	}

	var g *Graph
	err = s.store.Do(ctx, func(ctx context.Context, q *datastore.Queries) error {
		row, id, err := s.graphRow(ctx, q, uid, name)
		if err != nil {
			return err
		}

		graphs := s.tables.Graphs
		g = &Graph{
			Name:        graphs.Field(row, "graphName"),
			Description: graphs.Field(row, "description"),
			Animate:     parseBool(graphs.Field(row, "animate")),
			Equations:   []Equation{},
		}

		rows, err := q.SelectWhere(ctx, s.tables.GraphEquations, byOwnerGraphSorted, id)
		if err != nil {
			return err
		}
		eqs := s.tables.GraphEquations
		for _, r := range rows {
			z, err := strconv.Atoi(eqs.Field(r, "zIndex"))
			if err != nil {
				return fmt.Errorf("%w: equation row: %w", datastore.ErrDataAccess, err)
			}
			g.Equations = append(g.Equations, Equation{
				ZIndex:   z,
				Equation: eqs.Field(r, "equation"),
				Disabled: parseBool(eqs.Field(r, "disabled")),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Create adds an empty graph called name owned by the caller.
func (s *Service) Create(ctx context.Context, token, name string) error {
	uid, err := s.gate.Authenticate(token)
	if err != nil {
		return err
	}
	if name == "" {
		return apperr.New(apperr.Validation, MsgNameRequired)
	}
	if utf8.RuneCountInString(name) > datastore.GraphNameSize {
		return tooLong("Graph name", datastore.GraphNameSize)
	}

	email, err := s.emails.Email(ctx, uid)
	if err != nil {
		return err
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q *datastore.Queries) error {
		dup, err := q.Exists(ctx, s.tables.Graphs, byOwnerAndName, uid, name)
		if err != nil {
			return err
		}
		if dup {
			return apperr.New(apperr.Conflict, MsgDuplicate)
		}

		id, err := q.UniqueID(ctx, s.tables.Graphs)
		if err != nil {
			return err
		}
		return q.Insert(ctx, s.tables.Graphs, id, uid, name, fmt.Sprintf("%s's Graph", email), false)
	})
	if err != nil {
		return err
	}

	s.logger.Info("graph created", "owner", uid, "name", name)
	s.publish(ctx, ActionCreated, uid, name)
	return nil
}

// Update replaces the description and every equation of a graph in one
// transaction. Field presence is checked by the caller; an empty
// description is a valid value.
func (s *Service) Update(ctx context.Context, token string, upd Update) error {
	uid, err := s.gate.Authorize(ctx, token, Ownership(s.tables, upd.Name))
	if err != nil {
		return err
	}
	if err := upd.validate(); err != nil {
		return err
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q *datastore.Queries) error {
		_, id, err := s.graphRow(ctx, q, uid, upd.Name)
		if err != nil {
			return err
		}

		if err := q.DeleteWhere(ctx, s.tables.GraphEquations, byOwnerGraph, id); err != nil {
			return err
		}

		if upd.Animate != nil {
			err = q.ExecPrepared(ctx, setDescriptionAnimate, upd.Description, *upd.Animate, id)
		} else {
			err = q.ExecPrepared(ctx, setDescription, upd.Description, id)
		}
		if err != nil {
			return err
		}

		for z, eq := range upd.Equations {
			if err := q.Insert(ctx, s.tables.GraphEquations, z, id, eq.Text, eq.Disabled); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("graph updated", "owner", uid, "name", upd.Name, "equations", len(upd.Equations))
	s.publish(ctx, ActionUpdated, uid, upd.Name)
	return nil
}

// Delete removes a graph and its equations.
func (s *Service) Delete(ctx context.Context, token, name string) error {
	uid, err := s.gate.Authorize(ctx, token, Ownership(s.tables, name))
	if err != nil {
		return err
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q *datastore.Queries) error {
		_, id, err := s.graphRow(ctx, q, uid, name)
		if err != nil {
			return err
		}
		if err := q.DeleteWhere(ctx, s.tables.GraphEquations, byOwnerGraph, id); err != nil {
			return err
		}
		return q.DeleteWhere(ctx, s.tables.Graphs, byID, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("graph deleted", "owner", uid, "name", name)
	s.publish(ctx, ActionDeleted, uid, name)
	return nil
}

// validate checks every value against its column width.
func (u Update) validate() error {
	if utf8.RuneCountInString(u.Description) > datastore.DescriptionSize {
		return tooLong("Description", datastore.DescriptionSize)
	}
	for i, eq := range u.Equations {
		if utf8.RuneCountInString(eq.Text) > datastore.EquationSize {
			return tooLong(fmt.Sprintf("Equation %d", i), datastore.EquationSize)
		}
	}
	return nil
}

// graphRow loads the caller's graph row and its id.
func (s *Service) graphRow(ctx context.Context, q *datastore.Queries, uid int32, name string) (datastore.Row, int32, error) {
	rows, err := q.SelectWhere(ctx, s.tables.Graphs, byOwnerAndName, uid, name)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		// The gate saw it a moment ago; treat the race like a failed check.
		return nil, 0, apperr.New(apperr.Authorization, "Not authorized")
	}
	id, err := strconv.ParseInt(s.tables.Graphs.Field(rows[0], "id"), 10, 32)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: graph row: %w", datastore.ErrDataAccess, err)
	}
	return rows[0], int32(id), nil
}

// parseBool reads a boolean column. Backends report "true", "1" or "t".
func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
