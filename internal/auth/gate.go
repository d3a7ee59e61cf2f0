package auth

import (
	"context"

	"github.com/grapher3d/grapher-core/internal/apperr"
	"github.com/grapher3d/grapher-core/internal/datastore"
)

// SessionLookup resolves a session token to a user id.
type SessionLookup interface {
	GetUID(token string) (int32, bool)
}

// Resource identifies one owned row: the table it lives in, a predicate
// that singles it out, and the bound arguments for that predicate.
// The table must have an "owner" column.
type Resource struct {
	Table    *datastore.TableSchema
	Identity datastore.Predicate
	Args     []any
}

// ownedBy is prepended to every resource identity; its argument is the
// session's user id.
var ownedBy = datastore.Where("owner=?")

// Gate answers whether a session may act on a resource. Results are never
// cached; every mutating call asks again.
type Gate struct {
	sessions SessionLookup
	store    *datastore.Store
}

// NewGate creates a Gate.
func NewGate(sessions SessionLookup, store *datastore.Store) *Gate {
	return &Gate{sessions: sessions, store: store}
}

// IsAuthorizedForResource reports whether token belongs to a live session
// whose user owns res. An invalid token returns false without touching
// the database.
func (g *Gate) IsAuthorizedForResource(ctx context.Context, token string, res Resource) (bool, error) {
	uid, ok := g.sessions.GetUID(token)
	if !ok {
		return false, nil
	}

	args := make([]any, 0, len(res.Args)+1)
	args = append(args, uid)
	args = append(args, res.Args...)

	return g.store.Exists(ctx, res.Table, datastore.And(ownedBy, res.Identity), args...)
}

// Authorize is IsAuthorizedForResource as an error: it returns the owner's
// user id, or an Authorization error when the check fails.
func (g *Gate) Authorize(ctx context.Context, token string, res Resource) (int32, error) {
	ok, err := g.IsAuthorizedForResource(ctx, token, res)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apperr.New(apperr.Authorization, "Not authorized")
	}
	uid, _ := g.sessions.GetUID(token)
	return uid, nil
}

// Authenticate returns the user id for token, or an Authentication error.
func (g *Gate) Authenticate(token string) (int32, error) {
	uid, ok := g.sessions.GetUID(token)
	if !ok {
		return 0, apperr.New(apperr.Authentication, "Not logged in")
	}
	return uid, nil
}
