package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grapher3d/grapher-core/internal/datastore"
	"github.com/grapher3d/grapher-core/internal/infrastructure/database"
	"github.com/grapher3d/grapher-core/internal/infrastructure/logging"
	"github.com/grapher3d/grapher-core/internal/session"
)

type testEnv struct {
	store    *datastore.Store
	tables   *datastore.Tables
	sessions *session.Store
	accounts *Accounts
	gate     *Gate
}

// newTestEnv provisions a temporary SQLite database and wires the services.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	store := datastore.Open(db)
	tables := datastore.NewTables()
	datastore.Provision(context.Background(), store, tables, logging.Discard())

	sessions := session.NewStore()
	return &testEnv{
		store:    store,
		tables:   tables,
		sessions: sessions,
		accounts: NewAccounts(sessions, store, tables, logging.Discard()),
		gate:     NewGate(sessions, store),
	}
}
