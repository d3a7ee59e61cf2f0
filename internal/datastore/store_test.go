package datastore

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grapher3d/grapher-core/internal/infrastructure/database"
	"github.com/grapher3d/grapher-core/internal/infrastructure/logging"
)

// newTestStore opens a temporary SQLite database with every table provisioned.
func newTestStore(t *testing.T, opts ...Option) (*Store, *Tables) {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "grapher.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	store := Open(db, opts...)
	tables := NewTables()
	Provision(context.Background(), store, tables, logging.Discard())
	return store, tables
}

func newMockStore(t *testing.T, dialect database.Dialect, opts ...Option) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	return New(db, dialect, opts...), mock
}

func TestInsertSelect_RoundTrip(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, tables.Users, int32(7), "a@b.com", "hash", "salt"))

	rows, err := store.SelectWhere(ctx, tables.Users, Where("id=?"), int32(7))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{"7", "a@b.com", "hash", "salt"}, rows[0])
}

func TestSelectWhere_BooleansAndNulls(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, tables.Graphs, int32(1), int32(7), "G1", nil, true))

	rows, err := store.SelectWhere(ctx, tables.Graphs, And(Where("owner=?"), Where("graphName=?")), int32(7), "G1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{"1", "7", "G1", "", "true"}, rows[0])
}

func TestSelectWhere_NoRows(t *testing.T) {
	store, tables := newTestStore(t)

	rows, err := store.SelectWhere(context.Background(), tables.Users, Where("email=?"), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSelectWhere_Ordering(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	for _, z := range []int{2, 0, 1} {
		require.NoError(t, store.Insert(ctx, tables.GraphEquations, z, int32(5), "eq", false))
	}

	rows, err := store.SelectWhere(ctx, tables.GraphEquations, Where("ownerGraph=? ORDER BY zIndex"), int32(5))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, []string{"0", "1", "2"}[i], row[0])
	}
}

func TestSelectAll(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, tables.Users, int32(1), "a@b.com", "h", "s"))
	require.NoError(t, store.Insert(ctx, tables.Users, int32(2), "c@d.com", "h", "s"))

	rows, err := store.SelectAll(ctx, tables.Users)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestInsert_ColumnCountMismatch(t *testing.T) {
	store, tables := newTestStore(t)

	err := store.Insert(context.Background(), tables.Users, int32(1), "a@b.com")
	assert.ErrorIs(t, err, ErrColumnCount)
	assert.ErrorIs(t, err, ErrDataAccess)
}

func TestDeleteWhere(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, tables.Users, int32(1), "a@b.com", "h", "s"))
	require.NoError(t, store.DeleteWhere(ctx, tables.Users, Where("email=?"), "a@b.com"))

	found, err := store.Exists(ctx, tables.Users, Where("id=?"), int32(1))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExecPrepared(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, tables.Graphs, int32(1), int32(7), "G1", "old", false))
	require.NoError(t, store.ExecPrepared(ctx, SQL("UPDATE Graph SET description=? WHERE id=?"), "new", int32(1)))

	rows, err := store.SelectWhere(ctx, tables.Graphs, Where("id=?"), int32(1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new", tables.Graphs.Field(rows[0], "description"))
}

func TestExec_FailureIsDataAccess(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Exec(context.Background(), SQL("SELECT * FROM NoSuchTable"))
	assert.ErrorIs(t, err, ErrDataAccess)
}

func TestDropAndCreateTable(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.DropTable(ctx, tables.Users.Name()))
	_, err := store.SelectAll(ctx, tables.Users)
	assert.ErrorIs(t, err, ErrDataAccess)

	require.NoError(t, store.CreateTable(ctx, tables.Users))
	_, err = store.SelectAll(ctx, tables.Users)
	assert.NoError(t, err)

	assert.ErrorIs(t, store.CreateTable(ctx, tables.Users), ErrDataAccess)
}

func TestProvision_IsRepeatable(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, tables.Users, int32(1), "a@b.com", "h", "s"))
	Provision(ctx, store, tables, logging.Discard())

	rows, err := store.SelectAll(ctx, tables.Users)
	require.NoError(t, err)
	assert.Empty(t, rows, "provision recreates tables empty")
}

func TestEnsureTables_KeepsRows(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, tables.Users, int32(1), "a@b.com", "h", "s"))
	require.NoError(t, store.DropTable(ctx, tables.GraphEquations.Name()))

	require.NoError(t, EnsureTables(ctx, store, tables, logging.Discard()))

	rows, err := store.SelectAll(ctx, tables.Users)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = store.SelectAll(ctx, tables.GraphEquations)
	assert.NoError(t, err)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	errStop := errors.New("stop")
	err := store.InTx(ctx, func(ctx context.Context, q *Queries) error {
		if err := q.Insert(ctx, tables.Users, int32(1), "a@b.com", "h", "s"); err != nil {
			return err
		}
		return errStop
	})
	assert.ErrorIs(t, err, errStop)

	found, err := store.Exists(ctx, tables.Users, Where("id=?"), int32(1))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInTx_Commits(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(ctx context.Context, q *Queries) error {
		if err := q.Insert(ctx, tables.Users, int32(1), "a@b.com", "h", "s"); err != nil {
			return err
		}
		return q.Insert(ctx, tables.Users, int32(2), "c@d.com", "h", "s")
	})
	require.NoError(t, err)

	rows, err := store.SelectAll(ctx, tables.Users)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestUniqueID_RetriesOnCollision(t *testing.T) {
	candidates := []int32{5, 5, 9}
	var calls atomic.Int32
	store, tables := newTestStore(t, WithIDSource(func() int32 {
		return candidates[calls.Add(1)-1]
	}))
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, tables.Users, int32(5), "taken@b.com", "h", "s"))

	var id int32
	err := store.Do(ctx, func(ctx context.Context, q *Queries) error {
		var err error
		id, err = q.UniqueID(ctx, tables.Users)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int32(9), id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUniqueID_Exhausted(t *testing.T) {
	store, tables := newTestStore(t, WithIDSource(func() int32 { return 1 }))
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, tables.Users, int32(1), "a@b.com", "h", "s"))

	err := store.Do(ctx, func(ctx context.Context, q *Queries) error {
		_, err := q.UniqueID(ctx, tables.Users)
		return err
	})
	assert.ErrorIs(t, err, ErrIDExhausted)
	assert.ErrorIs(t, err, ErrDataAccess)
}

func TestUniqueID_RequiresIDColumn(t *testing.T) {
	store, tables := newTestStore(t)

	err := store.Do(context.Background(), func(ctx context.Context, q *Queries) error {
		_, err := q.UniqueID(ctx, tables.GraphEquations)
		return err
	})
	assert.Error(t, err)
}

func TestSelectWhere_DriverFailure(t *testing.T) {
	store, mock := newMockStore(t, database.SQLite)
	tables := NewTables()

	mock.ExpectQuery("SELECT * FROM Users WHERE email=?").
		WithArgs("a@b.com").
		WillReturnError(errors.New("disk I/O error"))

	_, err := store.SelectWhere(context.Background(), tables.Users, Where("email=?"), "a@b.com")
	assert.ErrorIs(t, err, ErrDataAccess)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectWhere_MatchesColumnsByName(t *testing.T) {
	store, mock := newMockStore(t, database.SQLite)
	tables := NewTables()

	// The driver reports columns in a different order and case.
	mock.ExpectQuery("SELECT * FROM Users WHERE id=?").
		WithArgs(int32(3)).
		WillReturnRows(sqlmock.NewRows([]string{"EMAIL", "ID", "PASSWORDSALT", "PASSWORDHASH"}).
			AddRow([]byte("x@y.z"), int64(3), "s", nil))

	rows, err := store.SelectWhere(context.Background(), tables.Users, Where("id=?"), int32(3))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{"3", "x@y.z", "", "s"}, rows[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRebind(t *testing.T) {
	store, mock := newMockStore(t, database.Postgres)
	tables := NewTables()

	mock.ExpectExec("DELETE FROM Graph WHERE (owner=$1) AND (graphName=$2)").
		WithArgs(int32(7), "G1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.DeleteWhere(context.Background(), tables.Graphs, And(Where("owner=?"), Where("graphName=?")), int32(7), "G1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_MockRollback(t *testing.T) {
	store, mock := newMockStore(t, database.SQLite)
	tables := NewTables()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM GraphEquations WHERE ownerGraph=?").
		WithArgs(int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO GraphEquations VALUES (?,?,?,?)").
		WithArgs(0, int32(1), "x", false).
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(ctx context.Context, q *Queries) error {
		if err := q.DeleteWhere(ctx, tables.GraphEquations, Where("ownerGraph=?"), int32(1)); err != nil {
			return err
		}
		return q.Insert(ctx, tables.GraphEquations, 0, int32(1), "x", false)
	})
	assert.ErrorIs(t, err, ErrDataAccess)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIgnoreErr(t *testing.T) {
	store, _ := newMockStore(t, database.SQLite)

	called := false
	store.IgnoreErr(context.Background(), "drop Users", func(context.Context) error {
		called = true
		return errors.New("no such table")
	})
	assert.True(t, called)
}

func TestHealthCheck(t *testing.T) {
	store, _ := newTestStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestSelectWhere_EmptyAndMatchesEverything(t *testing.T) {
	store, tables := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, tables.Users, int32(1), "a@b.com", "h", "s"))
	require.NoError(t, store.Insert(ctx, tables.Users, int32(2), "c@d.com", "h", "s"))

	rows, err := store.SelectWhere(ctx, tables.Users, And())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
