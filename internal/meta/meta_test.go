package meta

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbgen-run/dbgen/internal/sqlconn"
)

// fakeConn is a minimal in-memory sqlconn.Connection recording every
// statement it is asked to execute, enough to assert on meta's SQL shape
// without a real database. schemaExists and hasRepeat answer two distinct
// Query call sites (EnsureSchema's information_schema probe vs. HasRepeat's
// lookup), told apart by the query text.
type fakeConn struct {
	execs        []string
	schemaExists bool
	hasRepeat    bool
}

func (f *fakeConn) Query(ctx context.Context, sql string, args ...interface{}) (sqlconn.Rows, error) {
	if strings.Contains(sql, "information_schema.tables") {
		return &fakeRows{has: f.schemaExists}, nil
	}
	return &fakeRows{has: f.hasRepeat}, nil
}

func (f *fakeConn) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	f.execs = append(f.execs, sql)
	return 0, nil
}

func (f *fakeConn) CopyFrom(ctx context.Context, schema, table string, columns []string, rows [][]interface{}) (int64, error) {
	return int64(len(rows)), nil
}

func (f *fakeConn) Begin(ctx context.Context) (sqlconn.Tx, error) {
	return nil, nil
}

type fakeRows struct {
	has     bool
	yielded bool
}

func (r *fakeRows) Next() bool {
	if r.has && !r.yielded {
		r.yielded = true
		return true
	}
	return false
}
func (r *fakeRows) Scan(dest ...interface{}) error    { return nil }
func (r *fakeRows) Columns() ([]string, error)        { return nil, nil }
func (r *fakeRows) Close()                            {}
func (r *fakeRows) Err() error                        { return nil }

func TestEnsureSchema_NukeCreatesAllFourMetaTables(t *testing.T) {
	conn := &fakeConn{}
	store := NewStore(conn)
	require.NoError(t, store.EnsureSchema(context.Background(), true))

	assert.Contains(t, conn.execs[0], "DROP TABLE IF EXISTS")
	joined := ""
	for _, e := range conn.execs {
		joined += e
	}
	assert.Contains(t, joined, "CREATE SCHEMA IF NOT EXISTS")
	for _, table := range []string{"run", "gen_run", "repeats", "row_errors"} {
		assert.Contains(t, joined, table)
	}
}

func TestEnsureSchema_NukeDropsBeforeCreating(t *testing.T) {
	conn := &fakeConn{}
	store := NewStore(conn)
	require.NoError(t, store.EnsureSchema(context.Background(), true))

	assert.Contains(t, conn.execs[0], "DROP TABLE IF EXISTS")
}

func TestEnsureSchema_MissingSchemaWithoutNukeIsError(t *testing.T) {
	conn := &fakeConn{schemaExists: false}
	store := NewStore(conn)

	err := store.EnsureSchema(context.Background(), false)
	require.ErrorIs(t, err, ErrSchemaMissing)
	assert.Empty(t, conn.execs, "must not create anything when nuke is not requested")
}

func TestEnsureSchema_PresentWithoutNukeIsNoOp(t *testing.T) {
	conn := &fakeConn{schemaExists: true}
	store := NewStore(conn)

	require.NoError(t, store.EnsureSchema(context.Background(), false))
	assert.Empty(t, conn.execs, "must not re-create tables that already exist")
}

func TestHasRepeat_TrueWhenRowPresent(t *testing.T) {
	conn := &fakeConn{hasRepeat: true}
	store := NewStore(conn)
	present, err := store.HasRepeat(context.Background(), "gen", "hash")
	require.NoError(t, err)
	assert.True(t, present)
}

func TestHasRepeat_FalseWhenAbsent(t *testing.T) {
	conn := &fakeConn{hasRepeat: false}
	store := NewStore(conn)
	present, err := store.HasRepeat(context.Background(), "gen", "hash")
	require.NoError(t, err)
	assert.False(t, present)
}

func TestRecordRepeat_UsesDoNothingOnConflict(t *testing.T) {
	conn := &fakeConn{}
	store := NewStore(conn)
	require.NoError(t, store.RecordRepeat(context.Background(), "gen", "hash", uuid.New()))
	assert.Contains(t, conn.execs[0], "ON CONFLICT (generator_id, input_hash) DO NOTHING")
}

func TestGenRunFinished_IssuesSingleUpdate(t *testing.T) {
	conn := &fakeConn{}
	store := NewStore(conn)
	err := store.GenRunFinished(context.Background(), uuid.New(), "gen", StatusCompleted, 100, 0, "")
	require.NoError(t, err)
	assert.Len(t, conn.execs, 1)
}
