package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbgen-run/dbgen/internal/entity"
	"github.com/dbgen-run/dbgen/internal/generator"
	"github.com/dbgen-run/dbgen/internal/meta"
	"github.com/dbgen-run/dbgen/internal/node"
	"github.com/dbgen-run/dbgen/internal/sqlconn"
)

// fakeConn is a no-op sqlconn.Connection: every Exec succeeds, no query
// ever returns a row, and Begin hands out a fakeTx over the same conn,
// enough to drive Model.Run end to end without a real database.
type fakeConn struct {
	execs []string
}

func (f *fakeConn) Query(ctx context.Context, sql string, args ...interface{}) (sqlconn.Rows, error) {
	return &fakeRows{}, nil
}
func (f *fakeConn) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	f.execs = append(f.execs, sql)
	return 0, nil
}
func (f *fakeConn) CopyFrom(ctx context.Context, schema, table string, columns []string, rows [][]interface{}) (int64, error) {
	return int64(len(rows)), nil
}
func (f *fakeConn) Begin(ctx context.Context) (sqlconn.Tx, error) { return &fakeTx{fakeConn: f}, nil }

type fakeTx struct{ *fakeConn }

func (t *fakeTx) Commit(context.Context) error   { return nil }
func (t *fakeTx) Rollback(context.Context) error { return nil }

type fakeRows struct{}

func (r *fakeRows) Next() bool                  { return false }
func (r *fakeRows) Scan(dest ...interface{}) error { return nil }
func (r *fakeRows) Columns() ([]string, error)  { return nil, nil }
func (r *fakeRows) Close()                      {}
func (r *fakeRows) Err() error                  { return nil }

func customersGenerator(t *testing.T) *generator.Generator {
	t.Helper()
	e, err := node.NewExtract("src", &node.SliceExtractor{Records: []node.Record{
		{"email": "a@example.com", "name": "Ada"},
		{"email": "b@example.com", "name": "Bea"},
	}})
	require.NoError(t, err)

	le := &entity.LoadEntity{
		Name: "customer", Schema: "public", Table: "customer", PrimaryKeyName: "id",
		IdentifyingAttributes: map[string]entity.ColumnType{"email": entity.ColumnText},
		Attributes:            map[string]entity.ColumnType{"email": entity.ColumnText, "name": entity.ColumnText},
	}
	ld, err := node.NewLoad("load_customer", le, map[string]node.Input{
		"email": node.Arg{SourceHash: e.Hash(), Output: "record"},
		"name":  node.Arg{SourceHash: e.Hash(), Output: "record"},
	}, nil)
	require.NoError(t, err)

	// field-level extraction from the raw record happens via a transform
	// in a real model; here Load wires both columns straight to the
	// extract's single "record" output, so each column receives the whole
	// record. This test checks run control, not column values.
	g, err := generator.New("customers", "loads customers", []node.Node{e, ld}, nil, 0, generator.ExtraDependencies{})
	require.NoError(t, err)
	return g
}

func TestModel_RunSucceedsAndRecordsCompletion(t *testing.T) {
	m := New()
	m.AddGenerator(customersGenerator(t))

	mainConn := &fakeConn{}
	metaConn := &fakeConn{}

	// Nuke: true stands in for a fresh meta schema; EnsureSchema otherwise
	// requires the "run" table to already exist (§4.6).
	summary, exit, err := m.Run(context.Background(), mainConn, metaConn, RunOptions{Nuke: true})
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, exit)
	assert.Equal(t, []string{"customers"}, summary.Completed)
	assert.Empty(t, summary.Failed)
}

func TestModel_Run_UnknownIncludeNameIsConfigError(t *testing.T) {
	m := New()
	m.AddGenerator(customersGenerator(t))

	_, exit, err := m.Run(context.Background(), &fakeConn{}, &fakeConn{}, RunOptions{Nuke: true, Include: []string{"nonexistent"}})
	require.Error(t, err)
	assert.Equal(t, ExitConfig, exit)
}

func TestModel_Run_MissingMetaSchemaWithoutNukeIsConfigError(t *testing.T) {
	m := New()
	m.AddGenerator(customersGenerator(t))

	_, exit, err := m.Run(context.Background(), &fakeConn{}, &fakeConn{}, RunOptions{})
	require.ErrorIs(t, err, meta.ErrSchemaMissing)
	assert.Equal(t, ExitConfig, exit)
}
