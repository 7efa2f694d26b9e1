package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArg_ResolvesFromNamespace(t *testing.T) {
	ns := Namespace{"h1": Record{"x": 7}}
	v, err := (Arg{SourceHash: "h1", Output: "x"}).resolve(ns)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestArg_MissingSourceNode(t *testing.T) {
	ns := Namespace{}
	_, err := (Arg{SourceHash: "missing", Output: "x"}).resolve(ns)
	assert.ErrorIs(t, err, ErrMissingSource)
}

func TestArg_MissingOutput(t *testing.T) {
	ns := Namespace{"h1": Record{}}
	_, err := (Arg{SourceHash: "h1", Output: "x"}).resolve(ns)
	assert.ErrorIs(t, err, ErrMissingSource)
}

func TestConst_ResolvesLiteral(t *testing.T) {
	v, err := (Const{Value: "hi"}).resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
}

func TestSliceExtractor_IteratesAllRecords(t *testing.T) {
	src := &SliceExtractor{Records: []Record{{"a": 1}, {"a": 2}}}
	ctx := context.Background()
	it, err := src.Extract(ctx, nil)
	require.NoError(t, err)

	var got []Record
	for {
		rec, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, rec)
	}
	assert.Equal(t, []Record{{"a": 1}, {"a": 2}}, got)

	n, known := src.Length(ctx, nil)
	assert.True(t, known)
	assert.Equal(t, 2, n)
}

func TestSliceExtractor_EmptyIsNotAnError(t *testing.T) {
	src := &SliceExtractor{}
	it, err := src.Extract(context.Background(), nil)
	require.NoError(t, err)
	_, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewExtract_SameLabelSameHash(t *testing.T) {
	e1, err := NewExtract("customers", &SliceExtractor{})
	require.NoError(t, err)
	e2, err := NewExtract("customers", &SliceExtractor{})
	require.NoError(t, err)
	assert.Equal(t, e1.Hash(), e2.Hash())
}

func TestNewBaseQuerySelect_RendersQualifiedColumnList(t *testing.T) {
	q := NewBaseQuerySelect("orders o JOIN customers c ON c.id = o.customer_id",
		[]PathAttr{NewPathAttr("o.id"), NewPathAttr("c.email")}, "")
	assert.Equal(t, `SELECT "o"."id", "c"."email" FROM orders o JOIN customers c ON c.id = o.customer_id`, q.SQL)
}

func TestNewBaseQuerySelect_AppendsWhereClause(t *testing.T) {
	q := NewBaseQuerySelect("orders", []PathAttr{NewPathAttr("id")}, "status = 'open'")
	assert.Equal(t, `SELECT "id" FROM orders WHERE status = 'open'`, q.SQL)
}

func TestTransform_InvokeAppliesFunction(t *testing.T) {
	ns := Namespace{"src": Record{"n": 3}}
	tr, err := NewTransform("double", map[string]Input{"n": Arg{SourceHash: "src", Output: "n"}}, []string{"doubled"},
		func(in Record) (Record, error) {
			return Record{"doubled": in["n"].(int) * 2}, nil
		})
	require.NoError(t, err)

	out, err := tr.Invoke(ns)
	require.NoError(t, err)
	assert.Equal(t, 6, out["doubled"])
}

func TestTransform_NonExternalErrorIsWrapped(t *testing.T) {
	tr, err := NewTransform("boom", nil, nil, func(Record) (Record, error) {
		return nil, assertErr
	})
	require.NoError(t, err)

	_, err = tr.Invoke(Namespace{})
	assert.ErrorIs(t, err, ErrTransform)
}

func TestTransform_ExternalErrorPassesThroughUnwrapped(t *testing.T) {
	tr, err := NewTransform("boom", nil, nil, func(Record) (Record, error) {
		return nil, NewExternalError(assertErr)
	})
	require.NoError(t, err)

	_, err = tr.Invoke(Namespace{})
	assert.True(t, IsExternal(err))
	assert.NotErrorIs(t, err, ErrTransform)
}

var assertErr = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
