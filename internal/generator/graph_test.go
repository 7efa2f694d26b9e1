package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbgen-run/dbgen/internal/hashid"
	"github.com/dbgen-run/dbgen/internal/node"
)

func mustExtract(t *testing.T, label string) *node.Extract {
	t.Helper()
	e, err := node.NewExtract(label, &node.SliceExtractor{})
	require.NoError(t, err)
	return e
}

func mustTransform(t *testing.T, label string, inputs map[string]node.Input, outputs []string) *node.Transform {
	t.Helper()
	tr, err := node.NewTransform(label, inputs, outputs, func(in node.Record) (node.Record, error) { return in, nil })
	require.NoError(t, err)
	return tr
}

func TestNewGraph_SimpleChainOrdersExtractFirst(t *testing.T) {
	e := mustExtract(t, "src")
	tr := mustTransform(t, "double", map[string]node.Input{"record": node.Arg{SourceHash: e.Hash(), Output: "record"}}, []string{"record"})

	g, err := NewGraph("g", []node.Node{e, tr})
	require.NoError(t, err)

	order, err := g.TopoOrder()
	require.NoError(t, err)
	require.Len(t, order, 2)
	assert.Equal(t, e.Hash(), order[0])
	assert.Equal(t, tr.Hash(), order[1])
}

func TestNewGraph_MultipleExtractsRejected(t *testing.T) {
	e1 := mustExtract(t, "a")
	e2 := mustExtract(t, "b")
	_, err := NewGraph("g", []node.Node{e1, e2})
	assert.ErrorIs(t, err, ErrMultipleExtracts)
}

func TestNewGraph_NoExtractRejected(t *testing.T) {
	tr := mustTransform(t, "solo", nil, []string{"x"})
	_, err := NewGraph("g", []node.Node{tr})
	assert.ErrorIs(t, err, ErrNoExtract)
}

func TestNewGraph_MissingNodeReferenceRejected(t *testing.T) {
	e := mustExtract(t, "src")
	tr := mustTransform(t, "bad", map[string]node.Input{"x": node.Arg{SourceHash: "nonexistent", Output: "record"}}, []string{"x"})
	_, err := NewGraph("g", []node.Node{e, tr})
	assert.ErrorIs(t, err, ErrMissingNode)
}

func TestNewGraph_CycleRejected(t *testing.T) {
	e := mustExtract(t, "src")

	// Transform hashes depend only on label and declared outputs, never on
	// inputs (§4.3 "node hash stable over definition not instance"), so
	// both hashes can be predicted before either node references the
	// other, letting a genuine A→B→A cycle be built directly.
	hashA, err := hashid.NodeHash(node.KindTransform.String(), map[string]interface{}{"label": "a", "outputs": []string{"a"}})
	require.NoError(t, err)
	hashB, err := hashid.NodeHash(node.KindTransform.String(), map[string]interface{}{"label": "b", "outputs": []string{"b"}})
	require.NoError(t, err)

	trA, err := node.NewTransform("a", map[string]node.Input{"b": node.Arg{SourceHash: hashB, Output: "b"}}, []string{"a"},
		func(in node.Record) (node.Record, error) { return in, nil })
	require.NoError(t, err)
	trB, err := node.NewTransform("b", map[string]node.Input{"a": node.Arg{SourceHash: hashA, Output: "a"}}, []string{"b"},
		func(in node.Record) (node.Record, error) { return in, nil })
	require.NoError(t, err)
	require.Equal(t, hashA, trA.Hash())
	require.Equal(t, hashB, trB.Hash())

	_, err = NewGraph("g", []node.Node{e, trA, trB})
	assert.ErrorIs(t, err, ErrCycle)
}

func TestNewGraph_TopoOrderIsCachedAndStable(t *testing.T) {
	e := mustExtract(t, "src")
	tr := mustTransform(t, "double", map[string]node.Input{"record": node.Arg{SourceHash: e.Hash(), Output: "record"}}, []string{"record"})
	g, err := NewGraph("g", []node.Node{e, tr})
	require.NoError(t, err)

	o1, err := g.TopoOrder()
	require.NoError(t, err)
	o2, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, o1, o2)
}
