package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbgen-run/dbgen/internal/generator"
	"github.com/dbgen-run/dbgen/internal/node"
)

func mustGenerator(t *testing.T, name string, extra generator.ExtraDependencies) *generator.Generator {
	t.Helper()
	e, err := node.NewExtract(name+"_extract", &node.SliceExtractor{})
	require.NoError(t, err)
	g, err := generator.New(name, "", []node.Node{e}, nil, 0, extra)
	require.NoError(t, err)
	return g
}

func indexOfGen(gens []*generator.Generator, name string) int {
	for i, g := range gens {
		if g.Name == name {
			return i
		}
	}
	return -1
}

func TestBuild_OrdersByTableDependency(t *testing.T) {
	a := mustGenerator(t, "gen_a", generator.ExtraDependencies{TablesYielded: []string{"orders"}})
	b := mustGenerator(t, "gen_b", generator.ExtraDependencies{TablesNeeded: []string{"orders"}})
	c := mustGenerator(t, "gen_c", generator.ExtraDependencies{})

	plan, err := Build([]*generator.Generator{b, c, a}, Filter{})
	require.NoError(t, err)
	require.Len(t, plan.Generators, 3)

	assert.Less(t, indexOfGen(plan.Generators, "gen_a"), indexOfGen(plan.Generators, "gen_b"))
	assert.Empty(t, plan.Skipped)
}

func TestBuild_CycleRejected(t *testing.T) {
	a := mustGenerator(t, "gen_a", generator.ExtraDependencies{TablesYielded: []string{"x"}, TablesNeeded: []string{"y"}})
	b := mustGenerator(t, "gen_b", generator.ExtraDependencies{TablesYielded: []string{"y"}, TablesNeeded: []string{"x"}})

	_, err := Build([]*generator.Generator{a, b}, Filter{})
	assert.ErrorIs(t, err, ErrDependencyCycle)
}

func TestBuild_ExcludeMarksSkippedButPreservesEdges(t *testing.T) {
	a := mustGenerator(t, "gen_a", generator.ExtraDependencies{TablesYielded: []string{"orders"}})
	b := mustGenerator(t, "gen_b", generator.ExtraDependencies{TablesNeeded: []string{"orders"}})

	plan, err := Build([]*generator.Generator{a, b}, Filter{Exclude: []string{"gen_a"}})
	require.NoError(t, err)
	assert.True(t, plan.Skipped["gen_a"])
	assert.False(t, plan.Skipped["gen_b"])
	// both still appear in the executed order; skip is a status, not a removal
	assert.Len(t, plan.Generators, 2)
}

func TestBuild_UnknownFilterNameRejected(t *testing.T) {
	a := mustGenerator(t, "gen_a", generator.ExtraDependencies{})
	_, err := Build([]*generator.Generator{a}, Filter{Include: []string{"nonexistent"}})
	assert.ErrorIs(t, err, ErrUnknownGenerator)
}

func TestBuild_StartUntilBoundsSlice(t *testing.T) {
	a := mustGenerator(t, "gen_a", generator.ExtraDependencies{})
	b := mustGenerator(t, "gen_b", generator.ExtraDependencies{})
	c := mustGenerator(t, "gen_c", generator.ExtraDependencies{})

	plan, err := Build([]*generator.Generator{a, b, c}, Filter{Start: "gen_b", Until: "gen_b"})
	require.NoError(t, err)
	require.Len(t, plan.Generators, 1)
	assert.Equal(t, "gen_b", plan.Generators[0].Name)
}
