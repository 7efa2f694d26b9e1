package dependency

import (
	"github.com/dbgen-run/dbgen/internal/entity"
	"github.com/dbgen-run/dbgen/internal/generator"
	"github.com/dbgen-run/dbgen/internal/node"
)

// Rollup computes a generator's Dependency: the union of every Load node's
// contribution (its entity's table plus the columns it writes) and the
// generator's hand-declared AdditionalDependencies (§4.4 "rolled up to a
// single Dependency via union of its nodes' contributions plus any
// user-declared additional_dependencies").
//
// Extract nodes contribute nothing automatically: dbgen does not parse the
// SQL behind a BaseQuery to infer tables_needed, matching §1's non-goal of
// acting as a query planner. Callers that need an Extract's read set
// populated must declare it via AdditionalDependencies.
func Rollup(g *generator.Generator) Dependency {
	d := New()
	for _, n := range g.Graph.Nodes() {
		ld, ok := n.(*node.Load)
		if !ok {
			continue
		}
		d.addTableYielded(qualifiedTable(ld.Entity))
		for col := range ld.Entity.Attributes {
			d.addColumnYielded(qualifiedColumn(ld.Entity, col))
		}
		d.addColumnYielded(qualifiedColumn(ld.Entity, ld.Entity.PrimaryKeyName))
	}

	for _, t := range g.AdditionalDependencies.TablesYielded {
		d.addTableYielded(t)
	}
	for _, t := range g.AdditionalDependencies.TablesNeeded {
		d.addTableNeeded(t)
	}
	for _, c := range g.AdditionalDependencies.ColumnsYielded {
		d.addColumnYielded(c)
	}
	for _, c := range g.AdditionalDependencies.ColumnsNeeded {
		d.addColumnNeeded(c)
	}
	return d
}

func qualifiedTable(le *entity.LoadEntity) string {
	if le.Schema == "" {
		return le.Table
	}
	return le.Schema + "." + le.Table
}

func qualifiedColumn(le *entity.LoadEntity, col string) string {
	return qualifiedTable(le) + "." + col
}
