// Package dependency implements the Dependency model (§4.4): the four
// table/column sets a generator reads and writes, the union merge algebra
// that rolls a generator's nodes up to one Dependency, and the
// cross-generator DAG built from those rollups.
//
// Grounded on the teacher's internal/deps package shape (a small set-algebra
// type plus a DAG builder consumed by a scheduler), generalized from beads'
// issue-dependency graph to dbgen's table/column footprint graph.
package dependency

import "sort"

// Dependency is a generator's data footprint: which tables/columns it
// reads (needed) and which it writes (yielded).
type Dependency struct {
	TablesYielded  map[string]bool
	TablesNeeded   map[string]bool
	ColumnsYielded map[string]bool
	ColumnsNeeded  map[string]bool
}

// New returns an empty Dependency with initialized sets.
func New() Dependency {
	return Dependency{
		TablesYielded:  map[string]bool{},
		TablesNeeded:   map[string]bool{},
		ColumnsYielded: map[string]bool{},
		ColumnsNeeded:  map[string]bool{},
	}
}

// Merge returns the union of d and other across all four sets (§4.4 "union
// of its nodes' contributions"). Neither operand is mutated.
func (d Dependency) Merge(other Dependency) Dependency {
	out := New()
	for _, pair := range []struct {
		dst map[string]bool
		srcs []map[string]bool
	}{
		{out.TablesYielded, []map[string]bool{d.TablesYielded, other.TablesYielded}},
		{out.TablesNeeded, []map[string]bool{d.TablesNeeded, other.TablesNeeded}},
		{out.ColumnsYielded, []map[string]bool{d.ColumnsYielded, other.ColumnsYielded}},
		{out.ColumnsNeeded, []map[string]bool{d.ColumnsNeeded, other.ColumnsNeeded}},
	} {
		for _, src := range pair.srcs {
			for k := range src {
				pair.dst[k] = true
			}
		}
	}
	return out
}

// addTableYielded, addColumnYielded etc. are small helpers used while
// rolling up a generator's nodes.
func (d Dependency) addTableYielded(name string)  { d.TablesYielded[name] = true }
func (d Dependency) addTableNeeded(name string)   { d.TablesNeeded[name] = true }
func (d Dependency) addColumnYielded(name string) { d.ColumnsYielded[name] = true }
func (d Dependency) addColumnNeeded(name string)  { d.ColumnsNeeded[name] = true }

// Intersects reports whether a's yielded sets overlap with b's needed sets
// in either dimension — the edge condition for the cross-generator DAG
// (§4.4 "edge A → B iff A.tables_yielded ∩ B.tables_needed ≠ ∅ or
// A.columns_yielded ∩ B.columns_needed ≠ ∅").
func Intersects(a, b Dependency) bool {
	return overlap(a.TablesYielded, b.TablesNeeded) || overlap(a.ColumnsYielded, b.ColumnsNeeded)
}

func overlap(a, b map[string]bool) bool {
	small, large := a, b
	if len(large) < len(small) {
		small, large = large, small
	}
	for k := range small {
		if large[k] {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
