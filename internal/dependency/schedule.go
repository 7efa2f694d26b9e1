package dependency

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dbgen-run/dbgen/internal/generator"
)

// ErrDependencyCycle is returned when the cross-generator DAG is not
// acyclic (§4.4, §7 Dependency errors).
var ErrDependencyCycle = errors.New("dbgen/dependency: cycle among generators")

// ErrUnknownGenerator is returned when include/exclude/start/until names a
// generator that was not registered (§7 Dependency errors).
var ErrUnknownGenerator = errors.New("dbgen/dependency: unknown generator name")

// Plan is the run-ready ordering of generators: the generators inside the
// start/until slice, in topological order, each marked whether it will
// actually execute.
type Plan struct {
	Generators []*generator.Generator
	Skipped    map[string]bool // generator name -> skipped
	// Dependents maps a generator name to every generator whose
	// Dependency edge points away from it (A -> B means B depends on A,
	// i.e. B is in Dependents[A]), for propagating failure downstream.
	Dependents map[string][]string
}

// Filter selects which generators in the topological order actually run.
// Excluded generators still contribute their dependency edges so topology
// is preserved, but are marked skipped (§4.4).
type Filter struct {
	Include []string
	Exclude []string
	Start   string
	Until   string
}

// Build assembles the cross-generator DAG from each generator's rollup,
// topologically sorts it (lexicographic tie-break by name, §4.4), and
// applies f to produce the execution plan.
func Build(gens []*generator.Generator, f Filter) (*Plan, error) {
	byName := make(map[string]*generator.Generator, len(gens))
	deps := make(map[string]Dependency, len(gens))
	for _, g := range gens {
		byName[g.Name] = g
		deps[g.Name] = Rollup(g)
	}

	for _, names := range [][]string{f.Include, f.Exclude, {f.Start}, {f.Until}} {
		for _, n := range names {
			if n == "" {
				continue
			}
			if _, ok := byName[n]; !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, n)
			}
		}
	}

	order, dependents, err := topoSort(gens, deps)
	if err != nil {
		return nil, err
	}

	skipped := computeSkipped(order, f)

	startIdx, untilIdx := 0, len(order)-1
	if f.Start != "" {
		startIdx = indexOf(order, f.Start)
	}
	if f.Until != "" {
		untilIdx = indexOf(order, f.Until)
	}

	plan := &Plan{Skipped: skipped, Dependents: dependents}
	for i, name := range order {
		if i < startIdx || i > untilIdx {
			continue
		}
		plan.Generators = append(plan.Generators, byName[name])
	}
	return plan, nil
}

func computeSkipped(order []string, f Filter) map[string]bool {
	include := toSet(f.Include)
	exclude := toSet(f.Exclude)
	skipped := make(map[string]bool, len(order))
	for _, name := range order {
		if len(include) > 0 && !include[name] {
			skipped[name] = true
			continue
		}
		if exclude[name] {
			skipped[name] = true
		}
	}
	return skipped
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return 0
}

// topoSort performs Kahn's algorithm over the generator DAG with a
// lexicographic (by name) tie-break, matching the stable-order requirement
// used for the per-generator node graph (internal/generator).
func topoSort(gens []*generator.Generator, deps map[string]Dependency) ([]string, map[string][]string, error) {
	indegree := make(map[string]int, len(gens))
	dependents := make(map[string][]string, len(gens))
	for _, g := range gens {
		indegree[g.Name] = 0
	}
	for _, a := range gens {
		for _, b := range gens {
			if a.Name == b.Name {
				continue
			}
			if Intersects(deps[a.Name], deps[b.Name]) {
				indegree[b.Name]++
				dependents[a.Name] = append(dependents[a.Name], b.Name)
			}
		}
	}

	var frontier []string
	for name, deg := range indegree {
		if deg == 0 {
			frontier = append(frontier, name)
		}
	}
	sort.Strings(frontier)

	order := make([]string, 0, len(gens))
	for len(frontier) > 0 {
		sort.Strings(frontier)
		name := frontier[0]
		frontier = frontier[1:]
		order = append(order, name)

		next := append([]string(nil), dependents[name]...)
		sort.Strings(next)
		for _, d := range next {
			indegree[d]--
			if indegree[d] == 0 {
				frontier = append(frontier, d)
			}
		}
	}

	if len(order) != len(gens) {
		return nil, nil, ErrDependencyCycle
	}
	return order, dependents, nil
}
