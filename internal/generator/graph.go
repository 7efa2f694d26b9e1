// Package generator assembles a generator's nodes into a validated DAG and
// produces the stable evaluation order the runtime walks per row (§4.3
// Per-generator graph).
//
// Grounded on original_source/src/dbgen/utils/graphs.py, which builds the
// same lexicographic topological order via networkx; this package
// implements the equivalent Kahn's-algorithm-with-min-heap-frontier walk
// directly, since there is no networkx analogue in the pack.
package generator

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dbgen-run/dbgen/internal/node"
)

// Sentinel graph-validation errors (§4.3, §7 Declaration errors).
var (
	ErrMissingNode       = errors.New("dbgen/generator: missing node")
	ErrCycle             = errors.New("dbgen/generator: graph has a cycle")
	ErrMultipleExtracts  = errors.New("dbgen/generator: more than one extract node")
	ErrNoExtract         = errors.New("dbgen/generator: generator has no extract node")
)

// Graph is the validated, toposorted set of nodes backing one generator.
// It is built once at model-declaration time and treated as read-only by
// the runtime thereafter (§5 Shared resources).
type Graph struct {
	name    string
	nodes   map[string]node.Node // keyed by node hash
	order   []string             // cached topological order, hashes
	extract *node.Extract
}

// NewGraph validates and assembles nodes into a Graph. nodes may be given
// in any order; exactly one must be a *node.Extract.
func NewGraph(name string, nodes []node.Node) (*Graph, error) {
	g := &Graph{name: name, nodes: make(map[string]node.Node, len(nodes))}
	for _, n := range nodes {
		if err := g.addNode(n); err != nil {
			return nil, err
		}
	}
	if g.extract == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoExtract, name)
	}
	if err := g.validateEdges(); err != nil {
		return nil, err
	}
	if _, err := g.topoOrder(); err != nil {
		return nil, err
	}
	return g, nil
}

// addNode inserts a node into the set, invalidating any cached order
// (§4.3 "A cached graph is invalidated by any subsequent add_node").
func (g *Graph) addNode(n node.Node) error {
	if n.Kind() == node.KindExtract {
		if g.extract != nil {
			return fmt.Errorf("%w: %s", ErrMultipleExtracts, g.name)
		}
		g.extract = n.(*node.Extract)
	}
	g.nodes[n.Hash()] = n
	g.order = nil
	return nil
}

// validateEdges reports ErrMissingNode for any Arg whose source hash is not
// in the node set, with hint text distinguishing the three cases §4.3 names.
func (g *Graph) validateEdges() error {
	for _, n := range g.nodes {
		for inputName, in := range n.Inputs() {
			arg, ok := in.(node.Arg)
			if !ok {
				continue
			}
			if _, ok := g.nodes[arg.SourceHash]; ok {
				continue
			}
			return fmt.Errorf("%w: %s: input %q references unresolved node %s (%s)",
				ErrMissingNode, g.name, inputName, arg.SourceHash, missingNodeHint(inputName))
		}
	}
	return nil
}

func missingNodeHint(inputName string) string {
	switch {
	case strings.HasSuffix(inputName, "_id"):
		return "looks like a load output; check the referenced load is attached to this generator"
	case inputName == "record":
		return "missing extract; a generator must declare exactly one extract before it can be referenced"
	default:
		return "missing transform; check the referenced node's label and outputs"
	}
}

// Nodes returns every node keyed by hash.
func (g *Graph) Nodes() map[string]node.Node { return g.nodes }

// Extract returns the generator's single extract node.
func (g *Graph) Extract() *node.Extract { return g.extract }

// TopoOrder returns the lexicographic topological order of node hashes,
// Extract always first (§4.3). Cached after the first call or NewGraph.
func (g *Graph) TopoOrder() ([]string, error) {
	return g.topoOrder()
}

func (g *Graph) topoOrder() ([]string, error) {
	if g.order != nil {
		return g.order, nil
	}

	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for hash, n := range g.nodes {
		if _, ok := indegree[hash]; !ok {
			indegree[hash] = 0
		}
		for _, in := range n.Inputs() {
			arg, ok := in.(node.Arg)
			if !ok {
				continue
			}
			indegree[hash]++
			dependents[arg.SourceHash] = append(dependents[arg.SourceHash], hash)
		}
	}

	frontier := &hashHeap{}
	heap.Init(frontier)
	for hash, deg := range indegree {
		if deg == 0 {
			heap.Push(frontier, hash)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for frontier.Len() > 0 {
		h := heap.Pop(frontier).(string)
		order = append(order, h)
		deps := append([]string(nil), dependents[h]...)
		sort.Strings(deps)
		for _, d := range deps {
			indegree[d]--
			if indegree[d] == 0 {
				heap.Push(frontier, d)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("%w: %s", ErrCycle, g.name)
	}

	order = stableExtractFirst(order, g.extract.Hash())
	g.order = order
	return order, nil
}

// stableExtractFirst moves the extract node's hash to the front of order
// without disturbing the relative order of everything else; Extract has
// no inputs so Kahn's algorithm already tends to place it early, but this
// makes the guarantee explicit regardless of hash lexicography.
func stableExtractFirst(order []string, extractHash string) []string {
	out := make([]string, 0, len(order))
	out = append(out, extractHash)
	for _, h := range order {
		if h != extractHash {
			out = append(out, h)
		}
	}
	return out
}

// hashHeap is a min-heap of node hashes, giving Kahn's algorithm a
// lexicographically stable frontier order (§4.3 "lexicographic topological
// sort (stable across runs for the same hashes)").
type hashHeap []string

func (h hashHeap) Len() int            { return len(h) }
func (h hashHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h hashHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hashHeap) Push(x interface{}) { *h = append(*h, x.(string)) }
func (h *hashHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
