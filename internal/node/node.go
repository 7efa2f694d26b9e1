// Package node implements ComputationalNode and its three variants —
// Extract, Transform, Load — with the uniform input/output contract §4.2
// describes. Nodes are identified by a content hash of their definition
// (internal/hashid.NodeHash), never by pointer identity, so the
// per-generator graph (internal/generator) can store edges as hashes and
// reject cycles statically (§9 Cyclic references).
package node

import "fmt"

// Value is any record field or node output value.
type Value = interface{}

// Record is a flat mapping from field name to value, the shape both
// extractor rows and node output maps take.
type Record = map[string]Value

// Namespace is the per-row evaluation context: node hash -> that node's
// output map, accumulated as the executor walks the per-generator graph in
// topological order (§4.5 step 3c-d).
type Namespace map[string]Record

// Input is either an Arg (a reference to another node's output) or a Const
// (a literal value baked into the node definition).
type Input interface {
	isInput()
	resolve(ns Namespace) (Value, error)
}

// Arg references another node's named output by that node's content hash.
type Arg struct {
	SourceHash string
	Output     string
}

func (Arg) isInput() {}

func (a Arg) resolve(ns Namespace) (Value, error) {
	out, ok := ns[a.SourceHash]
	if !ok {
		return nil, fmt.Errorf("%w: source node %s not yet evaluated", ErrMissingSource, a.SourceHash)
	}
	v, ok := out[a.Output]
	if !ok {
		return nil, fmt.Errorf("%w: source node %s has no output %q", ErrMissingSource, a.SourceHash, a.Output)
	}
	return v, nil
}

// Const is a literal value input, independent of any other node.
type Const struct {
	Value Value
}

func (Const) isInput() {}

func (c Const) resolve(Namespace) (Value, error) { return c.Value, nil }

// Kind distinguishes the three ComputationalNode variants.
type Kind int

const (
	KindExtract Kind = iota
	KindTransform
	KindLoad
)

func (k Kind) String() string {
	switch k {
	case KindExtract:
		return "extract"
	case KindTransform:
		return "transform"
	case KindLoad:
		return "load"
	default:
		return "unknown"
	}
}

// Node is the uniform contract every graph node satisfies.
type Node interface {
	Hash() string
	Kind() Kind
	Inputs() map[string]Input
	Outputs() []string
	Invoke(ns Namespace) (Record, error)
}

func resolveInputs(inputs map[string]Input, ns Namespace) (Record, error) {
	resolved := make(Record, len(inputs))
	for name, in := range inputs {
		v, err := in.resolve(ns)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		resolved[name] = v
	}
	return resolved, nil
}
