package generator

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/dbgen-run/dbgen/internal/hashid"
	"github.com/dbgen-run/dbgen/internal/node"
)

// Tag marks a generator with an execution-policy hint the runtime consults
// (§4.5 Parallelism policy, io tag).
type Tag string

const (
	// TagParallel lets row processing run across a worker pool.
	TagParallel Tag = "parallel"
	// TagIO forces retry=true and single-worker execution, since the
	// generator is assumed to touch external mutable state that
	// invalidates hash-based caching.
	TagIO Tag = "io"
	// TagStream skips the temp-table/COPY batch path: at flush time each
	// buffered row is written with its own INSERT ... ON CONFLICT
	// statement. Records are extracted the same way as for any other
	// generator; no server-side cursor is opened.
	TagStream Tag = "stream"
)

var nameRE = regexp.MustCompile(`^[\w.-]+$`)

// ErrInvalidName reports a generator name that does not match
// the declaration-surface naming rule (§6 Model declaration surface).
var ErrInvalidName = errors.New("dbgen/generator: invalid name")

// Generator is one extract plus its transforms and loads. BatchSize, when
// non-zero, is the number of records the executor processes between
// flushes of the Load batches; each record still runs through the graph as
// soon as it is extracted (§4.5 step 2).
type Generator struct {
	Name        string
	Description string
	Hash        string
	Tags        map[Tag]bool
	BatchSize   int
	// AdditionalDependencies are tables/columns declared by hand rather
	// than inferred from the graph's Load nodes (§4.4): names, not a full
	// Dependency, to avoid this package depending on internal/dependency.
	AdditionalDependencies ExtraDependencies

	Graph *Graph
}

// ExtraDependencies names tables/columns a generator reads or writes that
// cannot be inferred from its graph (e.g. a raw-SQL Extract touching a
// table the graph never names as a Load).
type ExtraDependencies struct {
	TablesYielded  []string
	TablesNeeded   []string
	ColumnsYielded []string
	ColumnsNeeded  []string
}

// New validates name and assembles a Generator's graph from nodes.
func New(name, description string, nodes []node.Node, tags []Tag, batchSize int, extra ExtraDependencies) (*Generator, error) {
	if !nameRE.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	hash, err := hashid.GeneratorHash(name, description)
	if err != nil {
		return nil, err
	}
	g, err := NewGraph(name, nodes)
	if err != nil {
		return nil, err
	}
	tagSet := make(map[Tag]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}
	return &Generator{
		Name:                   name,
		Description:            description,
		Hash:                   hash,
		Tags:                   tagSet,
		BatchSize:              batchSize,
		AdditionalDependencies: extra,
		Graph:                  g,
	}, nil
}

func (g *Generator) HasTag(t Tag) bool { return g.Tags[t] }
