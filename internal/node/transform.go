package node

import (
	"fmt"

	"github.com/dbgen-run/dbgen/internal/hashid"
)

// TransformFunc is the pure mapping a Transform node wraps: named input
// values in, named output values out. It must not access the database
// (§4.2 Transform: "no side effects on database"); there is nothing in its
// signature that would let it.
type TransformFunc func(inputs Record) (Record, error)

// Transform is a pure node: no side effects, named inputs and outputs.
type Transform struct {
	label   string
	hash    string
	inputs  map[string]Input
	outputs []string
	fn      TransformFunc
}

// NewTransform builds a Transform node. outputs fixes the declared result
// key order (§6 Transform protocol); fn may return any subset of them and
// missing keys are simply absent from the output record.
func NewTransform(label string, inputs map[string]Input, outputs []string, fn TransformFunc) (*Transform, error) {
	hash, err := hashid.NodeHash(KindTransform.String(), map[string]interface{}{
		"label":   label,
		"outputs": outputs,
	})
	if err != nil {
		return nil, err
	}
	return &Transform{label: label, hash: hash, inputs: inputs, outputs: outputs, fn: fn}, nil
}

func (t *Transform) Hash() string             { return t.hash }
func (t *Transform) Kind() Kind               { return KindTransform }
func (t *Transform) Inputs() map[string]Input { return t.inputs }
func (t *Transform) Outputs() []string        { return t.outputs }

// Invoke resolves this node's inputs from ns and calls its function. Any
// error returned by fn is wrapped in ErrTransform unless it is already an
// *ExternalError, which the executor treats specially (§7 Row errors).
func (t *Transform) Invoke(ns Namespace) (Record, error) {
	resolved, err := resolveInputs(t.inputs, ns)
	if err != nil {
		return nil, err
	}
	out, err := t.fn(resolved)
	if err != nil {
		if IsExternal(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrTransform, t.label, err)
	}
	return out, nil
}
