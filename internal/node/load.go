package node

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dbgen-run/dbgen/internal/entity"
	"github.com/dbgen-run/dbgen/internal/hashid"
)

// BatchRow is one row accumulated by a Load node, ready to be flushed by the
// runtime's COPY-then-upsert writer (§5 Batch writes).
type BatchRow struct {
	PK      string
	Columns Record
}

// Load is the only node variant with a database side effect: it derives a
// deterministic primary key from its identifying inputs and buffers the row
// for a later batch flush (§4.2 Load algorithm).
type Load struct {
	label      string
	hash       string
	Entity     *entity.LoadEntity
	inputs     map[string]Input
	pkOverride Input // optional; if set, skips identifying-input derivation

	mu    sync.Mutex
	batch []BatchRow
}

// NewLoad builds a Load node bound to ent. inputs maps attribute/foreign-key
// names (as declared on the entity) to the node inputs that supply them;
// pkOverride, if non-nil, supplies an explicit primary key and makes every
// identifying input optional (§4.2 step 4 exception).
func NewLoad(label string, ent *entity.LoadEntity, inputs map[string]Input, pkOverride Input) (*Load, error) {
	hash, err := hashid.NodeHash(KindLoad.String(), map[string]interface{}{
		"label":  label,
		"entity": ent.Name,
	})
	if err != nil {
		return nil, err
	}
	return &Load{label: label, hash: hash, Entity: ent, inputs: inputs, pkOverride: pkOverride}, nil
}

func (l *Load) Hash() string             { return l.hash }
func (l *Load) Kind() Kind               { return KindLoad }
func (l *Load) Inputs() map[string]Input { return l.inputs }
func (l *Load) Outputs() []string        { return []string{"out"} }

// Batch returns the rows accumulated so far and is safe to call mid-run; the
// runtime owns draining it on flush.
func (l *Load) Batch() []BatchRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]BatchRow(nil), l.batch...)
}

// ResetBatch drops accumulated rows after a successful flush.
func (l *Load) ResetBatch() {
	l.mu.Lock()
	l.batch = nil
	l.mu.Unlock()
}

// Invoke resolves inputs, coerces them against the entity's declared column
// types, derives the row's primary key, and appends it to the batch buffer.
func (l *Load) Invoke(ns Namespace) (Record, error) {
	resolved, err := resolveInputs(l.inputs, ns)
	if err != nil {
		return nil, err
	}

	columns := make(Record, len(resolved))
	for name, v := range resolved {
		t, ok := l.Entity.Attributes[name]
		if !ok {
			columns[name] = v
			continue
		}
		coerced, err := coerce(v, t)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", l.label, name, err)
		}
		columns[name] = coerced
	}

	pk, err := l.derivePK(resolved, columns, ns)
	if err != nil {
		return nil, err
	}
	columns[l.Entity.PrimaryKeyName] = pk

	l.mu.Lock()
	l.batch = append(l.batch, BatchRow{PK: pk, Columns: columns})
	l.mu.Unlock()

	return Record{"out": pk}, nil
}

func (l *Load) derivePK(resolved, columns Record, ns Namespace) (string, error) {
	if l.pkOverride != nil {
		v, err := l.pkOverride.resolve(ns)
		if err != nil {
			return "", err
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s: primary key override is not a string", ErrTypeMismatch, l.label)
		}
		if _, err := uuid.Parse(s); err != nil {
			return "", fmt.Errorf("%w: %s: primary key override %q is not a uuid", ErrTypeMismatch, l.label, s)
		}
		return s, nil
	}

	identifying := make(map[string]interface{}, len(l.Entity.IdentifyingAttributes)+len(l.Entity.IdentifyingForeignKeys))
	var missing []string

	names := make([]string, 0, len(l.Entity.IdentifyingAttributes))
	for name := range l.Entity.IdentifyingAttributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, ok := columns[name]
		if !ok || v == nil {
			missing = append(missing, name)
			continue
		}
		identifying[name] = v
	}

	fkNames := append([]string(nil), l.Entity.IdentifyingForeignKeys...)
	sort.Strings(fkNames)
	for _, name := range fkNames {
		v, ok := resolved[name]
		if !ok || v == nil {
			missing = append(missing, name)
			continue
		}
		identifying[name] = v
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s: %v", ErrMissingIdentifier, l.label, missing)
	}

	id, err := hashid.RowID(l.Entity.Name, identifying)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
