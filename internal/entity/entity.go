// Package entity implements the Entity registry (§4.1): declaration of
// tables, identifying-set inheritance, and deterministic derivation of the
// flattened LoadEntity view the runtime actually works with.
//
// Grounded on the teacher's storage-layer sentinel-error convention
// (wrap-with-operation-context over errors.New) and, for the column-type
// enumeration, on original_source/src/dbgen/core/expr/sqltypes.py.
package entity

import (
	"errors"
	"fmt"
)

// ColumnType is the declared SQL scalar type of a column. Load coerces and
// validates every input against its entity's declared column type (§4.2
// step 1) before computing the row's primary key.
type ColumnType int

const (
	ColumnUnknown ColumnType = iota
	ColumnText
	ColumnInt
	ColumnFloat
	ColumnBool
	ColumnTimestamp
	ColumnUUID
	ColumnJSON
)

func (c ColumnType) String() string {
	switch c {
	case ColumnText:
		return "text"
	case ColumnInt:
		return "int"
	case ColumnFloat:
		return "float"
	case ColumnBool:
		return "bool"
	case ColumnTimestamp:
		return "timestamp"
	case ColumnUUID:
		return "uuid"
	case ColumnJSON:
		return "json"
	default:
		return "unknown"
	}
}

// FieldSpec describes a single column: its semantic type, nullability, and
// an optional default value. Default is kept on the declaration only; it is
// not carried into LoadEntity, and Load does not fill in omitted attributes
// from it.
type FieldSpec struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Default  interface{}
}

// ForeignKeyRef describes one foreign-key relation from an entity to a
// target entity's primary key column.
type ForeignKeyRef struct {
	LocalColumn string
	Target      string // target entity name
	Identifying bool
}

// Entity is a declared logical table (or, if Table is empty, an abstract
// mixin used only as a base for identifying-set inheritance).
type Entity struct {
	Name    string
	Schema  string
	Table   string // empty means abstract; never registered as a physical table
	Fields  []FieldSpec
	FKs     []ForeignKeyRef
	// Identifying names the subset of Fields/FKs (by name) whose values
	// determine row identity (§3 Entity, identifying set).
	Identifying map[string]bool
	Bases       []string
}

func (e *Entity) fieldNames() map[string]bool {
	names := make(map[string]bool, len(e.Fields)+len(e.FKs))
	for _, f := range e.Fields {
		names[f.Name] = true
	}
	for _, fk := range e.FKs {
		names[fk.LocalColumn] = true
	}
	return names
}

func (e *Entity) field(name string) (FieldSpec, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Sentinel declaration errors (§7 Declaration errors).
var (
	ErrDuplicateTable     = errors.New("dbgen/entity: duplicate table")
	ErrUnknownIdentifier  = errors.New("dbgen/entity: unknown identifier")
	ErrUnknownEntity      = errors.New("dbgen/entity: unknown entity")
	ErrAbstractEntity     = errors.New("dbgen/entity: entity is abstract, has no load entity")
	ErrNoPrimaryKey       = errors.New("dbgen/entity: entity has no primary key column")
	ErrMultiplePrimaryKey = errors.New("dbgen/entity: entity has more than one primary key column")
)

// key identifies an entity by (schema, name); declaring two entities with
// the same key is a DuplicateTable error.
type key struct {
	schema string
	name   string
}

// Registry is the process-wide, explicitly clearable table of declared
// entities (§3 Lifecycles: "one registry per process"). All mutation is
// expected to happen during model declaration, before any generator runs;
// the runtime treats it as immutable thereafter (§5 Shared resources).
type Registry struct {
	entities map[key]*Entity
	byName   map[string]*Entity
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[key]*Entity),
		byName:   make(map[string]*Entity),
	}
}

// ClearRegistry drops all entities. Exposed for tests per §4.1.
func (r *Registry) ClearRegistry() {
	r.entities = make(map[key]*Entity)
	r.byName = make(map[string]*Entity)
}

// DeclareEntity registers an entity, inheriting identifying set and schema
// from its bases by union (identifying) and last-wins (schema).
func (r *Registry) DeclareEntity(name, schema, table string, fields []FieldSpec, fks []ForeignKeyRef, identifying []string, bases ...string) (*Entity, error) {
	k := key{schema: schema, name: name}
	if _, ok := r.entities[k]; ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateTable, schema, name)
	}

	e := &Entity{
		Name:        name,
		Schema:      schema,
		Table:       table,
		Fields:      append([]FieldSpec(nil), fields...),
		FKs:         append([]ForeignKeyRef(nil), fks...),
		Identifying: make(map[string]bool),
		Bases:       append([]string(nil), bases...),
	}

	for _, baseName := range bases {
		base, ok := r.byName[baseName]
		if !ok {
			return nil, fmt.Errorf("%w: base entity %q not declared", ErrUnknownEntity, baseName)
		}
		for id := range base.Identifying {
			e.Identifying[id] = true
		}
		if base.Schema != "" {
			e.Schema = base.Schema
		}
	}
	if schema != "" {
		e.Schema = schema
	}

	names := e.fieldNames()
	for _, id := range identifying {
		if !names[id] {
			return nil, fmt.Errorf("%w: %q is not a field or foreign key of %s", ErrUnknownIdentifier, id, name)
		}
		e.Identifying[id] = true
	}
	for id := range e.Identifying {
		if !names[id] {
			return nil, fmt.Errorf("%w: inherited identifying name %q is not a field or foreign key of %s", ErrUnknownIdentifier, id, name)
		}
	}

	r.entities[k] = e
	r.byName[name] = e
	return e, nil
}

// ForeignKey returns a ForeignKeyRef referencing targetEntity's primary key
// column, for use in the fks argument of a subsequent DeclareEntity call.
func (r *Registry) ForeignKey(localColumn, targetEntity string) (ForeignKeyRef, error) {
	if _, ok := r.byName[targetEntity]; !ok {
		return ForeignKeyRef{}, fmt.Errorf("%w: %q", ErrUnknownEntity, targetEntity)
	}
	return ForeignKeyRef{LocalColumn: localColumn, Target: targetEntity}, nil
}

// Lookup returns the declared entity by name.
func (r *Registry) Lookup(name string) (*Entity, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// LoadEntity is the flattened, runtime-only view of an Entity (§3
// LoadEntity): only what is needed to insert/upsert a row.
type LoadEntity struct {
	Name                   string
	Schema                 string
	Table                  string
	PrimaryKeyName         string
	IdentifyingAttributes  map[string]ColumnType
	IdentifyingForeignKeys []string
	// Attributes covers every declared field by name, identifying or not,
	// so Load can coerce any column it is given a value for (§4.2 step 1).
	Attributes map[string]ColumnType
	// ForeignKeys covers every declared foreign key by local column name,
	// identifying or not.
	ForeignKeys []string
}

// GetLoadEntity produces the flattened LoadEntity view of a declared
// entity. Fails if the entity is abstract or if it does not have exactly
// one primary-key column.
func (r *Registry) GetLoadEntity(name string) (*LoadEntity, error) {
	e, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	if e.Table == "" {
		return nil, fmt.Errorf("%w: %q", ErrAbstractEntity, name)
	}

	var pk string
	pkCount := 0
	for _, f := range e.Fields {
		if f.Type == ColumnUUID && f.Name == "id" {
			pk = f.Name
			pkCount++
		}
	}
	if pkCount == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoPrimaryKey, name)
	}
	if pkCount > 1 {
		return nil, fmt.Errorf("%w: %q", ErrMultiplePrimaryKey, name)
	}

	le := &LoadEntity{
		Name:                  e.Name,
		Schema:                e.Schema,
		Table:                 e.Table,
		PrimaryKeyName:        pk,
		IdentifyingAttributes: make(map[string]ColumnType),
		Attributes:            make(map[string]ColumnType),
	}
	for _, f := range e.Fields {
		le.Attributes[f.Name] = f.Type
	}
	for _, fk := range e.FKs {
		le.ForeignKeys = append(le.ForeignKeys, fk.LocalColumn)
	}
	for idName := range e.Identifying {
		if f, ok := e.field(idName); ok {
			le.IdentifyingAttributes[idName] = f.Type
			continue
		}
		for _, fk := range e.FKs {
			if fk.LocalColumn == idName {
				le.IdentifyingForeignKeys = append(le.IdentifyingForeignKeys, idName)
			}
		}
	}
	return le, nil
}
