package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idField() FieldSpec {
	return FieldSpec{Name: "id", Type: ColumnUUID}
}

func TestDeclareEntity_DuplicateTable(t *testing.T) {
	r := NewRegistry()
	_, err := r.DeclareEntity("person", "public", "person", []FieldSpec{idField(), {Name: "name", Type: ColumnText}}, nil, []string{"name"})
	require.NoError(t, err)

	_, err = r.DeclareEntity("person", "public", "person", []FieldSpec{idField()}, nil, nil)
	assert.ErrorIs(t, err, ErrDuplicateTable)
}

func TestDeclareEntity_UnknownIdentifier(t *testing.T) {
	r := NewRegistry()
	_, err := r.DeclareEntity("person", "public", "person", []FieldSpec{idField()}, nil, []string{"missing"})
	assert.ErrorIs(t, err, ErrUnknownIdentifier)
}

func TestDeclareEntity_IdentifyingInheritsByUnion(t *testing.T) {
	r := NewRegistry()
	_, err := r.DeclareEntity("named", "", "", []FieldSpec{{Name: "name", Type: ColumnText}}, nil, []string{"name"})
	require.NoError(t, err)

	person, err := r.DeclareEntity("person", "public", "person",
		[]FieldSpec{idField(), {Name: "name", Type: ColumnText}, {Name: "age", Type: ColumnInt}},
		nil, []string{"age"}, "named")
	require.NoError(t, err)

	assert.True(t, person.Identifying["name"])
	assert.True(t, person.Identifying["age"])
}

func TestDeclareEntity_SchemaLastWins(t *testing.T) {
	r := NewRegistry()
	_, err := r.DeclareEntity("base1", "schema_a", "", nil, nil, nil)
	require.NoError(t, err)
	_, err = r.DeclareEntity("base2", "schema_b", "", nil, nil, nil)
	require.NoError(t, err)

	child, err := r.DeclareEntity("child", "", "child", []FieldSpec{idField()}, nil, nil, "base1", "base2")
	require.NoError(t, err)

	assert.Equal(t, "schema_b", child.Schema)
}

func TestForeignKey_UnknownTarget(t *testing.T) {
	r := NewRegistry()
	_, err := r.ForeignKey("parent_id", "nonexistent")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestGetLoadEntity_Abstract(t *testing.T) {
	r := NewRegistry()
	_, err := r.DeclareEntity("mixin", "", "", nil, nil, nil)
	require.NoError(t, err)

	_, err = r.GetLoadEntity("mixin")
	assert.ErrorIs(t, err, ErrAbstractEntity)
}

func TestGetLoadEntity_NoPrimaryKey(t *testing.T) {
	r := NewRegistry()
	_, err := r.DeclareEntity("thing", "public", "thing", []FieldSpec{{Name: "name", Type: ColumnText}}, nil, nil)
	require.NoError(t, err)

	_, err = r.GetLoadEntity("thing")
	assert.ErrorIs(t, err, ErrNoPrimaryKey)
}

func TestGetLoadEntity_Flattens(t *testing.T) {
	r := NewRegistry()
	_, err := r.DeclareEntity("parent", "public", "parent", []FieldSpec{idField(), {Name: "name", Type: ColumnText}}, nil, []string{"name"})
	require.NoError(t, err)

	parentFK, err := r.ForeignKey("parent_id", "parent")
	require.NoError(t, err)
	parentFK.Identifying = true

	_, err = r.DeclareEntity("child", "public", "child",
		[]FieldSpec{idField(), {Name: "name", Type: ColumnText}},
		[]ForeignKeyRef{parentFK}, []string{"name", "parent_id"})
	require.NoError(t, err)

	le, err := r.GetLoadEntity("child")
	require.NoError(t, err)

	assert.Equal(t, "child", le.Name)
	assert.Equal(t, "id", le.PrimaryKeyName)
	assert.Equal(t, ColumnText, le.IdentifyingAttributes["name"])
	assert.Equal(t, []string{"parent_id"}, le.IdentifyingForeignKeys)
}

func TestClearRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.DeclareEntity("x", "public", "x", []FieldSpec{idField()}, nil, nil)
	require.NoError(t, err)

	r.ClearRegistry()

	_, ok := r.Lookup("x")
	assert.False(t, ok)

	_, err = r.DeclareEntity("x", "public", "x", []FieldSpec{idField()}, nil, nil)
	require.NoError(t, err)
	assert.False(t, errors.Is(err, ErrDuplicateTable))
}
