// Package models is the customization point cmd/dbgen builds against: the
// entities and generators an embedder declares for their own schema.
// cmd/dbgen carries no business logic of its own (SPEC_FULL.md AMBIENT
// STACK, "CLI shim"), so Build is where that logic actually lives; this
// file ships a minimal customer-loading generator as the template to
// replace.
package models

import (
	"fmt"
	"strings"

	"github.com/dbgen-run/dbgen/internal/entity"
	"github.com/dbgen-run/dbgen/internal/generator"
	"github.com/dbgen-run/dbgen/internal/model"
	"github.com/dbgen-run/dbgen/internal/node"
)

// seedCustomers is a stand-in for a real extractor (a CSV reader, an API
// client, an upstream query); replace it with whatever internal/node.Extractor
// implementation actually sources the data.
var seedCustomers = []node.Record{
	{"email": "ada@example.com", "name": "Ada Lovelace"},
	{"email": "grace@example.com", "name": "Grace Hopper"},
}

// Build declares the entity registry and generator set and returns a ready
// Model. Replace the body with your own schema; the shape (declare
// entities, assemble Extract/Transform/Load nodes into generators, attach
// them to a Model) is what every dbgen deployment follows.
func Build() (*model.Model, error) {
	m := model.New()

	customer, err := m.Registry.DeclareEntity(
		"customer", "public", "customer",
		[]entity.FieldSpec{
			{Name: "id", Type: entity.ColumnUUID},
			{Name: "email", Type: entity.ColumnText},
			{Name: "name", Type: entity.ColumnText},
		},
		nil,
		[]string{"email"},
	)
	if err != nil {
		return nil, fmt.Errorf("models: declare customer: %w", err)
	}

	g, err := customerGenerator(m, customer.Name)
	if err != nil {
		return nil, fmt.Errorf("models: customer generator: %w", err)
	}
	m.AddGenerator(g)

	return m, nil
}

func customerGenerator(m *model.Model, entityName string) (*generator.Generator, error) {
	extract, err := node.NewExtract("extract_customers", &node.SliceExtractor{Records: seedCustomers})
	if err != nil {
		return nil, err
	}

	normalize, err := node.NewTransform("normalize_customer",
		map[string]node.Input{"record": node.Arg{SourceHash: extract.Hash(), Output: "record"}},
		[]string{"email", "name"},
		func(in node.Record) (node.Record, error) {
			rec, _ := in["record"].(node.Record)
			email, _ := rec["email"].(string)
			name, _ := rec["name"].(string)
			return node.Record{
				"email": strings.ToLower(strings.TrimSpace(email)),
				"name":  strings.TrimSpace(name),
			}, nil
		},
	)
	if err != nil {
		return nil, err
	}

	le, err := m.Registry.GetLoadEntity(entityName)
	if err != nil {
		return nil, err
	}

	load, err := node.NewLoad("load_customer", le, map[string]node.Input{
		"email": node.Arg{SourceHash: normalize.Hash(), Output: "email"},
		"name":  node.Arg{SourceHash: normalize.Hash(), Output: "name"},
	}, nil)
	if err != nil {
		return nil, err
	}

	return generator.New(
		"customers",
		"loads seed customer rows",
		[]node.Node{extract, normalize, load},
		[]generator.Tag{generator.TagParallel},
		0,
		generator.ExtraDependencies{},
	)
}
