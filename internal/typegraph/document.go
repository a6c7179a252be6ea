package typegraph

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var documentSchema string

// Document is the JSON form of a declared type graph, as uploaded by
// hosts alongside their ruleset.
type Document struct {
	Types []TypeDoc `json:"types"`
}

// TypeDoc declares one type: its qualified name, supertype edges, and
// members. Parameter type names may carry "[]" array suffixes and must
// reference a primitive or another declared type.
type TypeDoc struct {
	Name         string           `json:"name"`
	Extends      []string         `json:"extends,omitempty"`
	Methods      []MethodDoc      `json:"methods,omitempty"`
	Constructors []ConstructorDoc `json:"constructors,omitempty"`
	Fields       []FieldDoc       `json:"fields,omitempty"`
}

// MethodDoc declares one method; return types are not recorded because
// they never take part in matching.
type MethodDoc struct {
	Name   string   `json:"name"`
	Params []string `json:"params,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// ConstructorDoc declares one constructor.
type ConstructorDoc struct {
	Params []string `json:"params,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// FieldDoc declares one field; the field's type is not recorded.
type FieldDoc struct {
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

var (
	compileSchemaOnce sync.Once
	compiledSchema    *jsonschema.Schema
	compileSchemaErr  error
)

// ValidateDocument checks a raw type-graph document against the
// embedded JSON schema. Structural errors only; reference errors
// (unknown supertypes, unknown parameter types) surface from Load.
func ValidateDocument(raw []byte) error {
	compileSchemaOnce.Do(func() {
		var schemaObj any
		if err := json.Unmarshal([]byte(documentSchema), &schemaObj); err != nil {
			compileSchemaErr = fmt.Errorf("ValidateDocument: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("typegraph.schema.json", schemaObj); err != nil {
			compileSchemaErr = fmt.Errorf("ValidateDocument: %w", err)
			return
		}
		compiledSchema, compileSchemaErr = c.Compile("typegraph.schema.json")
	})
	if compileSchemaErr != nil {
		return compileSchemaErr
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("type graph is not valid JSON: %w", err)
	}
	if err := compiledSchema.Validate(instance); err != nil {
		return fmt.Errorf("type graph schema validation failed: %w", err)
	}
	return nil
}

// Load validates a raw document and builds the Graph from it. All type
// references must resolve within the document (plus primitives); a
// dangling reference fails the whole load.
func Load(raw []byte) (*Graph, error) {
	if err := ValidateDocument(raw); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return Build(doc)
}

// Build constructs a Graph from an already-decoded Document.
func Build(doc Document) (*Graph, error) {
	g := newGraph()

	for _, td := range doc.Types {
		if _, exists := g.types[td.Name]; exists {
			if isPrimitiveName(td.Name) {
				return nil, fmt.Errorf("type %s shadows a builtin primitive", td.Name)
			}
			return nil, fmt.Errorf("duplicate type declaration: %s", td.Name)
		}
		g.types[td.Name] = &typeDef{
			graph:      g,
			name:       td.Name,
			simpleName: simpleName(td.Name),
		}
	}

	for _, td := range doc.Types {
		t := g.types[td.Name]

		for _, super := range td.Extends {
			st, ok := g.types[super]
			if !ok {
				return nil, fmt.Errorf("type %s extends unknown type %s", td.Name, super)
			}
			t.supertypes = append(t.supertypes, st)
		}

		for _, md := range td.Methods {
			params, err := g.resolveParams(md.Params, td.Name)
			if err != nil {
				return nil, err
			}
			t.methods = append(t.methods, &methodDef{
				declaring: t,
				name:      md.Name,
				params:    params,
				tags:      tagSet(md.Tags),
			})
		}
		for _, cd := range td.Constructors {
			params, err := g.resolveParams(cd.Params, td.Name)
			if err != nil {
				return nil, err
			}
			t.constructors = append(t.constructors, &constructorDef{
				declaring: t,
				params:    params,
				tags:      tagSet(cd.Tags),
			})
		}
		for _, fd := range td.Fields {
			t.fields = append(t.fields, &fieldDef{
				declaring: t,
				name:      fd.Name,
				tags:      tagSet(fd.Tags),
			})
		}
	}

	return g, nil
}

// resolveParams maps declared parameter type names (with optional "[]"
// suffixes) to handles within the graph.
func (g *Graph) resolveParams(names []string, owner string) ([]*typeDef, error) {
	params := make([]*typeDef, 0, len(names))
	for _, name := range names {
		elemName := name
		rank := 0
		for strings.HasSuffix(elemName, "[]") {
			rank++
			elemName = elemName[:len(elemName)-2]
		}
		t, ok := g.types[elemName]
		if !ok {
			return nil, fmt.Errorf("type %s references unknown parameter type %s", owner, name)
		}
		var p = t
		for range rank {
			p = g.ArrayOf(p).(*typeDef)
		}
		params = append(params, p)
	}
	return params, nil
}
