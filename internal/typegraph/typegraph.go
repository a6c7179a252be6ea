// Package typegraph provides a declared, in-memory implementation of
// the member.Type system: hosts describe their exposed types, members,
// supertype edges and capability tags in a JSON document, and the graph
// answers the subtype, lookup and tag-inheritance queries the policy
// engine needs. Graphs are immutable after Load and safe for
// concurrent reads.
package typegraph

import (
	"strings"
	"sync"

	"github.com/memberguard/memberguard/internal/member"
)

// PrimitiveNames are the builtin value types every graph knows about.
// They have no members and no supertypes.
var PrimitiveNames = []string{
	"boolean", "byte", "short", "int", "long", "float", "double", "char",
}

// Graph is a closed set of declared types. It implements
// member.Resolver.
type Graph struct {
	types  map[string]*typeDef
	arrays sync.Map // map[string]*typeDef, synthesized on demand
}

func isPrimitiveName(name string) bool {
	for _, p := range PrimitiveNames {
		if name == p {
			return true
		}
	}
	return false
}

func newGraph() *Graph {
	g := &Graph{types: make(map[string]*typeDef)}
	for _, name := range PrimitiveNames {
		g.types[name] = &typeDef{graph: g, name: name, simpleName: name}
	}
	return g
}

// ResolveType returns the handle for a declared or primitive type name.
func (g *Graph) ResolveType(name string) (member.Type, bool) {
	t, ok := g.types[name]
	if !ok {
		return nil, false
	}
	return t, true
}

// ArrayOf returns the array type with the given element type. The same
// element always yields the same handle.
func (g *Graph) ArrayOf(elem member.Type) member.Type {
	name := elem.Name() + "[]"
	if v, ok := g.arrays.Load(name); ok {
		return v.(*typeDef)
	}
	t := &typeDef{
		graph:      g,
		name:       name,
		simpleName: elem.SimpleName() + "[]",
		elem:       elem.(*typeDef),
	}
	actual, _ := g.arrays.LoadOrStore(name, t)
	return actual.(*typeDef)
}

// typeDef is one declared type. It implements member.Type.
type typeDef struct {
	graph        *Graph
	name         string
	simpleName   string
	supertypes   []*typeDef
	methods      []*methodDef
	constructors []*constructorDef
	fields       []*fieldDef
	elem         *typeDef // non-nil for array types
}

func (t *typeDef) Name() string       { return t.name }
func (t *typeDef) SimpleName() string { return t.simpleName }

// AssignableTo walks the declared supertype edges; a type is assignable
// to itself. Array types are only assignable to themselves.
func (t *typeDef) AssignableTo(upper member.Type) bool {
	target := upper.Name()
	visited := map[*typeDef]bool{}
	queue := []*typeDef{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if cur.name == target {
			return true
		}
		queue = append(queue, cur.supertypes...)
	}
	return false
}

// Method finds a visible method: declared on the type itself or
// inherited from any supertype.
func (t *typeDef) Method(name string, params []member.Type) (member.Method, bool) {
	var found *methodDef
	t.walk(func(cur *typeDef) bool {
		for _, m := range cur.methods {
			if m.name == name && paramsEqual(m.params, params) {
				found = m
				return true
			}
		}
		return false
	})
	if found == nil {
		return nil, false
	}
	return found, true
}

// Constructor finds a constructor declared on the type itself;
// constructors are never inherited.
func (t *typeDef) Constructor(params []member.Type) (member.Constructor, bool) {
	for _, c := range t.constructors {
		if paramsEqual(c.params, params) {
			return c, true
		}
	}
	return nil, false
}

// Field finds a visible field: declared on the type itself or inherited
// from any supertype.
func (t *typeDef) Field(name string) (member.Field, bool) {
	var found *fieldDef
	t.walk(func(cur *typeDef) bool {
		for _, f := range cur.fields {
			if f.name == name {
				found = f
				return true
			}
		}
		return false
	})
	if found == nil {
		return nil, false
	}
	return found, true
}

// walk visits the type and its supertypes breadth-first until visit
// returns true. Cycles in the declared edges are tolerated.
func (t *typeDef) walk(visit func(*typeDef) bool) {
	visited := map[*typeDef]bool{}
	queue := []*typeDef{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if visit(cur) {
			return
		}
		queue = append(queue, cur.supertypes...)
	}
}

func paramsEqual(a []*typeDef, b []member.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].name != b[i].Name() {
			return false
		}
	}
	return true
}

// methodDef implements member.Method.
type methodDef struct {
	declaring *typeDef
	name      string
	params    []*typeDef
	tags      map[string]bool
}

func (m *methodDef) DeclaringType() member.Type { return m.declaring }

func (m *methodDef) Signature() member.MethodSignature {
	return member.MethodSignature{Name: m.name, Params: asTypes(m.params)}
}

// HasTag checks the declaration itself and, when inherited is set, any
// same-signature declaration it overrides up the supertype graph.
func (m *methodDef) HasTag(tag string, inherited bool) bool {
	if m.tags[tag] {
		return true
	}
	if !inherited {
		return false
	}
	found := false
	m.declaring.walk(func(cur *typeDef) bool {
		for _, om := range cur.methods {
			if om.name == m.name && sameParams(om.params, m.params) && om.tags[tag] {
				found = true
				return true
			}
		}
		return false
	})
	return found
}

// constructorDef implements member.Constructor. Constructors are not
// inherited, so tag inheritance never applies to them.
type constructorDef struct {
	declaring *typeDef
	params    []*typeDef
	tags      map[string]bool
}

func (c *constructorDef) DeclaringType() member.Type { return c.declaring }

func (c *constructorDef) Signature() member.ConstructorSignature {
	return member.ConstructorSignature{Params: asTypes(c.params)}
}

func (c *constructorDef) HasTag(tag string, _ bool) bool {
	return c.tags[tag]
}

// fieldDef implements member.Field.
type fieldDef struct {
	declaring *typeDef
	name      string
	tags      map[string]bool
}

func (f *fieldDef) DeclaringType() member.Type { return f.declaring }

func (f *fieldDef) Signature() member.FieldSignature {
	return member.FieldSignature{Name: f.name}
}

// HasTag checks the declaration itself and, when inherited is set, any
// same-named field declaration up the supertype graph.
func (f *fieldDef) HasTag(tag string, inherited bool) bool {
	if f.tags[tag] {
		return true
	}
	if !inherited {
		return false
	}
	found := false
	f.declaring.walk(func(cur *typeDef) bool {
		for _, of := range cur.fields {
			if of.name == f.name && of.tags[tag] {
				found = true
				return true
			}
		}
		return false
	})
	return found
}

func sameParams(a, b []*typeDef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].name != b[i].name {
			return false
		}
	}
	return true
}

func asTypes(defs []*typeDef) []member.Type {
	types := make([]member.Type, len(defs))
	for i, d := range defs {
		types[i] = d
	}
	return types
}

func tagSet(tags []string) map[string]bool {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return set
}

func simpleName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i != -1 {
		return qualified[i+1:]
	}
	return qualified
}
