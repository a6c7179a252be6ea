package policy

import (
	"testing"

	"github.com/memberguard/memberguard/internal/member"
	"github.com/memberguard/memberguard/internal/selector"
	"github.com/memberguard/memberguard/internal/typegraph"
	"go.uber.org/zap"
)

// policyGraphDoc declares Base <- Derived plus an unrelated Other type.
const policyGraphDoc = `{
	"types": [
		{
			"name": "com.example.Base",
			"methods": [
				{"name": "open", "params": []},
				{"name": "close", "params": []},
				{"name": "tagged", "params": [], "tags": ["safe"]}
			],
			"constructors": [{"params": []}],
			"fields": [{"name": "state"}]
		},
		{
			"name": "com.example.Derived",
			"extends": ["com.example.Base"],
			"methods": [{"name": "tagged", "params": []}],
			"constructors": [{"params": []}]
		},
		{
			"name": "com.example.Other",
			"methods": [{"name": "open", "params": []}],
			"constructors": [{"params": []}],
			"fields": [{"name": "state"}]
		}
	]
}`

type fixture struct {
	graph   *typegraph.Graph
	base    member.Type
	derived member.Type
	other   member.Type
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g, err := typegraph.Load([]byte(policyGraphDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f := &fixture{graph: g}
	f.base = f.resolve(t, "com.example.Base")
	f.derived = f.resolve(t, "com.example.Derived")
	f.other = f.resolve(t, "com.example.Other")
	return f
}

func (f *fixture) resolve(t *testing.T, name string) member.Type {
	t.Helper()
	typ, ok := f.graph.ResolveType(name)
	if !ok {
		t.Fatalf("type %s not found", name)
	}
	return typ
}

func (f *fixture) parse(t *testing.T, lines ...string) []selector.Selector {
	t.Helper()
	sels, err := selector.ParseLines(lines, f.graph)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	return sels
}

func (f *fixture) method(t *testing.T, typ member.Type, name string) member.Method {
	t.Helper()
	m, ok := typ.Method(name, nil)
	if !ok {
		t.Fatalf("method %s.%s not found", typ.Name(), name)
	}
	return m
}

func TestAllowListExposesOnlyMatched(t *testing.T) {
	f := newFixture(t)
	p := NewListPolicy(f.parse(t, "com.example.Base.open()"), Allow, "", zap.NewNop())

	d := p.ForType(f.base)
	if !d.IsMethodExposed(f.method(t, f.base, "open")) {
		t.Error("listed method should be exposed")
	}
	if d.IsMethodExposed(f.method(t, f.base, "close")) {
		t.Error("unlisted method should be hidden")
	}
}

func TestDenyListIsComplement(t *testing.T) {
	f := newFixture(t)
	sels := f.parse(t, "com.example.Base.open()")

	allow := NewListPolicy(sels, Allow, "", zap.NewNop())
	deny := NewListPolicy(sels, Deny, "", zap.NewNop())

	open := f.method(t, f.base, "open")
	closeM := f.method(t, f.base, "close")

	for _, m := range []member.Method{open, closeM} {
		a := allow.ForType(f.base).IsMethodExposed(m)
		d := deny.ForType(f.base).IsMethodExposed(m)
		if a == d {
			t.Errorf("%s: allow and deny verdicts must be complements", m.Signature().Key())
		}
	}
}

func TestUpperBoundWidensToSubtypes(t *testing.T) {
	f := newFixture(t)
	p := NewListPolicy(f.parse(t, "com.example.Base.open()", "com.example.Base.state"), Allow, "", zap.NewNop())

	open := f.method(t, f.base, "open")

	// Accessed through the subtype: the upper bound covers it.
	if !p.ForType(f.derived).IsMethodExposed(open) {
		t.Error("selector at Base should match access through Derived")
	}
	// Accessed through an unrelated type with the same signature: no.
	if p.ForType(f.other).IsMethodExposed(f.method(t, f.other, "open")) {
		t.Error("selector at Base must not match access through Other")
	}

	// Same widening for fields.
	field, ok := f.derived.Field("state")
	if !ok {
		t.Fatal("field state not found")
	}
	if !p.ForType(f.derived).IsFieldExposed(field) {
		t.Error("field selector at Base should match access through Derived")
	}
}

func TestConstructorsDoNotWiden(t *testing.T) {
	f := newFixture(t)
	p := NewListPolicy(f.parse(t, "com.example.Base.Base()"), Allow, "", zap.NewNop())

	baseCtor, ok := f.base.Constructor(nil)
	if !ok {
		t.Fatal("Base() not found")
	}
	if !p.ForType(f.base).IsConstructorExposed(baseCtor) {
		t.Error("listed constructor should be exposed on its own type")
	}

	// Derived declares its own no-arg constructor; the Base selector
	// must not cover it even though Derived is assignable to Base.
	derivedCtor, ok := f.derived.Constructor(nil)
	if !ok {
		t.Fatal("Derived() not found")
	}
	if p.ForType(f.derived).IsConstructorExposed(derivedCtor) {
		t.Error("constructor selectors must not widen to subtypes")
	}
}

func TestDeclaringTypeIrrelevant(t *testing.T) {
	f := newFixture(t)
	p := NewListPolicy(f.parse(t, "com.example.Derived.open()"), Allow, "", zap.NewNop())

	// open is declared on Base, but the selector is registered at
	// Derived; an access through Derived matches regardless of where
	// the declaration lives.
	open := f.method(t, f.derived, "open")
	if open.DeclaringType().Name() != "com.example.Base" {
		t.Fatalf("fixture broken: open declared on %s", open.DeclaringType().Name())
	}
	if !p.ForType(f.derived).IsMethodExposed(open) {
		t.Error("access through the registered type should match")
	}
	if p.ForType(f.base).IsMethodExposed(f.method(t, f.base, "open")) {
		t.Error("access through the supertype is outside the upper bound")
	}
}

func TestCapabilityTagOverride(t *testing.T) {
	f := newFixture(t)
	// Empty list: nothing matches except via the tag.
	p := NewListPolicy(nil, Allow, "safe", zap.NewNop())

	tagged := f.method(t, f.base, "tagged")
	if !p.ForType(f.base).IsMethodExposed(tagged) {
		t.Error("tagged method should be exposed under allow polarity")
	}
	if p.ForType(f.base).IsMethodExposed(f.method(t, f.base, "open")) {
		t.Error("untagged method should stay hidden")
	}

	// The override counts as a match, so under deny polarity the tag
	// hides the member instead.
	deny := NewListPolicy(nil, Deny, "safe", zap.NewNop())
	if deny.ForType(f.base).IsMethodExposed(tagged) {
		t.Error("tagged method should be hidden under deny polarity")
	}
}

func TestCapabilityTagInheritedThroughOverride(t *testing.T) {
	f := newFixture(t)
	p := NewListPolicy(nil, Allow, "safe", zap.NewNop())

	// Derived.tagged() overrides Base.tagged() which carries the tag.
	derivedTagged := f.method(t, f.derived, "tagged")
	if derivedTagged.DeclaringType().Name() != "com.example.Derived" {
		t.Fatalf("fixture broken: tagged declared on %s", derivedTagged.DeclaringType().Name())
	}
	if !p.ForType(f.derived).IsMethodExposed(derivedTagged) {
		t.Error("tag on the overridden declaration should count")
	}
}

func TestUnresolvedSelectorsContributeNothing(t *testing.T) {
	f := newFixture(t)
	sels := f.parse(t, "com.example.Missing.open()", "com.example.Base.missing()")
	for _, s := range sels {
		if !s.Unresolved() {
			t.Fatal("fixture broken: expected unresolved selectors")
		}
	}

	p := NewListPolicy(sels, Allow, "", zap.NewNop())
	if p.ForType(f.base).IsMethodExposed(f.method(t, f.base, "open")) {
		t.Error("unresolved selectors must not expose anything")
	}
}

func TestDuplicateRegistrationIdempotent(t *testing.T) {
	f := newFixture(t)

	once := NewListPolicy(f.parse(t, "com.example.Base.open()"), Allow, "", zap.NewNop())
	twice := NewListPolicy(f.parse(t,
		"com.example.Base.open()",
		"com.example.Base.open()",
	), Allow, "", zap.NewNop())

	// The same selector fed through two separate Add calls.
	sels := f.parse(t, "com.example.Base.open()")
	split := NewBuilder(Allow, "", zap.NewNop()).Add(sels...).Add(sels...).Build()

	open := f.method(t, f.base, "open")
	closeM := f.method(t, f.base, "close")
	for _, ctx := range []member.Type{f.base, f.derived, f.other} {
		for _, m := range []member.Method{open, closeM} {
			want := once.ForType(ctx).IsMethodExposed(m)
			if got := twice.ForType(ctx).IsMethodExposed(m); got != want {
				t.Errorf("%s via %s: duplicate line changed verdict: got %v, want %v",
					m.Signature().Key(), ctx.Name(), got, want)
			}
			if got := split.ForType(ctx).IsMethodExposed(m); got != want {
				t.Errorf("%s via %s: repeated Add changed verdict: got %v, want %v",
					m.Signature().Key(), ctx.Name(), got, want)
			}
		}
	}
}

func TestDecisionCache(t *testing.T) {
	f := newFixture(t)
	p := NewListPolicy(nil, Allow, "", zap.NewNop())

	d1 := p.ForType(f.base)
	d2 := p.ForType(f.base)
	if d1 != d2 {
		t.Error("decisions for the same type should be cached")
	}
	if d1 == p.ForType(f.derived) {
		t.Error("different types must get different decisions")
	}
}

func TestInvalidPolarity(t *testing.T) {
	if _, err := ParsePolarity("block"); err == nil {
		t.Error("unknown polarity string should be rejected")
	}
	if pol, err := ParsePolarity("allow"); err != nil || pol != Allow {
		t.Errorf("got %v, %v", pol, err)
	}
	if pol, err := ParsePolarity("deny"); err != nil || pol != Deny {
		t.Errorf("got %v, %v", pol, err)
	}

	defer func() {
		if recover() == nil {
			t.Error("NewBuilder must panic on an invalid polarity")
		}
	}()
	NewBuilder(Polarity(0), "", zap.NewNop())
}

func TestBuilderPanicsAfterBuild(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(Allow, "", zap.NewNop())
	b.Build()

	defer func() {
		if recover() == nil {
			t.Error("Add after Build must panic")
		}
	}()
	b.Add(f.parse(t, "com.example.Base.open()")...)
}
