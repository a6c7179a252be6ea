package selector

import (
	"errors"
	"testing"

	"github.com/memberguard/memberguard/internal/member"
	"github.com/memberguard/memberguard/internal/typegraph"
)

const parserGraphDoc = `{
	"types": [
		{
			"name": "com.example.Foo",
			"methods": [
				{"name": "bar", "params": ["int", "java.lang.String"]},
				{"name": "baz"},
				{"name": "grid", "params": ["int[][]"]}
			],
			"constructors": [
				{"params": []},
				{"params": ["int"]}
			],
			"fields": [{"name": "count"}]
		},
		{"name": "java.lang.String"}
	]
}`

func parserGraph(t *testing.T) member.Resolver {
	t.Helper()
	g, err := typegraph.Load([]byte(parserGraphDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return g
}

func TestParseMethod(t *testing.T) {
	g := parserGraph(t)
	s, err := Parse("com.example.Foo.bar(int, java.lang.String)", g)
	if err != nil {
		t.Fatal(err)
	}
	if s.Method() == nil {
		t.Fatal("expected a method selector")
	}
	if got := s.Method().Signature().Key(); got != "bar(int,java.lang.String)" {
		t.Errorf("signature key: got %s", got)
	}
	if s.UpperBound().Name() != "com.example.Foo" {
		t.Errorf("upper bound: got %s", s.UpperBound().Name())
	}
}

func TestParseNoArgMethod(t *testing.T) {
	g := parserGraph(t)
	s, err := Parse("com.example.Foo.baz()", g)
	if err != nil {
		t.Fatal(err)
	}
	if s.Method() == nil {
		t.Fatal("expected a method selector")
	}
	if got := s.Method().Signature().Key(); got != "baz()" {
		t.Errorf("signature key: got %s", got)
	}
}

func TestParseConstructor(t *testing.T) {
	g := parserGraph(t)

	// Member name equal to the type's simple name means constructor.
	s, err := Parse("com.example.Foo.Foo(int)", g)
	if err != nil {
		t.Fatal(err)
	}
	if s.Constructor() == nil {
		t.Fatal("expected a constructor selector")
	}
	if got := s.Constructor().Signature().Key(); got != "(int)" {
		t.Errorf("signature key: got %s", got)
	}
}

func TestParseField(t *testing.T) {
	g := parserGraph(t)
	s, err := Parse("com.example.Foo.count", g)
	if err != nil {
		t.Fatal(err)
	}
	if s.Field() == nil {
		t.Fatal("expected a field selector")
	}
	if got := s.Field().Signature().Key(); got != "count" {
		t.Errorf("signature key: got %s", got)
	}
}

func TestParseArrayParams(t *testing.T) {
	g := parserGraph(t)
	s, err := Parse("com.example.Foo.grid(int[][])", g)
	if err != nil {
		t.Fatal(err)
	}
	if s.Method() == nil {
		t.Fatal("expected a method selector")
	}
	if got := s.Method().Signature().Key(); got != "grid(int[][])" {
		t.Errorf("signature key: got %s", got)
	}
}

func TestParseWhitespaceNormalization(t *testing.T) {
	g := parserGraph(t)
	s, err := Parse("  com.example.Foo . bar ( int , java.lang.String )  ", g)
	if err != nil {
		t.Fatal(err)
	}
	if s.Method() == nil {
		t.Fatal("expected a method selector despite embedded whitespace")
	}
}

func TestParseHardErrors(t *testing.T) {
	g := parserGraph(t)
	cases := []struct {
		name string
		text string
	}{
		{"generics syntax", "com.example.Foo.bar(java.util.List<String>)"},
		{"varargs syntax", "com.example.Foo.bar(int...)"},
		{"semicolon", "com.example.Foo.bar(int);"},
		{"missing dot", "bar"},
		{"missing close paren", "com.example.Foo.bar(int"},
		{"bad member name", "com.example.Foo.bar-baz()"},
		{"bad upper bound", "com..Foo.bar()"},
		{"bad param type name", "com.example.Foo.bar(in-t)"},
		{"empty", ""},
	}
	for _, c := range cases {
		_, err := Parse(c.text, g)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("%s: expected *ParseError, got %v", c.name, err)
		}
	}
}

func TestParseUnresolvedType(t *testing.T) {
	g := parserGraph(t)
	s, err := Parse("com.example.Missing.bar(int)", g)
	if err != nil {
		t.Fatalf("unknown type must not be a hard error: %v", err)
	}
	if !s.Unresolved() {
		t.Fatal("expected an unresolved selector")
	}
	if !errors.Is(s.Err(), ErrTypeNotFound) {
		t.Errorf("expected ErrTypeNotFound, got %v", s.Err())
	}
	if s.UpperBound() != nil {
		t.Error("upper bound should be nil when the type itself is unknown")
	}
}

func TestParseUnresolvedMember(t *testing.T) {
	g := parserGraph(t)
	cases := []string{
		"com.example.Foo.missing()",
		"com.example.Foo.bar(long)",       // wrong param types
		"com.example.Foo.Foo(long)",       // no such constructor
		"com.example.Foo.missingField",
		"com.example.Foo.bar(com.example.Missing)", // unknown param type
	}
	for _, text := range cases {
		s, err := Parse(text, g)
		if err != nil {
			t.Errorf("%s: unknown member must not be a hard error: %v", text, err)
			continue
		}
		if !s.Unresolved() {
			t.Errorf("%s: expected an unresolved selector", text)
		}
	}
}

func TestIsIgnoredLine(t *testing.T) {
	ignored := []string{"", "   ", "# comment", "  # comment", "// comment", "\t// x"}
	for _, line := range ignored {
		if !IsIgnoredLine(line) {
			t.Errorf("%q should be ignored", line)
		}
	}
	if IsIgnoredLine("com.example.Foo.bar()") {
		t.Error("selector entry must not be ignored")
	}
}

func TestParseLines(t *testing.T) {
	g := parserGraph(t)
	lines := []string{
		"# methods",
		"com.example.Foo.bar(int, java.lang.String)",
		"",
		"// fields",
		"com.example.Foo.count",
		"com.example.Unknown.x()",
	}
	sels, err := ParseLines(lines, g)
	if err != nil {
		t.Fatal(err)
	}
	if len(sels) != 3 {
		t.Fatalf("got %d selectors, want 3", len(sels))
	}
	if sels[0].Method() == nil || sels[1].Field() == nil || !sels[2].Unresolved() {
		t.Error("selectors categorized wrong")
	}
}

func TestParseLinesAbortsOnHardError(t *testing.T) {
	g := parserGraph(t)
	lines := []string{
		"com.example.Foo.count",
		"com.example.Foo.bar(int...)",
	}
	if _, err := ParseLines(lines, g); err == nil {
		t.Fatal("a malformed entry must fail the whole list")
	}
}
