package selector

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/memberguard/memberguard/internal/member"
)

// ParseError is a hard syntax error in a selector entry: the entry text
// itself is malformed, as opposed to referencing a type or member that
// merely doesn't exist (which yields an unresolved Selector instead).
type ParseError struct {
	Text   string // the offending entry, as given
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed member selector (%s): %s", e.Reason, e.Text)
}

// separatorSpace matches whitespace around the structural characters of
// an entry so "com.example.Foo . bar ( int )" normalizes cleanly.
var separatorSpace = regexp.MustCompile(`\s*([.,()\[\]])\s*`)

// Parse parses a single member selector entry, e.g.
// "com.example.Foo.bar(int, java.lang.String[])". The resolver maps
// type names to live handles.
//
// A malformed entry returns a *ParseError. An entry that is well formed
// but references an unknown type or member returns an unresolved
// Selector and a nil error; the caller decides whether to log it.
func Parse(text string, resolver member.Resolver) (Selector, error) {
	if strings.ContainsAny(text, "<>;") || strings.Contains(text, "...") {
		return Selector{}, &ParseError{
			Text:   text,
			Reason: `must not contain "<", ">", "...", or ";"`,
		}
	}
	cleaned := separatorSpace.ReplaceAllString(strings.TrimSpace(text), "$1")

	openParen := strings.IndexByte(cleaned, '(')
	hasParamList := openParen != -1
	postMemberName := len(cleaned)
	if hasParamList {
		postMemberName = openParen
	}

	classDot := strings.LastIndexByte(cleaned[:postMemberName], '.')
	if classDot == -1 {
		return Selector{}, &ParseError{Text: text, Reason: "missing dot"}
	}

	upperBoundName := cleaned[:classDot]
	if !wellFormedTypeName(upperBoundName) {
		return Selector{}, &ParseError{Text: text, Reason: "malformed upper bound type name"}
	}
	memberName := cleaned[classDot+1 : postMemberName]
	if !wellFormedIdentifier(memberName) {
		return Selector{}, &ParseError{Text: text, Reason: "malformed member name"}
	}

	upperBound, ok := resolver.ResolveType(upperBoundName)
	if !ok {
		return NewUnresolvedSelector(nil,
			fmt.Errorf("%w: %s", ErrTypeNotFound, upperBoundName), cleaned), nil
	}

	if !hasParamList {
		f, ok := upperBound.Field(memberName)
		if !ok {
			return NewUnresolvedSelector(upperBound,
				fmt.Errorf("%w: field %s.%s", ErrMemberNotFound, upperBoundName, memberName), cleaned), nil
		}
		return NewFieldSelector(upperBound, f), nil
	}

	if cleaned[len(cleaned)-1] != ')' {
		return Selector{}, &ParseError{Text: text, Reason: `should end with ")"`}
	}
	params, unresolved, err := parseParamList(cleaned[openParen+1:len(cleaned)-1], text, resolver)
	if err != nil {
		return Selector{}, err
	}
	if unresolved != nil {
		return NewUnresolvedSelector(upperBound, unresolved, cleaned), nil
	}

	if memberName == upperBound.SimpleName() {
		c, ok := upperBound.Constructor(params)
		if !ok {
			return NewUnresolvedSelector(upperBound,
				fmt.Errorf("%w: constructor %s%s", ErrMemberNotFound, upperBoundName,
					member.ConstructorSignature{Params: params}.Key()), cleaned), nil
		}
		return NewConstructorSelector(upperBound, c), nil
	}
	m, ok := upperBound.Method(memberName, params)
	if !ok {
		return NewUnresolvedSelector(upperBound,
			fmt.Errorf("%w: method %s.%s", ErrMemberNotFound, upperBoundName,
				member.MethodSignature{Name: memberName, Params: params}.Key()), cleaned), nil
	}
	return NewMethodSelector(upperBound, m), nil
}

// parseParamList parses the comma-separated type list between the
// parentheses. It returns either the resolved parameter types, or a
// soft resolution failure, or a hard parse error.
func parseParamList(spec, text string, resolver member.Resolver) ([]member.Type, error, error) {
	var params []member.Type
	for _, name := range strings.Split(spec, ",") {
		if name == "" {
			continue
		}
		rank := 0
		for strings.HasSuffix(name, "[]") {
			rank++
			name = name[:len(name)-2]
		}
		if !wellFormedTypeName(name) {
			return nil, nil, &ParseError{Text: text, Reason: "malformed parameter type name"}
		}
		p, ok := resolver.ResolveType(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTypeNotFound, name), nil
		}
		for range rank {
			p = resolver.ArrayOf(p)
		}
		params = append(params, p)
	}
	return params, nil, nil
}

// ParseLines parses every non-ignored line of a selector list. Any hard
// parse error aborts the whole list; a malformed list must not silently
// produce a partial (and possibly overly permissive) policy. Unresolved
// selectors are returned as entries for the caller to log.
func ParseLines(lines []string, resolver member.Resolver) ([]Selector, error) {
	selectors := make([]Selector, 0, len(lines))
	for _, line := range lines {
		if IsIgnoredLine(line) {
			continue
		}
		s, err := Parse(line, resolver)
		if err != nil {
			return nil, err
		}
		selectors = append(selectors, s)
	}
	return selectors, nil
}

// IsIgnoredLine reports whether a selector list line is blank or a
// comment. A line is a comment if it starts with "#" or "//", ignoring
// leading whitespace.
func IsIgnoredLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//")
}

// wellFormedTypeName reports whether s is a dotted sequence of
// identifiers, e.g. "com.example.Foo" or "int".
func wellFormedTypeName(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if !wellFormedIdentifier(seg) {
			return false
		}
	}
	return true
}

func wellFormedIdentifier(s string) bool {
	for i, c := range s {
		if i == 0 {
			if !identifierStart(c) {
				return false
			}
		} else if !identifierPart(c) {
			return false
		}
	}
	return s != ""
}

func identifierStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_' || c == '$'
}

func identifierPart(c rune) bool {
	return identifierStart(c) || unicode.IsDigit(c)
}
