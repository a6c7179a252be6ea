// Package selector holds the parsed form of member selector lists: one
// Selector per configured rule, plus the textual parser that builds
// them. A Selector either pins a concrete method, constructor or field
// under an upper-bound type, or records a resolution failure for
// diagnostic reporting.
package selector

import (
	"errors"

	"github.com/memberguard/memberguard/internal/member"
)

// Soft resolution failure kinds carried by unresolved selectors.
// These are never returned as errors from parsing; they live on the
// Selector so callers can log and skip.
var (
	ErrTypeNotFound   = errors.New("type not found")
	ErrMemberNotFound = errors.New("member not found")
)

// Selector is one member selector list entry. Exactly one of Method,
// Constructor, Field or Err is set. Selectors are immutable once built.
type Selector struct {
	upperBound  member.Type // nil only when Err is set and the upper bound itself failed to resolve
	method      member.Method
	constructor member.Constructor
	field       member.Field
	err         error
	text        string // original entry text, set for unresolved selectors
}

// NewMethodSelector matches methods with the given method's signature
// in types assignable to upperBound.
func NewMethodSelector(upperBound member.Type, m member.Method) Selector {
	if upperBound == nil || m == nil {
		panic("selector: nil upperBound or method")
	}
	return Selector{upperBound: upperBound, method: m}
}

// NewConstructorSelector matches constructors with the given
// constructor's parameter types. Constructors are not inherited, so the
// upper bound only ever matches its own declaring type in practice.
func NewConstructorSelector(upperBound member.Type, c member.Constructor) Selector {
	if upperBound == nil || c == nil {
		panic("selector: nil upperBound or constructor")
	}
	return Selector{upperBound: upperBound, constructor: c}
}

// NewFieldSelector matches fields with the given field's name in types
// assignable to upperBound.
func NewFieldSelector(upperBound member.Type, f member.Field) Selector {
	if upperBound == nil || f == nil {
		panic("selector: nil upperBound or field")
	}
	return Selector{upperBound: upperBound, field: f}
}

// NewUnresolvedSelector records a parse entry whose referenced type or
// member could not be found. upperBound may be nil if resolving the
// upper bound itself failed. Unresolved selectors carry no matching
// power.
func NewUnresolvedSelector(upperBound member.Type, err error, text string) Selector {
	if err == nil || text == "" {
		panic("selector: nil err or empty text")
	}
	return Selector{upperBound: upperBound, err: err, text: text}
}

// UpperBound returns the upper-bound type; nil only for unresolved
// selectors whose upper bound failed to resolve.
func (s Selector) UpperBound() member.Type { return s.upperBound }

// Method returns the matched method, or nil.
func (s Selector) Method() member.Method { return s.method }

// Constructor returns the matched constructor, or nil.
func (s Selector) Constructor() member.Constructor { return s.constructor }

// Field returns the matched field, or nil.
func (s Selector) Field() member.Field { return s.field }

// Err returns the resolution failure, or nil for a resolved selector.
func (s Selector) Err() error { return s.err }

// Text returns the original entry text for unresolved selectors, used
// in log messages.
func (s Selector) Text() string { return s.text }

// Unresolved reports whether the selector records a resolution failure.
func (s Selector) Unresolved() bool { return s.err != nil }
