package policy

import "github.com/memberguard/memberguard/internal/member"

// matcher indexes one member category (methods, constructors, or
// fields) by signature key, mapping each to the set of upper-bound
// types registered for it. Insertion is additive only; the same
// signature may be registered under multiple unrelated upper bounds.
type matcher struct {
	upperBounds map[string][]member.Type
}

func newMatcher() *matcher {
	return &matcher{upperBounds: make(map[string][]member.Type)}
}

// add registers an upper-bound type for a signature. Registering the
// same pair twice has no additional effect.
func (m *matcher) add(sigKey string, upperBound member.Type) {
	existing := m.upperBounds[sigKey]
	for _, u := range existing {
		if u.Name() == upperBound.Name() {
			return
		}
	}
	m.upperBounds[sigKey] = append(existing, upperBound)
}

// matches reports whether a member with the given signature, accessed
// through contextType, is covered: contextType must be assignable to at
// least one registered upper bound for that signature. Which type in
// the hierarchy actually declares the member is irrelevant.
func (m *matcher) matches(contextType member.Type, sigKey string) bool {
	for _, upper := range m.upperBounds[sigKey] {
		if contextType.AssignableTo(upper) {
			return true
		}
	}
	return false
}

// matchesExact is the constructor variant: constructors are not
// inherited, so a selector only ever covers the type it names.
func (m *matcher) matchesExact(contextType member.Type, sigKey string) bool {
	for _, upper := range m.upperBounds[sigKey] {
		if contextType.Name() == upper.Name() {
			return true
		}
	}
	return false
}
