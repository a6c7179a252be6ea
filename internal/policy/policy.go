// Package policy implements the member-selector list access policy:
// three per-category matchers built from selectors, a list polarity,
// and an optional capability-tag override, combined into per-type
// exposure decisions. Policies are immutable after Build and safe for
// unsynchronized concurrent reads.
package policy

import (
	"fmt"
	"sync"

	"github.com/memberguard/memberguard/internal/member"
	"github.com/memberguard/memberguard/internal/selector"
	"go.uber.org/zap"
)

// Polarity decides the "color" of the selector list.
type Polarity int

const (
	// Allow exposes only matched members.
	Allow Polarity = iota + 1
	// Deny hides matched members and exposes everything else.
	Deny
)

// ParsePolarity maps "allow" or "deny" to the Polarity value. Anything
// else is an error; an unrecognized polarity must never silently pick a
// side.
func ParsePolarity(s string) (Polarity, error) {
	switch s {
	case "allow":
		return Allow, nil
	case "deny":
		return Deny, nil
	}
	return 0, fmt.Errorf("invalid polarity %q", s)
}

// String returns the lowercase polarity name.
func (p Polarity) String() string {
	switch p {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "unspecified"
	}
}

// Policy is an immutable member access policy. Build one with a
// Builder (or NewListPolicy) during startup; query it from any number
// of goroutines afterwards.
type Policy struct {
	methods       *matcher
	constructors  *matcher
	fields        *matcher
	polarity      Polarity
	capabilityTag string // empty = no tag override

	decisions sync.Map // map[string]*Decision, keyed by context type name
}

// Builder accumulates selectors and yields an immutable Policy. Not
// safe for concurrent use; Add panics after Build.
type Builder struct {
	policy *Policy
	logger *zap.Logger
	built  bool
}

// NewBuilder creates a policy builder. capabilityTag may be empty to
// disable the tag override. Unresolved selectors are logged at Debug
// and contribute nothing to matching.
func NewBuilder(polarity Polarity, capabilityTag string, logger *zap.Logger) *Builder {
	if polarity != Allow && polarity != Deny {
		panic("policy: invalid polarity")
	}
	return &Builder{
		policy: &Policy{
			methods:       newMatcher(),
			constructors:  newMatcher(),
			fields:        newMatcher(),
			polarity:      polarity,
			capabilityTag: capabilityTag,
		},
		logger: logger,
	}
}

// Add registers selectors into the matching category each belongs to.
func (b *Builder) Add(selectors ...selector.Selector) *Builder {
	if b.built {
		panic("policy: Add after Build")
	}
	for _, s := range selectors {
		switch {
		case s.Unresolved():
			b.logger.Debug("member selector ignored due to resolution failure",
				zap.String("selector", s.Text()),
				zap.Error(s.Err()),
			)
		case s.Method() != nil:
			b.policy.methods.add(s.Method().Signature().Key(), s.UpperBound())
		case s.Constructor() != nil:
			b.policy.constructors.add(s.Constructor().Signature().Key(), s.UpperBound())
		case s.Field() != nil:
			b.policy.fields.add(s.Field().Signature().Key(), s.UpperBound())
		default:
			panic("policy: empty selector")
		}
	}
	return b
}

// Build freezes the accumulated selectors into a Policy. The builder
// must not be used afterwards.
func (b *Builder) Build() *Policy {
	if b.built {
		panic("policy: Build called twice")
	}
	b.built = true
	return b.policy
}

// NewListPolicy builds a Policy straight from a selector collection.
func NewListPolicy(selectors []selector.Selector, polarity Polarity, capabilityTag string, logger *zap.Logger) *Policy {
	return NewBuilder(polarity, capabilityTag, logger).Add(selectors...).Build()
}

// Polarity returns the list polarity.
func (p *Policy) Polarity() Polarity { return p.polarity }

// CapabilityTag returns the configured tag name, or "".
func (p *Policy) CapabilityTag() string { return p.capabilityTag }

// ForType returns the Decision for members accessed through
// contextType. Decisions for the same type are equivalent, so the
// per-type cache is populated last-writer-wins.
func (p *Policy) ForType(contextType member.Type) *Decision {
	if v, ok := p.decisions.Load(contextType.Name()); ok {
		return v.(*Decision)
	}
	d := &Decision{policy: p, contextType: contextType}
	p.decisions.Store(contextType.Name(), d)
	return d
}

// Decision answers exposure queries for one context type. It is pure
// and safe for concurrent use.
type Decision struct {
	policy      *Policy
	contextType member.Type
}

// IsMethodExposed reports whether the method may be invoked through
// the decision's context type.
func (d *Decision) IsMethodExposed(m member.Method) bool {
	return d.policy.exposed(
		d.policy.methods.matches(d.contextType, m.Signature().Key()) || d.policy.tagMatched(m))
}

// IsConstructorExposed reports whether the constructor may be invoked.
// Constructors are matched only when the context type itself is the
// upper bound; constructors are not inherited, so selectors never widen
// to subtypes here.
func (d *Decision) IsConstructorExposed(c member.Constructor) bool {
	return d.policy.exposed(
		d.policy.constructors.matchesExact(d.contextType, c.Signature().Key()) || d.policy.tagMatched(c))
}

// IsFieldExposed reports whether the field may be read through the
// decision's context type.
func (d *Decision) IsFieldExposed(f member.Field) bool {
	return d.policy.exposed(
		d.policy.fields.matches(d.contextType, f.Signature().Key()) || d.policy.tagMatched(f))
}

// tagMatched applies the capability-tag override: the tag counts when
// present on the member's declaration or on any declaration it
// overrides up the supertype graph.
func (p *Policy) tagMatched(m member.Member) bool {
	return p.capabilityTag != "" && m.HasTag(p.capabilityTag, true)
}

func (p *Policy) exposed(matched bool) bool {
	switch p.polarity {
	case Allow:
		return matched
	case Deny:
		return !matched
	}
	panic("policy: invalid polarity")
}
