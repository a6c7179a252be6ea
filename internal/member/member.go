// Package member defines the abstract view of the host's type system
// that the policy engine works against. The engine never touches a
// concrete reflection API; hosts supply an implementation of these
// interfaces (see internal/typegraph for the declared, in-memory one).
package member

// Type is an opaque handle to a type in the host's type system.
// Implementations must give the same handle identity for the same type,
// so that Name() equality implies type identity.
type Type interface {
	// Name returns the fully qualified type name, e.g. "com.example.Foo".
	// Array types carry one "[]" suffix per rank.
	Name() string

	// SimpleName returns the unqualified name (the part after the last
	// dot). Used to tell constructors apart from same-named methods.
	SimpleName() string

	// AssignableTo reports whether the type is upper itself, or a
	// subtype of upper.
	AssignableTo(upper Type) bool

	// Method finds a visible method by name and exact parameter types.
	Method(name string, params []Type) (Method, bool)

	// Constructor finds a declared constructor by exact parameter types.
	Constructor(params []Type) (Constructor, bool)

	// Field finds a visible field by name.
	Field(name string) (Field, bool)
}

// Member is the common surface of methods, constructors and fields.
type Member interface {
	// DeclaringType returns the type the member is declared on.
	DeclaringType() Type

	// HasTag reports whether the named capability tag is present on the
	// member's declaration. When inherited is true, declarations the
	// member overrides up the supertype graph count too.
	HasTag(tag string, inherited bool) bool
}

// Method is a method member. Only the name and parameter types identify
// it; the return type never takes part in matching.
type Method interface {
	Member
	Signature() MethodSignature
}

// Constructor is a constructor member, identified by parameter types only.
type Constructor interface {
	Member
	Signature() ConstructorSignature
}

// Field is a field member, identified by name only; its declared type
// never takes part in matching.
type Field interface {
	Member
	Signature() FieldSignature
}

// Resolver maps type names from selector text to live type handles.
type Resolver interface {
	// ResolveType returns the handle for a fully qualified (or
	// primitive) type name, or false if the name is unknown.
	ResolveType(name string) (Type, bool)

	// ArrayOf returns the array type with the given element type.
	// Apply repeatedly for multi-dimensional arrays.
	ArrayOf(elem Type) Type
}
