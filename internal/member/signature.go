package member

import "strings"

// MethodSignature identifies a method independent of its declaring
// type: name plus ordered parameter types. Overloads that differ only
// in return type share a signature.
type MethodSignature struct {
	Name   string
	Params []Type
}

// Key returns the canonical index form, e.g. "bar(int,java.lang.String)".
func (s MethodSignature) Key() string {
	var b strings.Builder
	b.WriteString(s.Name)
	writeParamList(&b, s.Params)
	return b.String()
}

// ConstructorSignature identifies a constructor by its ordered
// parameter types; constructors have no name of their own.
type ConstructorSignature struct {
	Params []Type
}

// Key returns the canonical index form, e.g. "(int,int)".
func (s ConstructorSignature) Key() string {
	var b strings.Builder
	writeParamList(&b, s.Params)
	return b.String()
}

// FieldSignature identifies a field by name; the field's declared type
// is irrelevant.
type FieldSignature struct {
	Name string
}

// Key returns the canonical index form (the field name).
func (s FieldSignature) Key() string {
	return s.Name
}

func writeParamList(b *strings.Builder, params []Type) {
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Name())
	}
	b.WriteByte(')')
}
