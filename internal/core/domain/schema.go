package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TypeKind is the introspection kind of a type.
type TypeKind string

// Introspection type kinds.
const (
	KindScalar      TypeKind = "SCALAR"
	KindObject      TypeKind = "OBJECT"
	KindInterface   TypeKind = "INTERFACE"
	KindUnion       TypeKind = "UNION"
	KindEnum        TypeKind = "ENUM"
	KindInputObject TypeKind = "INPUT_OBJECT"
	KindList        TypeKind = "LIST"
	KindNonNull     TypeKind = "NON_NULL"
)

// TypeRef references a type, possibly wrapped in LIST or NON_NULL.
type TypeRef struct {
	Kind   TypeKind `json:"kind"`
	Name   string   `json:"name"`
	OfType *TypeRef `json:"ofType"`
}

// String renders the reference in SDL notation, e.g. "[String!]!".
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case KindNonNull:
		return t.OfType.String() + "!"
	case KindList:
		return "[" + t.OfType.String() + "]"
	default:
		return t.Name
	}
}

// NonNull reports whether the outermost wrapper is NON_NULL.
func (t *TypeRef) NonNull() bool {
	return t != nil && t.Kind == KindNonNull
}

// IsList reports whether the reference is a list, ignoring NON_NULL.
func (t *TypeRef) IsList() bool {
	if t == nil {
		return false
	}
	if t.Kind == KindNonNull {
		return t.OfType.IsList()
	}
	return t.Kind == KindList
}

// Named returns the innermost named type.
func (t *TypeRef) Named() *TypeRef {
	for t != nil && (t.Kind == KindNonNull || t.Kind == KindList) {
		t = t.OfType
	}
	return t
}

// NamedType returns the name of the innermost named type.
func (t *TypeRef) NamedType() string {
	if n := t.Named(); n != nil {
		return n.Name
	}
	return ""
}

// InputValue is a field argument.
type InputValue struct {
	Name         string   `json:"name"`
	Type         *TypeRef `json:"type"`
	DefaultValue *string  `json:"defaultValue"`
}

// Required reports whether a value must be supplied for the argument.
func (v InputValue) Required() bool {
	return v.Type.NonNull() && v.DefaultValue == nil
}

// FieldDef is a field on an object or interface type.
type FieldDef struct {
	Name string       `json:"name"`
	Args []InputValue `json:"args"`
	Type *TypeRef     `json:"type"`
}

// Arg returns the argument with the given name.
func (f FieldDef) Arg(name string) (InputValue, bool) {
	for _, a := range f.Args {
		if a.Name == name {
			return a, true
		}
	}
	return InputValue{}, false
}

// HasRequiredArgs reports whether any argument must be supplied.
func (f FieldDef) HasRequiredArgs() bool {
	for _, a := range f.Args {
		if a.Required() {
			return true
		}
	}
	return false
}

// TypeDef is a named type in the schema.
type TypeDef struct {
	Kind          TypeKind   `json:"kind"`
	Name          string     `json:"name"`
	Fields        []FieldDef `json:"fields"`
	Interfaces    []TypeRef  `json:"interfaces"`
	PossibleTypes []TypeRef  `json:"possibleTypes"`
}

// Field returns the field with the given name.
func (t *TypeDef) Field(name string) (FieldDef, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// HasField reports whether the type declares a field with the given name.
func (t *TypeDef) HasField(name string) bool {
	_, ok := t.Field(name)
	return ok
}

// Schema is the remote schema as returned by introspection.
type Schema struct {
	QueryType string
	Types     []TypeDef

	index map[string]int
}

// NewSchema builds a schema from its query type name and type list.
func NewSchema(queryType string, types []TypeDef) *Schema {
	s := &Schema{QueryType: queryType, Types: types, index: make(map[string]int, len(types))}
	for i := range types {
		s.index[types[i].Name] = i
	}
	return s
}

type introspectionResult struct {
	Schema *struct {
		QueryType *struct {
			Name string `json:"name"`
		} `json:"queryType"`
		Types []TypeDef `json:"types"`
	} `json:"__schema"`
}

// ParseIntrospection decodes the data object of an introspection response.
func ParseIntrospection(data []byte) (*Schema, error) {
	var res introspectionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaIntrospection, err)
	}
	if res.Schema == nil {
		return nil, fmt.Errorf("%w: response has no __schema", ErrSchemaIntrospection)
	}
	if res.Schema.QueryType == nil || res.Schema.QueryType.Name == "" {
		return nil, fmt.Errorf("%w: schema has no query type", ErrSchemaIntrospection)
	}
	s := NewSchema(res.Schema.QueryType.Name, res.Schema.Types)
	if _, ok := s.Type(s.QueryType); !ok {
		return nil, fmt.Errorf("%w: query type %s is not defined", ErrSchemaIntrospection, s.QueryType)
	}
	return s, nil
}

// Type returns the named type.
func (s *Schema) Type(name string) (*TypeDef, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return &s.Types[i], true
}

// Query returns the root query type.
func (s *Schema) Query() *TypeDef {
	t, _ := s.Type(s.QueryType)
	return t
}

// PossibleTypes returns the concrete object types an abstract type resolves to,
// in schema order. An object type resolves to itself.
func (s *Schema) PossibleTypes(name string) []*TypeDef {
	t, ok := s.Type(name)
	if !ok {
		return nil
	}
	if t.Kind == KindObject {
		return []*TypeDef{t}
	}
	out := make([]*TypeDef, 0, len(t.PossibleTypes))
	for _, ref := range t.PossibleTypes {
		if pt, ok := s.Type(ref.Name); ok {
			out = append(out, pt)
		}
	}
	return out
}

// IsBuiltinScalar reports whether name is one of the GraphQL built-in scalars.
func IsBuiltinScalar(name string) bool {
	switch name {
	case "String", "Int", "Float", "Boolean", "ID":
		return true
	default:
		return false
	}
}

// IsIntrospectionName reports whether name is reserved for introspection.
func IsIntrospectionName(name string) bool {
	return strings.HasPrefix(name, "__")
}
