package gql

import (
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
)

// Value is a GraphQL input value.
type Value = ast.Value

// Var references the variable with the given name (without the $).
func Var(name string) *Value {
	return &Value{Kind: ast.Variable, Raw: name}
}

// String returns a string value.
func String(s string) *Value {
	return &Value{Kind: ast.StringValue, Raw: s}
}

// Int returns an integer value.
func Int(n int) *Value {
	return &Value{Kind: ast.IntValue, Raw: strconv.Itoa(n)}
}

// Bool returns a boolean value.
func Bool(b bool) *Value {
	return &Value{Kind: ast.BooleanValue, Raw: strconv.FormatBool(b)}
}

// Enum returns an enum value.
func Enum(name string) *Value {
	return &Value{Kind: ast.EnumValue, Raw: name}
}

// Null returns the null value.
func Null() *Value {
	return &Value{Kind: ast.NullValue, Raw: "null"}
}

// List returns a list value.
func List(items ...*Value) *Value {
	children := make(ast.ChildValueList, 0, len(items))
	for _, item := range items {
		children = append(children, &ast.ChildValue{Value: item})
	}
	return &Value{Kind: ast.ListValue, Children: children}
}

// Strings returns a list of string values.
func Strings(items ...string) *Value {
	vals := make([]*Value, 0, len(items))
	for _, s := range items {
		vals = append(vals, String(s))
	}
	return List(vals...)
}

// ObjectField is a named entry of an object value.
func ObjectField(name string, v *Value) *ast.ChildValue {
	return &ast.ChildValue{Name: name, Value: v}
}

// Object returns an object value.
func Object(fields ...*ast.ChildValue) *Value {
	return &Value{Kind: ast.ObjectValue, Children: fields}
}

// Variables returns the names of all variables referenced by the value.
func Variables(v *Value) []string {
	if v == nil {
		return nil
	}
	if v.Kind == ast.Variable {
		return []string{v.Raw}
	}
	var out []string
	for _, c := range v.Children {
		out = append(out, Variables(c.Value)...)
	}
	return out
}
