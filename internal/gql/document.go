// Package gql builds GraphQL query documents as gqlparser ASTs.
//
// Callers assemble operations, fields, arguments and values from the
// constructors here and print them with the gqlparser formatter, so queries
// are never built by string interpolation. User supplied GraphQL text
// (fragments, argument literals) is parsed with gqlparser as well.
package gql

import "github.com/vektah/gqlparser/v2/ast"

// Document parts are the gqlparser AST nodes.
type (
	Document           = ast.QueryDocument
	Operation          = ast.OperationDefinition
	Fragment           = ast.FragmentDefinition
	Field              = ast.Field
	FragmentSpread     = ast.FragmentSpread
	Selection          = ast.Selection
	SelectionSet       = ast.SelectionSet
	Argument           = ast.Argument
	ArgumentList       = ast.ArgumentList
	VariableDefinition = ast.VariableDefinition
)

// NewDocument returns a document holding the fragments and operations.
func NewDocument(fragments []*Fragment, operations ...*Operation) *Document {
	return &Document{Fragments: fragments, Operations: operations}
}

// Query returns a named query operation.
func Query(name string, vars []*VariableDefinition, selections ...Selection) *Operation {
	return &Operation{
		Operation:           ast.Query,
		Name:                name,
		VariableDefinitions: vars,
		SelectionSet:        selections,
	}
}

// NewFragment returns a fragment definition on a type.
func NewFragment(name, typeCondition string, selections ...Selection) *Fragment {
	return &Fragment{Name: name, TypeCondition: typeCondition, SelectionSet: selections}
}

// NewField returns a field selection with arguments and sub-selections.
func NewField(name string, args ArgumentList, selections ...Selection) *Field {
	return &Field{Name: name, Arguments: args, SelectionSet: selections}
}

// Leaf returns field selections without arguments or sub-selections.
func Leaf(names ...string) SelectionSet {
	out := make(SelectionSet, 0, len(names))
	for _, n := range names {
		out = append(out, &Field{Name: n})
	}
	return out
}

// Spread returns a fragment spread selection.
func Spread(name string) *FragmentSpread {
	return &FragmentSpread{Name: name}
}

// Arg returns an argument.
func Arg(name string, v *Value) *Argument {
	return &Argument{Name: name, Value: v}
}

// VarDef declares an operation variable. typ is a GraphQL type reference as
// written, e.g. "Int" or "[QueryArgument]!".
func VarDef(name, typ string) *VariableDefinition {
	return &VariableDefinition{Variable: name, Type: ParseType(typ)}
}

// SetArgument replaces the argument with the same name in place,
// or appends it when no such argument exists.
func SetArgument(args ArgumentList, arg *Argument) ArgumentList {
	for i := range args {
		if args[i].Name == arg.Name {
			args[i] = arg
			return args
		}
	}
	return append(args, arg)
}

// VariableNames returns the names of the operation's variables in order.
func VariableNames(op *Operation) []string {
	names := make([]string, 0, len(op.VariableDefinitions))
	for _, v := range op.VariableDefinitions {
		names = append(names, v.Variable)
	}
	return names
}

// RootField returns the first top-level field of the operation, or nil.
func RootField(op *Operation) *Field {
	for _, sel := range op.SelectionSet {
		if f, ok := sel.(*Field); ok {
			return f
		}
	}
	return nil
}

// Spreads returns the names of all fragments spread anywhere in the selections.
func Spreads(set SelectionSet) []string {
	var names []string
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.FragmentSpread:
			names = append(names, s.Name)
		case *ast.Field:
			names = append(names, Spreads(s.SelectionSet)...)
		case *ast.InlineFragment:
			names = append(names, Spreads(s.SelectionSet)...)
		}
	}
	return names
}
