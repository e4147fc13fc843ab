package gql

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ErrSyntax is returned when GraphQL text cannot be parsed.
var ErrSyntax = errors.New("graphql syntax error")

// FragmentInfo describes a fragment definition found in source text.
type FragmentInfo struct {
	Name          string
	TypeCondition string
	// Spreads lists fragments referenced from this fragment's selections.
	Spreads []string
}

// ParseFragments parses GraphQL source containing fragment definitions.
// Operations in the source are rejected.
func ParseFragments(name, src string) ([]FragmentInfo, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: name, Input: src})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSyntax, name, err)
	}
	if len(doc.Operations) > 0 {
		return nil, fmt.Errorf("%w: %s: only fragment definitions are allowed", ErrSyntax, name)
	}
	if len(doc.Fragments) == 0 {
		return nil, fmt.Errorf("%w: %s: no fragment definition found", ErrSyntax, name)
	}
	out := make([]FragmentInfo, 0, len(doc.Fragments))
	for _, f := range doc.Fragments {
		out = append(out, FragmentInfo{
			Name:          f.Name,
			TypeCondition: f.TypeCondition,
			Spreads:       Spreads(f.SelectionSet),
		})
	}
	return out, nil
}

// Validate checks that src is a syntactically valid executable document.
func Validate(src string) error {
	if _, err := parser.ParseQuery(&ast.Source{Name: "document", Input: src}); err != nil {
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return nil
}

// ParseValue parses a GraphQL input literal such as `"live"`, `5` or
// `["live", "pending"]`. Variables are not allowed.
func ParseValue(literal string) (*Value, error) {
	src := "query { f(v: " + literal + ") }"
	doc, err := parser.ParseQuery(&ast.Source{Name: "literal", Input: src})
	if err != nil {
		return nil, fmt.Errorf("%w: literal %q: %v", ErrSyntax, literal, err)
	}
	if len(doc.Operations) != 1 || len(doc.Operations[0].SelectionSet) != 1 {
		return nil, fmt.Errorf("%w: literal %q", ErrSyntax, literal)
	}
	field, ok := doc.Operations[0].SelectionSet[0].(*ast.Field)
	if !ok || len(field.Arguments) != 1 {
		return nil, fmt.Errorf("%w: literal %q", ErrSyntax, literal)
	}
	v := field.Arguments[0].Value
	if len(Variables(v)) > 0 {
		return nil, fmt.Errorf("%w: variables are not allowed in literal %q", ErrSyntax, literal)
	}
	return v, nil
}

// ParseType parses a type reference such as `[QueryArgument]!`. Text that
// does not parse is kept as a named type.
func ParseType(typ string) *ast.Type {
	src := "query($v: " + typ + ") { f }"
	doc, err := parser.ParseQuery(&ast.Source{Name: "type", Input: src})
	if err != nil || len(doc.Operations) != 1 || len(doc.Operations[0].VariableDefinitions) != 1 {
		return ast.NamedType(typ, nil)
	}
	return doc.Operations[0].VariableDefinitions[0].Type
}
