package gql

import (
	"strings"

	"github.com/vektah/gqlparser/v2/formatter"
)

const indent = "  "

// Print formats the document: operations first, then fragments, each
// definition ending with a newline. Output is stable for equal documents.
func Print(doc *Document) string {
	var b strings.Builder
	formatter.NewFormatter(&b, formatter.WithIndent(indent)).FormatQueryDocument(doc)
	return b.String()
}

// PrintFragment formats a single fragment definition.
func PrintFragment(f *Fragment) string {
	return Print(NewDocument([]*Fragment{f}))
}

// PrintOperation formats a single operation.
func PrintOperation(op *Operation) string {
	return Print(NewDocument(nil, op))
}
