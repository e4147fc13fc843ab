package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/logger"
)

// MergeMode selects how interface fields are merged.
type MergeMode string

// Merge modes.
const (
	// MergeStrict uses the fields the interface declares.
	MergeStrict MergeMode = "strict"

	// MergeLoose unions the fields of every implementor.
	MergeLoose MergeMode = "loose"
)

// skippedFields are identity and graph navigation fields never merged.
var skippedFields = map[string]bool{
	domain.IDField:       true,
	domain.TypenameField: true,
	"parent":             true,
	"children":           true,
	"ancestors":          true,
	"descendants":        true,
	"next":               true,
	"prev":               true,
	"nextSibling":        true,
	"prevSibling":        true,
	"siblings":           true,
	"localized":          true,
	"drafts":             true,
	"revisions":          true,
}

// InterfaceMerger builds local interface definitions.
type InterfaceMerger struct {
	schema *domain.Schema
	disc   *domain.Discovery
	prefix string
}

// NewInterfaceMerger creates a merger. Named object types in the output are
// prefixed with prefix.
func NewInterfaceMerger(schema *domain.Schema, disc *domain.Discovery, prefix string) *InterfaceMerger {
	return &InterfaceMerger{schema: schema, disc: disc, prefix: prefix}
}

// MergeFields returns the field set of the interface.
//
// Strict mode keeps the fields declared on the interface. Loose mode unions
// the fields of every implementor, dropping non-null fields and fields with
// required arguments. In both modes identity and navigation fields are
// skipped and DateTime becomes JSON. A name seen twice keeps its first
// position and takes the type of the last implementor declaring it.
func (m *InterfaceMerger) MergeFields(iface string, mode MergeMode) ([]domain.MergedField, error) {
	t, ok := m.schema.Type(iface)
	if !ok {
		return nil, fmt.Errorf("%w: interface %s", domain.ErrNotFound, iface)
	}

	if mode == MergeStrict {
		var out []domain.MergedField
		for _, f := range t.Fields {
			if skippedFields[f.Name] || f.HasRequiredArgs() {
				continue
			}
			out = append(out, domain.MergedField{Name: f.Name, Type: m.localType(f.Type)})
		}
		return out, nil
	}

	var out []domain.MergedField
	index := make(map[string]int)
	for _, impl := range m.schema.PossibleTypes(iface) {
		for _, f := range impl.Fields {
			if skippedFields[f.Name] {
				continue
			}
			if f.Type.NonNull() || f.HasRequiredArgs() {
				logger.Debug("Not merging %s.%s into %s", impl.Name, f.Name, iface)
				continue
			}
			field := domain.MergedField{Name: f.Name, Type: m.localType(f.Type)}
			if i, seen := index[f.Name]; seen {
				out[i] = field
				continue
			}
			index[f.Name] = len(out)
			out = append(out, field)
		}
	}
	return out, nil
}

// localType renders a remote type reference for a local definition.
// DateTime and custom scalars become JSON, built-in scalars are kept and
// named composite types receive the prefix.
func (m *InterfaceMerger) localType(ref *domain.TypeRef) string {
	if ref == nil {
		return "JSON"
	}
	switch ref.Kind {
	case domain.KindNonNull:
		return m.localType(ref.OfType) + "!"
	case domain.KindList:
		return "[" + m.localType(ref.OfType) + "]"
	}
	if domain.IsBuiltinScalar(ref.Name) {
		return ref.Name
	}
	t, ok := m.schema.Type(ref.Name)
	if !ok || t.Kind == domain.KindScalar {
		return "JSON"
	}
	return m.prefix + ref.Name
}

// Definitions renders an SDL interface definition for every discovered
// interface, each carrying id and its merged fields.
func (m *InterfaceMerger) Definitions(mode MergeMode) (string, error) {
	var b strings.Builder
	for i, iface := range m.disc.Interfaces() {
		fields, err := m.MergeFields(iface, mode)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "interface %s%s @nodeInterface {\n  id: ID!\n", m.prefix, iface)
		for _, f := range fields {
			fmt.Fprintf(&b, "  %s: %s\n", f.Name, f.Type)
		}
		b.WriteString("}\n")
	}
	return b.String(), nil
}
