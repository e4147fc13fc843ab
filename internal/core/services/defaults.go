package services

import (
	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/gql"
)

// DefaultFragments generates one fragment file per synthesized type.
//
// A default fragment selects every scalar and enum field without required
// arguments, references to other content nodes as {__typename id}, and one
// level of nested plain objects.
func DefaultFragments(schema *domain.Schema, disc *domain.Discovery, types []SynthesizedType) []domain.Fragment {
	out := make([]domain.Fragment, 0, len(types))
	for _, st := range types {
		t := st.RemoteType
		sels := append(gql.Leaf(domain.TypenameField), defaultSelections(schema, disc, t.Fields, true)...)
		f := gql.NewFragment(t.Name, t.Name, sels...)
		out = append(out, domain.Fragment{
			Name:        t.Name,
			Source:      gql.PrintFragment(f),
			Origin:      domain.OriginDefault,
			Definitions: []domain.FragmentDef{{Name: f.Name, TypeCondition: f.TypeCondition}},
		})
	}
	return out
}

func defaultSelections(schema *domain.Schema, disc *domain.Discovery, fields []domain.FieldDef, nest bool) gql.SelectionSet {
	var sels gql.SelectionSet
	for _, f := range fields {
		if domain.IsIntrospectionName(f.Name) || f.Name == domain.TypenameField || f.HasRequiredArgs() {
			continue
		}
		named, ok := schema.Type(f.Type.NamedType())
		if !ok {
			continue
		}
		switch named.Kind {
		case domain.KindScalar, domain.KindEnum:
			sels = append(sels, &gql.Field{Name: f.Name})
		case domain.KindObject, domain.KindInterface:
			if isNodeReference(schema, disc, named) {
				if named.HasField(domain.IDField) {
					sels = append(sels, gql.NewField(f.Name, nil, gql.Leaf(domain.TypenameField, domain.IDField)...))
				}
				continue
			}
			if !nest || named.Kind != domain.KindObject {
				continue
			}
			if inner := defaultSelections(schema, disc, named.Fields, false); len(inner) > 0 {
				sels = append(sels, gql.NewField(f.Name, nil, inner...))
			}
		}
	}
	return sels
}

// isNodeReference reports whether values of the type are content nodes
// sourced on their own.
func isNodeReference(schema *domain.Schema, disc *domain.Discovery, t *domain.TypeDef) bool {
	if disc.IsNodeType(t.Name) {
		return true
	}
	for _, pt := range schema.PossibleTypes(t.Name) {
		if disc.IsNodeType(pt.Name) {
			return true
		}
	}
	return false
}

// MandatoryFragmentName returns the fragment that keeps id selectable on an interface.
func MandatoryFragmentName(iface string) string {
	return "_" + iface + "NodeID_"
}

// MandatoryFragments returns the fragments every compiled query needs
// regardless of user configuration: an id selection on each discovered
// interface, so draft-aware types still expose the interface id.
func MandatoryFragments(schema *domain.Schema, disc *domain.Discovery) []domain.Fragment {
	var out []domain.Fragment
	for _, iface := range disc.Interfaces() {
		t, ok := schema.Type(iface)
		if !ok || !t.HasField(domain.IDField) {
			continue
		}
		f := gql.NewFragment(MandatoryFragmentName(iface), iface, gql.Leaf(domain.IDField)...)
		out = append(out, domain.Fragment{
			Name:        "_" + iface,
			Source:      gql.PrintFragment(f),
			Origin:      domain.OriginMandatory,
			Definitions: []domain.FragmentDef{{Name: f.Name, TypeCondition: iface}},
		})
	}
	return out
}
