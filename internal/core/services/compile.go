package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/gql"
)

// Compile turns a synthesized type into a TypePlan whose queries select the
// identity fragment, the type's effective fragment and the mandatory
// fragment of its interface, with every fragment they need inlined.
func Compile(st SynthesizedType, set domain.FragmentSet) (domain.TypePlan, error) {
	plan := domain.TypePlan{
		RemoteType:       st.RemoteType,
		Interface:        st.Interface,
		IdentityFragment: st.Identity.Name,
		SiteScoped:       st.SiteScoped,
		NodeField:        st.NodeField,
		ListField:        st.ListField,
	}
	spreads := effectiveSpreads(st, set)

	var err error
	if st.NodeQuery != nil {
		if plan.NodeQuery, err = compileDocument(st, st.NodeQuery, spreads, set); err != nil {
			return domain.TypePlan{}, err
		}
	}
	if st.ListQuery != nil {
		if plan.ListQuery, err = compileDocument(st, st.ListQuery, spreads, set); err != nil {
			return domain.TypePlan{}, err
		}
	}
	return plan, nil
}

// effectiveSpreads returns the fragment names to spread into the root field.
func effectiveSpreads(st SynthesizedType, set domain.FragmentSet) []string {
	applies := map[string]bool{st.RemoteType.Name: true}
	for _, iface := range st.RemoteType.Interfaces {
		applies[iface] = true
	}

	var names []string
	if f, ok := set[st.RemoteType.Name]; ok {
		for _, def := range f.Definitions {
			if applies[def.TypeCondition] {
				names = append(names, def.Name)
			}
		}
	}
	if f, ok := set["_"+st.Interface]; ok && f.Origin == domain.OriginMandatory {
		for _, def := range f.Definitions {
			names = append(names, def.Name)
		}
	}
	return names
}

func compileDocument(
	st SynthesizedType,
	doc *gql.Document,
	spreads []string,
	set domain.FragmentSet,
) (*domain.QueryDocument, error) {
	op := *doc.Operations[0]
	root := *gql.RootField(&op)
	root.SelectionSet = append(gql.SelectionSet(nil), root.SelectionSet...)
	for _, name := range spreads {
		root.SelectionSet = append(root.SelectionSet, gql.Spread(name))
	}
	op.SelectionSet = gql.SelectionSet{&root}

	files, err := requiredFiles(gql.Spreads(op.SelectionSet), st.Identity.Name, set)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", op.Name, err)
	}

	var b strings.Builder
	b.WriteString(gql.PrintFragment(st.Identity))
	for _, name := range files {
		b.WriteString(strings.TrimSpace(set[name].Source))
		b.WriteString("\n")
	}
	b.WriteString(gql.PrintOperation(&op))

	text := b.String()
	if err := gql.Validate(text); err != nil {
		return nil, fmt.Errorf("%w: compile %s: %v", domain.ErrInvalidFragment, op.Name, err)
	}

	return &domain.QueryDocument{OperationName: op.Name, Text: text, Variables: gql.VariableNames(&op)}, nil
}

// requiredFiles resolves the fragment files needed by the spreads,
// following spreads inside fragments transitively.
func requiredFiles(spreads []string, identity string, set domain.FragmentSet) ([]string, error) {
	files := make(map[string]bool)
	visited := map[string]bool{identity: true}
	queue := append([]string(nil), spreads...)

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true

		file, ok := set.Definer(name)
		if !ok {
			return nil, fmt.Errorf("%w: fragment %s is not defined", domain.ErrInvalidFragment, name)
		}
		if files[file] {
			continue
		}
		files[file] = true
		for _, def := range set[file].Definitions {
			visited[def.Name] = true
			queue = append(queue, def.Spreads...)
		}
	}

	out := make([]string, 0, len(files))
	for name := range files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
