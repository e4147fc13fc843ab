package domain

import "sort"

// FragmentOrigin records who authored a fragment.
type FragmentOrigin string

// Fragment origins.
const (
	OriginDefault   FragmentOrigin = "default"
	OriginUser      FragmentOrigin = "user"
	OriginMandatory FragmentOrigin = "mandatory"
)

// FragmentDef is one fragment definition inside a fragment file.
type FragmentDef struct {
	Name          string
	TypeCondition string
	Spreads       []string
}

// Fragment is one fragment file.
type Fragment struct {
	// Name is the file stem, usually the remote type name.
	Name string

	// Source is the file content.
	Source string

	// Origin records who authored the file.
	Origin FragmentOrigin

	// Definitions are the fragments the file defines.
	Definitions []FragmentDef
}

// FragmentSet is the effective set of fragment files keyed by file stem.
type FragmentSet map[string]Fragment

// Names returns the file stems, sorted.
func (s FragmentSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definer returns the file stem defining the named fragment.
func (s FragmentSet) Definer(fragmentName string) (string, bool) {
	for _, name := range s.Names() {
		for _, def := range s[name].Definitions {
			if def.Name == fragmentName {
				return name, true
			}
		}
	}
	return "", false
}
