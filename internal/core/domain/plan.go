package domain

import "time"

// QueryDocument is a compiled, self-contained query for one operation.
type QueryDocument struct {
	// OperationName is the name of the single operation in Text.
	OperationName string

	// Text is the operation plus every fragment it needs.
	Text string

	// Variables lists the variables the operation declares.
	Variables []string
}

// TypePlan holds everything needed to source one remote type.
type TypePlan struct {
	RemoteType RemoteType

	// Interface is the capability the type is sourced through.
	Interface string

	// IdentityFragment names the fragment selecting the type's identity.
	IdentityFragment string

	// SiteScoped is true when the identity fragment selects the site id.
	// Only then are nodes of the type keyed per site.
	SiteScoped bool

	// NodeField and ListField are the root fields the queries select.
	NodeField string
	ListField string

	// NodeQuery fetches one instance; nil when the capability has no node query.
	NodeQuery *QueryDocument

	// ListQuery pages through all instances; nil when the type cannot be
	// listed on its own.
	ListQuery *QueryDocument
}

// MergedField is one field of a merged interface definition.
type MergedField struct {
	Name string
	Type string
}

// SourcingPlan is the immutable result of the initialisation phase.
type SourcingPlan struct {
	Discovery *Discovery
	Types     []TypePlan
	Fragments FragmentSet

	// TypeDefinitions is the SDL of the merged interface definitions.
	TypeDefinitions string

	CreatedAt time.Time
}

// Type returns the plan for the named remote type.
func (p *SourcingPlan) Type(name string) (*TypePlan, bool) {
	for i := range p.Types {
		if p.Types[i].RemoteType.Name == name {
			return &p.Types[i], true
		}
	}
	return nil, false
}
