package domain

import "sort"

// Field names with sourcing meaning on remote types.
const (
	IDField       = "id"
	DraftIDField  = "sourceId"
	SiteIDField   = "siteId"
	TypenameField = "__typename"
)

// RemoteType is a concrete content type known to the remote schema.
type RemoteType struct {
	// Name is the remote type name.
	Name string

	// Interfaces lists the discovered interfaces the type implements, sorted.
	Interfaces []string

	// Fields is the type's field set, in schema order.
	Fields []FieldDef

	// DraftAware is true when the type exposes the canonical draft id.
	DraftAware bool

	// SiteAware is true when the type exposes a site id.
	SiteAware bool
}

// IDField returns the field that identifies an instance of the type.
func (r RemoteType) IDField() string {
	if r.DraftAware {
		return DraftIDField
	}
	return IDField
}

// Capability is one sourcing contract advertised by the remote source.
type Capability struct {
	// Interface is the target interface the contract applies to.
	Interface string

	// ListQuery is the root field listing instances.
	ListQuery string

	// NodeQuery is the root field fetching a single instance.
	NodeQuery string

	// FilterArgument scopes ListQuery to one concrete type.
	FilterArgument string

	// FilterTypeExpression is a regular expression applied to a concrete
	// type name; its first capture group is the FilterArgument value.
	FilterTypeExpression string

	// Types are the concrete types implementing Interface, in schema order.
	Types []RemoteType
}

// SchemaMeta is global metadata advertised next to the capabilities.
type SchemaMeta struct {
	ConfigVersion          string
	LastUpdateTime         string
	PrimarySiteID          string
	SchemaTypePrefix       string
	ConnectorPluginVersion string
	RemoteSoftwareVersion  string
}

// Discovery is the result of capability discovery.
type Discovery struct {
	// Capabilities is keyed by interface name.
	Capabilities map[string]*Capability

	// PrimarySiteID is the remote default site.
	PrimarySiteID string

	// Meta is the advertised metadata.
	Meta SchemaMeta
}

// Compatible reports whether the remote source advertised any capability.
func (d *Discovery) Compatible() bool {
	return d != nil && len(d.Capabilities) > 0
}

// Interfaces returns the discovered interface names, sorted.
func (d *Discovery) Interfaces() []string {
	names := make([]string, 0, len(d.Capabilities))
	for name := range d.Capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeCount returns the number of distinct concrete types.
func (d *Discovery) TypeCount() int {
	seen := make(map[string]struct{})
	for _, c := range d.Capabilities {
		for _, t := range c.Types {
			seen[t.Name] = struct{}{}
		}
	}
	return len(seen)
}

// IsNodeType reports whether name is a discovered concrete type or interface.
func (d *Discovery) IsNodeType(name string) bool {
	if _, ok := d.Capabilities[name]; ok {
		return true
	}
	for _, c := range d.Capabilities {
		for _, t := range c.Types {
			if t.Name == name {
				return true
			}
		}
	}
	return false
}
