package services

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/gql"
	"github.com/custodia-labs/contentsync/internal/logger"
)

// Pagination variables of list queries.
const (
	LimitVar  = "limit"
	OffsetVar = "offset"
)

// SynthesizedType is the generated query pair for one remote type.
// Both documents carry the identity fragment and are valid on their own.
type SynthesizedType struct {
	RemoteType domain.RemoteType
	Interface  string
	Identity   *gql.Fragment

	// SiteScoped is true when the identity selects the site id.
	SiteScoped bool

	NodeField string
	ListField string

	// NodeQuery is nil when the capability has no node query.
	NodeQuery *gql.Document

	// ListQuery is nil when the type cannot be listed on its own.
	ListQuery *gql.Document
}

// Synthesizer builds identity fragments and node/list queries.
type Synthesizer struct {
	cfg *domain.Config
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(cfg *domain.Config) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

// IdentityFragmentName returns the identity fragment name for a type.
func IdentityFragmentName(typeName string) string {
	return "_" + typeName + "ID_"
}

// Synthesize builds the queries for every discovered type. Interfaces are
// visited in name order and types in schema order, so equal input yields
// equal output. A type reachable through several interfaces is sourced
// through the first one.
func (s *Synthesizer) Synthesize(schema *domain.Schema, disc *domain.Discovery) ([]SynthesizedType, error) {
	query := schema.Query()
	seen := make(map[string]string)
	var out []SynthesizedType

	for _, iface := range disc.Interfaces() {
		c := disc.Capabilities[iface]

		var filter *regexp.Regexp
		if c.FilterArgument != "" && c.FilterTypeExpression != "" {
			re, err := regexp.Compile(c.FilterTypeExpression)
			if err != nil {
				return nil, fmt.Errorf("%w: filter expression of %s: %v", domain.ErrSchemaIntrospection, iface, err)
			}
			filter = re
		}

		for _, t := range c.Types {
			if first, dup := seen[t.Name]; dup {
				logger.Debug("Type %s already sourced through %s, skipping %s", t.Name, first, iface)
				continue
			}
			seen[t.Name] = iface

			st, err := s.synthesizeType(query, disc, c, filter, t)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *Synthesizer) synthesizeType(
	query *domain.TypeDef,
	disc *domain.Discovery,
	c *domain.Capability,
	filter *regexp.Regexp,
	t domain.RemoteType,
) (SynthesizedType, error) {
	withSite := t.SiteAware && s.cfg.MultiSite()

	identity := gql.NewFragment(IdentityFragmentName(t.Name), t.Name, gql.Leaf(domain.TypenameField, t.IDField())...)
	if withSite {
		identity.SelectionSet = append(identity.SelectionSet, &gql.Field{Name: domain.SiteIDField})
	}

	st := SynthesizedType{
		RemoteType: t,
		Interface:  c.Interface,
		Identity:   identity,
		SiteScoped: withSite,
		NodeField:  c.NodeQuery,
		ListField:  c.ListQuery,
	}

	if c.NodeQuery != "" {
		st.NodeQuery = s.nodeQuery(query, c, t, identity, withSite)
	}

	filterArg, listable := listFilter(c, filter, t.Name)
	if !listable {
		logger.Debug("Type %s is not listable through %s", t.Name, c.ListQuery)
		return st, nil
	}
	list, err := s.listQuery(query, disc, c, t, identity, filterArg)
	if err != nil {
		return SynthesizedType{}, err
	}
	st.ListQuery = list
	return st, nil
}

func (s *Synthesizer) nodeQuery(
	query *domain.TypeDef,
	c *domain.Capability,
	t domain.RemoteType,
	identity *gql.Fragment,
	withSite bool,
) *gql.Document {
	field, _ := query.Field(c.NodeQuery)

	vars := []*gql.VariableDefinition{gql.VarDef(domain.IDField, argType(field, domain.IDField, "ID"))}
	args := gql.ArgumentList{gql.Arg(domain.IDField, gql.Var(domain.IDField))}
	if _, ok := field.Arg(domain.SiteIDField); ok && withSite {
		vars = append(vars, gql.VarDef(domain.SiteIDField, argType(field, domain.SiteIDField, "ID")))
		args = append(args, gql.Arg(domain.SiteIDField, gql.Var(domain.SiteIDField)))
	}

	return gql.NewDocument(
		[]*gql.Fragment{identity},
		gql.Query("NODE_"+t.Name, vars, gql.NewField(c.NodeQuery, args, gql.Spread(identity.Name))),
	)
}

// listFilter returns the type filter argument and whether the type can be
// listed. With a filter, a type is listable when the expression's first
// capture group matches its name. Without one, only an interface with a
// single implementor can be listed, since the list would otherwise return
// every implementor for each type.
func listFilter(c *domain.Capability, filter *regexp.Regexp, typeName string) (*gql.Argument, bool) {
	if c.ListQuery == "" {
		return nil, false
	}
	if c.FilterArgument == "" {
		return nil, len(c.Types) == 1
	}
	if filter == nil {
		return nil, false
	}
	m := filter.FindStringSubmatch(typeName)
	if len(m) < 2 || m[1] == "" {
		return nil, false
	}
	return gql.Arg(c.FilterArgument, gql.String(m[1])), true
}

func (s *Synthesizer) listQuery(
	query *domain.TypeDef,
	disc *domain.Discovery,
	c *domain.Capability,
	t domain.RemoteType,
	identity *gql.Fragment,
	filterArg *gql.Argument,
) (*gql.Document, error) {
	field, _ := query.Field(c.ListQuery)

	var args gql.ArgumentList
	if filterArg != nil {
		args = append(args, filterArg)
	}
	args = append(args, gql.Arg(LimitVar, gql.Var(LimitVar)), gql.Arg(OffsetVar, gql.Var(OffsetVar)))

	sites := s.cfg.EnabledSites
	if len(sites) == 0 && disc.PrimarySiteID != "" {
		sites = []string{disc.PrimarySiteID}
	}
	if a, ok := siteArgument(field, sites); ok {
		args = append(args, a)
	}

	params := s.cfg.ParamsFor(c.Interface, t.Name)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := gql.ParseValue(params[k])
		if err != nil {
			return nil, fmt.Errorf("%w: sourcing param %s for %s: %v", domain.ErrInvalidInput, k, t.Name, err)
		}
		args = gql.SetArgument(args, gql.Arg(k, v))
	}

	vars := []*gql.VariableDefinition{
		gql.VarDef(LimitVar, argType(field, LimitVar, "Int")),
		gql.VarDef(OffsetVar, argType(field, OffsetVar, "Int")),
	}
	// A sourcing param may have replaced a pagination variable.
	used := make(map[string]bool)
	for _, a := range args {
		for _, name := range gql.Variables(a.Value) {
			used[name] = true
		}
	}
	declared := vars[:0]
	for _, v := range vars {
		if used[v.Variable] {
			declared = append(declared, v)
		}
	}

	return gql.NewDocument(
		[]*gql.Fragment{identity},
		gql.Query("LIST_"+t.Name, declared, gql.NewField(c.ListQuery, args, gql.Spread(identity.Name))),
	), nil
}

// siteArgument scopes field to sites when it declares a siteId argument.
// A field taking a single site gets the first one.
func siteArgument(field domain.FieldDef, sites []string) (*gql.Argument, bool) {
	siteArg, ok := field.Arg(domain.SiteIDField)
	if !ok || len(sites) == 0 {
		return nil, false
	}
	v := gql.String(sites[0])
	if siteArg.Type.IsList() {
		v = gql.Strings(sites...)
	} else if len(sites) > 1 {
		logger.Warn("%s.%s accepts a single site, using %s", field.Name, domain.SiteIDField, sites[0])
	}
	return gql.Arg(domain.SiteIDField, v), true
}

func argType(field domain.FieldDef, name, fallback string) string {
	if a, ok := field.Arg(name); ok && a.Type != nil {
		return a.Type.String()
	}
	return fallback
}
