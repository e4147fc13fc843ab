package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
	"github.com/custodia-labs/contentsync/internal/core/ports/driving"
	"github.com/custodia-labs/contentsync/internal/logger"
)

// Ensure Planner implements the interface.
var _ driving.PlanService = (*Planner)(nil)

// SchemaFileName is the debug file receiving interface definitions.
const SchemaFileName = "schema"

// Planner runs the initialisation phase and caches the resulting plan.
type Planner struct {
	cfg        *domain.Config
	schemas    *SchemaCache
	discoverer *Discoverer
	synth      *Synthesizer
	reconciler *FragmentReconciler
	repo       driven.FragmentRepository

	group singleflight.Group
	mu    sync.RWMutex
	plan  *domain.SourcingPlan
}

// NewPlanner creates a planner.
func NewPlanner(
	cfg *domain.Config,
	schemas *SchemaCache,
	discoverer *Discoverer,
	repo driven.FragmentRepository,
) *Planner {
	return &Planner{
		cfg:        cfg,
		schemas:    schemas,
		discoverer: discoverer,
		synth:      NewSynthesizer(cfg),
		reconciler: NewFragmentReconciler(repo),
		repo:       repo,
	}
}

// Plan returns the sourcing plan. Concurrent first callers share one build.
// An incompatible source returns an error matching domain.ErrIncompatibleSource.
func (p *Planner) Plan(ctx context.Context) (*domain.SourcingPlan, error) {
	p.mu.RLock()
	plan := p.plan
	p.mu.RUnlock()
	if plan != nil {
		return plan, nil
	}

	v, err := doShared(ctx, &p.group, "plan", func(ctx context.Context) (any, error) {
		plan, err := p.build(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.plan = plan
		p.mu.Unlock()
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.SourcingPlan), nil
}

// Invalidate drops the cached plan. Schema and discovery stay cached.
func (p *Planner) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plan = nil
}

// Defaults returns the generated default fragments.
func (p *Planner) Defaults(ctx context.Context) ([]domain.Fragment, error) {
	schema, disc, types, err := p.synthesize(ctx)
	if err != nil {
		return nil, err
	}
	return DefaultFragments(schema, disc, types), nil
}

func (p *Planner) synthesize(ctx context.Context) (*domain.Schema, *domain.Discovery, []SynthesizedType, error) {
	schema, err := p.schemas.Get(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	disc, err := p.discoverer.Discover(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	types, err := p.synth.Synthesize(schema, disc)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("synthesize queries: %w", err)
	}
	return schema, disc, types, nil
}

func (p *Planner) build(ctx context.Context) (*domain.SourcingPlan, error) {
	logger.Section("Planning")

	schema, disc, types, err := p.synthesize(ctx)
	if err != nil {
		return nil, err
	}

	defaults := DefaultFragments(schema, disc, types)
	if _, err := EnsureUserFragments(ctx, p.repo, defaults); err != nil {
		return nil, err
	}
	set, err := p.reconciler.Reconcile(ctx, defaults, MandatoryFragments(schema, disc))
	if err != nil {
		return nil, err
	}

	plan := &domain.SourcingPlan{
		Discovery: disc,
		Fragments: set,
		Types:     make([]domain.TypePlan, 0, len(types)),
		CreatedAt: time.Now(),
	}
	for _, st := range types {
		tp, err := Compile(st, set)
		if err != nil {
			return nil, err
		}
		plan.Types = append(plan.Types, tp)
		if err := p.repo.WriteDebug(ctx, st.RemoteType.Name, debugDocument(tp)); err != nil {
			logger.Warn("Could not write compiled document for %s: %v", st.RemoteType.Name, err)
		}
	}

	mode := MergeStrict
	if p.cfg.LooseInterfaces {
		mode = MergeLoose
	}
	defs, err := NewInterfaceMerger(schema, disc, p.cfg.TypePrefix).Definitions(mode)
	if err != nil {
		return nil, err
	}
	plan.TypeDefinitions = defs
	if err := p.repo.WriteDebug(ctx, SchemaFileName, defs); err != nil {
		logger.Warn("Could not write interface definitions: %v", err)
	}

	logger.Info("Planned %d types across %d interfaces", len(plan.Types), len(disc.Capabilities))
	return plan, nil
}

// debugDocument joins the compiled queries of a type for inspection.
func debugDocument(tp domain.TypePlan) string {
	var out string
	for _, q := range []*domain.QueryDocument{tp.NodeQuery, tp.ListQuery} {
		if q == nil {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += "# " + q.OperationName + "\n" + q.Text
	}
	return out
}
