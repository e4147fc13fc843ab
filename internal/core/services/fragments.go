package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
	"github.com/custodia-labs/contentsync/internal/gql"
	"github.com/custodia-labs/contentsync/internal/logger"
)

// FragmentReconciler materialises the effective fragment set.
type FragmentReconciler struct {
	repo driven.FragmentRepository
}

// NewFragmentReconciler creates a reconciler.
func NewFragmentReconciler(repo driven.FragmentRepository) *FragmentReconciler {
	return &FragmentReconciler{repo: repo}
}

// Reconcile clears the working set, writes every default fragment, overlays
// user fragments of the same name and finally writes the mandatory
// fragments. User fragments always win over defaults; overrides are logged.
// A user fragment that does not parse fails with domain.ErrInvalidFragment.
func (r *FragmentReconciler) Reconcile(
	ctx context.Context,
	defaults []domain.Fragment,
	mandatory []domain.Fragment,
) (domain.FragmentSet, error) {
	if err := r.repo.ResetWorking(ctx); err != nil {
		return nil, fmt.Errorf("reset working fragments: %w", err)
	}

	set := make(domain.FragmentSet, len(defaults))
	for _, f := range defaults {
		if err := r.write(ctx, set, f); err != nil {
			return nil, err
		}
	}

	user, err := r.repo.UserFragments(ctx)
	if err != nil {
		return nil, fmt.Errorf("read user fragments: %w", err)
	}
	names := make([]string, 0, len(user))
	for name := range user {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, err := ParseFragmentFile(name, user[name], domain.OriginUser)
		if err != nil {
			return nil, err
		}
		if prev, ok := set[name]; ok {
			logger.Info("Fragment %s overrides the %s fragment", name, prev.Origin)
		}
		if err := r.write(ctx, set, f); err != nil {
			return nil, err
		}
	}

	for _, f := range mandatory {
		if prev, ok := set[f.Name]; ok && prev.Origin == domain.OriginUser {
			logger.Warn("Fragment %s is reserved and was replaced", f.Name)
		}
		if err := r.write(ctx, set, f); err != nil {
			return nil, err
		}
	}

	logger.Info("Effective fragment set has %d files (%d user)", len(set), len(user))
	return set, nil
}

func (r *FragmentReconciler) write(ctx context.Context, set domain.FragmentSet, f domain.Fragment) error {
	if err := r.repo.WriteWorking(ctx, f.Name, f.Source); err != nil {
		return fmt.Errorf("write fragment %s: %w", f.Name, err)
	}
	set[f.Name] = f
	return nil
}

// ParseFragmentFile parses one fragment file into a Fragment.
func ParseFragmentFile(name, source string, origin domain.FragmentOrigin) (domain.Fragment, error) {
	infos, err := gql.ParseFragments(name+".graphql", source)
	if err != nil {
		return domain.Fragment{}, fmt.Errorf("%w: %v", domain.ErrInvalidFragment, err)
	}
	defs := make([]domain.FragmentDef, 0, len(infos))
	for _, info := range infos {
		defs = append(defs, domain.FragmentDef{
			Name:          info.Name,
			TypeCondition: info.TypeCondition,
			Spreads:       info.Spreads,
		})
	}
	return domain.Fragment{Name: name, Source: source, Origin: origin, Definitions: defs}, nil
}

// EnsureUserFragments writes the default fragments to the user directory
// when it holds no fragment yet. It returns the names written.
func EnsureUserFragments(ctx context.Context, repo driven.FragmentRepository, defaults []domain.Fragment) ([]string, error) {
	user, err := repo.UserFragments(ctx)
	if err != nil {
		return nil, fmt.Errorf("read user fragments: %w", err)
	}
	if len(user) > 0 {
		logger.Info("%d fragments found, skipping writing default fragments", len(user))
		return nil, nil
	}
	logger.Info("No fragments found, writing default fragments")
	return WriteMissingFragments(ctx, repo, defaults)
}

// WriteMissingFragments writes every default fragment that has no user file.
func WriteMissingFragments(ctx context.Context, repo driven.FragmentRepository, defaults []domain.Fragment) ([]string, error) {
	var written []string
	for _, f := range defaults {
		ok, err := repo.WriteUserFragment(ctx, f.Name, f.Source)
		if err != nil {
			return written, fmt.Errorf("write fragment %s: %w", f.Name, err)
		}
		if ok {
			written = append(written, f.Name)
		}
	}
	return written, nil
}
