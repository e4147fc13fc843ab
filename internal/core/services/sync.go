package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
	"github.com/custodia-labs/contentsync/internal/core/ports/driving"
	"github.com/custodia-labs/contentsync/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncService = (*SyncOrchestrator)(nil)

// runHistory is the number of runs kept by the run store.
const runHistory = 100

// SyncOrchestrator runs sync cycles: it decides between a full and a delta
// pass, hands the work to the sourcer and persists the checkpoint only after
// the sourcer succeeded.
type SyncOrchestrator struct {
	planner     driving.PlanService
	decision    *DecisionEngine
	sourcer     driven.Sourcer
	checkpoints driven.CheckpointStore
	nodes       driven.NodeStore
	runs        driven.SyncRunStore

	running sync.Mutex

	mu     sync.RWMutex
	active *domain.SyncRun
	now    func() time.Time
}

// NewSyncOrchestrator creates a sync orchestrator. runs may be nil.
func NewSyncOrchestrator(
	planner driving.PlanService,
	decision *DecisionEngine,
	sourcer driven.Sourcer,
	checkpoints driven.CheckpointStore,
	nodes driven.NodeStore,
	runs driven.SyncRunStore,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		planner:     planner,
		decision:    decision,
		sourcer:     sourcer,
		checkpoints: checkpoints,
		nodes:       nodes,
		runs:        runs,
		now:         time.Now,
	}
}

// Sync runs one cycle. Only one cycle runs at a time; a concurrent call
// fails with domain.ErrSyncInProgress.
func (o *SyncOrchestrator) Sync(ctx context.Context, req driving.SyncRequest) (*domain.SyncRun, error) {
	if !o.running.TryLock() {
		return nil, domain.ErrSyncInProgress
	}
	defer o.running.Unlock()

	run := &domain.SyncRun{ID: uuid.NewString(), StartedAt: o.now()}
	o.setActive(run)
	defer o.setActive(nil)

	err := o.sync(ctx, req, run)

	run.EndedAt = o.now()
	run.Success = err == nil
	if err != nil {
		run.Error = err.Error()
	}
	o.record(ctx, run)

	if err != nil {
		return run, err
	}
	logger.Info("Sync %s complete: mode=%s updated=%d deleted=%d", run.ID, run.Mode, run.Updated, run.Deleted)
	return run, nil
}

func (o *SyncOrchestrator) sync(ctx context.Context, req driving.SyncRequest, run *domain.SyncRun) error {
	logger.Section("Sync " + run.ID)

	plan, err := o.planner.Plan(ctx)
	if errors.Is(err, domain.ErrIncompatibleSource) {
		logger.Warn("Remote source is not compatible, skipping sourcing: %v", err)
		run.Mode = domain.SyncModeSkipped
		return nil
	}
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	if req.Webhook != nil {
		run.Mode = domain.SyncModeWebhook
		return o.syncWebhook(ctx, plan, req.Webhook, run)
	}

	remote, err := o.decision.RemoteState(ctx)
	if err != nil {
		return err
	}
	local, err := LoadSyncState(ctx, o.checkpoints)
	if err != nil {
		return err
	}
	if req.Full {
		logger.Info("Full sync requested, ignoring checkpoint")
		local = domain.SyncState{}
	}

	var res *domain.SourceResult
	run.Mode = DecideMode(remote, local)
	switch run.Mode {
	case domain.SyncModeFull:
		logger.Info("Cached content is unavailable or outdated, sourcing all nodes")
		res, err = o.sourcer.SourceAll(ctx, plan)
	default:
		logger.Info("Config version unchanged, checking for changes since %s", local.LastContentUpdateTime)
		var events []domain.ChangeEvent
		events, err = o.decision.FetchChanges(ctx, local.LastContentUpdateTime)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			logger.Info("No content changes found")
		} else {
			logger.Info("Sourcing changes for %d nodes", len(events))
		}
		res, err = o.sourcer.SourceChanges(ctx, plan, events, nil)
	}
	applyResult(run, res)
	if err != nil {
		return fmt.Errorf("%s sync: %w", run.Mode, err)
	}

	return SaveSyncState(ctx, o.checkpoints, domain.SyncState{
		ConfigVersion:         remote.ConfigVersion,
		LastContentUpdateTime: remote.LastUpdateTime,
	})
}

func (o *SyncOrchestrator) syncWebhook(
	ctx context.Context,
	plan *domain.SourcingPlan,
	payload *domain.WebhookPayload,
	run *domain.SyncRun,
) error {
	logger.Info("Processing webhook")
	ev, token, ok := WebhookEvent(*payload)
	if !ok {
		logger.Info("Ignoring webhook with unrecognised operation %q", payload.Operation)
		return nil
	}
	res, err := o.sourcer.SourceChanges(ctx, plan, []domain.ChangeEvent{ev}, token)
	applyResult(run, res)
	if err != nil {
		return fmt.Errorf("webhook sync: %w", err)
	}
	return nil
}

func applyResult(run *domain.SyncRun, res *domain.SourceResult) {
	if res == nil {
		return
	}
	run.Updated = res.Updated
	run.Deleted = res.Deleted
}

// Status returns the current sync status.
func (o *SyncOrchestrator) Status(ctx context.Context) (*driving.SyncStatus, error) {
	status := &driving.SyncStatus{}

	o.mu.RLock()
	if o.active != nil {
		status.Running = true
		status.RunID = o.active.ID
	}
	o.mu.RUnlock()

	state, err := LoadSyncState(ctx, o.checkpoints)
	if err != nil {
		return nil, err
	}
	status.Checkpoint = state

	if status.NodeCounts, err = o.nodes.Counts(ctx); err != nil {
		return nil, fmt.Errorf("count nodes: %w", err)
	}

	if o.runs != nil {
		if status.Recent, err = o.runs.Recent(ctx, 5); err != nil {
			return nil, fmt.Errorf("recent runs: %w", err)
		}
	}
	return status, nil
}

// Reset forgets the checkpoint so the next cycle is a full sync.
func (o *SyncOrchestrator) Reset(ctx context.Context) error {
	for _, key := range []string{domain.KeyConfigVersion, domain.KeyLastContentUpdate} {
		if err := o.checkpoints.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

func (o *SyncOrchestrator) record(ctx context.Context, run *domain.SyncRun) {
	if o.runs == nil {
		return
	}
	if err := o.runs.Record(ctx, run); err != nil {
		logger.Warn("Failed to record sync run %s: %v", run.ID, err)
		return
	}
	if err := o.runs.Prune(ctx, runHistory); err != nil {
		logger.Warn("Failed to prune sync history: %v", err)
	}
}

func (o *SyncOrchestrator) setActive(run *domain.SyncRun) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = run
}

// LoadSyncState reads the checkpoint. Missing keys read as empty values.
func LoadSyncState(ctx context.Context, store driven.CheckpointStore) (domain.SyncState, error) {
	version, err := getOptional(ctx, store, domain.KeyConfigVersion)
	if err != nil {
		return domain.SyncState{}, err
	}
	updated, err := getOptional(ctx, store, domain.KeyLastContentUpdate)
	if err != nil {
		return domain.SyncState{}, err
	}
	return domain.SyncState{ConfigVersion: version, LastContentUpdateTime: updated}, nil
}

// SaveSyncState writes the checkpoint.
func SaveSyncState(ctx context.Context, store driven.CheckpointStore, state domain.SyncState) error {
	if err := store.Set(ctx, domain.KeyConfigVersion, state.ConfigVersion); err != nil {
		return fmt.Errorf("save %s: %w", domain.KeyConfigVersion, err)
	}
	if err := store.Set(ctx, domain.KeyLastContentUpdate, state.LastContentUpdateTime); err != nil {
		return fmt.Errorf("save %s: %w", domain.KeyLastContentUpdate, err)
	}
	return nil
}

func getOptional(ctx context.Context, store driven.CheckpointStore, key string) (string, error) {
	v, err := store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}
