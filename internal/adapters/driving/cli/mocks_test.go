package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driving"
)

// mockSyncService implements driving.SyncService and Resetter for testing.
type mockSyncService struct {
	reqs     []driving.SyncRequest
	run      *domain.SyncRun
	err      error
	status   *driving.SyncStatus
	resetErr error
	resets   int
}

func (m *mockSyncService) Sync(_ context.Context, req driving.SyncRequest) (*domain.SyncRun, error) {
	m.reqs = append(m.reqs, req)
	return m.run, m.err
}

func (m *mockSyncService) Status(_ context.Context) (*driving.SyncStatus, error) {
	if m.status == nil {
		return &driving.SyncStatus{}, m.err
	}
	return m.status, m.err
}

func (m *mockSyncService) Reset(_ context.Context) error {
	m.resets++
	return m.resetErr
}

// mockPlanService implements driving.PlanService and DefaultsProvider.
type mockPlanService struct {
	plan        *domain.SourcingPlan
	err         error
	defaults    []domain.Fragment
	invalidated int
}

func (m *mockPlanService) Plan(_ context.Context) (*domain.SourcingPlan, error) {
	return m.plan, m.err
}

func (m *mockPlanService) Invalidate() {
	m.invalidated++
}

func (m *mockPlanService) Defaults(_ context.Context) ([]domain.Fragment, error) {
	return m.defaults, m.err
}

// mockFragmentRepo implements driven.FragmentRepository.
type mockFragmentRepo struct {
	user map[string]string
}

func (m *mockFragmentRepo) UserFragments(_ context.Context) (map[string]string, error) {
	return m.user, nil
}

func (m *mockFragmentRepo) WriteUserFragment(_ context.Context, name, source string) (bool, error) {
	if _, ok := m.user[name]; ok {
		return false, nil
	}
	m.user[name] = source
	return true, nil
}

func (m *mockFragmentRepo) ResetWorking(_ context.Context) error { return nil }

func (m *mockFragmentRepo) WriteWorking(_ context.Context, _, _ string) error { return nil }

func (m *mockFragmentRepo) WriteDebug(_ context.Context, _, _ string) error { return nil }

// setupServices installs mocks and restores the previous services on cleanup.
func setupServices(t *testing.T, s *mockSyncService, p *mockPlanService, repo *mockFragmentRepo) {
	t.Helper()

	oldCfg, oldSync, oldPlan := appConfig, syncService, planService
	oldReset, oldDefaults, oldRepo := resetter, defaultsProvider, fragmentRepo
	t.Cleanup(func() {
		appConfig, syncService, planService = oldCfg, oldSync, oldPlan
		resetter, defaultsProvider, fragmentRepo = oldReset, oldDefaults, oldRepo
	})

	cfg := domain.DefaultConfig()
	appConfig = &cfg
	syncService = s
	resetter = s
	planService = nil
	defaultsProvider = nil
	if p != nil {
		planService = p
		defaultsProvider = p
	}
	fragmentRepo = nil
	if repo != nil {
		fragmentRepo = repo
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		_ = syncCmd.Flags().Set("full", "false")
		_ = mcpServeCmd.Flags().Set("port", "0")
		_ = webhookServeCmd.Flags().Set("addr", "")
		cfgFile = ""
	})

	err := rootCmd.Execute()
	return buf.String(), err
}
