package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driving"
)

func TestSyncCmd_Use(t *testing.T) {
	assert.Equal(t, "sync", syncCmd.Use)
	assert.NotNil(t, syncCmd.Flags().Lookup("full"))
}

func TestSyncCmd_Delta(t *testing.T) {
	s := &mockSyncService{run: &domain.SyncRun{Mode: domain.SyncModeDelta, Updated: 3, Deleted: 1}}
	setupServices(t, s, nil, nil)

	out, err := execute(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Synchronising...")
	assert.Contains(t, out, "Sync complete (delta): 3 updated, 1 deleted.")
	assert.Equal(t, []driving.SyncRequest{{}}, s.reqs)
}

func TestSyncCmd_Full(t *testing.T) {
	s := &mockSyncService{run: &domain.SyncRun{Mode: domain.SyncModeFull, Updated: 10}}
	setupServices(t, s, nil, nil)

	out, err := execute(t, "sync", "--full")
	require.NoError(t, err)
	assert.Contains(t, out, "Running full sync...")
	require.Len(t, s.reqs, 1)
	assert.True(t, s.reqs[0].Full)
}

func TestSyncCmd_Skipped(t *testing.T) {
	setupServices(t, &mockSyncService{run: &domain.SyncRun{Mode: domain.SyncModeSkipped}}, nil, nil)

	out, err := execute(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "not compatible")
}

func TestSyncCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"in progress", domain.ErrSyncInProgress, "another sync is running"},
		{"failure", errors.New("boom"), "sync failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupServices(t, &mockSyncService{err: tt.err}, nil, nil)

			_, err := execute(t, "sync")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStatusCmd(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s := &mockSyncService{status: &driving.SyncStatus{
		Running: true,
		RunID:   "run-2",
		Checkpoint: domain.SyncState{
			ConfigVersion:         "cv-1",
			LastContentUpdateTime: "2024-01-01 10:00:00",
		},
		NodeCounts: map[string]int{"news_Entry": 3, "images_Asset": 1},
		Recent: []domain.SyncRun{
			{ID: "run-1", Mode: domain.SyncModeDelta, StartedAt: start, EndedAt: start.Add(time.Second), Updated: 3, Success: true},
			{ID: "run-0", Mode: domain.SyncModeFull, StartedAt: start, Error: "transport failure"},
		},
	}}
	setupServices(t, s, nil, nil)

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Checkpoint")
	assert.Contains(t, out, "cv-1")
	assert.Contains(t, out, "2024-01-01 10:00:00")
	assert.Contains(t, out, "run-2")
	assert.Contains(t, out, "news_Entry")
	assert.Contains(t, out, "images_Asset")
	assert.Contains(t, out, "updated=3")
	assert.Contains(t, out, "transport failure")
	assert.Less(t, strings.Index(out, "images_Asset"), strings.Index(out, "news_Entry"), "types are sorted")
}

func TestStatusCmd_Empty(t *testing.T) {
	setupServices(t, &mockSyncService{}, nil, nil)

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No nodes sourced yet.")
	assert.NotContains(t, out, "Recent runs")
}

func TestResetCmd(t *testing.T) {
	s := &mockSyncService{}
	setupServices(t, s, nil, nil)

	out, err := execute(t, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Checkpoint cleared")
	assert.Equal(t, 1, s.resets)
}

func TestResetCmd_Error(t *testing.T) {
	setupServices(t, &mockSyncService{resetErr: errors.New("locked")}, nil, nil)

	_, err := execute(t, "reset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset failed: locked")
}
