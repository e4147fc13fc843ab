package mcp

import (
	"context"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driving"
)

// mockSyncService is a mock implementation of driving.SyncService.
type mockSyncService struct {
	run    *domain.SyncRun
	status *driving.SyncStatus
	err    error
	reqs   []driving.SyncRequest
}

func (m *mockSyncService) Sync(_ context.Context, req driving.SyncRequest) (*domain.SyncRun, error) {
	m.reqs = append(m.reqs, req)
	return m.run, m.err
}

func (m *mockSyncService) Status(_ context.Context) (*driving.SyncStatus, error) {
	return m.status, m.err
}

// mockPlanService is a mock implementation of driving.PlanService.
type mockPlanService struct {
	plan *domain.SourcingPlan
	err  error
}

func (m *mockPlanService) Plan(_ context.Context) (*domain.SourcingPlan, error) {
	return m.plan, m.err
}

func (m *mockPlanService) Invalidate() {}

func testPlan() *domain.SourcingPlan {
	return &domain.SourcingPlan{
		Types: []domain.TypePlan{
			{
				RemoteType: domain.RemoteType{Name: "pages_Entry", Interfaces: []string{"EntryInterface"}},
				Interface:  "EntryInterface",
				NodeQuery:  &domain.QueryDocument{OperationName: "NODE_pages_Entry", Text: "query NODE_pages_Entry { entry { id } }\n"},
			},
			{
				RemoteType: domain.RemoteType{Name: "news_Entry", Interfaces: []string{"EntryInterface"}, SiteAware: true},
				Interface:  "EntryInterface",
				NodeQuery:  &domain.QueryDocument{OperationName: "NODE_news_Entry", Text: "query NODE_news_Entry { entry { id } }\n"},
				ListQuery:  &domain.QueryDocument{OperationName: "LIST_news_Entry", Text: "query LIST_news_Entry { entries { id } }\n"},
			},
			{
				RemoteType: domain.RemoteType{Name: "images_Asset", Interfaces: []string{"AssetInterface"}},
				Interface:  "AssetInterface",
				ListQuery:  &domain.QueryDocument{OperationName: "LIST_images_Asset", Text: "query LIST_images_Asset { assets { id } }\n"},
			},
		},
	}
}
