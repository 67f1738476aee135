package interfaces

import (
	"context"

	"github.com/m-mizutani/cistat/pkg/domain/model"
)

type ReportCollector interface {
	Collect(ctx context.Context, repo model.Repository) (model.Report, error)
}

type LiveFetcher interface {
	FetchLive(ctx context.Context, repo model.Repository, workflowID int64) ([]*model.LiveJob, error)
}

type WorkflowLister interface {
	ListWorkflows(ctx context.Context, repo model.Repository) ([]*model.Workflow, error)
}

type InventoryBuilder interface {
	Build(ctx context.Context, repo model.Repository) (*model.Inventory, error)
}
