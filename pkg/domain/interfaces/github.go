package interfaces

import (
	"context"

	"github.com/m-mizutani/cistat/pkg/domain/model"
)

// GitHubService covers the GitHub Actions endpoints the collector reads.
type GitHubService interface {
	ListWorkflows(ctx context.Context, repo model.Repository) ([]*model.Workflow, error)
	ListRuns(ctx context.Context, repo model.Repository, workflowID int64, perPage int) ([]*model.Run, error)
	ListJobsPage(ctx context.Context, jobsURL string, page, perPage int) (*model.JobPage, error)
}
