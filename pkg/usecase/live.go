package usecase

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
)

// LiveService fetches an up to date job summary for a single workflow. Unlike
// Collector it reads only the first job page of each run, one run at a time,
// and skips runs whose jobs cannot be fetched.
type LiveService struct {
	github  interfaces.GitHubService
	runs    int
	perPage int
}

func NewLiveService(github interfaces.GitHubService, runs, perPage int) *LiveService {
	if runs <= 0 {
		runs = model.DefaultRunsPerWorkflow
	}
	if perPage <= 0 {
		perPage = model.DefaultJobsPerPage
	}
	return &LiveService{github: github, runs: runs, perPage: perPage}
}

func (s *LiveService) FetchLive(ctx context.Context, repo model.Repository, workflowID int64) ([]*model.LiveJob, error) {
	logger := ctxlog.From(ctx)

	runs, err := s.github.ListRuns(ctx, repo, workflowID, s.runs)
	if err != nil {
		return nil, err
	}

	withJobs := make([]*model.RunWithJobs, 0, len(runs))
	for _, run := range runs {
		page, err := s.github.ListJobsPage(ctx, run.JobsURL, 1, s.perPage)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("skip run in live summary",
				slog.Int64("run_id", run.ID),
				slog.Any("error", err),
			)
			continue
		}
		withJobs = append(withJobs, &model.RunWithJobs{
			ID:         run.ID,
			RunNumber:  run.RunNumber,
			CreatedAt:  run.CreatedAt,
			Conclusion: run.Conclusion,
			Jobs:       page.Jobs,
		})
	}

	return model.SummarizeLiveJobs(withJobs), nil
}
