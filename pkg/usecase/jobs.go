package usecase

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// JobFetcher retrieves every job of a run by walking the paginated job listing.
type JobFetcher struct {
	github   interfaces.GitHubService
	perPage  int
	maxPages int
	tracer   trace.Tracer
}

func NewJobFetcher(github interfaces.GitHubService, perPage, maxPages int, tracer trace.Tracer) *JobFetcher {
	if perPage <= 0 {
		perPage = model.DefaultJobsPerPage
	}
	if maxPages <= 0 {
		maxPages = model.DefaultMaxPages
	}
	if tracer == nil {
		tracer = noopTracer()
	}
	return &JobFetcher{
		github:   github,
		perPage:  perPage,
		maxPages: maxPages,
		tracer:   tracer,
	}
}

// FetchJobsForRun returns the run with all of its jobs. Runs still in progress
// are returned with no jobs and no conclusion, without issuing any request.
func (f *JobFetcher) FetchJobsForRun(ctx context.Context, run *model.Run) (*model.RunWithJobs, error) {
	result := &model.RunWithJobs{
		ID:        run.ID,
		RunNumber: run.RunNumber,
		CreatedAt: run.CreatedAt,
		Jobs:      []*model.Job{},
	}
	if run.InProgress() {
		return result, nil
	}
	result.Conclusion = run.Conclusion

	ctx, span := f.tracer.Start(ctx, "fetch_jobs", trace.WithAttributes(
		attribute.Int64("run.id", run.ID),
		attribute.Int("run.number", run.RunNumber),
	))
	defer span.End()

	for page := 1; ; page++ {
		if page > f.maxPages {
			err := malformed(run.JobsURL, "job listing exceeds the page limit")
			span.RecordError(err)
			span.SetStatus(codes.Error, "page limit exceeded")
			return nil, err
		}

		jobPage, err := f.github.ListJobsPage(ctx, run.JobsURL, page, f.perPage)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch jobs")
			return nil, err
		}
		result.Jobs = append(result.Jobs, jobPage.Jobs...)

		if page*f.perPage >= jobPage.TotalCount {
			break
		}
	}

	span.SetAttributes(attribute.Int("jobs.count", len(result.Jobs)))
	ctxlog.From(ctx).Debug("fetched jobs",
		slog.Int64("run_id", run.ID),
		slog.Int("count", len(result.Jobs)),
	)
	return result, nil
}
