package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Collector builds a Report for a repository from its recent workflow runs.
type Collector struct {
	github          interfaces.GitHubService
	runsPerWorkflow int
	jobsPerPage     int
	maxPages        int
	maxConcurrency  int
	excludePrefix   string
	tracer          trace.Tracer
}

type CollectorOption func(*Collector)

func WithRunsPerWorkflow(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.runsPerWorkflow = n
		}
	}
}

func WithJobsPerPage(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.jobsPerPage = n
		}
	}
}

func WithJobPageLimit(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithMaxConcurrency bounds concurrent job fetches within one workflow. Zero
// means one goroutine per run.
func WithMaxConcurrency(n int) CollectorOption {
	return func(c *Collector) {
		c.maxConcurrency = n
	}
}

// WithExcludePathPrefix skips workflows whose path starts with prefix. An
// empty prefix disables the exclusion.
func WithExcludePathPrefix(prefix string) CollectorOption {
	return func(c *Collector) {
		c.excludePrefix = prefix
	}
}

func WithTracer(tracer trace.Tracer) CollectorOption {
	return func(c *Collector) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

func NewCollector(github interfaces.GitHubService, opts ...CollectorOption) *Collector {
	c := &Collector{
		github:          github,
		runsPerWorkflow: model.DefaultRunsPerWorkflow,
		jobsPerPage:     model.DefaultJobsPerPage,
		maxPages:        model.DefaultMaxPages,
		excludePrefix:   model.DefaultExcludePathPrefix,
		tracer:          noopTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect lists the workflows of repo and aggregates the jobs of their recent
// runs. Only a failure to list workflows is returned; any other failure drops
// the affected workflow from the report and is logged.
func (c *Collector) Collect(ctx context.Context, repo model.Repository) (model.Report, error) {
	ctx, span := c.tracer.Start(ctx, "collect", trace.WithAttributes(
		attribute.String("repository", repo.FullName()),
	))
	defer span.End()

	logger := ctxlog.From(ctx)

	workflows, err := c.github.ListWorkflows(ctx, repo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list workflows")
		return nil, err
	}

	fetcher := NewJobFetcher(c.github, c.jobsPerPage, c.maxPages, c.tracer)
	report := make(model.Report)

	for _, wf := range workflows {
		if c.excludePrefix != "" && strings.HasPrefix(wf.Path, c.excludePrefix) {
			logger.Debug("skip excluded workflow",
				slog.String("workflow", wf.Name),
				slog.String("path", wf.Path),
			)
			continue
		}

		wr, err := c.collectWorkflow(ctx, repo, wf, fetcher)
		if err != nil {
			logger.Error("failed to process workflow",
				slog.String("workflow", wf.Name),
				slog.Any("error", err),
			)
			continue
		}
		if wr == nil {
			logger.Debug("skip workflow without runs", slog.String("workflow", wf.Name))
			continue
		}
		report[wf.Name] = wr
	}

	span.SetAttributes(attribute.Int("workflows.count", len(report)))
	if s := SessionFrom(ctx); s != nil {
		logger.Info("collected report",
			slog.String("repository", repo.FullName()),
			slog.Int("workflows", len(report)),
			slog.Int64("requests", s.RequestCount()),
		)
	}
	return report, nil
}

// collectWorkflow returns nil without error when the workflow has no runs.
func (c *Collector) collectWorkflow(ctx context.Context, repo model.Repository, wf *model.Workflow, fetcher *JobFetcher) (*model.WorkflowReport, error) {
	ctx, span := c.tracer.Start(ctx, "workflow", trace.WithAttributes(
		attribute.String("workflow.name", wf.Name),
		attribute.Int64("workflow.id", wf.ID),
	))
	defer span.End()

	runs, err := c.github.ListRuns(ctx, repo, wf.ID, c.runsPerWorkflow)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list runs")
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	sortRunsByRecency(runs)

	results, err := c.fetchAllJobs(ctx, runs, fetcher)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch jobs")
		return nil, err
	}

	latest := runs[0]
	return &model.WorkflowReport{
		ID:        wf.ID,
		Category:  model.Categorize(wf.Name),
		Path:      wf.Path,
		HTMLURL:   wf.HTMLURL,
		Jobs:      model.ComputeJobStats(results),
		TotalRuns: len(runs),
		LatestRun: &model.LatestRun{
			Conclusion: latest.Conclusion,
			CreatedAt:  latest.CreatedAt,
			HTMLURL:    latest.HTMLURL,
		},
	}, nil
}

// fetchAllJobs fetches the jobs of every run concurrently. Results keep the
// order of runs; the first failure cancels the remaining fetches.
func (c *Collector) fetchAllJobs(ctx context.Context, runs []*model.Run, fetcher *JobFetcher) ([]*model.RunWithJobs, error) {
	results := make([]*model.RunWithJobs, len(runs))

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	if c.maxConcurrency > 0 {
		p = p.WithMaxGoroutines(c.maxConcurrency)
	}

	for i, run := range runs {
		p.Go(func(ctx context.Context) error {
			r, err := fetcher.FetchJobsForRun(ctx, run)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// sortRunsByRecency orders runs newest first. Ties keep the provider order.
func sortRunsByRecency(runs []*model.Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
}
