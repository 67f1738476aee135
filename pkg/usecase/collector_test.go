package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/cistat/pkg/usecase"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/gt"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var baseTime = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestJobFetcher_InProgressRunIssuesNoRequest(t *testing.T) {
	run := &fakeRun{id: 1, number: 3, status: "in_progress", jobs: jobsNamed("job", 3, "success")}
	fake := newFakeGitHub(t, &fakeWorkflow{id: 1, name: "CI", path: "ci.yml", runs: []*fakeRun{run}})

	fetcher := usecase.NewJobFetcher(fake.service(), 50, 100, nil)
	result, err := fetcher.FetchJobsForRun(context.Background(), &model.Run{
		ID:        1,
		RunNumber: 3,
		Status:    model.RunStatusInProgress,
		JobsURL:   fake.srv.URL + fake.jobsPath(1),
	})
	gt.NoError(t, err)
	gt.Equal(t, len(result.Jobs), 0)
	gt.NotNil(t, result.Jobs)
	gt.Equal(t, result.Conclusion, model.ConclusionNone)
	gt.Equal(t, fake.total(), 0)
}

func TestJobFetcher_PaginatesUntilTotalCount(t *testing.T) {
	run := &fakeRun{id: 5, number: 1, conclusion: "success", jobs: jobsNamed("job", 120, "success")}
	fake := newFakeGitHub(t, &fakeWorkflow{id: 1, name: "CI", path: "ci.yml", runs: []*fakeRun{run}})

	fetcher := usecase.NewJobFetcher(fake.service(), 50, 100, nil)
	result, err := fetcher.FetchJobsForRun(context.Background(), &model.Run{
		ID:         5,
		RunNumber:  1,
		Status:     model.RunStatusCompleted,
		Conclusion: model.ConclusionSuccess,
		JobsURL:    fake.srv.URL + fake.jobsPath(5),
	})
	gt.NoError(t, err)
	gt.Equal(t, fake.count(fake.jobsPath(5)), 3)
	gt.Equal(t, len(result.Jobs), 120)
	gt.Equal(t, result.Jobs[0].Name, "job-000")
	gt.Equal(t, result.Jobs[119].Name, "job-119")
	gt.Equal(t, result.Conclusion, model.ConclusionSuccess)
}

func TestJobFetcher_ExactMultipleStopsWithoutExtraPage(t *testing.T) {
	run := &fakeRun{id: 6, number: 1, conclusion: "success", jobs: jobsNamed("job", 100, "success")}
	fake := newFakeGitHub(t, &fakeWorkflow{id: 1, name: "CI", path: "ci.yml", runs: []*fakeRun{run}})

	fetcher := usecase.NewJobFetcher(fake.service(), 50, 100, nil)
	result, err := fetcher.FetchJobsForRun(context.Background(), &model.Run{
		ID: 6, Status: model.RunStatusCompleted, JobsURL: fake.srv.URL + fake.jobsPath(6),
	})
	gt.NoError(t, err)
	gt.Equal(t, fake.count(fake.jobsPath(6)), 2)
	gt.Equal(t, len(result.Jobs), 100)
}

func TestJobFetcher_PageLimit(t *testing.T) {
	// total_count claims far more jobs than are ever served
	run := &fakeRun{id: 7, number: 1, conclusion: "success", jobs: jobsNamed("job", 2, "success"), totalCount: 1000}
	fake := newFakeGitHub(t, &fakeWorkflow{id: 1, name: "CI", path: "ci.yml", runs: []*fakeRun{run}})

	fetcher := usecase.NewJobFetcher(fake.service(), 1, 5, nil)
	_, err := fetcher.FetchJobsForRun(context.Background(), &model.Run{
		ID: 7, Status: model.RunStatusCompleted, JobsURL: fake.srv.URL + fake.jobsPath(7),
	})
	gt.Error(t, err)
	gt.True(t, domain.IsMalformedResponse(err))
	gt.Equal(t, fake.count(fake.jobsPath(7)), 5)
}

func TestJobFetcher_PageFailureAbortsRun(t *testing.T) {
	run := &fakeRun{id: 8, number: 1, conclusion: "failure", failJobs: true}
	fake := newFakeGitHub(t, &fakeWorkflow{id: 1, name: "CI", path: "ci.yml", runs: []*fakeRun{run}})

	fetcher := usecase.NewJobFetcher(fake.service(), 50, 100, nil)
	_, err := fetcher.FetchJobsForRun(context.Background(), &model.Run{
		ID: 8, Status: model.RunStatusCompleted, JobsURL: fake.srv.URL + fake.jobsPath(8),
	})
	gt.Error(t, err)
	gt.Equal(t, domain.HTTPStatus(err), 500)
}

func TestCollector_EndToEnd(t *testing.T) {
	fake := newFakeGitHub(t, &fakeWorkflow{
		id: 1, name: "CI", path: ".github/workflows/ci.yml",
		runs: []*fakeRun{
			{id: 501, number: 5, conclusion: "success", createdAt: baseTime, jobs: []fakeJob{{name: "build", conclusion: "success"}}},
			{id: 401, number: 4, conclusion: "failure", createdAt: baseTime.Add(-time.Hour), jobs: []fakeJob{{name: "build", conclusion: "failure"}}},
		},
	})

	session := usecase.NewSession()
	ctx := usecase.WithSession(context.Background(), session)

	report, err := usecase.NewCollector(fake.service()).Collect(ctx, testRepo)
	gt.NoError(t, err)
	gt.Equal(t, len(report), 1)

	wf := report["CI"]
	gt.NotNil(t, wf)
	gt.Equal(t, wf.ID, int64(1))
	gt.Equal(t, wf.Category, model.CategoryCITesting)
	gt.Equal(t, wf.Path, ".github/workflows/ci.yml")
	gt.Equal(t, wf.TotalRuns, 2)
	gt.Equal(t, wf.LatestRun.Conclusion, model.ConclusionSuccess)
	gt.True(t, wf.LatestRun.CreatedAt.Equal(baseTime))
	gt.Equal(t, wf.LatestRun.HTMLURL, "https://github.com/acme/widget/actions/runs/501")

	build := wf.Jobs["build"]
	gt.NotNil(t, build)
	gt.Equal(t, build.Runs, 2)
	gt.Equal(t, build.Fails, 1)
	gt.Equal(t, build.Skips, 0)
	gt.Equal(t, build.Results, []model.Result{model.ResultPass, model.ResultFail})
	gt.Equal(t, build.RunNums, []int{5, 4})
	gt.Equal(t, build.URLs, []string{
		"https://github.com/acme/widget/actions/runs/501/job/0",
		"https://github.com/acme/widget/actions/runs/401/job/0",
	})

	// workflows + runs + one job page per run
	gt.Equal(t, session.RequestCount(), int64(4))
	gt.Equal(t, session.RequestCount(), int64(fake.total()))
}

func TestCollector_ResortsRunsByCreatedAt(t *testing.T) {
	// Provider returns the older run first
	fake := newFakeGitHub(t, &fakeWorkflow{
		id: 1, name: "CI", path: "ci.yml",
		runs: []*fakeRun{
			{id: 401, number: 4, conclusion: "failure", createdAt: baseTime.Add(-time.Hour), jobs: []fakeJob{{name: "build", conclusion: "failure"}}},
			{id: 501, number: 5, conclusion: "success", createdAt: baseTime, jobs: []fakeJob{{name: "build", conclusion: "success"}}},
		},
	})

	report, err := usecase.NewCollector(fake.service()).Collect(context.Background(), testRepo)
	gt.NoError(t, err)

	wf := report["CI"]
	gt.Equal(t, wf.LatestRun.Conclusion, model.ConclusionSuccess)
	gt.Equal(t, wf.Jobs["build"].RunNums, []int{5, 4})
}

func TestCollector_SkipsExcludedAndEmptyWorkflows(t *testing.T) {
	fake := newFakeGitHub(t,
		&fakeWorkflow{
			id: 1, name: "Generated", path: "dynamic/pages/pages-build-deployment",
			runs: []*fakeRun{{id: 11, number: 1, conclusion: "success", createdAt: baseTime, jobs: jobsNamed("deploy", 1, "success")}},
		},
		&fakeWorkflow{id: 2, name: "Idle", path: ".github/workflows/idle.yml"},
		&fakeWorkflow{
			id: 3, name: "Tests", path: ".github/workflows/tests.yml",
			runs: []*fakeRun{{id: 31, number: 9, conclusion: "success", createdAt: baseTime, jobs: jobsNamed("unit", 2, "success")}},
		},
	)

	report, err := usecase.NewCollector(fake.service()).Collect(context.Background(), testRepo)
	gt.NoError(t, err)
	gt.Equal(t, report.Names(), []string{"Tests"})

	// excluded workflow is never queried beyond the listing
	gt.Equal(t, fake.count("/repos/acme/widget/actions/workflows/1/runs"), 0)
	gt.Equal(t, fake.count(fake.jobsPath(11)), 0)
}

func TestCollector_InProgressRunContributesNoJobs(t *testing.T) {
	fake := newFakeGitHub(t, &fakeWorkflow{
		id: 1, name: "CI", path: "ci.yml",
		runs: []*fakeRun{
			{id: 601, number: 6, status: "in_progress", createdAt: baseTime, jobs: jobsNamed("build", 1, "")},
			{id: 501, number: 5, conclusion: "success", createdAt: baseTime.Add(-time.Hour), jobs: jobsNamed("build", 1, "success")},
		},
	})

	report, err := usecase.NewCollector(fake.service()).Collect(context.Background(), testRepo)
	gt.NoError(t, err)

	wf := report["CI"]
	gt.Equal(t, wf.TotalRuns, 2)
	gt.Equal(t, wf.LatestRun.Conclusion, model.ConclusionNone)
	gt.Equal(t, wf.Jobs["build-000"].Runs, 1)
	gt.Equal(t, fake.count(fake.jobsPath(601)), 0)
}

func TestCollector_FailedRunDropsOnlyItsWorkflow(t *testing.T) {
	fake := newFakeGitHub(t,
		&fakeWorkflow{
			id: 1, name: "Broken", path: ".github/workflows/broken.yml",
			runs: []*fakeRun{
				{id: 11, number: 3, conclusion: "success", createdAt: baseTime, jobs: jobsNamed("a", 1, "success")},
				{id: 12, number: 2, conclusion: "failure", createdAt: baseTime.Add(-time.Hour), failJobs: true},
				{id: 13, number: 1, conclusion: "success", createdAt: baseTime.Add(-2 * time.Hour), jobs: jobsNamed("a", 1, "success")},
			},
		},
		&fakeWorkflow{id: 2, name: "NoRuns", path: ".github/workflows/noruns.yml", failRuns: true},
		&fakeWorkflow{
			id: 3, name: "Release", path: ".github/workflows/release.yml",
			runs: []*fakeRun{
				{id: 31, number: 8, conclusion: "success", createdAt: baseTime, jobs: jobsNamed("publish", 2, "success")},
				{id: 32, number: 7, conclusion: "skipped", createdAt: baseTime.Add(-time.Hour), jobs: jobsNamed("publish", 2, "skipped")},
			},
		},
	)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := ctxlog.With(context.Background(), logger)

	report, err := usecase.NewCollector(fake.service()).Collect(ctx, testRepo)
	gt.NoError(t, err)
	gt.Equal(t, report.Names(), []string{"Release"})

	release := report["Release"]
	gt.Equal(t, release.Category, model.CategoryBuildDeploy)
	gt.Equal(t, release.Jobs["publish-000"].Results, []model.Result{model.ResultPass, model.ResultSkip})
	gt.Equal(t, release.Jobs["publish-000"].Skips, 1)
	gt.Equal(t, release.Jobs["publish-000"].Fails, 0)

	logs := buf.String()
	gt.Equal(t, strings.Count(logs, "failed to process workflow"), 2)
	gt.True(t, strings.Contains(logs, "workflow=Broken"))
	gt.True(t, strings.Contains(logs, "workflow=NoRuns"))
}

func TestCollector_WorkflowListingFailureIsFatal(t *testing.T) {
	fake := newFakeGitHub(t)
	fake.srv.Close()

	_, err := usecase.NewCollector(fake.service()).Collect(context.Background(), testRepo)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, domain.ErrAPIRequest))
}

func TestCollector_BoundedConcurrency(t *testing.T) {
	runs := make([]*fakeRun, 10)
	for i := range runs {
		runs[i] = &fakeRun{
			id:         int64(100 + i),
			number:     10 - i,
			conclusion: "success",
			createdAt:  baseTime.Add(-time.Duration(i) * time.Minute),
			jobs:       jobsNamed("job", 3, "success"),
		}
	}
	fake := newFakeGitHub(t, &fakeWorkflow{id: 1, name: "CI", path: "ci.yml", runs: runs})

	report, err := usecase.NewCollector(fake.service(),
		usecase.WithMaxConcurrency(2),
		usecase.WithRunsPerWorkflow(10),
	).Collect(context.Background(), testRepo)
	gt.NoError(t, err)

	stat := report["CI"].Jobs["job-001"]
	gt.Equal(t, stat.Runs, 10)
	gt.Equal(t, stat.RunNums, []int{10, 9, 8, 7, 6, 5, 4, 3, 2, 1})
}

func TestCollector_Spans(t *testing.T) {
	fake := newFakeGitHub(t, &fakeWorkflow{
		id: 1, name: "CI", path: "ci.yml",
		runs: []*fakeRun{{id: 11, number: 1, conclusion: "success", createdAt: baseTime, jobs: jobsNamed("a", 1, "success")}},
	})

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, err := usecase.NewCollector(fake.service(),
		usecase.WithTracer(tp.Tracer("test")),
	).Collect(context.Background(), testRepo)
	gt.NoError(t, err)

	names := map[string]int{}
	for _, span := range recorder.Ended() {
		names[span.Name()]++
	}
	gt.Equal(t, names["collect"], 1)
	gt.Equal(t, names["workflow"], 1)
	gt.Equal(t, names["fetch_jobs"], 1)
}
