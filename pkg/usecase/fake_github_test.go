package usecase_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/cistat/pkg/usecase"
	"github.com/m-mizutani/gt"
)

var testRepo = model.Repository{Owner: "acme", Name: "widget"}

type fakeJob struct {
	name       string
	conclusion string // empty is reported as null
	status     string
}

type fakeRun struct {
	id         int64
	number     int
	status     string
	conclusion string
	createdAt  time.Time
	jobs       []fakeJob
	totalCount int  // overrides len(jobs) when non-zero
	failJobs   bool // job listing answers 500
}

type fakeWorkflow struct {
	id       int64
	name     string
	path     string
	state    string
	runs     []*fakeRun
	failRuns bool // run listing answers 500
}

// fakeGitHub serves the subset of the GitHub Actions API used by cistat.
type fakeGitHub struct {
	t         *testing.T
	srv       *httptest.Server
	workflows []*fakeWorkflow

	mu       sync.Mutex
	requests map[string]int
	headers  []http.Header
}

func newFakeGitHub(t *testing.T, workflows ...*fakeWorkflow) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{
		t:         t,
		workflows: workflows,
		requests:  map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}/actions/workflows", f.handleWorkflows)
	mux.HandleFunc("GET /repos/{owner}/{repo}/actions/workflows/{id}/runs", f.handleRuns)
	mux.HandleFunc("GET /repos/{owner}/{repo}/actions/runs/{run}/jobs", f.handleJobs)

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests[r.URL.Path]++
		f.headers = append(f.headers, r.Header.Clone())
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGitHub) URL() string {
	return f.srv.URL + "/"
}

func (f *fakeGitHub) jobsPath(runID int64) string {
	return fmt.Sprintf("/repos/%s/actions/runs/%d/jobs", testRepo.FullName(), runID)
}

func (f *fakeGitHub) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeGitHub) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.requests {
		n += c
	}
	return n
}

// service returns a GitHubService wired through the production HTTP client.
func (f *fakeGitHub) service() interfaces.GitHubService {
	f.t.Helper()
	svc, err := usecase.NewGitHubService(
		usecase.NewHTTPClient("test-token", 5*time.Second),
		usecase.WithAPIURL(f.srv.URL),
	)
	gt.NoError(f.t, err)
	return svc
}

func (f *fakeGitHub) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	items := make([]map[string]any, 0, len(f.workflows))
	for _, wf := range f.workflows {
		state := wf.state
		if state == "" {
			state = "active"
		}
		items = append(items, map[string]any{
			"id":       wf.id,
			"name":     wf.name,
			"path":     wf.path,
			"state":    state,
			"html_url": "https://github.com/acme/widget/blob/main/" + wf.path,
		})
	}
	writeJSON(w, map[string]any{"total_count": len(items), "workflows": items})
}

func (f *fakeGitHub) findWorkflow(id string) *fakeWorkflow {
	for _, wf := range f.workflows {
		if strconv.FormatInt(wf.id, 10) == id {
			return wf
		}
	}
	return nil
}

func (f *fakeGitHub) findRun(id string) *fakeRun {
	for _, wf := range f.workflows {
		for _, run := range wf.runs {
			if strconv.FormatInt(run.id, 10) == id {
				return run
			}
		}
	}
	return nil
}

func (f *fakeGitHub) handleRuns(w http.ResponseWriter, r *http.Request) {
	wf := f.findWorkflow(r.PathValue("id"))
	if wf == nil {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}
	if wf.failRuns {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
		return
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	runs := wf.runs
	if perPage > 0 && len(runs) > perPage {
		runs = runs[:perPage]
	}

	items := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		var conclusion any
		if run.conclusion != "" {
			conclusion = run.conclusion
		}
		status := run.status
		if status == "" {
			status = "completed"
		}
		items = append(items, map[string]any{
			"id":         run.id,
			"run_number": run.number,
			"created_at": run.createdAt.Format(time.RFC3339),
			"status":     status,
			"conclusion": conclusion,
			"jobs_url":   f.srv.URL + f.jobsPath(run.id),
			"html_url":   fmt.Sprintf("https://github.com/acme/widget/actions/runs/%d", run.id),
		})
	}
	writeJSON(w, map[string]any{"total_count": len(wf.runs), "workflow_runs": items})
}

func (f *fakeGitHub) handleJobs(w http.ResponseWriter, r *http.Request) {
	run := f.findRun(r.PathValue("run"))
	if run == nil {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}
	if run.failJobs {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 30
	}

	start := min((page-1)*perPage, len(run.jobs))
	end := min(start+perPage, len(run.jobs))

	items := make([]map[string]any, 0, end-start)
	for i, job := range run.jobs[start:end] {
		var conclusion any
		if job.conclusion != "" {
			conclusion = job.conclusion
		}
		status := job.status
		if status == "" {
			status = "completed"
		}
		items = append(items, map[string]any{
			"id":         run.id*1000 + int64(start+i),
			"run_id":     run.id,
			"name":       job.name,
			"status":     status,
			"conclusion": conclusion,
			"html_url":   fmt.Sprintf("https://github.com/acme/widget/actions/runs/%d/job/%d", run.id, start+i),
		})
	}

	total := run.totalCount
	if total == 0 {
		total = len(run.jobs)
	}
	writeJSON(w, map[string]any{"total_count": total, "jobs": items})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func jobsNamed(prefix string, n int, conclusion string) []fakeJob {
	jobs := make([]fakeJob, n)
	for i := range jobs {
		jobs[i] = fakeJob{name: fmt.Sprintf("%s-%03d", prefix, i), conclusion: conclusion}
	}
	return jobs
}
