package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/cistat/pkg/cli"
	"github.com/m-mizutani/gt"
)

// newAPIServer serves one workflow with two completed runs of two jobs each.
func newAPIServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var requests int32

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widget/actions/workflows", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"total_count": 1, "workflows": []map[string]any{
			{"id": 7, "name": "CI", "path": ".github/workflows/ci.yml", "state": "active"},
		}})
	})
	mux.HandleFunc("GET /repos/acme/widget/actions/workflows/7/runs", func(w http.ResponseWriter, r *http.Request) {
		runs := []map[string]any{}
		for _, id := range []int{2, 1} {
			conclusion := "success"
			if id == 2 {
				conclusion = "failure"
			}
			runs = append(runs, map[string]any{
				"id":         id,
				"run_number": id,
				"status":     "completed",
				"conclusion": conclusion,
				"created_at": fmt.Sprintf("2025-01-0%dT00:00:00Z", id),
				"jobs_url":   fmt.Sprintf("%s/repos/acme/widget/actions/runs/%d/jobs", srv.URL, id),
				"html_url":   fmt.Sprintf("https://github.com/acme/widget/actions/runs/%d", id),
			})
		}
		writeJSON(w, map[string]any{"total_count": 2, "workflow_runs": runs})
	})
	mux.HandleFunc("GET /repos/acme/widget/actions/runs/{id}/jobs", func(w http.ResponseWriter, r *http.Request) {
		testConclusion := "success"
		if r.PathValue("id") == "2" {
			testConclusion = "failure"
		}
		writeJSON(w, map[string]any{"total_count": 2, "jobs": []map[string]any{
			{"id": 1, "name": "build", "status": "completed", "conclusion": "success", "html_url": "https://example.com/build"},
			{"id": 2, "name": "test", "status": "completed", "conclusion": testConclusion, "html_url": "https://example.com/test"},
		}})
	})

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestRunReport(t *testing.T) {
	srv, requests := newAPIServer(t)
	t.Chdir(t.TempDir())
	output := filepath.Join(t.TempDir(), "report.json")

	err := cli.NewCommand().Run(context.Background(), []string{
		"cistat",
		"--owner", "acme", "--repo", "widget",
		"--token", "test-token",
		"--api-url", srv.URL,
		"--output", output,
	})
	gt.NoError(t, err)
	gt.Equal(t, atomic.LoadInt32(requests), int32(4))

	data, err := os.ReadFile(output)
	gt.NoError(t, err)

	var report map[string]struct {
		Category  string `json:"category"`
		TotalRuns int    `json:"total_runs"`
		Jobs      map[string]struct {
			Runs    int      `json:"runs"`
			Fails   int      `json:"fails"`
			Results []string `json:"results"`
			RunNums []int    `json:"run_nums"`
		} `json:"jobs"`
		LatestRun struct {
			Conclusion string `json:"conclusion"`
		} `json:"latest_run"`
	}
	gt.NoError(t, json.Unmarshal(data, &report))

	ci := report["CI"]
	gt.Equal(t, ci.Category, "CI / Testing")
	gt.Equal(t, ci.TotalRuns, 2)
	gt.Equal(t, ci.LatestRun.Conclusion, "failure")
	gt.Equal(t, ci.Jobs["test"].Results, []string{"Fail", "Pass"})
	gt.Equal(t, ci.Jobs["test"].RunNums, []int{2, 1})
	gt.Equal(t, ci.Jobs["build"].Fails, 0)
}

func TestRunReportWithoutToken(t *testing.T) {
	srv, requests := newAPIServer(t)
	t.Chdir(t.TempDir())
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("TOKEN", "")

	err := cli.NewCommand().Run(context.Background(), []string{
		"cistat", "--owner", "acme", "--repo", "widget", "--api-url", srv.URL,
	})
	gt.Error(t, err)
	gt.True(t, strings.Contains(err.Error(), "token"))
	gt.Equal(t, atomic.LoadInt32(requests), int32(0))
}

func TestRunSummaryFromInput(t *testing.T) {
	t.Chdir(t.TempDir())
	input := filepath.Join(t.TempDir(), "report.json")
	gt.NoError(t, os.WriteFile(input, []byte(`{
  "Lint": {
    "category": "Code Quality / Security",
    "path": ".github/workflows/lint.yml",
    "html_url": "",
    "jobs": {"golangci": {"runs": 1, "fails": 0, "skips": 0, "urls": ["u"], "results": ["Pass"], "run_nums": [1]}},
    "total_runs": 1,
    "latest_run": null
  }
}`), 0o600))

	err := cli.NewCommand().Run(context.Background(), []string{"cistat", "summary", "--input", input, "--workflow", "Lint"})
	gt.NoError(t, err)

	err = cli.NewCommand().Run(context.Background(), []string{"cistat", "summary", "--input", input, "--workflow", "Missing"})
	gt.Error(t, err)
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	gt.NoError(t, cli.WriteOutput(path, []byte("{}\n")))

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.Equal(t, string(data), "{}\n")

	gt.Error(t, cli.WriteOutput(filepath.Join(t.TempDir(), "missing", "out.json"), []byte("{}")))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := cli.NewLogger(&buf, false, false)
	logger.Info("hidden")
	logger.Warn("shown")
	gt.False(t, strings.Contains(buf.String(), "hidden"))
	gt.True(t, strings.Contains(buf.String(), "shown"))

	buf.Reset()
	cli.NewLogger(&buf, true, false).Debug("debug line")
	gt.True(t, strings.Contains(buf.String(), "debug line"))
}
