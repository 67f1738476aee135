package web

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/cistat/pkg/domain/model"
)

type badge struct {
	Symbol string
	Class  string
	Title  string
	URL    string
}

type jobRow struct {
	Name     string
	PassRate string
	Color    string
	Badges   []badge
}

type workflowLink struct {
	Name     string
	Category model.Category
	Selected bool
	Failing  bool
}

type dashboardPage struct {
	Repository string
	Workflows  []workflowLink
	Selected   string
	Category   model.Category
	TotalRuns  int
	LatestRun  string
	Live       bool
	Rows       []jobRow
	Message    string
	RenderedAt string
}

// passRateColor maps a pass rate percentage to the dashboard color scale.
func passRateColor(rate float64) string {
	switch {
	case rate >= 90:
		return "#28a745"
	case rate >= 70:
		return "#ffc107"
	case rate >= 50:
		return "#fd7e14"
	default:
		return "#dc3545"
	}
}

func statusBadge(status string) (string, string) {
	switch status {
	case string(model.ConclusionSuccess):
		return "✓", "pass"
	case string(model.ConclusionFailure):
		return "✗", "fail"
	case string(model.ConclusionSkipped):
		return "○", "skip"
	default:
		return "●", "other"
	}
}

func resultBadge(r model.Result) (string, string) {
	switch r {
	case model.ResultPass:
		return "✓", "pass"
	case model.ResultFail:
		return "✗", "fail"
	default:
		return "○", "skip"
	}
}

func newDashboardPage(repo model.Repository, report model.Report, selected string, now time.Time) *dashboardPage {
	page := &dashboardPage{
		Repository: repo.FullName(),
		Selected:   selected,
		RenderedAt: now.UTC().Format(time.RFC3339),
	}

	failing := make(map[string]bool)
	for _, name := range report.Failing() {
		failing[name] = true
	}
	for _, name := range report.Names() {
		page.Workflows = append(page.Workflows, workflowLink{
			Name:     name,
			Category: report[name].Category,
			Selected: name == selected,
			Failing:  failing[name],
		})
	}

	if wf, ok := report[selected]; ok {
		page.Category = wf.Category
		page.TotalRuns = wf.TotalRuns
		page.LatestRun = "none"
		if wf.LatestRun != nil {
			conclusion := string(wf.LatestRun.Conclusion)
			if conclusion == "" {
				conclusion = "in progress"
			}
			page.LatestRun = fmt.Sprintf("%s, %s", conclusion, humanize.Time(wf.LatestRun.CreatedAt))
		}
	}
	return page
}

// cachedRows builds the job table of a workflow from the stored report.
func cachedRows(wf *model.WorkflowReport) []jobRow {
	rows := make([]jobRow, 0, len(wf.Jobs))
	for _, name := range wf.JobNames() {
		stat := wf.Jobs[name]
		row := jobRow{
			Name:     name,
			PassRate: fmt.Sprintf("%.1f%%", stat.PassRate()),
			Color:    passRateColor(stat.PassRate()),
		}
		for i, r := range stat.Results {
			symbol, class := resultBadge(r)
			row.Badges = append(row.Badges, badge{
				Symbol: symbol,
				Class:  class,
				Title:  fmt.Sprintf("#%d %s", stat.RunNums[i], strings.ToLower(string(r))),
				URL:    stat.URLs[i],
			})
		}
		rows = append(rows, row)
	}
	return rows
}

// liveRows builds the job table of a workflow from a live summary.
func liveRows(jobs []*model.LiveJob) []jobRow {
	rows := make([]jobRow, 0, len(jobs))
	for _, job := range jobs {
		row := jobRow{
			Name:     job.Name,
			PassRate: fmt.Sprintf("%.2f%%", job.PassRate),
			Color:    passRateColor(job.PassRate),
		}
		for _, r := range job.Runs {
			symbol, class := statusBadge(r.Status)
			row.Badges = append(row.Badges, badge{
				Symbol: symbol,
				Class:  class,
				Title:  fmt.Sprintf("run %d %s", r.RunID, r.Status),
				URL:    r.HTMLURL,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>CI status - {{.Repository}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem; color: #24292f; }
nav a { display: inline-block; margin: 0 .5rem .5rem 0; padding: .25rem .5rem; border: 1px solid #d0d7de; border-radius: 4px; text-decoration: none; color: inherit; }
nav a.selected { background: #0969da; color: #fff; }
nav a.failing { border-color: #dc3545; }
table { border-collapse: collapse; margin-top: 1rem; }
th, td { padding: .4rem .8rem; border-bottom: 1px solid #d0d7de; text-align: left; }
.badge { text-decoration: none; margin-right: .2rem; }
.pass { color: #28a745; } .fail { color: #dc3545; } .skip { color: #6e7781; } .other { color: #fd7e14; }
.message { padding: .75rem; background: #fff8c5; border: 1px solid #d4a72c; border-radius: 4px; }
.meta { color: #57606a; }
</style>
</head>
<body>
<h1>{{.Repository}}</h1>
<nav>
{{- range .Workflows}}
<a href="/?workflow={{.Name}}" class="{{if .Selected}}selected{{end}}{{if .Failing}} failing{{end}}" title="{{.Category}}">{{.Name}}</a>
{{- end}}
</nav>
{{if .Selected}}
<h2>{{.Selected}}</h2>
<p class="meta">{{.Category}} | {{.TotalRuns}} runs | latest: {{.LatestRun}} |
{{if .Live}}live data <a href="/?workflow={{.Selected}}">show cached</a>{{else}}cached data <a href="/?workflow={{.Selected}}&amp;live=1">refresh live</a>{{end}}</p>
{{end}}
{{with .Message}}<p class="message">{{.}}</p>{{end}}
{{if .Rows}}
<table>
<thead><tr><th>Job</th><th>Pass rate</th><th>Recent runs</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr>
<td>{{.Name}}</td>
<td style="color: {{.Color}}">{{.PassRate}}</td>
<td>{{range .Badges}}<a class="badge {{.Class}}" href="{{.URL}}" title="{{.Title}}">{{.Symbol}}</a>{{end}}</td>
</tr>
{{- end}}
</tbody>
</table>
{{end}}
<p class="meta">Rendered at {{.RenderedAt}}</p>
</body>
</html>
`))
