package model

import (
	"sort"
	"time"
)

type LatestRun struct {
	Conclusion Conclusion `json:"conclusion"`
	CreatedAt  time.Time  `json:"created_at"`
	HTMLURL    string     `json:"html_url"`
}

type WorkflowReport struct {
	Category  Category            `json:"category"`
	Path      string              `json:"path"`
	HTMLURL   string              `json:"html_url"`
	Jobs      map[string]*JobStat `json:"jobs"`
	TotalRuns int                 `json:"total_runs"`
	LatestRun *LatestRun          `json:"latest_run"`
	ID        int64               `json:"id,omitempty"`
}

// JobNames returns the job names sorted by ascending pass rate, then by name.
func (w *WorkflowReport) JobNames() []string {
	names := make([]string, 0, len(w.Jobs))
	for name := range w.Jobs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := w.Jobs[names[i]].PassRate(), w.Jobs[names[j]].PassRate()
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}

// Report maps workflow display names to their aggregated statistics.
type Report map[string]*WorkflowReport

func (r Report) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Failing returns the names of workflows whose latest run concluded with failure.
func (r Report) Failing() []string {
	var names []string
	for _, name := range r.Names() {
		wf := r[name]
		if wf.LatestRun != nil && wf.LatestRun.Conclusion == ConclusionFailure {
			names = append(names, name)
		}
	}
	return names
}
