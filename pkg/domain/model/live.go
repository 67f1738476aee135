package model

import (
	"math"
	"sort"
)

// LiveRunsPerJob bounds how many runs are kept for each job in a live summary.
const LiveRunsPerJob = 10

type LiveJobRun struct {
	Status  string `json:"status"`
	RunID   int64  `json:"run_id"`
	HTMLURL string `json:"html_url"`
}

type LiveJob struct {
	Name     string       `json:"name"`
	PassRate float64      `json:"pass_rate"`
	Runs     []LiveJobRun `json:"runs"`
}

// SummarizeLiveJobs groups job observations by name in encounter order, trims
// each group to LiveRunsPerJob entries and sorts by ascending pass rate.
func SummarizeLiveJobs(runs []*RunWithJobs) []*LiveJob {
	index := make(map[string]*LiveJob)
	var jobs []*LiveJob

	for _, run := range runs {
		for _, job := range run.Jobs {
			entry, ok := index[job.Name]
			if !ok {
				entry = &LiveJob{Name: job.Name}
				index[job.Name] = entry
				jobs = append(jobs, entry)
			}
			status := string(job.Conclusion)
			if status == "" {
				status = job.Status
			}
			entry.Runs = append(entry.Runs, LiveJobRun{
				Status:  status,
				RunID:   run.ID,
				HTMLURL: job.HTMLURL,
			})
		}
	}

	for _, job := range jobs {
		if len(job.Runs) > LiveRunsPerJob {
			job.Runs = job.Runs[:LiveRunsPerJob]
		}
		passed := 0
		for _, r := range job.Runs {
			if r.Status == string(ConclusionSuccess) {
				passed++
			}
		}
		if len(job.Runs) > 0 {
			job.PassRate = math.Round(float64(passed)*100/float64(len(job.Runs))*100) / 100
		}
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].PassRate < jobs[j].PassRate
	})
	return jobs
}
