package model

type Result string

const (
	ResultPass Result = "Pass"
	ResultFail Result = "Fail"
	ResultSkip Result = "Skip"
)

// JobStat aggregates the outcomes of one job name across runs. Results, RunNums
// and URLs are parallel and always have Runs entries, in encounter order.
type JobStat struct {
	Runs    int      `json:"runs"`
	Fails   int      `json:"fails"`
	Skips   int      `json:"skips"`
	URLs    []string `json:"urls"`
	Results []Result `json:"results"`
	RunNums []int    `json:"run_nums"`
}

func newJobStat() *JobStat {
	return &JobStat{
		URLs:    []string{},
		Results: []Result{},
		RunNums: []int{},
	}
}

func (s *JobStat) add(runNumber int, job *Job) {
	s.Runs++
	s.RunNums = append(s.RunNums, runNumber)
	s.URLs = append(s.URLs, job.HTMLURL)

	switch job.Conclusion {
	case ConclusionSuccess:
		s.Results = append(s.Results, ResultPass)
	case ConclusionSkipped:
		s.Skips++
		s.Results = append(s.Results, ResultSkip)
	default:
		s.Fails++
		s.Results = append(s.Results, ResultFail)
	}
}

// Passes is the number of occurrences that were neither failures nor skips.
func (s *JobStat) Passes() int {
	return s.Runs - s.Fails - s.Skips
}

// PassRate returns passes over runs as a percentage, 0 when there are no runs.
func (s *JobStat) PassRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Passes()) * 100 / float64(s.Runs)
}

// ComputeJobStats folds runs into per-job statistics. Runs are visited in the
// given order and jobs in the order they were fetched.
func ComputeJobStats(runs []*RunWithJobs) map[string]*JobStat {
	stats := make(map[string]*JobStat)
	for _, run := range runs {
		for _, job := range run.Jobs {
			stat, ok := stats[job.Name]
			if !ok {
				stat = newJobStat()
				stats[job.Name] = stat
			}
			stat.add(run.RunNumber, job)
		}
	}
	return stats
}
