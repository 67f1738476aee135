package model

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
)

// Conclusion is the terminal outcome of a run or job. The empty value means the
// provider reported null and is serialized back as null.
type Conclusion string

const (
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
	ConclusionSkipped   Conclusion = "skipped"
	ConclusionTimedOut  Conclusion = "timed_out"
	ConclusionNone      Conclusion = ""
)

func (c Conclusion) MarshalJSON() ([]byte, error) {
	if c == ConclusionNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

type Workflow struct {
	ID       int64  `validate:"required"`
	Name     string `validate:"required"`
	Path     string `validate:"required"`
	State    string
	HTMLURL  string
	Category Category
}

type Run struct {
	ID         int64 `validate:"required"`
	RunNumber  int
	CreatedAt  time.Time
	Status     RunStatus
	Conclusion Conclusion
	JobsURL    string `validate:"required"`
	HTMLURL    string
}

func (r *Run) InProgress() bool {
	return r.Status == RunStatusInProgress
}

type Job struct {
	Name       string `validate:"required"`
	RunID      int64
	HTMLURL    string
	Conclusion Conclusion
	Status     string
}

// JobPage is one page of the job listing of a run.
type JobPage struct {
	TotalCount int
	Jobs       []*Job
}

// RunWithJobs is a run together with every job collected for it. Conclusion is
// left empty for runs that were still in progress.
type RunWithJobs struct {
	ID         int64
	RunNumber  int
	CreatedAt  time.Time
	Conclusion Conclusion
	Jobs       []*Job
}
