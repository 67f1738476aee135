package model

// HookEvent represents a type of report event
type HookEvent string

const (
	HookWorkflowFailure HookEvent = "workflow_failure"
	HookReportComplete  HookEvent = "report_complete"
)

// ReportEvent contains information about a report event. Workflow fields are
// empty for report_complete events.
type ReportEvent struct {
	Type       HookEvent
	Repository string
	Workflow   string
	URL        string
	Workflows  int
	Failing    []string
}
