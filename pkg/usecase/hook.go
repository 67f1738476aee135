package usecase

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/sourcegraph/conc"
)

type hookExecutor struct {
	config  *model.Config
	actions map[string]interfaces.ActionExecutor
	wg      conc.WaitGroup
}

// NewHookExecutor creates a new HookExecutor instance
func NewHookExecutor(config *model.Config) interfaces.HookExecutor {
	return &hookExecutor{
		config: config,
		actions: map[string]interfaces.ActionExecutor{
			"slack":   NewSlackAction(),
			"command": NewCommandAction(),
		},
	}
}

// Execute runs hooks for the given event. Actions of workflow_failure events
// run in the background; report_complete actions are awaited so that they
// observe the report before the next one is collected.
func (h *hookExecutor) Execute(ctx context.Context, event model.ReportEvent) error {
	actions := h.getActionsForEvent(event.Type)
	if len(actions) == 0 {
		return nil
	}

	if event.Type == model.HookReportComplete {
		var wg conc.WaitGroup
		for _, action := range actions {
			wg.Go(func() { h.run(ctx, action, event) })
		}
		wg.Wait()
		return nil
	}

	for _, action := range actions {
		h.wg.Go(func() { h.run(ctx, action, event) })
	}
	return nil
}

func (h *hookExecutor) WaitForCompletion() {
	h.wg.Wait()
}

func (h *hookExecutor) run(ctx context.Context, action model.Action, event model.ReportEvent) {
	if err := h.executeAction(ctx, action, event); err != nil {
		ctxlog.From(ctx).Warn("Failed to execute hook action",
			slog.String("type", action.Type),
			slog.String("event", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// getActionsForEvent returns actions configured for the given event type
func (h *hookExecutor) getActionsForEvent(eventType model.HookEvent) []model.Action {
	if h.config == nil {
		return nil
	}

	switch eventType {
	case model.HookWorkflowFailure:
		return h.config.Hooks.WorkflowFailure
	case model.HookReportComplete:
		return h.config.Hooks.ReportComplete
	default:
		return nil
	}
}

func (h *hookExecutor) executeAction(ctx context.Context, action model.Action, event model.ReportEvent) error {
	executor, ok := h.actions[action.Type]
	if !ok {
		ctxlog.From(ctx).Warn("Unknown action type",
			slog.String("type", action.Type),
		)
		return nil
	}

	return executor.Execute(ctx, action, event)
}

// NotifyReport fires workflow_failure hooks for every failing workflow of
// report and then the report_complete hooks.
func NotifyReport(ctx context.Context, hooks interfaces.HookExecutor, repo model.Repository, report model.Report) error {
	failing := report.Failing()
	for _, name := range failing {
		wf := report[name]
		event := model.ReportEvent{
			Type:       model.HookWorkflowFailure,
			Repository: repo.FullName(),
			Workflow:   name,
			URL:        wf.LatestRun.HTMLURL,
			Workflows:  len(report),
			Failing:    failing,
		}
		if err := hooks.Execute(ctx, event); err != nil {
			return err
		}
	}

	return hooks.Execute(ctx, model.ReportEvent{
		Type:       model.HookReportComplete,
		Repository: repo.FullName(),
		Workflows:  len(report),
		Failing:    failing,
	})
}
