package interfaces

import (
	"context"

	"github.com/m-mizutani/cistat/pkg/domain/model"
)

// HookExecutor executes hooks based on report events
type HookExecutor interface {
	Execute(ctx context.Context, event model.ReportEvent) error
	// WaitForCompletion waits for all pending actions to complete.
	// This should be called only when the process is about to exit.
	WaitForCompletion()
}

// ActionExecutor executes a specific action
type ActionExecutor interface {
	Execute(ctx context.Context, action model.Action, event model.ReportEvent) error
}
