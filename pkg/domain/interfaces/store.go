package interfaces

import (
	"context"

	"github.com/m-mizutani/cistat/pkg/domain/model"
)

// ReportStore keeps the most recent report. Load returns domain.ErrReportNotFound
// when nothing has been saved yet.
type ReportStore interface {
	Save(ctx context.Context, report model.Report) error
	Load(ctx context.Context) (model.Report, error)
}
