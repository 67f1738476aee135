package interfaces

import (
	"github.com/m-mizutani/cistat/pkg/domain/model"
)

// Display renders collected data for a terminal
type Display interface {
	// ShowReport renders every workflow of report, or only the named one when
	// workflow is not empty.
	ShowReport(report model.Report, workflow string) error
	ShowInventory(inv *model.Inventory)
}
