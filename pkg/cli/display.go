package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			PaddingLeft(1).
			PaddingRight(1)

	cellStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			PaddingRight(1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// DisplayManager renders reports and inventories as terminal tables.
type DisplayManager struct {
	w io.Writer
}

func NewDisplayManager(w io.Writer) interfaces.Display {
	return &DisplayManager{w: w}
}

// ShowReport prints one table per workflow, or only the named workflow.
func (d *DisplayManager) ShowReport(report model.Report, workflow string) error {
	names := report.Names()
	if workflow != "" {
		if _, ok := report[workflow]; !ok {
			return domain.ErrConfiguration.Wrap(goerr.New("workflow not found in report",
				goerr.V("workflow", workflow),
				goerr.V("available", strings.Join(names, ", ")),
			))
		}
		names = []string{workflow}
	}

	if len(names) == 0 {
		fmt.Fprintln(d.w, dimStyle.Render("No workflows with runs found"))
		return nil
	}

	for _, name := range names {
		d.showWorkflow(name, report[name])
		fmt.Fprintln(d.w)
	}
	return nil
}

func (d *DisplayManager) showWorkflow(name string, wf *model.WorkflowReport) {
	fmt.Fprintln(d.w, titleStyle.Render(name))
	fmt.Fprintf(d.w, "%s | %d runs | latest: %s\n",
		wf.Category, wf.TotalRuns, latestRunText(wf.LatestRun))

	rows := make([][]string, 0, len(wf.Jobs))
	for _, job := range wf.JobNames() {
		stat := wf.Jobs[job]
		rows = append(rows, []string{
			job,
			passRateText(stat),
			badges(stat.Results),
		})
	}

	t := table.New().
		Headers("Job", "Pass rate", "Results").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			return cellStyle
		})
	fmt.Fprintln(d.w, t.String())
}

// ShowInventory prints workflows grouped by category.
func (d *DisplayManager) ShowInventory(inv *model.Inventory) {
	fmt.Fprintf(d.w, "%s: %d workflows\n\n", titleStyle.Render(inv.Repository), inv.TotalWorkflows)

	for _, category := range model.Categories() {
		entries := inv.Categories[category]
		if len(entries) == 0 {
			continue
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.Name, e.State, e.Path, fmt.Sprintf("%d", e.ID)})
		}

		fmt.Fprintf(d.w, "%s (%d)\n", titleStyle.Render(string(category)), len(entries))
		t := table.New().
			Headers("Name", "State", "Path", "ID").
			Rows(rows...).
			Border(lipgloss.RoundedBorder()).
			BorderStyle(borderStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerCellStyle
				}
				return cellStyle
			})
		fmt.Fprintln(d.w, t.String())
		fmt.Fprintln(d.w)
	}
}

func latestRunText(run *model.LatestRun) string {
	if run == nil {
		return "none"
	}
	conclusion := string(run.Conclusion)
	if conclusion == "" {
		conclusion = "in progress"
	}
	return fmt.Sprintf("%s (%s)", conclusion, humanize.Time(run.CreatedAt))
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

func passRateText(stat *model.JobStat) string {
	rate := stat.PassRate()
	text := fmt.Sprintf("%.1f%% (%d/%d)", rate, stat.Passes(), stat.Runs)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(passRateColor(rate))).Render(text)
}

var (
	passBadge = color.New(color.FgGreen).SprintFunc()
	failBadge = color.New(color.FgRed).SprintFunc()
	skipBadge = color.New(color.FgHiBlack).SprintFunc()
)

func badges(results []model.Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString(" ")
		}
		switch r {
		case model.ResultPass:
			b.WriteString(passBadge("✓"))
		case model.ResultFail:
			b.WriteString(failBadge("✗"))
		default:
			b.WriteString(skipBadge("○"))
		}
	}
	return b.String()
}
