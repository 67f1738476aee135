package cli

import (
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

func NewCommand() *cli.Command {
	flags := append(DefineFlags(),
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
			Value: false,
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable verbose logging",
			Value: false,
		},
	)

	return &cli.Command{
		Name:    "cistat",
		Usage:   "CI health summary for GitHub Actions",
		Version: "0.1.0",
		Description: `cistat collects the recent runs of every GitHub Actions workflow of a repository
and aggregates the pass, fail and skip outcomes of each job.

By default it prints the report as JSON on stdout and the number of API requests
on stderr. The token is read from GITHUB_TOKEN or TOKEN.`,
		Flags:  append(flags, outputFlag()),
		Action: withRuntime(RunReport),
		Commands: []*cli.Command{
			newReportCommand(),
			newSummaryCommand(),
			newServeCommand(),
			newWorkflowsCommand(),
			NewConfigCommand(),
		},
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write the report to a file instead of stdout",
		Local:   true,
	}
}

func newReportCommand() *cli.Command {
	return &cli.Command{
		Name:   "report",
		Usage:  "Collect the report and print it as JSON",
		Flags:  []cli.Flag{outputFlag()},
		Action: withRuntime(RunReport),
	}
}

func newSummaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Show job pass rates as terminal tables",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Read a report JSON file instead of collecting",
			},
			&cli.StringFlag{
				Name:    "workflow",
				Aliases: []string{"w"},
				Usage:   "Show only this workflow",
			},
		},
		Action: withRuntime(RunSummary),
	}
}

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the dashboard and refresh the report on a schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address",
				Value: model.DefaultServerAddr,
			},
			&cli.StringFlag{
				Name:  "schedule",
				Usage: "Refresh schedule in cron syntax",
				Value: model.DefaultSchedule,
			},
			&cli.StringFlag{
				Name:  "report-path",
				Usage: "Path of the cached report",
				Value: model.DefaultReportPath,
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Cache the report in Redis instead of a file",
				Sources: cli.EnvVars("CISTAT_REDIS_URL"),
			},
		},
		Action: withRuntime(RunServe),
	}
}

func newWorkflowsCommand() *cli.Command {
	return &cli.Command{
		Name:  "workflows",
		Usage: "List workflows grouped by category",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "export",
				Aliases: []string{"e"},
				Usage:   "Export the inventory as JSON to this file",
			},
		},
		Action: withRuntime(RunWorkflows),
	}
}
