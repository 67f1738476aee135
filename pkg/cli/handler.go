package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/cistat/pkg/usecase"
	"github.com/m-mizutani/cistat/pkg/web"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

const serviceName = "cistat"

type actionFunc func(ctx context.Context, cmd *cli.Command, cfg *Config) error

func newLogger(w io.Writer, debug, verbose bool) *slog.Logger {
	logLevel := slog.LevelWarn
	if debug {
		logLevel = slog.LevelDebug
	} else if verbose {
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// withRuntime sets up logging, configuration and tracing before running fn.
func withRuntime(fn actionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		logger := newLogger(os.Stderr, cmd.Bool("debug"), cmd.Bool("verbose"))
		ctx = ctxlog.With(ctx, logger)

		cfg, err := loadConfig(ctx, cmd)
		if err != nil {
			return err
		}

		if cfg.OTLP {
			shutdown, err := usecase.SetupTracing(ctx, serviceName)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Warn("failed to flush traces", slog.Any("error", err))
				}
			}()
		}

		return fn(ctx, cmd, cfg)
	}
}

func printRequestCount(w io.Writer, session *usecase.Session) {
	fmt.Fprintf(w, "Total API requests: %d\n", session.RequestCount())
}

// collect runs one collection and returns its session along with the report,
// also when the collection fails.
func collect(ctx context.Context, cfg *Config) (model.Report, *usecase.Session, error) {
	session := usecase.NewSession()

	github, err := cfg.NewGitHubService()
	if err != nil {
		return nil, session, err
	}
	collector := usecase.NewCollector(github, cfg.CollectorOptions()...)

	report, err := collector.Collect(usecase.WithSession(ctx, session), cfg.Repo)
	return report, session, err
}

func runHooks(ctx context.Context, cfg *Config, report model.Report) error {
	if !cfg.HasHooks() {
		return nil
	}

	hooks := usecase.NewHookExecutor(cfg.HookConfig())
	defer hooks.WaitForCompletion()
	return usecase.NotifyReport(ctx, hooks, cfg.Repo, report)
}

// RunReport collects the report and writes it as JSON to stdout or --output.
func RunReport(ctx context.Context, cmd *cli.Command, cfg *Config) error {
	report, session, err := collect(ctx, cfg)
	printRequestCount(os.Stderr, session)
	if err != nil {
		return err
	}

	data, err := usecase.EncodeReport(report)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.String("output"), data); err != nil {
		return err
	}

	return runHooks(ctx, cfg, report)
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		if _, err := os.Stdout.Write(data); err != nil {
			return goerr.Wrap(err, "failed to write report")
		}
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return goerr.Wrap(err, "failed to write report", goerr.V("path", path))
	}
	return nil
}

// RunSummary renders a report as terminal tables. The report is read from
// --input or collected on the spot.
func RunSummary(ctx context.Context, cmd *cli.Command, cfg *Config) error {
	var report model.Report
	if input := cmd.String("input"); input != "" {
		loaded, err := usecase.NewFileReportStore(input).Load(ctx)
		if err != nil {
			return err
		}
		report = loaded
	} else {
		collected, err := collectWithSpinner(ctx, cfg)
		if err != nil {
			return err
		}
		report = collected
	}

	return NewDisplayManager(os.Stdout).ShowReport(report, cmd.String("workflow"))
}

func collectWithSpinner(ctx context.Context, cfg *Config) (model.Report, error) {
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Collecting workflow runs of " + cfg.Repo.FullName()
		s.Start()
		defer s.Stop()
	}

	report, session, err := collect(ctx, cfg)
	ctxlog.From(ctx).Info("collection finished", slog.Int64("requests", session.RequestCount()))
	return report, err
}

// RunWorkflows lists the workflows of the repository grouped by category.
func RunWorkflows(ctx context.Context, cmd *cli.Command, cfg *Config) error {
	github, err := cfg.NewGitHubService()
	if err != nil {
		return err
	}

	service := usecase.NewInventoryService(github)
	inv, err := service.Build(ctx, cfg.Repo)
	if err != nil {
		return err
	}

	NewDisplayManager(os.Stdout).ShowInventory(inv)

	if path := cmd.String("export"); path != "" {
		if err := service.Export(inv, path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d workflows to %s\n", inv.TotalWorkflows, path)
	}
	return nil
}

// RunServe refreshes the report on a schedule and serves the dashboard.
func RunServe(ctx context.Context, cmd *cli.Command, cfg *Config) error {
	logger := ctxlog.From(ctx)

	if cmd.IsSet("addr") {
		cfg.Server.Addr = cmd.String("addr")
	}
	if cmd.IsSet("schedule") {
		cfg.Server.Schedule = cmd.String("schedule")
	}
	if cmd.IsSet("report-path") {
		cfg.Server.ReportPath = cmd.String("report-path")
	}
	if cmd.IsSet("redis-url") {
		cfg.Server.RedisURL = cmd.String("redis-url")
	}

	github, err := cfg.NewGitHubService()
	if err != nil {
		return err
	}

	store, closeStore, err := newReportStore(ctx, cfg.Server)
	if err != nil {
		return err
	}
	defer closeStore()

	var hooks interfaces.HookExecutor
	if cfg.HasHooks() {
		hooks = usecase.NewHookExecutor(cfg.HookConfig())
		defer hooks.WaitForCompletion()
	}

	refresher := usecase.NewRefresher(
		usecase.NewCollector(github, cfg.CollectorOptions()...),
		store, hooks, cfg.Repo,
	)

	// Refreshes write through the store and fire hooks, so they must finish
	// before both are released.
	stop, err := refresher.Start(ctx, cfg.Server.Schedule)
	if err != nil {
		return err
	}
	defer stop()

	server := web.NewServer(cfg.Repo, store,
		usecase.NewLiveService(github, model.DefaultRunsPerWorkflow, cfg.JobsPerPage),
		usecase.NewInventoryService(github),
		web.WithLogger(logger),
	)
	return server.Listen(ctx, cfg.Server.Addr)
}

func newReportStore(ctx context.Context, cfg model.ServerConfig) (interfaces.ReportStore, func(), error) {
	if cfg.RedisURL == "" {
		return usecase.NewFileReportStore(cfg.ReportPath), func() {}, nil
	}

	store, err := usecase.NewRedisReportStore(ctx, cfg.RedisURL, cfg.RedisKey)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			ctxlog.From(ctx).Warn("failed to close redis client", slog.Any("error", err))
		}
	}, nil
}
