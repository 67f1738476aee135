package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc"
)

// Refresher collects a fresh report, stores it and fires the report hooks.
type Refresher struct {
	collector interfaces.ReportCollector
	store     interfaces.ReportStore
	hooks     interfaces.HookExecutor
	repo      model.Repository

	mu sync.Mutex
}

func NewRefresher(collector interfaces.ReportCollector, store interfaces.ReportStore, hooks interfaces.HookExecutor, repo model.Repository) *Refresher {
	return &Refresher{
		collector: collector,
		store:     store,
		hooks:     hooks,
		repo:      repo,
	}
}

// Refresh runs one collection with its own Session. Concurrent calls are
// serialized.
func (r *Refresher) Refresh(ctx context.Context) (model.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := ctxlog.From(ctx)
	session := NewSession()
	ctx = WithSession(ctx, session)

	report, err := r.collector.Collect(ctx, r.repo)
	if err != nil {
		return nil, err
	}
	if err := r.store.Save(ctx, report); err != nil {
		return nil, err
	}

	logger.Info("report refreshed",
		slog.String("repository", r.repo.FullName()),
		slog.Int("workflows", len(report)),
		slog.Int64("requests", session.RequestCount()),
	)

	if r.hooks != nil {
		if err := NotifyReport(ctx, r.hooks, r.repo, report); err != nil {
			logger.Warn("failed to run report hooks", slog.Any("error", err))
		}
	}
	return report, nil
}

// Schedule registers Refresh on the cron spec and starts the scheduler. Runs
// that would overlap a still running refresh are skipped. The caller stops the
// returned scheduler.
func (r *Refresher) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	_, err := c.AddFunc(spec, func() {
		if _, err := r.Refresh(ctx); err != nil {
			ctxlog.From(ctx).Error("scheduled refresh failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, domain.ErrConfiguration.Wrap(goerr.Wrap(err, "invalid refresh schedule", goerr.V("schedule", spec)))
	}

	c.Start()
	return c, nil
}

// Start runs a first refresh in the background and schedules the following
// ones. The returned stop function stops the scheduler and waits for every
// running refresh, including the first one, before it returns.
func (r *Refresher) Start(ctx context.Context, spec string) (func(), error) {
	scheduler, err := r.Schedule(ctx, spec)
	if err != nil {
		return nil, err
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		if _, err := r.Refresh(ctx); err != nil {
			ctxlog.From(ctx).Error("initial refresh failed", slog.Any("error", err))
		}
	})

	return func() {
		<-scheduler.Stop().Done()
		wg.Wait()
	}, nil
}
