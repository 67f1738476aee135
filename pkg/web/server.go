package web

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Server serves the dashboard and its JSON API.
type Server struct {
	repo      model.Repository
	store     interfaces.ReportStore
	live      interfaces.LiveFetcher
	inventory interfaces.InventoryBuilder
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func NewServer(repo model.Repository, store interfaces.ReportStore, live interfaces.LiveFetcher, inventory interfaces.InventoryBuilder, opts ...Option) *Server {
	s := &Server{
		repo:      repo,
		store:     store,
		live:      live,
		inventory: inventory,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) App() *fiber.App {
	app := fiber.New()

	app.Get("/", s.handleDashboard)
	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})

	api := app.Group("/api")
	api.Get("/report", s.handleReport)
	api.Get("/workflows", s.handleWorkflows)
	api.Get("/workflows/:id/live", s.handleLive)

	return app
}

// Listen serves until ctx is canceled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	app := s.App()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	s.logger.Info("dashboard listening", slog.String("addr", addr))

	select {
	case err := <-errCh:
		if err != nil {
			return goerr.Wrap(err, "dashboard server failed", goerr.V("addr", addr))
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shut down dashboard server")
		}
		return nil
	}
}

func (s *Server) context(c fiber.Ctx) context.Context {
	return ctxlog.With(c.Context(), s.logger)
}

func (s *Server) handleReport(c fiber.Ctx) error {
	report, err := s.store.Load(s.context(c))
	if err != nil {
		return s.serviceError(c, err)
	}
	return c.JSON(report)
}

func (s *Server) handleWorkflows(c fiber.Ctx) error {
	inv, err := s.inventory.Build(s.context(c), s.repo)
	if err != nil {
		return s.serviceError(c, err)
	}
	return c.JSON(inv)
}

func (s *Server) handleLive(c fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return badRequest(c, "workflow id must be a positive integer")
	}

	jobs, err := s.live.FetchLive(s.context(c), s.repo, id)
	if err != nil {
		return s.serviceError(c, err)
	}
	if len(jobs) == 0 {
		return notFound(c, "no job data found for this workflow")
	}
	return c.JSON(jobs)
}

func (s *Server) handleDashboard(c fiber.Ctx) error {
	ctx := s.context(c)

	report, err := s.store.Load(ctx)
	if err != nil && !errors.Is(err, domain.ErrReportNotFound) {
		return s.serviceError(c, err)
	}

	selected := c.Query("workflow")
	if selected == "" {
		if names := report.Names(); len(names) > 0 {
			selected = names[0]
		}
	}

	page := newDashboardPage(s.repo, report, selected, s.now())
	status := fiber.StatusOK

	wf, ok := report[selected]
	switch {
	case report == nil:
		page.Message = "No report has been collected yet. The first refresh is still running."
	case len(report) == 0:
		page.Message = "The report does not contain any workflow with runs."
	case !ok:
		page.Selected = ""
		page.Message = "Workflow " + strconv.Quote(selected) + " is not in the report."
		status = fiber.StatusNotFound
	case c.Query("live") == "1":
		page.Live = true
		jobs, err := s.live.FetchLive(ctx, s.repo, wf.ID)
		if err != nil {
			status, _ = errorStatus(err)
			page.Message = liveErrorMessage(err)
			s.logger.Warn("live refresh failed",
				slog.String("workflow", selected),
				slog.Any("error", err),
			)
			break
		}
		page.Rows = liveRows(jobs)
		if len(page.Rows) == 0 {
			page.Message = "No job data found for this workflow."
		}
	default:
		page.Rows = cachedRows(wf)
		if len(page.Rows) == 0 {
			page.Message = "No job data found for this workflow."
		}
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, page); err != nil {
		return s.serviceError(c, goerr.Wrap(err, "failed to render dashboard"))
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}

func liveErrorMessage(err error) string {
	if domain.IsRateLimit(err) {
		return rateLimitDetail(err)
	}
	return "Failed to refresh live data: " + err.Error()
}

func (s *Server) serviceError(c fiber.Ctx, err error) error {
	if status, _ := errorStatus(err); status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
	}
	return handleServiceError(c, err)
}
