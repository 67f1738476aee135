package cli

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/cistat/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Config is the resolved runtime configuration: defaults, then the config
// file, then command line flags.
type Config struct {
	Repo              model.Repository
	Token             string
	APIURL            string
	Timeout           time.Duration `validate:"gt=0"`
	RunsPerWorkflow   int           `validate:"min=1,max=100"`
	JobsPerPage       int           `validate:"min=1,max=100"`
	MaxPages          int           `validate:"min=1"`
	MaxConcurrency    int           `validate:"min=0"`
	ExcludePathPrefix string
	OTLP              bool
	Hooks             model.HooksConfig
	Server            model.ServerConfig
}

var validate = validator.New()

func NewConfig() *Config {
	return &Config{
		Repo:              model.Repository{Owner: model.DefaultOwner, Name: model.DefaultRepo},
		Timeout:           model.DefaultTimeout,
		RunsPerWorkflow:   model.DefaultRunsPerWorkflow,
		JobsPerPage:       model.DefaultJobsPerPage,
		MaxPages:          model.DefaultMaxPages,
		ExcludePathPrefix: model.DefaultExcludePathPrefix,
		Server: model.ServerConfig{
			Addr:       model.DefaultServerAddr,
			Schedule:   model.DefaultSchedule,
			ReportPath: model.DefaultReportPath,
			RedisKey:   model.DefaultRedisKey,
		},
	}
}

// ApplyFile overrides the defaults with the values set in a config file.
func (c *Config) ApplyFile(file *model.Config) error {
	if file == nil {
		return nil
	}

	setString(&c.Repo.Owner, file.Owner)
	setString(&c.Repo.Name, file.Repo)
	setString(&c.APIURL, file.APIURL)
	setString(&c.ExcludePathPrefix, file.ExcludePathPrefix)
	setInt(&c.RunsPerWorkflow, file.RunsPerWorkflow)
	setInt(&c.JobsPerPage, file.JobsPerPage)
	setInt(&c.MaxPages, file.MaxPages)
	setInt(&c.MaxConcurrency, file.MaxConcurrency)
	if file.Timeout != "" {
		d, err := time.ParseDuration(file.Timeout)
		if err != nil {
			return domain.ErrConfiguration.Wrap(goerr.Wrap(err, "invalid timeout", goerr.V("timeout", file.Timeout)))
		}
		c.Timeout = d
	}
	c.OTLP = c.OTLP || file.OTLP
	c.Hooks = file.Hooks

	setString(&c.Server.Addr, file.Server.Addr)
	setString(&c.Server.Schedule, file.Server.Schedule)
	setString(&c.Server.ReportPath, file.Server.ReportPath)
	setString(&c.Server.RedisURL, file.Server.RedisURL)
	setString(&c.Server.RedisKey, file.Server.RedisKey)
	return nil
}

func (c *Config) applyFlags(cmd *cli.Command) {
	if cmd.IsSet("owner") {
		c.Repo.Owner = cmd.String("owner")
	}
	if cmd.IsSet("repo") {
		c.Repo.Name = cmd.String("repo")
	}
	if cmd.IsSet("token") {
		c.Token = cmd.String("token")
	}
	if cmd.IsSet("api-url") {
		c.APIURL = cmd.String("api-url")
	}
	if cmd.IsSet("timeout") {
		c.Timeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("runs") {
		c.RunsPerWorkflow = int(cmd.Int("runs"))
	}
	if cmd.Bool("otlp") {
		c.OTLP = true
	}
}

// Validate checks the resolved values. The run count and the job page size
// are sent as per_page, which the API caps at 100.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return domain.ErrConfiguration.Wrap(goerr.Wrap(err, "invalid configuration"))
	}
	return nil
}

// HookConfig returns the config consumed by the hook executor.
func (c *Config) HookConfig() *model.Config {
	return &model.Config{Hooks: c.Hooks}
}

func (c *Config) HasHooks() bool {
	return len(c.Hooks.WorkflowFailure) > 0 || len(c.Hooks.ReportComplete) > 0
}

// NewGitHubService resolves the API token and builds the API client. A missing
// token fails here, before any request is sent.
func (c *Config) NewGitHubService() (interfaces.GitHubService, error) {
	token, err := usecase.ResolveToken(c.Token)
	if err != nil {
		return nil, err
	}

	return usecase.NewGitHubService(
		usecase.NewHTTPClient(token, c.Timeout),
		usecase.WithAPIURL(c.APIURL),
		usecase.WithMaxPages(c.MaxPages),
	)
}

func (c *Config) CollectorOptions() []usecase.CollectorOption {
	return []usecase.CollectorOption{
		usecase.WithRunsPerWorkflow(c.RunsPerWorkflow),
		usecase.WithJobsPerPage(c.JobsPerPage),
		usecase.WithJobPageLimit(c.MaxPages),
		usecase.WithMaxConcurrency(c.MaxConcurrency),
		usecase.WithExcludePathPrefix(c.ExcludePathPrefix),
		usecase.WithTracer(usecase.Tracer()),
	}
}

// loadConfig builds the Config of one invocation. The config file is taken
// from --config, or searched in the working directory.
func loadConfig(ctx context.Context, cmd *cli.Command) (*Config, error) {
	service := usecase.NewConfigService()

	var file *model.Config
	if path := cmd.String("config"); path != "" {
		loaded, err := service.Load(path)
		if err != nil {
			return nil, err
		}
		file = loaded
	} else {
		dir, err := os.Getwd()
		if err != nil {
			return nil, domain.ErrConfiguration.Wrap(err)
		}
		loaded, path, err := service.LoadFromDirectory(dir)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load config file", goerr.V("path", path))
		}
		file = loaded
	}

	cfg := NewConfig()
	if err := cfg.ApplyFile(file); err != nil {
		return nil, err
	}
	cfg.applyFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Repo.Owner == "" || cfg.Repo.Name == "" {
		return nil, domain.ErrConfiguration.Wrap(goerr.New("owner and repo must not be empty",
			goerr.V("owner", cfg.Repo.Owner), goerr.V("repo", cfg.Repo.Name)))
	}
	return cfg, nil
}

func DefineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "owner",
			Usage:   "Repository owner",
			Value:   model.DefaultOwner,
			Sources: cli.EnvVars("CISTAT_OWNER"),
		},
		&cli.StringFlag{
			Name:    "repo",
			Usage:   "Repository name",
			Value:   model.DefaultRepo,
			Sources: cli.EnvVars("CISTAT_REPO"),
		},
		&cli.StringFlag{
			Name:  "token",
			Usage: "GitHub API token (default: $GITHUB_TOKEN or $TOKEN)",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file (default: .cistat.yml in the working directory)",
		},
		&cli.StringFlag{
			Name:  "api-url",
			Usage: "GitHub API base URL",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "HTTP request timeout",
			Value: model.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:  "runs",
			Usage: "Number of recent runs per workflow",
			Value: model.DefaultRunsPerWorkflow,
		},
		&cli.BoolFlag{
			Name:  "otlp",
			Usage: "Export traces with OTLP/HTTP (configured by OTEL_EXPORTER_OTLP_* variables)",
		},
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
