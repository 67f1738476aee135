package usecase

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// Config file names searched in a directory, in priority order
var configFileNames = []string{".cistat.yml", ".cistat.yaml"}

type configService struct{}

func NewConfigService() interfaces.ConfigService {
	return &configService{}
}

func (c *configService) Load(path string) (*model.Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is given by the user
	if err != nil {
		return nil, domain.ErrConfiguration.Wrap(goerr.Wrap(err, "failed to read config file", goerr.V("path", path)))
	}

	var cfg model.Config
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return nil, domain.ErrConfiguration.Wrap(goerr.Wrap(err, "failed to parse config file", goerr.V("path", path)))
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.ErrConfiguration.Wrap(goerr.Wrap(err, "invalid config file", goerr.V("path", path)))
	}

	return &cfg, nil
}

// LoadFromDirectory loads the first config file found in dir. It returns an
// empty config and an empty path when there is none. The path is returned
// even when loading fails.
func (c *configService) LoadFromDirectory(dir string) (*model.Config, string, error) {
	path := c.findConfigInDirectory(dir)
	if path == "" {
		return &model.Config{}, "", nil
	}

	cfg, err := c.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func (c *configService) findConfigInDirectory(dir string) string {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func (c *configService) GenerateTemplate() string {
	return configTemplate
}

func (c *configService) SaveTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return domain.ErrConfiguration.Wrap(goerr.New("config file already exists, use --force to overwrite", goerr.V("path", path)))
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return domain.ErrConfiguration.Wrap(err)
		}
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return domain.ErrConfiguration.Wrap(goerr.Wrap(err, "failed to write config template", goerr.V("path", path)))
	}
	return nil
}

const configTemplate = `# cistat configuration
# Command line flags take precedence over values in this file.

# Repository to summarize
owner: urunc-dev
repo: urunc

# GitHub API root, for GitHub Enterprise Server
# api_url: https://github.example.com/api/v3/

# HTTP request timeout
timeout: 30s

# Number of most recent runs examined per workflow
runs_per_workflow: 10

# Page size and page limit of the job listing of a run
jobs_per_page: 50
max_pages: 100

# Upper bound of concurrent job fetches per workflow (0 = one per run)
# max_concurrency: 4

# Workflows whose path starts with this prefix are skipped
exclude_path_prefix: dynamic/

# Export traces over OTLP/HTTP (endpoint from OTEL_EXPORTER_OTLP_* variables)
# otlp: true

hooks:
  # Fired for every workflow whose latest run failed
  workflow_failure:
    # - type: slack
    #   webhook_url: https://hooks.slack.com/services/XXX/YYY/ZZZ
    #   message: "{{.Workflow}} is failing in {{.Repository}}: {{.URL}}"
    #   color: danger

  # Fired once after each report
  report_complete:
    # - type: command
    #   command: /usr/local/bin/publish-report
    #   args: ["--repo", "{{.Repository}}"]
    #   timeout: 30s

server:
  addr: ":8080"
  # Cron spec of the report refresh
  schedule: "@every 30m"
  report_path: workflow_stats.json
  # Keep the report in Redis instead of a file
  # redis_url: redis://localhost:6379/0
  # redis_key: cistat:report
`
