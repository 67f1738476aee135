package model

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
)

const (
	DefaultOwner             = "urunc-dev"
	DefaultRepo              = "urunc"
	DefaultRunsPerWorkflow   = 10
	DefaultJobsPerPage       = 50
	DefaultMaxPages          = 100
	DefaultExcludePathPrefix = "dynamic/"
	DefaultTimeout           = 30 * time.Second
	DefaultServerAddr        = ":8080"
	DefaultSchedule          = "@every 30m"
	DefaultReportPath        = "workflow_stats.json"
	DefaultRedisKey          = "cistat:report"
)

// Config represents the application configuration file
type Config struct {
	Owner             string       `yaml:"owner,omitempty"`
	Repo              string       `yaml:"repo,omitempty"`
	APIURL            string       `yaml:"api_url,omitempty" validate:"omitempty,url"`
	Timeout           string       `yaml:"timeout,omitempty"`
	RunsPerWorkflow   int          `yaml:"runs_per_workflow,omitempty" validate:"omitempty,min=1,max=100"`
	JobsPerPage       int          `yaml:"jobs_per_page,omitempty" validate:"omitempty,min=1,max=100"`
	MaxPages          int          `yaml:"max_pages,omitempty" validate:"omitempty,min=1"`
	MaxConcurrency    int          `yaml:"max_concurrency,omitempty" validate:"omitempty,min=1"`
	ExcludePathPrefix string       `yaml:"exclude_path_prefix,omitempty"`
	OTLP              bool         `yaml:"otlp,omitempty"`
	Hooks             HooksConfig  `yaml:"hooks,omitempty"`
	Server            ServerConfig `yaml:"server,omitempty"`
}

// HooksConfig defines hooks for report events
type HooksConfig struct {
	WorkflowFailure []Action `yaml:"workflow_failure,omitempty" validate:"dive"`
	ReportComplete  []Action `yaml:"report_complete,omitempty" validate:"dive"`
}

type ServerConfig struct {
	Addr       string `yaml:"addr,omitempty"`
	Schedule   string `yaml:"schedule,omitempty"`
	ReportPath string `yaml:"report_path,omitempty"`
	RedisURL   string `yaml:"redis_url,omitempty"`
	RedisKey   string `yaml:"redis_key,omitempty"`
}

// Action represents an action to be executed. Fields not used by the action
// type are ignored.
type Action struct {
	Type string `yaml:"type" validate:"required,oneof=slack command"`

	// slack
	WebhookURL string `yaml:"webhook_url,omitempty"`
	Message    string `yaml:"message,omitempty"`
	Color      string `yaml:"color,omitempty"`
	IconEmoji  string `yaml:"icon_emoji,omitempty"`
	UserName   string `yaml:"username,omitempty"`

	// command
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Timeout string   `yaml:"timeout,omitempty"`
	Env     []string `yaml:"env,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and parses durations and the schedule.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return goerr.Wrap(err, "invalid configuration")
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return goerr.Wrap(err, "invalid timeout", goerr.V("timeout", c.Timeout))
		}
	}
	if c.Server.Schedule != "" {
		if _, err := cron.ParseStandard(c.Server.Schedule); err != nil {
			return goerr.Wrap(err, "invalid server schedule", goerr.V("schedule", c.Server.Schedule))
		}
	}
	return nil
}

// ToSlackAction converts Action to SlackAction for type safety
func (a *Action) ToSlackAction() (*SlackAction, error) {
	if a.Type != "slack" {
		return nil, goerr.New("action is not a slack type")
	}
	if a.WebhookURL == "" {
		return nil, goerr.New("slack action requires 'webhook_url' field")
	}
	if a.Message == "" {
		return nil, goerr.New("slack action requires 'message' field")
	}

	return &SlackAction{
		WebhookURL: a.WebhookURL,
		Message:    a.Message,
		Color:      a.Color,
		IconEmoji:  a.IconEmoji,
		UserName:   a.UserName,
	}, nil
}

// ToCommandAction converts Action to CommandAction for type safety
func (a *Action) ToCommandAction() (*CommandAction, error) {
	if a.Type != "command" {
		return nil, goerr.New("action is not a command type")
	}
	if a.Command == "" {
		return nil, goerr.New("command action requires 'command' field")
	}

	cmdAction := &CommandAction{
		Command: a.Command,
		Args:    a.Args,
		Env:     a.Env,
	}

	if a.Timeout != "" {
		timeout, err := time.ParseDuration(a.Timeout)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid timeout format")
		}
		cmdAction.Timeout = timeout
	}

	return cmdAction, nil
}
