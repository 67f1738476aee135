package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const defaultCommandTimeout = 30 * time.Second

type commandAction struct{}

// NewCommandAction creates a new CommandAction instance
func NewCommandAction() interfaces.ActionExecutor {
	return &commandAction{}
}

// Execute runs a command. Arguments are rendered as templates with the event
// as data, and the event is also exported as CISTAT_* environment variables.
func (c *commandAction) Execute(ctx context.Context, action model.Action, event model.ReportEvent) error {
	logger := ctxlog.From(ctx)

	cmdAction, err := action.ToCommandAction()
	if err != nil {
		return goerr.Wrap(err, "failed to parse command action")
	}

	env := c.prepareEnv(event)
	if len(cmdAction.Env) > 0 {
		env = append(env, cmdAction.Env...)
	}

	timeout := cmdAction.Timeout
	if timeout == 0 {
		timeout = defaultCommandTimeout
	}

	args := make([]string, len(cmdAction.Args))
	for i, arg := range cmdAction.Args {
		rendered, err := buildMessage(os.ExpandEnv(arg), event)
		if err != nil {
			return goerr.Wrap(err, "failed to render command argument", goerr.V("arg", arg))
		}
		args[i] = rendered
	}

	if err := c.executeCommand(ctx, expandPath(cmdAction.Command), args, env, timeout); err != nil {
		return goerr.Wrap(err, "command execution failed",
			goerr.V("command", cmdAction.Command),
			goerr.V("timeout", timeout),
		)
	}

	logger.Debug("Command executed successfully",
		slog.String("command", cmdAction.Command),
		slog.Any("args", args),
	)
	return nil
}

func (c *commandAction) prepareEnv(event model.ReportEvent) []string {
	env := os.Environ()

	vars := map[string]string{
		"CISTAT_EVENT_TYPE": string(event.Type),
		"CISTAT_REPOSITORY": event.Repository,
		"CISTAT_WORKFLOW":   event.Workflow,
		"CISTAT_RUN_URL":    event.URL,
		"CISTAT_WORKFLOWS":  strconv.Itoa(event.Workflows),
		"CISTAT_FAILING":    strings.Join(event.Failing, ","),
	}
	for key, value := range vars {
		env = append(env, key+"="+value)
	}

	return env
}

func (c *commandAction) executeCommand(ctx context.Context, command string, args, env []string, timeout time.Duration) error {
	logger := ctxlog.From(ctx)

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, command, args...) // #nosec G204 - command is from config file
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Executing command",
		slog.String("command", command),
		slog.Any("args", args),
		slog.Duration("timeout", timeout),
	)

	err := cmd.Run()

	if stdout.Len() > 0 {
		logger.Debug("Command stdout",
			slog.String("command", command),
			slog.String("stdout", stdout.String()),
		)
	}
	if stderr.Len() > 0 {
		logger.Debug("Command stderr",
			slog.String("command", command),
			slog.String("stderr", stderr.String()),
		)
	}

	if err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return goerr.New(fmt.Sprintf("command timed out after %s", timeout))
		}
		errMsg := fmt.Sprintf("command failed: %v", err)
		if stderr.Len() > 0 {
			errMsg += fmt.Sprintf(", stderr: %s", stderr.String())
		}
		return goerr.New(errMsg)
	}

	return nil
}

// expandPath expands environment variables and a leading ~ in path
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
