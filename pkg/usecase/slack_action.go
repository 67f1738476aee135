package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const slackMaxAttempts = 3

type slackAction struct {
	httpClient *http.Client
	backoff    func(attempt int) time.Duration
}

// NewSlackAction creates a new SlackAction instance
func NewSlackAction() interfaces.ActionExecutor {
	client := cleanhttp.DefaultClient()
	client.Timeout = 30 * time.Second
	return &slackAction{
		httpClient: client,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
	}
}

// slackStatusError is returned when the webhook answers with a non-200 status
type slackStatusError struct {
	status int
	body   string
}

func (e *slackStatusError) Error() string {
	return fmt.Sprintf("slack webhook returned status %d: %s", e.status, e.body)
}

// Execute sends a notification to Slack
func (s *slackAction) Execute(ctx context.Context, action model.Action, event model.ReportEvent) error {
	logger := ctxlog.From(ctx)

	slackAction, err := action.ToSlackAction()
	if err != nil {
		return goerr.Wrap(err, "failed to parse slack action")
	}

	webhookURL := os.ExpandEnv(slackAction.WebhookURL)
	if webhookURL == "" {
		return goerr.New("webhook URL is empty after expansion")
	}

	message, err := buildMessage(slackAction.Message, event)
	if err != nil {
		return goerr.Wrap(err, "failed to build message", goerr.V("template", slackAction.Message))
	}

	payload := model.SlackPayload{
		Text:      message,
		UserName:  slackAction.UserName,
		IconEmoji: slackAction.IconEmoji,
	}
	if slackAction.Color != "" {
		payload.Attachments = []model.Attachment{
			{
				Color:     slackAction.Color,
				Text:      message,
				Footer:    fmt.Sprintf("cistat - %s", event.Repository),
				Timestamp: time.Now().Unix(),
			},
		}
		// Clear main text to avoid duplication
		payload.Text = ""
	}

	for attempt := 0; attempt < slackMaxAttempts; attempt++ {
		err = s.sendToSlack(ctx, webhookURL, payload)
		if err == nil {
			logger.Debug("Slack notification sent",
				slog.Int("attempt", attempt+1),
			)
			return nil
		}

		var se *slackStatusError
		if !errors.As(err, &se) || se.status != http.StatusTooManyRequests || attempt == slackMaxAttempts-1 {
			break
		}

		backoff := s.backoff(attempt)
		logger.Warn("Rate limited by Slack, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "slack notification canceled")
		case <-time.After(backoff):
		}
	}

	return goerr.Wrap(err, "failed to send slack notification")
}

// buildMessage renders a Go template with the event as data
func buildMessage(messageTemplate string, event model.ReportEvent) (string, error) {
	data := struct {
		model.ReportEvent
		EventType string
		Timestamp time.Time
	}{
		ReportEvent: event,
		EventType:   string(event.Type),
		Timestamp:   time.Now(),
	}

	tmpl, err := template.New("message").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(messageTemplate)
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse message template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to execute message template")
	}

	return buf.String(), nil
}

func (s *slackAction) sendToSlack(ctx context.Context, webhookURL string, payload model.SlackPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal slack payload")
	}

	ctxlog.From(ctx).Debug("Sending to Slack",
		slog.String("webhook_url", maskWebhookURL(webhookURL)),
		slog.String("payload", string(jsonData)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var respBody bytes.Buffer
		_, _ = respBody.ReadFrom(resp.Body)
		return &slackStatusError{status: resp.StatusCode, body: respBody.String()}
	}

	return nil
}

// maskWebhookURL masks the webhook URL for logging
func maskWebhookURL(url string) string {
	if strings.Contains(url, "hooks.slack.com") {
		parts := strings.Split(url, "/")
		if len(parts) > 3 {
			for i := len(parts) - 3; i < len(parts); i++ {
				if len(parts[i]) > 4 {
					parts[i] = parts[i][:2] + "***"
				}
			}
			return strings.Join(parts, "/")
		}
	}
	if len(url) > 20 {
		return url[:20] + "***"
	}
	return "***"
}
