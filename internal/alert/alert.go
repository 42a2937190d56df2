// Package alert delivers monitoring alerts to a Slack channel, via the
// bot API when a token is configured or an incoming webhook otherwise.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	slackutil "github.com/takara2314/slack-go-util"
)

const defaultTimeout = 30 * time.Second

// Alert is one decided alert ready for delivery.
type Alert struct {
	TaskName string
	TaskType string
	Reason   string
	Question string
	Time     time.Time
}

// Dispatcher sends alerts. Dispatch reports whether an alert was
// actually delivered; an unconfigured dispatcher is a silent no-op and
// delivery failures never propagate to the caller.
type Dispatcher interface {
	Enabled() bool
	Dispatch(ctx context.Context, a Alert) bool
}

type SlackConfig struct {
	Logger     *slog.Logger
	HTTPClient *http.Client

	BotToken   string
	Channel    string
	WebhookURL string

	// APIURL overrides the Slack API base URL, for tests.
	APIURL string
}

func (c *SlackConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.BotToken != "" && c.Channel == "" {
		return errors.New("slack channel is required when a bot token is set")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	return nil
}

// SlackDispatcher implements Dispatcher. With no bot token and no
// webhook URL it stays disabled and drops every alert.
type SlackDispatcher struct {
	cfg *SlackConfig
	log *slog.Logger
	api *slack.Client
}

func NewSlackDispatcher(cfg *SlackConfig) (*SlackDispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &SlackDispatcher{cfg: cfg, log: cfg.Logger}
	if cfg.BotToken != "" {
		opts := []slack.Option{slack.OptionHTTPClient(cfg.HTTPClient)}
		if cfg.APIURL != "" {
			opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
		}
		d.api = slack.New(cfg.BotToken, opts...)
	}
	return d, nil
}

func (d *SlackDispatcher) Enabled() bool {
	return d.api != nil || d.cfg.WebhookURL != ""
}

// Dispatch delivers the alert, preferring the bot API over the webhook.
func (d *SlackDispatcher) Dispatch(ctx context.Context, a Alert) bool {
	if !d.Enabled() {
		return false
	}
	text := formatAlertText(a)

	var err error
	if d.api != nil {
		err = d.postMessage(ctx, text)
	} else {
		err = d.postWebhook(ctx, text)
	}
	if err != nil {
		d.log.Warn("failed to send slack alert", "task", a.TaskName, "error", err)
		return false
	}
	d.log.Info("slack alert sent", "task", a.TaskName)
	return true
}

func (d *SlackDispatcher) postMessage(ctx context.Context, text string) error {
	var opts []slack.MsgOption
	blocks, err := slackutil.ConvertMarkdownTextToBlocks(text)
	if err != nil {
		d.log.Debug("failed to convert alert to blocks, using plain text", "error", err)
		opts = append(opts, slack.MsgOptionText(text, false))
	} else {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}

	if _, _, err := d.api.PostMessageContext(ctx, d.cfg.Channel, opts...); err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	return nil
}

type webhookPayload struct {
	Text string `json:"text"`
}

func (d *SlackDispatcher) postWebhook(ctx context.Context, text string) error {
	body, err := json.Marshal(webhookPayload{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status from Slack webhook: %d", resp.StatusCode)
	}
	return nil
}

func formatAlertText(a Alert) string {
	return fmt.Sprintf(`🔔 MONITORING ALERT

Task: %s
Type: %s

%s

Question: %s

Time: %s`, strings.ToUpper(a.TaskName), a.TaskType, a.Reason, a.Question, a.Time.Format("2006-01-02 15:04:05"))
}
