// Package anomaly decides whether a query result warrants an alert,
// delegating the anomaly judgment itself to a reasoning backend.
package anomaly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/curiolabs/curio/internal/config"
	"github.com/curiolabs/curio/internal/llm"
)

const (
	defaultMaxTokens = 300

	// Low temperature for consistent analysis.
	defaultTemperature = 0.3

	systemPrompt = "You are an anomaly detection analyst. Analyze data and identify issues."

	automaticAlertReason = "Automatic alert (always notifies)"
)

// Verdict is the structured judgment returned by the backend.
type Verdict struct {
	AnomalyDetected bool   `json:"anomaly_detected"`
	Reason          string `json:"reason"`
	Severity        string `json:"severity"`
	AlertMessage    string `json:"alert_message"`
}

type Config struct {
	Logger *slog.Logger
	LLM    llm.Client

	MaxTokens   int64
	Temperature float64
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.LLM == nil {
		return errors.New("llm client is required")
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	return nil
}

type Engine struct {
	cfg *Config
	log *slog.Logger
}

func New(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, log: cfg.Logger}, nil
}

// Decide returns whether to alert for a result and, when alerting, the
// reason line to include in the message. In anomaly mode a failed or
// unparseable judgment decides against alerting; the error is returned
// so callers can record it.
func (e *Engine) Decide(ctx context.Context, resultText string, mode config.AlertMode, threshold config.Threshold) (bool, string, error) {
	switch mode {
	case config.AlertModeAutomatic:
		return true, automaticAlertReason, nil
	case config.AlertModeAnomaly:
		verdict, err := e.Detect(ctx, resultText, threshold)
		if err != nil {
			return false, "", err
		}
		if !verdict.AnomalyDetected {
			return false, "", nil
		}
		return true, formatAlertReason(verdict), nil
	default:
		return false, "", fmt.Errorf("unknown alert mode %q", mode)
	}
}

// Detect asks the backend to judge the result against the threshold.
// The threshold is advisory context for the judgment, not a locally
// enforced rule.
func (e *Engine) Detect(ctx context.Context, resultText string, threshold config.Threshold) (Verdict, error) {
	text, err := e.cfg.LLM.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildDetectionPrompt(resultText, threshold),
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to run anomaly detection: %w", err)
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &verdict); err != nil {
		return Verdict{}, fmt.Errorf("failed to parse anomaly verdict: %w", err)
	}
	return verdict, nil
}

func buildDetectionPrompt(resultText string, threshold config.Threshold) string {
	return fmt.Sprintf(`Analyze this data query result for anomalies.

Result: %s

Anomaly Detection Rules:
- Threshold Type: %s
- Threshold Value: %.6g%%

Look for:
- Significant percentage changes (above threshold)
- Unusual spikes or drops
- Concerning trends
- Data quality issues

Respond in JSON format:
{
    "anomaly_detected": true/false,
    "reason": "brief explanation of what's anomalous",
    "severity": "low/medium/high",
    "alert_message": "clear, actionable message for the user"
}

If no anomaly detected, set anomaly_detected to false and leave other fields empty.`, resultText, threshold.Type, threshold.Value*100)
}

// formatAlertReason folds the verdict into a single reason line,
// falling back through alert message, reason and a fixed string.
func formatAlertReason(v Verdict) string {
	severity := strings.ToUpper(v.Severity)
	if severity == "" {
		severity = "UNKNOWN"
	}
	message := v.AlertMessage
	if message == "" {
		message = v.Reason
	}
	if message == "" {
		message = "Unknown anomaly"
	}
	return fmt.Sprintf("🚨 ANOMALY DETECTED (%s): %s", severity, message)
}

// stripCodeFences removes markdown fences models sometimes wrap JSON in.
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
