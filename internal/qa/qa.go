// Package qa is the client for the text-to-SQL question answering
// service. Answers arrive as a server-sent event stream whose data
// chunks are concatenated into a single result text.
package qa

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Minute

// Client asks a natural-language question and returns the answer text.
type Client interface {
	Ask(ctx context.Context, message string) (string, error)
}

type Config struct {
	Logger     *slog.Logger
	HTTPClient *http.Client

	APIURL    string
	APIKey    string
	UserEmail string
	AgentID   string
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.APIURL == "" {
		return errors.New("api url is required")
	}
	if c.APIKey == "" {
		return errors.New("api key is required")
	}
	if c.UserEmail == "" {
		return errors.New("user email is required")
	}
	if c.AgentID == "" {
		return errors.New("agent id is required")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: defaultTimeout, // Long timeout for streaming responses
		}
	}
	return nil
}

// askRequest is the request body for the chat endpoint.
type askRequest struct {
	Message             string   `json:"message"`
	UserEmail           string   `json:"user_email"`
	AgentID             string   `json:"agent_id"`
	AcceptableResponses []string `json:"acceptable_responses"`
}

// answerChunk is one data event in the answer stream.
type answerChunk struct {
	Text string `json:"text"`
}

type client struct {
	cfg *Config
	log *slog.Logger
}

func New(cfg *Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &client{cfg: cfg, log: cfg.Logger}, nil
}

func (c *client) Ask(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(askRequest{
		Message:             message,
		UserEmail:           c.cfg.UserEmail,
		AgentID:             c.cfg.AgentID,
		AcceptableResponses: []string{"text", "dataframe"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-API-KEY", c.cfg.APIKey)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	return c.readStream(ctx, resp.Body)
}

// readStream concatenates the text fields of every data event until the
// stream ends. Lines that are not data events, and data events that do
// not parse, are skipped.
func (c *client) readStream(ctx context.Context, body io.Reader) (string, error) {
	reader := bufio.NewReader(body)
	var result strings.Builder

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("error reading stream: %w", err)
		}

		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
			var chunk answerChunk
			if jsonErr := json.Unmarshal([]byte(data), &chunk); jsonErr != nil {
				c.log.Debug("skipping unparseable stream chunk", "error", jsonErr)
			} else {
				result.WriteString(chunk.Text)
			}
		}

		if err == io.EOF {
			return result.String(), nil
		}
	}
}
