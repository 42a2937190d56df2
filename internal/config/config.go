package config

import (
	"fmt"
	"os"
)

// Environment variable names read by LoadFromEnv. The curioctl setup checker
// reports against the same names.
const (
	EnvQAAPIURL          = "QA_API_URL"
	EnvQAAPIKey          = "QA_API_KEY"
	EnvQAUserEmail       = "QA_USER_EMAIL"
	EnvQAAgentID         = "QA_AGENT_ID"
	EnvStructuredPrefix  = "QA_STRUCTURED_PREFIX"
	EnvExploratoryPrefix = "QA_EXPLORATORY_PREFIX"

	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"

	EnvSlackBotToken   = "SLACK_BOT_TOKEN"
	EnvSlackChannel    = "SLACK_CHANNEL"
	EnvSlackWebhookURL = "SLACK_WEBHOOK_URL"

	EnvSchemaPath       = "SCHEMA_PATH"
	EnvTrainingDataPath = "TRAINING_DATA_PATH"
	EnvTasksConfigPath  = "TASKS_CONFIG_PATH"
	EnvQuestionDBPath   = "QUESTION_DB_PATH"
)

const (
	DefaultSchemaPath       = "schema.json"
	DefaultTrainingDataPath = "training_data.csv"
	DefaultTasksConfigPath  = "tasks.yaml"
	DefaultQuestionDBPath   = "questions.db"
)

// Config holds all agent configuration loaded from the environment.
type Config struct {
	// Q&A backend (text-to-SQL service) configuration.
	QAAPIURL          string
	QAAPIKey          string
	QAUserEmail       string
	QAAgentID         string
	StructuredPrefix  string
	ExploratoryPrefix string

	// Anthropic configuration. The SDK reads the key from the environment
	// itself; it is validated here so a missing key fails at startup.
	AnthropicAPIKey string

	// Slack alert channel configuration. All optional; alerts are disabled
	// when neither a bot token nor a webhook URL is set.
	SlackBotToken   string
	SlackChannel    string
	SlackWebhookURL string

	// File paths.
	SchemaPath       string
	TrainingDataPath string
	TasksConfigPath  string
	QuestionDBPath   string
}

// LoadFromEnv loads agent configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}

	cfg.QAAPIURL = os.Getenv(EnvQAAPIURL)
	if cfg.QAAPIURL == "" {
		return nil, fmt.Errorf("%s is required", EnvQAAPIURL)
	}
	cfg.QAAPIKey = os.Getenv(EnvQAAPIKey)
	if cfg.QAAPIKey == "" {
		return nil, fmt.Errorf("%s is required", EnvQAAPIKey)
	}
	cfg.QAUserEmail = os.Getenv(EnvQAUserEmail)
	if cfg.QAUserEmail == "" {
		return nil, fmt.Errorf("%s is required", EnvQAUserEmail)
	}
	cfg.QAAgentID = os.Getenv(EnvQAAgentID)
	if cfg.QAAgentID == "" {
		return nil, fmt.Errorf("%s is required", EnvQAAgentID)
	}
	cfg.StructuredPrefix = os.Getenv(EnvStructuredPrefix)
	cfg.ExploratoryPrefix = os.Getenv(EnvExploratoryPrefix)

	cfg.AnthropicAPIKey = os.Getenv(EnvAnthropicAPIKey)
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("%s is required", EnvAnthropicAPIKey)
	}

	cfg.SlackBotToken = os.Getenv(EnvSlackBotToken)
	cfg.SlackChannel = os.Getenv(EnvSlackChannel)
	cfg.SlackWebhookURL = os.Getenv(EnvSlackWebhookURL)
	if cfg.SlackBotToken != "" && cfg.SlackChannel == "" {
		return nil, fmt.Errorf("%s is required when %s is set", EnvSlackChannel, EnvSlackBotToken)
	}

	cfg.SchemaPath = envOrDefault(EnvSchemaPath, DefaultSchemaPath)
	cfg.TrainingDataPath = envOrDefault(EnvTrainingDataPath, DefaultTrainingDataPath)
	cfg.TasksConfigPath = envOrDefault(EnvTasksConfigPath, DefaultTasksConfigPath)
	cfg.QuestionDBPath = envOrDefault(EnvQuestionDBPath, DefaultQuestionDBPath)

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
