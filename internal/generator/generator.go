// Package generator produces novel exploratory questions from the
// warehouse schema, example pairs and recent-question history.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/curiolabs/curio/internal/knowledge"
	"github.com/curiolabs/curio/internal/llm"
)

const (
	defaultMaxExamples = 5
	defaultMaxTokens   = 100

	// High temperature on purpose: repeated identical prompts should
	// still yield different questions.
	defaultTemperature = 0.8

	systemPrompt = "You are a data analyst generating insightful database questions."
)

type Config struct {
	Logger *slog.Logger
	LLM    llm.Client

	MaxExamples int
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
	if c.MaxExamples == 0 {
		c.MaxExamples = defaultMaxExamples
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	return nil
}

type Generator struct {
	cfg *Config
}

func New(cfg *Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg}, nil
}

// Generate asks the reasoning backend for one new question. Surrounding
// whitespace and quotes are stripped from the response; the result may
// be empty when the model returns nothing usable.
func (g *Generator) Generate(ctx context.Context, schema *knowledge.Schema, examples []knowledge.TrainingPair, recent []string) (string, error) {
	prompt := g.buildPrompt(schema, examples, recent)

	text, err := g.cfg.LLM.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate question: %w", err)
	}

	question := strings.TrimSpace(text)
	question = strings.Trim(question, `"'`)
	return question, nil
}

func (g *Generator) buildPrompt(schema *knowledge.Schema, examples []knowledge.TrainingPair, recent []string) string {
	var schemaSummary strings.Builder
	fmt.Fprintf(&schemaSummary, "Dataset: %s\n\nTables:\n", schema.DatasetID)
	for _, table := range schema.Tables {
		columns := make([]string, 0, len(table.Columns))
		for _, col := range table.Columns {
			columns = append(columns, fmt.Sprintf("%s (%s)", col.Name, col.Type))
		}
		fmt.Fprintf(&schemaSummary, "- %s: %s\n", table.TableName, strings.Join(columns, ", "))
	}

	var examplesText strings.Builder
	examplesText.WriteString("Example questions from training data:\n")
	for i, pair := range examples {
		if i >= g.cfg.MaxExamples {
			break
		}
		fmt.Fprintf(&examplesText, "%d. %s\n", i+1, pair.Question)
	}

	var recentText strings.Builder
	if len(recent) > 0 {
		recentText.WriteString("\n\nRecently generated questions (DON'T repeat these):\n")
		for i, q := range recent {
			fmt.Fprintf(&recentText, "%d. %s\n", i+1, q)
		}
	}

	return fmt.Sprintf(`You are a curious data analyst exploring the %s dataset. Generate ONE specific, measurable question that would be insightful to ask.

%s

%s
%s

Guidelines:
- Generate questions similar in style to the training examples
- Focus on concrete business metrics and volumes
- Include time comparisons (today vs yesterday, this week vs last week, etc.)
- Ask about trends, top performers, anomalies
- Be specific and measurable
- DON'T repeat recent questions - create variations or explore new angles

Generate ONE question only, no explanation needed.`, schema.DatasetID, schemaSummary.String(), examplesText.String(), recentText.String())
}
