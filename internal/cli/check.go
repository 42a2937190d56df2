package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/curiolabs/curio/internal/config"
)

type CheckCmd struct{}

func NewCheckCmd() *CheckCmd {
	return &CheckCmd{}
}

func (c *CheckCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the agent's files and environment are in place",
		RunE: func(cmd *cobra.Command, args []string) error {
			results := runChecks()
			ok := printCheckReport(os.Stdout, results)
			if !ok {
				os.Exit(1)
			}
			return nil
		},
	}
	return cmd
}

type checkResult struct {
	kind     string
	name     string
	detail   string
	ok       bool
	required bool
}

// runChecks resolves paths the same way the agent does, so the report
// matches what curio-agent will actually read at startup.
func runChecks() []checkResult {
	results := []checkResult{
		checkFile("knowledge base schema", envWithDefault(config.EnvSchemaPath, config.DefaultSchemaPath), true),
		checkFile("training data CSV", envWithDefault(config.EnvTrainingDataPath, config.DefaultTrainingDataPath), true),
		checkFile("tasks config", envWithDefault(config.EnvTasksConfigPath, config.DefaultTasksConfigPath), false),
		checkFile("question database", envWithDefault(config.EnvQuestionDBPath, config.DefaultQuestionDBPath), false),
	}
	for _, name := range []string{
		config.EnvQAAPIURL,
		config.EnvQAAPIKey,
		config.EnvQAUserEmail,
		config.EnvQAAgentID,
		config.EnvAnthropicAPIKey,
	} {
		results = append(results, checkEnv(name, true))
	}
	for _, name := range []string{
		config.EnvSlackBotToken,
		config.EnvSlackChannel,
		config.EnvSlackWebhookURL,
	} {
		results = append(results, checkEnv(name, false))
	}
	return results
}

func checkFile(description, path string, required bool) checkResult {
	_, err := os.Stat(path)
	return checkResult{
		kind:     "file",
		name:     description,
		detail:   path,
		ok:       err == nil,
		required: required,
	}
}

func checkEnv(name string, required bool) checkResult {
	_, ok := os.LookupEnv(name)
	return checkResult{
		kind:     "env",
		name:     name,
		ok:       ok,
		required: required,
	}
}

// printCheckReport renders the results and reports whether every
// required check passed.
func printCheckReport(out io.Writer, results []checkResult) bool {
	table := tablewriter.NewWriter(out)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"", "Kind", "Name", "Detail", "Required"})

	allGood := true
	for _, r := range results {
		status := "✅"
		if !r.ok {
			status = "⚠️"
			if r.required {
				status = "❌"
				allGood = false
			}
		}
		required := "no"
		if r.required {
			required = "yes"
		}
		table.Append([]string{status, r.kind, r.name, r.detail, required})
	}
	table.Render()

	if allGood {
		fmt.Fprintln(out, "✅ All set! Ready to run curio-agent.")
	} else {
		fmt.Fprintln(out, "❌ Setup incomplete, fix the ❌ rows above.")
	}
	return allGood
}
