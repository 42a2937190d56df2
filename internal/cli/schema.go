package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/curiolabs/curio/internal/config"
	"github.com/curiolabs/curio/internal/knowledge"
	"github.com/curiolabs/curio/internal/warehouse"
)

type SchemaCmd struct{}

func NewSchemaCmd() *SchemaCmd {
	return &SchemaCmd{}
}

func (c *SchemaCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Build the knowledge base schema file",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmd.Help()
			if err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}
	cmd.AddCommand(c.extractCommand(), c.convertCommand())
	return cmd
}

func (c *SchemaCmd) extractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the schema from the ClickHouse warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
			if err != nil {
				return fmt.Errorf("failed to get verbose flag: %w", err)
			}
			addr, err := cmd.Flags().GetString("addr")
			if err != nil {
				return fmt.Errorf("failed to get addr flag: %w", err)
			}
			database, err := cmd.Flags().GetString("database")
			if err != nil {
				return fmt.Errorf("failed to get database flag: %w", err)
			}
			username, err := cmd.Flags().GetString("username")
			if err != nil {
				return fmt.Errorf("failed to get username flag: %w", err)
			}
			password, err := cmd.Flags().GetString("password")
			if err != nil {
				return fmt.Errorf("failed to get password flag: %w", err)
			}
			secure, err := cmd.Flags().GetBool("secure")
			if err != nil {
				return fmt.Errorf("failed to get secure flag: %w", err)
			}
			project, err := cmd.Flags().GetString("project")
			if err != nil {
				return fmt.Errorf("failed to get project flag: %w", err)
			}
			dataset, err := cmd.Flags().GetString("dataset")
			if err != nil {
				return fmt.Errorf("failed to get dataset flag: %w", err)
			}
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("failed to get output flag: %w", err)
			}

			if database == "" {
				return fmt.Errorf("database is required")
			}
			if project == "" {
				return fmt.Errorf("project is required")
			}
			if dataset == "" {
				dataset = database
			}

			log := newLogger(verbose)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			querier, err := warehouse.NewClickHouseQuerier(&warehouse.ClickHouseConfig{
				Logger:   log,
				Addr:     addr,
				Database: database,
				Username: username,
				Password: password,
				Secure:   secure,
			})
			if err != nil {
				log.Error("Failed to connect to warehouse", "error", err)
				os.Exit(1)
			}
			defer querier.Close()

			extractor, err := warehouse.NewExtractor(&warehouse.ExtractorConfig{
				Logger:   log,
				Querier:  querier,
				Database: database,
			})
			if err != nil {
				log.Error("Failed to create extractor", "error", err)
				os.Exit(1)
			}

			schema, err := extractor.Extract(ctx, project, dataset)
			if err != nil {
				log.Error("Failed to extract schema", "error", err)
				os.Exit(1)
			}

			if err := schema.WriteFile(output); err != nil {
				log.Error("Failed to write schema file", "error", err, "path", output)
				os.Exit(1)
			}

			printSchemaSummary(schema, output)
			return nil
		},
	}

	cmd.Flags().String("addr", envWithDefault("CLICKHOUSE_ADDR", "localhost:9000"), "ClickHouse address host:port (env: CLICKHOUSE_ADDR)")
	cmd.Flags().String("database", envWithDefault("CLICKHOUSE_DATABASE", ""), "ClickHouse database to extract (env: CLICKHOUSE_DATABASE)")
	cmd.Flags().String("username", envWithDefault("CLICKHOUSE_USERNAME", "default"), "ClickHouse username (env: CLICKHOUSE_USERNAME)")
	cmd.Flags().String("password", envWithDefault("CLICKHOUSE_PASSWORD", ""), "ClickHouse password (env: CLICKHOUSE_PASSWORD)")
	cmd.Flags().Bool("secure", false, "Connect to ClickHouse over TLS")
	cmd.Flags().String("project", "", "Project id recorded in the schema file")
	cmd.Flags().String("dataset", "", "Dataset id recorded in the schema file (defaults to the database)")
	cmd.Flags().String("output", config.DefaultSchemaPath, "Path to write the schema JSON to")

	return cmd
}

func (c *SchemaCmd) convertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a schema CSV export into the schema file",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
			if err != nil {
				return fmt.Errorf("failed to get verbose flag: %w", err)
			}
			input, err := cmd.Flags().GetString("input")
			if err != nil {
				return fmt.Errorf("failed to get input flag: %w", err)
			}
			project, err := cmd.Flags().GetString("project")
			if err != nil {
				return fmt.Errorf("failed to get project flag: %w", err)
			}
			dataset, err := cmd.Flags().GetString("dataset")
			if err != nil {
				return fmt.Errorf("failed to get dataset flag: %w", err)
			}
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("failed to get output flag: %w", err)
			}

			if input == "" {
				return fmt.Errorf("input is required")
			}
			if project == "" {
				return fmt.Errorf("project is required")
			}
			if dataset == "" {
				return fmt.Errorf("dataset is required")
			}

			log := newLogger(verbose)

			schema, err := knowledge.ConvertCSV(input, project, dataset)
			if err != nil {
				log.Error("Failed to convert schema CSV", "error", err, "path", input)
				os.Exit(1)
			}

			if err := schema.WriteFile(output); err != nil {
				log.Error("Failed to write schema file", "error", err, "path", output)
				os.Exit(1)
			}

			printSchemaSummary(schema, output)
			return nil
		},
	}

	cmd.Flags().String("input", "", "Path to the schema CSV export")
	cmd.Flags().String("project", "", "Project id recorded in the schema file")
	cmd.Flags().String("dataset", "", "Dataset id recorded in the schema file")
	cmd.Flags().String("output", config.DefaultSchemaPath, "Path to write the schema JSON to")

	return cmd
}

func printSchemaSummary(schema *knowledge.Schema, path string) {
	fmt.Println("Project:", schema.ProjectID)
	fmt.Println("Dataset:", schema.DatasetID)
	fmt.Println("Schema written to:", path)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"Table", "Columns", "Rows", "Description"})
	for _, t := range schema.Tables {
		table.Append([]string{
			t.TableName,
			fmt.Sprintf("%d", len(t.Columns)),
			fmt.Sprintf("%d", t.NumRows),
			t.Description,
		})
	}
	table.Render()
}
