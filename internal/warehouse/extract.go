package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v5"

	"github.com/curiolabs/curio/internal/knowledge"
)

const (
	defaultDescribeConcurrency = 4
	defaultDescribeRetries     = 4
	defaultRetryInterval       = 500 * time.Millisecond
)

type ExtractorConfig struct {
	Logger  *slog.Logger
	Querier Querier

	// Database is the warehouse database whose tables are extracted.
	Database string

	Concurrency int
	Retries     int

	// RetryInterval seeds the exponential backoff between column
	// listing retries.
	RetryInterval time.Duration
}

func (c *ExtractorConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Querier == nil {
		return errors.New("querier is required")
	}
	if c.Database == "" {
		return errors.New("database is required")
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaultDescribeConcurrency
	}
	if c.Retries == 0 {
		c.Retries = defaultDescribeRetries
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = defaultRetryInterval
	}
	return nil
}

// Extractor reads table and column metadata out of the warehouse's
// system tables and renders it as a knowledge base schema.
type Extractor struct {
	cfg *ExtractorConfig
	log *slog.Logger

	describePool pond.ResultPool[knowledge.Table]
}

func NewExtractor(cfg *ExtractorConfig) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:          cfg,
		log:          cfg.Logger,
		describePool: pond.NewResultPool[knowledge.Table](cfg.Concurrency),
	}, nil
}

type tableMeta struct {
	name      string
	comment   string
	totalRows *uint64
}

// Extract builds the full schema for the configured database. Tables
// are described concurrently; the result keeps the listing order.
func (e *Extractor) Extract(ctx context.Context, projectID, datasetID string) (*knowledge.Schema, error) {
	if err := e.cfg.Querier.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	tables, err := e.listTables(ctx)
	if err != nil {
		return nil, err
	}
	e.log.Info("listed warehouse tables", "database", e.cfg.Database, "tables", len(tables))

	group := e.describePool.NewGroupContext(ctx)
	for _, meta := range tables {
		group.SubmitErr(func() (knowledge.Table, error) {
			return e.describeTable(ctx, meta)
		})
	}
	described, err := group.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to describe tables: %w", err)
	}

	return &knowledge.Schema{
		ProjectID: projectID,
		DatasetID: datasetID,
		Tables:    described,
	}, nil
}

func (e *Extractor) listTables(ctx context.Context) ([]tableMeta, error) {
	rows, err := e.cfg.Querier.Query(ctx, `
		SELECT name, comment, total_rows
		FROM system.tables
		WHERE database = ? AND NOT is_temporary
		ORDER BY name
	`, e.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []tableMeta
	for rows.Next() {
		var meta tableMeta
		if err := rows.Scan(&meta.name, &meta.comment, &meta.totalRows); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		tables = append(tables, meta)
	}
	return tables, rows.Err()
}

func (e *Extractor) describeTable(ctx context.Context, meta tableMeta) (knowledge.Table, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.RetryInterval

	attempt := 0
	columns, err := backoff.Retry(ctx, func() ([]knowledge.Column, error) {
		if attempt > 0 {
			e.log.Warn("failed to list columns, retrying", "table", meta.name, "attempt", attempt)
		}
		attempt++
		return e.listColumns(ctx, meta.name)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(e.cfg.Retries)))
	if err != nil {
		return knowledge.Table{}, fmt.Errorf("failed to describe table %s: %w", meta.name, err)
	}

	table := knowledge.Table{
		TableName:   meta.name,
		Description: meta.comment,
		Columns:     columns,
	}
	if table.Description == "" {
		table.Description = fmt.Sprintf("Table: %s", meta.name)
	}
	if meta.totalRows != nil {
		table.NumRows = *meta.totalRows
	}
	return table, nil
}

func (e *Extractor) listColumns(ctx context.Context, table string) ([]knowledge.Column, error) {
	rows, err := e.cfg.Querier.Query(ctx, `
		SELECT name, type, comment
		FROM system.columns
		WHERE database = ? AND table = ?
		ORDER BY position
	`, e.cfg.Database, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	var columns []knowledge.Column
	for rows.Next() {
		var name, typ, comment string
		if err := rows.Scan(&name, &typ, &comment); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		columns = append(columns, newColumn(name, typ, comment))
	}
	return columns, rows.Err()
}

// Nullable(X) maps to mode NULLABLE with the inner type, everything
// else to REQUIRED.
func newColumn(name, typ, comment string) knowledge.Column {
	mode := "REQUIRED"
	if inner, ok := strings.CutPrefix(typ, "Nullable("); ok {
		typ = strings.TrimSuffix(inner, ")")
		mode = "NULLABLE"
	}
	return knowledge.Column{
		Name:        name,
		Type:        typ,
		Mode:        mode,
		Description: comment,
	}
}
