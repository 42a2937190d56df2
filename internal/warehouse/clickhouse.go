// Package warehouse connects to the ClickHouse data warehouse and
// extracts table metadata into the knowledge base schema format.
package warehouse

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const (
	defaultDialTimeout      = 10 * time.Second
	defaultMaxExecutionTime = 60
)

// Querier defines the interface for executing warehouse queries.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	Ping(ctx context.Context) error
}

type ClickHouseConfig struct {
	Logger   *slog.Logger
	Addr     string
	Database string
	Username string
	Password string
	Secure   bool
}

func (c *ClickHouseConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.Database == "" {
		return errors.New("database is required")
	}
	if c.Username == "" {
		c.Username = "default"
	}
	return nil
}

// ClickHouseQuerier implements Querier using the ClickHouse driver.
type ClickHouseQuerier struct {
	log  *slog.Logger
	conn driver.Conn
}

func NewClickHouseQuerier(cfg *ClickHouseConfig) (*ClickHouseQuerier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// clickhouse-go expects host:port without a scheme.
	addr := strings.TrimPrefix(cfg.Addr, "https://")
	addr = strings.TrimPrefix(addr, "http://")

	chOpts := &clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": defaultMaxExecutionTime,
		},
		DialTimeout: defaultDialTimeout,
	}
	if cfg.Secure {
		chOpts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	cfg.Logger.Debug("ClickHouse client initialized", "addr", addr, "database", cfg.Database)

	return &ClickHouseQuerier{
		log:  cfg.Logger,
		conn: conn,
	}, nil
}

func (q *ClickHouseQuerier) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return q.conn.Query(ctx, query, args...)
}

func (q *ClickHouseQuerier) Ping(ctx context.Context) error {
	return q.conn.Ping(ctx)
}

func (q *ClickHouseQuerier) Close() error {
	return q.conn.Close()
}
