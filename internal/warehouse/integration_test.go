//go:build integration

package warehouse_test

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/docker/go-connections/nat"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	tcch "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"github.com/curiolabs/curio/internal/knowledge"
	"github.com/curiolabs/curio/internal/warehouse"
)

const (
	chContainerImage = "clickhouse/clickhouse-server:latest"
	chDatabase       = "test"
	chUsername       = "default"
	chPassword       = "password"
	// Maximum retry attempts for container start
	maxContainerRetries = 3
)

func TestCurioctl_Warehouse_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	addr := startClickHouse(t)

	querier, err := warehouse.NewClickHouseQuerier(&warehouse.ClickHouseConfig{
		Logger:   log,
		Addr:     addr,
		Database: chDatabase,
		Username: chUsername,
		Password: chPassword,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = querier.Close() })

	// ClickHouse may need a moment after container start to be ready
	// for native-protocol connections.
	require.Eventually(t, func() bool {
		return querier.Ping(t.Context()) == nil
	}, 30*time.Second, 500*time.Millisecond)

	extractor, err := warehouse.NewExtractor(&warehouse.ExtractorConfig{
		Logger:   log,
		Querier:  querier,
		Database: chDatabase,
	})
	require.NoError(t, err)

	t.Run("empty_database_yields_empty_schema", func(t *testing.T) {
		schema, err := extractor.Extract(t.Context(), "analytics", chDatabase)
		require.NoError(t, err)
		require.Empty(t, schema.Tables)
	})

	t.Run("extracts_tables_columns_and_comments", func(t *testing.T) {
		conn := openConn(t, addr)

		for _, stmt := range []string{
			`CREATE TABLE events (
				event_id UInt64 COMMENT 'Unique event identifier',
				payload Nullable(String) COMMENT 'Raw event payload',
				created_at DateTime
			) ENGINE = MergeTree ORDER BY event_id`,
			`CREATE TABLE users (
				user_id UInt64 COMMENT 'Unique user identifier',
				email String COMMENT 'Primary email address',
				deleted_at Nullable(DateTime) COMMENT 'Soft-delete timestamp'
			) ENGINE = MergeTree ORDER BY user_id COMMENT 'Registered user accounts'`,
			`INSERT INTO users VALUES (1, 'ana@example.com', NULL), (2, 'bo@example.com', NULL)`,
		} {
			require.NoError(t, conn.Exec(t.Context(), stmt))
		}

		schema, err := extractor.Extract(t.Context(), "analytics", chDatabase)
		require.NoError(t, err)

		want := &knowledge.Schema{
			ProjectID: "analytics",
			DatasetID: chDatabase,
			Tables: []knowledge.Table{
				{
					TableName:   "events",
					Description: "Table: events",
					Columns: []knowledge.Column{
						{Name: "event_id", Type: "UInt64", Mode: "REQUIRED", Description: "Unique event identifier"},
						{Name: "payload", Type: "String", Mode: "NULLABLE", Description: "Raw event payload"},
						{Name: "created_at", Type: "DateTime", Mode: "REQUIRED"},
					},
				},
				{
					TableName:   "users",
					Description: "Registered user accounts",
					NumRows:     2,
					Columns: []knowledge.Column{
						{Name: "user_id", Type: "UInt64", Mode: "REQUIRED", Description: "Unique user identifier"},
						{Name: "email", Type: "String", Mode: "REQUIRED", Description: "Primary email address"},
						{Name: "deleted_at", Type: "DateTime", Mode: "NULLABLE", Description: "Soft-delete timestamp"},
					},
				},
			},
		}
		if diff := cmp.Diff(want, schema); diff != "" {
			t.Fatalf("schema mismatch (-want +got):\n%s", diff)
		}
	})
}

// startClickHouse runs a throwaway ClickHouse server and returns its
// native-protocol address. The testcontainers reaper removes the
// container when the test process exits.
func startClickHouse(t testing.TB) string {
	ctx := t.Context()

	var container *tcch.ClickHouseContainer
	var lastErr error
	for attempt := 1; attempt <= maxContainerRetries; attempt++ {
		var err error
		container, err = tcch.Run(ctx,
			chContainerImage,
			tcch.WithDatabase(chDatabase),
			tcch.WithUsername(chUsername),
			tcch.WithPassword(chPassword),
		)
		if err != nil {
			lastErr = err
			if isRetryableContainerStartErr(err) && attempt < maxContainerRetries {
				t.Logf("Container start attempt %d failed (retryable): %v", attempt, err)
				time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
				continue
			}
			require.NoError(t, err)
		}
		break
	}
	if container == nil {
		t.Fatalf("failed to start ClickHouse container after retries: %v", lastErr)
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, nat.Port("9000/tcp"))
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mappedPort.Port())
}

func openConn(t testing.TB, addr string) driver.Conn {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: chDatabase,
			Username: chUsername,
			Password: chPassword,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func isRetryableContainerStartErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "wait until ready") ||
		strings.Contains(s, "mapped port") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "context deadline exceeded") ||
		strings.Contains(s, "connection refused")
}
