package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"
)

// ClickHouseClient wraps the connection to the append-only activity stream.
type ClickHouseClient struct {
	Conn clickhouse.Conn
}

func NewClickHouseDB() (*ClickHouseClient, error) {
	host := os.Getenv("CLICKHOUSE_HOST")
	nativePortStr := os.Getenv("CLICKHOUSE_NATIVE_PORT")
	dbName := os.Getenv("CLICKHOUSE_DB_NAME")
	username := os.Getenv("CLICKHOUSE_USERNAME")
	password := os.Getenv("CLICKHOUSE_PASSWORD")

	if host == "" || nativePortStr == "" || dbName == "" {
		return nil, fmt.Errorf("CLICKHOUSE_HOST, CLICKHOUSE_NATIVE_PORT, or CLICKHOUSE_DB_NAME environment variables are not set")
	}

	nativePort, err := strconv.Atoi(nativePortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid CLICKHOUSE_NATIVE_PORT: %w", err)
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, nativePort)},
		Auth: clickhouse.Auth{
			Database: dbName,
			Username: username,
			Password: password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "pulsetrack-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	client := &ClickHouseClient{Conn: conn}
	if err := client.bootstrap(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bootstrap activities table: %w", err)
	}

	log.Info().Msg("connected to ClickHouse via Native TCP")
	return client, nil
}

func (c *ClickHouseClient) bootstrap(ctx context.Context) error {
	return c.Conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS activities (
			id           UUID,
			type         LowCardinality(String),
			visitor_id   String,
			user_id      String,
			display_name String,
			avatar_url   String,
			city         String,
			country      String,
			target_type  String,
			target_id    String,
			target_title String,
			target_slug  String,
			metadata     String,
			is_public    UInt8,
			created_at   DateTime64(3, 'UTC')
		) ENGINE = MergeTree()
		ORDER BY (created_at, type)
	`)
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		c.Conn.Close()
		log.Info().Msg("ClickHouse connection closed")
	}
}
