package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// ClientConfig is the connection surface for the embedded persistence client.
type ClientConfig struct {
	Driver         string
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c ClientConfig) GetDebug() bool {
	return c.Debug
}

func (c ClientConfig) GetDriver() string {
	return strings.TrimSpace(c.Driver)
}

func (c ClientConfig) GetServer() string {
	return strings.TrimSpace(c.DSN)
}

func (c ClientConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout > 0 {
		return c.PingTimeout
	}
	return 5 * time.Second
}

func (c ClientConfig) GetOtelIdentifier() string {
	if identifier := strings.TrimSpace(c.OtelIdentifier); identifier != "" {
		return identifier
	}
	return "go-fulfillment"
}

// NewClient opens a database handle for the configured driver and wraps it in
// a persistence client with the matching bun dialect.
func NewClient(cfg ClientConfig) (*persistence.Client, error) {
	driver := cfg.GetDriver()
	dsn := cfg.GetServer()
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: connection dsn is required")
	}

	switch driver {
	case DriverPostgres:
		sqlDB, err := sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: open postgres connection: %w", err)
		}
		client, err := persistence.New(cfg, sqlDB, pgdialect.New())
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("sqlstore: create persistence client: %w", err)
		}
		return client, nil
	case DriverSQLite:
		sqlDB, err := sql.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: open sqlite connection: %w", err)
		}
		// Shared-cache memory databases misbehave past one connection.
		if strings.Contains(dsn, "mode=memory") {
			sqlDB.SetMaxOpenConns(1)
		}
		client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("sqlstore: create persistence client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}
