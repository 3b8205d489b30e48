// Package config binds the process's CLI flags to a typed configuration
// struct, the way the teacher's cmd/utils/flags.go binds urfave/cli flags
// to node.Config before constructing a node.
package config

import (
	"fmt"
	"strings"

	"github.com/urfave/cli"
)

// DatabaseConfig holds the connection parameters for the relational store.
type DatabaseConfig struct {
	Host           string
	Port           int
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ConnectionString builds the postgres DSN lib/pq expects.
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

// WorkerConfig sizes the worker pool.
type WorkerConfig struct {
	Count int
}

// ProcessingConfig holds the dispatch/retry parameters.
type ProcessingConfig struct {
	ChannelName   string
	RetryAttempts int
	RetryDelayMs  int
}

// AppConfig is the fully-resolved configuration for one process run.
type AppConfig struct {
	Database      DatabaseConfig
	Workers       WorkerConfig
	Processing    ProcessingConfig
	InitializeDB  bool
	UpgradeDB     bool
}

var (
	DbHostFlag = cli.StringFlag{
		Name:  "db-host",
		Usage: "database host",
		Value: "localhost",
	}
	DbPortFlag = cli.IntFlag{
		Name:  "db-port",
		Usage: "database port",
		Value: 5432,
	}
	DbNameFlag = cli.StringFlag{
		Name:  "db-name",
		Usage: "database name",
		Value: "k_indexer",
	}
	DbUserFlag = cli.StringFlag{
		Name:  "db-user",
		Usage: "database username",
		Value: "k_indexer",
	}
	DbPasswordFlag = cli.StringFlag{
		Name:  "db-password",
		Usage: "database password",
	}
	DbMaxConnectionsFlag = cli.IntFlag{
		Name:  "db-max-connections",
		Usage: "maximum database connections",
		Value: 10,
	}
	WorkersFlag = cli.IntFlag{
		Name:  "workers",
		Usage: "number of worker goroutines",
		Value: 4,
	}
	ChannelFlag = cli.StringFlag{
		Name:  "channel",
		Usage: "notification channel name",
		Value: "transaction_channel",
	}
	RetryAttemptsFlag = cli.IntFlag{
		Name:  "retry-attempts",
		Usage: "number of materialization retry attempts",
		Value: 3,
	}
	RetryDelayFlag = cli.IntFlag{
		Name:  "retry-delay-ms",
		Usage: "delay between retry attempts, in milliseconds",
		Value: 1000,
	}
	InitializeDBFlag = cli.BoolFlag{
		Name:  "initialize-db",
		Usage: "drop and recreate the schema on startup",
	}
	UpgradeDBFlag = cli.BoolFlag{
		Name:  "upgrade-db",
		Usage: "create the schema if it does not already exist",
	}
)

// Flags is the full flag set the entrypoint registers on its cli.App.
var Flags = []cli.Flag{
	DbHostFlag,
	DbPortFlag,
	DbNameFlag,
	DbUserFlag,
	DbPasswordFlag,
	DbMaxConnectionsFlag,
	WorkersFlag,
	ChannelFlag,
	RetryAttemptsFlag,
	RetryDelayFlag,
	InitializeDBFlag,
	UpgradeDBFlag,
}

// FromContext resolves an AppConfig from a parsed cli.Context, applying the
// defaults declared on the flags above when a flag was not set explicitly.
func FromContext(ctx *cli.Context) AppConfig {
	return AppConfig{
		Database: DatabaseConfig{
			Host:           ctx.String(DbHostFlag.Name),
			Port:           ctx.Int(DbPortFlag.Name),
			Database:       ctx.String(DbNameFlag.Name),
			Username:       ctx.String(DbUserFlag.Name),
			Password:       ctx.String(DbPasswordFlag.Name),
			MaxConnections: ctx.Int(DbMaxConnectionsFlag.Name),
		},
		Workers: WorkerConfig{
			Count: ctx.Int(WorkersFlag.Name),
		},
		Processing: ProcessingConfig{
			ChannelName:   strings.TrimSpace(ctx.String(ChannelFlag.Name)),
			RetryAttempts: ctx.Int(RetryAttemptsFlag.Name),
			RetryDelayMs:  ctx.Int(RetryDelayFlag.Name),
		},
		InitializeDB: ctx.Bool(InitializeDBFlag.Name),
		UpgradeDB:    ctx.Bool(UpgradeDBFlag.Name),
	}
}

// Validate rejects configurations that would fail later in a less
// actionable way (e.g. a zero worker count deadlocking the dispatch queue).
func (c AppConfig) Validate() error {
	if c.Workers.Count < 1 {
		return fmt.Errorf("config: workers count must be at least 1, got %d", c.Workers.Count)
	}
	if c.Processing.ChannelName == "" {
		return fmt.Errorf("config: channel name must not be empty")
	}
	if c.Processing.RetryAttempts < 0 {
		return fmt.Errorf("config: retry attempts must not be negative, got %d", c.Processing.RetryAttempts)
	}
	return nil
}
