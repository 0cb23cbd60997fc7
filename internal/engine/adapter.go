// Package engine defines the common capability surface every engine
// adapter implements (§4.9), plus the dispatch registry that picks the
// right adapter by engine tag. Per-family implementations live in
// sibling packages (pgfamily, mysqlfamily, filefamily, redisfamily,
// mongofamily, httpfamily, qdrant) and in clibase, the generic
// CLI-wrapping base surrealdb and typedb build on directly.
package engine

import (
	"context"

	"github.com/robertjbass/spindb/internal/enum"
)

// Config is the immutable, per-operation configuration an adapter needs.
// Adapters never hold a reference back to the Container Manager (§9) —
// every call gets everything it needs as a value.
type Config struct {
	Name        string
	Engine      enum.Engine
	Version     string // normalized X.Y.Z
	Port        int
	Database    string
	InstallDir  string // resolved by the Binary Manager
	DataDir     string
	LogFile     string
	PIDFile     string
	SocketFile  string
	Host        string // defaults to 127.0.0.1
	Username    string
	Password    string
	SSL         bool
}

// InitDataDirOptions parametrizes initDataDir (§4.9).
type InitDataDirOptions struct {
	Superuser string
	// Path is only meaningful for file-based engines: the resolved
	// absolute file path to create.
	Path string
}

// StartResult is what a successful start() returns.
type StartResult struct {
	Port             int
	ConnectionString string
}

// RunScriptOptions: exactly one of File or SQL must be set (§4.9).
type RunScriptOptions struct {
	File     string
	SQL      string
	Database string
}

// QueryOptions parametrizes executeQuery.
type QueryOptions struct {
	Database string
	Host     string
	Username string
	Password string
	SSL      bool
}

// QueryResult is a parsed tabular result.
type QueryResult struct {
	Columns []string
	Rows    [][]string
}

// BackupOptions parametrizes backup().
type BackupOptions struct {
	Database string
	Format   enum.BackupFormat
}

// BackupResult describes a completed backup.
type BackupResult struct {
	Path   string
	Format enum.BackupFormat
	Size   int64
}

// FormatInfo is what detectBackupFormat returns.
type FormatInfo struct {
	Format          enum.BackupFormat
	Description     string
	RestoreCommand  string
}

// RestoreOptions parametrizes restore().
type RestoreOptions struct {
	Database       string
	CreateDatabase bool
	ValidateVersion bool
}

// RestoreResult reports what happened.
type RestoreResult struct {
	Format enum.BackupFormat
	Stdout string
	Stderr string
	Code   int
}

// CreateUserOptions parametrizes createUser().
type CreateUserOptions struct {
	Username string
	Password string
	Database string
}

// UserCredentials is what createUser() returns.
type UserCredentials struct {
	Username string
	Password string
}

// Adapter is the common capability set every engine implements (§4.9).
// Engines without logical databases (file-based, Redis/Valkey, QuestDB,
// TypeDB) return an UnsupportedOperation-kind error from
// CreateDatabase/DropDatabase rather than panicking or silently
// no-op'ing.
type Adapter interface {
	Engine() enum.Engine

	InitDataDir(ctx context.Context, cfg Config, opts InitDataDirOptions) error
	Start(ctx context.Context, cfg Config) (StartResult, error)
	Stop(ctx context.Context, cfg Config) error
	IsRunning(ctx context.Context, cfg Config) (bool, error)

	CreateDatabase(ctx context.Context, cfg Config, db string) error
	DropDatabase(ctx context.Context, cfg Config, db string) error
	ListDatabases(ctx context.Context, cfg Config) ([]string, error)

	RunScript(ctx context.Context, cfg Config, opts RunScriptOptions) error
	ExecuteQuery(ctx context.Context, cfg Config, query string, opts QueryOptions) (QueryResult, error)

	Backup(ctx context.Context, cfg Config, outputPath string, opts BackupOptions) (BackupResult, error)
	DetectBackupFormat(ctx context.Context, path string) (FormatInfo, error)
	Restore(ctx context.Context, cfg Config, path string, opts RestoreOptions) (RestoreResult, error)
	DumpFromConnectionString(ctx context.Context, url, outputPath string) error

	GetConnectionString(cfg Config, database string) string
	GetDatabaseSize(ctx context.Context, cfg Config) (int64, bool, error)
	CreateUser(ctx context.Context, cfg Config, opts CreateUserOptions) (UserCredentials, error)
}
