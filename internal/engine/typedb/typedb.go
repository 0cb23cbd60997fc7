// Package typedb implements engine.Adapter for TypeDB directly on
// internal/engine/clibase. TypeDB shares no wire format with any other
// engine family, and per enum.Engine.HasLogicalDatabases a TypeDB
// container is itself the unit of database — this adapter treats the
// whole running instance as the one configured database rather than
// exposing TypeDB's internal multi-database console commands.
package typedb

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/engine/clibase"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/logger"
	"github.com/robertjbass/spindb/internal/platform"
	"github.com/robertjbass/spindb/internal/process"
)

// Adapter implements engine.Adapter for TypeDB.
type Adapter struct{}

// New builds the TypeDB adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Engine() enum.Engine { return enum.EngineTypeDB }

func hostOrDefault(cfg engine.Config) string {
	if cfg.Host != "" {
		return cfg.Host
	}
	return "127.0.0.1"
}

func (a *Adapter) bin(cfg engine.Config, name string) string {
	return filepath.Join(cfg.InstallDir, "bin", name+platform.Current().ExecExt())
}

func (a *Adapter) InitDataDir(ctx context.Context, cfg engine.Config, opts engine.InitDataDirOptions) error {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return errs.Wrap(errs.KindPreconditionFailed, "creating data directory", err)
	}
	return nil
}

func (a *Adapter) startSpec(cfg engine.Config) process.StartSpec {
	argv := []string{a.bin(cfg, "typedb"), "server",
		"--storage.data", cfg.DataDir,
		"--server.address", fmt.Sprintf("%s:%d", hostOrDefault(cfg), cfg.Port),
	}
	return process.StartSpec{
		Engine: string(enum.EngineTypeDB), Name: cfg.Name, Argv: argv,
		Dir: cfg.DataDir, LogFile: cfg.LogFile, PIDFile: cfg.PIDFile,
		Probe: func(ctx context.Context) (bool, error) {
			return tcpProbe(ctx, hostOrDefault(cfg), cfg.Port), nil
		},
	}
}

// tcpProbe dials the gRPC port directly — TypeDB has no lightweight CLI
// ping subcommand, so readiness is "the port accepts a connection",
// the same fallback pgfamily/qdrant use for their non-HTTP engines.
func tcpProbe(ctx context.Context, host string, port int) bool {
	d := net.Dialer{Timeout: 500 * time.Millisecond}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (a *Adapter) Start(ctx context.Context, cfg engine.Config) (engine.StartResult, error) {
	res, err := process.Start(ctx, a.startSpec(cfg))
	if err != nil {
		return engine.StartResult{}, err
	}
	logger.GetLogger(ctx).Info("started",
		zap.String("engine", string(enum.EngineTypeDB)), zap.String("container", cfg.Name),
		zap.Int("port", cfg.Port), zap.Int("pid", res.PID))
	return engine.StartResult{Port: cfg.Port, ConnectionString: a.GetConnectionString(cfg, cfg.Database)}, nil
}

func (a *Adapter) Stop(ctx context.Context, cfg engine.Config) error {
	return process.Stop(ctx, a.startSpec(cfg))
}

func (a *Adapter) IsRunning(ctx context.Context, cfg engine.Config) (bool, error) {
	return process.IsRunning(a.startSpec(cfg))
}

func unsupported(op string) error {
	return errs.New(errs.KindUnsupportedOperation, fmt.Sprintf("typedb does not support %s — the container is itself the one database", op))
}

func (a *Adapter) CreateDatabase(ctx context.Context, cfg engine.Config, db string) error {
	return unsupported("CreateDatabase")
}

func (a *Adapter) DropDatabase(ctx context.Context, cfg engine.Config, db string) error {
	return unsupported("DropDatabase")
}

// ListDatabases reports the container's configured Database as its
// single database (nil when none is set); it does not query the server.
func (a *Adapter) ListDatabases(ctx context.Context, cfg engine.Config) ([]string, error) {
	if cfg.Database == "" {
		return nil, nil
	}
	return []string{cfg.Database}, nil
}

func (a *Adapter) consoleArgs(cfg engine.Config, command string) []string {
	return []string{"console",
		"--core", fmt.Sprintf("%s:%d", hostOrDefault(cfg), cfg.Port),
		"--command", command}
}

func (a *Adapter) RunScript(ctx context.Context, cfg engine.Config, opts engine.RunScriptOptions) error {
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}
	query := opts.SQL
	if opts.File != "" {
		content, err := os.ReadFile(opts.File)
		if err != nil {
			return err
		}
		query = string(content)
	}

	script := fmt.Sprintf("transaction %s schema write\n%s\ncommit", database, query)
	res, err := clibase.Run(ctx, a.bin(cfg, "typedb"), a.consoleArgs(cfg, script), nil, "")
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("typedb console exited %d: %s", res.Code, res.Stderr)
	}
	return nil
}

func (a *Adapter) ExecuteQuery(ctx context.Context, cfg engine.Config, query string, opts engine.QueryOptions) (engine.QueryResult, error) {
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}

	script := fmt.Sprintf("transaction %s data read\n%s\nclose", database, query)
	res, err := clibase.Run(ctx, a.bin(cfg, "typedb"), a.consoleArgs(cfg, script), nil, "")
	if err != nil {
		return engine.QueryResult{}, err
	}
	if res.Code != 0 {
		return engine.QueryResult{}, fmt.Errorf("typedb console exited %d: %s", res.Code, res.Stderr)
	}
	return engine.QueryResult{Columns: []string{"output"}, Rows: splitLinesToRows(res.Stdout)}, nil
}

func splitLinesToRows(output string) [][]string {
	var rows [][]string
	start := 0
	for i := 0; i <= len(output); i++ {
		if i == len(output) || output[i] == '\n' {
			if i > start {
				rows = append(rows, []string{output[start:i]})
			}
			start = i + 1
		}
	}
	return rows
}

// Backup tars the storage directory directly — TypeDB's own export
// format is schema/data-definition text specific to one database, and
// since this adapter treats the whole instance as the database, a
// directory snapshot is the simplest faithful backup.
func (a *Adapter) Backup(ctx context.Context, cfg engine.Config, outputPath string, opts engine.BackupOptions) (engine.BackupResult, error) {
	res, err := clibase.RunToFile(ctx, "tar", []string{"-czf", "-", "-C", cfg.DataDir, "."}, nil, outputPath)
	if err != nil {
		return engine.BackupResult{}, err
	}
	if res.Code != 0 {
		return engine.BackupResult{}, fmt.Errorf("tar exited %d: %s", res.Code, res.Stderr)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return engine.BackupResult{}, err
	}
	return engine.BackupResult{Path: outputPath, Format: enum.FormatUnknown, Size: info.Size()}, nil
}

func (a *Adapter) DetectBackupFormat(ctx context.Context, path string) (engine.FormatInfo, error) {
	info, err := engine.DetectBackupFormat(path)
	if err != nil {
		return engine.FormatInfo{}, err
	}
	info.RestoreCommand = "restore-in-place"
	return info, nil
}

// Restore requires the container be stopped first, the same
// stop-before-mutating-storage precondition redisfamily and httpfamily
// enforce for their own directory/file-snapshot restores.
func (a *Adapter) Restore(ctx context.Context, cfg engine.Config, path string, opts engine.RestoreOptions) (engine.RestoreResult, error) {
	running, err := a.IsRunning(ctx, cfg)
	if err != nil {
		return engine.RestoreResult{}, err
	}
	if running {
		return engine.RestoreResult{}, errs.New(errs.KindPreconditionFailed, "container must be stopped before restoring a data-directory snapshot").
			WithRemediation("stop the container, then restore")
	}

	res, err := clibase.Run(ctx, "tar", []string{"-xzf", path, "-C", cfg.DataDir}, nil, "")
	if err != nil {
		return engine.RestoreResult{}, err
	}
	if res.Code != 0 {
		return engine.RestoreResult{Code: res.Code, Stderr: res.Stderr}, fmt.Errorf("tar extract exited %d: %s", res.Code, res.Stderr)
	}
	return engine.RestoreResult{Code: res.Code}, nil
}

func (a *Adapter) DumpFromConnectionString(ctx context.Context, rawURL, outputPath string) error {
	return errs.New(errs.KindUnsupportedOperation, "typedb does not support dumping from an arbitrary connection string")
}

func (a *Adapter) GetConnectionString(cfg engine.Config, database string) string {
	if database == "" {
		database = cfg.Database
	}
	base := fmt.Sprintf("typedb://%s:%d", hostOrDefault(cfg), cfg.Port)
	if database == "" {
		return base
	}
	return base + "/" + database
}

func (a *Adapter) GetDatabaseSize(ctx context.Context, cfg engine.Config) (int64, bool, error) {
	size, err := dirSize(cfg.DataDir)
	if err != nil {
		return 0, false, err
	}
	return size, true, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.IsDir() {
			sub, err := dirSize(filepath.Join(root, e.Name()))
			if err == nil {
				total += sub
			}
			continue
		}
		total += info.Size()
	}
	return total, nil
}

func (a *Adapter) CreateUser(ctx context.Context, cfg engine.Config, opts engine.CreateUserOptions) (engine.UserCredentials, error) {
	return engine.UserCredentials{}, unsupported("CreateUser")
}
