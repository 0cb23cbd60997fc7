// Package mongofamily implements the engine.Adapter contract shared by
// MongoDB and FerretDB (§4.9). This module's dependency set carries no
// MongoDB Go driver, so every operation — including administrative
// reads — shells to mongod/mongosh/mongodump/mongorestore, the same
// CLI-only fallback mysqlfamily uses for MySQL.
package mongofamily

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/engine/clibase"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/logger"
	"github.com/robertjbass/spindb/internal/platform"
	"github.com/robertjbass/spindb/internal/process"
)

// Adapter implements engine.Adapter for mongodb and ferretdb.
type Adapter struct {
	tag          enum.Engine
	serverBinary string // "mongod" or "ferretdb"
}

// NewMongoDB builds the MongoDB adapter.
func NewMongoDB() *Adapter { return &Adapter{tag: enum.EngineMongoDB, serverBinary: "mongod"} }

// NewFerretDB builds the FerretDB adapter (Mongo wire-protocol
// compatible, backed by PostgreSQL under the hood — out of scope for
// this adapter, which only drives FerretDB's own process).
func NewFerretDB() *Adapter { return &Adapter{tag: enum.EngineFerretDB, serverBinary: "ferretdb"} }

func (a *Adapter) Engine() enum.Engine { return a.tag }

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
	var argv []string
	if a.tag == enum.EngineMongoDB {
		argv = []string{
			a.bin(cfg, "mongod"),
			"--dbpath", cfg.DataDir,
			"--port", strconv.Itoa(cfg.Port),
			"--pidfilepath", cfg.PIDFile,
			"--bind_ip", hostOrDefault(cfg),
		}
	} else {
		argv = []string{
			a.bin(cfg, "ferretdb"),
			"--listen-addr", hostOrDefault(cfg) + ":" + strconv.Itoa(cfg.Port),
			"--state-dir", cfg.DataDir,
		}
	}

	return process.StartSpec{
		Engine: string(a.tag), Name: cfg.Name, Argv: argv,
		Dir: cfg.DataDir, LogFile: cfg.LogFile, PIDFile: cfg.PIDFile,
		Probe: func(ctx context.Context) (bool, error) {
			return a.probe(ctx, cfg)
		},
	}
}

func (a *Adapter) probe(ctx context.Context, cfg engine.Config) (bool, error) {
	res, err := clibase.Run(ctx, a.bin(cfg, "mongosh"),
		append(a.shellArgs(cfg, "admin"), "--eval", "db.adminCommand('ping')"), nil, "")
	return err == nil && res.Code == 0, nil
}

func (a *Adapter) shellArgs(cfg engine.Config, database string) []string {
	uri := fmt.Sprintf("mongodb://%s:%d/%s", hostOrDefault(cfg), cfg.Port, database)
	return []string{uri, "--quiet"}
}

func (a *Adapter) Start(ctx context.Context, cfg engine.Config) (engine.StartResult, error) {
	res, err := process.Start(ctx, a.startSpec(cfg))
	if err != nil {
		return engine.StartResult{}, err
	}
	logger.GetLogger(ctx).Info("started",
		zap.String("engine", string(a.tag)), zap.String("container", cfg.Name),
		zap.Int("port", cfg.Port), zap.Int("pid", res.PID))
	return engine.StartResult{Port: cfg.Port, ConnectionString: a.GetConnectionString(cfg, cfg.Database)}, nil
}

func (a *Adapter) Stop(ctx context.Context, cfg engine.Config) error {
	return process.Stop(ctx, a.startSpec(cfg))
}

func (a *Adapter) IsRunning(ctx context.Context, cfg engine.Config) (bool, error) {
	return process.IsRunning(a.startSpec(cfg))
}

func hostOrDefault(cfg engine.Config) string {
	if cfg.Host != "" {
		return cfg.Host
	}
	return "127.0.0.1"
}

func (a *Adapter) CreateDatabase(ctx context.Context, cfg engine.Config, db string) error {
	if err := engine.ValidateDatabaseName(db); err != nil {
		return err
	}
	// MongoDB databases are created implicitly on first write; this
	// creates a placeholder collection so the database is visible to
	// listDatabases immediately, matching §4.9's expectation that
	// CreateDatabase makes the database observable right away.
	eval := fmt.Sprintf("db.getSiblingDB('%s').createCollection('_spindb_init')", db)
	res, err := clibase.Run(ctx, a.bin(cfg, "mongosh"), append(a.shellArgs(cfg, "admin"), "--eval", eval), nil, "")
	return checkResult(res, err)
}

func (a *Adapter) DropDatabase(ctx context.Context, cfg engine.Config, db string) error {
	if err := engine.ValidateDatabaseName(db); err != nil {
		return err
	}
	eval := fmt.Sprintf("db.getSiblingDB('%s').dropDatabase()", db)
	res, err := clibase.Run(ctx, a.bin(cfg, "mongosh"), append(a.shellArgs(cfg, "admin"), "--eval", eval), nil, "")
	return checkResult(res, err)
}

func (a *Adapter) ListDatabases(ctx context.Context, cfg engine.Config) ([]string, error) {
	res, err := clibase.Run(ctx, a.bin(cfg, "mongosh"),
		append(a.shellArgs(cfg, "admin"), "--eval", "db.adminCommand('listDatabases').databases.map(d => d.name).join('\\n')"),
		nil, "")
	if err := checkResult(res, err); err != nil {
		return nil, err
	}

	var names []string
	for _, line := range splitNonEmptyLines(res.Stdout) {
		if isSystemDatabase(line) {
			continue
		}
		names = append(names, line)
	}
	return names, nil
}

func isSystemDatabase(name string) bool {
	switch name {
	case "admin", "local", "config":
		return true
	default:
		return false
	}
}

func checkResult(res clibase.Result, err error) error {
	return checkResultTool(res, err, "mongosh")
}

func checkResultTool(res clibase.Result, err error, tool string) error {
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("%s exited %d: %s", tool, res.Code, res.Stderr)
	}
	return nil
}

func (a *Adapter) RunScript(ctx context.Context, cfg engine.Config, opts engine.RunScriptOptions) error {
	if (opts.File == "") == (opts.SQL == "") {
		return errs.New(errs.KindPreconditionFailed, "exactly one of file or sql is required")
	}
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}

	args := a.shellArgs(cfg, database)
	if opts.File != "" {
		args = append(args, "--file", opts.File)
		res, err := clibase.Run(ctx, a.bin(cfg, "mongosh"), args, nil, "")
		return checkResult(res, err)
	}

	args = append(args, "--eval", opts.SQL)
	res, err := clibase.Run(ctx, a.bin(cfg, "mongosh"), args, nil, "")
	return checkResult(res, err)
}

func (a *Adapter) ExecuteQuery(ctx context.Context, cfg engine.Config, query string, opts engine.QueryOptions) (engine.QueryResult, error) {
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}
	host := opts.Host
	if host == "" {
		host = hostOrDefault(cfg)
	}

	uri := fmt.Sprintf("mongodb://%s:%d/%s", host, cfg.Port, database)
	wrapped := fmt.Sprintf("JSON.stringify((%s).toArray ? (%s).toArray() : (%s))", query, query, query)
	res, err := clibase.Run(ctx, a.bin(cfg, "mongosh"), []string{uri, "--quiet", "--eval", wrapped}, nil, "")
	if err := checkResult(res, err); err != nil {
		return engine.QueryResult{}, err
	}
	return parseJSONRows(res.Stdout)
}

// parseJSONRows flattens a JSON array of documents into a QueryResult,
// with a single "document" column holding each document's JSON text —
// Mongo has no fixed tabular schema the way SQL engines do.
func parseJSONRows(output string) (engine.QueryResult, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return engine.QueryResult{}, nil
	}

	var docs []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &docs); err != nil {
		return engine.QueryResult{Columns: []string{"result"}, Rows: [][]string{{trimmed}}}, nil
	}

	rows := make([][]string, len(docs))
	for i, d := range docs {
		rows[i] = []string{string(d)}
	}
	return engine.QueryResult{Columns: []string{"document"}, Rows: rows}, nil
}

func (a *Adapter) Backup(ctx context.Context, cfg engine.Config, outputPath string, opts engine.BackupOptions) (engine.BackupResult, error) {
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}

	args := []string{"--host", hostOrDefault(cfg), "--port", strconv.Itoa(cfg.Port),
		"--db", database, "--archive=" + outputPath}
	res, err := clibase.Run(ctx, a.bin(cfg, "mongodump"), args, nil, "")
	if err := checkResultTool(res, err, "mongodump"); err != nil {
		return engine.BackupResult{}, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return engine.BackupResult{}, err
	}
	return engine.BackupResult{Path: outputPath, Format: enum.FormatMongoArchive, Size: info.Size()}, nil
}

func (a *Adapter) DetectBackupFormat(ctx context.Context, path string) (engine.FormatInfo, error) {
	info, err := engine.DetectBackupFormat(path)
	if err != nil {
		return engine.FormatInfo{}, err
	}
	if info.Format == enum.FormatUnknown {
		// mongodump archives have no fixed magic number; treat an
		// otherwise-unidentified file as a Mongo archive candidate
		// since no other engine's sniff rule matched it.
		info.Format = enum.FormatMongoArchive
		info.Description = "MongoDB archive (assumed, no distinguishing magic number)"
	}
	info.RestoreCommand = "mongorestore"
	return info, nil
}

func (a *Adapter) Restore(ctx context.Context, cfg engine.Config, path string, opts engine.RestoreOptions) (engine.RestoreResult, error) {
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}

	args := []string{"--host", hostOrDefault(cfg), "--port", strconv.Itoa(cfg.Port),
		"--archive=" + path}
	if opts.CreateDatabase {
		args = append(args, "--nsFrom", "*", "--nsTo", database+".*")
	}

	res, err := clibase.Run(ctx, a.bin(cfg, "mongorestore"), args, nil, "")
	if err != nil {
		return engine.RestoreResult{}, err
	}
	if res.Code != 0 {
		return engine.RestoreResult{Format: enum.FormatMongoArchive, Stdout: res.Stdout, Stderr: res.Stderr, Code: res.Code},
			fmt.Errorf("mongorestore exited %d: %s", res.Code, res.Stderr)
	}
	return engine.RestoreResult{Format: enum.FormatMongoArchive, Stdout: res.Stdout, Stderr: res.Stderr, Code: res.Code}, nil
}

func (a *Adapter) DumpFromConnectionString(ctx context.Context, rawURL, outputPath string) error {
	args := []string{"--uri", rawURL, "--archive=" + outputPath}
	res, err := clibase.Run(ctx, "mongodump", args, nil, "")
	return checkResultTool(res, err, "mongodump")
}

func (a *Adapter) GetConnectionString(cfg engine.Config, database string) string {
	if database == "" {
		database = cfg.Database
	}
	return fmt.Sprintf("mongodb://%s:%d/%s", hostOrDefault(cfg), cfg.Port, database)
}

func (a *Adapter) GetDatabaseSize(ctx context.Context, cfg engine.Config) (int64, bool, error) {
	eval := fmt.Sprintf("db.getSiblingDB('%s').stats().dataSize", cfg.Database)
	res, err := clibase.Run(ctx, a.bin(cfg, "mongosh"), append(a.shellArgs(cfg, "admin"), "--eval", eval), nil, "")
	if err := checkResult(res, err); err != nil {
		return 0, false, err
	}

	trimmed := strings.TrimSpace(res.Stdout)
	size, parseErr := strconv.ParseInt(trimmed, 10, 64)
	if parseErr != nil {
		return 0, false, nil
	}
	return size, true, nil
}

func (a *Adapter) CreateUser(ctx context.Context, cfg engine.Config, opts engine.CreateUserOptions) (engine.UserCredentials, error) {
	return engine.UserCredentials{}, errs.New(errs.KindUnsupportedOperation,
		fmt.Sprintf("%s CreateUser is not yet implemented", a.tag)).
		WithRemediation("use mongosh directly against the container to manage users")
}

func splitNonEmptyLines(s string) []string {
	raw := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var out []string
	for _, line := range raw {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
