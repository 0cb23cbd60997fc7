// Package surrealdb implements engine.Adapter for SurrealDB directly on
// internal/engine/clibase: SurrealDB shares no wire format with any
// other engine family, so it gets a minimal, CLI-only adapter rather
// than a family package of its own.
package surrealdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/engine/clibase"
	"github.com/robertjbass/spindb/internal/engine/credentials"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/logger"
	"github.com/robertjbass/spindb/internal/platform"
	"github.com/robertjbass/spindb/internal/process"
)

// namespace is the single fixed SurrealDB namespace spindb operates in;
// containers map 1:1 onto SurrealDB databases within it, not namespaces.
const namespace = "spindb"

// Adapter implements engine.Adapter for SurrealDB.
type Adapter struct{}

// New builds the SurrealDB adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Engine() enum.Engine { return enum.EngineSurrealDB }

func hostOrDefault(cfg engine.Config) string {
	if cfg.Host != "" {
		return cfg.Host
	}
	return "127.0.0.1"
}

func (a *Adapter) bin(cfg engine.Config, name string) string {
	return filepath.Join(cfg.InstallDir, "bin", name+platform.Current().ExecExt())
}

func (a *Adapter) storePath(cfg engine.Config) string {
	return "file:" + filepath.Join(cfg.DataDir, "surreal.db")
}

func (a *Adapter) connURL(cfg engine.Config) string {
	return fmt.Sprintf("http://%s:%d", hostOrDefault(cfg), cfg.Port)
}

func (a *Adapter) InitDataDir(ctx context.Context, cfg engine.Config, opts engine.InitDataDirOptions) error {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return errs.Wrap(errs.KindPreconditionFailed, "creating data directory", err)
	}
	return nil
}

func (a *Adapter) rootEnv(cfg engine.Config) []string {
	if cfg.Password == "" {
		return nil
	}
	return []string{"SURREAL_PASS=" + cfg.Password}
}

func (a *Adapter) startSpec(cfg engine.Config) process.StartSpec {
	user := cfg.Username
	if user == "" {
		user = "root"
	}
	argv := []string{a.bin(cfg, "surreal"), "start",
		"--bind", fmt.Sprintf("%s:%d", hostOrDefault(cfg), cfg.Port),
		"--user", user}
	if cfg.Password != "" {
		argv = append(argv, "--pass", cfg.Password)
	}
	argv = append(argv, a.storePath(cfg))

	return process.StartSpec{
		Engine: string(enum.EngineSurrealDB), Name: cfg.Name, Argv: argv,
		Dir: cfg.DataDir, LogFile: cfg.LogFile, PIDFile: cfg.PIDFile,
		Probe: func(ctx context.Context) (bool, error) {
			return a.probe(ctx, cfg)
		},
	}
}

func (a *Adapter) probe(ctx context.Context, cfg engine.Config) (bool, error) {
	res, err := clibase.Run(ctx, a.bin(cfg, "surreal"), []string{"isready", "--conn", a.connURL(cfg)}, nil, "")
	if err != nil {
		return false, nil
	}
	return res.Code == 0, nil
}

func (a *Adapter) Start(ctx context.Context, cfg engine.Config) (engine.StartResult, error) {
	res, err := process.Start(ctx, a.startSpec(cfg))
	if err != nil {
		return engine.StartResult{}, err
	}
	logger.GetLogger(ctx).Info("started",
		zap.String("engine", string(enum.EngineSurrealDB)), zap.String("container", cfg.Name),
		zap.Int("port", cfg.Port), zap.Int("pid", res.PID))
	return engine.StartResult{Port: cfg.Port, ConnectionString: a.GetConnectionString(cfg, cfg.Database)}, nil
}

func (a *Adapter) Stop(ctx context.Context, cfg engine.Config) error {
	return process.Stop(ctx, a.startSpec(cfg))
}

func (a *Adapter) IsRunning(ctx context.Context, cfg engine.Config) (bool, error) {
	return process.IsRunning(a.startSpec(cfg))
}

// sql runs a SurrealQL script against namespace/db and returns raw
// --json output.
func (a *Adapter) sql(ctx context.Context, cfg engine.Config, db, query string) (string, error) {
	args := []string{"sql", "--conn", a.connURL(cfg), "--ns", namespace, "--db", db, "--json", "--pretty=false"}
	if cfg.Username != "" {
		args = append(args, "--user", cfg.Username)
	}
	res, err := clibase.Run(ctx, a.bin(cfg, "surreal"), args, a.rootEnv(cfg), query)
	if err != nil {
		return "", err
	}
	if res.Code != 0 {
		return "", fmt.Errorf("surreal sql exited %d: %s", res.Code, res.Stderr)
	}
	return res.Stdout, nil
}

func (a *Adapter) CreateDatabase(ctx context.Context, cfg engine.Config, db string) error {
	if err := engine.ValidateDatabaseName(db); err != nil {
		return err
	}
	_, err := a.sql(ctx, cfg, db, "DEFINE DATABASE "+db+";")
	return err
}

func (a *Adapter) DropDatabase(ctx context.Context, cfg engine.Config, db string) error {
	if err := engine.ValidateDatabaseName(db); err != nil {
		return err
	}
	_, err := a.sql(ctx, cfg, db, "REMOVE DATABASE "+db+";")
	return err
}

func (a *Adapter) ListDatabases(ctx context.Context, cfg engine.Config) ([]string, error) {
	out, err := a.sql(ctx, cfg, "", "INFO FOR NS;")
	if err != nil {
		return nil, err
	}
	return parseNamespaceDatabases(out)
}

// parseNamespaceDatabases extracts database names from `INFO FOR NS`'s
// --json output, shaped as [{"result": {"databases": {"name": "..."}}}].
func parseNamespaceDatabases(output string) ([]string, error) {
	var parsed []struct {
		Result struct {
			Databases map[string]string `json:"databases"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		return nil, nil
	}
	if len(parsed) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(parsed[0].Result.Databases))
	for name := range parsed[0].Result.Databases {
		names = append(names, name)
	}
	return names, nil
}

func (a *Adapter) RunScript(ctx context.Context, cfg engine.Config, opts engine.RunScriptOptions) error {
	query := opts.SQL
	if opts.File != "" {
		content, err := os.ReadFile(opts.File)
		if err != nil {
			return err
		}
		query = string(content)
	}
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}
	_, err := a.sql(ctx, cfg, database, query)
	return err
}

func (a *Adapter) ExecuteQuery(ctx context.Context, cfg engine.Config, query string, opts engine.QueryOptions) (engine.QueryResult, error) {
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}
	out, err := a.sql(ctx, cfg, database, query)
	if err != nil {
		return engine.QueryResult{}, err
	}
	return parseQueryResult(out), nil
}

// parseQueryResult flattens `surreal sql --json`'s per-statement result
// array into a single "result" column, one row per statement — the same
// tolerant fallback shape mongofamily's parseJSONRows uses for output
// with no fixed tabular structure.
func parseQueryResult(output string) engine.QueryResult {
	var parsed []json.RawMessage
	if err := json.Unmarshal([]byte(output), &parsed); err != nil || len(parsed) == 0 {
		trimmed := strings.TrimSpace(output)
		if trimmed == "" {
			return engine.QueryResult{}
		}
		return engine.QueryResult{Columns: []string{"result"}, Rows: [][]string{{trimmed}}}
	}
	rows := make([][]string, len(parsed))
	for i, raw := range parsed {
		rows[i] = []string{string(raw)}
	}
	return engine.QueryResult{Columns: []string{"result"}, Rows: rows}
}

func (a *Adapter) Backup(ctx context.Context, cfg engine.Config, outputPath string, opts engine.BackupOptions) (engine.BackupResult, error) {
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}
	args := []string{"export", "--conn", a.connURL(cfg), "--ns", namespace, "--db", database}
	if cfg.Username != "" {
		args = append(args, "--user", cfg.Username)
	}
	args = append(args, outputPath)

	res, err := clibase.Run(ctx, a.bin(cfg, "surreal"), args, a.rootEnv(cfg), "")
	if err != nil {
		return engine.BackupResult{}, err
	}
	if res.Code != 0 {
		return engine.BackupResult{}, fmt.Errorf("surreal export exited %d: %s", res.Code, res.Stderr)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return engine.BackupResult{}, err
	}
	return engine.BackupResult{Path: outputPath, Format: enum.FormatPlainSQL, Size: info.Size()}, nil
}

func (a *Adapter) DetectBackupFormat(ctx context.Context, path string) (engine.FormatInfo, error) {
	info, err := engine.DetectBackupFormat(path)
	if err != nil {
		return engine.FormatInfo{}, err
	}
	info.RestoreCommand = "surreal import"
	return info, nil
}

func (a *Adapter) Restore(ctx context.Context, cfg engine.Config, path string, opts engine.RestoreOptions) (engine.RestoreResult, error) {
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}
	args := []string{"import", "--conn", a.connURL(cfg), "--ns", namespace, "--db", database}
	if cfg.Username != "" {
		args = append(args, "--user", cfg.Username)
	}
	args = append(args, path)

	res, err := clibase.Run(ctx, a.bin(cfg, "surreal"), args, a.rootEnv(cfg), "")
	if err != nil {
		return engine.RestoreResult{}, err
	}
	if res.Code != 0 {
		return engine.RestoreResult{Stderr: res.Stderr, Code: res.Code}, fmt.Errorf("surreal import exited %d: %s", res.Code, res.Stderr)
	}
	return engine.RestoreResult{Code: res.Code}, nil
}

func (a *Adapter) DumpFromConnectionString(ctx context.Context, rawURL, outputPath string) error {
	res, err := clibase.Run(ctx, "surreal", []string{"export", "--conn", rawURL, "--ns", namespace, "--db", "default", outputPath}, nil, "")
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("surreal export exited %d: %s", res.Code, res.Stderr)
	}
	return nil
}

func (a *Adapter) GetConnectionString(cfg engine.Config, database string) string {
	if database == "" {
		database = cfg.Database
	}
	base := a.connURL(cfg)
	if database == "" {
		return base
	}
	return base + "/sql?ns=" + namespace + "&db=" + database
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
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}

	username := opts.Username
	password := opts.Password
	var err error
	if username == "" {
		username, err = credentials.GenerateUsername()
		if err != nil {
			return engine.UserCredentials{}, err
		}
	}
	if password == "" {
		password, err = credentials.GeneratePassword()
		if err != nil {
			return engine.UserCredentials{}, err
		}
	}

	query := fmt.Sprintf("DEFINE USER %s ON DATABASE PASSWORD '%s' ROLES OWNER;",
		username, strings.ReplaceAll(password, "'", "''"))
	if _, err := a.sql(ctx, cfg, database, query); err != nil {
		return engine.UserCredentials{}, err
	}
	return engine.UserCredentials{Username: username, Password: password}, nil
}
