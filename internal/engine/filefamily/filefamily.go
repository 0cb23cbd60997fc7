// Package filefamily implements the engine.Adapter contract shared by
// SQLite and DuckDB (§4.9): file-based engines with no server process
// and no logical databases (§3 Engine.FileBased/HasLogicalDatabases) —
// "running" means the file exists, "start"/"stop" are no-ops beyond
// touching/leaving the file alone, and CreateDatabase/DropDatabase
// return an unsupported-operation error rather than silently no-op'ing
// (§4.9 doc comment on the Adapter interface).
package filefamily

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/engine/clibase"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/platform"
)

// Adapter implements engine.Adapter for sqlite and duckdb.
type Adapter struct {
	tag        enum.Engine
	driverName string // "sqlite3" for reads; empty for duckdb (CLI only)
	cliBinary  string // "sqlite3" or "duckdb"
}

// NewSQLite builds the SQLite adapter, backed by mattn/go-sqlite3 for
// direct reads and the sqlite3 CLI for scripts.
func NewSQLite() *Adapter {
	return &Adapter{tag: enum.EngineSQLite, driverName: "sqlite3", cliBinary: "sqlite3"}
}

// NewDuckDB builds the DuckDB adapter. DuckDB has no Go driver in this
// module's dependency set, so every operation shells to the duckdb CLI.
func NewDuckDB() *Adapter {
	return &Adapter{tag: enum.EngineDuckDB, cliBinary: "duckdb"}
}

func (a *Adapter) Engine() enum.Engine { return a.tag }

// FilePath returns the resolved absolute path of the backing file for
// cfg, the same path InitDataDir/IsRunning use — exported so the
// Container/Core layer can register it in the file-based-engine
// registry store (§4.3) without duplicating the naming convention.
func (a *Adapter) FilePath(cfg engine.Config) string {
	return a.filePath(cfg)
}

func (a *Adapter) filePath(cfg engine.Config) string {
	if cfg.Database != "" && filepath.IsAbs(cfg.Database) {
		return cfg.Database
	}
	name := cfg.Database
	if name == "" {
		name = cfg.Name
	}
	return filepath.Join(cfg.DataDir, name+a.extension())
}

func (a *Adapter) extension() string {
	if a.tag == enum.EngineDuckDB {
		return ".duckdb"
	}
	return ".sqlite3"
}

func (a *Adapter) bin(cfg engine.Config) string {
	return filepath.Join(cfg.InstallDir, "bin", a.cliBinary+platform.Current().ExecExt())
}

// InitDataDir creates the parent directory and an empty database file
// — for file-based engines, opts.Path (if set) overrides the default
// name derived from the container.
func (a *Adapter) InitDataDir(ctx context.Context, cfg engine.Config, opts engine.InitDataDirOptions) error {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return errs.Wrap(errs.KindPreconditionFailed, "creating data directory", err)
	}

	path := a.filePath(cfg)
	if opts.Path != "" {
		path = opts.Path
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if a.tag == enum.EngineSQLite {
		db, err := sql.Open("sqlite3", path)
		if err != nil {
			return errs.Wrap(errs.KindPreconditionFailed, "creating sqlite file", err)
		}
		defer db.Close()
		return db.PingContext(ctx)
	}

	res, err := clibase.Run(ctx, a.bin(cfg), []string{path, "-c", ".quit"}, nil, "")
	if err != nil || res.Code != 0 {
		return errs.Wrap(errs.KindPreconditionFailed, "creating duckdb file: "+res.Stderr, err)
	}
	return nil
}

// Start is a no-op beyond confirming the backing file exists — there
// is no process to spawn (§3 Engine.FileBased).
func (a *Adapter) Start(ctx context.Context, cfg engine.Config) (engine.StartResult, error) {
	path := a.filePath(cfg)
	if _, err := os.Stat(path); err != nil {
		return engine.StartResult{}, errs.Wrap(errs.KindNotFound, "database file missing: "+path, err)
	}
	return engine.StartResult{ConnectionString: a.GetConnectionString(cfg, cfg.Database)}, nil
}

// Stop is a no-op: there is no process to signal.
func (a *Adapter) Stop(ctx context.Context, cfg engine.Config) error { return nil }

func (a *Adapter) IsRunning(ctx context.Context, cfg engine.Config) (bool, error) {
	_, err := os.Stat(a.filePath(cfg))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (a *Adapter) CreateDatabase(ctx context.Context, cfg engine.Config, db string) error {
	return unsupported(a.tag, "CreateDatabase")
}

func (a *Adapter) DropDatabase(ctx context.Context, cfg engine.Config, db string) error {
	return unsupported(a.tag, "DropDatabase")
}

func (a *Adapter) ListDatabases(ctx context.Context, cfg engine.Config) ([]string, error) {
	return []string{a.filePath(cfg)}, nil
}

func unsupported(tag enum.Engine, op string) error {
	return errs.New(errs.KindUnsupportedOperation, fmt.Sprintf("%s does not support %s (file-based engine)", tag, op)).
		WithRemediation("file-based engines have no logical databases — the container's data file is the database")
}

func (a *Adapter) RunScript(ctx context.Context, cfg engine.Config, opts engine.RunScriptOptions) error {
	if (opts.File == "") == (opts.SQL == "") {
		return errs.New(errs.KindPreconditionFailed, "exactly one of file or sql is required")
	}

	path := a.filePath(cfg)
	if opts.File != "" {
		content, err := os.ReadFile(opts.File)
		if err != nil {
			return err
		}
		return a.execSQL(ctx, cfg, path, string(content))
	}
	return a.execSQL(ctx, cfg, path, opts.SQL)
}

func (a *Adapter) execSQL(ctx context.Context, cfg engine.Config, path, sql string) error {
	res, err := clibase.Run(ctx, a.bin(cfg), []string{path}, nil, sql)
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("%s exited %d: %s", a.cliBinary, res.Code, res.Stderr)
	}
	return nil
}

func (a *Adapter) ExecuteQuery(ctx context.Context, cfg engine.Config, query string, opts engine.QueryOptions) (engine.QueryResult, error) {
	path := a.filePath(cfg)
	if opts.Database != "" {
		path = opts.Database
	}

	if a.tag == enum.EngineSQLite {
		return a.executeQuerySQLite(ctx, path, query)
	}

	args := []string{path, "-csv", "-c", query}
	res, err := clibase.Run(ctx, a.bin(cfg), args, nil, "")
	if err != nil {
		return engine.QueryResult{}, err
	}
	if res.Code != 0 {
		return engine.QueryResult{}, fmt.Errorf("duckdb exited %d: %s", res.Code, res.Stderr)
	}
	return parseCSV(res.Stdout), nil
}

func (a *Adapter) executeQuerySQLite(ctx context.Context, path, query string) (engine.QueryResult, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return engine.QueryResult{}, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return engine.QueryResult{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return engine.QueryResult{}, err
	}

	var result engine.QueryResult
	result.Columns = columns

	vals := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return engine.QueryResult{}, err
		}
		row := make([]string, len(columns))
		for i, v := range vals {
			row[i] = fmt.Sprintf("%v", v)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

func parseCSV(output string) engine.QueryResult {
	lines := splitNonEmptyLines(output)
	if len(lines) == 0 {
		return engine.QueryResult{}
	}
	columns := splitCSVLine(lines[0])
	var rows [][]string
	for _, line := range lines[1:] {
		rows = append(rows, splitCSVLine(line))
	}
	return engine.QueryResult{Columns: columns, Rows: rows}
}

func splitCSVLine(line string) []string {
	var out []string
	var cur []byte
	for i := 0; i < len(line); i++ {
		if line[i] == ',' {
			out = append(out, string(cur))
			cur = nil
			continue
		}
		cur = append(cur, line[i])
	}
	out = append(out, string(cur))
	return out
}

func splitNonEmptyLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func (a *Adapter) Backup(ctx context.Context, cfg engine.Config, outputPath string, opts engine.BackupOptions) (engine.BackupResult, error) {
	path := a.filePath(cfg)
	format := enum.FormatSQLiteFile
	if a.tag == enum.EngineDuckDB {
		format = enum.FormatDuckDBFile
	}

	if opts.Format == enum.FormatCompressedSQL {
		size, err := clibase.GzipFile(path, outputPath)
		if err != nil {
			return engine.BackupResult{}, err
		}
		return engine.BackupResult{Path: outputPath, Format: enum.FormatCompressedSQL, Size: size}, nil
	}

	if err := copyFile(path, outputPath); err != nil {
		return engine.BackupResult{}, err
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return engine.BackupResult{}, err
	}
	return engine.BackupResult{Path: outputPath, Format: format, Size: info.Size()}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Close()
}

func (a *Adapter) DetectBackupFormat(ctx context.Context, path string) (engine.FormatInfo, error) {
	info, err := engine.DetectBackupFormat(path)
	if err != nil {
		return engine.FormatInfo{}, err
	}
	info.RestoreCommand = "copy"
	return info, nil
}

func (a *Adapter) Restore(ctx context.Context, cfg engine.Config, path string, opts engine.RestoreOptions) (engine.RestoreResult, error) {
	detected, err := a.DetectBackupFormat(ctx, path)
	if err != nil {
		return engine.RestoreResult{}, err
	}

	wantFormat := enum.FormatSQLiteFile
	if a.tag == enum.EngineDuckDB {
		wantFormat = enum.FormatDuckDBFile
	}
	if detected.Format != wantFormat && detected.Format != enum.FormatCompressedSQL {
		return engine.RestoreResult{}, errs.New(errs.KindWrongEngineDump,
			"dump format "+string(detected.Format)+" does not match "+string(a.tag)).
			WithRemediation("restore into a container matching the dump's engine instead")
	}

	dest := a.filePath(cfg)
	if detected.Format == enum.FormatCompressedSQL {
		if err := clibase.GunzipToFile(path, dest); err != nil {
			return engine.RestoreResult{}, err
		}
		return engine.RestoreResult{Format: detected.Format}, nil
	}

	if err := copyFile(path, dest); err != nil {
		return engine.RestoreResult{}, err
	}
	return engine.RestoreResult{Format: detected.Format}, nil
}

func (a *Adapter) DumpFromConnectionString(ctx context.Context, rawURL, outputPath string) error {
	path, err := pathFromFileURL(rawURL)
	if err != nil {
		return err
	}
	return copyFile(path, outputPath)
}

func pathFromFileURL(rawURL string) (string, error) {
	const prefix = "file://"
	if len(rawURL) > len(prefix) && rawURL[:len(prefix)] == prefix {
		return rawURL[len(prefix):], nil
	}
	return rawURL, nil
}

func (a *Adapter) GetConnectionString(cfg engine.Config, database string) string {
	path := a.filePath(cfg)
	if database != "" {
		path = database
	}
	return "file://" + path
}

func (a *Adapter) GetDatabaseSize(ctx context.Context, cfg engine.Config) (int64, bool, error) {
	info, err := os.Stat(a.filePath(cfg))
	if err != nil {
		return 0, false, err
	}
	return info.Size(), true, nil
}

func (a *Adapter) CreateUser(ctx context.Context, cfg engine.Config, opts engine.CreateUserOptions) (engine.UserCredentials, error) {
	return engine.UserCredentials{}, unsupported(a.tag, "CreateUser")
}
