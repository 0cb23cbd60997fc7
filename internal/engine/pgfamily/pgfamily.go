// Package pgfamily implements the engine.Adapter contract shared by
// PostgreSQL and CockroachDB (wire-compatible, §4.9/SPEC_FULL.md §D).
// Administrative reads (ListDatabases, GetDatabaseSize, CreateUser) go
// over database/sql with github.com/lib/pq directly; backup, restore,
// and initDataDir still shell to the engine's own tools for bit-exact
// behavior, per §4.9.
package pgfamily

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
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

const initTimeout = 120 * time.Second

// Adapter implements engine.Adapter for postgresql and cockroachdb.
type Adapter struct {
	tag           enum.Engine
	initdbBinary  string // "initdb" for postgres, "cockroach" for crdb
	serverBinary  string
	clientBinary  string // "psql" for both engines
	dumpBinary    string
	restoreBinary string
	pgIsReady     bool // true for postgres (has pg_isready); crdb uses TCP
}

// NewPostgreSQL builds the PostgreSQL adapter.
func NewPostgreSQL() *Adapter {
	return &Adapter{
		tag: enum.EnginePostgreSQL, initdbBinary: "initdb", serverBinary: "postgres",
		clientBinary: "psql", dumpBinary: "pg_dump", restoreBinary: "pg_restore", pgIsReady: true,
	}
}

// NewCockroachDB builds the CockroachDB adapter (pg-wire compatible,
// shares pg_dump/pg_restore/psql for reads per SPEC_FULL.md §D).
func NewCockroachDB() *Adapter {
	return &Adapter{
		tag: enum.EngineCockroachDB, initdbBinary: "cockroach", serverBinary: "cockroach",
		clientBinary: "psql", dumpBinary: "pg_dump", restoreBinary: "pg_restore", pgIsReady: false,
	}
}

func (a *Adapter) Engine() enum.Engine { return a.tag }

func (a *Adapter) bin(cfg engine.Config, name string) string {
	ext := platform.Current().ExecExt()
	return filepath.Join(cfg.InstallDir, "bin", name+ext)
}

func (a *Adapter) InitDataDir(ctx context.Context, cfg engine.Config, opts engine.InitDataDirOptions) error {
	createdHere := false
	if _, err := os.Stat(cfg.DataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return errs.Wrap(errs.KindPreconditionFailed, "creating data directory", err)
		}
		createdHere = true
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	superuser := opts.Superuser
	if superuser == "" {
		superuser = "postgres"
	}

	var args []string
	if a.tag == enum.EnginePostgreSQL {
		args = []string{"-D", cfg.DataDir, "-U", superuser, "--auth=trust"}
	} else {
		// cockroach uses `start-single-node --background` with an
		// implicit on-first-start init; there's no separate initdb step,
		// so this is a no-op that just ensures the directory exists.
		return nil
	}

	res, err := clibase.Run(initCtx, a.bin(cfg, a.initdbBinary), args, nil, "")
	if err != nil || res.Code != 0 {
		if createdHere {
			os.RemoveAll(cfg.DataDir)
		}
		return errs.Wrap(errs.KindPreconditionFailed, "initdb failed: "+res.Stderr, err)
	}
	return nil
}

func (a *Adapter) startSpec(cfg engine.Config) process.StartSpec {
	var argv []string
	if a.tag == enum.EnginePostgreSQL {
		argv = []string{a.bin(cfg, a.serverBinary), "-D", cfg.DataDir, "-p", strconv.Itoa(cfg.Port), "-k", filepath.Dir(cfg.SocketFile)}
	} else {
		argv = []string{a.bin(cfg, a.serverBinary), "start-single-node", "--insecure",
			"--store=" + cfg.DataDir, "--listen-addr=127.0.0.1:" + strconv.Itoa(cfg.Port), "--background"}
	}

	return process.StartSpec{
		Engine: string(a.tag), Name: cfg.Name, Argv: argv,
		Dir: cfg.DataDir, LogFile: cfg.LogFile, PIDFile: cfg.PIDFile,
		Probe: func(ctx context.Context) (bool, error) {
			return a.probe(ctx, cfg)
		},
		GracefulStop: func(ctx context.Context) error {
			return a.gracefulStop(ctx, cfg)
		},
	}
}

func (a *Adapter) probe(ctx context.Context, cfg engine.Config) (bool, error) {
	if a.pgIsReady {
		res, err := clibase.Run(ctx, a.bin(cfg, "pg_isready"),
			[]string{"-h", hostOrDefault(cfg), "-p", strconv.Itoa(cfg.Port)}, nil, "")
		return err == nil && res.Code == 0, nil
	}
	return tcpProbe(ctx, hostOrDefault(cfg), cfg.Port), nil
}

// tcpProbe reports whether a TCP connection to host:port succeeds,
// used as CockroachDB's readiness check (it has no pg_isready
// equivalent in this deployment mode).
func tcpProbe(ctx context.Context, host string, port int) bool {
	d := net.Dialer{Timeout: 500 * time.Millisecond}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (a *Adapter) gracefulStop(ctx context.Context, cfg engine.Config) error {
	if a.tag == enum.EnginePostgreSQL {
		res, err := clibase.Run(ctx, a.bin(cfg, "pg_ctl"),
			[]string{"stop", "-D", cfg.DataDir, "-m", "fast"}, nil, "")
		if err != nil || res.Code != 0 {
			return fmt.Errorf("pg_ctl stop: %s", res.Stderr)
		}
		return nil
	}
	res, err := clibase.Run(ctx, a.bin(cfg, a.serverBinary),
		[]string{"node", "drain", "--insecure", "--host=127.0.0.1:" + strconv.Itoa(cfg.Port)}, nil, "")
	if err != nil || res.Code != 0 {
		return fmt.Errorf("cockroach node drain: %s", res.Stderr)
	}
	return nil
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

func (a *Adapter) openDB(cfg engine.Config, database string) (*sql.DB, error) {
	if database == "" {
		database = "postgres"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		hostOrDefault(cfg), cfg.Port, usernameOrDefault(cfg), cfg.Password, database, sslMode(cfg))
	return sql.Open("postgres", dsn)
}

func usernameOrDefault(cfg engine.Config) string {
	if cfg.Username != "" {
		return cfg.Username
	}
	return "postgres"
}

func sslMode(cfg engine.Config) string {
	if cfg.SSL {
		return "require"
	}
	return "disable"
}

func (a *Adapter) CreateDatabase(ctx context.Context, cfg engine.Config, db string) error {
	if err := engine.ValidateDatabaseName(db); err != nil {
		return err
	}
	conn, err := a.openDB(cfg, "")
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, "CREATE DATABASE "+quoteIdent(db))
	return err
}

func (a *Adapter) DropDatabase(ctx context.Context, cfg engine.Config, db string) error {
	if err := engine.ValidateDatabaseName(db); err != nil {
		return err
	}
	conn, err := a.openDB(cfg, "")
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, "DROP DATABASE IF EXISTS "+quoteIdent(db))
	return err
}

func (a *Adapter) ListDatabases(ctx context.Context, cfg engine.Config) ([]string, error) {
	conn, err := a.openDB(cfg, "")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, "SELECT datname FROM pg_database WHERE datistemplate = false")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (a *Adapter) RunScript(ctx context.Context, cfg engine.Config, opts engine.RunScriptOptions) error {
	if (opts.File == "") == (opts.SQL == "") {
		return errs.New(errs.KindPreconditionFailed, "exactly one of file or sql is required")
	}
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}

	args := []string{"-h", hostOrDefault(cfg), "-p", strconv.Itoa(cfg.Port), "-U", usernameOrDefault(cfg), "-d", database}
	env := []string{"PGPASSWORD=" + cfg.Password}

	if opts.File != "" {
		args = append(args, "-f", opts.File)
		res, err := clibase.Run(ctx, a.bin(cfg, "psql"), args, env, "")
		return checkResult(res, err)
	}

	args = append(args, "-c", opts.SQL)
	res, err := clibase.Run(ctx, a.bin(cfg, "psql"), args, env, "")
	return checkResult(res, err)
}

func checkResult(res clibase.Result, err error) error {
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("client exited %d: %s", res.Code, res.Stderr)
	}
	return nil
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
	username := opts.Username
	if username == "" {
		username = usernameOrDefault(cfg)
	}
	password := opts.Password
	if password == "" {
		password = cfg.Password
	}

	args := []string{"-h", host, "-p", strconv.Itoa(cfg.Port), "-U", username, "-d", database,
		"-A", "-F", "\t", "-c", query}
	env := []string{"PGPASSWORD=" + password}

	res, err := clibase.Run(ctx, a.bin(cfg, "psql"), args, env, "")
	if err := checkResult(res, err); err != nil {
		return engine.QueryResult{}, err
	}
	return parseTSV(res.Stdout), nil
}

func parseTSV(output string) engine.QueryResult {
	lines := splitNonEmptyLines(output)
	if len(lines) == 0 {
		return engine.QueryResult{}
	}
	columns := splitTab(lines[0])
	var rows [][]string
	for _, line := range lines[1:] {
		rows = append(rows, splitTab(line))
	}
	return engine.QueryResult{Columns: columns, Rows: rows}
}

func (a *Adapter) Backup(ctx context.Context, cfg engine.Config, outputPath string, opts engine.BackupOptions) (engine.BackupResult, error) {
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}
	format := opts.Format
	if format == "" {
		format = enum.FormatPlainSQL
	}

	env := []string{"PGPASSWORD=" + cfg.Password}
	common := []string{"-h", hostOrDefault(cfg), "-p", strconv.Itoa(cfg.Port), "-U", usernameOrDefault(cfg), database}

	switch format {
	case enum.FormatPostgresCustom:
		args := append([]string{"-Fc"}, common...)
		res, err := clibase.RunToFile(ctx, a.bin(cfg, "pg_dump"), args, env, outputPath)
		if err := checkResult(res, err); err != nil {
			return engine.BackupResult{}, err
		}
	case enum.FormatCompressedSQL:
		tmp := outputPath + ".tmp.sql"
		res, err := clibase.RunToFile(ctx, a.bin(cfg, "pg_dump"), common, env, tmp)
		defer os.Remove(tmp)
		if err := checkResult(res, err); err != nil {
			return engine.BackupResult{}, err
		}
		if _, err := clibase.GzipFile(tmp, outputPath); err != nil {
			return engine.BackupResult{}, err
		}
	default:
		res, err := clibase.RunToFile(ctx, a.bin(cfg, "pg_dump"), common, env, outputPath)
		if err := checkResult(res, err); err != nil {
			return engine.BackupResult{}, err
		}
		format = enum.FormatPlainSQL
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return engine.BackupResult{}, err
	}
	return engine.BackupResult{Path: outputPath, Format: format, Size: info.Size()}, nil
}

func (a *Adapter) DetectBackupFormat(ctx context.Context, path string) (engine.FormatInfo, error) {
	info, err := engine.DetectBackupFormat(path)
	if err != nil {
		return engine.FormatInfo{}, err
	}
	if info.Format == enum.FormatPostgresCustom {
		info.RestoreCommand = "pg_restore"
	} else {
		info.RestoreCommand = "psql"
	}
	return info, nil
}

func (a *Adapter) Restore(ctx context.Context, cfg engine.Config, path string, opts engine.RestoreOptions) (engine.RestoreResult, error) {
	detected, err := a.DetectBackupFormat(ctx, path)
	if err != nil {
		return engine.RestoreResult{}, err
	}
	matches := isPostgresFormat(detected.Format)
	if detected.Format == enum.FormatCompressedSQL {
		matches, err = isPostgresCompressed(path)
		if err != nil {
			return engine.RestoreResult{}, err
		}
	}
	if !matches {
		return engine.RestoreResult{}, errs.New(errs.KindWrongEngineDump,
			"dump format "+string(detected.Format)+" does not match postgresql").
			WithRemediation("restore into a container matching the dump's engine instead")
	}

	database := opts.Database
	if database == "" {
		database = cfg.Database
	}
	if opts.CreateDatabase {
		if err := a.CreateDatabase(ctx, cfg, database); err != nil {
			return engine.RestoreResult{}, err
		}
	}

	actualPath := path
	if detected.Format == enum.FormatCompressedSQL {
		tmp := path + ".decompressed.sql"
		if err := clibase.GunzipToFile(path, tmp); err != nil {
			return engine.RestoreResult{}, err
		}
		defer os.Remove(tmp)
		actualPath = tmp
	}

	env := []string{"PGPASSWORD=" + cfg.Password}
	if detected.Format == enum.FormatPostgresCustom {
		args := []string{"-h", hostOrDefault(cfg), "-p", strconv.Itoa(cfg.Port), "-U", usernameOrDefault(cfg), "-d", database, actualPath}
		res, err := clibase.Run(ctx, a.bin(cfg, "pg_restore"), args, env, "")
		return toRestoreResult(detected.Format, res, err)
	}

	args := []string{"-h", hostOrDefault(cfg), "-p", strconv.Itoa(cfg.Port), "-U", usernameOrDefault(cfg), "-d", database, "-f", actualPath}
	res, err := clibase.Run(ctx, a.bin(cfg, "psql"), args, env, "")
	return toRestoreResult(detected.Format, res, err)
}

func isPostgresFormat(f enum.BackupFormat) bool {
	return f == enum.FormatPostgresCustom || f == enum.FormatPlainSQL
}

// isPostgresCompressed sniffs inside a gzip envelope for the marker
// that attributes it to an engine, since gzip's magic bytes alone
// (enum.FormatCompressedSQL) carry no engine attribution. A marker-free
// compressed payload is treated as matching — pg_dump's custom format
// carries no text marker even uncompressed.
func isPostgresCompressed(path string) (bool, error) {
	inner, err := engine.SniffCompressedFormat(path)
	if err != nil {
		return false, err
	}
	switch inner {
	case enum.FormatMySQLDump, enum.FormatMariaDBDump, enum.FormatRedisText:
		return false, nil
	default:
		return true, nil
	}
}

func toRestoreResult(format enum.BackupFormat, res clibase.Result, err error) (engine.RestoreResult, error) {
	if err != nil {
		return engine.RestoreResult{}, err
	}
	if res.Code != 0 {
		return engine.RestoreResult{Format: format, Stdout: res.Stdout, Stderr: res.Stderr, Code: res.Code},
			fmt.Errorf("restore exited %d: %s", res.Code, res.Stderr)
	}
	return engine.RestoreResult{Format: format, Stdout: res.Stdout, Stderr: res.Stderr, Code: res.Code}, nil
}

func (a *Adapter) DumpFromConnectionString(ctx context.Context, rawURL, outputPath string) error {
	u, scheme, err := parseConnString(rawURL, []string{"postgres", "postgresql"})
	if err != nil {
		return err
	}
	_ = scheme

	env := envFromURL(u)
	res, err := clibase.RunToFile(ctx, "pg_dump", []string{connStringArg(u)}, env, outputPath)
	return checkResult(res, err)
}

func (a *Adapter) GetConnectionString(cfg engine.Config, database string) string {
	if database == "" {
		database = cfg.Database
	}
	scheme := "postgresql"
	user := usernameOrDefault(cfg)
	return fmt.Sprintf("%s://%s@%s:%d/%s", scheme, user, hostOrDefault(cfg), cfg.Port, database)
}

func (a *Adapter) GetDatabaseSize(ctx context.Context, cfg engine.Config) (int64, bool, error) {
	conn, err := a.openDB(cfg, cfg.Database)
	if err != nil {
		return 0, false, err
	}
	defer conn.Close()

	var size int64
	err = conn.QueryRowContext(ctx, "SELECT pg_database_size(current_database())").Scan(&size)
	if err != nil {
		return 0, false, err
	}
	return size, true, nil
}

func (a *Adapter) CreateUser(ctx context.Context, cfg engine.Config, opts engine.CreateUserOptions) (engine.UserCredentials, error) {
	username := opts.Username
	var err error
	if username == "" {
		username, err = credentials.GenerateUsername()
		if err != nil {
			return engine.UserCredentials{}, err
		}
	}
	password := opts.Password
	if password == "" {
		password, err = credentials.GeneratePassword()
		if err != nil {
			return engine.UserCredentials{}, err
		}
	}

	conn, err := a.openDB(cfg, "")
	if err != nil {
		return engine.UserCredentials{}, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE USER %s WITH PASSWORD '%s'", quoteIdent(username), escapeSQLString(password))); err != nil {
		return engine.UserCredentials{}, err
	}
	if opts.Database != "" {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s", quoteIdent(opts.Database), quoteIdent(username))); err != nil {
			return engine.UserCredentials{}, err
		}
	}

	return engine.UserCredentials{Username: username, Password: password}, nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

func escapeSQLString(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(out)
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

func splitTab(line string) []string {
	return strings.Split(line, "\t")
}

// parseConnString validates rawURL has one of the allowed schemes and
// returns its parsed form, used by DumpFromConnectionString (§4.9) to
// dump directly from an external connection string without going
// through a managed container.
func parseConnString(rawURL string, allowedSchemes []string) (*url.URL, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindPreconditionFailed, "invalid connection string", err)
	}
	for _, scheme := range allowedSchemes {
		if u.Scheme == scheme {
			return u, scheme, nil
		}
	}
	return nil, "", errs.New(errs.KindPreconditionFailed, "unsupported connection string scheme: "+u.Scheme)
}

func envFromURL(u *url.URL) []string {
	if password, ok := u.User.Password(); ok {
		return []string{"PGPASSWORD=" + password}
	}
	return nil
}

// connStringArg strips the password from u before handing it to pg_dump
// as a positional argument — credentials travel via PGPASSWORD instead
// of argv, per §4.9/§6.
func connStringArg(u *url.URL) string {
	stripped := *u
	if username := u.User.Username(); username != "" {
		stripped.User = url.User(username)
	} else {
		stripped.User = nil
	}
	return stripped.String()
}
