// Package redisfamily implements the engine.Adapter contract shared by
// Redis and Valkey (wire-compatible forks, §4.9). ListDatabases, the
// liveness checks and text backup go through github.com/redis/go-redis/v9
// directly; GetDatabaseSize reports the size of the dump.rdb file, and
// server lifecycle, ad hoc queries and RDB backup/restore shell to
// redis-server/redis-cli.
package redisfamily

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/engine/clibase"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/logger"
	"github.com/robertjbass/spindb/internal/platform"
	"github.com/robertjbass/spindb/internal/process"

	"go.uber.org/zap"
)

// Adapter implements engine.Adapter for redis and valkey.
type Adapter struct {
	tag        enum.Engine
	serverName string // "redis-server" or "valkey-server"
	cliName    string // "redis-cli" or "valkey-cli"
}

// NewRedis builds the Redis adapter.
func NewRedis() *Adapter {
	return &Adapter{tag: enum.EngineRedis, serverName: "redis-server", cliName: "redis-cli"}
}

// NewValkey builds the Valkey adapter (Redis protocol fork).
func NewValkey() *Adapter {
	return &Adapter{tag: enum.EngineValkey, serverName: "valkey-server", cliName: "valkey-cli"}
}

func (a *Adapter) Engine() enum.Engine { return a.tag }

func (a *Adapter) bin(cfg engine.Config, name string) string {
	return filepath.Join(cfg.InstallDir, "bin", name+platform.Current().ExecExt())
}

func (a *Adapter) rdbPath(cfg engine.Config) string {
	return filepath.Join(cfg.DataDir, "dump.rdb")
}

// InitDataDir just ensures the data directory exists — Redis has no
// separate initialization step.
func (a *Adapter) InitDataDir(ctx context.Context, cfg engine.Config, opts engine.InitDataDirOptions) error {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return errs.Wrap(errs.KindPreconditionFailed, "creating data directory", err)
	}
	return nil
}

func (a *Adapter) startSpec(cfg engine.Config) process.StartSpec {
	argv := []string{
		a.bin(cfg, a.serverName),
		"--port", strconv.Itoa(cfg.Port),
		"--dir", cfg.DataDir,
		"--pidfile", cfg.PIDFile,
		"--daemonize", "no",
	}
	if cfg.Password != "" {
		argv = append(argv, "--requirepass", cfg.Password)
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
	res, err := clibase.Run(ctx, a.bin(cfg, a.cliName), a.cliArgs(cfg, "PING"), nil, "")
	return err == nil && res.Code == 0 && strings.TrimSpace(res.Stdout) == "PONG", nil
}

func (a *Adapter) gracefulStop(ctx context.Context, cfg engine.Config) error {
	res, err := clibase.Run(ctx, a.bin(cfg, a.cliName), a.cliArgs(cfg, "SHUTDOWN", "NOSAVE"), nil, "")
	// redis-cli's SHUTDOWN closes the connection without replying, which
	// exec reports as a non-zero/errored exit even on success.
	_ = res
	_ = err
	return nil
}

func (a *Adapter) cliArgs(cfg engine.Config, command ...string) []string {
	args := []string{"-h", hostOrDefault(cfg), "-p", strconv.Itoa(cfg.Port)}
	if cfg.Password != "" {
		args = append(args, "-a", cfg.Password, "--no-auth-warning")
	}
	return append(args, command...)
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

func (a *Adapter) client(cfg engine.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", hostOrDefault(cfg), cfg.Port),
		Password: cfg.Password,
	})
}

// CreateDatabase/DropDatabase are unsupported — Redis has numbered
// logical DBs (SELECT 0-15) but no create/drop semantics (§3
// Engine.HasLogicalDatabases is false for redis/valkey).
func (a *Adapter) CreateDatabase(ctx context.Context, cfg engine.Config, db string) error {
	return unsupported(a.tag, "CreateDatabase")
}

func (a *Adapter) DropDatabase(ctx context.Context, cfg engine.Config, db string) error {
	return unsupported(a.tag, "DropDatabase")
}

func unsupported(tag enum.Engine, op string) error {
	return errs.New(errs.KindUnsupportedOperation, fmt.Sprintf("%s does not support %s", tag, op)).
		WithRemediation("redis/valkey use numbered logical databases, not named ones")
}

func (a *Adapter) ListDatabases(ctx context.Context, cfg engine.Config) ([]string, error) {
	client := a.client(cfg)
	defer client.Close()

	info, err := client.ConfigGet(ctx, "databases").Result()
	if err != nil {
		return nil, err
	}
	count := 16
	if raw, ok := info["databases"]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			count = n
		}
	}

	names := make([]string, count)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return names, nil
}

func (a *Adapter) RunScript(ctx context.Context, cfg engine.Config, opts engine.RunScriptOptions) error {
	if (opts.File == "") == (opts.SQL == "") {
		return errs.New(errs.KindPreconditionFailed, "exactly one of file or sql is required")
	}

	var content string
	if opts.File != "" {
		raw, err := os.ReadFile(opts.File)
		if err != nil {
			return err
		}
		content = string(raw)
	} else {
		content = opts.SQL
	}

	args := a.cliArgs(cfg, "--pipe")
	res, err := clibase.Run(ctx, a.bin(cfg, a.cliName), args, nil, content)
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("%s --pipe exited %d: %s", a.cliName, res.Code, res.Stderr)
	}
	return nil
}

func (a *Adapter) ExecuteQuery(ctx context.Context, cfg engine.Config, query string, opts engine.QueryOptions) (engine.QueryResult, error) {
	host := opts.Host
	if host == "" {
		host = hostOrDefault(cfg)
	}
	password := opts.Password
	if password == "" {
		password = cfg.Password
	}

	args := []string{"-h", host, "-p", strconv.Itoa(cfg.Port)}
	if password != "" {
		args = append(args, "-a", password, "--no-auth-warning")
	}
	args = append(args, strings.Fields(query)...)

	res, err := clibase.Run(ctx, a.bin(cfg, a.cliName), args, nil, "")
	if err != nil {
		return engine.QueryResult{}, err
	}
	if res.Code != 0 {
		return engine.QueryResult{}, fmt.Errorf("%s exited %d: %s", a.cliName, res.Code, res.Stderr)
	}

	var rows [][]string
	for _, line := range splitNonEmptyLines(res.Stdout) {
		rows = append(rows, []string{line})
	}
	return engine.QueryResult{Columns: []string{"reply"}, Rows: rows}, nil
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

// Backup takes either an RDB snapshot or a line-oriented text dump,
// per §4.9's format-dependent start-state precondition: RDB copies the
// on-disk snapshot left by the last shutdown and so requires the
// container be stopped, while text reads live data through the client
// and requires the container be running. opts.Format defaults to RDB.
func (a *Adapter) Backup(ctx context.Context, cfg engine.Config, outputPath string, opts engine.BackupOptions) (engine.BackupResult, error) {
	format := opts.Format
	if format == "" {
		format = enum.FormatRedisRDB
	}

	switch format {
	case enum.FormatRedisText:
		if !a.live(ctx, cfg) {
			return engine.BackupResult{}, errs.New(errs.KindPreconditionFailed, "text format backup requires the container be running").
				WithRemediation("start the container, then backup with the text format")
		}
		return a.backupText(ctx, cfg, outputPath)
	case enum.FormatRedisRDB:
		if a.live(ctx, cfg) {
			return engine.BackupResult{}, errs.New(errs.KindPreconditionFailed, "RDB format backup requires the container be stopped").
				WithRemediation("stop the container, then backup with the RDB format")
		}
		return a.backupRDB(cfg, outputPath)
	default:
		return engine.BackupResult{}, errs.New(errs.KindUnsupportedOperation, "unsupported redis backup format: "+string(format))
	}
}

// live reports whether the server answers a PING, the precondition
// check for operations that need a live client connection rather than
// the PID-file-based IsRunning.
func (a *Adapter) live(ctx context.Context, cfg engine.Config) bool {
	client := a.client(cfg)
	defer client.Close()
	return client.Ping(ctx).Err() == nil
}

func (a *Adapter) backupRDB(cfg engine.Config, outputPath string) (engine.BackupResult, error) {
	if err := copyFile(a.rdbPath(cfg), outputPath); err != nil {
		return engine.BackupResult{}, err
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return engine.BackupResult{}, err
	}
	return engine.BackupResult{Path: outputPath, Format: enum.FormatRedisRDB, Size: info.Size()}, nil
}

// textDumpHeader marks a text-format dump so DetectBackupFormat can
// tell it apart from an RDB snapshot or a foreign engine's dump.
const textDumpHeader = "# spindb redis text dump"

// backupText scans every key live and writes one reconstructing command
// per line (quoted, one token per field), restorable via RunScript's
// --pipe mode.
func (a *Adapter) backupText(ctx context.Context, cfg engine.Config, outputPath string) (engine.BackupResult, error) {
	client := a.client(cfg)
	defer client.Close()

	f, err := os.Create(outputPath)
	if err != nil {
		return engine.BackupResult{}, err
	}
	if _, err := f.WriteString(textDumpHeader + "\n"); err != nil {
		f.Close()
		return engine.BackupResult{}, err
	}

	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, "*", 100).Result()
		if err != nil {
			f.Close()
			return engine.BackupResult{}, errs.Wrap(errs.KindPreconditionFailed, "scanning keys", err)
		}
		for _, key := range keys {
			line, err := a.textLine(ctx, client, key)
			if err != nil {
				f.Close()
				return engine.BackupResult{}, err
			}
			if line != "" {
				if _, err := f.WriteString(line + "\n"); err != nil {
					f.Close()
					return engine.BackupResult{}, err
				}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if err := f.Close(); err != nil {
		return engine.BackupResult{}, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return engine.BackupResult{}, err
	}
	return engine.BackupResult{Path: outputPath, Format: enum.FormatRedisText, Size: info.Size()}, nil
}

// textLine renders key's current value as a command line. Only the
// common types are covered; anything else is recorded as a skip
// comment rather than failing the whole dump.
func (a *Adapter) textLine(ctx context.Context, client *redis.Client, key string) (string, error) {
	typ, err := client.Type(ctx, key).Result()
	if err != nil {
		return "", errs.Wrap(errs.KindPreconditionFailed, "reading type of "+key, err)
	}
	switch typ {
	case "string":
		val, err := client.Get(ctx, key).Result()
		if err != nil {
			return "", err
		}
		return quoteCmd("SET", key, val), nil
	case "hash":
		fields, err := client.HGetAll(ctx, key).Result()
		if err != nil {
			return "", err
		}
		args := []string{"HSET", key}
		for field, val := range fields {
			args = append(args, field, val)
		}
		return quoteCmd(args...), nil
	case "list":
		vals, err := client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return "", err
		}
		return quoteCmd(append([]string{"RPUSH", key}, vals...)...), nil
	case "set":
		vals, err := client.SMembers(ctx, key).Result()
		if err != nil {
			return "", err
		}
		return quoteCmd(append([]string{"SADD", key}, vals...)...), nil
	case "zset":
		vals, err := client.ZRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil {
			return "", err
		}
		args := []string{"ZADD", key}
		for _, z := range vals {
			args = append(args, strconv.FormatFloat(z.Score, 'f', -1, 64), fmt.Sprint(z.Member))
		}
		return quoteCmd(args...), nil
	default:
		return "# skipped " + key + " (unsupported type " + typ + ")", nil
	}
}

func quoteCmd(args ...string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = strconv.Quote(arg)
	}
	return strings.Join(quoted, " ")
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
	info.RestoreCommand = "copy+restart"
	return info, nil
}

// Restore dispatches on the detected format: an RDB snapshot can only
// be loaded at server startup, so it requires the container be stopped
// (§8 scenario 2's "stop before mutating on-disk state" rule) and is
// copied into place for the caller to start afterward; a text dump is
// replayed against the live server and so requires the container be
// running.
func (a *Adapter) Restore(ctx context.Context, cfg engine.Config, path string, opts engine.RestoreOptions) (engine.RestoreResult, error) {
	detected, err := a.DetectBackupFormat(ctx, path)
	if err != nil {
		return engine.RestoreResult{}, err
	}

	switch detected.Format {
	case enum.FormatRedisRDB:
		running, err := a.IsRunning(ctx, cfg)
		if err != nil {
			return engine.RestoreResult{}, err
		}
		if running {
			return engine.RestoreResult{}, errs.New(errs.KindPreconditionFailed, "container must be stopped before restoring an RDB snapshot").
				WithRemediation("stop the container, then restore")
		}
		if err := copyFile(path, a.rdbPath(cfg)); err != nil {
			return engine.RestoreResult{}, err
		}
		return engine.RestoreResult{Format: detected.Format}, nil

	case enum.FormatRedisText:
		if !a.live(ctx, cfg) {
			return engine.RestoreResult{}, errs.New(errs.KindPreconditionFailed, "container must be running before restoring a text dump").
				WithRemediation("start the container, then restore")
		}
		return a.restoreText(ctx, cfg, path)

	default:
		return engine.RestoreResult{}, errs.New(errs.KindWrongEngineDump,
			"dump format "+string(detected.Format)+" does not match "+string(a.tag)).
			WithRemediation("restore into a container matching the dump's engine instead")
	}
}

// restoreText replays a text dump's command lines against the live
// server via RunScript's --pipe mode.
func (a *Adapter) restoreText(ctx context.Context, cfg engine.Config, path string) (engine.RestoreResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return engine.RestoreResult{}, err
	}
	if err := a.RunScript(ctx, cfg, engine.RunScriptOptions{SQL: string(raw)}); err != nil {
		return engine.RestoreResult{}, err
	}
	return engine.RestoreResult{Format: enum.FormatRedisText}, nil
}

func (a *Adapter) DumpFromConnectionString(ctx context.Context, rawURL, outputPath string) error {
	return errs.New(errs.KindUnsupportedOperation,
		"dumping redis from an arbitrary connection string is not supported — RDB snapshots require SAVE against the live server")
}

func (a *Adapter) GetConnectionString(cfg engine.Config, database string) string {
	scheme := "redis"
	if a.tag == enum.EngineValkey {
		scheme = "valkey"
	}
	if cfg.Password != "" {
		return fmt.Sprintf("%s://:%s@%s:%d", scheme, cfg.Password, hostOrDefault(cfg), cfg.Port)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, hostOrDefault(cfg), cfg.Port)
}

func (a *Adapter) GetDatabaseSize(ctx context.Context, cfg engine.Config) (int64, bool, error) {
	info, err := os.Stat(a.rdbPath(cfg))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return info.Size(), true, nil
}

func (a *Adapter) CreateUser(ctx context.Context, cfg engine.Config, opts engine.CreateUserOptions) (engine.UserCredentials, error) {
	return engine.UserCredentials{}, unsupported(a.tag, "CreateUser")
}
