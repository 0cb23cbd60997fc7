// Package httpfamily implements the engine.Adapter contract for the
// four HTTP-administered engines (§4.9): ClickHouse, Meilisearch,
// CouchDB, and QuestDB. All four expose their entire admin surface
// (health, database/index create-drop-list, query execution) over
// plain HTTP, so this single adapter parametrizes the small per-engine
// differences (URL shape, logical-database terminology)
// instead of repeating near-identical HTTP plumbing four times.
package httpfamily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
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

const requestTimeout = 30 * time.Second

// Adapter implements engine.Adapter for clickhouse, meilisearch,
// couchdb and questdb, dispatching the small per-engine HTTP
// differences through the tag switch in each method below.
type Adapter struct {
	tag            enum.Engine
	serverBinary   string
	httpClient     *http.Client
	hasLogicalDBs  bool
}

// NewClickHouse builds the ClickHouse adapter.
func NewClickHouse() *Adapter {
	return &Adapter{tag: enum.EngineClickHouse, serverBinary: "clickhouse", hasLogicalDBs: true, httpClient: &http.Client{Timeout: requestTimeout}}
}

// NewMeilisearch builds the Meilisearch adapter (indexes stand in for
// "databases").
func NewMeilisearch() *Adapter {
	return &Adapter{tag: enum.EngineMeilisearch, serverBinary: "meilisearch", hasLogicalDBs: true, httpClient: &http.Client{Timeout: requestTimeout}}
}

// NewCouchDB builds the CouchDB adapter.
func NewCouchDB() *Adapter {
	return &Adapter{tag: enum.EngineCouchDB, serverBinary: "couchdb", hasLogicalDBs: true, httpClient: &http.Client{Timeout: requestTimeout}}
}

// NewQuestDB builds the QuestDB adapter. QuestDB has no logical
// databases — a single instance holds one flat table namespace (§3).
func NewQuestDB() *Adapter {
	return &Adapter{tag: enum.EngineQuestDB, serverBinary: "questdb", hasLogicalDBs: false, httpClient: &http.Client{Timeout: requestTimeout}}
}

func (a *Adapter) Engine() enum.Engine { return a.tag }

func (a *Adapter) bin(cfg engine.Config, name string) string {
	return filepath.Join(cfg.InstallDir, "bin", name+platform.Current().ExecExt())
}

func (a *Adapter) baseURL(cfg engine.Config) string {
	return fmt.Sprintf("http://%s:%d", hostOrDefault(cfg), cfg.Port)
}

func hostOrDefault(cfg engine.Config) string {
	if cfg.Host != "" {
		return cfg.Host
	}
	return "127.0.0.1"
}

func (a *Adapter) InitDataDir(ctx context.Context, cfg engine.Config, opts engine.InitDataDirOptions) error {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return errs.Wrap(errs.KindPreconditionFailed, "creating data directory", err)
	}
	return nil
}

func (a *Adapter) startSpec(cfg engine.Config) process.StartSpec {
	argv := a.serverArgv(cfg)
	return process.StartSpec{
		Engine: string(a.tag), Name: cfg.Name, Argv: argv,
		Dir: cfg.DataDir, LogFile: cfg.LogFile, PIDFile: cfg.PIDFile,
		Probe: func(ctx context.Context) (bool, error) {
			return a.probe(ctx, cfg)
		},
	}
}

func (a *Adapter) serverArgv(cfg engine.Config) []string {
	port := strconv.Itoa(cfg.Port)
	switch a.tag {
	case enum.EngineClickHouse:
		return []string{a.bin(cfg, a.serverBinary), "server",
			"--", "--path", cfg.DataDir, "--http_port", port, "--listen_host", hostOrDefault(cfg)}
	case enum.EngineMeilisearch:
		return []string{a.bin(cfg, a.serverBinary),
			"--db-path", cfg.DataDir, "--http-addr", hostOrDefault(cfg) + ":" + port, "--no-analytics"}
	case enum.EngineCouchDB:
		return []string{a.bin(cfg, a.serverBinary),
			"-couch_ini", filepath.Join(cfg.DataDir, "local.ini")}
	default: // questdb
		return []string{a.bin(cfg, a.serverBinary), "start", "-d", cfg.DataDir}
	}
}

func (a *Adapter) probe(ctx context.Context, cfg engine.Config) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL(cfg)+a.healthPath(), nil)
	if err != nil {
		return false, nil
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func (a *Adapter) healthPath() string {
	switch a.tag {
	case enum.EngineClickHouse:
		return "/ping"
	case enum.EngineMeilisearch:
		return "/health"
	case enum.EngineCouchDB:
		return "/"
	default: // questdb
		return "/status"
	}
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

func (a *Adapter) httpDo(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func (a *Adapter) CreateDatabase(ctx context.Context, cfg engine.Config, db string) error {
	if !a.hasLogicalDBs {
		return unsupported(a.tag, "CreateDatabase")
	}
	if err := engine.ValidateDatabaseName(db); err != nil {
		return err
	}

	base := a.baseURL(cfg)
	switch a.tag {
	case enum.EngineClickHouse:
		status, respBody, err := a.httpDo(ctx, http.MethodPost, base+"/?query="+url.QueryEscape("CREATE DATABASE "+quoteIdent(db)), nil)
		return check2xx(status, respBody, err)
	case enum.EngineMeilisearch:
		payload, _ := json.Marshal(map[string]string{"uid": db})
		status, respBody, err := a.httpDo(ctx, http.MethodPost, base+"/indexes", payload)
		return check2xx(status, respBody, err)
	case enum.EngineCouchDB:
		status, respBody, err := a.httpDo(ctx, http.MethodPut, base+"/"+db, nil)
		return check2xx(status, respBody, err)
	default:
		return unsupported(a.tag, "CreateDatabase")
	}
}

func (a *Adapter) DropDatabase(ctx context.Context, cfg engine.Config, db string) error {
	if !a.hasLogicalDBs {
		return unsupported(a.tag, "DropDatabase")
	}
	if err := engine.ValidateDatabaseName(db); err != nil {
		return err
	}

	base := a.baseURL(cfg)
	switch a.tag {
	case enum.EngineClickHouse:
		status, respBody, err := a.httpDo(ctx, http.MethodPost, base+"/?query="+url.QueryEscape("DROP DATABASE IF EXISTS "+quoteIdent(db)), nil)
		return check2xx(status, respBody, err)
	case enum.EngineMeilisearch:
		status, respBody, err := a.httpDo(ctx, http.MethodDelete, base+"/indexes/"+db, nil)
		return check2xx(status, respBody, err)
	case enum.EngineCouchDB:
		status, respBody, err := a.httpDo(ctx, http.MethodDelete, base+"/"+db, nil)
		return check2xx(status, respBody, err)
	default:
		return unsupported(a.tag, "DropDatabase")
	}
}

func unsupported(tag enum.Engine, op string) error {
	return errs.New(errs.KindUnsupportedOperation, fmt.Sprintf("%s does not support %s", tag, op))
}

func check2xx(status int, body []byte, err error) error {
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("http status %d: %s", status, string(body))
	}
	return nil
}

func (a *Adapter) ListDatabases(ctx context.Context, cfg engine.Config) ([]string, error) {
	if !a.hasLogicalDBs {
		return nil, unsupported(a.tag, "ListDatabases")
	}

	base := a.baseURL(cfg)
	switch a.tag {
	case enum.EngineClickHouse:
		status, body, err := a.httpDo(ctx, http.MethodPost, base+"/?query="+url.QueryEscape("SHOW DATABASES"), nil)
		if err := check2xx(status, body, err); err != nil {
			return nil, err
		}
		return filterSystem(splitNonEmptyLines(string(body)), clickhouseSystemDBs), nil
	case enum.EngineMeilisearch:
		status, body, err := a.httpDo(ctx, http.MethodGet, base+"/indexes", nil)
		if err := check2xx(status, body, err); err != nil {
			return nil, err
		}
		return parseMeilisearchIndexes(body)
	case enum.EngineCouchDB:
		status, body, err := a.httpDo(ctx, http.MethodGet, base+"/_all_dbs", nil)
		if err := check2xx(status, body, err); err != nil {
			return nil, err
		}
		var names []string
		if err := json.Unmarshal(body, &names); err != nil {
			return nil, err
		}
		return filterSystem(names, couchSystemDBs), nil
	default:
		return nil, unsupported(a.tag, "ListDatabases")
	}
}

var clickhouseSystemDBs = map[string]bool{"system": true, "default": true, "INFORMATION_SCHEMA": true, "information_schema": true}
var couchSystemDBs = map[string]bool{"_users": true, "_replicator": true, "_global_changes": true}

func filterSystem(names []string, system map[string]bool) []string {
	var out []string
	for _, n := range names {
		if !system[n] {
			out = append(out, n)
		}
	}
	return out
}

func parseMeilisearchIndexes(body []byte) ([]string, error) {
	var parsed struct {
		Results []struct {
			UID string `json:"uid"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	names := make([]string, len(parsed.Results))
	for i, r := range parsed.Results {
		names[i] = r.UID
	}
	return names, nil
}

func (a *Adapter) RunScript(ctx context.Context, cfg engine.Config, opts engine.RunScriptOptions) error {
	if (opts.File == "") == (opts.SQL == "") {
		return errs.New(errs.KindPreconditionFailed, "exactly one of file or sql is required")
	}
	query := opts.SQL
	if opts.File != "" {
		content, err := os.ReadFile(opts.File)
		if err != nil {
			return err
		}
		query = string(content)
	}

	_, err := a.ExecuteQuery(ctx, cfg, query, engine.QueryOptions{Database: opts.Database})
	return err
}

func (a *Adapter) ExecuteQuery(ctx context.Context, cfg engine.Config, query string, opts engine.QueryOptions) (engine.QueryResult, error) {
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}

	switch a.tag {
	case enum.EngineClickHouse:
		base := a.baseURL(cfg)
		q := query
		if database != "" {
			base += "/?database=" + url.QueryEscape(database)
		} else {
			base += "/?"
		}
		status, body, err := a.httpDo(ctx, http.MethodPost, base+"&query="+url.QueryEscape(q+" FORMAT TSV"), nil)
		if err := check2xx(status, body, err); err != nil {
			return engine.QueryResult{}, err
		}
		return parseTSV(string(body)), nil
	case enum.EngineQuestDB:
		base := a.baseURL(cfg) + "/exec?query=" + url.QueryEscape(query)
		status, body, err := a.httpDo(ctx, http.MethodGet, base, nil)
		if err := check2xx(status, body, err); err != nil {
			return engine.QueryResult{}, err
		}
		return parseQuestDBResult(body)
	default:
		return engine.QueryResult{}, unsupported(a.tag, "ExecuteQuery")
	}
}

func parseTSV(output string) engine.QueryResult {
	lines := splitNonEmptyLines(output)
	if len(lines) == 0 {
		return engine.QueryResult{}
	}
	var rows [][]string
	for _, line := range lines {
		rows = append(rows, strings.Split(line, "\t"))
	}
	return engine.QueryResult{Rows: rows}
}

func parseQuestDBResult(body []byte) (engine.QueryResult, error) {
	var parsed struct {
		Columns []struct {
			Name string `json:"name"`
		} `json:"columns"`
		Dataset [][]interface{} `json:"dataset"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return engine.QueryResult{}, err
	}

	columns := make([]string, len(parsed.Columns))
	for i, c := range parsed.Columns {
		columns[i] = c.Name
	}

	rows := make([][]string, len(parsed.Dataset))
	for i, row := range parsed.Dataset {
		strRow := make([]string, len(row))
		for j, v := range row {
			strRow[j] = fmt.Sprintf("%v", v)
		}
		rows[i] = strRow
	}
	return engine.QueryResult{Columns: columns, Rows: rows}, nil
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

func quoteIdent(name string) string {
	return "`" + name + "`"
}

func (a *Adapter) Backup(ctx context.Context, cfg engine.Config, outputPath string, opts engine.BackupOptions) (engine.BackupResult, error) {
	var format enum.BackupFormat
	switch a.tag {
	case enum.EngineClickHouse:
		format = enum.FormatClickHouseNative
		database := opts.Database
		if database == "" {
			database = cfg.Database
		}
		args := []string{"client", "--host", hostOrDefault(cfg), "--port", clickhouseNativePort(cfg.Port),
			"--query", "SELECT * FROM " + database + ".* FORMAT Native"}
		res, err := clibase.RunToFile(ctx, a.bin(cfg, a.serverBinary), args, nil, outputPath)
		if err != nil {
			return engine.BackupResult{}, err
		}
		if res.Code != 0 {
			return engine.BackupResult{}, fmt.Errorf("clickhouse client exited %d: %s", res.Code, res.Stderr)
		}
	default:
		// Meilisearch/CouchDB/QuestDB: snapshot the data directory — all
		// three are file-backed stores with no portable logical export
		// format simpler than their on-disk state.
		if err := tarDataDir(cfg.DataDir, outputPath); err != nil {
			return engine.BackupResult{}, err
		}
		format = enum.FormatUnknown
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return engine.BackupResult{}, err
	}
	return engine.BackupResult{Path: outputPath, Format: format, Size: info.Size()}, nil
}

func clickhouseNativePort(httpPort int) string {
	return strconv.Itoa(httpPort + 1000)
}

func tarDataDir(dataDir, outputPath string) error {
	res, err := clibase.RunToFile(context.Background(), "tar", []string{"-czf", "-", "-C", dataDir, "."}, nil, outputPath)
	if err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("tar exited %d: %s", res.Code, res.Stderr)
	}
	return nil
}

func (a *Adapter) DetectBackupFormat(ctx context.Context, path string) (engine.FormatInfo, error) {
	info, err := engine.DetectBackupFormat(path)
	if err != nil {
		return engine.FormatInfo{}, err
	}
	info.RestoreCommand = "restore-in-place"
	return info, nil
}

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
	return errs.New(errs.KindUnsupportedOperation,
		fmt.Sprintf("%s does not support dumping from an arbitrary connection string", a.tag))
}

func (a *Adapter) GetConnectionString(cfg engine.Config, database string) string {
	if database == "" {
		database = cfg.Database
	}
	if database == "" {
		return a.baseURL(cfg)
	}
	return a.baseURL(cfg) + "/" + database
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
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func (a *Adapter) CreateUser(ctx context.Context, cfg engine.Config, opts engine.CreateUserOptions) (engine.UserCredentials, error) {
	return engine.UserCredentials{}, unsupported(a.tag, "CreateUser")
}
