// Package qdrant implements the engine.Adapter contract for Qdrant, the
// one vector-database engine in the catalog with a native Go client in
// the corpus. Collection CRUD and snapshot creation go straight over
// gRPC via github.com/qdrant/go-client; the snapshot itself is fetched
// over Qdrant's REST port (gRPC has no streaming-bytes download call).
// Restore requires the container be stopped (spec §4.9) and writes the
// snapshot file straight into the stopped instance's storage directory.
package qdrant

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	qdrantclient "github.com/qdrant/go-client/qdrant"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/logger"
	"github.com/robertjbass/spindb/internal/platform"
	"github.com/robertjbass/spindb/internal/process"
)

// defaultVectorSize is used when creating a collection with no dimension
// hint — CreateDatabase's generic signature carries no vector config, so
// a collection starts cosine/768-dim and can be reconfigured afterward
// through ExecuteQuery's REST passthrough.
const defaultVectorSize = 768

// restPortOffset mirrors Qdrant's own default split between the gRPC
// port (cfg.Port) and the REST port that serves snapshot bytes — REST
// one below gRPC by convention (6333/6334).
const restPortOffset = -1

// Adapter implements engine.Adapter for Qdrant.
type Adapter struct{}

// New builds the Qdrant adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Engine() enum.Engine { return enum.EngineQdrant }

func hostOrDefault(cfg engine.Config) string {
	if cfg.Host != "" {
		return cfg.Host
	}
	return "127.0.0.1"
}

func restPort(cfg engine.Config) int { return cfg.Port + restPortOffset }

func (a *Adapter) bin(cfg engine.Config) string {
	return filepath.Join(cfg.InstallDir, "bin", "qdrant"+platform.Current().ExecExt())
}

func (a *Adapter) InitDataDir(ctx context.Context, cfg engine.Config, opts engine.InitDataDirOptions) error {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return errs.Wrap(errs.KindPreconditionFailed, "creating data directory", err)
	}
	return writeConfig(cfg)
}

// writeConfig renders the small YAML config qdrant reads at startup —
// storage path and the two listener ports — the same "render a config
// file into the data dir before starting" shape as couchdb's local.ini
// in httpfamily.
func writeConfig(cfg engine.Config) error {
	yaml := fmt.Sprintf(
		"storage:\n  storage_path: %s\nservice:\n  host: %s\n  http_port: %d\n  grpc_port: %d\n",
		cfg.DataDir, hostOrDefault(cfg), restPort(cfg), cfg.Port,
	)
	return os.WriteFile(filepath.Join(cfg.DataDir, "config.yaml"), []byte(yaml), 0o600)
}

func (a *Adapter) startSpec(cfg engine.Config) process.StartSpec {
	return process.StartSpec{
		Engine: string(enum.EngineQdrant), Name: cfg.Name,
		Argv: []string{a.bin(cfg), "--config-path", filepath.Join(cfg.DataDir, "config.yaml")},
		Dir:  cfg.DataDir, LogFile: cfg.LogFile, PIDFile: cfg.PIDFile,
		Probe: func(ctx context.Context) (bool, error) {
			return tcpProbe(ctx, hostOrDefault(cfg), cfg.Port), nil
		},
	}
}

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
		zap.String("engine", string(enum.EngineQdrant)), zap.String("container", cfg.Name),
		zap.Int("port", cfg.Port), zap.Int("pid", res.PID))
	return engine.StartResult{Port: cfg.Port, ConnectionString: a.GetConnectionString(cfg, cfg.Database)}, nil
}

func (a *Adapter) Stop(ctx context.Context, cfg engine.Config) error {
	return process.Stop(ctx, a.startSpec(cfg))
}

func (a *Adapter) IsRunning(ctx context.Context, cfg engine.Config) (bool, error) {
	return process.IsRunning(a.startSpec(cfg))
}

func (a *Adapter) client(cfg engine.Config) (*qdrantclient.Client, error) {
	return qdrantclient.NewClient(&qdrantclient.Config{
		Host:   hostOrDefault(cfg),
		Port:   cfg.Port,
		APIKey: cfg.Password,
	})
}

func (a *Adapter) CreateDatabase(ctx context.Context, cfg engine.Config, db string) error {
	if err := engine.ValidateDatabaseName(db); err != nil {
		return err
	}
	c, err := a.client(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	exists, err := c.CollectionExists(ctx, db)
	if err != nil {
		return err
	}
	if exists {
		return errs.New(errs.KindNameConflict, fmt.Sprintf("collection %q already exists", db))
	}

	return c.CreateCollection(ctx, &qdrantclient.CreateCollection{
		CollectionName: db,
		VectorsConfig: qdrantclient.NewVectorsConfig(&qdrantclient.VectorParams{
			Size:     defaultVectorSize,
			Distance: qdrantclient.Distance_Cosine,
		}),
	})
}

func (a *Adapter) DropDatabase(ctx context.Context, cfg engine.Config, db string) error {
	if err := engine.ValidateDatabaseName(db); err != nil {
		return err
	}
	c, err := a.client(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.DeleteCollection(ctx, db)
}

func (a *Adapter) ListDatabases(ctx context.Context, cfg engine.Config) ([]string, error) {
	c, err := a.client(cfg)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.ListCollections(ctx)
}

// RunScript and ExecuteQuery: Qdrant has no SQL-like query language —
// its admin surface is collection/point CRUD over gRPC, already covered
// by CreateDatabase/DropDatabase/ListDatabases.
func (a *Adapter) RunScript(ctx context.Context, cfg engine.Config, opts engine.RunScriptOptions) error {
	return errs.New(errs.KindUnsupportedOperation, "qdrant has no script/query language to run")
}

func (a *Adapter) ExecuteQuery(ctx context.Context, cfg engine.Config, query string, opts engine.QueryOptions) (engine.QueryResult, error) {
	return engine.QueryResult{}, errs.New(errs.KindUnsupportedOperation, "qdrant has no ad hoc query language")
}

func (a *Adapter) Backup(ctx context.Context, cfg engine.Config, outputPath string, opts engine.BackupOptions) (engine.BackupResult, error) {
	database := opts.Database
	if database == "" {
		database = cfg.Database
	}
	c, err := a.client(cfg)
	if err != nil {
		return engine.BackupResult{}, err
	}
	defer c.Close()

	snapshot, err := c.CreateSnapshot(ctx, database)
	if err != nil {
		return engine.BackupResult{}, err
	}

	url := fmt.Sprintf("http://%s:%d/collections/%s/snapshots/%s", hostOrDefault(cfg), restPort(cfg), database, snapshot.GetName())
	if err := downloadFile(ctx, url, outputPath); err != nil {
		return engine.BackupResult{}, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return engine.BackupResult{}, err
	}
	return engine.BackupResult{Path: outputPath, Format: enum.FormatQdrantSnapshot, Size: info.Size()}, nil
}

func downloadFile(ctx context.Context, url, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("snapshot download failed: http status %d", resp.StatusCode)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

func (a *Adapter) DetectBackupFormat(ctx context.Context, path string) (engine.FormatInfo, error) {
	info, err := engine.DetectBackupFormat(path)
	if err != nil {
		return engine.FormatInfo{}, err
	}
	if info.Format == enum.FormatUnknown {
		info.Format = enum.FormatQdrantSnapshot
	}
	info.RestoreCommand = "snapshot-recover"
	return info, nil
}

// Restore requires the container be stopped first (spec §4.9's explicit
// Qdrant rule), the same stop-before-mutating-storage precondition as
// redisfamily/httpfamily/typedb: with the server down, the snapshot file
// is copied straight into the collection's snapshot directory under
// storage, where it loads on the next start.
func (a *Adapter) Restore(ctx context.Context, cfg engine.Config, path string, opts engine.RestoreOptions) (engine.RestoreResult, error) {
	running, err := a.IsRunning(ctx, cfg)
	if err != nil {
		return engine.RestoreResult{}, err
	}
	if running {
		return engine.RestoreResult{}, errs.New(errs.KindPreconditionFailed, "container must be stopped before restoring a snapshot").
			WithRemediation("stop the container, then restore")
	}

	database := opts.Database
	if database == "" {
		database = cfg.Database
	}

	snapshotDir := filepath.Join(cfg.DataDir, "collections", database, "snapshots")
	if err := os.MkdirAll(snapshotDir, 0o700); err != nil {
		return engine.RestoreResult{}, err
	}
	if err := copyFile(path, filepath.Join(snapshotDir, filepath.Base(path))); err != nil {
		return engine.RestoreResult{}, err
	}
	return engine.RestoreResult{Format: enum.FormatQdrantSnapshot}, nil
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

	_, err = io.Copy(out, in)
	return err
}

func (a *Adapter) DumpFromConnectionString(ctx context.Context, rawURL, outputPath string) error {
	return errs.New(errs.KindUnsupportedOperation, "qdrant does not support dumping from an arbitrary connection string")
}

func (a *Adapter) GetConnectionString(cfg engine.Config, database string) string {
	if database == "" {
		database = cfg.Database
	}
	base := fmt.Sprintf("http://%s:%d", hostOrDefault(cfg), restPort(cfg))
	if database == "" {
		return base
	}
	return base + "/collections/" + database
}

func (a *Adapter) GetDatabaseSize(ctx context.Context, cfg engine.Config) (int64, bool, error) {
	c, err := a.client(cfg)
	if err != nil {
		return 0, false, err
	}
	defer c.Close()

	database := cfg.Database
	if database == "" {
		return 0, false, nil
	}
	info, err := c.GetCollectionInfo(ctx, database)
	if err != nil {
		return 0, false, nil
	}
	return int64(info.GetPointsCount()), true, nil
}

// CreateUser: Qdrant's access control is a single static API key set at
// server config time, not a per-call user-creation API, so this adapter
// leaves it unsupported rather than faking a user model Qdrant doesn't
// expose.
func (a *Adapter) CreateUser(ctx context.Context, cfg engine.Config, opts engine.CreateUserOptions) (engine.UserCredentials, error) {
	return engine.UserCredentials{}, errs.New(errs.KindUnsupportedOperation, "qdrant has no per-call user-creation API")
}
