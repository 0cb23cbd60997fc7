package pull

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/container"
	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/paths"
	"github.com/robertjbass/spindb/internal/store"
)

// fakeAdapter stubs the slice of engine.Adapter the Pull Pipeline
// actually calls; every other method is a no-op satisfying the
// interface.
type fakeAdapter struct {
	running      bool
	dumpErr      error
	dumpWrote    string
	createDBErr  error
	createdDBs   []string
	restoreErr   error
	restoredFrom string
}

func (f *fakeAdapter) Engine() enum.Engine { return enum.EnginePostgreSQL }
func (f *fakeAdapter) InitDataDir(ctx context.Context, cfg engine.Config, opts engine.InitDataDirOptions) error {
	return nil
}
func (f *fakeAdapter) Start(ctx context.Context, cfg engine.Config) (engine.StartResult, error) {
	return engine.StartResult{}, nil
}
func (f *fakeAdapter) Stop(ctx context.Context, cfg engine.Config) error { return nil }
func (f *fakeAdapter) IsRunning(ctx context.Context, cfg engine.Config) (bool, error) {
	return f.running, nil
}
func (f *fakeAdapter) CreateDatabase(ctx context.Context, cfg engine.Config, db string) error {
	f.createdDBs = append(f.createdDBs, db)
	return f.createDBErr
}
func (f *fakeAdapter) DropDatabase(ctx context.Context, cfg engine.Config, db string) error {
	return nil
}
func (f *fakeAdapter) ListDatabases(ctx context.Context, cfg engine.Config) ([]string, error) {
	return nil, nil
}
func (f *fakeAdapter) RunScript(ctx context.Context, cfg engine.Config, opts engine.RunScriptOptions) error {
	return nil
}
func (f *fakeAdapter) ExecuteQuery(ctx context.Context, cfg engine.Config, query string, opts engine.QueryOptions) (engine.QueryResult, error) {
	return engine.QueryResult{}, nil
}
func (f *fakeAdapter) Backup(ctx context.Context, cfg engine.Config, outputPath string, opts engine.BackupOptions) (engine.BackupResult, error) {
	return engine.BackupResult{}, nil
}
func (f *fakeAdapter) DetectBackupFormat(ctx context.Context, path string) (engine.FormatInfo, error) {
	return engine.FormatInfo{}, nil
}
func (f *fakeAdapter) Restore(ctx context.Context, cfg engine.Config, path string, opts engine.RestoreOptions) (engine.RestoreResult, error) {
	f.restoredFrom = path
	return engine.RestoreResult{}, f.restoreErr
}
func (f *fakeAdapter) DumpFromConnectionString(ctx context.Context, rawURL, outputPath string) error {
	if f.dumpErr != nil {
		return f.dumpErr
	}
	f.dumpWrote = outputPath
	return os.WriteFile(outputPath, []byte("dump-bytes"), 0o600)
}
func (f *fakeAdapter) GetConnectionString(cfg engine.Config, database string) string { return "" }
func (f *fakeAdapter) GetDatabaseSize(ctx context.Context, cfg engine.Config) (int64, bool, error) {
	return 0, false, nil
}
func (f *fakeAdapter) CreateUser(ctx context.Context, cfg engine.Config, opts engine.CreateUserOptions) (engine.UserCredentials, error) {
	return engine.UserCredentials{}, nil
}

func newTestPipeline(t *testing.T, adapter *fakeAdapter) (*Pipeline, *container.Manager) {
	t.Helper()
	layout := paths.New(t.TempDir())
	require.NoError(t, layout.EnsureDirs())

	registry := engine.NewRegistry()
	registry.Register(enum.EnginePostgreSQL, func() (engine.Adapter, error) { return adapter, nil })

	mgr := container.New(layout, store.NewCatalogStore(layout.ContainersDir()), store.NewNameLocker(), registry)
	return New(mgr, registry), mgr
}

func TestRunDryRunDoesNotTouchAnything(t *testing.T) {
	adapter := &fakeAdapter{running: true}
	p, mgr := newTestPipeline(t, adapter)
	_, err := mgr.Create(container.CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432, Database: "app"})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), Options{Target: "db1", Mode: ModeReplace, SourceURL: "postgres://remote/app", Backup: true, DryRun: true})
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.NotEmpty(t, result.BackupName)
	assert.Empty(t, adapter.dumpWrote)
}

func TestRunRejectsWhenTargetNotRunning(t *testing.T) {
	adapter := &fakeAdapter{running: false}
	p, mgr := newTestPipeline(t, adapter)
	_, err := mgr.Create(container.CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432, Database: "app"})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), Options{Target: "db1", Mode: ModeReplace, SourceURL: "postgres://remote/app"})
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindPreconditionFailed, kind)
}

func TestRunReplaceWithoutBackupDumpsAndRestores(t *testing.T) {
	adapter := &fakeAdapter{running: true}
	p, mgr := newTestPipeline(t, adapter)
	_, err := mgr.Create(container.CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432, Database: "app"})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), Options{Target: "db1", Mode: ModeReplace, SourceURL: "postgres://remote/app", Backup: false})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, "app", result.TargetDatabase)
	assert.Empty(t, result.BackupName)
	assert.NotEmpty(t, adapter.restoredFrom)

	// temp dump file is cleaned up afterward
	_, statErr := os.Stat(adapter.dumpWrote)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunReplaceWithBackupClonesFirst(t *testing.T) {
	adapter := &fakeAdapter{running: true}
	p, mgr := newTestPipeline(t, adapter)
	rec, err := mgr.Create(container.CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432, Database: "app"})
	require.NoError(t, err)
	cfg := mgr.AdapterConfig(rec)
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o700))

	result, err := p.Run(context.Background(), Options{Target: "db1", Mode: ModeReplace, SourceURL: "postgres://remote/app", Backup: true})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	require.NotEmpty(t, result.BackupName)

	exists, err := mgr.Exists(result.BackupName)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunCloneIntoRequiresAs(t *testing.T) {
	adapter := &fakeAdapter{running: true}
	p, mgr := newTestPipeline(t, adapter)
	_, err := mgr.Create(container.CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432, Database: "app"})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), Options{Target: "db1", Mode: ModeCloneInto, SourceURL: "postgres://remote/app"})
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidName, kind)
}

func TestRunCloneIntoCreatesDatabaseAndRegistersIt(t *testing.T) {
	adapter := &fakeAdapter{running: true}
	p, mgr := newTestPipeline(t, adapter)
	_, err := mgr.Create(container.CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432, Database: "app"})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), Options{Target: "db1", Mode: ModeCloneInto, As: "imported", SourceURL: "postgres://remote/app"})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, "imported", result.TargetDatabase)
	assert.Contains(t, adapter.createdDBs, "imported")

	rec, err := mgr.GetConfig("db1")
	require.NoError(t, err)
	assert.Contains(t, rec.Databases, "imported")
}

func TestRunRollsBackCatalogWhenRestoreFails(t *testing.T) {
	adapter := &fakeAdapter{running: true, restoreErr: assert.AnError}
	p, mgr := newTestPipeline(t, adapter)
	_, err := mgr.Create(container.CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432, Database: "app"})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), Options{Target: "db1", Mode: ModeCloneInto, As: "imported", SourceURL: "postgres://remote/app"})
	require.Error(t, err)

	rec, err := mgr.GetConfig("db1")
	require.NoError(t, err)
	assert.NotContains(t, rec.Databases, "imported")
}
