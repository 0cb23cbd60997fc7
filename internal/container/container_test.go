package container

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/paths"
	"github.com/robertjbass/spindb/internal/store"
)

// fakeAdapter is a minimal engine.Adapter stub letting the Container
// Manager tests control IsRunning/Stop without spawning a real process.
type fakeAdapter struct {
	tag     enum.Engine
	running bool
	stopErr error
	stopped bool
}

func (f *fakeAdapter) Engine() enum.Engine {
	if f.tag != "" {
		return f.tag
	}
	return enum.EnginePostgreSQL
}
func (f *fakeAdapter) InitDataDir(ctx context.Context, cfg engine.Config, opts engine.InitDataDirOptions) error {
	return nil
}
func (f *fakeAdapter) Start(ctx context.Context, cfg engine.Config) (engine.StartResult, error) {
	return engine.StartResult{}, nil
}
func (f *fakeAdapter) Stop(ctx context.Context, cfg engine.Config) error {
	f.stopped = true
	f.running = false
	return f.stopErr
}
func (f *fakeAdapter) IsRunning(ctx context.Context, cfg engine.Config) (bool, error) {
	return f.running, nil
}
func (f *fakeAdapter) CreateDatabase(ctx context.Context, cfg engine.Config, db string) error {
	return nil
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
	return engine.RestoreResult{}, nil
}
func (f *fakeAdapter) DumpFromConnectionString(ctx context.Context, rawURL, outputPath string) error {
	return nil
}
func (f *fakeAdapter) GetConnectionString(cfg engine.Config, database string) string { return "" }
func (f *fakeAdapter) GetDatabaseSize(ctx context.Context, cfg engine.Config) (int64, bool, error) {
	return 0, false, nil
}
func (f *fakeAdapter) CreateUser(ctx context.Context, cfg engine.Config, opts engine.CreateUserOptions) (engine.UserCredentials, error) {
	return engine.UserCredentials{}, nil
}

func newTestManager(t *testing.T, adapter *fakeAdapter) *Manager {
	t.Helper()
	layout := paths.New(t.TempDir())
	require.NoError(t, layout.EnsureDirs())

	registry := engine.NewRegistry()
	registry.Register(adapter.Engine(), func() (engine.Adapter, error) { return adapter, nil })

	return New(layout, store.NewCatalogStore(layout.ContainersDir()), store.NewNameLocker(), registry)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	m := newTestManager(t, &fakeAdapter{})
	_, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.NoError(t, err)

	_, err = m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5433})
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindNameConflict, kind)
}

func TestCreateRejectsPortOwnedByRunningContainer(t *testing.T) {
	m := newTestManager(t, &fakeAdapter{})
	_, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.NoError(t, err)
	_, err = m.UpdateConfig("db1", func(rec *store.ContainerRecord) { rec.Status = string(enum.ContainerRunning) })
	require.NoError(t, err)

	_, err = m.Create(CreateOptions{Name: "db2", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindPortUnavailable, kind)
}

func TestAddAndRemoveDatabaseAreIdempotent(t *testing.T) {
	m := newTestManager(t, &fakeAdapter{})
	_, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.NoError(t, err)

	rec, err := m.AddDatabase("db1", "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, rec.Databases)

	rec, err = m.AddDatabase("db1", "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, rec.Databases)

	rec, err = m.RemoveDatabase("db1", "app")
	require.NoError(t, err)
	assert.Empty(t, rec.Databases)
}

func TestRenameRejectsWhenRunning(t *testing.T) {
	adapter := &fakeAdapter{running: true}
	m := newTestManager(t, adapter)
	_, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.NoError(t, err)

	_, err = m.Rename(context.Background(), "db1", "db2")
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindPreconditionFailed, kind)
}

func TestRenameMovesDataDirectoryAndCatalogEntry(t *testing.T) {
	adapter := &fakeAdapter{}
	m := newTestManager(t, adapter)
	rec, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.NoError(t, err)

	cfg := m.AdapterConfig(rec)
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o700))
	require.NoError(t, os.WriteFile(cfg.DataDir+"/marker.txt", []byte("hi"), 0o600))

	newRec, err := m.Rename(context.Background(), "db1", "db2")
	require.NoError(t, err)
	assert.Equal(t, "db2", newRec.Name)

	exists, err := m.Exists("db1")
	require.NoError(t, err)
	assert.False(t, exists)

	newCfg := m.AdapterConfig(newRec)
	content, err := os.ReadFile(newCfg.DataDir + "/marker.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))
}

func TestRenameRejectsSameName(t *testing.T) {
	m := newTestManager(t, &fakeAdapter{})
	_, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.NoError(t, err)

	_, err = m.Rename(context.Background(), "db1", "db1")
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidName, kind)
}

func TestCloneRejectsWhenSourceRunning(t *testing.T) {
	adapter := &fakeAdapter{running: true}
	m := newTestManager(t, adapter)
	_, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.NoError(t, err)

	_, err = m.Clone(context.Background(), "db1", "db1-clone")
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindPreconditionFailed, kind)
}

func TestCloneCopiesDataAndAssignsNewPort(t *testing.T) {
	adapter := &fakeAdapter{}
	m := newTestManager(t, adapter)
	rec, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.NoError(t, err)

	cfg := m.AdapterConfig(rec)
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o700))
	require.NoError(t, os.WriteFile(cfg.DataDir+"/marker.txt", []byte("hi"), 0o600))

	clone, err := m.Clone(context.Background(), "db1", "db1-clone")
	require.NoError(t, err)
	assert.Equal(t, string(enum.ContainerStopped), clone.Status)
	assert.NotZero(t, clone.Port)

	cloneCfg := m.AdapterConfig(clone)
	content, err := os.ReadFile(cloneCfg.DataDir + "/marker.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))

	// source must be untouched
	srcContent, err := os.ReadFile(cfg.DataDir + "/marker.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(srcContent))
}

func TestCloneRejectsSameName(t *testing.T) {
	m := newTestManager(t, &fakeAdapter{})
	_, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.NoError(t, err)

	_, err = m.Clone(context.Background(), "db1", "db1")
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidName, kind)
}

func TestDeleteFailsWhenRunningWithoutForce(t *testing.T) {
	adapter := &fakeAdapter{running: true}
	m := newTestManager(t, adapter)
	_, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.NoError(t, err)

	err = m.Delete(context.Background(), "db1", DeleteOptions{})
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindPreconditionFailed, kind)
}

func TestDeleteForceStopsThenRemoves(t *testing.T) {
	adapter := &fakeAdapter{running: true}
	m := newTestManager(t, adapter)
	rec, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", Port: 5432})
	require.NoError(t, err)

	cfg := m.AdapterConfig(rec)
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o700))

	err = m.Delete(context.Background(), "db1", DeleteOptions{Force: true})
	require.NoError(t, err)
	assert.True(t, adapter.stopped)

	exists, err := m.Exists("db1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, statErr := os.Stat(cfg.DataDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeleteDetachKeepsFileAndDropsRegistryThenAttachRestores(t *testing.T) {
	adapter := &fakeAdapter{tag: enum.EngineSQLite}
	m := newTestManager(t, adapter)

	rec, err := m.Create(CreateOptions{Name: "db1", Engine: enum.EngineSQLite, Version: "3.45.0"})
	require.NoError(t, err)

	cfg := m.AdapterConfig(rec)
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o700))
	filePath := cfg.DataDir + "/db1.sqlite"
	require.NoError(t, os.WriteFile(filePath, []byte("sqlite data"), 0o600))
	require.NoError(t, m.registryFor(enum.EngineSQLite).Update("db1", filePath))

	require.NoError(t, m.Delete(context.Background(), "db1", DeleteOptions{Detach: true}))

	exists, err := m.Exists("db1")
	require.NoError(t, err)
	assert.False(t, exists)

	// file left on disk
	_, statErr := os.Stat(filePath)
	assert.NoError(t, statErr)

	// registry entry dropped
	_, found, err := m.registryFor(enum.EngineSQLite).Get("db1")
	require.NoError(t, err)
	assert.False(t, found)

	attached, err := m.Attach(context.Background(), AttachOptions{
		Name: "db1", Engine: enum.EngineSQLite, Version: "3.45.0", FilePath: filePath,
	})
	require.NoError(t, err)
	assert.Equal(t, string(enum.ContainerRunning), attached.Status)

	path, found, err := m.registryFor(enum.EngineSQLite).Get("db1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, filePath, path)
}

func TestAttachRejectsServerEngine(t *testing.T) {
	m := newTestManager(t, &fakeAdapter{})
	_, err := m.Attach(context.Background(), AttachOptions{
		Name: "db1", Engine: enum.EnginePostgreSQL, Version: "16.4.0", FilePath: "/tmp/whatever",
	})
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnsupportedOperation, kind)
}

func TestAttachRejectsMissingFile(t *testing.T) {
	m := newTestManager(t, &fakeAdapter{tag: enum.EngineSQLite})
	_, err := m.Attach(context.Background(), AttachOptions{
		Name: "db1", Engine: enum.EngineSQLite, Version: "3.45.0", FilePath: "/nonexistent/path.sqlite",
	})
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindNotFound, kind)
}
