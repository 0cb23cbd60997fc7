package filefamily

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
)

func TestEngineTags(t *testing.T) {
	assert.Equal(t, enum.EngineSQLite, NewSQLite().Engine())
	assert.Equal(t, enum.EngineDuckDB, NewDuckDB().Engine())
}

func TestFilePathUsesExtensionPerEngine(t *testing.T) {
	cfg := engine.Config{Name: "mydb", DataDir: "/data"}
	assert.Equal(t, filepath.Join("/data", "mydb.sqlite3"), NewSQLite().filePath(cfg))
	assert.Equal(t, filepath.Join("/data", "mydb.duckdb"), NewDuckDB().filePath(cfg))
}

func TestInitDataDirCreatesSQLiteFile(t *testing.T) {
	dir := t.TempDir()
	a := NewSQLite()
	cfg := engine.Config{Name: "mydb", DataDir: dir}

	err := a.InitDataDir(context.Background(), cfg, engine.InitDataDirOptions{})
	require.NoError(t, err)

	_, statErr := os.Stat(a.filePath(cfg))
	assert.NoError(t, statErr)
}

func TestIsRunningReflectsFileExistence(t *testing.T) {
	dir := t.TempDir()
	a := NewSQLite()
	cfg := engine.Config{Name: "mydb", DataDir: dir}

	running, err := a.IsRunning(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, running)

	require.NoError(t, a.InitDataDir(context.Background(), cfg, engine.InitDataDirOptions{}))

	running, err = a.IsRunning(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, running)
}

func TestCreateDatabaseIsUnsupported(t *testing.T) {
	a := NewSQLite()
	err := a.CreateDatabase(context.Background(), engine.Config{}, "extra")
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnsupportedOperation, kind)
}

func TestGetConnectionStringUsesFileScheme(t *testing.T) {
	a := NewSQLite()
	cfg := engine.Config{Name: "mydb", DataDir: "/data"}
	assert.Equal(t, "file:///data/mydb.sqlite3", a.GetConnectionString(cfg, ""))
}

func TestParseCSVLine(t *testing.T) {
	result := parseCSV("a,b,c\n1,2,3\n")
	assert.Equal(t, []string{"a", "b", "c"}, result.Columns)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, []string{"1", "2", "3"}, result.Rows[0])
}

func TestBackupCopiesFile(t *testing.T) {
	dir := t.TempDir()
	a := NewSQLite()
	cfg := engine.Config{Name: "mydb", DataDir: dir}
	require.NoError(t, a.InitDataDir(context.Background(), cfg, engine.InitDataDirOptions{}))

	out := filepath.Join(dir, "backup.sqlite3")
	result, err := a.Backup(context.Background(), cfg, out, engine.BackupOptions{})
	require.NoError(t, err)
	assert.Equal(t, enum.FormatSQLiteFile, result.Format)

	_, statErr := os.Stat(out)
	assert.NoError(t, statErr)
}
