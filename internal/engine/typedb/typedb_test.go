package typedb

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
)

func TestEngineTag(t *testing.T) {
	assert.Equal(t, enum.EngineTypeDB, New().Engine())
}

func TestCreateDatabaseIsUnsupported(t *testing.T) {
	err := New().CreateDatabase(context.Background(), engine.Config{}, "extra")
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnsupportedOperation, kind)
}

func TestListDatabasesReturnsConfiguredDatabaseOnly(t *testing.T) {
	names, err := New().ListDatabases(context.Background(), engine.Config{Database: "app"})
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, names)
}

func TestListDatabasesEmptyWhenNoDatabaseConfigured(t *testing.T) {
	names, err := New().ListDatabases(context.Background(), engine.Config{})
	require.NoError(t, err)
	assert.Nil(t, names)
}

func TestGetConnectionStringIncludesDatabase(t *testing.T) {
	a := New()
	cfg := engine.Config{Port: 1729}
	assert.Equal(t, "typedb://127.0.0.1:1729", a.GetConnectionString(cfg, ""))
	assert.Equal(t, "typedb://127.0.0.1:1729/app", a.GetConnectionString(cfg, "app"))
}

func TestSplitLinesToRows(t *testing.T) {
	rows := splitLinesToRows("line one\nline two\n")
	assert.Equal(t, [][]string{{"line one"}, {"line two"}}, rows)
}

func TestRestoreRequiresStoppedContainer(t *testing.T) {
	dir := t.TempDir()
	pidFile := dir + "/typedb.pid"
	require.NoError(t, os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o600))

	cfg := engine.Config{DataDir: dir, PIDFile: pidFile}
	_, err := New().Restore(context.Background(), cfg, dir+"/missing.tar.gz", engine.RestoreOptions{})
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindPreconditionFailed, kind)
}

func TestDirSizeSumsNestedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/a.txt", []byte("12345"), 0o600))
	size, err := dirSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}
