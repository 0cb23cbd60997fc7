package paths

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHonorsRootOverride(t *testing.T) {
	t.Setenv("SPINDB_ROOT", "/tmp/spindb-test-root")

	l, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/spindb-test-root", l.Root)
}

func TestLayoutPaths(t *testing.T) {
	l := New("/var/spindb")

	assert.Equal(t, "/var/spindb/bin/postgresql-16.2.0-linux-amd64", l.InstallDir("postgresql", "16.2.0", "linux", "amd64"))
	assert.Equal(t, "/var/spindb/bin/postgresql-16.2.0-linux-amd64/bin", l.InstallBinDir("postgresql", "16.2.0", "linux", "amd64"))
	assert.Equal(t, "/var/spindb/data/postgresql/mydb", l.ContainerDataDir("postgresql", "mydb"))
	assert.Equal(t, "/var/spindb/run/postgresql/mydb.pid", l.ContainerPIDFile("postgresql", "mydb"))
	assert.Equal(t, "/var/spindb/containers/mydb.json", l.ContainerFile("mydb"))
	assert.Equal(t, "/var/spindb/registry/sqlite.json", l.RegistryFile("sqlite"))
}

func TestEnsureDirsCreatesTree(t *testing.T) {
	root := t.TempDir()
	l := New(root)

	require.NoError(t, l.EnsureDirs())

	for _, dir := range []string{l.ContainersDir(), l.BinDir(), l.DataDir(), l.LogsDir(), l.RunDir(), l.RegistryDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestEnsureEngineDirs(t *testing.T) {
	root := t.TempDir()
	l := New(root)
	require.NoError(t, l.EnsureDirs())
	require.NoError(t, l.EnsureEngineDirs("postgresql"))

	info, err := os.Stat(l.ContainerDataDir("postgresql", "x"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
