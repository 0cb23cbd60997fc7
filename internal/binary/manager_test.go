package binary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/paths"
	"github.com/robertjbass/spindb/internal/platform"
	"github.com/robertjbass/spindb/internal/store"
)

func newTestManager(t *testing.T) (*Manager, paths.Layout) {
	t.Helper()
	root := t.TempDir()
	layout := paths.New(root)
	require.NoError(t, layout.EnsureDirs())
	cfg := store.NewConfigStore(layout.ConfigFile())
	return NewManager(layout, cfg), layout
}

func TestResolveVersionExactPassesThrough(t *testing.T) {
	m, _ := newTestManager(t)
	v, err := m.ResolveVersion(context.Background(), enum.EnginePostgreSQL, "16.4.0")
	require.NoError(t, err)
	assert.Equal(t, "16.4.0", v)
}

func TestResolveVersionBareMajorUsesVersionMap(t *testing.T) {
	m, _ := newTestManager(t)
	v, err := m.ResolveVersion(context.Background(), enum.EnginePostgreSQL, "16")
	require.NoError(t, err)
	assert.Equal(t, "16.4.0", v)
}

func TestResolveVersionUnknownMajorSynthesizes(t *testing.T) {
	m, _ := newTestManager(t)
	v, err := m.ResolveVersion(context.Background(), enum.EnginePostgreSQL, "99")
	require.NoError(t, err)
	assert.Equal(t, "99.0.0", v)
}

func TestIsInstalledFalseWhenMissing(t *testing.T) {
	m, _ := newTestManager(t)
	assert.False(t, m.IsInstalled(enum.EnginePostgreSQL, "16.4.0"))
}

func TestNormalizeLayoutFlattensSingleTopLevelDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "postgresql-16.4.0")
	require.NoError(t, os.MkdirAll(filepath.Join(nested, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "bin", "postgres"), []byte("x"), 0o644))

	require.NoError(t, normalizeLayout(dir))

	_, err := os.Stat(filepath.Join(dir, "bin", "postgres"))
	assert.NoError(t, err)
	_, err = os.Stat(nested)
	assert.True(t, os.IsNotExist(err))
}

func TestNormalizeLayoutLeavesFlatArchiveAlone(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "postgres"), []byte("x"), 0o644))

	require.NoError(t, normalizeLayout(dir))

	_, err := os.Stat(filepath.Join(dir, "bin", "postgres"))
	assert.NoError(t, err)
}

func TestDownloadOnce404IsDownloadFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m, _ := newTestManager(t)
	_, err := m.downloadOnce(context.Background(), srv.URL, t.TempDir(), platform.Current())
	require.Error(t, err)
}

func TestDownloadKeyDedupesConcurrentEnsureInstalled(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m, _ := newTestManager(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.group.Do("dedupe-test-key", func() (interface{}, error) {
				return m.downloadOnce(context.Background(), srv.URL, t.TempDir(), platform.Current())
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "singleflight must collapse concurrent calls with the same key")
}
