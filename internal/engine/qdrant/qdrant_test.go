package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
)

func TestEngineTag(t *testing.T) {
	assert.Equal(t, enum.EngineQdrant, New().Engine())
}

func TestRestPortOffsetFromGRPCPort(t *testing.T) {
	cfg := engine.Config{Port: 6334}
	assert.Equal(t, 6333, restPort(cfg))
}

func TestGetConnectionStringIncludesCollectionWhenSet(t *testing.T) {
	a := New()
	cfg := engine.Config{Port: 6334}
	assert.Equal(t, "http://127.0.0.1:6333", a.GetConnectionString(cfg, ""))
	assert.Equal(t, "http://127.0.0.1:6333/collections/docs", a.GetConnectionString(cfg, "docs"))
}

func TestWriteConfigRendersYAML(t *testing.T) {
	dir := t.TempDir()
	cfg := engine.Config{DataDir: dir, Port: 6334}
	require.NoError(t, writeConfig(cfg))

	content, err := os.ReadFile(dir + "/config.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(content), "grpc_port: 6334")
	assert.Contains(t, string(content), "http_port: 6333")
}

func TestDownloadFileWritesResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("snapshot-bytes"))
	}))
	defer srv.Close()

	out := t.TempDir() + "/snap.tar"
	require.NoError(t, downloadFile(context.Background(), srv.URL, out))

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "snapshot-bytes", string(content))
}

func TestDownloadFileReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	out := t.TempDir() + "/snap.tar"
	err := downloadFile(context.Background(), srv.URL, out)
	require.Error(t, err)
}

func TestRestoreRejectsRunningContainer(t *testing.T) {
	dir := t.TempDir()
	pidFile := dir + "/qdrant.pid"
	require.NoError(t, os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o600))

	cfg := engine.Config{DataDir: dir, PIDFile: pidFile}
	_, err := New().Restore(context.Background(), cfg, dir+"/snap.tar", engine.RestoreOptions{})
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindPreconditionFailed, kind)
}

func TestRestoreCopiesSnapshotIntoStorageWhenStopped(t *testing.T) {
	dir := t.TempDir()
	snapshot := dir + "/snap.tar"
	require.NoError(t, os.WriteFile(snapshot, []byte("snapshot-bytes"), 0o600))

	cfg := engine.Config{DataDir: dir, PIDFile: dir + "/qdrant.pid", Database: "docs"}
	_, err := New().Restore(context.Background(), cfg, snapshot, engine.RestoreOptions{})
	require.NoError(t, err)

	content, err := os.ReadFile(dir + "/collections/docs/snapshots/snap.tar")
	require.NoError(t, err)
	assert.Equal(t, "snapshot-bytes", string(content))
}

func TestRunScriptAndExecuteQueryAreUnsupported(t *testing.T) {
	a := New()
	err := a.RunScript(context.Background(), engine.Config{}, engine.RunScriptOptions{SQL: "noop"})
	require.Error(t, err)

	_, err = a.ExecuteQuery(context.Background(), engine.Config{}, "noop", engine.QueryOptions{})
	require.Error(t, err)
}
