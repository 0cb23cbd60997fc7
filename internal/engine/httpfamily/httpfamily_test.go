package httpfamily

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/errs"
)

func TestEngineTags(t *testing.T) {
	assert.Equal(t, enum.EngineClickHouse, NewClickHouse().Engine())
	assert.Equal(t, enum.EngineMeilisearch, NewMeilisearch().Engine())
	assert.Equal(t, enum.EngineCouchDB, NewCouchDB().Engine())
	assert.Equal(t, enum.EngineQuestDB, NewQuestDB().Engine())
}

func TestQuestDBHasNoLogicalDatabases(t *testing.T) {
	err := NewQuestDB().CreateDatabase(context.Background(), engine.Config{}, "extra")
	require.Error(t, err)
	kind, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnsupportedOperation, kind)
}

func testServerConfig(t *testing.T, handler http.HandlerFunc) engine.Config {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	host, portStr, err := splitHostPort(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return engine.Config{Host: host, Port: port}
}

func splitHostPort(rawURL string) (string, string, error) {
	trimmed := strings.TrimPrefix(rawURL, "http://")
	parts := strings.SplitN(trimmed, ":", 2)
	if len(parts) != 2 {
		return "", "", assert.AnError
	}
	return parts[0], parts[1], nil
}

func TestProbeReflectsHealthEndpointStatus(t *testing.T) {
	cfg := testServerConfig(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	a := NewMeilisearch()
	ok, err := a.probe(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListDatabasesFiltersCouchSystemDBs(t *testing.T) {
	cfg := testServerConfig(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`["_users","_replicator","app"]`))
	})

	a := NewCouchDB()
	names, err := a.ListDatabases(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, names)
}

func TestListDatabasesParsesMeilisearchIndexes(t *testing.T) {
	cfg := testServerConfig(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"uid":"movies"},{"uid":"books"}]}`))
	})

	a := NewMeilisearch()
	names, err := a.ListDatabases(context.Background(), cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"movies", "books"}, names)
}

func TestExecuteQueryParsesQuestDBDataset(t *testing.T) {
	cfg := testServerConfig(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"columns":[{"name":"id"},{"name":"name"}],"dataset":[[1,"alice"],[2,"bob"]]}`))
	})

	a := NewQuestDB()
	result, err := a.ExecuteQuery(context.Background(), cfg, "select * from t", engine.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, result.Columns)
	require.Len(t, result.Rows, 2)
}

func TestGetConnectionStringAppendsDatabaseWhenSet(t *testing.T) {
	a := NewCouchDB()
	cfg := engine.Config{Port: 5984}
	assert.Equal(t, "http://127.0.0.1:5984", a.GetConnectionString(cfg, ""))
	assert.Equal(t, "http://127.0.0.1:5984/app", a.GetConnectionString(cfg, "app"))
}

func TestRestorePassesPreconditionWhenNotRunning(t *testing.T) {
	a := NewMeilisearch()
	cfg := engine.Config{Host: "127.0.0.1", Port: 0, DataDir: t.TempDir(), PIDFile: ""}

	_, err := a.Restore(context.Background(), cfg, "/tmp/does-not-exist.tar.gz", engine.RestoreOptions{})
	require.Error(t, err)
	kind, ok := errs.As(err)
	if ok {
		assert.NotEqual(t, errs.KindPreconditionFailed, kind)
	}
}
