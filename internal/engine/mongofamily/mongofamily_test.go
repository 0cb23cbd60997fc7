package mongofamily

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/engine"
	"github.com/robertjbass/spindb/internal/enum"
)

func TestEngineTags(t *testing.T) {
	assert.Equal(t, enum.EngineMongoDB, NewMongoDB().Engine())
	assert.Equal(t, enum.EngineFerretDB, NewFerretDB().Engine())
}

func TestIsSystemDatabaseFiltersInternalDatabases(t *testing.T) {
	assert.True(t, isSystemDatabase("admin"))
	assert.True(t, isSystemDatabase("local"))
	assert.True(t, isSystemDatabase("config"))
	assert.False(t, isSystemDatabase("app"))
}

func TestGetConnectionStringDefaultsDatabase(t *testing.T) {
	a := NewMongoDB()
	cfg := engine.Config{Port: 27017, Database: "app"}
	assert.Equal(t, "mongodb://127.0.0.1:27017/app", a.GetConnectionString(cfg, ""))
}

func TestParseJSONRowsHandlesDocumentArray(t *testing.T) {
	result, err := parseJSONRows(`[{"_id":1},{"_id":2}]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"document"}, result.Columns)
	assert.Len(t, result.Rows, 2)
}

func TestParseJSONRowsHandlesEmptyOutput(t *testing.T) {
	result, err := parseJSONRows("")
	require.NoError(t, err)
	assert.Nil(t, result.Columns)
}

func TestParseJSONRowsFallsBackOnNonArrayOutput(t *testing.T) {
	result, err := parseJSONRows("42")
	require.NoError(t, err)
	assert.Equal(t, []string{"result"}, result.Columns)
	assert.Equal(t, [][]string{{"42"}}, result.Rows)
}

func TestDetectBackupFormatAssumesMongoArchiveWhenUnknown(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/dump.archive"
	require.NoError(t, os.WriteFile(path, []byte{0x01, 0x02, 0x03, 0x04}, 0o600))

	a := NewMongoDB()
	info, err := a.DetectBackupFormat(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, enum.FormatMongoArchive, info.Format)
	assert.Equal(t, "mongorestore", info.RestoreCommand)
}
