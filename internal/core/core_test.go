package core

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/enum"
	"github.com/robertjbass/spindb/internal/maintenance"
	"github.com/robertjbass/spindb/internal/paths"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	layout := paths.New(t.TempDir())
	c, err := New(layout)
	require.NoError(t, err)
	return c
}

func TestCreateStartStopSQLiteContainer(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	rec, err := c.CreateContainer(ctx, CreateOptions{Name: "notes", Engine: enum.EngineSQLite, Version: "3"})
	require.NoError(t, err)
	assert.Equal(t, string(enum.ContainerCreated), rec.Status)
	assert.Zero(t, rec.Port)

	entries, err := c.registryFor(enum.EngineSQLite).List()
	require.NoError(t, err)
	assert.Contains(t, entries, "notes")

	running, err := c.IsRunning(ctx, "notes")
	require.NoError(t, err)
	assert.True(t, running, "sqlite file exists immediately after create")

	result, err := c.Start(ctx, "notes")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ConnectionString)

	rec, err = c.Containers.GetConfig("notes")
	require.NoError(t, err)
	assert.Equal(t, string(enum.ContainerRunning), rec.Status)

	require.NoError(t, c.Stop(ctx, "notes"))
	rec, err = c.Containers.GetConfig("notes")
	require.NoError(t, err)
	assert.Equal(t, string(enum.ContainerStopped), rec.Status)

	// file-based engines report running as long as the file exists,
	// regardless of catalog status.
	running, err = c.IsRunning(ctx, "notes")
	require.NoError(t, err)
	assert.True(t, running)
}

func TestCreateContainerRejectsUnknownEngine(t *testing.T) {
	c := newTestCore(t)
	_, err := c.CreateContainer(context.Background(), CreateOptions{Name: "x", Engine: enum.Engine("notareal")})
	require.Error(t, err)
}

func TestCreateContainerAssignsDefaultPortForServerEngine(t *testing.T) {
	c := newTestCore(t)
	rec, err := c.CreateContainer(context.Background(), CreateOptions{Name: "pg1", Engine: enum.EnginePostgreSQL, Version: "16"})
	require.NoError(t, err)
	assert.Equal(t, 5432, rec.Port)
	assert.Equal(t, "16.4.0", rec.Version)
}

func TestCreateContainerHonorsExplicitPort(t *testing.T) {
	c := newTestCore(t)
	rec, err := c.CreateContainer(context.Background(), CreateOptions{Name: "pg1", Engine: enum.EnginePostgreSQL, Version: "16", Port: 5555})
	require.NoError(t, err)
	assert.Equal(t, 5555, rec.Port)
}

func TestRegistryForIsStableAcrossCalls(t *testing.T) {
	c := newTestCore(t)
	require.Same(t, c.registryFor(enum.EngineSQLite), c.registryFor(enum.EngineSQLite))
}

func TestMaintenanceSweepsOrphanedSQLiteRegistryEntry(t *testing.T) {
	c := newTestCore(t)
	require.NotNil(t, c.Maintenance)

	_, err := c.CreateContainer(context.Background(), CreateOptions{Name: "notes", Engine: enum.EngineSQLite, Version: "3"})
	require.NoError(t, err)

	path, found, err := c.registryFor(enum.EngineSQLite).Get("notes")
	require.NoError(t, err)
	require.True(t, found)

	// deleting the backing file out from under the registry simulates an
	// orphaned entry; a maintenance sweep should prune it.
	require.NoError(t, os.Remove(path))

	c.Maintenance.RunNow(context.Background(), map[enum.Engine]maintenance.RegistryLister{
		enum.EngineSQLite: c.registryFor(enum.EngineSQLite),
	})

	entries, err := c.registryFor(enum.EngineSQLite).List()
	require.NoError(t, err)
	assert.NotContains(t, entries, "notes")
}

func TestDeleteEngineFailsWhenContainerReferencesIt(t *testing.T) {
	c := newTestCore(t)
	rec, err := c.CreateContainer(context.Background(), CreateOptions{Name: "notes", Engine: enum.EngineSQLite, Version: "3"})
	require.NoError(t, err)

	err = c.DeleteEngine(enum.EngineSQLite, rec.Version)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot delete")
	assert.Contains(t, err.Error(), "1 container")
}

func TestDeleteEngineSucceedsWhenUnused(t *testing.T) {
	c := newTestCore(t)
	err := c.DeleteEngine(enum.EngineSQLite, "3.45.0")
	require.NoError(t, err)
}

func TestStartAndStopFileBasedContainer(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()
	_, err := c.CreateContainer(ctx, CreateOptions{Name: "notes", Engine: enum.EngineSQLite, Version: "3"})
	require.NoError(t, err)

	_, err = c.Start(ctx, "notes")
	require.NoError(t, err)
	require.NoError(t, c.Stop(ctx, "notes"))

	assert.NotNil(t, c.Metrics)
}
