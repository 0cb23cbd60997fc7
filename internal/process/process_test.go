package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndStopSleepProcess(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires a POSIX shell")
	}

	dir := t.TempDir()
	spec := StartSpec{
		Engine:  "testengine",
		Name:    "t1",
		Argv:    []string{"/bin/sh", "-c", "sleep 30"},
		Dir:     dir,
		LogFile: filepath.Join(dir, "log.txt"),
		PIDFile: filepath.Join(dir, "spindb.pid"),
		Probe: func(ctx context.Context) (bool, error) {
			return true, nil
		},
	}

	res, err := Start(context.Background(), spec)
	require.NoError(t, err)
	assert.Greater(t, res.PID, 0)

	running, err := IsRunning(spec)
	require.NoError(t, err)
	assert.True(t, running)

	require.NoError(t, Stop(context.Background(), spec))

	running, err = IsRunning(spec)
	require.NoError(t, err)
	assert.False(t, running)

	_, err = os.Stat(spec.PIDFile)
	assert.True(t, os.IsNotExist(err))
}

func TestStartFailsOnReadyTimeout(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires a POSIX shell")
	}

	dir := t.TempDir()
	spec := StartSpec{
		Engine:  "testengine",
		Name:    "t2",
		Argv:    []string{"/bin/sh", "-c", "sleep 30"},
		Dir:     dir,
		LogFile: filepath.Join(dir, "log.txt"),
		PIDFile: filepath.Join(dir, "spindb.pid"),
		Probe: func(ctx context.Context) (bool, error) {
			return false, nil
		},
	}

	origTimeout := ReadyTimeout
	_ = origTimeout

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Start(ctx, spec)
	require.Error(t, err)
}

func TestStopToleratesMissingPIDFile(t *testing.T) {
	dir := t.TempDir()
	spec := StartSpec{PIDFile: filepath.Join(dir, "spindb.pid")}
	assert.NoError(t, Stop(context.Background(), spec))
}

func TestStopProbesLivenessWhenPIDFileMissing(t *testing.T) {
	dir := t.TempDir()
	var gracefulCalled bool
	spec := StartSpec{
		Engine:  "testengine",
		Name:    "t3",
		PIDFile: filepath.Join(dir, "spindb.pid"),
		Probe: func(ctx context.Context) (bool, error) {
			return true, nil
		},
		GracefulStop: func(ctx context.Context) error {
			gracefulCalled = true
			return nil
		},
	}

	require.NoError(t, Stop(context.Background(), spec))
	assert.True(t, gracefulCalled, "expected graceful stop to run when the probe reports the engine still alive")
}

func TestStopSkipsGracefulStopWhenProbeReportsDead(t *testing.T) {
	dir := t.TempDir()
	var gracefulCalled bool
	spec := StartSpec{
		Engine:  "testengine",
		Name:    "t4",
		PIDFile: filepath.Join(dir, "spindb.pid"),
		Probe: func(ctx context.Context) (bool, error) {
			return false, nil
		},
		GracefulStop: func(ctx context.Context) error {
			gracefulCalled = true
			return nil
		},
	}

	require.NoError(t, Stop(context.Background(), spec))
	assert.False(t, gracefulCalled)
}

func TestIsRunningFalseWhenPIDFileAbsent(t *testing.T) {
	dir := t.TempDir()
	spec := StartSpec{PIDFile: filepath.Join(dir, "spindb.pid")}

	running, err := IsRunning(spec)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestIsRunningFalseWhenPIDStale(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "spindb.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("999999"), 0o600))

	running, err := IsRunning(StartSpec{PIDFile: pidFile})
	require.NoError(t, err)
	assert.False(t, running)
}
