// Package process implements the Process Manager (§4.5): spawning engine
// server binaries as detached children, writing/reading PID files,
// polling readiness, and stopping cleanly with signal escalation.
package process

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robertjbass/spindb/internal/errs"
	"github.com/robertjbass/spindb/internal/logger"
	"github.com/robertjbass/spindb/internal/platform"
)

// ReadyTimeout and ReadyCadence implement §4.5's default 30s / 60x500ms
// readiness poll.
const (
	ReadyTimeout = 30 * time.Second
	ReadyCadence = 500 * time.Millisecond

	stopGracePeriod = 10 * time.Second
	killGracePeriod = 1 * time.Second
)

// StartSpec is everything the Process Manager needs to spawn and
// supervise one engine server process; the engine adapter builds this.
type StartSpec struct {
	Engine  string
	Name    string
	Argv    []string
	Env     []string
	Dir     string
	LogFile string
	PIDFile string

	// Probe reports whether the newly spawned process is ready to serve
	// traffic (e.g. pg_isready, a TCP dial, mysqladmin ping).
	Probe func(ctx context.Context) (bool, error)

	// GracefulStop issues the engine's own shutdown command (e.g.
	// `pg_ctl stop -m fast`, `mysqladmin shutdown`). Returning an error
	// falls through to SIGTERM/SIGKILL escalation.
	GracefulStop func(ctx context.Context) error
}

// StartResult is returned once the process is confirmed ready.
type StartResult struct {
	PID int
}

// Start spawns Argv as a detached child, writes its PID, and polls Probe
// until it succeeds or ReadyTimeout elapses.
func Start(ctx context.Context, spec StartSpec) (StartResult, error) {
	log := logger.GetLogger(ctx)

	logFile, err := os.OpenFile(spec.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return StartResult{}, errs.Wrap(errs.KindProcessInitTimeout, "opening log file "+spec.LogFile, err)
	}
	defer logFile.Close()

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return StartResult{}, errs.Wrap(errs.KindProcessInitTimeout, "spawning "+spec.Engine, err)
	}
	pid := cmd.Process.Pid

	// Released once spawned; the OS now owns the process. We don't Wait()
	// on it here since it's meant to keep running detached.
	go func() { _ = cmd.Process.Release() }()

	if err := writePIDFile(spec.PIDFile, pid); err != nil {
		return StartResult{}, errs.Wrap(errs.KindProcessInitTimeout, "writing pid file", err)
	}

	log.Info("engine process spawned", zap.String("engine", spec.Engine), zap.String("name", spec.Name), zap.Int("pid", pid))

	readyCtx, cancel := context.WithTimeout(ctx, ReadyTimeout)
	defer cancel()

	if err := pollReady(readyCtx, spec.Probe); err != nil {
		_ = platform.TerminateProcess(ctx, pid, killGracePeriod, true)
		_ = os.Remove(spec.PIDFile)
		return StartResult{}, errs.New(errs.KindProcessReadyTimeout,
			spec.Engine+" did not become ready within "+ReadyTimeout.String()+"; see log at "+spec.LogFile)
	}

	return StartResult{PID: pid}, nil
}

func pollReady(ctx context.Context, probe func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(ReadyCadence)
	defer ticker.Stop()

	for {
		ready, err := probe(ctx)
		if err == nil && ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop reads the PID file, attempts the engine's own graceful shutdown,
// then escalates to SIGTERM and finally SIGKILL, per §4.5.
func Stop(ctx context.Context, spec StartSpec) error {
	log := logger.GetLogger(ctx)

	pid, found, err := readPIDFile(spec.PIDFile)
	if err != nil {
		return err
	}
	if !found {
		// PID file missing or malformed: the process may still be alive and
		// just orphaned from its tracking, so probe before assuming there's
		// nothing to stop (§4.5 Stop step 1).
		if spec.Probe != nil {
			if alive, perr := spec.Probe(ctx); perr == nil && alive {
				log.Warn("pid file missing but engine still answers probe; attempting graceful shutdown",
					zap.String("engine", spec.Engine), zap.String("name", spec.Name))
				if spec.GracefulStop != nil {
					if err := spec.GracefulStop(ctx); err != nil {
						log.Warn("graceful stop of untracked process failed", zap.Error(err))
					}
				}
			}
		}
		return clearPIDFile(spec.PIDFile)
	}

	alive, err := platform.IsProcessAlive(pid)
	if err != nil {
		return err
	}
	if !alive {
		return os.Remove(spec.PIDFile)
	}

	if spec.GracefulStop != nil {
		if err := spec.GracefulStop(ctx); err != nil {
			log.Warn("graceful stop command failed, escalating", zap.Error(err))
		} else if waitForExit(pid, stopGracePeriod) {
			return clearPIDFile(spec.PIDFile)
		}
	}

	if err := platform.TerminateProcess(ctx, pid, killGracePeriod, false); err != nil {
		return errs.Wrap(errs.KindProcessStopTimeout, "stopping pid", err)
	}

	if !waitForExit(pid, stopGracePeriod+killGracePeriod) {
		return errs.New(errs.KindProcessStopTimeout, "process did not exit after escalation")
	}

	return clearPIDFile(spec.PIDFile)
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		alive, err := platform.IsProcessAlive(pid)
		if err == nil && !alive {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	alive, err := platform.IsProcessAlive(pid)
	return err == nil && !alive
}

func clearPIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsRunning reports whether the container identified by spec has a live
// supervised process (PID file present and alive).
func IsRunning(spec StartSpec) (bool, error) {
	pid, found, err := readPIDFile(spec.PIDFile)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return platform.IsProcessAlive(pid)
}

func writePIDFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600)
}

// readPIDFile returns (pid, found, err). A missing or malformed file is
// (0, false, nil) — never an error, matching §4.5's "missing or
// malformed" tolerance.
func readPIDFile(path string) (int, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false, nil
	}
	return pid, true, nil
}
