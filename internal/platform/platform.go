// Package platform isolates the handful of things that differ by OS:
// executable suffixes, process liveness/termination, locating a tool on
// PATH, and best-effort clipboard access. Everything else in the core
// talks to platform, never to runtime.GOOS directly.
package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Info describes the host the core is running on.
type Info struct {
	OS   string // "darwin", "linux", "windows"
	Arch string // "amd64", "arm64"
}

// Current returns the running host's platform info.
func Current() Info {
	return Info{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// ExecExt returns the suffix appended to executable names on this
// platform: ".exe" on windows, "" everywhere else.
func (i Info) ExecExt() string {
	if i.OS == "windows" {
		return ".exe"
	}
	return ""
}

// PlatformTag returns the platform label used in release archive URLs and
// in install directory names: "win32" on windows, otherwise Go's GOOS
// ("darwin", "linux") unchanged.
func (i Info) PlatformTag() string {
	if i.OS == "windows" {
		return "win32"
	}
	return i.OS
}

// ArchiveExt returns the conventional archive suffix used for engine
// binary releases on this platform.
func (i Info) ArchiveExt() string {
	if i.OS == "windows" {
		return ".zip"
	}
	return ".tar.gz"
}

// IsProcessAlive reports whether pid identifies a live process. It never
// returns an error for "process doesn't exist" — that's encoded as
// (false, nil) — only for genuine inspection failures.
func IsProcessAlive(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	running, err := process.PidExists(int32(pid))
	if err != nil {
		return false, fmt.Errorf("checking pid %d: %w", pid, err)
	}
	return running, nil
}

// TerminateProcess asks pid to stop, escalating to a forced kill if it's
// still alive after the grace period. force=true skips straight to a
// forced kill (SIGKILL / TerminateProcess).
func TerminateProcess(ctx context.Context, pid int, grace time.Duration, force bool) error {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return fmt.Errorf("opening pid %d: %w", pid, err)
	}

	if force {
		return killNow(proc)
	}

	if err := proc.Terminate(); err != nil {
		alive, liveErr := IsProcessAlive(pid)
		if liveErr == nil && !alive {
			return nil
		}
		return fmt.Errorf("sending graceful stop to pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		alive, err := IsProcessAlive(pid)
		if err != nil {
			return err
		}
		if !alive {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return killNow(proc)
}

func killNow(proc *process.Process) error {
	if err := proc.Kill(); err != nil {
		alive, liveErr := IsProcessAlive(int(proc.Pid))
		if liveErr == nil && !alive {
			return nil
		}
		return fmt.Errorf("force-killing pid %d: %w", proc.Pid, err)
	}
	return nil
}

// FindTool searches PATH for name, returning its absolute path. Callers
// pass the bare tool name (e.g. "pg_dump"); FindTool appends the
// platform's executable extension before searching.
func FindTool(name string) (string, error) {
	candidate := name + Current().ExecExt()
	path, err := exec.LookPath(candidate)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	return path, nil
}

// CopyToClipboard is a best-effort clipboard write; failures are
// swallowed by the caller's convention (§4.1), never surfaced as a hard
// error, since a missing clipboard utility shouldn't block a CLI command.
func CopyToClipboard(text string) error {
	cmd, args := clipboardCommand()
	if cmd == "" {
		return errors.New("no clipboard utility available on this platform")
	}
	c := exec.Command(cmd, args...)
	stdin, err := c.StdinPipe()
	if err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}
	if _, err := stdin.Write([]byte(text)); err != nil {
		stdin.Close()
		return err
	}
	stdin.Close()
	return c.Wait()
}

func clipboardCommand() (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "pbcopy", nil
	case "windows":
		return "clip", nil
	default:
		if path, err := exec.LookPath("xclip"); err == nil {
			return path, []string{"-selection", "clipboard"}
		}
		if path, err := exec.LookPath("xsel"); err == nil {
			return path, []string{"--clipboard", "--input"}
		}
		return "", nil
	}
}

func currentPID() int { return os.Getpid() }

// PortFromString parses a port number from a string, used by adapters
// reading a health-probe or config-reported port back out of CLI output.
func PortFromString(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parsing port %q: %w", s, err)
	}
	return port, nil
}
