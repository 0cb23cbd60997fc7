//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own process group so a terminal signal to
// our process group doesn't also kill the supervised engine.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
