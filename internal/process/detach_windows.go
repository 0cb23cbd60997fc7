//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// detach starts the child in its own process group so it survives
// independently of the parent's console/job.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
