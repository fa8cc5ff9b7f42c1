//go:build linux

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// applyFateShare installs PR_SET_PDEATHSIG on the child so it receives SIGKILL if the proxier
// dies without running ShutdownAll.
func applyFateShare(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Pdeathsig = unix.SIGKILL
}

// fateShareSupported reports whether this platform supports parent-death signalling.
func fateShareSupported() bool { return true }
