//go:build !linux

package process

import "os/exec"

// applyFateShare is a no-op on platforms without PR_SET_PDEATHSIG; the ShutdownAll hook at
// process exit is the safety net here.
func applyFateShare(cmd *exec.Cmd) {}

// fateShareSupported reports whether this platform supports parent-death signalling.
func fateShareSupported() bool { return false }
