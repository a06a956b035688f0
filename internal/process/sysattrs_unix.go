//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the child in its own process group so the
// whole tree can be signaled together. With Detached it starts a new
// session instead, detaching from the controlling terminal.
func configureSysProcAttr(cmd *exec.Cmd, spec Spec) {
	attrs := &syscall.SysProcAttr{}
	if spec.Detached {
		attrs.Setsid = true
	} else {
		attrs.Setpgid = true
	}
	cmd.SysProcAttr = attrs
}
