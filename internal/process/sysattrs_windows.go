//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

const (
	createNewProcessGroup = 0x00000200
	detachedProcess       = 0x00000008
)

// configureSysProcAttr creates a new process group for signaling. With
// Detached the child additionally drops the parent's console.
func configureSysProcAttr(cmd *exec.Cmd, spec Spec) {
	flags := uint32(createNewProcessGroup)
	if spec.Detached {
		flags |= detachedProcess
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: flags}
}
