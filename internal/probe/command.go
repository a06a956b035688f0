package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandProbe runs a command that exits zero once the core is usable.
type CommandProbe struct{ Command string }

func (p CommandProbe) Ready(ctx context.Context) error {
	cmd := buildShellAwareCommand(ctx, p.Command)
	cmd.Stdout = nil
	cmd.Stderr = nil
	err := cmd.Run()
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return fmt.Errorf("probe command exited %d", ee.ExitCode())
	}
	return err
}

func (p CommandProbe) Describe() string { return "cmd:" + p.Command }

// buildShellAwareCommand avoids invoking a shell unless obvious shell
// metacharacters are present.
func buildShellAwareCommand(ctx context.Context, cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return exec.CommandContext(ctx, "true")
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.CommandContext(ctx, parts[0], parts[1:]...)
}
