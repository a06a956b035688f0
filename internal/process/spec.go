package process

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/mistlabs/coreshell/internal/logger"
)

// Spec describes the core process to be supervised.
type Spec struct {
	Name     string            `json:"name" mapstructure:"name"`
	Command  string            `json:"command" mapstructure:"command"` // executable path when Args is set, else a shell-style command line
	Args     []string          `json:"args" mapstructure:"args"`
	WorkDir  string            `json:"work_dir" mapstructure:"work_dir"`
	Env      []string          `json:"env" mapstructure:"env"` // extra "K=V" entries merged over the base env
	PIDFile  string            `json:"pid_file" mapstructure:"pid_file"`
	Detached bool              `json:"detached" mapstructure:"detached"` // start in a new session instead of a new process group
	Log      logger.FileConfig `json:"log" mapstructure:"log"`
}

// Validate checks the spec before any spawn attempt.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("spec requires name")
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("spec %q requires command", s.Name)
	}
	return nil
}

// BuildCommand constructs an *exec.Cmd for the spec. With explicit Args the
// executable is invoked directly. Otherwise Command is treated as a command
// line: it is handed to /bin/sh only when shell metacharacters are present,
// and an explicit "sh -c" prefix is honored without double-wrapping.
func (s *Spec) BuildCommand() *exec.Cmd {
	if len(s.Args) > 0 {
		// #nosec G204
		return exec.Command(s.Command, s.Args...)
	}
	cmdStr := strings.TrimSpace(s.Command)
	if _, script, ok := parseExplicitShell(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", script)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

// parseExplicitShell detects "sh -c <ARG>" style prefixes at the beginning
// of cmdStr and returns (shell, script, true) when matched. One pair of
// outer quotes around the script is stripped so redirections inside it
// still parse.
func parseExplicitShell(cmdStr string) (string, string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if !strings.HasPrefix(trim, p) {
			continue
		}
		script := trim[len(p):]
		if n := len(script); n >= 2 {
			if (script[0] == '\'' && script[n-1] == '\'') || (script[0] == '"' && script[n-1] == '"') {
				script = script[1 : n-1]
			}
		}
		return strings.Fields(p)[0], script, true
	}
	return "", "", false
}
