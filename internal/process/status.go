package process

import (
	"errors"
	"os/exec"
	"time"
)

// Status is a point-in-time snapshot of the supervised process.
type Status struct {
	Name       string    `json:"name"`
	Running    bool      `json:"running"`
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at"`
	ExitErr    error     `json:"exit_error,omitempty"`
	Restarts   int       `json:"restarts"`
	CPUPercent float64   `json:"cpu_percent,omitempty"`
	RSSBytes   uint64    `json:"rss_bytes,omitempty"`
}

// ExitStatus extracts the numeric exit code from a snapshot: 0 for a clean
// exit, the child's code for a normal failure, -1 when the process was
// signaled or the code is unknown.
func (s Status) ExitStatus() int {
	if s.ExitErr == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(s.ExitErr, &ee) {
		return ee.ExitCode()
	}
	return -1
}
