package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/mistlabs/coreshell/internal/probe"
)

// ErrNotManaged is returned by Start when the config disables supervision.
// Callers treat it as "nothing to do", not a failure.
var ErrNotManaged = errors.New("core process is not managed")

// SpawnReason classifies why a spawn attempt failed.
type SpawnReason string

const (
	ReasonExecutableNotFound SpawnReason = "executable_not_found"
	ReasonPermissionDenied   SpawnReason = "permission_denied"
	ReasonTimeout            SpawnReason = "timeout"
	ReasonUnknown            SpawnReason = "unknown"
)

// SpawnError reports a failed Start. The supervisor never proceeds as if
// the core were running after returning one.
type SpawnError struct {
	Reason SpawnReason
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn core: %s: %v", e.Reason, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// classifySpawn maps an exec/probe error onto the spawn taxonomy.
func classifySpawn(err error) *SpawnError {
	var nr *probe.ErrNeverReady
	switch {
	case errors.As(err, &nr):
		return &SpawnError{Reason: ReasonTimeout, Err: err}
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return &SpawnError{Reason: ReasonExecutableNotFound, Err: err}
	case errors.Is(err, os.ErrPermission):
		return &SpawnError{Reason: ReasonPermissionDenied, Err: err}
	}
	return &SpawnError{Reason: ReasonUnknown, Err: err}
}
