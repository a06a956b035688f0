package supervisor

import "time"

// EventKind labels a lifecycle notification.
type EventKind string

const (
	// EventCoreStarted fires once the spawned core passed its readiness probe.
	EventCoreStarted EventKind = "core_started"
	// EventCoreExited fires when the core exits without an explicit Stop.
	EventCoreExited EventKind = "core_exited"
	// EventCoreSpawnFailed fires when a spawn attempt fails.
	EventCoreSpawnFailed EventKind = "core_spawn_failed"
	// EventCoreRestarting fires before a policy-driven respawn attempt.
	EventCoreRestarting EventKind = "core_restarting"
	// EventCoreGaveUp fires when the restart budget is exhausted.
	EventCoreGaveUp EventKind = "core_gave_up"
	// EventCoreStopped fires after an explicit Stop converged.
	EventCoreStopped EventKind = "core_stopped"
	// EventWindowClosed records that the shell forwarded a window close.
	EventWindowClosed EventKind = "window_closed"
)

// Event is a read-only lifecycle notification. The process handle itself
// never rides along; consumers get names, PIDs and statuses only.
type Event struct {
	Kind       EventKind `json:"kind"`
	Name       string    `json:"name"`
	PID        int       `json:"pid,omitempty"`
	ExitStatus int       `json:"exit_status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}
