package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind labels a lifecycle journal entry.
type Kind string

const (
	KindSpawned      Kind = "spawned"
	KindReady        Kind = "ready"
	KindExited       Kind = "exited"
	KindSpawnFailed  Kind = "spawn_failed"
	KindRestarting   Kind = "restarting"
	KindGaveUp       Kind = "gave_up"
	KindStopped      Kind = "stopped"
	KindWindowClosed Kind = "window_closed"
)

// Entry is one persisted lifecycle event of the supervised core.
type Entry struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name"`
	PID        int       `json:"pid"`
	Detail     string    `json:"detail,omitempty"`
}

// NewEntry stamps an entry with a fresh ID and UTC timestamp.
func NewEntry(kind Kind, name string, pid int, detail string) Entry {
	return Entry{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Name:       name,
		PID:        pid,
		Detail:     detail,
	}
}

// Sink is a destination for journal entries. Implementations must be safe
// for concurrent use; Send failures are logged by callers, never fatal.
type Sink interface {
	Send(ctx context.Context, e Entry) error
}
