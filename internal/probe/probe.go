package probe

import (
	"context"
	"fmt"
	"time"
)

// Probe decides whether the spawned core has become usable. Implementations
// must be safe for concurrent use and must honor ctx cancellation.
type Probe interface {
	// Ready returns nil once the core is reachable.
	Ready(ctx context.Context) error
	// Describe returns a human-readable description of the probe.
	Describe() string
}

// DefaultInterval is the polling cadence used by WaitReady when the caller
// passes a non-positive interval.
const DefaultInterval = 100 * time.Millisecond

// ErrNeverReady is returned by WaitReady when the probe did not succeed
// within the timeout.
type ErrNeverReady struct {
	Probe   string
	Timeout time.Duration
	Last    error
}

func (e *ErrNeverReady) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("probe %s not ready within %s: %v", e.Probe, e.Timeout, e.Last)
	}
	return fmt.Sprintf("probe %s not ready within %s", e.Probe, e.Timeout)
}

func (e *ErrNeverReady) Unwrap() error { return e.Last }

// WaitReady polls p until it succeeds, the timeout elapses, or ctx is
// canceled. It is the only blocking point of supervisor startup and is
// always bounded.
func WaitReady(ctx context.Context, p Probe, timeout, interval time.Duration) error {
	if p == nil {
		return nil
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	var last error
	// Probe immediately once before settling into the tick loop.
	if last = p.Ready(ctx); last == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return &ErrNeverReady{Probe: p.Describe(), Timeout: timeout, Last: last}
		case <-tick.C:
			if last = p.Ready(ctx); last == nil {
				return nil
			}
		}
	}
}
