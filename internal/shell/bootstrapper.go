package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mistlabs/coreshell/internal/supervisor"
)

// ErrRuntimeInit wraps a fatal windowing-runtime initialization failure
// (no display, resource exhaustion). The process must exit non-zero.
var ErrRuntimeInit = errors.New("windowing runtime initialization failed")

// BootState tracks the bootstrapper lifecycle. Transitions are
// one-directional: Uninitialized -> Initialized -> Running -> Terminating
// -> Terminated. There is no path back to Running once Terminating begins.
type BootState int32

const (
	BootUninitialized BootState = iota
	BootInitialized
	BootRunning
	BootTerminating
	BootTerminated
)

func (s BootState) String() string {
	switch s {
	case BootUninitialized:
		return "uninitialized"
	case BootInitialized:
		return "initialized"
	case BootRunning:
		return "running"
	case BootTerminating:
		return "terminating"
	case BootTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Bootstrapper wires the windowing runtime to the core supervisor. It owns
// the top-level run call; the supervisor handle stays read-only from the
// runtime's perspective (lifecycle notifications only, never the process
// handle).
type Bootstrapper struct {
	rt     Runtime
	sup    *supervisor.Supervisor
	logger *slog.Logger

	mu    sync.Mutex
	state BootState

	cancelStart context.CancelFunc
}

func NewBootstrapper(rt Runtime, sup *supervisor.Supervisor) *Bootstrapper {
	return &Bootstrapper{rt: rt, sup: sup, logger: slog.Default()}
}

func (b *Bootstrapper) SetLogger(l *slog.Logger) {
	if l != nil {
		b.logger = l
	}
}

// State returns the current lifecycle state.
func (b *Bootstrapper) State() BootState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Initialize builds the runtime context and installs the close handler.
// Fails with ErrRuntimeInit when the windowing system cannot be created.
func (b *Bootstrapper) Initialize() error {
	if st := b.State(); st != BootUninitialized {
		return fmt.Errorf("bootstrapper already %s", st)
	}
	if err := b.rt.Init(); err != nil {
		b.setState(BootTerminated)
		return fmt.Errorf("%w: %v", ErrRuntimeInit, err)
	}
	// Close requested cancels an in-flight supervisor startup immediately;
	// the stop itself happens when Run regains control.
	b.rt.OnCloseRequested(func() {
		b.mu.Lock()
		cancel := b.cancelStart
		b.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
	b.setState(BootInitialized)
	return nil
}

// Run starts the supervised core, hands the thread to the runtime's event
// loop, and on return tears the core down. It does not return until the
// window closes or a termination signal arrives. The core process is
// confirmed terminated before Run returns.
func (b *Bootstrapper) Run(ctx context.Context) error {
	if st := b.State(); st != BootInitialized {
		return fmt.Errorf("bootstrapper not initialized (state %s)", st)
	}
	b.setState(BootRunning)

	startCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancelStart = cancel
	b.mu.Unlock()
	defer cancel()

	done := make(chan struct{})
	go b.consumeEvents(done)

	err := b.sup.Start(startCtx)
	switch {
	case err == nil, errors.Is(err, supervisor.ErrNotManaged):
	case errors.Is(err, context.Canceled):
		// Window closed while the core was still starting: skip the run
		// loop and go straight to teardown.
		b.teardown(done)
		return nil
	default:
		// Spawn failure: refuse to proceed without the core.
		b.teardown(done)
		return err
	}

	runErr := b.rt.Run()
	b.teardown(done)
	return runErr
}

func (b *Bootstrapper) teardown(eventsDone chan struct{}) {
	b.setState(BootTerminating)
	b.sup.NotifyWindowClosed()
	b.sup.Stop(0)
	b.sup.Shutdown()
	<-eventsDone
	b.setState(BootTerminated)
}

// consumeEvents logs every lifecycle notification until the supervisor
// shuts down. The bootstrapper never sees the process handle, only events.
func (b *Bootstrapper) consumeEvents(done chan struct{}) {
	defer close(done)
	for e := range b.sup.Events() {
		switch e.Kind {
		case supervisor.EventCoreExited:
			b.logger.Warn("core exited", "name", e.Name, "pid", e.PID, "status", e.ExitStatus)
		case supervisor.EventCoreSpawnFailed:
			b.logger.Error("core spawn failed", "name", e.Name, "reason", e.Reason)
		case supervisor.EventCoreGaveUp:
			b.logger.Error("core gave up restarting", "name", e.Name, "reason", e.Reason)
		default:
			b.logger.Info("core lifecycle", "kind", string(e.Kind), "name", e.Name, "pid", e.PID)
		}
	}
}

// setState advances the one-directional state machine; regressions are
// ignored so teardown paths can be reentrant.
func (b *Bootstrapper) setState(next BootState) {
	b.mu.Lock()
	if next > b.state {
		b.state = next
	}
	b.mu.Unlock()
}
