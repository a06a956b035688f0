package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mistlabs/coreshell/internal/env"
	"github.com/mistlabs/coreshell/internal/journal"
	"github.com/mistlabs/coreshell/internal/metrics"
	"github.com/mistlabs/coreshell/internal/probe"
	"github.com/mistlabs/coreshell/internal/process"
)

// State is the supervisor's lifecycle state.
//
// State machine: Stopped -> Starting -> Running -> Stopping -> Stopped.
// All transitions happen on the single state-machine goroutine, so health
// ticks never observe a half-initialized process.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

type commandAction int

const (
	actionStart commandAction = iota
	actionStop
	actionShutdown
)

type command struct {
	action  commandAction
	ctx     context.Context
	timeout time.Duration
	reply   chan error
}

// exitMsg is posted by the waiter goroutine once cmd.Wait returns. The
// StartedAt stamp identifies the run so a stale exit from a previous run
// is never attributed to the current one.
type exitMsg struct {
	status process.Status
}

// Supervisor owns the spawn/monitor/terminate lifecycle of the core
// process. At most one supervised process is active per Supervisor; the OS
// handle never leaves the internal process package.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger
	envs   *env.Env
	proc   *process.Process

	cmdChan     chan command
	exitCh      chan exitMsg
	restart     chan struct{}
	doneCh      chan struct{}
	events      chan Event
	journalCh   chan journal.Entry
	journalDone chan struct{}

	mu          sync.RWMutex
	state       State
	sinks       []journal.Sink
	restarts    int
	startCancel context.CancelFunc

	bo           *backoff.ExponentialBackOff
	pendingTimer *time.Timer
}

// New constructs a supervisor and starts its state-machine goroutine.
// The goroutine idles until Start arrives; Shutdown releases it.
func New(cfg Config) *Supervisor {
	cfg = cfg.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.RestartInterval
	bo.MaxElapsedTime = 0 // the restart budget, not elapsed time, bounds retries

	s := &Supervisor{
		cfg:         cfg,
		logger:      slog.Default(),
		envs:        env.New(),
		proc:        process.New(cfg.Process),
		cmdChan:     make(chan command, 16),
		exitCh:      make(chan exitMsg, 4),
		restart:     make(chan struct{}, 1),
		doneCh:      make(chan struct{}),
		events:      make(chan Event, 64),
		journalCh:   make(chan journal.Entry, 64),
		journalDone: make(chan struct{}),
		state:       StateStopped,
		bo:          bo,
	}
	go s.run()
	go s.drainJournal()
	return s
}

// SetLogger replaces the supervisor's logger.
func (s *Supervisor) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetJournal configures journal sinks.
func (s *Supervisor) SetJournal(sinks ...journal.Sink) {
	s.mu.Lock()
	s.sinks = append([]journal.Sink(nil), sinks...)
	s.mu.Unlock()
}

// SetGlobalEnv records "K=V" overrides merged into the core's environment.
func (s *Supervisor) SetGlobalEnv(kvs []string) { s.envs.SetAll(kvs) }

// Events returns the lifecycle notification stream. Publishing never
// blocks supervision; a full buffer drops the event with a log line.
func (s *Supervisor) Events() <-chan Event { return s.events }

// Start spawns the core and waits for its readiness probe, bounded by
// StartupTimeout. When supervision is disabled it returns ErrNotManaged
// without spawning anything. Canceling ctx aborts an in-flight startup
// immediately and leaves the supervisor stopped.
func (s *Supervisor) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return ErrNotManaged
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	reply := make(chan error, 1)
	select {
	case s.cmdChan <- command{action: actionStart, ctx: ctx, reply: reply}:
		return <-reply
	case <-s.doneCh:
		return fmt.Errorf("supervisor shut down")
	}
}

// Stop requests graceful termination and escalates to kill after the
// configured (or given) timeout. It is idempotent and infallible: the
// supervisor always converges to Stopped with the OS handle reaped. An
// in-flight startup wait — explicit or a policy respawn — is canceled
// immediately, never waited out.
func (s *Supervisor) Stop(timeout time.Duration) {
	if !s.cfg.Enabled {
		return
	}
	if timeout <= 0 {
		timeout = s.cfg.ShutdownTimeout
	}
	s.cancelStartup()
	reply := make(chan error, 1)
	select {
	case s.cmdChan <- command{action: actionStop, timeout: timeout, reply: reply}:
		<-reply
	case <-s.doneCh:
	}
}

// Shutdown stops the core if needed, terminates the state machine, and
// waits for the journal queue to flush.
func (s *Supervisor) Shutdown() {
	s.cancelStartup()
	reply := make(chan error, 1)
	select {
	case s.cmdChan <- command{action: actionShutdown, reply: reply}:
		<-reply
	case <-s.doneCh:
	}
	<-s.journalDone
}

// cancelStartup aborts an in-flight startup probe wait, if any. Stop and
// Shutdown call it before queuing their command so teardown preempts the
// wait instead of queuing behind it for up to StartupTimeout.
func (s *Supervisor) cancelStartup() {
	s.mu.Lock()
	cancel := s.startCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// PollHealth returns the current state without blocking.
func (s *Supervisor) PollHealth() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Status returns a read-only snapshot of the supervised process.
func (s *Supervisor) Status() (process.Status, State) {
	st := s.proc.Snapshot()
	return st, s.PollHealth()
}

// Restarts reports how many policy-driven respawns have happened.
func (s *Supervisor) Restarts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restarts
}

// NotifyWindowClosed records that the shell's window closed. Emitted by the
// bootstrapper right before it asks the supervisor to stop.
func (s *Supervisor) NotifyWindowClosed() {
	s.publish(Event{Kind: EventWindowClosed, Name: s.cfg.Process.Name, At: time.Now()})
	s.journal(journal.KindWindowClosed, 0, "")
}

// run is the single state-machine goroutine. Explicit commands, exit
// notifications, restart timers and health ticks are all serialized here.
func (s *Supervisor) run() {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case cmd := <-s.cmdChan:
			switch cmd.action {
			case actionStart:
				cmd.reply <- s.handleStart(cmd.ctx)
			case actionStop:
				s.handleStop(cmd.timeout)
				cmd.reply <- nil
			case actionShutdown:
				s.handleStop(s.cfg.ShutdownTimeout)
				cmd.reply <- nil
				close(s.doneCh)
				close(s.events)
				return
			}
		case msg := <-s.exitCh:
			s.onExit(msg)
		case <-s.restart:
			s.onRestartDue()
		case <-tick.C:
			s.healthTick()
		}
	}
}

func (s *Supervisor) handleStart(ctx context.Context) error {
	switch s.PollHealth() {
	case StateRunning:
		if s.proc.DetectAlive() {
			st := s.proc.Snapshot()
			return fmt.Errorf("core %q already running (pid %d)", s.cfg.Process.Name, st.PID)
		}
		s.setState(StateStopped)
	case StateStopped:
		// fresh start below
	default:
		return fmt.Errorf("core %q in state %s, cannot start", s.cfg.Process.Name, s.PollHealth())
	}
	s.cancelPendingRestart()
	// An explicit Start opens a fresh restart budget; a core that gave up
	// earlier is not launched pre-exhausted.
	s.mu.Lock()
	s.restarts = 0
	s.mu.Unlock()
	s.bo.Reset()
	return s.doStart(ctx)
}

// doStart spawns the core and waits for readiness. Runs on the machine
// goroutine; a queued Stop executes as soon as doStart returns, and ctx
// cancellation (window close) aborts the probe wait immediately.
func (s *Supervisor) doStart(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	// Arm the startup cancel hook so a Stop/Shutdown issued while we are
	// blocked in the readiness wait aborts it right away. This covers
	// policy respawns too, which have no caller context of their own.
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.startCancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.startCancel = nil
		s.mu.Unlock()
		cancel()
	}()
	s.setState(StateStarting)

	name := s.cfg.Process.Name
	s.proc.SetStopRequested(false)
	cmd := s.proc.ConfigureCmd(s.envs.Merge(s.cfg.Process.Env))
	if err := s.proc.TryStart(cmd); err != nil {
		return s.failSpawn(classifySpawn(err))
	}
	if s.proc.MonitoringStartIfNeeded() {
		go s.waitAndNotify()
	}
	st := s.proc.Snapshot()
	s.logger.Info("core spawned", "name", name, "pid", st.PID)
	s.journal(journal.KindSpawned, st.PID, "")

	// Readiness wait: the only blocking point of startup, bounded by
	// StartupTimeout and interruptible by ctx or the core dying early.
	probeStart := time.Now()
	if err := s.waitReady(ctx); err != nil {
		s.proc.Stop(time.Second)
		s.drainExit()
		if ctx.Err() != nil {
			s.setState(StateStopped)
			s.logger.Warn("core startup canceled", "name", name)
			return ctx.Err()
		}
		return s.failSpawn(classifySpawn(err))
	}
	metrics.ObserveStartupProbe(name, time.Since(probeStart).Seconds())
	metrics.IncStart(name)
	s.setState(StateRunning)
	s.journal(journal.KindReady, st.PID, "")
	s.publish(Event{Kind: EventCoreStarted, Name: name, PID: st.PID, At: time.Now()})
	s.logger.Info("core ready", "name", name, "pid", st.PID, "probe_wait", time.Since(probeStart))
	return nil
}

// waitReady runs the readiness probe, aborting early when the core exits
// before becoming ready.
func (s *Supervisor) waitReady(ctx context.Context) error {
	if s.cfg.Probe == nil {
		return nil
	}
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if wd := s.proc.WaitDoneChan(); wd != nil {
		go func() {
			select {
			case <-wd:
				cancel()
			case <-probeCtx.Done():
			}
		}()
	}
	err := probe.WaitReady(probeCtx, s.cfg.Probe, s.cfg.StartupTimeout, s.cfg.ProbeInterval)
	if err != nil && ctx.Err() == nil && probeCtx.Err() != nil {
		// The core died while we were probing.
		st := s.proc.Snapshot()
		return fmt.Errorf("core exited during startup (status %d)", st.ExitStatus())
	}
	return err
}

func (s *Supervisor) failSpawn(serr *SpawnError) error {
	name := s.cfg.Process.Name
	s.setState(StateStopped)
	metrics.IncSpawnFailure(name, string(serr.Reason))
	s.journal(journal.KindSpawnFailed, 0, serr.Error())
	s.publish(Event{Kind: EventCoreSpawnFailed, Name: name, Reason: string(serr.Reason), At: time.Now()})
	s.logger.Error("core spawn failed", "name", name, "reason", serr.Reason, "error", serr.Err)
	return serr
}

func (s *Supervisor) handleStop(timeout time.Duration) {
	s.cancelPendingRestart()
	switch s.PollHealth() {
	case StateStopped:
		return // idempotent: a second stop is a no-op
	case StateRunning, StateStarting:
	case StateStopping:
		return
	}
	s.doStop(timeout)
}

func (s *Supervisor) doStop(timeout time.Duration) {
	name := s.cfg.Process.Name
	s.setState(StateStopping)
	s.proc.SetStopRequested(true)
	s.proc.Stop(timeout)
	s.drainExit()
	s.proc.RemovePIDFile()
	s.setState(StateStopped)

	st := s.proc.Snapshot()
	metrics.IncStop(name)
	s.journal(journal.KindStopped, st.PID, "")
	s.publish(Event{Kind: EventCoreStopped, Name: name, PID: st.PID, At: time.Now()})
	s.logger.Info("core stopped", "name", name, "pid", st.PID)
}

// onExit handles an exit the supervisor did not request.
func (s *Supervisor) onExit(msg exitMsg) {
	if s.PollHealth() != StateRunning {
		return // explicit stop in progress or already handled
	}
	cur := s.proc.Snapshot()
	if !cur.StartedAt.Equal(msg.status.StartedAt) {
		return // stale exit from a previous run
	}

	name := s.cfg.Process.Name
	status := msg.status.ExitStatus()
	s.setState(StateStopped)
	metrics.IncStop(name)
	s.journal(journal.KindExited, msg.status.PID, fmt.Sprintf("exit status %d", status))
	s.publish(Event{Kind: EventCoreExited, Name: name, PID: msg.status.PID, ExitStatus: status, At: time.Now()})
	s.logger.Warn("core exited unexpectedly", "name", name, "pid", msg.status.PID, "status", status)

	switch s.cfg.RestartPolicy {
	case RestartNone:
		return
	case RestartOnCrash:
		if status == 0 {
			return
		}
	case RestartAlways:
	}
	s.scheduleRestart()
}

// scheduleRestart arms the backoff timer for the next respawn, or gives up
// once the restart budget is spent. The timer posts to the machine channel
// so an intervening Stop can cancel it.
func (s *Supervisor) scheduleRestart() {
	name := s.cfg.Process.Name
	s.mu.Lock()
	attempts := s.restarts
	s.mu.Unlock()
	if attempts >= s.cfg.MaxRestarts {
		s.journal(journal.KindGaveUp, 0, fmt.Sprintf("restart budget %d exhausted", s.cfg.MaxRestarts))
		s.publish(Event{Kind: EventCoreGaveUp, Name: name, Reason: "restart budget exhausted", At: time.Now()})
		s.logger.Error("core restart budget exhausted", "name", name, "restarts", attempts)
		return
	}
	delay := s.bo.NextBackOff()
	s.journal(journal.KindRestarting, 0, fmt.Sprintf("respawn in %s", delay))
	s.publish(Event{Kind: EventCoreRestarting, Name: name, Reason: delay.String(), At: time.Now()})
	s.logger.Info("core respawn scheduled", "name", name, "delay", delay, "attempt", attempts+1)
	s.pendingTimer = time.AfterFunc(delay, func() {
		select {
		case s.restart <- struct{}{}:
		default:
		}
	})
}

func (s *Supervisor) onRestartDue() {
	if s.pendingTimer == nil || s.PollHealth() != StateStopped {
		return
	}
	s.pendingTimer = nil
	s.mu.Lock()
	s.restarts++
	s.mu.Unlock()
	_ = s.proc.IncRestarts()
	metrics.IncRestart(s.cfg.Process.Name)
	if err := s.doStart(context.Background()); err != nil {
		if errors.Is(err, context.Canceled) {
			return // teardown preempted the respawn; the Stop is queued next
		}
		// Spawn failure during a respawn consumes budget like a crash.
		s.scheduleRestart()
	}
}

func (s *Supervisor) cancelPendingRestart() {
	if s.pendingTimer != nil {
		s.pendingTimer.Stop()
		s.pendingTimer = nil
	}
	select {
	case <-s.restart:
	default:
	}
}

// healthTick is a safety net behind the waiter goroutine: if the exit
// notification was lost, the liveness check still converges the state.
func (s *Supervisor) healthTick() {
	if s.PollHealth() != StateRunning {
		return
	}
	if !s.proc.DetectAlive() && s.proc.WaitDoneChan() == nil {
		s.onExit(exitMsg{status: s.proc.Snapshot()})
	}
}

// waitAndNotify owns cmd.Wait for the current run, finalizes process state
// and posts the exit to the state machine.
func (s *Supervisor) waitAndNotify() {
	cmd := s.proc.CopyCmd()
	var err error
	if cmd != nil {
		err = cmd.Wait()
	}
	s.proc.CloseWaitDone()
	s.proc.MarkExited(err)
	s.proc.CloseWriters()
	s.proc.MonitoringStop()
	select {
	case s.exitCh <- exitMsg{status: s.proc.Snapshot()}:
	case <-s.doneCh:
	}
}

func (s *Supervisor) drainExit() {
	for {
		select {
		case <-s.exitCh:
		default:
			return
		}
	}
}

func (s *Supervisor) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev == next {
		return
	}
	name := s.cfg.Process.Name
	metrics.RecordStateTransition(name, prev.String(), next.String())
	metrics.SetCurrentState(name, prev.String(), false)
	metrics.SetCurrentState(name, next.String(), true)
}

func (s *Supervisor) publish(e Event) {
	select {
	case <-s.doneCh:
		return
	default:
	}
	select {
	case s.events <- e:
	default:
		s.logger.Warn("event buffer full, dropping", "kind", e.Kind)
	}
}

// journal queues an entry for the drain goroutine. Sink I/O never runs on
// the state-machine goroutine: a slow sink must not stall health ticks or
// queued stop commands.
func (s *Supervisor) journal(kind journal.Kind, pid int, detail string) {
	s.mu.RLock()
	n := len(s.sinks)
	s.mu.RUnlock()
	if n == 0 {
		return
	}
	entry := journal.NewEntry(kind, s.cfg.Process.Name, pid, detail)
	select {
	case s.journalCh <- entry:
	default:
		s.logger.Warn("journal queue full, dropping", "kind", kind)
	}
}

// drainJournal delivers queued entries to the sinks. On shutdown it flushes
// whatever is buffered, then closes journalDone so Shutdown can wait for a
// complete journal.
func (s *Supervisor) drainJournal() {
	defer close(s.journalDone)
	for {
		select {
		case e := <-s.journalCh:
			s.sendJournal(e)
		case <-s.doneCh:
			for {
				select {
				case e := <-s.journalCh:
					s.sendJournal(e)
				default:
					return
				}
			}
		}
	}
}

func (s *Supervisor) sendJournal(e journal.Entry) {
	s.mu.RLock()
	sinks := append([]journal.Sink(nil), s.sinks...)
	s.mu.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, sink := range sinks {
		if err := sink.Send(ctx, e); err != nil {
			s.logger.Warn("journal sink failed", "kind", e.Kind, "error", err)
		}
	}
}
