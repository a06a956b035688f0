package process

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// Process is the exclusive owner of the spawned core's OS handle. Callers
// outside this package only ever see Status snapshots; the *exec.Cmd never
// escapes. All accessors lock internally.
type Process struct {
	mu         sync.Mutex
	spec       Spec
	cmd        *exec.Cmd
	status     Status
	stopping   bool // Stop requested; suppresses restart decisions upstream
	restarts   int
	outCloser  io.WriteCloser
	errCloser  io.WriteCloser
	devNullF   *os.File      // single handle shared across respawns
	waitDone   chan struct{} // closed by the waiter once cmd.Wait returns
	monitoring bool          // a waiter goroutine owns cmd.Wait
}

func New(spec Spec) *Process { return &Process{spec: spec} }

// UpdateSpec replaces the spec under lock.
func (p *Process) UpdateSpec(s Spec) {
	p.mu.Lock()
	p.spec = s
	p.mu.Unlock()
}

// GetSpec returns a copy of the current spec.
func (p *Process) GetSpec() Spec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spec
}

// ConfigureCmd builds the *exec.Cmd with workdir, merged environment,
// process-group attributes and rotating stdout/stderr capture.
func (p *Process) ConfigureCmd(mergedEnv []string) *exec.Cmd {
	p.mu.Lock()
	spec := p.spec
	p.mu.Unlock()

	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(mergedEnv) > 0 {
		cmd.Env = mergedEnv
	}
	configureSysProcAttr(cmd, spec)

	if spec.Log.Dir != "" || spec.Log.StdoutPath != "" || spec.Log.StderrPath != "" {
		if spec.Log.Dir != "" {
			_ = os.MkdirAll(spec.Log.Dir, 0o750)
		}
		outW, errW, _ := spec.Log.Writers(spec.Name)
		p.ensureLogClosers(outW, errW)
		ow, ew := p.outErrClosers()
		cmd.Stdout = ow
		cmd.Stderr = ew
	}
	if cmd.Stdout == nil || cmd.Stderr == nil {
		if f := p.devNull(); f != nil {
			if cmd.Stdout == nil {
				cmd.Stdout = f
			}
			if cmd.Stderr == nil {
				cmd.Stderr = f
			}
		}
	}
	return cmd
}

// devNull returns a lazily opened /dev/null handle. os/exec dups caller
// *os.File descriptors into the child without closing them, so the handle
// is opened once and reused for every respawn instead of leaking two
// descriptors per spawn.
func (p *Process) devNull() *os.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.devNullF == nil {
		p.devNullF, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	return p.devNullF
}

// TryStart atomically starts the command, records running state, and writes
// the PID file so it is visible as soon as TryStart returns.
func (p *Process) TryStart(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	p.setStarted(cmd)
	p.WritePIDFile()
	return nil
}

func (p *Process) setStarted(cmd *exec.Cmd) {
	p.mu.Lock()
	p.cmd = cmd
	p.waitDone = make(chan struct{})
	p.status.Name = p.spec.Name
	p.status.Running = true
	p.status.PID = cmd.Process.Pid
	p.status.StartedAt = time.Now()
	p.status.StoppedAt = time.Time{}
	p.status.ExitErr = nil
	p.status.Restarts = p.restarts
	p.stopping = false
	p.mu.Unlock()
}

// CopyCmd returns the underlying command handle. Package-internal use only;
// it must never be handed across the supervisor boundary.
func (p *Process) CopyCmd() *exec.Cmd {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd
}

// CloseWaitDone signals waiters that cmd.Wait has returned.
func (p *Process) CloseWaitDone() {
	p.mu.Lock()
	if p.waitDone != nil {
		close(p.waitDone)
		p.waitDone = nil
	}
	p.mu.Unlock()
}

// WaitDoneChan returns the channel closed when the current run is reaped,
// or nil when no run is in flight.
func (p *Process) WaitDoneChan() chan struct{} {
	p.mu.Lock()
	wd := p.waitDone
	p.mu.Unlock()
	return wd
}

// MarkExited records the exit outcome of the current run.
func (p *Process) MarkExited(err error) {
	p.mu.Lock()
	p.status.Running = false
	p.status.StoppedAt = time.Now()
	p.status.ExitErr = err
	p.mu.Unlock()
}

func (p *Process) SetStopRequested(v bool) {
	p.mu.Lock()
	p.stopping = v
	p.mu.Unlock()
}

func (p *Process) StopRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopping
}

func (p *Process) IncRestarts() int {
	p.mu.Lock()
	p.restarts++
	p.status.Restarts = p.restarts
	v := p.restarts
	p.mu.Unlock()
	return v
}

// MonitoringStartIfNeeded claims the single-waiter role. Returns true when
// the caller now owns cmd.Wait for the current run.
func (p *Process) MonitoringStartIfNeeded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.monitoring {
		return false
	}
	p.monitoring = true
	return true
}

func (p *Process) MonitoringStop() {
	p.mu.Lock()
	p.monitoring = false
	p.mu.Unlock()
}

// IsMonitoring reports whether a waiter goroutine owns cmd.Wait. When true,
// Stop/Kill must not call cmd.Wait themselves; they wait on waitDone.
func (p *Process) IsMonitoring() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.monitoring
}

func (p *Process) ensureLogClosers(stdout, stderr io.WriteCloser) {
	p.mu.Lock()
	if p.outCloser == nil && stdout != nil {
		p.outCloser = stdout
	}
	if p.errCloser == nil && stderr != nil {
		p.errCloser = stderr
	}
	p.mu.Unlock()
}

func (p *Process) outErrClosers() (io.WriteCloser, io.WriteCloser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outCloser, p.errCloser
}

// CloseWriters releases the rotating log writers after the run ends.
func (p *Process) CloseWriters() {
	p.mu.Lock()
	if p.outCloser != nil {
		_ = p.outCloser.Close()
		p.outCloser = nil
	}
	if p.errCloser != nil {
		_ = p.errCloser.Close()
		p.errCloser = nil
	}
	p.mu.Unlock()
}

// WritePIDFile persists the current PID when a pidfile is configured.
func (p *Process) WritePIDFile() {
	p.mu.Lock()
	pidFile := p.spec.PIDFile
	pid := 0
	if p.cmd != nil && p.cmd.Process != nil {
		pid = p.cmd.Process.Pid
	}
	p.mu.Unlock()

	if pidFile == "" || pid == 0 {
		return
	}
	_ = os.MkdirAll(filepath.Dir(pidFile), 0o750)
	_ = os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0o600)
}

// RemovePIDFile is best-effort.
func (p *Process) RemovePIDFile() {
	p.mu.Lock()
	pidFile := p.spec.PIDFile
	p.mu.Unlock()
	if pidFile != "" {
		_ = os.Remove(pidFile)
	}
}

// Snapshot returns a copy of the current status enriched with resource
// usage when the process is alive.
func (p *Process) Snapshot() Status {
	p.mu.Lock()
	s := p.status
	p.mu.Unlock()
	if s.Running && s.PID > 0 {
		if cpu, rss, err := sampleUsage(s.PID); err == nil {
			s.CPUPercent = cpu
			s.RSSBytes = rss
		}
	}
	return s
}

// DetectAlive probes liveness without racing os/exec internals.
func (p *Process) DetectAlive() bool {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return false
	}
	pid := cmd.Process.Pid
	// A quickly-exiting child lingers as a zombie until reaped; report it dead.
	if runtime.GOOS == "linux" {
		if isZombieLinux(pid) {
			return false
		}
		return killProcess(pid, 0) == nil
	}
	return killGroup(pid, 0) == nil
}

// isZombieLinux reports whether /proc/<pid>/status shows state Z.
func isZombieLinux(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}

// Stop requests graceful termination (SIGTERM to the group), waits up to
// wait, then escalates to SIGKILL. It always converges: the caller observes
// a reaped process or a best-effort kill, never an error.
func (p *Process) Stop(wait time.Duration) {
	if !p.DetectAlive() {
		return
	}
	p.SetStopRequested(true)
	cmd := p.CopyCmd()
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	_ = killGroup(pid, syscall.SIGTERM)
	p.awaitExit(cmd, pid, wait)
}

// Kill sends SIGKILL to the process group and reaps promptly.
func (p *Process) Kill() {
	cmd := p.CopyCmd()
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	_ = killGroup(pid, syscall.SIGKILL)
	p.awaitExit(cmd, pid, 200*time.Millisecond)
}

// awaitExit waits for the current run to be reaped, escalating to SIGKILL
// after the grace period. Exactly one goroutine may own cmd.Wait; when a
// monitor owns it we block on waitDone, otherwise we claim the wait here.
func (p *Process) awaitExit(cmd *exec.Cmd, pid int, grace time.Duration) {
	if p.IsMonitoring() || !p.MonitoringStartIfNeeded() {
		wd := p.WaitDoneChan()
		if wd == nil {
			time.Sleep(grace)
			return
		}
		select {
		case <-wd:
		case <-time.After(grace):
			_ = killGroup(pid, syscall.SIGKILL)
			select {
			case <-wd:
			case <-time.After(200 * time.Millisecond):
				// best-effort
			}
		}
		return
	}
	// We claimed the waiter role: reap here and finalize state.
	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		p.CloseWaitDone()
		p.MarkExited(err)
		done <- err
	}()
	select {
	case <-done:
	case <-time.After(grace):
		_ = killGroup(pid, syscall.SIGKILL)
		select {
		case <-done:
		case <-time.After(200 * time.Millisecond):
			// best-effort
		}
	}
	p.CloseWriters()
	p.MonitoringStop()
}
