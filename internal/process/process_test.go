//go:build !windows

package process

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestStartStopLifecycle(t *testing.T) {
	p := New(Spec{Name: "lifecycle", Command: "sleep", Args: []string{"10"}})
	cmd := p.ConfigureCmd(nil)
	if err := p.TryStart(cmd); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	st := p.Snapshot()
	if !st.Running || st.PID == 0 {
		t.Fatalf("expected running snapshot, got %+v", st)
	}
	if !p.DetectAlive() {
		t.Fatal("DetectAlive false for a live process")
	}

	p.Stop(2 * time.Second)
	st = p.Snapshot()
	if st.Running {
		t.Fatalf("still running after stop: %+v", st)
	}
	if p.DetectAlive() {
		t.Fatal("DetectAlive true after stop")
	}
	// Stopping again is harmless.
	p.Stop(time.Second)
}

func TestStopEscalatesToKill(t *testing.T) {
	// The trap swallows SIGTERM, so only the SIGKILL escalation can end it.
	p := New(Spec{Name: "stubborn", Command: `sh -c 'trap "" TERM; sleep 30'`})
	cmd := p.ConfigureCmd(nil)
	if err := p.TryStart(cmd); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	begin := time.Now()
	p.Stop(300 * time.Millisecond)
	if p.DetectAlive() {
		t.Fatal("process survived kill escalation")
	}
	if elapsed := time.Since(begin); elapsed > 5*time.Second {
		t.Fatalf("stop took too long: %s", elapsed)
	}
}

func TestDetectAliveAfterExit(t *testing.T) {
	p := New(Spec{Name: "quick", Command: "true"})
	cmd := p.ConfigureCmd(nil)
	if err := p.TryStart(cmd); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if p.MonitoringStartIfNeeded() {
		go func() {
			err := cmd.Wait()
			p.CloseWaitDone()
			p.MarkExited(err)
			p.MonitoringStop()
		}()
	}
	deadline := time.Now().Add(3 * time.Second)
	for p.DetectAlive() {
		if time.Now().After(deadline) {
			t.Fatal("DetectAlive never turned false after exit")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestPIDFileWrittenAndRemoved(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "core.pid")
	p := New(Spec{Name: "pidfile", Command: "sleep", Args: []string{"5"}, PIDFile: pidFile})
	cmd := p.ConfigureCmd(nil)
	if err := p.TryStart(cmd); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	b, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("pidfile not written: %v", err)
	}
	pid, err := strconv.Atoi(string(b))
	if err != nil || pid != p.Snapshot().PID {
		t.Fatalf("pidfile content %q does not match pid %d", b, p.Snapshot().PID)
	}

	p.Stop(2 * time.Second)
	p.RemovePIDFile()
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Fatalf("pidfile still present: %v", err)
	}
}

func TestRepeatedSpawnsDoNotLeakDescriptors(t *testing.T) {
	if _, err := os.Stat("/proc/self/fd"); err != nil {
		t.Skip("no /proc/self/fd on this platform")
	}
	countFDs := func() int {
		entries, err := os.ReadDir("/proc/self/fd")
		if err != nil {
			t.Fatalf("read /proc/self/fd: %v", err)
		}
		return len(entries)
	}
	p := New(Spec{Name: "fdcheck", Command: "true"})
	runOnce := func() {
		cmd := p.ConfigureCmd(nil)
		if err := p.TryStart(cmd); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		err := cmd.Wait()
		p.CloseWaitDone()
		p.MarkExited(err)
	}

	// First spawn may open the shared /dev/null handle; measure after it.
	runOnce()
	before := countFDs()
	for i := 0; i < 10; i++ {
		runOnce()
	}
	after := countFDs()
	if after > before+2 {
		t.Fatalf("descriptors grew across respawns: %d -> %d", before, after)
	}
}

func TestConfigureCmdMergedEnvAndWorkDir(t *testing.T) {
	dir := t.TempDir()
	p := New(Spec{Name: "envtest", Command: "true", WorkDir: dir})
	cmd := p.ConfigureCmd([]string{"CORE_PORT=8765"})
	if cmd.Dir != dir {
		t.Fatalf("workdir = %q, want %q", cmd.Dir, dir)
	}
	found := false
	for _, kv := range cmd.Env {
		if kv == "CORE_PORT=8765" {
			found = true
		}
	}
	if !found {
		t.Fatalf("merged env missing override: %v", cmd.Env)
	}
}

func TestExitStatus(t *testing.T) {
	p := New(Spec{Name: "status", Command: "sh", Args: []string{"-c", "exit 42"}})
	cmd := p.ConfigureCmd(nil)
	if err := p.TryStart(cmd); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	err := cmd.Wait()
	p.CloseWaitDone()
	p.MarkExited(err)
	if got := p.Snapshot().ExitStatus(); got != 42 {
		t.Fatalf("ExitStatus = %d, want 42", got)
	}
}

func TestStdoutCapturedToLogDir(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{Name: "logging", Command: "sh", Args: []string{"-c", "echo captured"}}
	spec.Log.Dir = dir
	p := New(spec)
	cmd := p.ConfigureCmd(nil)
	if err := p.TryStart(cmd); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	err := cmd.Wait()
	p.CloseWaitDone()
	p.MarkExited(err)
	p.CloseWriters()

	matches, _ := filepath.Glob(filepath.Join(dir, "*"))
	if len(matches) == 0 {
		t.Fatal("no log files written")
	}
	var total int
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			t.Fatalf("read %s: %v", m, err)
		}
		total += len(b)
	}
	if total == 0 {
		t.Fatal("captured output is empty")
	}
}
