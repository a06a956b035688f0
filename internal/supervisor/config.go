package supervisor

import (
	"fmt"
	"time"

	"github.com/mistlabs/coreshell/internal/probe"
	"github.com/mistlabs/coreshell/internal/process"
)

// RestartPolicy governs whether the supervisor relaunches a core that
// exited without an explicit Stop.
type RestartPolicy string

const (
	// RestartNone surfaces the exit and takes no further action.
	RestartNone RestartPolicy = "none"
	// RestartOnCrash respawns only after a non-zero exit.
	RestartOnCrash RestartPolicy = "on-crash"
	// RestartAlways respawns after any exit.
	RestartAlways RestartPolicy = "always"
)

// ParseRestartPolicy validates a config-file policy string. The empty
// string maps to RestartNone.
func ParseRestartPolicy(s string) (RestartPolicy, error) {
	switch RestartPolicy(s) {
	case "", RestartNone:
		return RestartNone, nil
	case RestartOnCrash:
		return RestartOnCrash, nil
	case RestartAlways:
		return RestartAlways, nil
	}
	return "", fmt.Errorf("unknown restart policy %q (want none, on-crash or always)", s)
}

// Defaults applied by Config.withDefaults.
const (
	DefaultStartupTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMaxRestarts     = 3
	DefaultRestartInterval = 500 * time.Millisecond
	DefaultProbeInterval   = 100 * time.Millisecond
)

// Config configures one supervisor instance. Multiple supervisors with
// independent configs may coexist in one process (no global state).
type Config struct {
	// Enabled controls whether the core lifecycle is managed at all.
	// When false, Start is a no-op returning ErrNotManaged.
	Enabled bool

	// Process describes how to launch the core.
	Process process.Spec

	// Probe decides readiness after spawn. Nil means the core counts as
	// ready as soon as the spawn succeeds.
	Probe probe.Probe

	RestartPolicy   RestartPolicy
	StartupTimeout  time.Duration // max wait for the readiness probe
	ShutdownTimeout time.Duration // max wait for graceful exit before SIGKILL
	MaxRestarts     int           // respawn cap for on-crash/always
	RestartInterval time.Duration // initial backoff between respawns
	ProbeInterval   time.Duration // readiness polling cadence
}

func (c Config) withDefaults() Config {
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = DefaultMaxRestarts
	}
	if c.RestartInterval <= 0 {
		c.RestartInterval = DefaultRestartInterval
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = DefaultProbeInterval
	}
	if c.RestartPolicy == "" {
		c.RestartPolicy = RestartNone
	}
	return c
}

// Validate checks the config before the supervisor is constructed.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := ParseRestartPolicy(string(c.RestartPolicy)); err != nil {
		return err
	}
	return c.Process.Validate()
}
