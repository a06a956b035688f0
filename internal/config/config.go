package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mistlabs/coreshell/internal/logger"
	"github.com/mistlabs/coreshell/internal/probe"
	"github.com/mistlabs/coreshell/internal/process"
	"github.com/mistlabs/coreshell/internal/supervisor"
)

// FileConfig is the top-level TOML structure.
type FileConfig struct {
	Env      []string      `toml:"env" mapstructure:"env"`
	EnvFiles []string      `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv bool          `toml:"use_os_env" mapstructure:"use_os_env"`
	Shell    ShellConfig   `toml:"shell" mapstructure:"shell"`
	Log      logger.Config `toml:"log" mapstructure:"log"`
	Journal  JournalConfig `toml:"journal" mapstructure:"journal"`
	Core     CoreConfig    `toml:"core" mapstructure:"core"`
}

// ShellConfig configures the bootstrapper surface.
type ShellConfig struct {
	Title           string `toml:"title" mapstructure:"title"`
	DiagnosticsAddr string `toml:"diagnostics_addr" mapstructure:"diagnostics_addr"` // empty disables the local HTTP listener
}

// JournalConfig selects lifecycle-journal persistence.
type JournalConfig struct {
	DSN            string `toml:"dsn" mapstructure:"dsn"` // sqlite:// or postgres://; empty keeps events in memory only
	MemoryCapacity int    `toml:"memory_capacity" mapstructure:"memory_capacity"`
}

// CoreConfig describes the supervised core process.
type CoreConfig struct {
	Enabled         bool          `toml:"enabled" mapstructure:"enabled"`
	Name            string        `toml:"name" mapstructure:"name"`
	Command         string        `toml:"command" mapstructure:"command"`
	Args            []string      `toml:"args" mapstructure:"args"`
	WorkDir         string        `toml:"work_dir" mapstructure:"work_dir"`
	Env             []string      `toml:"env" mapstructure:"env"`
	PIDFile         string        `toml:"pid_file" mapstructure:"pid_file"`
	Detached        bool          `toml:"detached" mapstructure:"detached"`
	RestartPolicy   string        `toml:"restart_policy" mapstructure:"restart_policy"`
	StartupTimeout  time.Duration `toml:"startup_timeout" mapstructure:"startup_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	MaxRestarts     int           `toml:"max_restarts" mapstructure:"max_restarts"`
	RestartInterval time.Duration `toml:"restart_interval" mapstructure:"restart_interval"`
	ProbeInterval   time.Duration `toml:"probe_interval" mapstructure:"probe_interval"`
	Probe           ProbeConfig   `toml:"probe" mapstructure:"probe"`
}

// ProbeConfig selects the readiness predicate for the core.
type ProbeConfig struct {
	Type    string `toml:"type" mapstructure:"type"` // tcp | websocket | command; empty means "ready on spawn"
	Addr    string `toml:"addr" mapstructure:"addr"`
	URL     string `toml:"url" mapstructure:"url"`
	Command string `toml:"command" mapstructure:"command"`
}

// Load parses a TOML config file.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// SupervisorConfig converts the file representation into the runtime
// supervisor configuration, including the readiness probe.
func (fc *FileConfig) SupervisorConfig() (supervisor.Config, error) {
	cc := fc.Core
	policy, err := supervisor.ParseRestartPolicy(cc.RestartPolicy)
	if err != nil {
		return supervisor.Config{}, err
	}
	p, err := cc.Probe.Build()
	if err != nil {
		return supervisor.Config{}, err
	}
	name := cc.Name
	if name == "" {
		name = "core"
	}
	cfg := supervisor.Config{
		Enabled: cc.Enabled,
		Process: process.Spec{
			Name:     name,
			Command:  cc.Command,
			Args:     cc.Args,
			WorkDir:  cc.WorkDir,
			Env:      cc.Env,
			PIDFile:  cc.PIDFile,
			Detached: cc.Detached,
			Log:      fc.Log.File,
		},
		Probe:           p,
		RestartPolicy:   policy,
		StartupTimeout:  cc.StartupTimeout,
		ShutdownTimeout: cc.ShutdownTimeout,
		MaxRestarts:     cc.MaxRestarts,
		RestartInterval: cc.RestartInterval,
		ProbeInterval:   cc.ProbeInterval,
	}
	if err := cfg.Validate(); err != nil {
		return supervisor.Config{}, err
	}
	return cfg, nil
}

// Build constructs the configured readiness probe, or nil when none is set.
func (pc ProbeConfig) Build() (probe.Probe, error) {
	switch pc.Type {
	case "":
		return nil, nil
	case "tcp":
		if pc.Addr == "" {
			return nil, fmt.Errorf("probe tcp requires addr")
		}
		return probe.TCPProbe{Addr: pc.Addr}, nil
	case "websocket":
		if pc.URL == "" {
			return nil, fmt.Errorf("probe websocket requires url")
		}
		return probe.WebSocketProbe{URL: pc.URL}, nil
	case "command":
		if pc.Command == "" {
			return nil, fmt.Errorf("probe command requires command")
		}
		return probe.CommandProbe{Command: pc.Command}, nil
	}
	return nil, fmt.Errorf("unknown probe type %q", pc.Type)
}

// GlobalEnv merges env sources from the config: OS env when UseOSEnv is
// set, then env_files contents in order, then the top-level env list last.
func (fc *FileConfig) GlobalEnv() ([]string, error) {
	m := make(map[string]string)
	if fc.UseOSEnv {
		for _, kv := range os.Environ() {
			if i := strings.IndexByte(kv, '='); i > 0 {
				m[kv[:i]] = kv[i+1:]
			}
		}
	}
	for _, p := range fc.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			m[k] = v
		}
	}
	for _, kv := range fc.Env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out, nil
}

// loadEnvFile parses KEY=VALUE lines; # comments and blanks are skipped.
func loadEnvFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			m[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}
	return m, nil
}
