// Package coreshell embeds a native-shell bootstrapper that optionally
// supervises the backend core process the UI talks to. The windowing
// runtime and the UI<->core protocol are external collaborators; this
// package owns only the shell lifecycle and the core's
// spawn/monitor/terminate contract.
package coreshell

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/mistlabs/coreshell/internal/config"
	"github.com/mistlabs/coreshell/internal/journal"
	jfactory "github.com/mistlabs/coreshell/internal/journal/factory"
	jmemory "github.com/mistlabs/coreshell/internal/journal/memory"
	"github.com/mistlabs/coreshell/internal/metrics"
	"github.com/mistlabs/coreshell/internal/probe"
	"github.com/mistlabs/coreshell/internal/process"
	iapi "github.com/mistlabs/coreshell/internal/server"
	"github.com/mistlabs/coreshell/internal/shell"
	"github.com/mistlabs/coreshell/internal/supervisor"
)

// Re-export core types for embedding consumers. Aliases are zero-cost.

type (
	Spec          = process.Spec
	Status        = process.Status
	Config        = supervisor.Config
	RestartPolicy = supervisor.RestartPolicy
	State         = supervisor.State
	Event         = supervisor.Event
	EventKind     = supervisor.EventKind
	SpawnError    = supervisor.SpawnError
	Supervisor    = supervisor.Supervisor
	Bootstrapper  = shell.Bootstrapper
	Runtime       = shell.Runtime
	Probe         = probe.Probe
	JournalSink   = journal.Sink
	FileConfig    = cfg.FileConfig
)

const (
	RestartNone    = supervisor.RestartNone
	RestartOnCrash = supervisor.RestartOnCrash
	RestartAlways  = supervisor.RestartAlways
)

// ErrNotManaged is returned by Supervisor.Start when supervision is
// disabled in the config.
var ErrNotManaged = supervisor.ErrNotManaged

// ErrRuntimeInit wraps fatal windowing-runtime initialization failures.
var ErrRuntimeInit = shell.ErrRuntimeInit

// NewSupervisor constructs a supervisor for the given config.
func NewSupervisor(c Config) *Supervisor { return supervisor.New(c) }

// NewBootstrapper wires a windowing runtime to a supervisor.
func NewBootstrapper(rt Runtime, sup *Supervisor) *Bootstrapper {
	return shell.NewBootstrapper(rt, sup)
}

// NewSignalRuntime returns the bundled headless runtime (close on
// SIGINT/SIGTERM).
func NewSignalRuntime() *shell.SignalRuntime { return shell.NewSignalRuntime() }

// Readiness probes.

func NewTCPProbe(addr string) Probe        { return probe.TCPProbe{Addr: addr} }
func NewWebSocketProbe(url string) Probe   { return probe.WebSocketProbe{URL: url} }
func NewCommandProbe(command string) Probe { return probe.CommandProbe{Command: command} }

// LoadConfig parses a TOML config file.
func LoadConfig(path string) (*FileConfig, error) { return cfg.Load(path) }

// NewJournalSink creates a journal sink from a DSN (sqlite:// or
// postgres://).
func NewJournalSink(dsn string) (JournalSink, error) { return jfactory.NewSinkFromDSN(dsn) }

// NewMemoryJournal creates the in-memory ring sink used by the
// diagnostics server.
func NewMemoryJournal(capacity int) *jmemory.Sink { return jmemory.New(capacity) }

// NewDiagnosticsServer starts the local diagnostics HTTP server.
func NewDiagnosticsServer(addr string, sup *Supervisor, recent *jmemory.Sink) *http.Server {
	return iapi.NewServer(addr, sup, recent)
}

// Metrics helpers.

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error {
	return metrics.Register(prometheus.DefaultRegisterer)
}

// ServeMetrics starts a bare /metrics server on addr in the caller
// goroutine, for embedders that skip the diagnostics router.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
