package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors for the core supervisor. They are
// registered via Register; recording helpers no-op until then so library
// consumers that skip metrics pay nothing.
var (
	regOK atomic.Bool

	coreStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coreshell",
			Subsystem: "core",
			Name:      "starts_total",
			Help:      "Number of successful core process starts.",
		}, []string{"name"},
	)
	coreRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coreshell",
			Subsystem: "core",
			Name:      "restarts_total",
			Help:      "Number of restarts after an unexpected exit.",
		}, []string{"name"},
	)
	coreStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coreshell",
			Subsystem: "core",
			Name:      "stops_total",
			Help:      "Number of stops (graceful or kill).",
		}, []string{"name"},
	)
	coreSpawnFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coreshell",
			Subsystem: "core",
			Name:      "spawn_failures_total",
			Help:      "Number of failed spawn attempts by reason.",
		}, []string{"name", "reason"},
	)
	startupProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coreshell",
			Subsystem: "core",
			Name:      "startup_probe_duration_seconds",
			Help:      "Time until the readiness probe accepted after spawn.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coreshell",
			Subsystem: "core",
			Name:      "state_transitions_total",
			Help:      "Number of supervisor state transitions.",
		}, []string{"name", "from", "to"},
	)
	currentStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "coreshell",
			Subsystem: "core",
			Name:      "current_state",
			Help:      "Current supervisor state (1 = active, 0 = inactive).",
		}, []string{"name", "state"},
	)
)

// Register registers all collectors with r. Safe to call multiple times;
// AlreadyRegistered errors are tolerated to allow the default registry.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{coreStarts, coreRestarts, coreStops, coreSpawnFailures, startupProbeDuration, stateTransitions, currentStates}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(name string) {
	if regOK.Load() {
		coreStarts.WithLabelValues(name).Inc()
	}
}

func IncRestart(name string) {
	if regOK.Load() {
		coreRestarts.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		coreStops.WithLabelValues(name).Inc()
	}
}

func IncSpawnFailure(name, reason string) {
	if regOK.Load() {
		coreSpawnFailures.WithLabelValues(name, reason).Inc()
	}
}

func ObserveStartupProbe(name string, seconds float64) {
	if regOK.Load() {
		startupProbeDuration.WithLabelValues(name).Observe(seconds)
	}
}

func RecordStateTransition(name, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(name, from, to).Inc()
	}
}

func SetCurrentState(name, state string, active bool) {
	if regOK.Load() {
		var v float64
		if active {
			v = 1
		}
		currentStates.WithLabelValues(name, state).Set(v)
	}
}
