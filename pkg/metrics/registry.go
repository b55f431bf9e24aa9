// Package metrics exposes the engine's Statistics component as Prometheus
// metrics, following the teacher repo's nil-when-disabled pattern: callers
// always hold a metrics.StatsRecorder, and every recorder implementation
// tolerates a nil receiver so instrumentation can be wired in without paying
// for it when disabled.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	regMu    sync.RWMutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry enables metrics collection and creates the Prometheus
// registry that all recorders created afterward will register against.
// Calling InitRegistry more than once replaces the registry; existing
// recorders keep pointing at their original collectors.
func InitRegistry() *prometheus.Registry {
	regMu.Lock()
	defer regMu.Unlock()

	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	regMu.RLock()
	defer regMu.RUnlock()
	return enabled
}

// GetRegistry returns the active registry, or a fresh throwaway registry
// if metrics have not been enabled. Constructors should check IsEnabled
// before calling this to decide whether to return a nil recorder.
func GetRegistry() *prometheus.Registry {
	regMu.RLock()
	defer regMu.RUnlock()
	if registry == nil {
		return prometheus.NewRegistry()
	}
	return registry
}
