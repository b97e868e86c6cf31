// Package metrics provides Prometheus metrics collection for dittocheck.
//
// All metrics are optional: when InitRegistry has not been called, the
// constructors return no-op implementations, so the verifier runs with or
// without metrics collection.
//
// Usage:
//
//	metrics.InitRegistry()
//	m := prometheus.NewVerifierMetrics()
//	v := verifier.New(cfg, fs, table, m)
//
//	// or without metrics
//	v := verifier.New(cfg, fs, table, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is written once by InitRegistry and read many times.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Later calls are
// ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
