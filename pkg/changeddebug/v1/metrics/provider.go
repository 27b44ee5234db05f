package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegistryProvider defines the interface for accessing the callback's metrics registry.
// Hosts embedding the callback can expose or dump it however they like.
type RegistryProvider interface {
	// Registry returns the Prometheus registry containing callback metrics.
	Registry() *prometheus.Registry
}
