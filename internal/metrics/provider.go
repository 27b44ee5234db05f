package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	cdmetrics "github.com/tsupplis/ansible-callbacks/pkg/changeddebug/v1/metrics"
)

// PrometheusRegistryProvider implements the RegistryProvider interface
// using a dedicated Prometheus registry.
type PrometheusRegistryProvider struct {
	registry *prometheus.Registry
}

// NewPrometheusRegistryProvider creates a new metrics provider backed by Prometheus.
func NewPrometheusRegistryProvider() *PrometheusRegistryProvider {
	return &PrometheusRegistryProvider{
		registry: prometheus.NewRegistry(),
	}
}

// Registry returns the underlying Prometheus registry.
func (p *PrometheusRegistryProvider) Registry() *prometheus.Registry {
	return p.registry
}

// WriteTextfile dumps the registry in the text exposition format, the way
// node_exporter's textfile collector expects it.
func (p *PrometheusRegistryProvider) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}

var _ cdmetrics.RegistryProvider = (*PrometheusRegistryProvider)(nil)
