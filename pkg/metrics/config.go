package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "asyncsched"

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace overrides the default "asyncsched" namespace for metrics.
	Namespace string
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
	}
}

// Build returns the registry described by c, or nil when metrics are disabled.
// Without a custom registerer or namespace the shared DefaultRegistry is reused,
// because registering the same collectors twice on one registerer panics.
func (c Config) Build() *Registry {
	if !c.Enabled {
		return nil
	}
	if c.Registry == nil || c.Registry == prometheus.DefaultRegisterer {
		if c.Namespace == "" || c.Namespace == DefaultNamespace {
			return DefaultRegistry
		}
		return NewRegistryWithNamespace(prometheus.DefaultRegisterer, c.Namespace)
	}
	return NewRegistryWithNamespace(c.Registry, c.Namespace)
}
