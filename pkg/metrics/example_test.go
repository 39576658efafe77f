package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Example_basicUsage demonstrates basic metrics configuration.
func Example_basicUsage() {
	// Create a separate registry for this example
	testRegistry := prometheus.NewRegistry()
	registry := NewRegistry(testRegistry)

	registry.TasksSubmitted.WithLabelValues("main", "runnable").Add(3)
	registry.TasksSlow.WithLabelValues("main", "runnable").Inc()

	fmt.Println(testutil.ToFloat64(registry.TasksSubmitted.WithLabelValues("main", "runnable")))
	fmt.Println(testutil.ToFloat64(registry.TasksSlow.WithLabelValues("main", "runnable")))

	// Output:
	// 3
	// 1
}

// Example_customRegistry demonstrates using a custom Prometheus registry and namespace.
func Example_customRegistry() {
	customRegistry := prometheus.NewRegistry()

	config := Config{
		Enabled:   true,
		Registry:  customRegistry,
		Namespace: "jobs",
	}
	registry := config.Build()
	registry.WorkerPoolSize.WithLabelValues("pool").Set(32)

	families, _ := customRegistry.Gather()
	for _, f := range families {
		fmt.Println(f.GetName())
	}

	// Output:
	// jobs_workerpool_size
}
