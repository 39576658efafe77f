// Package metrics provides Prometheus instrumentation for asyncsched components.
//
// # Overview
//
// The metrics package instruments:
//   - Task execution (submitted, completed, failed, cancelled, slow, rejected, duration)
//   - The timer facility (pending delayed/periodic entries, fired entries)
//   - Worker pools (pool size, active workers, queued tasks, recovered panics, queue wait)
//
// Task metrics carry a "shape" label: "runnable" for fire-and-forget bodies and
// "callable" for result-producing bodies.
//
// # Quick Start
//
//	sched, err := scheduler.New(scheduler.Config{
//		Name:    "main",
//		Metrics: metrics.DefaultRegistry,
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation, which is what tests do:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.Config{Enabled: true, Registry: reg}.Build()
//
// # Available Metrics
//
//	asyncsched_scheduler_tasks_submitted_total{scheduler_name,shape}
//	asyncsched_scheduler_tasks_completed_total{scheduler_name,shape}
//	asyncsched_scheduler_tasks_failed_total{scheduler_name,shape}
//	asyncsched_scheduler_tasks_cancelled_total{scheduler_name,shape}
//	asyncsched_scheduler_tasks_slow_total{scheduler_name,shape}
//	asyncsched_scheduler_tasks_rejected_total{scheduler_name,shape}
//	asyncsched_scheduler_task_duration_seconds{scheduler_name,shape}
//	asyncsched_timer_pending{scheduler_name}
//	asyncsched_timer_fired_total{scheduler_name}
//	asyncsched_workerpool_size{pool_name}
//	asyncsched_workerpool_active_workers{pool_name}
//	asyncsched_workerpool_queued_tasks{pool_name}
//	asyncsched_workerpool_panics_total{pool_name}
//	asyncsched_workerpool_queue_wait_seconds{pool_name}
package metrics
