// Package daemon runs a scheduler as a long-lived process with a heartbeat,
// an HTTP status endpoint and configuration hot reload.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/vnykmshr/asyncsched/internal/config"
	"github.com/vnykmshr/asyncsched/internal/server"
	"github.com/vnykmshr/asyncsched/pkg/logging"
	"github.com/vnykmshr/asyncsched/pkg/metrics"
	"github.com/vnykmshr/asyncsched/pkg/scheduling/decorator"
	"github.com/vnykmshr/asyncsched/pkg/scheduling/scheduler"
)

// ShutdownTimeout bounds how long Run waits for the HTTP server and running
// tasks after its context is done.
const ShutdownTimeout = 10 * time.Second

// Daemon owns one scheduler and the services around it.
type Daemon struct {
	cfg     *config.Config
	logger  *logrus.Logger
	manager *config.Manager

	sched    *scheduler.Scheduler
	gatherer *prometheus.Registry
	server   *server.Server

	lastBeat atomic.Int64
	beats    atomic.Int64
}

// New builds a daemon from cfg. manager may be nil to disable hot reload.
func New(cfg *config.Config, logger *logrus.Logger, manager *config.Manager) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon: nil config")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	d := &Daemon{cfg: cfg, logger: logger, manager: manager}

	schedCfg := cfg.ToSchedulerConfig()
	schedCfg.Logger = logger
	if cfg.Metrics.Enabled {
		d.gatherer = prometheus.NewRegistry()
		d.gatherer.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		schedCfg.Metrics = metrics.Config{
			Enabled:   true,
			Registry:  d.gatherer,
			Namespace: metrics.DefaultNamespace,
		}.Build()
	}

	sched, err := scheduler.New(schedCfg)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	d.sched = sched

	if cfg.Metrics.Enabled {
		d.server = server.New(cfg.Metrics.Addr, sched, d.gatherer, d.LastHeartbeat, logger)
	}
	if manager != nil {
		manager.Subscribe(d.apply)
	}
	return d, nil
}

// Scheduler returns the daemon's scheduler.
func (d *Daemon) Scheduler() *scheduler.Scheduler { return d.sched }

// LastHeartbeat returns when the heartbeat task last ran, or the zero time.
func (d *Daemon) LastHeartbeat() time.Time {
	ns := d.lastBeat.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Heartbeats returns how many times the heartbeat task has run.
func (d *Daemon) Heartbeats() int64 { return d.beats.Load() }

// Run starts the heartbeat, the HTTP server and the config watcher, then
// blocks until ctx is done or a service fails. The scheduler is shut down
// before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	defer func() {
		d.stop()
		cancel()
		wg.Wait()
	}()

	if d.cfg.Heartbeat > 0 {
		body := decorator.Named("heartbeat", decorator.RunnableFunc(d.heartbeat))
		if _, err := d.sched.ScheduleEvery(body, d.cfg.Heartbeat, d.cfg.Heartbeat); err != nil {
			return fmt.Errorf("schedule heartbeat: %w", err)
		}
	}

	register := decorator.Named("listener-registration", decorator.RunnableFunc(func(context.Context) error {
		d.logger.WithFields(logrus.Fields{
			"workers":           d.cfg.Scheduler.Workers,
			"slow_threshold_ms": d.cfg.Scheduler.SlowTaskThreshold.Milliseconds(),
			"heartbeat":         d.cfg.Heartbeat.String(),
			"metrics":           d.cfg.Metrics.Enabled,
		}).Info("asyncsched ready")
		return nil
	}))
	if _, err := d.sched.Submit(register); err != nil {
		return fmt.Errorf("register listener: %w", err)
	}

	if d.server != nil {
		ln, err := net.Listen("tcp", d.cfg.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", d.cfg.Metrics.Addr, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.server.Serve(ln); err != nil {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if d.manager != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.manager.Watch(runCtx); err != nil {
				d.logger.WithError(err).Warn("config watcher stopped, hot reload disabled")
			}
		}()
	}

	select {
	case <-ctx.Done():
		d.logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

func (d *Daemon) heartbeat(context.Context) error {
	d.beats.Add(1)
	d.lastBeat.Store(time.Now().UnixNano())
	st := d.sched.Stats()
	d.logger.WithFields(logrus.Fields{
		"active_workers":  st.ActiveWorkers,
		"queued_tasks":    st.QueuedTasks,
		"pending_timers":  st.PendingTimers,
		"total_completed": st.TotalCompleted,
	}).Debug("heartbeat")
	return nil
}

// apply adopts the settings of cur that can change without a restart.
func (d *Daemon) apply(old, cur *config.Config) {
	if old == nil || old.Scheduler.SlowTaskThreshold != cur.Scheduler.SlowTaskThreshold {
		d.sched.SetSlowTaskThresholdDuration(cur.Scheduler.SlowTaskThreshold)
		d.logger.WithField("slow_threshold_ms", cur.Scheduler.SlowTaskThreshold.Milliseconds()).
			Info("slow task threshold updated")
	}
	if old == nil || old.Log.Level != cur.Log.Level {
		if err := logging.SetLevel(d.logger, cur.Log.Level); err != nil {
			d.logger.WithError(err).Warn("log level not updated")
		} else {
			d.logger.WithField("level", d.logger.GetLevel().String()).Info("log level updated")
		}
	}
	if old != nil && restartRequired(old, cur) {
		d.logger.Warn("configuration change requires a restart to take full effect")
	}
}

func restartRequired(old, cur *config.Config) bool {
	return old.Scheduler.Name != cur.Scheduler.Name ||
		old.Scheduler.Workers != cur.Scheduler.Workers ||
		old.Log.Format != cur.Log.Format ||
		old.Log.Console != cur.Log.Console ||
		old.Log.File != cur.Log.File ||
		old.Metrics != cur.Metrics ||
		old.Heartbeat != cur.Heartbeat
}

func (d *Daemon) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.WithError(err).Warn("http server shutdown")
		}
	}

	d.sched.Shutdown()
	select {
	case <-d.sched.Terminated():
	case <-ctx.Done():
		d.logger.Warn("running tasks did not return before the shutdown timeout")
	}
}
