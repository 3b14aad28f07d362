package sim

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the Prometheus collector set a run optionally exposes over
// --metrics-addr. Kept on a private registry (not the global default) so
// multiple Controllers can coexist in the same test binary.
type Metrics struct {
	reg *prometheus.Registry

	stagesCompleted prometheus.Counter
	executorsAlive  prometheus.Gauge
	taskCompute     prometheus.Histogram
	utilization     prometheus.Gauge

	srv *http.Server
}

// NewMetrics builds and registers the collector set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		stagesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dagsim_stage_completed_total",
			Help: "Number of stages that reached the completed state.",
		}),
		executorsAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dagsim_executor_alive",
			Help: "Current count of live executors in the cluster.",
		}),
		taskCompute: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dagsim_task_compute_seconds",
			Help:    "Compute-phase duration of completed task launches, in simulated seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dagsim_utilization",
			Help: "Cluster utilization of the run, set once the run has finished.",
		}),
	}
	reg.MustRegister(m.stagesCompleted, m.executorsAlive, m.taskCompute, m.utilization)
	return m
}

func (m *Metrics) observeStageCompleted()          { m.stagesCompleted.Inc() }
func (m *Metrics) setExecutorsAlive(n int)         { m.executorsAlive.Set(float64(n)) }
func (m *Metrics) observeTaskCompute(d time.Duration) { m.taskCompute.Observe(d.Seconds()) }
func (m *Metrics) setUtilization(u float64)        { m.utilization.Set(u) }

// Serve starts the /metrics endpoint on addr for the lifetime of the run.
// Stop must be called to release the listener.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	m.srv = &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- m.srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

// Stop shuts the metrics server down, if one was started.
func (m *Metrics) Stop(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}
