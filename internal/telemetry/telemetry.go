// Package telemetry exposes pipeline counters and latencies to Prometheus.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Recorder receives pipeline events. Service code depends on this interface
// so tests and one-shot CLI runs can use Nop.
type Recorder interface {
	RecordSourceFetch(source string, endpoints int, failed bool)
	RecordEndpointsUpserted(count int)
	RecordUpsertFailures(count int)
	RecordProbe(success bool, latency time.Duration)
	RecordDeactivations(count int)
	RecordJob(job string, duration time.Duration, err error)
}

// Nop discards every event.
type Nop struct{}

func (Nop) RecordSourceFetch(string, int, bool)    {}
func (Nop) RecordEndpointsUpserted(int)            {}
func (Nop) RecordUpsertFailures(int)               {}
func (Nop) RecordProbe(bool, time.Duration)        {}
func (Nop) RecordDeactivations(int)                {}
func (Nop) RecordJob(string, time.Duration, error) {}

// Collector records events into Prometheus metrics.
type Collector struct {
	sourceEndpoints *prometheus.CounterVec
	sourceFailures  *prometheus.CounterVec
	upserted        prometheus.Counter
	upsertFailures  prometheus.Counter
	probes          *prometheus.CounterVec
	probeLatency    prometheus.Histogram
	deactivations   prometheus.Counter
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sourceEndpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402index_source_endpoints_total",
			Help: "Endpoints returned by each upstream registry.",
		}, []string{"source"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402index_source_failures_total",
			Help: "Registry fetches that ended with an error.",
		}, []string{"source"}),
		upserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "x402index_endpoints_upserted_total",
			Help: "Endpoints written by ingestion.",
		}),
		upsertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "x402index_endpoint_upsert_failures_total",
			Help: "Endpoint writes that failed during ingestion.",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402index_probes_total",
			Help: "Health probes by result.",
		}, []string{"result"}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "x402index_probe_latency_seconds",
			Help:    "Health probe wall-clock latency.",
			Buckets: prometheus.DefBuckets,
		}),
		deactivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "x402index_endpoint_deactivations_total",
			Help: "Endpoints marked inactive after repeated probe failures.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402index_job_runs_total",
			Help: "Job executions by job and result.",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "x402index_job_duration_seconds",
			Help:    "Job execution time.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"job"}),
	}

	reg.MustRegister(
		c.sourceEndpoints,
		c.sourceFailures,
		c.upserted,
		c.upsertFailures,
		c.probes,
		c.probeLatency,
		c.deactivations,
		c.jobRuns,
		c.jobDuration,
	)

	return c
}

// RecordSourceFetch counts a registry fetch.
func (c *Collector) RecordSourceFetch(source string, endpoints int, failed bool) {
	c.sourceEndpoints.WithLabelValues(source).Add(float64(endpoints))
	if failed {
		c.sourceFailures.WithLabelValues(source).Inc()
	}
}

// RecordEndpointsUpserted counts successful endpoint writes.
func (c *Collector) RecordEndpointsUpserted(count int) {
	c.upserted.Add(float64(count))
}

// RecordUpsertFailures counts failed endpoint writes.
func (c *Collector) RecordUpsertFailures(count int) {
	c.upsertFailures.Add(float64(count))
}

// RecordProbe counts a probe and observes its latency.
func (c *Collector) RecordProbe(success bool, latency time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	c.probes.WithLabelValues(result).Inc()
	c.probeLatency.Observe(latency.Seconds())
}

// RecordDeactivations counts endpoints taken out of rotation.
func (c *Collector) RecordDeactivations(count int) {
	c.deactivations.Add(float64(count))
}

// RecordJob counts a job run and observes its duration.
func (c *Collector) RecordJob(job string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.jobRuns.WithLabelValues(job, result).Inc()
	c.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving /metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "telemetry").Logger()
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics listener started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

var (
	_ Recorder = Nop{}
	_ Recorder = (*Collector)(nil)
)
