// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"memetrend/internal/logging"
)

var (
	// Pipeline stages
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memetrend_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memetrend_stage_failures_total",
			Help: "Total number of degraded pipeline stages",
		},
		[]string{"stage"},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memetrend_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"status"}, // "success", "error"
	)

	// Sources
	DocumentsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memetrend_documents_fetched_total",
			Help: "Total number of documents fetched per source",
		},
		[]string{"source"},
	)

	SourceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memetrend_source_errors_total",
			Help: "Total number of failed source fetches",
		},
		[]string{"source"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memetrend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Results of the latest run
	Trends = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memetrend_trends",
			Help: "Number of trends detected by the latest run",
		},
	)

	Recommendations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memetrend_recommendations",
			Help: "Number of recommendations produced by the latest run",
		},
	)
)

// RecordStage observes a stage duration and counts it as failed when failed is set.
func RecordStage(stage string, duration time.Duration, failed bool) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if failed {
		StageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordFetch counts documents or a failure for a source.
func RecordFetch(source string, docs int, err error) {
	if err != nil {
		SourceErrors.WithLabelValues(source).Inc()
		return
	}
	DocumentsFetched.WithLabelValues(source).Add(float64(docs))
}

// RecordRun updates run counters and result gauges.
func RecordRun(trends, recommendations int, err error) {
	if err != nil {
		Runs.WithLabelValues("error").Inc()
		return
	}
	Runs.WithLabelValues("success").Inc()
	Trends.Set(float64(trends))
	Recommendations.Set(float64(recommendations))
}

// Handler returns the /metrics handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", addr).Msg("metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
