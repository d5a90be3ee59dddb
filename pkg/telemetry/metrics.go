package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the recipe engine.
type Metrics struct {
	config MetricsConfig

	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	stageDuration *prometheus.HistogramVec
	errorsByClass *prometheus.CounterVec

	downloads     *prometheus.CounterVec
	downloadBytes prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// When disabled, all record methods are no-ops.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "pkgsmith"
	}

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Recipe runs started.",
		}, []string{"recipe"}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Recipe runs completed, by outcome.",
		}, []string{"recipe", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total recipe run duration.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"recipe"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Per-stage duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"recipe", "stage"}),
		errorsByClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Run failures by error class.",
		}, []string{"recipe", "class"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Source archive downloads, by outcome.",
		}, []string{"status"}),
		downloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes downloaded for source archives.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.runsStarted, m.runsCompleted, m.runDuration,
		m.stageDuration, m.errorsByClass,
		m.downloads, m.downloadBytes,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordRunStarted records a run start.
func (m *Metrics) RecordRunStarted(recipe string) {
	if m.registry == nil {
		return
	}
	m.runsStarted.WithLabelValues(recipe).Inc()
}

// RecordRunCompleted records a run completion with its outcome.
func (m *Metrics) RecordRunCompleted(recipe, status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.runsCompleted.WithLabelValues(recipe, status).Inc()
	m.runDuration.WithLabelValues(recipe).Observe(duration.Seconds())
}

// RecordStage records one lifecycle stage duration.
func (m *Metrics) RecordStage(recipe, stage string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.stageDuration.WithLabelValues(recipe, stage).Observe(duration.Seconds())
}

// RecordError records a run failure by class.
func (m *Metrics) RecordError(recipe, class string) {
	if m.registry == nil {
		return
	}
	m.errorsByClass.WithLabelValues(recipe, class).Inc()
}

// RecordDownload records a source archive download.
func (m *Metrics) RecordDownload(status string, bytes int64) {
	if m.registry == nil {
		return
	}
	m.downloads.WithLabelValues(status).Inc()
	if bytes > 0 {
		m.downloadBytes.Add(float64(bytes))
	}
}

// Handler returns the Prometheus scrape handler for the engine registry.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer serves the scrape endpoint when a listen address is
// configured. It returns immediately; the server runs until process exit.
func (m *Metrics) StartMetricsServer() error {
	if m.registry == nil || m.config.ListenAddress == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	go func() {
		_ = http.ListenAndServe(m.config.ListenAddress, mux)
	}()
	return nil
}
