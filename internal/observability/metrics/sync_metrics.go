package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for sync run counters.
const (
	SyncResultSuccess = "success"
	SyncResultSkipped = "skipped"
	SyncResultError   = "error"
)

// Config carries the constant labels stamped on every metric.
type Config struct {
	ServiceName string
	Environment string
}

// SyncMetrics captures catalog sync health signals.
type SyncMetrics struct {
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	recordErrors  *prometheus.CounterVec
	lastRunsEpoch *prometheus.GaugeVec
}

var (
	syncMetricsOnce sync.Once
	syncMetrics     *SyncMetrics
)

// Sync returns the singleton sync metrics registry.
func Sync() *SyncMetrics {
	return SyncWithConfig(Config{})
}

// SyncWithConfig returns the singleton sync metrics registry using config labels.
func SyncWithConfig(cfg Config) *SyncMetrics {
	syncMetricsOnce.Do(func() {
		syncMetrics = newSyncMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return syncMetrics
}

// ResetSyncMetricsForTest resets the sync metrics singleton for tests.
func ResetSyncMetricsForTest() {
	syncMetricsOnce = sync.Once{}
	syncMetrics = nil
}

func newSyncMetrics(registerer prometheus.Registerer, cfg Config) *SyncMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "boutique"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "boutique_sync_runs_total",
		Help:        "Catalog sync runs by kind and result.",
		ConstLabels: constLabels,
	}, []string{"kind", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "boutique_sync_duration_seconds",
		Help:        "Catalog sync run latency.",
		Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"kind"})
	recordErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "boutique_sync_record_errors_total",
		Help:        "Individual records skipped during a sync run.",
		ConstLabels: constLabels,
	}, []string{"kind"})
	lastRunsEpoch := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "boutique_sync_last_success_timestamp_seconds",
		Help:        "Unix time of the last successful sync run by kind.",
		ConstLabels: constLabels,
	}, []string{"kind"})

	registerer.MustRegister(runs, duration, recordErrors, lastRunsEpoch)

	return &SyncMetrics{
		runs:          runs,
		duration:      duration,
		recordErrors:  recordErrors,
		lastRunsEpoch: lastRunsEpoch,
	}
}

// IncRun increments the run counter for a sync kind and result.
func (m *SyncMetrics) IncRun(kind, result string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(kind, result).Inc()
}

// ObserveDuration records how long a sync run took.
func (m *SyncMetrics) ObserveDuration(kind string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(kind).Observe(duration.Seconds())
}

// AddRecordErrors counts how many records failed inside a run.
func (m *SyncMetrics) AddRecordErrors(kind string, count int) {
	if m == nil || m.recordErrors == nil || count <= 0 {
		return
	}
	m.recordErrors.WithLabelValues(kind).Add(float64(count))
}

// SetLastSuccess stamps the wall clock of a successful run.
func (m *SyncMetrics) SetLastSuccess(kind string, at time.Time) {
	if m == nil || m.lastRunsEpoch == nil {
		return
	}
	m.lastRunsEpoch.WithLabelValues(kind).Set(float64(at.Unix()))
}
