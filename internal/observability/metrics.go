package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// scoring pipeline.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	ReportsProduced  prometheus.Counter
	ScoringErrors    prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Analytic branch metrics.
	BranchDuration *prometheus.HistogramVec // labels: branch={anomaly,forecast,classify}
	BranchTimeouts *prometheus.CounterVec   // labels: branch={anomaly,forecast,classify}

	// Scoring outcome metrics.
	AnomaliesDetected   prometheus.Counter
	ThreatsDetected     *prometheus.CounterVec // labels: category
	DataQualityDegraded prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threat_scoring",
			Name:      "messages_consumed_total",
			Help:      "Total reading batches read from the source topic.",
		}),
		ReportsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threat_scoring",
			Name:      "reports_produced_total",
			Help:      "Total scoring reports written to the sink topic.",
		}),
		ScoringErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threat_scoring",
			Name:      "scoring_errors_total",
			Help:      "Total scoring failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "threat_scoring",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "threat_scoring",
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "threat_scoring",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-score-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		BranchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "threat_scoring",
			Name:      "branch_duration_seconds",
			Help:      "Duration of each analytic branch of a scoring run.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"branch"}),
		BranchTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threat_scoring",
			Name:      "branch_timeouts_total",
			Help:      "Analytic branches that exceeded the per-branch budget.",
		}, []string{"branch"}),
		AnomaliesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threat_scoring",
			Name:      "anomalies_detected_total",
			Help:      "Scoring runs judged anomalous.",
		}),
		ThreatsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threat_scoring",
			Name:      "threats_detected_total",
			Help:      "Detected threats by category.",
		}, []string{"category"}),
		DataQualityDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threat_scoring",
			Name:      "data_quality_degraded_total",
			Help:      "Batches whose preprocessing required zero-fill or outlier handling.",
		}),
	}

	prometheus.MustRegister(
		m.MessagesConsumed,
		m.ReportsProduced,
		m.ScoringErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.BranchDuration,
		m.BranchTimeouts,
		m.AnomaliesDetected,
		m.ThreatsDetected,
		m.DataQualityDegraded,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		MessagesConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "threat_scoring", Name: "messages_consumed_total"}),
		ReportsProduced:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "threat_scoring", Name: "reports_produced_total"}),
		ScoringErrors:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "threat_scoring", Name: "scoring_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "threat_scoring", Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "threat_scoring", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "threat_scoring", Name: "batch_processing_duration_seconds"}),
		BranchDuration:          prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "threat_scoring", Name: "branch_duration_seconds"}, []string{"branch"}),
		BranchTimeouts:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "threat_scoring", Name: "branch_timeouts_total"}, []string{"branch"}),
		AnomaliesDetected:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "threat_scoring", Name: "anomalies_detected_total"}),
		ThreatsDetected:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "threat_scoring", Name: "threats_detected_total"}, []string{"category"}),
		DataQualityDegraded:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "threat_scoring", Name: "data_quality_degraded_total"}),
	}
}
