// Package engine orchestrates one scoring run: preprocess the batch once,
// fan out to the anomaly, forecast, and classification branches concurrently,
// and merge their outputs into a single report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oceansentinel/threat-scoring/internal/anomaly"
	"github.com/oceansentinel/threat-scoring/internal/classify"
	"github.com/oceansentinel/threat-scoring/internal/domain"
	"github.com/oceansentinel/threat-scoring/internal/feature"
	"github.com/oceansentinel/threat-scoring/internal/forecast"
	"github.com/oceansentinel/threat-scoring/internal/observability"
)

// clock is the package time source, swappable for tests.
var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock swaps the branch-timing source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Branch names used in report status and metrics labels.
const (
	branchAnomaly  = "anomaly"
	branchForecast = "forecast"
	branchClassify = "classify"
)

const (
	defaultBranchTimeout = 10 * time.Second
	defaultHistoryWindow = 500
	defaultMaxLocations  = 1024
)

// Config tunes the orchestrator. Zero values take defaults.
type Config struct {
	BranchTimeout time.Duration
	HistoryWindow int
	MaxLocations  int
}

// Engine scores reading batches. Safe for concurrent use; the analytic
// components own their model state and synchronize retraining internally.
type Engine struct {
	cfg        Config
	pre        *feature.Preprocessor
	anomaly    *anomaly.Scorer
	forecast   *forecast.Predictor
	classifier *classify.Engine
	history    *historyCache
	logger     *slog.Logger
	metrics    *observability.Metrics
}

func New(cfg Config, pre *feature.Preprocessor, scorer *anomaly.Scorer, predictor *forecast.Predictor, classifier *classify.Engine, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if cfg.BranchTimeout <= 0 {
		cfg.BranchTimeout = defaultBranchTimeout
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}
	if cfg.MaxLocations <= 0 {
		cfg.MaxLocations = defaultMaxLocations
	}
	return &Engine{
		cfg:        cfg,
		pre:        pre,
		anomaly:    scorer,
		forecast:   predictor,
		classifier: classifier,
		history:    newHistoryCache(cfg.MaxLocations, cfg.HistoryWindow),
		logger:     logger,
		metrics:    metrics,
	}
}

// ScoreBatch runs the full pipeline for one batch and returns the merged
// report. Data-quality problems degrade individual branches rather than
// failing the run; only an invalid location or a canceled context is an
// error.
func (e *Engine) ScoreBatch(ctx context.Context, batch domain.Batch) (*domain.ScoringReport, error) {
	if err := batch.Location.Validate(); err != nil {
		return nil, fmt.Errorf("scoring batch: %w", err)
	}

	table, quality := e.pre.Prepare(batch.Records)
	if quality.Degraded() {
		e.metrics.DataQualityDegraded.Inc()
	}

	report := domain.NewReport(batch.Location)
	report.WindowStart, report.WindowEnd = batch.Window()
	report.InputHash = table.Fingerprint()

	key := batch.Location.Key()
	historical := e.historicalTable(key)
	e.history.append(key, batch.Records)

	type anomalyOut struct{ result domain.AnomalyResult }
	type forecastOut struct{ result domain.PredictionResult }
	type classifyOut struct {
		threats []domain.ThreatDetectionResult
		skipped []string
	}

	anomalyCh := runBranch(ctx, e, branchAnomaly, func() anomalyOut {
		return anomalyOut{e.anomaly.Score(batch.Location, table, historical)}
	})
	forecastCh := runBranch(ctx, e, branchForecast, func() forecastOut {
		return forecastOut{e.forecast.Predict(batch.Location, e.forecastInput(table, historical))}
	})
	classifyCh := runBranch(ctx, e, branchClassify, func() classifyOut {
		threats, skipped := e.classifier.Classify(table)
		return classifyOut{threats, skipped}
	})

	a := <-anomalyCh
	f := <-forecastCh
	c := <-classifyCh
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	report.BranchStatus[branchAnomaly] = a.status
	report.BranchStatus[branchForecast] = f.status
	report.BranchStatus[branchClassify] = c.status

	if a.status == domain.BranchOK {
		report.Anomaly = a.value.result
	} else {
		report.Anomaly = emptyAnomaly(a.status)
	}
	if f.status == domain.BranchOK {
		report.Forecast = f.value.result
	} else {
		report.Forecast = e.emptyForecast(f.status)
	}
	if c.status == domain.BranchOK {
		report.Threats = c.value.threats
		report.SkippedCategories = c.value.skipped
	} else {
		report.SkippedCategories = append([]string(nil), classify.Categories...)
	}

	if table.Empty() {
		for branch := range report.BranchStatus {
			if report.BranchStatus[branch] == domain.BranchOK {
				report.BranchStatus[branch] = domain.BranchEmpty
			}
		}
	}

	if report.Anomaly.IsAnomaly {
		e.metrics.AnomaliesDetected.Inc()
	}
	for _, t := range report.Threats {
		if t.Detected {
			e.metrics.ThreatsDetected.WithLabelValues(t.ThreatType).Inc()
		}
	}

	e.logger.Info("batch scored",
		"location", key,
		"data_points", table.Len(),
		"anomaly", report.Anomaly.IsAnomaly,
		"threats_detected", len(report.CriticalThreats(1)),
		"input_hash", report.InputHash)
	return report, nil
}

// branchOutcome pairs a branch's value with how it finished.
type branchOutcome[T any] struct {
	value  T
	status string
}

// runBranch executes fn on its own goroutine under the per-branch budget.
// A branch that overruns is abandoned and its empty substitute used; the
// goroutine itself finishes in the background.
func runBranch[T any](ctx context.Context, e *Engine, name string, fn func() T) <-chan branchOutcome[T] {
	out := make(chan branchOutcome[T], 1)
	done := make(chan T, 1)
	start := clock.Now()

	go func() {
		done <- fn()
	}()
	go func() {
		select {
		case v := <-done:
			e.metrics.BranchDuration.WithLabelValues(name).Observe(clock.Since(start).Seconds())
			out <- branchOutcome[T]{value: v, status: domain.BranchOK}
		case <-clock.After(e.cfg.BranchTimeout):
			e.metrics.BranchTimeouts.WithLabelValues(name).Inc()
			e.logger.Warn("analytic branch timed out", "branch", name, "budget", e.cfg.BranchTimeout)
			out <- branchOutcome[T]{status: domain.BranchTimeout}
		case <-ctx.Done():
			out <- branchOutcome[T]{status: domain.BranchTimeout}
		}
	}()
	return out
}

// historicalTable prepares the location's rolling window, or nil when no
// history has accumulated yet.
func (e *Engine) historicalTable(key string) *feature.Table {
	records := e.history.snapshot(key)
	if len(records) == 0 {
		return nil
	}
	table, _ := e.pre.Prepare(records)
	if table.Empty() {
		return nil
	}
	return table
}

// forecastInput prefers the accumulated history over the current window,
// which is usually too short to train on.
func (e *Engine) forecastInput(current, historical *feature.Table) *feature.Table {
	if historical != nil && historical.Len() >= current.Len() {
		return historical
	}
	return current
}

func emptyAnomaly(status string) domain.AnomalyResult {
	return domain.AnomalyResult{
		Severity:        1,
		DetectionMethod: domain.MethodNone,
		Description:     "Anomaly analysis unavailable for this run.",
		Meta:            domain.ResultMeta{Note: "branch " + status},
	}
}

func (e *Engine) emptyForecast(status string) domain.PredictionResult {
	return domain.PredictionResult{
		Predictions:         map[string][]float64{},
		ConfidenceIntervals: map[string][]domain.Interval{},
		TrendAnalysis:       map[string]string{},
		RiskAssessment:      map[string]int{},
		Meta:                domain.ResultMeta{Note: "branch " + status},
	}
}
