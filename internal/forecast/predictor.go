// Package forecast trains per-parameter regression ensembles on historical
// windows and projects environmental conditions over configured horizons.
package forecast

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/oceansentinel/threat-scoring/internal/domain"
	"github.com/oceansentinel/threat-scoring/internal/feature"
	"github.com/oceansentinel/threat-scoring/internal/modelstore"
)

const (
	defaultMinSamples = 50
	fallbackTail      = 12
	trendBand         = 0.05
)

var defaultHorizons = []int{2, 4, 8, 24}

// Config tunes the predictor. Zero values take defaults.
type Config struct {
	Horizons   []int
	MinSamples int
}

// Predictor forecasts parameter values over the configured horizons. Each
// (location, parameter, horizon) triple gets its own lazily trained ensemble;
// when an ensemble cannot be trained the parameter falls back to linear
// extrapolation. Histories below MinSamples are not forecast at all.
type Predictor struct {
	cfg    Config
	logger *slog.Logger
	store  *modelstore.Store[horizonEnsemble]
}

// horizonEnsemble is the immutable trained state for one key.
type horizonEnsemble struct {
	window int
	models []trainedModel
}

type trainedModel struct {
	model Regressor
	r2    float64
	mae   float64
}

func NewPredictor(cfg Config, logger *slog.Logger) *Predictor {
	if len(cfg.Horizons) == 0 {
		cfg.Horizons = defaultHorizons
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = defaultMinSamples
	}
	return &Predictor{
		cfg:    cfg,
		logger: logger,
		store:  modelstore.New[horizonEnsemble](),
	}
}

// Retrain discards the trained ensembles for the location's parameter and
// horizon, forcing a fresh fit on the next Predict.
func (p *Predictor) Retrain(loc domain.Location, parameter string, history *feature.Table) error {
	series := seriesOf(history, parameter)
	if len(series) < p.cfg.MinSamples {
		return fmt.Errorf("parameter %s: %d samples below training minimum %d",
			parameter, len(series), p.cfg.MinSamples)
	}
	for _, horizon := range p.cfg.Horizons {
		_, err := p.store.Retrain(p.key(loc, parameter, horizon), func() (*horizonEnsemble, error) {
			return p.trainHorizon(series, horizon)
		})
		if err != nil {
			return fmt.Errorf("horizon %dh: %w", horizon, err)
		}
	}
	return nil
}

// Predict forecasts every eligible parameter in the history table. The
// returned maps are keyed by parameter, with slices aligned to ForecastHours.
func (p *Predictor) Predict(loc domain.Location, history *feature.Table) domain.PredictionResult {
	result := domain.PredictionResult{
		ForecastHours:       append([]int(nil), p.cfg.Horizons...),
		Predictions:         make(map[string][]float64),
		ConfidenceIntervals: make(map[string][]domain.Interval),
		TrendAnalysis:       make(map[string]string),
		RiskAssessment:      make(map[string]int),
	}
	if history == nil || history.Empty() {
		result.Meta.Note = "no historical data"
		return result
	}
	result.Meta.DataPoints = history.Len()
	if history.Len() < p.cfg.MinSamples {
		result.Meta.Note = "insufficient data"
		return result
	}

	var r2s, maes []float64
	for _, parameter := range forecastParameters(history) {
		series := seriesOf(history, parameter)
		if len(series) < 2 {
			continue
		}

		values, intervals, modelR2s, modelMAEs := p.ensembleForecast(loc, parameter, series)
		if values == nil {
			values, intervals = p.fallbackForecast(series)
			result.Meta.Note = "linear fallback"
		} else {
			r2s = append(r2s, modelR2s...)
			maes = append(maes, modelMAEs...)
		}

		result.Predictions[parameter] = values
		result.ConfidenceIntervals[parameter] = intervals
		result.TrendAnalysis[parameter] = classifyTrend(series[len(series)-1], values[len(values)-1])

		risk := 1
		for i, v := range values {
			severity := domain.RiskSeverity(parameter, v)
			if severity > risk {
				risk = severity
			}
			if severity >= 3 {
				result.AlertsPredicted = append(result.AlertsPredicted, domain.PredictedAlert{
					Parameter:    parameter,
					ForecastHour: p.cfg.Horizons[i],
					Value:        v,
					Severity:     severity,
					Description: fmt.Sprintf("Predicted %s of %.1f in %d hours (%s risk)",
						parameter, v, p.cfg.Horizons[i], domain.SeverityLabel(severity)),
				})
			}
		}
		result.RiskAssessment[parameter] = risk
		result.Meta.Parameters++
	}

	sort.Slice(result.AlertsPredicted, func(i, j int) bool {
		a, b := result.AlertsPredicted[i], result.AlertsPredicted[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Parameter != b.Parameter {
			return a.Parameter < b.Parameter
		}
		return a.ForecastHour < b.ForecastHour
	})

	if len(r2s) > 0 {
		result.Performance = domain.ModelPerformance{
			AverageR2:       stat.Mean(r2s, nil),
			AverageMAE:      stat.Mean(maes, nil),
			ModelsTrained:   len(r2s),
			AccuracyPercent: math.Max(0, math.Min(stat.Mean(r2s, nil), 1)) * 100,
		}
		result.Meta.ModelsUsed = len(r2s)
	}
	return result
}

// ensembleForecast predicts one parameter over every horizon with the trained
// ensembles, training lazily on first use.
func (p *Predictor) ensembleForecast(loc domain.Location, parameter string, series []float64) (values []float64, intervals []domain.Interval, r2s, maes []float64) {
	values = make([]float64, 0, len(p.cfg.Horizons))
	intervals = make([]domain.Interval, 0, len(p.cfg.Horizons))

	for _, horizon := range p.cfg.Horizons {
		ens, err := p.store.TrainOnce(p.key(loc, parameter, horizon), func() (*horizonEnsemble, error) {
			return p.trainHorizon(series, horizon)
		})
		if err != nil {
			p.logger.Warn("forecast training failed",
				"parameter", parameter, "horizon_hours", horizon, "error", err)
			return nil, nil, nil, nil
		}

		input := latestFeatures(series, ens.window)
		var preds []float64
		for _, tm := range ens.models {
			v, err := tm.model.Predict(input)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			preds = append(preds, v)
			r2s = append(r2s, tm.r2)
			maes = append(maes, tm.mae)
		}
		if len(preds) == 0 {
			return nil, nil, nil, nil
		}

		mean := stat.Mean(preds, nil)
		std := 0.0
		if len(preds) > 1 {
			std = stat.StdDev(preds, nil)
		}
		values = append(values, mean)
		intervals = append(intervals, domain.Interval{
			Lower: mean - 1.96*std,
			Upper: mean + 1.96*std,
		})
	}
	return values, intervals, r2s, maes
}

func (p *Predictor) trainHorizon(series []float64, horizon int) (*horizonEnsemble, error) {
	window := windowSize(len(series))
	features, targets := trainingSet(series, window, horizon)
	if len(features) < 4 {
		return nil, fmt.Errorf("only %d training examples for window %d", len(features), window)
	}

	train, test := splitTrainTest(len(features))
	trainX := make([][]float64, len(train))
	trainY := make([]float64, len(train))
	for i, idx := range train {
		trainX[i] = features[idx]
		trainY[i] = targets[idx]
	}

	ens := &horizonEnsemble{window: window}
	for _, model := range newRegressorEnsemble() {
		if err := model.Fit(trainX, trainY); err != nil {
			p.logger.Warn("model fit failed", "model", model.Name(), "error", err)
			continue
		}
		r2, mae := evaluate(model, features, targets, test)
		ens.models = append(ens.models, trainedModel{model: model, r2: r2, mae: mae})
	}
	if len(ens.models) == 0 {
		return nil, fmt.Errorf("no model could fit %d examples", len(features))
	}
	return ens, nil
}

// fallbackForecast extrapolates a linear trend over the series tail when no
// ensemble could be trained for the parameter. Intervals are a flat 10% band.
func (p *Predictor) fallbackForecast(series []float64) ([]float64, []domain.Interval) {
	tail := series
	if len(tail) > fallbackTail {
		tail = tail[len(tail)-fallbackTail:]
	}
	xs := make([]float64, len(tail))
	for i := range xs {
		xs[i] = float64(i)
	}
	intercept, slope := stat.LinearRegression(xs, tail, nil, false)
	last := float64(len(tail) - 1)

	values := make([]float64, len(p.cfg.Horizons))
	intervals := make([]domain.Interval, len(p.cfg.Horizons))
	for i, h := range p.cfg.Horizons {
		v := intercept + slope*(last+float64(h))
		values[i] = v
		margin := 0.1 * math.Abs(v)
		intervals[i] = domain.Interval{Lower: v - margin, Upper: v + margin}
	}
	return values, intervals
}

func (p *Predictor) key(loc domain.Location, parameter string, horizon int) string {
	return fmt.Sprintf("%s|%s|%dh", loc.Key(), parameter, horizon)
}

// classifyTrend compares the furthest-horizon forecast against the latest
// observation; changes within 5% read as stable.
func classifyTrend(latest, predicted float64) string {
	if latest == 0 {
		if predicted > 0 {
			return domain.TrendIncreasing
		}
		if predicted < 0 {
			return domain.TrendDecreasing
		}
		return domain.TrendStable
	}
	change := (predicted - latest) / math.Abs(latest)
	switch {
	case change > trendBand:
		return domain.TrendIncreasing
	case change < -trendBand:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

// forecastParameters selects the observed environmental columns, skipping
// the derived encodings that only exist to feed other models.
func forecastParameters(t *feature.Table) []string {
	var out []string
	for _, name := range t.Names() {
		if derivedColumns[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}

var derivedColumns = map[string]bool{
	"hour":             true,
	"day_of_week":      true,
	"month":            true,
	"is_weekend":       true,
	"hour_sin":         true,
	"hour_cos":         true,
	"month_sin":        true,
	"month_cos":        true,
	"heat_index":       true,
	"wind_u":           true,
	"wind_v":           true,
	"density_altitude": true,
	"wave_energy":      true,
	"aqi_pm25":         true,
	"aqi_pm10":         true,
}

func seriesOf(t *feature.Table, parameter string) []float64 {
	if t == nil {
		return nil
	}
	col, ok := t.Column(parameter)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
