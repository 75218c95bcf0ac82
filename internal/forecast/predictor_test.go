package forecast

import (
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceansentinel/threat-scoring/internal/domain"
	"github.com/oceansentinel/threat-scoring/internal/feature"
)

var testLoc = domain.Location{Lat: 29.76, Lon: -95.37}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func historyOf(t *testing.T, cols map[string][]float64) *feature.Table {
	t.Helper()
	tbl := feature.NewTable()
	for name, values := range cols {
		require.NoError(t, tbl.SetColumn(name, values))
	}
	return tbl
}

// waveSeries is a deterministic quasi-periodic series long enough to train on.
func waveSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 20 + 5*math.Sin(float64(i)/5) + 0.1*float64(i%3)
	}
	return out
}

func TestPredictEmptyHistory(t *testing.T) {
	p := NewPredictor(Config{}, testLogger())

	for _, history := range []*feature.Table{nil, feature.NewTable()} {
		result := p.Predict(testLoc, history)

		assert.Equal(t, defaultHorizons, result.ForecastHours)
		assert.NotNil(t, result.Predictions)
		assert.Empty(t, result.Predictions)
		assert.NotNil(t, result.TrendAnalysis)
		assert.Equal(t, "no historical data", result.Meta.Note)
	}
}

func TestPredictInsufficientHistory(t *testing.T) {
	p := NewPredictor(Config{}, testLogger())
	history := historyOf(t, map[string][]float64{
		"temperature": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})

	result := p.Predict(testLoc, history)

	assert.Equal(t, defaultHorizons, result.ForecastHours)
	assert.Empty(t, result.Predictions)
	assert.Empty(t, result.AlertsPredicted)
	assert.Equal(t, "insufficient data", result.Meta.Note)
	assert.Equal(t, 10, result.Meta.DataPoints)
}

func TestPredictFallback(t *testing.T) {
	// Horizons of 6+ hours leave fewer than four training examples for a
	// ten-point series, so every subtest exercises the linear fallback.
	t.Run("linear extrapolation when training fails", func(t *testing.T) {
		p := NewPredictor(Config{Horizons: []int{6, 8}, MinSamples: 10}, testLogger())
		history := historyOf(t, map[string][]float64{
			"temperature": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		})

		result := p.Predict(testLoc, history)

		values := result.Predictions["temperature"]
		require.Len(t, values, 2)
		assert.InDelta(t, 16, values[0], 1e-9)
		assert.InDelta(t, 18, values[1], 1e-9)
		assert.Equal(t, "linear fallback", result.Meta.Note)

		intervals := result.ConfidenceIntervals["temperature"]
		require.Len(t, intervals, 2)
		assert.InDelta(t, 16*0.9, intervals[0].Lower, 1e-9)
		assert.InDelta(t, 16*1.1, intervals[0].Upper, 1e-9)

		assert.Equal(t, domain.TrendIncreasing, result.TrendAnalysis["temperature"])
		assert.Zero(t, result.Performance.ModelsTrained)
	})

	t.Run("single point skipped", func(t *testing.T) {
		p := NewPredictor(Config{Horizons: []int{6, 8}, MinSamples: 1}, testLogger())
		history := historyOf(t, map[string][]float64{"temperature": {20}})

		result := p.Predict(testLoc, history)

		assert.Empty(t, result.Predictions)
	})

	t.Run("rising wind produces alerts", func(t *testing.T) {
		p := NewPredictor(Config{Horizons: []int{6, 8}, MinSamples: 10}, testLogger())
		history := historyOf(t, map[string][]float64{
			"wind_speed": {100, 105, 110, 115, 120, 125, 130, 135, 140, 145},
		})

		result := p.Predict(testLoc, history)

		assert.Equal(t, 5, result.RiskAssessment["wind_speed"])
		require.NotEmpty(t, result.AlertsPredicted)
		alert := result.AlertsPredicted[0]
		assert.Equal(t, "wind_speed", alert.Parameter)
		assert.Equal(t, 5, alert.Severity)
		assert.Equal(t, 6, alert.ForecastHour)
		assert.Contains(t, alert.Description, "wind_speed")
		assert.Contains(t, alert.Description, "Extreme risk")
	})

	t.Run("trend follows furthest horizon", func(t *testing.T) {
		// The 5h forecast lands within the 5% band (114 against 109) while
		// the 24h forecast is well above it (133).
		p := NewPredictor(Config{Horizons: []int{5, 24}, MinSamples: 10}, testLogger())
		history := historyOf(t, map[string][]float64{
			"temperature": {100, 101, 102, 103, 104, 105, 106, 107, 108, 109},
		})

		result := p.Predict(testLoc, history)

		values := result.Predictions["temperature"]
		require.Len(t, values, 2)
		assert.InDelta(t, 114, values[0], 1e-9)
		assert.InDelta(t, 133, values[1], 1e-9)
		assert.Equal(t, domain.TrendIncreasing, result.TrendAnalysis["temperature"])
	})
}

func TestPredictEnsemble(t *testing.T) {
	history := func(t *testing.T) *feature.Table {
		return historyOf(t, map[string][]float64{"water_temperature": waveSeries(60)})
	}

	t.Run("trains and forecasts all horizons", func(t *testing.T) {
		p := NewPredictor(Config{}, testLogger())

		result := p.Predict(testLoc, history(t))

		values := result.Predictions["water_temperature"]
		require.Len(t, values, len(defaultHorizons))
		for _, v := range values {
			assert.False(t, math.IsNaN(v))
			assert.False(t, math.IsInf(v, 0))
		}

		intervals := result.ConfidenceIntervals["water_temperature"]
		require.Len(t, intervals, len(defaultHorizons))
		for i, iv := range intervals {
			assert.LessOrEqual(t, iv.Lower, values[i])
			assert.GreaterOrEqual(t, iv.Upper, values[i])
		}

		assert.Positive(t, result.Performance.ModelsTrained)
		assert.GreaterOrEqual(t, result.Performance.AccuracyPercent, 0.0)
		assert.LessOrEqual(t, result.Performance.AccuracyPercent, 100.0)
		assert.Equal(t, 60, result.Meta.DataPoints)
		assert.Contains(t, []string{domain.TrendIncreasing, domain.TrendDecreasing, domain.TrendStable},
			result.TrendAnalysis["water_temperature"])
	})

	t.Run("deterministic across fresh predictors", func(t *testing.T) {
		a := NewPredictor(Config{}, testLogger())
		b := NewPredictor(Config{}, testLogger())

		ra := a.Predict(testLoc, history(t))
		rb := b.Predict(testLoc, history(t))

		assert.Equal(t, ra.Predictions, rb.Predictions)
		assert.Equal(t, ra.ConfidenceIntervals, rb.ConfidenceIntervals)
	})

	t.Run("derived columns not forecast", func(t *testing.T) {
		p := NewPredictor(Config{}, testLogger())
		tbl := historyOf(t, map[string][]float64{
			"temperature": waveSeries(60),
			"hour_sin":    waveSeries(60),
		})

		result := p.Predict(testLoc, tbl)

		assert.Contains(t, result.Predictions, "temperature")
		assert.NotContains(t, result.Predictions, "hour_sin")
	})
}

func TestRetrain(t *testing.T) {
	t.Run("too little history rejected", func(t *testing.T) {
		p := NewPredictor(Config{}, testLogger())
		history := historyOf(t, map[string][]float64{"temperature": {1, 2, 3}})

		err := p.Retrain(testLoc, "temperature", history)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "below training minimum")
	})

	t.Run("retrains every horizon", func(t *testing.T) {
		p := NewPredictor(Config{Horizons: []int{2, 4}}, testLogger())
		history := historyOf(t, map[string][]float64{"water_temperature": waveSeries(60)})

		require.NoError(t, p.Retrain(testLoc, "water_temperature", history))

		result := p.Predict(testLoc, history)
		assert.Len(t, result.Predictions["water_temperature"], 2)
	})
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name      string
		latest    float64
		predicted float64
		expected  string
	}{
		{"rising", 20, 22, domain.TrendIncreasing},
		{"falling", 20, 18, domain.TrendDecreasing},
		{"within band", 20, 20.5, domain.TrendStable},
		{"exactly at band edge", 20, 21, domain.TrendStable},
		{"zero latest rising", 0, 1, domain.TrendIncreasing},
		{"zero latest falling", 0, -1, domain.TrendDecreasing},
		{"zero both", 0, 0, domain.TrendStable},
		{"negative latest falling further", -10, -11.5, domain.TrendDecreasing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyTrend(tt.latest, tt.predicted))
		})
	}
}
