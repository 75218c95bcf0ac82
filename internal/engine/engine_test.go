package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceansentinel/threat-scoring/internal/anomaly"
	"github.com/oceansentinel/threat-scoring/internal/classify"
	"github.com/oceansentinel/threat-scoring/internal/domain"
	"github.com/oceansentinel/threat-scoring/internal/feature"
	"github.com/oceansentinel/threat-scoring/internal/forecast"
	"github.com/oceansentinel/threat-scoring/internal/observability"
)

var testLoc = domain.Location{Lat: 29.76, Lon: -95.37}

func newTestEngine(cfg Config) *Engine {
	logger := slog.New(slog.DiscardHandler)
	return New(cfg,
		feature.NewPreprocessor(feature.Config{}, logger),
		anomaly.NewScorer(anomaly.Config{}, logger),
		forecast.NewPredictor(forecast.Config{}, logger),
		classify.NewEngine(classify.Config{}, logger),
		logger,
		observability.NewMetricsForTesting())
}

func readingBatch(loc domain.Location, hours int) domain.Batch {
	base := time.Date(2024, 4, 26, 6, 0, 0, 0, time.UTC)
	records := make([]domain.Record, hours)
	for i := range records {
		records[i] = domain.Record{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Params: map[string]float64{
				"temperature": 20 + float64(i%5)*0.5,
				"humidity":    60 + float64(i%7),
			},
		}
	}
	return domain.Batch{Location: loc, Records: records}
}

func TestScoreBatch(t *testing.T) {
	t.Run("invalid location", func(t *testing.T) {
		e := newTestEngine(Config{})
		_, err := e.ScoreBatch(context.Background(), domain.Batch{
			Location: domain.Location{Lat: 999, Lon: 0},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scoring batch")
	})

	t.Run("merges branch results", func(t *testing.T) {
		e := newTestEngine(Config{})
		batch := readingBatch(testLoc, 5)

		report, err := e.ScoreBatch(context.Background(), batch)
		require.NoError(t, err)

		assert.NotEmpty(t, report.ID)
		assert.NotEmpty(t, report.InputHash)
		assert.Equal(t, testLoc, report.Location)

		start, end := batch.Window()
		assert.Equal(t, start, report.WindowStart)
		assert.Equal(t, end, report.WindowEnd)

		for _, branch := range []string{branchAnomaly, branchForecast, branchClassify} {
			assert.Equal(t, domain.BranchOK, report.BranchStatus[branch])
		}

		// First batch for a location has no history to train on.
		assert.Equal(t, domain.MethodStatistical, report.Anomaly.DetectionMethod)

		// Temperature and humidity satisfy the storm and pollution categories.
		assert.Len(t, report.Threats, 2)
		assert.Contains(t, report.SkippedCategories, "erosion")
		assert.Contains(t, report.SkippedCategories, "algal_bloom")
		assert.Contains(t, report.SkippedCategories, "illegal_dumping")
	})

	t.Run("empty batch degrades to empty branches", func(t *testing.T) {
		e := newTestEngine(Config{})

		report, err := e.ScoreBatch(context.Background(), domain.Batch{Location: testLoc})
		require.NoError(t, err)

		for _, branch := range []string{branchAnomaly, branchForecast, branchClassify} {
			assert.Equal(t, domain.BranchEmpty, report.BranchStatus[branch])
		}
		assert.Equal(t, domain.MethodNone, report.Anomaly.DetectionMethod)
		assert.False(t, report.Anomaly.IsAnomaly)
		assert.Len(t, report.SkippedCategories, len(classify.Categories))
	})

	t.Run("history upgrades anomaly detection to the ensemble", func(t *testing.T) {
		e := newTestEngine(Config{})

		first, err := e.ScoreBatch(context.Background(), readingBatch(testLoc, 8))
		require.NoError(t, err)
		assert.Equal(t, domain.MethodStatistical, first.Anomaly.DetectionMethod)

		second, err := e.ScoreBatch(context.Background(), readingBatch(testLoc, 5))
		require.NoError(t, err)
		assert.Equal(t, domain.MethodEnsembleML, second.Anomaly.DetectionMethod)
	})

	t.Run("canceled context", func(t *testing.T) {
		e := newTestEngine(Config{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.ScoreBatch(ctx, readingBatch(testLoc, 3))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunBranchTimeout(t *testing.T) {
	fake := clockwork.NewFakeClock()
	SetClock(fake)
	defer SetClock(nil) // reset

	e := newTestEngine(Config{BranchTimeout: time.Second})
	release := make(chan struct{})
	defer close(release)

	ch := runBranch(context.Background(), e, branchAnomaly, func() int {
		<-release
		return 1
	})

	fake.BlockUntil(1)
	fake.Advance(2 * time.Second)

	out := <-ch
	assert.Equal(t, domain.BranchTimeout, out.status)
}

func TestEmptySubstitutes(t *testing.T) {
	e := newTestEngine(Config{})

	a := emptyAnomaly(domain.BranchTimeout)
	assert.False(t, a.IsAnomaly)
	assert.Equal(t, 1, a.Severity)
	assert.Equal(t, domain.MethodNone, a.DetectionMethod)
	assert.Contains(t, a.Meta.Note, domain.BranchTimeout)

	f := e.emptyForecast(domain.BranchTimeout)
	assert.NotNil(t, f.Predictions)
	assert.Empty(t, f.Predictions)
	assert.Contains(t, f.Meta.Note, domain.BranchTimeout)
}

func TestForecastInput(t *testing.T) {
	e := newTestEngine(Config{})

	current := feature.NewTable()
	require.NoError(t, current.SetColumn("temperature", []float64{20, 21}))
	historical := feature.NewTable()
	require.NoError(t, historical.SetColumn("temperature", []float64{18, 19, 20, 21}))

	assert.Same(t, historical, e.forecastInput(current, historical))
	assert.Same(t, current, e.forecastInput(current, nil))

	short := feature.NewTable()
	require.NoError(t, short.SetColumn("temperature", []float64{18}))
	assert.Same(t, current, e.forecastInput(current, short))
}
