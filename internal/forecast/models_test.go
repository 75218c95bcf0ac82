package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearData builds y = 2x + 3 over a single feature.
func linearData(n int) ([][]float64, []float64) {
	features := make([][]float64, n)
	targets := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		features[i] = []float64{x}
		targets[i] = 2*x + 3
	}
	return features, targets
}

func TestRegressorEnsemble(t *testing.T) {
	features, targets := linearData(30)

	for _, model := range newRegressorEnsemble() {
		t.Run(model.Name(), func(t *testing.T) {
			require.NoError(t, model.Fit(features, targets))

			// Interior point; stump ensembles can only interpolate.
			v, err := model.Predict([]float64{10})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, 3.0-5)
			assert.LessOrEqual(t, v, 61.0+5)
		})
	}
}

func TestRegressorsPredictBeforeFit(t *testing.T) {
	for _, model := range newRegressorEnsemble() {
		t.Run(model.Name(), func(t *testing.T) {
			_, err := model.Predict([]float64{1})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not fitted")
		})
	}
}

func TestLinearRegressor(t *testing.T) {
	features, targets := linearData(30)
	r := &linearRegressor{}
	require.NoError(t, r.Fit(features, targets))

	v, err := r.Predict([]float64{10})
	require.NoError(t, err)
	assert.InDelta(t, 23, v, 1e-6)
}

func TestRidgeRegressor(t *testing.T) {
	features, targets := linearData(30)
	r := &ridgeRegressor{lambda: 1.0}
	require.NoError(t, r.Fit(features, targets))

	t.Run("close to the trend", func(t *testing.T) {
		v, err := r.Predict([]float64{10})
		require.NoError(t, err)
		assert.InDelta(t, 23, v, 2)
	})

	t.Run("width mismatch rejected", func(t *testing.T) {
		_, err := r.Predict([]float64{1, 2})
		require.Error(t, err)
	})
}

func TestBoostedStumps(t *testing.T) {
	features, targets := linearData(30)
	r := &boostedStumps{rounds: 50, learningRate: 0.1}
	require.NoError(t, r.Fit(features, targets))

	// Boosting should get closer to the trend than the plain mean.
	v, err := r.Predict([]float64{5})
	require.NoError(t, err)
	mean := 32.0 // mean of targets over 0..29
	assert.Less(t, absDiff(v, 13), absDiff(mean, 13))
}

func TestBaggedStumpsDeterminism(t *testing.T) {
	features, targets := linearData(30)

	a := &baggedStumps{trees: 25, seed: trainSeed}
	b := &baggedStumps{trees: 25, seed: trainSeed}
	require.NoError(t, a.Fit(features, targets))
	require.NoError(t, b.Fit(features, targets))

	va, err := a.Predict([]float64{12})
	require.NoError(t, err)
	vb, err := b.Predict([]float64{12})
	require.NoError(t, err)
	assert.Equal(t, va, vb)
}

func TestMLPDeterminism(t *testing.T) {
	features, targets := linearData(30)

	a := &mlpRegressor{hidden: 8, epochs: 200, learningRate: 0.01, seed: trainSeed}
	b := &mlpRegressor{hidden: 8, epochs: 200, learningRate: 0.01, seed: trainSeed}
	require.NoError(t, a.Fit(features, targets))
	require.NoError(t, b.Fit(features, targets))

	va, err := a.Predict([]float64{7})
	require.NoError(t, err)
	vb, err := b.Predict([]float64{7})
	require.NoError(t, err)
	assert.Equal(t, va, vb)
}

func TestFitStump(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {10}, {11}, {12}}
	targets := []float64{5, 5, 5, 50, 50, 50}
	idx := []int{0, 1, 2, 3, 4, 5}

	s := fitStump(features, targets, idx, []int{0})

	assert.Equal(t, 0, s.feature)
	assert.Equal(t, 5.0, s.predict([]float64{2}))
	assert.Equal(t, 50.0, s.predict([]float64{11}))
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
