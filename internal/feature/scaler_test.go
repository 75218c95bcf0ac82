package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScaler(t *testing.T) {
	for _, method := range []string{ScaleStandard, ScaleRobust, ScaleMinMax, ScaleNone} {
		t.Run(method, func(t *testing.T) {
			s, err := NewScaler(method)
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}

	t.Run("unknown method rejected", func(t *testing.T) {
		_, err := NewScaler("zscore")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "zscore")
	})
}

func TestScalerStandard(t *testing.T) {
	s, err := NewScaler(ScaleStandard)
	require.NoError(t, err)

	rows := [][]float64{{1}, {2}, {3}, {4}, {5}}
	out, err := s.FitTransform(rows)
	require.NoError(t, err)

	// Mean 3, centered values sum to zero.
	sum := 0.0
	for _, row := range out {
		sum += row[0]
	}
	assert.InDelta(t, 0, sum, 1e-9)
	assert.Negative(t, out[0][0])
	assert.Positive(t, out[4][0])
}

func TestScalerMinMax(t *testing.T) {
	s, err := NewScaler(ScaleMinMax)
	require.NoError(t, err)

	rows := [][]float64{{10, 100}, {20, 200}, {30, 300}}
	out, err := s.FitTransform(rows)
	require.NoError(t, err)

	assert.InDelta(t, 0, out[0][0], 1e-9)
	assert.InDelta(t, 0.5, out[1][0], 1e-9)
	assert.InDelta(t, 1, out[2][1], 1e-9)
}

func TestScalerRobust(t *testing.T) {
	s, err := NewScaler(ScaleRobust)
	require.NoError(t, err)

	// A single spike should not dominate the scale the way it would with
	// mean/std scaling.
	rows := [][]float64{{1}, {2}, {3}, {4}, {1000}}
	out, err := s.FitTransform(rows)
	require.NoError(t, err)

	assert.InDelta(t, 0, out[2][0], 1e-9) // median maps to zero
	assert.Less(t, out[0][0], 0.0)
}

func TestScalerNone(t *testing.T) {
	s, err := NewScaler(ScaleNone)
	require.NoError(t, err)

	rows := [][]float64{{7, -2}, {8, -3}}
	out, err := s.FitTransform(rows)
	require.NoError(t, err)

	assert.Equal(t, rows, out)
}

func TestScalerEdgeCases(t *testing.T) {
	t.Run("constant column maps to zero", func(t *testing.T) {
		s, err := NewScaler(ScaleStandard)
		require.NoError(t, err)

		out, err := s.FitTransform([][]float64{{5}, {5}, {5}})
		require.NoError(t, err)
		for _, row := range out {
			assert.Equal(t, 0.0, row[0])
		}
	})

	t.Run("fit on empty matrix rejected", func(t *testing.T) {
		s, err := NewScaler(ScaleStandard)
		require.NoError(t, err)

		require.Error(t, s.Fit(nil))
		require.Error(t, s.Fit([][]float64{{}}))
	})

	t.Run("transform before fit rejected", func(t *testing.T) {
		s, err := NewScaler(ScaleStandard)
		require.NoError(t, err)

		_, err = s.Transform([][]float64{{1}})
		require.Error(t, err)
	})

	t.Run("row width mismatch rejected", func(t *testing.T) {
		s, err := NewScaler(ScaleStandard)
		require.NoError(t, err)
		require.NoError(t, s.Fit([][]float64{{1, 2}, {3, 4}}))

		_, err = s.Transform([][]float64{{1}})
		require.Error(t, err)
	})
}
