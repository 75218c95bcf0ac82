package feature

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Normalization methods accepted by NewScaler.
const (
	ScaleStandard = "standard"
	ScaleRobust   = "robust"
	ScaleMinMax   = "minmax"
	ScaleNone     = "none"
)

// Scaler centers and scales feature matrices column-wise. Robust scaling
// (median/IQR) is the default throughout the engine because environmental
// readings carry heavy-tailed spikes that would dominate mean/std scaling.
type Scaler struct {
	method string
	center []float64
	scale  []float64
}

// NewScaler creates a scaler for one of the supported methods.
func NewScaler(method string) (*Scaler, error) {
	switch method {
	case ScaleStandard, ScaleRobust, ScaleMinMax, ScaleNone:
		return &Scaler{method: method}, nil
	default:
		return nil, fmt.Errorf("unknown normalization method %q", method)
	}
}

// Fit learns per-column center and scale from a row-major matrix.
func (s *Scaler) Fit(rows [][]float64) error {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return errors.New("scaler fit: empty matrix")
	}
	width := len(rows[0])
	s.center = make([]float64, width)
	s.scale = make([]float64, width)

	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}
		switch s.method {
		case ScaleStandard:
			s.center[j] = stat.Mean(col, nil)
			s.scale[j] = stat.StdDev(col, nil)
		case ScaleRobust:
			sorted := append([]float64(nil), col...)
			sort.Float64s(sorted)
			s.center[j] = stat.Quantile(0.5, stat.Empirical, sorted, nil)
			s.scale[j] = stat.Quantile(0.75, stat.Empirical, sorted, nil) -
				stat.Quantile(0.25, stat.Empirical, sorted, nil)
		case ScaleMinMax:
			lo, hi := col[0], col[0]
			for _, v := range col {
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
			s.center[j] = lo
			s.scale[j] = hi - lo
		case ScaleNone:
			s.center[j] = 0
			s.scale[j] = 1
		}
		// Constant columns scale by 1 so they map to 0, not NaN.
		if s.scale[j] == 0 || math.IsNaN(s.scale[j]) {
			s.scale[j] = 1
		}
	}
	return nil
}

// Transform scales a row-major matrix with the fitted parameters.
func (s *Scaler) Transform(rows [][]float64) ([][]float64, error) {
	if s.center == nil {
		return nil, errors.New("scaler transform: not fitted")
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(s.center) {
			return nil, fmt.Errorf("scaler transform: row width %d, fitted %d", len(row), len(s.center))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.center[j]) / s.scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform fits and transforms in one step.
func (s *Scaler) FitTransform(rows [][]float64) ([][]float64, error) {
	if err := s.Fit(rows); err != nil {
		return nil, err
	}
	return s.Transform(rows)
}
