package anomaly

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/oceansentinel/threat-scoring/internal/feature"
)

// Baseline holds per-parameter statistics of the historical window an
// ensemble was trained on. Current readings are judged against these when
// attributing which parameters drove an anomaly.
type Baseline struct {
	Mean    map[string]float64
	Std     map[string]float64
	Min     map[string]float64
	Max     map[string]float64
	Q25     map[string]float64
	Q75     map[string]float64
	Samples int
}

// computeBaseline summarizes every column of the historical table. Columns
// with no finite values are left out.
func computeBaseline(t *feature.Table) *Baseline {
	b := &Baseline{
		Mean:    make(map[string]float64),
		Std:     make(map[string]float64),
		Min:     make(map[string]float64),
		Max:     make(map[string]float64),
		Q25:     make(map[string]float64),
		Q75:     make(map[string]float64),
		Samples: t.Len(),
	}
	for _, name := range t.Names() {
		vals := finiteValues(t.Column(name))
		if len(vals) == 0 {
			continue
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		b.Mean[name] = stat.Mean(vals, nil)
		b.Std[name] = stat.StdDev(vals, nil)
		b.Min[name] = sorted[0]
		b.Max[name] = sorted[len(sorted)-1]
		b.Q25[name] = stat.Quantile(0.25, stat.Empirical, sorted, nil)
		b.Q75[name] = stat.Quantile(0.75, stat.Empirical, sorted, nil)
	}
	return b
}

// deviates reports whether value is unusual relative to the baseline of the
// named parameter: more than two standard deviations from the mean, or
// outside 80% of the historical minimum to 120% of the historical maximum.
func (b *Baseline) deviates(name string, value float64) bool {
	mean, ok := b.Mean[name]
	if !ok {
		return false
	}
	if std := b.Std[name]; std > 0 {
		z := (value - mean) / std
		if z > 2 || z < -2 {
			return true
		}
	}
	return value < 0.8*b.Min[name] || value > 1.2*b.Max[name]
}

func finiteValues(col []float64, ok bool) []float64 {
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
