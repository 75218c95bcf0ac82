package feature

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/oceansentinel/threat-scoring/internal/domain"
)

// MissingStrategy selects how missing cells are filled before zero-fill.
type MissingStrategy string

const (
	MissingInterpolate MissingStrategy = "interpolation"
	MissingFill        MissingStrategy = "fill" // forward then backward fill
	MissingMean        MissingStrategy = "mean"
	MissingMedian      MissingStrategy = "median"
)

// Config tunes the preprocessor. Zero values select the defaults.
type Config struct {
	MissingStrategy MissingStrategy
	// OutlierCapRatio is the per-column outlier fraction above which values
	// are capped at the 5th/95th percentiles instead of replaced with the
	// median. Default 0.10.
	OutlierCapRatio float64
}

// Quality summarizes the data-quality degradations applied during one
// Prepare call. Degradations are reported, never raised as errors.
type Quality struct {
	RowCount         int
	Filled           int
	ZeroFilled       int
	DroppedColumns   []string
	OutliersCapped   int
	OutliersReplaced int
}

// Degraded reports whether any zero-fills or column drops occurred.
func (q Quality) Degraded() bool {
	return q.ZeroFilled > 0 || len(q.DroppedColumns) > 0
}

// Preprocessor normalizes raw reading records into a clean feature table.
type Preprocessor struct {
	cfg    Config
	logger *slog.Logger
}

// NewPreprocessor creates a Preprocessor.
func NewPreprocessor(cfg Config, logger *slog.Logger) *Preprocessor {
	if cfg.MissingStrategy == "" {
		cfg.MissingStrategy = MissingInterpolate
	}
	if cfg.OutlierCapRatio == 0 {
		cfg.OutlierCapRatio = 0.10
	}
	return &Preprocessor{cfg: cfg, logger: logger}
}

// Prepare pivots, cleans, fills, de-outliers, and enriches raw records into
// a feature table. Empty or all-invalid input yields an empty table; data
// problems degrade and are reported in Quality, never as an error.
func (p *Preprocessor) Prepare(records []domain.Record) (*Table, Quality) {
	var q Quality

	table := pivot(records)
	if table.Empty() {
		return table, q
	}
	q.RowCount = table.Len()

	p.enforceRanges(table)
	p.dropEmptyColumns(table, &q)
	p.fillMissing(table, &q)
	p.handleOutliers(table, &q)
	deriveFeatures(table)

	if q.Degraded() {
		p.logger.Warn("data quality degraded during preprocessing",
			"zero_filled", q.ZeroFilled,
			"dropped_columns", q.DroppedColumns,
		)
	}
	return table, q
}

// pivot converts mixed wide/long records into one row per timestamp, with
// duplicate (timestamp, parameter) observations averaged. Records without
// timestamps in an otherwise untimestamped batch keep arrival order.
func pivot(records []domain.Record) *Table {
	type cell struct {
		sum   float64
		count int
	}

	timestamped := false
	for _, r := range records {
		if !r.Timestamp.IsZero() {
			timestamped = true
			break
		}
	}

	// Row key: timestamp when the batch carries timestamps, else arrival index.
	rowKeys := make([]time.Time, 0, len(records))
	rowIndex := make(map[time.Time]int)
	cells := make(map[int]map[string]*cell)
	names := make([]string, 0, 8)
	seen := make(map[string]bool)

	rowFor := func(i int, ts time.Time) int {
		if !timestamped {
			// Long records at the same arrival position share a row only in
			// wide form; keep it simple and give each record its own row.
			rowKeys = append(rowKeys, time.Time{})
			return len(rowKeys) - 1
		}
		if idx, ok := rowIndex[ts]; ok {
			return idx
		}
		rowIndex[ts] = len(rowKeys)
		rowKeys = append(rowKeys, ts)
		return rowIndex[ts]
	}

	add := func(row int, name string, v float64) {
		name = canonicalName(name)
		if name == "" {
			return
		}
		if cells[row] == nil {
			cells[row] = make(map[string]*cell)
		}
		c := cells[row][name]
		if c == nil {
			c = &cell{}
			cells[row][name] = c
		}
		c.sum += v
		c.count++
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for i, r := range records {
		row := rowFor(i, r.Timestamp.UTC())
		if r.IsLong() {
			add(row, r.Parameter, r.Value)
			continue
		}
		for name, v := range r.Params {
			add(row, name, v)
		}
	}

	if len(names) == 0 {
		return NewTable()
	}

	// Order rows by timestamp when available.
	order := make([]int, len(rowKeys))
	for i := range order {
		order[i] = i
	}
	if timestamped {
		sort.SliceStable(order, func(a, b int) bool {
			return rowKeys[order[a]].Before(rowKeys[order[b]])
		})
	}

	t := NewTable()
	t.Timestamps = make([]time.Time, len(order))
	for i, rowID := range order {
		t.Timestamps[i] = rowKeys[rowID]
	}
	sort.Strings(names)
	for _, name := range names {
		col := make([]float64, len(order))
		for i, rowID := range order {
			if c, ok := cells[rowID][name]; ok && c.count > 0 {
				col[i] = c.sum / float64(c.count)
			} else {
				col[i] = math.NaN()
			}
		}
		t.SetColumn(name, col) //nolint:errcheck // lengths are constructed equal
	}
	if !timestamped {
		t.Timestamps = nil
	}
	return t
}

// enforceRanges converts physically implausible values to missing so they
// participate in the missing-value policy instead of being silently clamped.
func (p *Preprocessor) enforceRanges(t *Table) {
	for _, name := range t.Names() {
		bounds, ok := validRanges[name]
		if !ok {
			continue
		}
		col, _ := t.Column(name)
		for i, v := range col {
			if !isMissing(v) && (v < bounds[0] || v > bounds[1]) {
				col[i] = math.NaN()
			}
		}
	}
}

// dropEmptyColumns removes columns with no observed values at all. Partially
// missing columns survive; row count is never reduced.
func (p *Preprocessor) dropEmptyColumns(t *Table, q *Quality) {
	for _, name := range t.Names() {
		col, _ := t.Column(name)
		empty := true
		for _, v := range col {
			if !isMissing(v) {
				empty = false
				break
			}
		}
		if empty {
			t.DropColumn(name)
			q.DroppedColumns = append(q.DroppedColumns, name)
		}
	}
}

func (p *Preprocessor) fillMissing(t *Table, q *Quality) {
	for _, name := range t.Names() {
		col, _ := t.Column(name)

		switch {
		case p.cfg.MissingStrategy == MissingInterpolate && len(t.Timestamps) == t.Len():
			q.Filled += interpolateLinear(col, t.Timestamps)
		case p.cfg.MissingStrategy == MissingInterpolate || p.cfg.MissingStrategy == MissingFill:
			q.Filled += fillForwardBackward(col)
		case p.cfg.MissingStrategy == MissingMean:
			q.Filled += fillConstant(col, observedMean(col))
		case p.cfg.MissingStrategy == MissingMedian:
			q.Filled += fillConstant(col, observedMedian(col))
		}

		// Whatever the strategy could not resolve is zero-filled.
		for i, v := range col {
			if isMissing(v) {
				col[i] = 0
				q.ZeroFilled++
			}
		}
	}
}

// interpolateLinear fills gaps by linear interpolation in time between the
// nearest observed neighbors, extending flat beyond the edges. Returns the
// number of cells filled.
func interpolateLinear(col []float64, ts []time.Time) int {
	filled := 0
	n := len(col)

	prev := -1 // index of last observed value
	for i := 0; i < n; i++ {
		if !isMissing(col[i]) {
			prev = i
			continue
		}
		// Find next observed value.
		next := -1
		for j := i + 1; j < n; j++ {
			if !isMissing(col[j]) {
				next = j
				break
			}
		}
		switch {
		case prev >= 0 && next >= 0:
			span := ts[next].Sub(ts[prev]).Seconds()
			if span <= 0 {
				col[i] = col[prev]
			} else {
				frac := ts[i].Sub(ts[prev]).Seconds() / span
				col[i] = col[prev] + frac*(col[next]-col[prev])
			}
			filled++
		case prev >= 0:
			col[i] = col[prev]
			filled++
		case next >= 0:
			col[i] = col[next]
			filled++
		}
	}
	return filled
}

func fillForwardBackward(col []float64) int {
	filled := 0
	last := math.NaN()
	for i, v := range col {
		if isMissing(v) {
			if !isMissing(last) {
				col[i] = last
				filled++
			}
		} else {
			last = v
		}
	}
	last = math.NaN()
	for i := len(col) - 1; i >= 0; i-- {
		if isMissing(col[i]) {
			if !isMissing(last) {
				col[i] = last
				filled++
			}
		} else {
			last = col[i]
		}
	}
	return filled
}

func fillConstant(col []float64, fill float64) int {
	if isMissing(fill) {
		return 0
	}
	filled := 0
	for i, v := range col {
		if isMissing(v) {
			col[i] = fill
			filled++
		}
	}
	return filled
}

// handleOutliers flags values by IQR fences and |z|>3. Columns where the
// flagged fraction exceeds the cap ratio are capped at the 5th/95th
// percentiles to preserve row count; otherwise flagged values are replaced
// with the column median. Columns shorter than 10 points are left alone.
func (p *Preprocessor) handleOutliers(t *Table, q *Quality) {
	for _, name := range t.Names() {
		col, _ := t.Column(name)
		if len(col) < 10 {
			continue
		}

		q1 := observedQuantile(col, 0.25)
		q3 := observedQuantile(col, 0.75)
		iqr := q3 - q1
		lower := q1 - 1.5*iqr
		upper := q3 + 1.5*iqr

		mean := observedMean(col)
		std := stat.StdDev(col, nil)

		flagged := make([]bool, len(col))
		count := 0
		for i, v := range col {
			iqrOut := v < lower || v > upper
			zOut := std > 0 && math.Abs((v-mean)/std) > 3
			if iqrOut || zOut {
				flagged[i] = true
				count++
			}
		}
		if count == 0 {
			continue
		}

		if float64(count)/float64(len(col)) > p.cfg.OutlierCapRatio {
			lo := observedQuantile(col, 0.05)
			hi := observedQuantile(col, 0.95)
			for i, v := range col {
				if v < lo {
					col[i] = lo
				} else if v > hi {
					col[i] = hi
				}
			}
			q.OutliersCapped += count
		} else {
			med := observedMedian(col)
			for i := range col {
				if flagged[i] {
					col[i] = med
				}
			}
			q.OutliersReplaced += count
		}
	}
}

// observedMean averages the non-missing values of a column.
func observedMean(col []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range col {
		if !isMissing(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func observedMedian(col []float64) float64 {
	return observedQuantile(col, 0.5)
}

// observedQuantile computes the p-quantile over non-missing values.
func observedQuantile(col []float64, p float64) float64 {
	vals := make([]float64, 0, len(col))
	for _, v := range col {
		if !isMissing(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	return stat.Quantile(p, stat.Empirical, vals, nil)
}
