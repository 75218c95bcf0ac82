// Package feature turns raw heterogeneous reading records into the uniform
// numeric table the analytic components consume, and owns the derived-feature
// and scaling logic built on top of it.
package feature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/oceansentinel/threat-scoring/internal/domain"
)

// Table is a rectangular table of named numeric columns aligned by row.
// Rows correspond to Timestamps when the input carried them, otherwise to
// arrival order. All cells are finite once preprocessing completes.
type Table struct {
	Timestamps []time.Time

	names []string
	cols  map[string][]float64
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{cols: make(map[string][]float64)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.names) == 0 {
		return 0
	}
	return len(t.cols[t.names[0]])
}

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.names) }

// Empty reports whether the table has no rows or no columns.
func (t *Table) Empty() bool { return t.Len() == 0 }

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the named column's values. The slice is shared, not copied.
func (t *Table) Column(name string) ([]float64, bool) {
	col, ok := t.cols[name]
	return col, ok
}

// Latest returns the last value of the named column.
func (t *Table) Latest(name string) (float64, bool) {
	col, ok := t.cols[name]
	if !ok || len(col) == 0 {
		return 0, false
	}
	return col[len(col)-1], true
}

// SetColumn adds or replaces a column. The value count must match the
// existing row count; this is a caller contract, not a data-quality issue.
func (t *Table) SetColumn(name string, values []float64) error {
	if len(t.names) > 0 && len(values) != t.Len() {
		return fmt.Errorf("column %s: %d values for %d rows", name, len(values), t.Len())
	}
	if _, exists := t.cols[name]; !exists {
		t.names = append(t.names, name)
	}
	t.cols[name] = values
	return nil
}

// DropColumn removes a column if present.
func (t *Table) DropColumn(name string) {
	if _, ok := t.cols[name]; !ok {
		return
	}
	delete(t.cols, name)
	for i, n := range t.names {
		if n == name {
			t.names = append(t.names[:i], t.names[i+1:]...)
			break
		}
	}
}

// Matrix extracts the named columns as a row-major matrix for model input.
// Missing columns are skipped; the returned names list the columns actually
// present, in the requested order.
func (t *Table) Matrix(names []string) ([][]float64, []string) {
	present := make([]string, 0, len(names))
	for _, n := range names {
		if t.Has(n) {
			present = append(present, n)
		}
	}
	rows := make([][]float64, t.Len())
	for i := range rows {
		row := make([]float64, len(present))
		for j, n := range present {
			row[j] = t.cols[n][i]
		}
		rows[i] = row
	}
	return rows, present
}

// Records converts the table back into wide-form records, one per row.
func (t *Table) Records() []domain.Record {
	records := make([]domain.Record, t.Len())
	for i := range records {
		params := make(map[string]float64, len(t.names))
		for _, n := range t.names {
			params[n] = t.cols[n][i]
		}
		records[i] = domain.Record{Params: params}
		if i < len(t.Timestamps) {
			records[i].Timestamp = t.Timestamps[i]
		}
	}
	return records
}

// Fingerprint produces a deterministic SHA-256 hash of the table contents.
// Columns are hashed in sorted name order so the fingerprint is independent
// of insertion order; identical data always yields an identical hash, which
// the integrity-logging collaborator relies on for provenance verification.
func (t *Table) Fingerprint() string {
	h := sha256.New()

	names := t.Names()
	sort.Strings(names)
	for _, ts := range t.Timestamps {
		fmt.Fprintf(h, "%d|", ts.UTC().UnixNano())
	}
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{'|'})
		for _, v := range t.cols[n] {
			fmt.Fprintf(h, "%g|", v)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalName folds a raw parameter name to lowercase, collapses whitespace
// and punctuation runs to single underscores, and resolves synonyms.
func canonicalName(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	if mapped, ok := synonyms[name]; ok {
		return mapped
	}
	return name
}

// synonyms maps provider-specific parameter names to canonical ones.
var synonyms = map[string]string{
	"temp":              "temperature",
	"air_temp":          "temperature",
	"water_temp":        "water_temperature",
	"sea_temp":          "water_temperature",
	"rh":                "humidity",
	"relative_humidity": "humidity",
	"wspd":              "wind_speed",
	"wind":              "wind_speed",
	"wdir":              "wind_direction",
	"pres":              "pressure",
	"atm_pressure":      "pressure",
	"vis":               "visibility",
	"wave":              "wave_height",
	"tide":              "tide_level",
	"sal":               "salinity",
	"pm2_5":             "pm25",
	"o3":                "ozone",
	"no2":               "nitrogen_dioxide",
	"so2":               "sulfur_dioxide",
	"co":                "carbon_monoxide",
}

// validRanges bounds each canonical parameter to physically plausible values.
// Out-of-range readings become missing rather than clamped so they flow
// through the missing-value policy.
var validRanges = map[string][2]float64{
	"temperature":       {-50, 60},
	"water_temperature": {-5, 40},
	"humidity":          {0, 100},
	"pressure":          {900, 1100},
	"wind_speed":        {0, 200},
	"wind_direction":    {0, 360},
	"visibility":        {0, 50},
	"wave_height":       {0, 30},
	"tide_level":        {-5, 5},
	"salinity":          {0, 45},
	"pm25":              {0, 500},
	"pm10":              {0, 1000},
	"ozone":             {0, 300},
	"nitrogen_dioxide":  {0, 200},
	"sulfur_dioxide":    {0, 100},
	"carbon_monoxide":   {0, 50},
}

func isMissing(v float64) bool { return math.IsNaN(v) }
