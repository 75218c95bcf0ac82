package feature

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAQIPM25(t *testing.T) {
	tests := []struct {
		name     string
		conc     float64
		expected float64
	}{
		{"zero", 0, 0},
		{"good bracket upper edge", 12.0, 50},
		{"moderate bracket lower edge", 12.1, 51},
		{"reporting gap maps to next bracket", 12.05, 51},
		{"moderate bracket upper edge", 35.4, 100},
		{"unhealthy", 55.5, 151},
		{"above top bracket saturates", 600, 500},
		{"negative clamps to zero", -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AQIPM25(tt.conc))
		})
	}

	t.Run("missing stays missing", func(t *testing.T) {
		assert.True(t, math.IsNaN(AQIPM25(math.NaN())))
	})
}

func TestAQIPM10(t *testing.T) {
	tests := []struct {
		name     string
		conc     float64
		expected float64
	}{
		{"good bracket upper edge", 54, 50},
		{"moderate bracket lower edge", 55, 51},
		{"unhealthy for sensitive", 155, 101},
		{"above top bracket saturates", 800, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AQIPM10(tt.conc))
		})
	}
}

func TestDeriveFeatures(t *testing.T) {
	newTable := func(cols map[string][]float64) *Table {
		t2 := NewTable()
		for name, values := range cols {
			_ = t2.SetColumn(name, values)
		}
		return t2
	}

	t.Run("heat index", func(t *testing.T) {
		tbl := newTable(map[string][]float64{
			"temperature": {30},
			"humidity":    {60},
		})

		deriveFeatures(tbl)

		col, ok := tbl.Column("heat_index")
		require.True(t, ok)
		assert.InDelta(t, 30+0.33*60-0.7, col[0], 1e-9)
	})

	t.Run("wind components", func(t *testing.T) {
		tbl := newTable(map[string][]float64{
			"wind_speed":     {10},
			"wind_direction": {180},
		})

		deriveFeatures(tbl)

		u, _ := tbl.Column("wind_u")
		v, _ := tbl.Column("wind_v")
		assert.InDelta(t, 0, u[0], 1e-9)
		assert.InDelta(t, 10, v[0], 1e-9)
	})

	t.Run("wave energy", func(t *testing.T) {
		tbl := newTable(map[string][]float64{
			"wave_height": {2},
			"wind_speed":  {15},
		})

		deriveFeatures(tbl)

		col, _ := tbl.Column("wave_energy")
		assert.InDelta(t, 60, col[0], 1e-9)
	})

	t.Run("skipped when inputs absent", func(t *testing.T) {
		tbl := newTable(map[string][]float64{"temperature": {25}})

		deriveFeatures(tbl)

		assert.False(t, tbl.Has("heat_index"))
		assert.False(t, tbl.Has("wind_u"))
	})

	t.Run("existing columns not overwritten", func(t *testing.T) {
		tbl := newTable(map[string][]float64{
			"pm25":     {20},
			"aqi_pm25": {999},
		})

		deriveFeatures(tbl)

		col, _ := tbl.Column("aqi_pm25")
		assert.Equal(t, 999.0, col[0])
	})
}

func TestDeriveTimeFeatures(t *testing.T) {
	t.Run("cyclical and calendar columns", func(t *testing.T) {
		tbl := NewTable()
		// Saturday 06:00 UTC.
		tbl.Timestamps = []time.Time{time.Date(2024, 4, 27, 6, 0, 0, 0, time.UTC)}
		require.NoError(t, tbl.SetColumn("temperature", []float64{22}))

		deriveFeatures(tbl)

		hour, _ := tbl.Column("hour")
		assert.Equal(t, 6.0, hour[0])
		dow, _ := tbl.Column("day_of_week")
		assert.Equal(t, 5.0, dow[0])
		weekend, _ := tbl.Column("is_weekend")
		assert.Equal(t, 1.0, weekend[0])
		month, _ := tbl.Column("month")
		assert.Equal(t, 4.0, month[0])
		hourSin, _ := tbl.Column("hour_sin")
		assert.InDelta(t, 1.0, hourSin[0], 1e-9)
	})

	t.Run("weekday is not weekend", func(t *testing.T) {
		tbl := NewTable()
		// Friday.
		tbl.Timestamps = []time.Time{time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)}
		require.NoError(t, tbl.SetColumn("temperature", []float64{22}))

		deriveFeatures(tbl)

		weekend, _ := tbl.Column("is_weekend")
		assert.Equal(t, 0.0, weekend[0])
		dow, _ := tbl.Column("day_of_week")
		assert.Equal(t, 4.0, dow[0])
	})

	t.Run("skipped without timestamps", func(t *testing.T) {
		tbl := NewTable()
		require.NoError(t, tbl.SetColumn("temperature", []float64{22, 23}))

		deriveFeatures(tbl)

		assert.False(t, tbl.Has("hour"))
		assert.False(t, tbl.Has("hour_sin"))
	})
}
