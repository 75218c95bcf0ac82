package feature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	t.Run("set and read columns", func(t *testing.T) {
		tbl := NewTable()
		require.NoError(t, tbl.SetColumn("temperature", []float64{20, 21, 22}))
		require.NoError(t, tbl.SetColumn("humidity", []float64{60, 61, 62}))

		assert.Equal(t, 3, tbl.Len())
		assert.Equal(t, 2, tbl.Width())
		assert.Equal(t, []string{"temperature", "humidity"}, tbl.Names())

		latest, ok := tbl.Latest("temperature")
		require.True(t, ok)
		assert.Equal(t, 22.0, latest)
	})

	t.Run("column length mismatch rejected", func(t *testing.T) {
		tbl := NewTable()
		require.NoError(t, tbl.SetColumn("temperature", []float64{20, 21}))

		err := tbl.SetColumn("humidity", []float64{60})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "humidity")
	})

	t.Run("drop column", func(t *testing.T) {
		tbl := NewTable()
		require.NoError(t, tbl.SetColumn("temperature", []float64{20}))
		require.NoError(t, tbl.SetColumn("humidity", []float64{60}))

		tbl.DropColumn("temperature")
		tbl.DropColumn("not_there")

		assert.False(t, tbl.Has("temperature"))
		assert.Equal(t, []string{"humidity"}, tbl.Names())
	})

	t.Run("empty table", func(t *testing.T) {
		tbl := NewTable()
		assert.True(t, tbl.Empty())
		assert.Zero(t, tbl.Len())

		_, ok := tbl.Latest("temperature")
		assert.False(t, ok)
	})
}

func TestTableMatrix(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.SetColumn("temperature", []float64{20, 21}))
	require.NoError(t, tbl.SetColumn("humidity", []float64{60, 61}))

	t.Run("requested order preserved", func(t *testing.T) {
		rows, names := tbl.Matrix([]string{"humidity", "temperature"})

		assert.Equal(t, []string{"humidity", "temperature"}, names)
		assert.Equal(t, [][]float64{{60, 20}, {61, 21}}, rows)
	})

	t.Run("missing columns skipped", func(t *testing.T) {
		rows, names := tbl.Matrix([]string{"temperature", "pressure"})

		assert.Equal(t, []string{"temperature"}, names)
		assert.Equal(t, [][]float64{{20}, {21}}, rows)
	})
}

func TestTableFingerprint(t *testing.T) {
	ts := []time.Time{
		time.Date(2024, 4, 26, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 26, 7, 0, 0, 0, time.UTC),
	}

	t.Run("independent of insertion order", func(t *testing.T) {
		a := NewTable()
		a.Timestamps = ts
		require.NoError(t, a.SetColumn("temperature", []float64{20, 21}))
		require.NoError(t, a.SetColumn("humidity", []float64{60, 61}))

		b := NewTable()
		b.Timestamps = ts
		require.NoError(t, b.SetColumn("humidity", []float64{60, 61}))
		require.NoError(t, b.SetColumn("temperature", []float64{20, 21}))

		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("sensitive to values", func(t *testing.T) {
		a := NewTable()
		require.NoError(t, a.SetColumn("temperature", []float64{20, 21}))

		b := NewTable()
		require.NoError(t, b.SetColumn("temperature", []float64{20, 21.0001}))

		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("sensitive to timestamps", func(t *testing.T) {
		a := NewTable()
		a.Timestamps = ts
		require.NoError(t, a.SetColumn("temperature", []float64{20, 21}))

		b := NewTable()
		b.Timestamps = []time.Time{ts[0], ts[1].Add(time.Minute)}
		require.NoError(t, b.SetColumn("temperature", []float64{20, 21}))

		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	})
}

func TestTableRecords(t *testing.T) {
	tbl := NewTable()
	tbl.Timestamps = []time.Time{
		time.Date(2024, 4, 26, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 26, 7, 0, 0, 0, time.UTC),
	}
	require.NoError(t, tbl.SetColumn("temperature", []float64{20, 21}))

	records := tbl.Records()

	require.Len(t, records, 2)
	assert.Equal(t, 20.0, records[0].Params["temperature"])
	assert.Equal(t, tbl.Timestamps[1], records[1].Timestamp)
	assert.False(t, records[0].IsLong())
}

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"lowercase passthrough", "temperature", "temperature"},
		{"uppercase folded", "Temperature", "temperature"},
		{"spaces to underscore", "Wind Speed", "wind_speed"},
		{"punctuation collapsed", "PM2.5", "pm25"},
		{"synonym temp", "temp", "temperature"},
		{"synonym wspd", "wspd", "wind_speed"},
		{"synonym water temp", "water_temp", "water_temperature"},
		{"leading and trailing junk", "  #pressure!  ", "pressure"},
		{"empty", "", ""},
		{"only punctuation", "--", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, canonicalName(tt.raw))
		})
	}
}
