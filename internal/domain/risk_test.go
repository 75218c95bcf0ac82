package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskSeverity(t *testing.T) {
	tests := []struct {
		name      string
		parameter string
		value     float64
		expected  int
	}{
		{"calm wind", "wind_speed", 10, 1},
		{"gale", "wind_speed", 45, 2},
		{"storm", "wind_speed", 70, 3},
		{"hurricane", "wind_speed", 100, 4},
		{"major hurricane", "wind_speed", 130, 5},
		{"wind at gale threshold", "wind_speed", 39, 2},

		{"normal pressure", "pressure", 1013, 1},
		{"low pressure", "pressure", 995, 2},
		{"deep low", "pressure", 982, 3},
		{"storm pressure", "pressure", 975, 4},
		{"extreme low", "pressure", 960, 5},

		{"clean air", "pm25", 10, 1},
		{"unhealthy pm25", "pm25", 60, 4},
		{"hazardous pm25", "pm25", 90, 5},

		{"calm seas", "wave_height", 1, 1},
		{"heavy seas", "wave_height", 7, 4},

		{"clear visibility", "visibility", 10, 1},
		{"reduced visibility", "visibility", 4, 2},
		{"dense fog", "visibility", 0.5, 5},

		{"unknown parameter", "salinity", 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RiskSeverity(tt.parameter, tt.value))
		})
	}
}

func TestHasRiskLadder(t *testing.T) {
	assert.True(t, HasRiskLadder("wind_speed"))
	assert.True(t, HasRiskLadder("visibility"))
	assert.False(t, HasRiskLadder("salinity"))
	assert.False(t, HasRiskLadder(""))
}
