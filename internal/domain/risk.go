package domain

// riskLadder maps a parameter value onto severity 2-5. Thresholds ascend for
// most parameters; Descending marks the ones where lower is worse.
type riskLadder struct {
	Thresholds [4]float64
	Descending bool
}

// riskLadders are the operational per-parameter thresholds shared by forecast
// risk assessment and predicted alerts. Wind speeds track the gale, storm,
// hurricane, and major-hurricane bands in km/h; PM bands follow EPA health
// categories; water temperature bands track algal-bloom risk.
var riskLadders = map[string]riskLadder{
	"wind_speed":        {Thresholds: [4]float64{39, 62, 88, 118}},
	"pressure":          {Thresholds: [4]float64{1000, 990, 980, 970}, Descending: true},
	"pm25":              {Thresholds: [4]float64{25, 35, 55, 75}},
	"pm10":              {Thresholds: [4]float64{50, 100, 150, 250}},
	"wave_height":       {Thresholds: [4]float64{2, 4, 6, 8}},
	"temperature":       {Thresholds: [4]float64{30, 35, 40, 45}},
	"water_temperature": {Thresholds: [4]float64{25, 28, 30, 32}},
	"visibility":        {Thresholds: [4]float64{5, 3, 2, 1}, Descending: true},
}

// RiskSeverity maps a parameter value to severity 1-5 using the parameter's
// risk ladder. Parameters without a ladder are severity 1.
func RiskSeverity(parameter string, value float64) int {
	ladder, ok := riskLadders[parameter]
	if !ok {
		return 1
	}

	if ladder.Descending {
		for i, threshold := range ladder.Thresholds {
			if value <= threshold {
				severity := i + 2
				// Keep scanning: deeper thresholds mean higher severity.
				for j := i + 1; j < len(ladder.Thresholds); j++ {
					if value <= ladder.Thresholds[j] {
						severity = j + 2
					}
				}
				return severity
			}
		}
		return 1
	}

	severity := 1
	for i, threshold := range ladder.Thresholds {
		if value >= threshold {
			severity = i + 2
		}
	}
	return severity
}

// HasRiskLadder reports whether a parameter participates in risk assessment.
func HasRiskLadder(parameter string) bool {
	_, ok := riskLadders[parameter]
	return ok
}
