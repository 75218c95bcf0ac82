package classify

// ruleOutcome is what a category's bracket ladder concluded from the latest
// row of readings.
type ruleOutcome struct {
	Confidence float64
	Severity   int
}

// ruleBased evaluates the category's deterministic brackets on the latest
// values. Values below the lowest bracket yield confidence 0 and severity 1.
// Absent values fall back to benign defaults rather than zero where zero
// itself would read as hazardous.
func ruleBased(category string, values map[string]float64) ruleOutcome {
	switch category {
	case "storm":
		return stormRule(values)
	case "pollution":
		return pollutionRule(values)
	case "algal_bloom":
		return algalBloomRule(values)
	case "erosion":
		return erosionRule(values)
	case "illegal_dumping":
		return dumpingRule(values)
	default:
		return ruleOutcome{Severity: 1}
	}
}

// stormRule follows the Beaufort-derived wind bands in km/h; a deep pressure
// low raises the outcome one notch.
func stormRule(values map[string]float64) ruleOutcome {
	wind := valueOr(values, "wind_speed", 0)
	pressure := valueOr(values, "pressure", 1013)

	out := ruleOutcome{Severity: 1}
	switch {
	case wind > 118:
		out = ruleOutcome{Confidence: 0.95, Severity: 5}
	case wind > 88:
		out = ruleOutcome{Confidence: 0.85, Severity: 4}
	case wind > 62:
		out = ruleOutcome{Confidence: 0.75, Severity: 3}
	case wind > 39:
		out = ruleOutcome{Confidence: 0.65, Severity: 2}
	}

	if pressure < 980 {
		out.Confidence = min(out.Confidence+0.15, 1.0)
		out.Severity = min(out.Severity+1, 5)
	}
	return out
}

// pollutionRule brackets PM2.5 along the EPA health categories, with PM10
// able to raise but not lower the outcome.
func pollutionRule(values map[string]float64) ruleOutcome {
	pm25 := valueOr(values, "pm25", 0)
	pm10 := valueOr(values, "pm10", 0)

	out := ruleOutcome{Severity: 1}
	switch {
	case pm25 > 75:
		out = ruleOutcome{Confidence: 0.90, Severity: 5}
	case pm25 > 55:
		out = ruleOutcome{Confidence: 0.80, Severity: 4}
	case pm25 > 35:
		out = ruleOutcome{Confidence: 0.70, Severity: 3}
	case pm25 > 25:
		out = ruleOutcome{Confidence: 0.60, Severity: 2}
	}

	if pm10 > 150 {
		out.Confidence = max(out.Confidence, 0.80)
		out.Severity = max(out.Severity, 4)
	}
	return out
}

// algalBloomRule sums warm-water, turbidity, and salinity-band factors into a
// confidence score.
func algalBloomRule(values map[string]float64) ruleOutcome {
	waterTemp := valueOr(values, "water_temperature", 20)
	visibility := valueOr(values, "visibility", 10)
	salinity := valueOr(values, "salinity", 35)

	var confidence float64
	switch {
	case waterTemp > 28:
		confidence += 0.4
	case waterTemp > 25:
		confidence += 0.2
	}
	switch {
	case visibility < 2:
		confidence += 0.5
	case visibility < 5:
		confidence += 0.3
	}
	if salinity >= 30 && salinity <= 38 {
		confidence += 0.2
	}

	confidence = min(confidence, 1.0)
	return ruleOutcome{Confidence: confidence, Severity: clampSeverity(int(confidence*5) + 1)}
}

// erosionRule weighs wave action over wind forcing.
func erosionRule(values map[string]float64) ruleOutcome {
	wave := valueOr(values, "wave_height", 0)
	wind := valueOr(values, "wind_speed", 0)

	confidence := min(wave/10, 1.0)*0.6 + min(wind/100, 1.0)*0.4
	return ruleOutcome{Confidence: confidence, Severity: clampSeverity(int(confidence*4) + 1)}
}

// dumpingRule has only a weak proxy signal without imagery: sharply reduced
// water visibility.
func dumpingRule(values map[string]float64) ruleOutcome {
	if valueOr(values, "visibility", 10) < 3 {
		return ruleOutcome{Confidence: 0.60, Severity: 3}
	}
	return ruleOutcome{Severity: 1}
}

func valueOr(values map[string]float64, name string, fallback float64) float64 {
	if v, ok := values[name]; ok {
		return v
	}
	return fallback
}

func clampSeverity(s int) int {
	if s < 1 {
		return 1
	}
	if s > 5 {
		return 5
	}
	return s
}
