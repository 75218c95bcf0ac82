package classify

// severityFloor is one level of a category's severity table: the per-parameter
// minima (or maxima, for parameters where lower is worse) that together
// justify at least that severity. Requirements within a level combine with
// AND over the parameters actually present.
type severityFloor struct {
	Parameter string
	Value     float64
	AtMost    bool
}

// severityTables map each category to its level 1-5 requirement floors. The
// table can raise a confidence-derived severity, never lower it.
var severityTables = map[string][5][]severityFloor{
	"storm": {
		{{Parameter: "wind_speed", Value: 25}, {Parameter: "pressure", Value: 1010, AtMost: true}},
		{{Parameter: "wind_speed", Value: 40}, {Parameter: "pressure", Value: 1005, AtMost: true}},
		{{Parameter: "wind_speed", Value: 60}, {Parameter: "pressure", Value: 995, AtMost: true}},
		{{Parameter: "wind_speed", Value: 85}, {Parameter: "pressure", Value: 980, AtMost: true}},
		{{Parameter: "wind_speed", Value: 120}, {Parameter: "pressure", Value: 960, AtMost: true}},
	},
	"pollution": {
		{{Parameter: "pm25", Value: 15}, {Parameter: "pm10", Value: 25}},
		{{Parameter: "pm25", Value: 35}, {Parameter: "pm10", Value: 50}},
		{{Parameter: "pm25", Value: 55}, {Parameter: "pm10", Value: 75}},
		{{Parameter: "pm25", Value: 125}, {Parameter: "pm10", Value: 150}},
		{{Parameter: "pm25", Value: 250}, {Parameter: "pm10", Value: 300}},
	},
	"erosion": {
		{{Parameter: "wave_height", Value: 1.5}, {Parameter: "wind_speed", Value: 20}},
		{{Parameter: "wave_height", Value: 2.5}, {Parameter: "wind_speed", Value: 30}},
		{{Parameter: "wave_height", Value: 4.0}, {Parameter: "wind_speed", Value: 45}},
		{{Parameter: "wave_height", Value: 6.0}, {Parameter: "wind_speed", Value: 65}},
		{{Parameter: "wave_height", Value: 8.0}, {Parameter: "wind_speed", Value: 85}},
	},
	"algal_bloom": {
		{{Parameter: "water_temperature", Value: 20}},
		{{Parameter: "water_temperature", Value: 24}},
		{{Parameter: "water_temperature", Value: 28}},
		{{Parameter: "water_temperature", Value: 32}},
		{{Parameter: "water_temperature", Value: 35}},
	},
	"illegal_dumping": {
		{{Parameter: "visibility", Value: 6, AtMost: true}},
		{{Parameter: "visibility", Value: 5, AtMost: true}},
		{{Parameter: "visibility", Value: 4, AtMost: true}},
		{{Parameter: "visibility", Value: 3, AtMost: true}},
		{{Parameter: "visibility", Value: 2, AtMost: true}},
	},
}

// tableSeverity returns the highest level whose present-parameter floors are
// all satisfied by the latest values, or 1 when none are.
func tableSeverity(category string, values map[string]float64) int {
	table, ok := severityTables[category]
	if !ok {
		return 1
	}
	severity := 1
	for level, floors := range table {
		satisfied, checked := true, 0
		for _, f := range floors {
			v, present := values[f.Parameter]
			if !present {
				continue
			}
			checked++
			if f.AtMost {
				if v > f.Value {
					satisfied = false
				}
			} else if v < f.Value {
				satisfied = false
			}
		}
		if checked > 0 && satisfied {
			severity = level + 1
		}
	}
	return severity
}
