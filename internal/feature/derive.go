package feature

import "math"

// deriveFeatures appends engineered columns to a clean table. Each feature is
// computed only when its inputs are present and skipped when a column of the
// same name already exists, so repeated preprocessing is stable.
func deriveFeatures(t *Table) {
	deriveTimeFeatures(t)

	deriveBinary(t, "heat_index", "temperature", "humidity", func(temp, hum float64) float64 {
		return temp + 0.33*hum - 0.7
	})
	deriveBinary(t, "wind_u", "wind_speed", "wind_direction", func(speed, dir float64) float64 {
		return -speed * math.Sin(dir*math.Pi/180)
	})
	deriveBinary(t, "wind_v", "wind_speed", "wind_direction", func(speed, dir float64) float64 {
		return -speed * math.Cos(dir*math.Pi/180)
	})
	deriveBinary(t, "density_altitude", "temperature", "pressure", func(temp, pres float64) float64 {
		return temp - (pres-1013.25)/3.6
	})
	deriveBinary(t, "wave_energy", "wave_height", "wind_speed", func(height, speed float64) float64 {
		return height * height * speed
	})

	deriveUnary(t, "aqi_pm25", "pm25", func(v float64) float64 {
		return AQIPM25(v)
	})
	deriveUnary(t, "aqi_pm10", "pm10", func(v float64) float64 {
		return AQIPM10(v)
	})
}

func deriveTimeFeatures(t *Table) {
	if len(t.Timestamps) != t.Len() || t.Len() == 0 {
		return
	}
	for _, ts := range t.Timestamps {
		if ts.IsZero() {
			return
		}
	}
	if t.Has("hour_sin") {
		return
	}

	n := t.Len()
	hour := make([]float64, n)
	dayOfWeek := make([]float64, n)
	month := make([]float64, n)
	isWeekend := make([]float64, n)
	hourSin := make([]float64, n)
	hourCos := make([]float64, n)
	monthSin := make([]float64, n)
	monthCos := make([]float64, n)

	for i, ts := range t.Timestamps {
		ts = ts.UTC()
		h := float64(ts.Hour())
		// Monday=0 convention; weekend is Saturday(5)/Sunday(6).
		dow := float64((int(ts.Weekday()) + 6) % 7)
		m := float64(ts.Month())

		hour[i] = h
		dayOfWeek[i] = dow
		month[i] = m
		if dow >= 5 {
			isWeekend[i] = 1
		}
		hourSin[i] = math.Sin(2 * math.Pi * h / 24)
		hourCos[i] = math.Cos(2 * math.Pi * h / 24)
		monthSin[i] = math.Sin(2 * math.Pi * m / 12)
		monthCos[i] = math.Cos(2 * math.Pi * m / 12)
	}

	t.SetColumn("hour", hour)             //nolint:errcheck // length matches row count
	t.SetColumn("day_of_week", dayOfWeek) //nolint:errcheck
	t.SetColumn("month", month)           //nolint:errcheck
	t.SetColumn("is_weekend", isWeekend)  //nolint:errcheck
	t.SetColumn("hour_sin", hourSin)      //nolint:errcheck
	t.SetColumn("hour_cos", hourCos)      //nolint:errcheck
	t.SetColumn("month_sin", monthSin)    //nolint:errcheck
	t.SetColumn("month_cos", monthCos)    //nolint:errcheck
}

func deriveUnary(t *Table, out, in string, f func(float64) float64) {
	if t.Has(out) {
		return
	}
	src, ok := t.Column(in)
	if !ok {
		return
	}
	col := make([]float64, len(src))
	for i, v := range src {
		col[i] = f(v)
	}
	t.SetColumn(out, col) //nolint:errcheck // length matches row count
}

func deriveBinary(t *Table, out, inA, inB string, f func(a, b float64) float64) {
	if t.Has(out) {
		return
	}
	a, okA := t.Column(inA)
	b, okB := t.Column(inB)
	if !okA || !okB {
		return
	}
	col := make([]float64, len(a))
	for i := range a {
		col[i] = f(a[i], b[i])
	}
	t.SetColumn(out, col) //nolint:errcheck // length matches row count
}

// aqiBreakpoint is one row of an EPA AQI breakpoint table: concentrations in
// [ConcLo, ConcHi] map linearly onto AQI values [AQILo, AQIHi].
type aqiBreakpoint struct {
	ConcLo, ConcHi float64
	AQILo, AQIHi   float64
}

var pm25Breakpoints = []aqiBreakpoint{
	{0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
}

var pm10Breakpoints = []aqiBreakpoint{
	{0, 54, 0, 50},
	{55, 154, 51, 100},
	{155, 254, 101, 150},
	{255, 354, 151, 200},
	{355, 424, 201, 300},
	{425, 504, 301, 400},
}

// AQIPM25 converts a PM2.5 concentration (µg/m³) to its EPA AQI value.
// Concentrations above the top breakpoint saturate to 500.
func AQIPM25(conc float64) float64 { return aqiFromBreakpoints(conc, pm25Breakpoints) }

// AQIPM10 converts a PM10 concentration (µg/m³) to its EPA AQI value.
func AQIPM10(conc float64) float64 { return aqiFromBreakpoints(conc, pm10Breakpoints) }

func aqiFromBreakpoints(conc float64, table []aqiBreakpoint) float64 {
	if math.IsNaN(conc) {
		return math.NaN()
	}
	if conc < 0 {
		conc = 0
	}
	for _, bp := range table {
		if conc <= bp.ConcHi {
			// Reporting resolution leaves gaps between brackets (e.g. 12.0 to
			// 12.1); values inside a gap take the next bracket's lower bound.
			if conc < bp.ConcLo {
				conc = bp.ConcLo
			}
			aqi := (bp.AQIHi-bp.AQILo)/(bp.ConcHi-bp.ConcLo)*(conc-bp.ConcLo) + bp.AQILo
			return math.Round(aqi)
		}
	}
	return 500
}
