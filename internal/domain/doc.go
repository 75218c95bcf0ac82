// Package domain models environmental sensor readings and the threat
// judgments derived from them.
//
// # Data Source
//
// Readings originate from upstream collector services that poll weather,
// air-quality, and ocean/tide provider APIs, normalize each observation to a
// (parameter, value, timestamp, location) tuple, and publish batches as JSON
// to the Kafka source topic. A batch covers one location and a contiguous
// time window.
//
// # Input Conventions
//
// Record forms:
//
//	Long:  {"parameter": "wind_speed", "value": 42.0, "timestamp": "...", "latitude": ..., "longitude": ...}
//	Wide:  {"timestamp": "...", "latitude": ..., "longitude": ..., "wind_speed": 42.0, "pressure": 1002.1, ...}
//
// Both forms may appear in the same batch; long-form records for the same
// (timestamp, parameter) pair are averaged during preprocessing. Timestamps
// are ISO-8601. Latitude is in [-90, 90], longitude in [-180, 180].
//
// Parameter names are case-folded with whitespace and punctuation collapsed
// to underscores, then mapped through a synonym table, so "Temp", "air_temp",
// and "temperature" all resolve to the canonical "temperature". Canonical
// units: temperature °C, pressure hPa, wind_speed km/h, wave_height m,
// pm25/pm10 µg/m³, ozone ppb, visibility km, salinity psu.
//
// # Severity and Risk
//
// Severity is an integer 1 (minor) to 5 (extreme), shared by anomaly, forecast
// risk, and threat classification results. Per-parameter risk ladders map a
// value to severity 2-5 at fixed operational thresholds (e.g. wind_speed
// 39/62/88/118 km/h, roughly gale, storm, hurricane, and major-hurricane
// force). Pressure and visibility ladders descend: lower values are worse.
// Values below (or, for descending ladders, above) the first threshold are
// severity 1. See [RiskSeverity].
//
// # Report Identity
//
// Every scoring run emits one ScoringReport carrying a deterministic SHA-256
// fingerprint of the prepared input table. Downstream integrity logging
// stores the fingerprint so a replayed batch can be verified against the
// report it produced without re-running the engine.
package domain
