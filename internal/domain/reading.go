package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Location is a WGS-84 latitude/longitude coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports whether the coordinates are on the globe.
func (l Location) Validate() error {
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", l.Lat)
	}
	if l.Lon < -180 || l.Lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", l.Lon)
	}
	return nil
}

// Key buckets the location to ~11m precision for history-window lookups.
// Readings from the same station jitter below this resolution.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lon)
}

// Record is one raw input record, either long form (a single parameter
// measurement) or wide form (many parameters at one timestamp). Long-form
// records have Parameter set; wide-form records carry Params.
type Record struct {
	Timestamp time.Time
	Location  *Location
	Source    string

	// Long form.
	Parameter string
	Value     float64

	// Wide form.
	Params map[string]float64
}

// IsLong reports whether the record is a single-parameter measurement.
func (r Record) IsLong() bool { return r.Parameter != "" }

// recordKeys are the reserved JSON keys that are not parameter values.
var recordKeys = map[string]bool{
	"timestamp": true, "created_at": true,
	"latitude": true, "lat": true,
	"longitude": true, "lon": true, "lng": true,
	"parameter": true, "data_type": true,
	"value":  true,
	"source": true,
}

// UnmarshalJSON accepts both input forms. Reserved keys populate the typed
// fields; every remaining numeric key becomes a wide-form parameter value.
// Non-numeric extra keys are ignored rather than rejected, since provider
// payloads routinely carry string annotations.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse record: %w", err)
	}

	if s, ok := raw["timestamp"].(string); ok {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse record timestamp %q: %w", s, err)
		}
		r.Timestamp = ts.UTC()
	}

	lat, okLat := numberField(raw, "latitude", "lat")
	lon, okLon := numberField(raw, "longitude", "lon", "lng")
	if okLat && okLon {
		r.Location = &Location{Lat: lat, Lon: lon}
	}

	if s, ok := raw["source"].(string); ok {
		r.Source = s
	}

	if p, ok := stringField(raw, "parameter", "data_type"); ok {
		r.Parameter = p
		if v, ok := raw["value"].(float64); ok {
			r.Value = v
		}
		return nil
	}

	for k, v := range raw {
		if recordKeys[k] {
			continue
		}
		f, ok := v.(float64)
		if !ok {
			continue
		}
		if r.Params == nil {
			r.Params = make(map[string]float64)
		}
		r.Params[k] = f
	}
	return nil
}

func numberField(raw map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := raw[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

func stringField(raw map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Batch is one unit of scoring work: records observed at a single location.
type Batch struct {
	Location Location `json:"location"`
	Records  []Record `json:"records"`
}

// ParseBatch deserializes a raw batch message. The location may be given
// either at the batch level or on individual records; record-level
// coordinates win when both are present on a record.
func ParseBatch(data []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return Batch{}, fmt.Errorf("parse batch: %w", err)
	}
	if err := b.Location.Validate(); err != nil {
		return Batch{}, fmt.Errorf("parse batch: %w", err)
	}
	return b, nil
}

// Window returns the earliest and latest record timestamps in the batch.
// Records without timestamps are ignored; both zero when none carry one.
func (b Batch) Window() (start, end time.Time) {
	for _, rec := range b.Records {
		if rec.Timestamp.IsZero() {
			continue
		}
		if start.IsZero() || rec.Timestamp.Before(start) {
			start = rec.Timestamp
		}
		if rec.Timestamp.After(end) {
			end = rec.Timestamp
		}
	}
	return start, end
}
