// Command genmock generates synthetic environmental reading fixtures and
// scores them with the actual engine packages, so fixture reports match real
// pipeline behavior. A storm episode is injected into the final hours of the
// first site to keep threat assertions non-trivial.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -hours 72 \
//	  -raw-out data/mock/reading_batches.json \
//	  -reports-out data/mock/scoring_reports.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oceansentinel/threat-scoring/internal/anomaly"
	"github.com/oceansentinel/threat-scoring/internal/classify"
	"github.com/oceansentinel/threat-scoring/internal/domain"
	"github.com/oceansentinel/threat-scoring/internal/engine"
	"github.com/oceansentinel/threat-scoring/internal/feature"
	"github.com/oceansentinel/threat-scoring/internal/forecast"
	"github.com/oceansentinel/threat-scoring/internal/observability"
)

var baseDate = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

const batchHours = 6

type site struct {
	name string
	loc  domain.Location
}

var sites = []site{
	{name: "harbor", loc: domain.Location{Lat: 29.7604, Lon: -95.3698}},
	{name: "estuary", loc: domain.Location{Lat: 27.8006, Lon: -97.3964}},
	{name: "offshore", loc: domain.Location{Lat: 28.5000, Lon: -94.5000}},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	hours := flag.Int("hours", 72, "hours of synthetic readings per site")
	rawOut := flag.String("raw-out", "", "output path for raw reading-batch fixture")
	reportsOut := flag.String("reports-out", "", "output path for scored report fixture")
	flag.Parse()

	if *rawOut == "" || *reportsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -raw-out, -reports-out")
	}

	// Fix the clocks for reproducible report timestamps.
	fake := clockwork.NewFakeClockAt(baseDate.Add(time.Duration(*hours) * time.Hour))
	domain.SetClock(fake)
	engine.SetClock(clockwork.NewRealClock())
	defer domain.SetClock(nil)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	eng := newEngine(logger)

	var rawBatches []json.RawMessage
	var reports []*domain.ScoringReport

	for _, s := range sites {
		// A seed per site keeps every run of this command identical.
		rng := rand.New(rand.NewSource(int64(len(s.name))))

		for start := 0; start < *hours; start += batchHours {
			encoded, err := json.Marshal(batchPayload(s, start, rng))
			if err != nil {
				return fmt.Errorf("marshal batch: %w", err)
			}

			// Run the actual decode and scoring path.
			batch, err := domain.ParseBatch(encoded)
			if err != nil {
				return fmt.Errorf("parse batch: %w", err)
			}
			report, err := eng.ScoreBatch(context.Background(), batch)
			if err != nil {
				return fmt.Errorf("score batch: %w", err)
			}

			rawBatches = append(rawBatches, encoded)
			reports = append(reports, report)
		}
		log.Printf("%s: %d batches", s.name, *hours/batchHours)
	}

	if err := writeJSON(*rawOut, rawBatches); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s", *rawOut)

	if err := writeJSON(*reportsOut, reports); err != nil {
		return fmt.Errorf("writing report fixture: %w", err)
	}
	log.Printf("wrote report fixture: %s", *reportsOut)

	printStats(reports)
	return nil
}

func newEngine(logger *slog.Logger) *engine.Engine {
	pre := feature.NewPreprocessor(feature.Config{}, logger)
	scorer := anomaly.NewScorer(anomaly.Config{}, logger)
	predictor := forecast.NewPredictor(forecast.Config{}, logger)
	classifier := classify.NewEngine(classify.Config{}, logger)
	return engine.New(engine.Config{}, pre, scorer, predictor, classifier, logger, observability.NewMetricsForTesting())
}

// batchPayload builds one wide-form batch covering batchHours hourly rows.
func batchPayload(s site, startHour int, rng *rand.Rand) map[string]any {
	records := make([]map[string]any, 0, batchHours)
	for h := startHour; h < startHour+batchHours; h++ {
		ts := baseDate.Add(time.Duration(h) * time.Hour)
		day := float64(h%24) / 24

		rec := map[string]any{
			"timestamp":         ts.Format(time.RFC3339),
			"temperature":       24 + 6*math.Sin(2*math.Pi*day) + rng.NormFloat64(),
			"humidity":          70 + 15*math.Cos(2*math.Pi*day) + 2*rng.NormFloat64(),
			"pressure":          1012 + 3*math.Sin(2*math.Pi*day/2) + rng.NormFloat64(),
			"wind_speed":        15 + 8*math.Sin(2*math.Pi*day+1) + 2*math.Abs(rng.NormFloat64()),
			"wind_direction":    math.Mod(180+45*math.Sin(2*math.Pi*day)+10*rng.NormFloat64()+360, 360),
			"pm25":              12 + 5*math.Sin(2*math.Pi*day+2) + math.Abs(rng.NormFloat64()),
			"pm10":              30 + 10*math.Sin(2*math.Pi*day+2) + 2*math.Abs(rng.NormFloat64()),
			"water_temperature": 23 + 2*math.Sin(2*math.Pi*day) + 0.5*rng.NormFloat64(),
			"wave_height":       1.2 + 0.6*math.Sin(2*math.Pi*day+3) + 0.2*math.Abs(rng.NormFloat64()),
			"visibility":        9 + 2*math.Cos(2*math.Pi*day) + 0.5*rng.NormFloat64(),
			"salinity":          34 + rng.NormFloat64()*0.5,
			"tide_level":        1.5 * math.Sin(2*math.Pi*float64(h)/12.4),
		}

		// Storm episode: the first site's final six hours.
		if s.name == sites[0].name && h >= 66 {
			rec["wind_speed"] = 115 + float64(h-66)*5
			rec["pressure"] = 978 - float64(h-66)*3
			rec["wave_height"] = 5 + float64(h-66)*0.8
		}
		records = append(records, rec)
	}

	return map[string]any{
		"location": map[string]float64{"lat": s.loc.Lat, "lon": s.loc.Lon},
		"records":  records,
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(reports []*domain.ScoringReport) {
	anomalies := 0
	detectedByType := map[string]int{}
	maxSeverity := map[string]int{}
	methodCounts := map[string]int{}

	for _, r := range reports {
		if r.Anomaly.IsAnomaly {
			anomalies++
		}
		methodCounts[r.Anomaly.DetectionMethod]++
		for _, t := range r.Threats {
			if !t.Detected {
				continue
			}
			detectedByType[t.ThreatType]++
			if t.Severity > maxSeverity[t.ThreatType] {
				maxSeverity[t.ThreatType] = t.Severity
			}
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total reports: %d\n", len(reports))
	fmt.Printf("Anomalous runs: %d\n", anomalies)
	fmt.Printf("Detection methods: %v\n", methodCounts)
	for _, category := range classify.Categories {
		if n := detectedByType[category]; n > 0 {
			fmt.Printf("%s: detected=%d max_severity=%d\n", category, n, maxSeverity[category])
		}
	}
}
