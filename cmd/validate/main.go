// Command validate performs end-to-end integrity checks across the mock
// fixtures produced by genmock: raw reading batches and scored reports. It
// verifies batch decodability, report counts and field presence, rescore
// consistency against the live engine, and downstream schema constraints.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -raw-json data/mock/reading_batches.json \
//	  -reports-json data/mock/scoring_reports.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/oceansentinel/threat-scoring/internal/anomaly"
	"github.com/oceansentinel/threat-scoring/internal/classify"
	"github.com/oceansentinel/threat-scoring/internal/domain"
	"github.com/oceansentinel/threat-scoring/internal/engine"
	"github.com/oceansentinel/threat-scoring/internal/feature"
	"github.com/oceansentinel/threat-scoring/internal/forecast"
	"github.com/oceansentinel/threat-scoring/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	rawJSON := flag.String("raw-json", "", "path to raw reading-batch fixture")
	reportsJSON := flag.String("reports-json", "", "path to scored report fixture")
	flag.Parse()

	if *rawJSON == "" || *reportsJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*rawJSON, *reportsJSON); code != 0 {
		os.Exit(code)
	}
}

func run(rawPath, reportsPath string) int {
	fmt.Println("=== Threat Scoring Fixture Validation ===")
	fmt.Println()

	rawBatches, err := loadJSON[json.RawMessage](rawPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw fixture: %v\n", err)
		return 1
	}
	reports, err := loadJSON[domain.ScoringReport](reportsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load report fixture: %v\n", err)
		return 1
	}

	batches, batchPhase := validateRawBatches(rawBatches)

	phases := []*phase{
		batchPhase,
		validateReportIntegrity(reports, batches),
		validateRescoreConsistency(reports, batches),
		validateSchemaAlignment(reports),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d raw batches, %d reports\n", len(rawBatches), len(reports))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: Raw Batches ──
// Validates that every raw batch decodes and carries a usable location and
// at least one reading.

func validateRawBatches(raw []json.RawMessage) ([]domain.Batch, *phase) {
	p := &phase{name: "Phase 1: Raw Batches (decode)"}
	batches := make([]domain.Batch, 0, len(raw))

	for i, encoded := range raw {
		batch, err := domain.ParseBatch(encoded)
		if err != nil {
			p.errorf("batch %d: parse: %v", i, err)
			continue
		}
		if err := batch.Location.Validate(); err != nil {
			p.errorf("batch %d: location: %v", i, err)
		}
		if len(batch.Records) == 0 {
			p.errorf("batch %d: no records", i)
		}
		for j, rec := range batch.Records {
			if rec.Timestamp.IsZero() {
				p.errorf("batch %d record %d: zero timestamp", i, j)
			}
		}
		batches = append(batches, batch)
	}
	return batches, p
}

// ── Phase 2: Report Integrity ──
// Validates report counts and per-report field presence against the batches
// they were scored from.

func validateReportIntegrity(reports []domain.ScoringReport, batches []domain.Batch) *phase {
	p := &phase{name: "Phase 2: Report Integrity (counts, fields)"}

	if len(reports) != len(batches) {
		p.errorf("count: %d batches but %d reports", len(batches), len(reports))
	}

	for i := range reports {
		r := &reports[i]
		if r.ID == "" {
			p.errorf("report %d: missing id", i)
		}
		if r.InputHash == "" {
			p.errorf("report %d: missing input_hash", i)
		}
		if r.GeneratedAt.IsZero() {
			p.errorf("report %d: generated_at is zero", i)
		}
		if r.WindowStart.IsZero() || r.WindowEnd.IsZero() {
			p.errorf("report %d: scoring window is zero", i)
		} else if r.WindowEnd.Before(r.WindowStart) {
			p.errorf("report %d: window_end %s before window_start %s", i,
				r.WindowEnd.Format(time.RFC3339), r.WindowStart.Format(time.RFC3339))
		}
		if i < len(batches) && r.Location.Key() != batches[i].Location.Key() {
			p.errorf("report %d: location %s does not match batch location %s",
				i, r.Location.Key(), batches[i].Location.Key())
		}
	}
	return p
}

// ── Phase 3: Rescore Consistency ──
// Re-runs every batch through a freshly built engine, in fixture order so
// the per-location history accumulates identically, and compares the
// deterministic parts of the output.

func validateRescoreConsistency(reports []domain.ScoringReport, batches []domain.Batch) *phase {
	p := &phase{name: "Phase 3: Rescore Consistency (engine)"}

	if len(reports) != len(batches) {
		p.errorf("skipped: batch/report count mismatch")
		return p
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	eng := newEngine(logger)

	for i, batch := range batches {
		rescored, err := eng.ScoreBatch(context.Background(), batch)
		if err != nil {
			p.errorf("batch %d: rescore: %v", i, err)
			continue
		}
		compareReports(p, i, &reports[i], rescored)
	}
	return p
}

func newEngine(logger *slog.Logger) *engine.Engine {
	pre := feature.NewPreprocessor(feature.Config{}, logger)
	scorer := anomaly.NewScorer(anomaly.Config{}, logger)
	predictor := forecast.NewPredictor(forecast.Config{}, logger)
	classifier := classify.NewEngine(classify.Config{}, logger)
	return engine.New(engine.Config{}, pre, scorer, predictor, classifier, logger, observability.NewMetricsForTesting())
}

// compareReports checks the deterministic fields of a fixture report against
// a fresh rescore of the same batch.
func compareReports(p *phase, i int, fixture, rescored *domain.ScoringReport) {
	if fixture.InputHash != rescored.InputHash {
		p.errorf("report %d: input_hash: fixture=%s, rescored=%s", i, fixture.InputHash, rescored.InputHash)
	}

	if fixture.Anomaly.DetectionMethod != rescored.Anomaly.DetectionMethod {
		p.errorf("report %d: detection_method: fixture=%s, rescored=%s",
			i, fixture.Anomaly.DetectionMethod, rescored.Anomaly.DetectionMethod)
	}
	if fixture.Anomaly.IsAnomaly != rescored.Anomaly.IsAnomaly {
		p.errorf("report %d: is_anomaly: fixture=%t, rescored=%t",
			i, fixture.Anomaly.IsAnomaly, rescored.Anomaly.IsAnomaly)
	}
	if !floatEq(fixture.Anomaly.Score, rescored.Anomaly.Score) {
		p.errorf("report %d: anomaly_score: fixture=%g, rescored=%g",
			i, fixture.Anomaly.Score, rescored.Anomaly.Score)
	}

	fixtureThreats := threatIndex(fixture.Threats)
	rescoredThreats := threatIndex(rescored.Threats)
	for category, ft := range fixtureThreats {
		rt, ok := rescoredThreats[category]
		if !ok {
			p.errorf("report %d: threat %s present in fixture but not in rescore", i, category)
			continue
		}
		if ft.Detected != rt.Detected {
			p.errorf("report %d: threat %s detected: fixture=%t, rescored=%t", i, category, ft.Detected, rt.Detected)
		}
		if ft.Severity != rt.Severity {
			p.errorf("report %d: threat %s severity: fixture=%d, rescored=%d", i, category, ft.Severity, rt.Severity)
		}
		if !floatEq(ft.Confidence, rt.Confidence) {
			p.errorf("report %d: threat %s confidence: fixture=%g, rescored=%g", i, category, ft.Confidence, rt.Confidence)
		}
	}
	for category := range rescoredThreats {
		if _, ok := fixtureThreats[category]; !ok {
			p.errorf("report %d: threat %s present in rescore but not in fixture", i, category)
		}
	}
}

func threatIndex(threats []domain.ThreatDetectionResult) map[string]domain.ThreatDetectionResult {
	out := make(map[string]domain.ThreatDetectionResult, len(threats))
	for _, t := range threats {
		out[t.ThreatType] = t
	}
	return out
}

// ── Phase 4: Schema Alignment ──
// Validates that report field values stay within the ranges and enums the
// downstream consumers rely on.

var (
	schemaMethods  = map[string]bool{domain.MethodStatistical: true, domain.MethodEnsembleML: true, domain.MethodNone: true}
	schemaTrends   = map[string]bool{domain.TrendIncreasing: true, domain.TrendDecreasing: true, domain.TrendStable: true, domain.TrendUnknown: true}
	schemaStatuses = map[string]bool{domain.BranchOK: true, domain.BranchTimeout: true, domain.BranchEmpty: true}
	schemaBranches = []string{"anomaly", "forecast", "classify"}
)

func validateSchemaAlignment(reports []domain.ScoringReport) *phase {
	p := &phase{name: "Phase 4: Schema Alignment (ranges, enums)"}
	for i := range reports {
		checkSchemaReport(p, i, &reports[i])
	}
	return p
}

func checkSchemaReport(p *phase, i int, r *domain.ScoringReport) {
	pf := func(format string, args ...any) {
		p.errorf("report %d (ID %s): "+format, append([]any{i, r.ID}, args...)...)
	}

	checkSchemaAnomaly(pf, &r.Anomaly)
	checkSchemaForecast(pf, &r.Forecast)
	checkSchemaThreats(pf, r.Threats)

	for _, branch := range schemaBranches {
		status, ok := r.BranchStatus[branch]
		if !ok {
			pf("branch_status missing %q", branch)
		} else if !schemaStatuses[status] {
			pf("branch %s status %q not in {ok, timeout, empty}", branch, status)
		}
	}
}

func checkSchemaAnomaly(pf func(string, ...any), a *domain.AnomalyResult) {
	if a.Score < 0 || a.Score > 1 {
		pf("anomaly_score %g outside [0, 1]", a.Score)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		pf("anomaly confidence %g outside [0, 1]", a.Confidence)
	}
	if a.Severity < 1 || a.Severity > 5 {
		pf("anomaly severity %d outside [1, 5]", a.Severity)
	}
	if !schemaMethods[a.DetectionMethod] {
		pf("detection_method %q not in {statistical, ensemble_ml, none}", a.DetectionMethod)
	}
	if a.Description == "" {
		pf("anomaly description is empty")
	}
}

func checkSchemaForecast(pf func(string, ...any), f *domain.PredictionResult) {
	for j := 1; j < len(f.ForecastHours); j++ {
		if f.ForecastHours[j] <= f.ForecastHours[j-1] {
			pf("forecast_hours not strictly ascending at index %d", j)
		}
	}

	for param, values := range f.Predictions {
		if len(values) != len(f.ForecastHours) {
			pf("forecast %s has %d values for %d horizons", param, len(values), len(f.ForecastHours))
		}
		intervals, ok := f.ConfidenceIntervals[param]
		if !ok {
			pf("forecast %s has no confidence intervals", param)
			continue
		}
		for j, iv := range intervals {
			if iv.Lower > iv.Upper {
				pf("forecast %s interval %d: lower %g above upper %g", param, j, iv.Lower, iv.Upper)
			}
		}
	}

	for param, trend := range f.TrendAnalysis {
		if !schemaTrends[trend] {
			pf("trend %q for %s not in {increasing, decreasing, stable, unknown}", trend, param)
		}
	}
	for param, severity := range f.RiskAssessment {
		if severity < 1 || severity > 5 {
			pf("risk for %s is %d, outside [1, 5]", param, severity)
		}
	}
	for j, alert := range f.AlertsPredicted {
		if alert.Severity < 3 {
			pf("alert %d severity %d below alerting floor 3", j, alert.Severity)
		}
		if alert.Description == "" {
			pf("alert %d has empty description", j)
		}
	}
}

func checkSchemaThreats(pf func(string, ...any), threats []domain.ThreatDetectionResult) {
	categories := make(map[string]bool, len(classify.Categories))
	for _, c := range classify.Categories {
		categories[c] = true
	}

	for _, t := range threats {
		if !categories[t.ThreatType] {
			pf("threat_type %q is not a known category", t.ThreatType)
		}
		if t.Confidence < 0 || t.Confidence > 1 {
			pf("threat %s confidence %g outside [0, 1]", t.ThreatType, t.Confidence)
		}
		if t.Severity < 1 || t.Severity > 5 {
			pf("threat %s severity %d outside [1, 5]", t.ThreatType, t.Severity)
		}
		if t.Detected && t.Confidence < t.ThresholdUsed {
			pf("threat %s detected with confidence %g below threshold %g", t.ThreatType, t.Confidence, t.ThresholdUsed)
		}
		if t.Description == "" {
			pf("threat %s has empty description", t.ThreatType)
		}
	}
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
