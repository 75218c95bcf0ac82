package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/oceansentinel/threat-scoring/internal/domain"
	"github.com/oceansentinel/threat-scoring/internal/feature"
	"github.com/oceansentinel/threat-scoring/internal/modelstore"
)

const (
	defaultContamination = 0.1
	defaultMinSamples    = 3

	// A statistical score above this declares an anomaly; the ensemble path
	// uses a lower bar because detector vote ratios are already conservative.
	statisticalThreshold = 0.5
	ensembleThreshold    = 0.1
)

// Config tunes the anomaly scorer. Zero values take defaults.
type Config struct {
	Contamination float64
	Normalization string
	MinSamples    int
}

// Scorer judges whether the current feature window is anomalous. With a
// trained ensemble for the location it votes across outlier detectors fitted
// on historical data; without one it falls back to per-column statistics.
type Scorer struct {
	cfg    Config
	logger *slog.Logger
	store  *modelstore.Store[ensemble]
}

// ensemble is the immutable trained state published per location.
type ensemble struct {
	detectors []Detector
	scaler    *feature.Scaler
	columns   []string
	baseline  *Baseline
}

func NewScorer(cfg Config, logger *slog.Logger) *Scorer {
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		cfg.Contamination = defaultContamination
	}
	if cfg.Normalization == "" {
		cfg.Normalization = feature.ScaleRobust
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = defaultMinSamples
	}
	return &Scorer{
		cfg:    cfg,
		logger: logger,
		store:  modelstore.New[ensemble](),
	}
}

// Train fits a fresh detector ensemble on the historical window and swaps it
// in for the location, replacing any previous one.
func (s *Scorer) Train(loc domain.Location, historical *feature.Table) error {
	_, err := s.store.Retrain(loc.Key(), func() (*ensemble, error) {
		return s.buildEnsemble(historical)
	})
	return err
}

// Score evaluates the current window for loc. When historical data is
// supplied and no ensemble exists yet for the location, one is trained
// lazily; concurrent callers share a single training run.
func (s *Scorer) Score(loc domain.Location, current, historical *feature.Table) domain.AnomalyResult {
	if current == nil || current.Empty() {
		return neutralResult("no data points in scoring window")
	}
	if current.Len() < s.cfg.MinSamples {
		return neutralResult(fmt.Sprintf("%d data points below minimum of %d", current.Len(), s.cfg.MinSamples))
	}

	ens, ok := s.store.Get(loc.Key())
	if !ok && historical != nil && !historical.Empty() {
		trained, err := s.store.TrainOnce(loc.Key(), func() (*ensemble, error) {
			return s.buildEnsemble(historical)
		})
		if err != nil {
			s.logger.Warn("ensemble training failed, using statistical detection",
				"location", loc.Key(), "error", err)
		} else {
			ens, ok = trained, true
		}
	}

	if ok {
		if result, scored := s.scoreEnsemble(loc, current, ens); scored {
			return result
		}
		s.logger.Warn("all detectors failed, using statistical detection", "location", loc.Key())
	}
	return s.scoreStatistical(current)
}

func (s *Scorer) buildEnsemble(historical *feature.Table) (*ensemble, error) {
	if historical == nil || historical.Empty() {
		return nil, fmt.Errorf("no historical data to train on")
	}
	columns := historical.Names()
	rows, columns := historical.Matrix(columns)
	if len(columns) == 0 {
		return nil, fmt.Errorf("no numeric columns in historical data")
	}

	scaler, err := feature.NewScaler(s.cfg.Normalization)
	if err != nil {
		return nil, err
	}
	scaled, err := scaler.FitTransform(rows)
	if err != nil {
		return nil, fmt.Errorf("scaling historical data: %w", err)
	}

	var fitted []Detector
	for _, det := range newDetectorBattery(s.cfg.Contamination) {
		if err := det.Fit(scaled); err != nil {
			s.logger.Warn("detector fit failed", "detector", det.Name(), "error", err)
			continue
		}
		fitted = append(fitted, det)
	}
	if len(fitted) == 0 {
		return nil, fmt.Errorf("no detector could fit %d historical rows", len(rows))
	}

	return &ensemble{
		detectors: fitted,
		scaler:    scaler,
		columns:   columns,
		baseline:  computeBaseline(historical),
	}, nil
}

// scoreEnsemble votes the fitted detectors over the current window. The
// second return is false when every detector errored, which sends the caller
// to the statistical path.
func (s *Scorer) scoreEnsemble(loc domain.Location, current *feature.Table, ens *ensemble) (domain.AnomalyResult, bool) {
	rows := s.alignRows(current, ens)
	scaled, err := ens.scaler.Transform(rows)
	if err != nil {
		s.logger.Warn("scaling current window failed", "location", loc.Key(), "error", err)
		return domain.AnomalyResult{}, false
	}

	votes := make(map[string]domain.ModelVote, len(ens.detectors))
	ratioSum, voted := 0.0, 0
	for _, det := range ens.detectors {
		scores, flags, err := det.Score(scaled)
		if err != nil {
			s.logger.Warn("detector scoring failed", "detector", det.Name(), "error", err)
			continue
		}
		flagged := 0
		for _, f := range flags {
			if f {
				flagged++
			}
		}
		mean, max := 0.0, math.Inf(-1)
		for _, sc := range scores {
			mean += sc
			if sc > max {
				max = sc
			}
		}
		mean /= float64(len(scores))
		ratio := float64(flagged) / float64(len(flags))
		votes[det.Name()] = domain.ModelVote{Flagged: flagged, Ratio: ratio, MeanScore: mean, MaxScore: max}
		ratioSum += ratio
		voted++
	}
	if voted == 0 {
		return domain.AnomalyResult{}, false
	}

	score := ratioSum / float64(voted)
	severity := severityBand(math.Min(score*5, 1))

	var affected []string
	for _, name := range ens.columns {
		if latest, ok := current.Latest(name); ok && ens.baseline.deviates(name, latest) {
			affected = append(affected, name)
		}
	}
	sort.Strings(affected)

	return domain.AnomalyResult{
		IsAnomaly:          score > ensembleThreshold,
		Score:              score,
		Severity:           severity,
		Confidence:         math.Min(score*3, 1),
		AffectedParameters: affected,
		DetectionMethod:    domain.MethodEnsembleML,
		ModelVotes:         votes,
		Description:        describeAnomaly(score, severity, affected),
		Recommendations:    recommend(severity, affected),
		Meta: domain.ResultMeta{
			DataPoints: current.Len(),
			Parameters: len(ens.columns),
			ModelsUsed: voted,
		},
	}, true
}

// alignRows shapes the current window to the trained column set. Columns the
// window lacks are filled from the baseline mean so the scaler and detectors
// see the width they were fitted on.
func (s *Scorer) alignRows(current *feature.Table, ens *ensemble) [][]float64 {
	rows := make([][]float64, current.Len())
	cols := make(map[string][]float64, len(ens.columns))
	for _, name := range ens.columns {
		if col, ok := current.Column(name); ok {
			cols[name] = col
		}
	}
	for i := range rows {
		row := make([]float64, len(ens.columns))
		for j, name := range ens.columns {
			if col, ok := cols[name]; ok {
				row[j] = col[i]
			} else {
				row[j] = ens.baseline.Mean[name]
			}
		}
		rows[i] = row
	}
	return rows
}

// scoreStatistical judges each column independently: the fraction of rows
// flagged by z-score or IQR fences, weighted by how consequential the
// parameter is, averaged over the parameters that cross the attribution bar.
func (s *Scorer) scoreStatistical(current *feature.Table) domain.AnomalyResult {
	diagnostics := make(map[string]domain.ParameterDiagnostics)
	var affected []string
	affectedSum := 0.0

	for _, name := range current.Names() {
		col, _ := current.Column(name)
		vals := finiteValues(col, true)
		if len(vals) == 0 {
			continue
		}

		mean := stat.Mean(vals, nil)
		std := stat.StdDev(vals, nil)
		zAnoms, maxZ := 0, 0.0
		if std > 0 {
			for _, v := range vals {
				z := math.Abs((v - mean) / std)
				if z > maxZ {
					maxZ = z
				}
				if z > 3 {
					zAnoms++
				}
			}
		}

		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
		q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
		iqr := q3 - q1
		iqrAnoms := 0
		for _, v := range vals {
			if v < q1-1.5*iqr || v > q3+1.5*iqr {
				iqrAnoms++
			}
		}

		ratio := float64(max(zAnoms, iqrAnoms)) / float64(len(vals))
		weighted := ratio * parameterWeight(name)

		diag := domain.ParameterDiagnostics{
			ZScoreAnomalies: zAnoms,
			IQRAnomalies:    iqrAnoms,
			AnomalyRatio:    ratio,
			WeightedScore:   weighted,
			MaxZScore:       maxZ,
		}
		diag.LatestValue = vals[len(vals)-1]
		diagnostics[name] = diag

		if weighted > 0.3 {
			affected = append(affected, name)
			affectedSum += weighted
		}
	}

	score := 0.0
	if len(affected) > 0 {
		score = math.Min(affectedSum/float64(len(affected)), 1)
	}
	sort.Strings(affected)
	severity := severityBand(score)

	return domain.AnomalyResult{
		IsAnomaly:          score > statisticalThreshold,
		Score:              score,
		Severity:           severity,
		Confidence:         math.Min(score*2, 1),
		AffectedParameters: affected,
		DetectionMethod:    domain.MethodStatistical,
		Diagnostics:        diagnostics,
		Description:        describeAnomaly(score, severity, affected),
		Recommendations:    recommend(severity, affected),
		Meta: domain.ResultMeta{
			DataPoints: current.Len(),
			Parameters: len(diagnostics),
		},
	}
}

func neutralResult(note string) domain.AnomalyResult {
	return domain.AnomalyResult{
		Severity:        1,
		DetectionMethod: domain.MethodNone,
		Description:     "Insufficient data for anomaly analysis.",
		Recommendations: []string{"Verify sensor connectivity and data collection"},
		Meta:            domain.ResultMeta{Note: note},
	}
}

// severityBand maps a normalized score to the 1-5 severity scale.
func severityBand(score float64) int {
	switch {
	case score >= 0.95:
		return 5
	case score >= 0.85:
		return 4
	case score >= 0.75:
		return 3
	case score >= 0.6:
		return 2
	default:
		return 1
	}
}

// parameterWeight expresses how consequential an anomaly in the parameter is
// for threat assessment. Unknown parameters count at full weight.
func parameterWeight(name string) float64 {
	if w, ok := parameterWeights[name]; ok {
		return w
	}
	return 1.0
}

var parameterWeights = map[string]float64{
	"temperature":       1.0,
	"pressure":          1.2,
	"wind_speed":        1.1,
	"humidity":          0.8,
	"pm25":              1.3,
	"pm10":              1.2,
	"ozone":             1.1,
	"water_temperature": 1.0,
	"salinity":          0.9,
	"wave_height":       1.0,
	"tide_level":        0.8,
	"visibility":        0.9,
}

var severityWords = map[int]string{
	1: "Minor",
	2: "Moderate",
	3: "Significant",
	4: "Severe",
	5: "Critical",
}

func describeAnomaly(score float64, severity int, affected []string) string {
	if score < 0.3 {
		return "Environmental conditions are within normal ranges."
	}
	word := severityWords[severity]
	if len(affected) == 0 {
		return fmt.Sprintf("%s anomaly detected across monitored parameters (score: %.2f).", word, score)
	}
	shown := affected
	extra := 0
	if len(shown) > 3 {
		shown, extra = shown[:3], len(shown)-3
	}
	params := strings.Join(shown, ", ")
	if extra > 0 {
		params = fmt.Sprintf("%s and %d other parameters", params, extra)
	}
	return fmt.Sprintf("%s anomaly detected in %s (score: %.2f).", word, params, score)
}

// recommend produces up to five operator actions ordered by urgency.
func recommend(severity int, affected []string) []string {
	var recs []string
	switch {
	case severity >= 4:
		recs = append(recs,
			"Issue immediate alerts to relevant authorities",
			"Increase monitoring frequency for affected parameters")
	case severity == 3:
		recs = append(recs,
			"Notify monitoring personnel",
			"Schedule additional sensor readings")
	default:
		recs = append(recs, "Continue routine monitoring")
	}

	hints := map[string]string{
		"pm25":              "Review air quality controls and advisories",
		"pm10":              "Review air quality controls and advisories",
		"ozone":             "Review air quality controls and advisories",
		"wind_speed":        "Check marine and coastal warnings",
		"pressure":          "Check marine and coastal warnings",
		"wave_height":       "Check marine and coastal warnings",
		"water_temperature": "Inspect water quality at affected sites",
		"salinity":          "Inspect water quality at affected sites",
		"visibility":        "Advise caution for navigation and transport",
	}
	seen := make(map[string]bool)
	for _, name := range affected {
		hint, ok := hints[name]
		if !ok || seen[hint] {
			continue
		}
		seen[hint] = true
		recs = append(recs, hint)
	}
	if len(recs) > 5 {
		recs = recs[:5]
	}
	return recs
}
