// Package classify evaluates prepared feature tables against the known
// threat categories, preferring a trained classifier ensemble per category
// and falling back to deterministic bracket rules until one exists.
package classify

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/oceansentinel/threat-scoring/internal/domain"
	"github.com/oceansentinel/threat-scoring/internal/feature"
	"github.com/oceansentinel/threat-scoring/internal/modelstore"
)

// Detection methods recorded on classification results.
const (
	methodEnsemble  = "ensemble"
	methodRuleBased = "rule_based"
)

// Categories lists every threat category in evaluation order.
var Categories = []string{"storm", "pollution", "erosion", "algal_bloom", "illegal_dumping"}

// categoryFeatures names the columns each category draws on. A category is
// only evaluated when at least two of them are present.
var categoryFeatures = map[string][]string{
	"storm":           {"wind_speed", "pressure", "temperature", "humidity", "visibility", "wind_direction"},
	"pollution":       {"pm25", "pm10", "ozone", "wind_speed", "temperature", "humidity"},
	"erosion":         {"wave_height", "tide_level", "wind_speed", "precipitation", "temperature"},
	"algal_bloom":     {"water_temperature", "salinity", "visibility", "wave_height", "tide_level"},
	"illegal_dumping": {"visibility", "wind_speed", "wave_height", "water_temperature"},
}

// defaultThresholds are the per-category confidence bars for Detected.
var defaultThresholds = map[string]float64{
	"storm":           0.80,
	"pollution":       0.75,
	"erosion":         0.70,
	"algal_bloom":     0.80,
	"illegal_dumping": 0.85,
}

// Config tunes the classifier. ConfidenceThresholds overrides the default
// detection bar per category.
type Config struct {
	ConfidenceThresholds map[string]float64
}

// Engine classifies the current snapshot per threat category.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	store  *modelstore.Store[categoryEnsemble]
}

// categoryEnsemble is the immutable trained state for one category.
type categoryEnsemble struct {
	scaler   *feature.Scaler
	features []string
	models   []Classifier
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger,
		store:  modelstore.New[categoryEnsemble](),
	}
}

// TrainCategory fits the category's classifier ensemble on labeled examples
// and atomically replaces any previously trained one. Feature vectors must
// align with featureNames.
func (e *Engine) TrainCategory(category string, featureNames []string, rows [][]float64, labels []bool) error {
	if _, ok := categoryFeatures[category]; !ok {
		return fmt.Errorf("unknown threat category %q", category)
	}
	if len(rows) == 0 || len(rows) != len(labels) {
		return fmt.Errorf("category %s: %d rows for %d labels", category, len(rows), len(labels))
	}

	_, err := e.store.Retrain(category, func() (*categoryEnsemble, error) {
		scaler, err := feature.NewScaler(feature.ScaleStandard)
		if err != nil {
			return nil, err
		}
		scaled, err := scaler.FitTransform(rows)
		if err != nil {
			return nil, fmt.Errorf("scaling training data: %w", err)
		}

		var fitted []Classifier
		for _, model := range newClassifierEnsemble() {
			if err := model.Fit(scaled, labels); err != nil {
				e.logger.Warn("classifier fit failed",
					"category", category, "model", model.Name(), "error", err)
				continue
			}
			fitted = append(fitted, model)
		}
		if len(fitted) == 0 {
			return nil, fmt.Errorf("no classifier could fit %d examples", len(rows))
		}
		return &categoryEnsemble{
			scaler:   scaler,
			features: append([]string(nil), featureNames...),
			models:   fitted,
		}, nil
	})
	return err
}

// Classify evaluates the requested categories (all of them when none are
// named) against the table's latest values. The second return lists the
// categories that were not evaluated: unknown names, and categories with
// fewer than two of their features present.
func (e *Engine) Classify(current *feature.Table, categories ...string) ([]domain.ThreatDetectionResult, []string) {
	if len(categories) == 0 {
		categories = Categories
	}
	if current == nil || current.Empty() {
		return nil, append([]string(nil), categories...)
	}

	latest := make(map[string]float64, current.Width())
	for _, name := range current.Names() {
		if v, ok := current.Latest(name); ok {
			latest[name] = v
		}
	}

	var results []domain.ThreatDetectionResult
	var skipped []string
	for _, category := range categories {
		required, known := categoryFeatures[category]
		if !known {
			e.logger.Warn("unknown threat category requested", "category", category)
			skipped = append(skipped, category)
			continue
		}

		available := make([]string, 0, len(required))
		values := make(map[string]float64, len(required))
		for _, name := range required {
			if v, ok := latest[name]; ok {
				available = append(available, name)
				values[name] = v
			}
		}
		if len(available) < 2 {
			skipped = append(skipped, category)
			continue
		}

		results = append(results, e.classifyCategory(category, available, values))
	}
	return results, skipped
}

func (e *Engine) classifyCategory(category string, available []string, values map[string]float64) domain.ThreatDetectionResult {
	threshold := defaultThresholds[category]
	if override, ok := e.cfg.ConfidenceThresholds[category]; ok {
		threshold = override
	}

	var confidence float64
	var severity int
	method := methodRuleBased
	modelScores := map[string]float64{"feature_count": float64(len(available))}

	if ens, ok := e.store.Get(category); ok {
		if conf, scores, voted := e.ensembleConfidence(ens, values); voted > 0 {
			confidence = conf
			severity = clampSeverity(int(math.Round(confidence*5)) + 1)
			method = methodEnsemble
			for name, score := range scores {
				modelScores[name] = score
			}
		} else {
			e.logger.Warn("all classifiers failed, using rules", "category", category)
		}
	}
	if method == methodRuleBased {
		outcome := ruleBased(category, values)
		confidence = outcome.Confidence
		severity = outcome.Severity
	}

	// The severity table can raise the judgment, never lower it.
	if floor := tableSeverity(category, values); floor > severity {
		severity = floor
	}
	modelScores["ensemble_confidence"] = confidence

	return domain.ThreatDetectionResult{
		ThreatType:    category,
		Confidence:    round4(confidence),
		Severity:      severity,
		Detected:      confidence >= threshold,
		Description:   describe(category, severity, confidence, values),
		FeaturesUsed:  available,
		ModelScores:   modelScores,
		Method:        method,
		ThresholdUsed: threshold,
	}
}

// ensembleConfidence averages the positive-class probability of every model
// that produced one; voted reports how many did.
func (e *Engine) ensembleConfidence(ens *categoryEnsemble, values map[string]float64) (confidence float64, scores map[string]float64, voted int) {
	row := make([]float64, len(ens.features))
	for j, name := range ens.features {
		row[j] = values[name]
	}
	scaled, err := ens.scaler.Transform([][]float64{row})
	if err != nil {
		e.logger.Warn("scaling classification input failed", "error", err)
		return 0, nil, 0
	}

	scores = make(map[string]float64, len(ens.models))
	sum := 0.0
	for _, model := range ens.models {
		p, err := model.Probability(scaled[0])
		if err != nil {
			e.logger.Warn("classifier prediction failed", "model", model.Name(), "error", err)
			continue
		}
		scores[model.Name()] = p
		sum += p
		voted++
	}
	if voted == 0 {
		return 0, nil, 0
	}
	return sum / float64(voted), scores, voted
}

// categoryDescriptions are the severity-keyed canned sentences, index 0
// holding severity 1.
var categoryDescriptions = map[string][5]string{
	"storm": {
		"Light storm conditions with minor weather impacts",
		"Moderate storm with elevated winds and potential travel disruptions",
		"Strong storm conditions with potential for property damage and hazardous conditions",
		"Severe storm with dangerous winds causing significant property damage and power outages",
		"Extreme storm conditions with life-threatening winds and potential for catastrophic damage",
	},
	"pollution": {
		"Slight air quality degradation with minimal health impact",
		"Moderate air quality concerns for sensitive individuals",
		"Unhealthy air quality particularly dangerous for sensitive groups",
		"Very unhealthy air quality requiring protective measures for all individuals",
		"Hazardous air quality posing immediate health risks to all populations",
	},
	"algal_bloom": {
		"Conditions favorable for algal bloom formation",
		"Early algal bloom development detected",
		"Moderate algal bloom activity affecting water quality",
		"Significant algal bloom development with potential health risks",
		"Severe harmful algal bloom with toxic conditions - avoid all water contact",
	},
	"erosion": {
		"Minor erosion indicators present",
		"Moderate erosion activity detected",
		"Active erosion causing notable coastal changes",
		"Severe erosion with significant land loss and structural risks",
		"Extreme coastal erosion threatening infrastructure and safety",
	},
	"illegal_dumping": {
		"Minor environmental anomalies suggesting possible dumping",
		"Potential illegal dumping indicators observed",
		"Moderate illegal dumping activity identified",
		"Significant illegal dumping detected requiring immediate response",
		"Major illegal dumping event with severe environmental contamination",
	},
}

// describe blends the canned severity sentence with up to three concrete
// measurements and the numeric confidence.
func describe(category string, severity int, confidence float64, values map[string]float64) string {
	base := fmt.Sprintf("%s threat detected with severity level %d", category, severity)
	if sentences, ok := categoryDescriptions[category]; ok {
		base = sentences[clampSeverity(severity)-1]
	}

	var measurements []string
	if v, ok := values["wind_speed"]; ok && v > 0 {
		measurements = append(measurements, fmt.Sprintf("wind speed %.1f km/h", v))
	}
	if v, ok := values["pm25"]; ok && v > 0 {
		measurements = append(measurements, fmt.Sprintf("PM2.5 %.1f ug/m3", v))
	}
	if v, ok := values["wave_height"]; ok && v > 0 {
		measurements = append(measurements, fmt.Sprintf("wave height %.1f m", v))
	}
	if v, ok := values["water_temperature"]; ok && v > 0 {
		measurements = append(measurements, fmt.Sprintf("water temperature %.1f C", v))
	}
	if len(measurements) > 3 {
		measurements = measurements[:3]
	}

	if len(measurements) > 0 {
		return fmt.Sprintf("%s. Current conditions: %s. Confidence: %.1f%%",
			base, strings.Join(measurements, ", "), confidence*100)
	}
	return fmt.Sprintf("%s. Confidence: %.1f%%", base, confidence*100)
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
