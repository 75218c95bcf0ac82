package domain

import (
	"time"

	"github.com/google/uuid"
)

// Detection methods reported by the anomaly scorer.
const (
	MethodStatistical = "statistical"
	MethodEnsembleML  = "ensemble_ml"
	MethodNone        = "none"
)

// Trend directions reported by the predictor.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
	TrendUnknown    = "unknown"
)

// Branch statuses recorded per analytic branch of a scoring run.
const (
	BranchOK      = "ok"
	BranchTimeout = "timeout"
	BranchEmpty   = "empty"
)

// ResultMeta carries run diagnostics common to all result kinds.
type ResultMeta struct {
	DataPoints int    `json:"data_points"`
	Parameters int    `json:"parameters_analyzed"`
	ModelsUsed int    `json:"models_used,omitempty"`
	Note       string `json:"note,omitempty"`
}

// ParameterDiagnostics holds the per-column evidence behind a statistical
// anomaly judgment.
type ParameterDiagnostics struct {
	ZScoreAnomalies int     `json:"z_score_anomalies"`
	IQRAnomalies    int     `json:"iqr_anomalies"`
	AnomalyRatio    float64 `json:"anomaly_ratio"`
	WeightedScore   float64 `json:"weighted_score"`
	MaxZScore       float64 `json:"max_z_score"`
	LatestValue     float64 `json:"latest_value"`
}

// ModelVote holds one detector's contribution to an ensemble anomaly score.
type ModelVote struct {
	Flagged   int     `json:"flagged"`
	Ratio     float64 `json:"ratio"`
	MeanScore float64 `json:"mean_score"`
	MaxScore  float64 `json:"max_score"`
}

// AnomalyResult is the anomaly scorer's judgment for one scoring run.
type AnomalyResult struct {
	IsAnomaly          bool                            `json:"is_anomaly"`
	Score              float64                         `json:"anomaly_score"`
	Severity           int                             `json:"severity"`
	Confidence         float64                         `json:"confidence"`
	AffectedParameters []string                        `json:"affected_parameters"`
	DetectionMethod    string                          `json:"detection_method"`
	Diagnostics        map[string]ParameterDiagnostics `json:"diagnostics,omitempty"`
	ModelVotes         map[string]ModelVote            `json:"model_votes,omitempty"`
	Description        string                          `json:"description"`
	Recommendations    []string                        `json:"recommendations"`
	Meta               ResultMeta                      `json:"meta"`
}

// Interval is a forecast confidence interval.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// PredictedAlert flags a forecast value that crosses a risk ladder at
// severity 3 or higher before it is observed.
type PredictedAlert struct {
	Parameter    string  `json:"parameter"`
	ForecastHour int     `json:"forecast_hour"`
	Value        float64 `json:"predicted_value"`
	Severity     int     `json:"severity"`
	Description  string  `json:"description"`
}

// ModelPerformance aggregates regression quality over the models trained
// during a prediction run. Zero-valued when nothing was trained.
type ModelPerformance struct {
	AverageR2       float64 `json:"average_r2"`
	AverageMAE      float64 `json:"average_mae"`
	ModelsTrained   int     `json:"models_trained"`
	AccuracyPercent float64 `json:"accuracy_percent"`
}

// PredictionResult is the predictor's output for one scoring run. Slices in
// the per-parameter maps align index-for-index with ForecastHours.
type PredictionResult struct {
	ForecastHours       []int                 `json:"forecast_hours"`
	Predictions         map[string][]float64  `json:"predictions"`
	ConfidenceIntervals map[string][]Interval `json:"confidence_intervals"`
	TrendAnalysis       map[string]string     `json:"trend_analysis"`
	RiskAssessment      map[string]int        `json:"risk_assessment"`
	AlertsPredicted     []PredictedAlert      `json:"alerts_predicted"`
	Performance         ModelPerformance      `json:"model_performance"`
	Meta                ResultMeta            `json:"meta"`
}

// ThreatDetectionResult is one category's classification outcome. Every
// evaluated category produces a result whether or not the threat was
// detected; categories with too few input features produce none and are
// listed in the report's SkippedCategories instead.
type ThreatDetectionResult struct {
	ThreatType    string             `json:"threat_type"`
	Confidence    float64            `json:"confidence"`
	Severity      int                `json:"severity"`
	Detected      bool               `json:"detected"`
	Description   string             `json:"description"`
	FeaturesUsed  []string           `json:"features_used"`
	ModelScores   map[string]float64 `json:"model_scores,omitempty"`
	Method        string             `json:"detection_method"`
	ThresholdUsed float64            `json:"threshold_used"`
}

// ScoringReport is the merged output of one pipeline run, consumed by the
// persistence, alerting, and integrity-logging collaborators.
type ScoringReport struct {
	ID          string    `json:"id"`
	Location    Location  `json:"location"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	InputHash   string    `json:"input_hash"`
	GeneratedAt time.Time `json:"generated_at"`

	Anomaly  AnomalyResult           `json:"anomaly"`
	Forecast PredictionResult        `json:"forecast"`
	Threats  []ThreatDetectionResult `json:"threats"`

	SkippedCategories []string          `json:"skipped_categories,omitempty"`
	BranchStatus      map[string]string `json:"branch_status"`
}

// NewReport allocates a report for one scoring run, stamped from the
// package clock.
func NewReport(loc Location) *ScoringReport {
	return &ScoringReport{
		ID:           uuid.NewString(),
		Location:     loc,
		GeneratedAt:  clock.Now().UTC(),
		BranchStatus: make(map[string]string, 3),
	}
}

// CriticalThreats returns the detected threats at or above minSeverity,
// the subset handed to the alerting collaborator.
func (r *ScoringReport) CriticalThreats(minSeverity int) []ThreatDetectionResult {
	var out []ThreatDetectionResult
	for _, t := range r.Threats {
		if t.Detected && t.Severity >= minSeverity {
			out = append(out, t)
		}
	}
	return out
}

// SeverityLabel maps a 1-5 severity to its user-facing word.
func SeverityLabel(severity int) string {
	switch severity {
	case 1:
		return "Low"
	case 2:
		return "Moderate"
	case 3:
		return "High"
	case 4:
		return "Severe"
	case 5:
		return "Extreme"
	default:
		return "Unknown"
	}
}
