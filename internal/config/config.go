// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oceansentinel/threat-scoring/internal/feature"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Scoring engine configuration.
	BranchTimeout    time.Duration
	ForecastHorizons []int
	MinHistory       int
	Contamination    float64
	MissingStrategy  feature.MissingStrategy
	Normalization    string
	HistoryWindow    int
	CriticalSeverity int

	// Per-category confidence threshold overrides, e.g. "storm=0.9,erosion=0.6".
	ConfidenceThresholds map[string]float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	flushInterval, err := parseDuration("BATCH_FLUSH_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}
	branchTimeout, err := parseDuration("BRANCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	batchSize, err := parseInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	minHistory, err := parseInt("MIN_HISTORY_SAMPLES", 50)
	if err != nil {
		return nil, err
	}
	historyWindow, err := parseInt("HISTORY_WINDOW", 500)
	if err != nil {
		return nil, err
	}
	criticalSeverity, err := parseInt("CRITICAL_SEVERITY", 3)
	if err != nil {
		return nil, err
	}

	contamination, err := parseFloat("ANOMALY_CONTAMINATION", 0.1)
	if err != nil {
		return nil, err
	}

	horizons, err := parseHorizons(envOrDefault("FORECAST_HORIZONS", "2,4,8,24"))
	if err != nil {
		return nil, err
	}

	thresholds, err := parseThresholds(os.Getenv("CONFIDENCE_THRESHOLDS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       splitBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   envOrDefault("KAFKA_SOURCE_TOPIC", "environmental-readings"),
		KafkaSinkTopic:     envOrDefault("KAFKA_SINK_TOPIC", "threat-scoring-reports"),
		KafkaGroupID:       envOrDefault("KAFKA_GROUP_ID", "threat-scoring"),
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		BranchTimeout:        branchTimeout,
		ForecastHorizons:     horizons,
		MinHistory:           minHistory,
		Contamination:        contamination,
		MissingStrategy:      feature.MissingStrategy(envOrDefault("MISSING_STRATEGY", "interpolation")),
		Normalization:        envOrDefault("NORMALIZATION_METHOD", "robust"),
		HistoryWindow:        historyWindow,
		CriticalSeverity:     criticalSeverity,
		ConfidenceThresholds: thresholds,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		return nil, errors.New("ANOMALY_CONTAMINATION must be in (0, 0.5)")
	}
	switch cfg.MissingStrategy {
	case feature.MissingInterpolate, feature.MissingFill, feature.MissingMean, feature.MissingMedian:
	default:
		return nil, fmt.Errorf("invalid MISSING_STRATEGY %q", cfg.MissingStrategy)
	}
	switch cfg.Normalization {
	case "standard", "robust", "minmax", "none":
	default:
		return nil, fmt.Errorf("invalid NORMALIZATION_METHOD %q", cfg.Normalization)
	}
	if cfg.CriticalSeverity < 1 || cfg.CriticalSeverity > 5 {
		return nil, errors.New("CRITICAL_SEVERITY must be between 1 and 5")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

// parseHorizons reads a comma-separated list of forecast offsets in hours,
// which must be positive and strictly ascending.
func parseHorizons(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil || h <= 0 {
			return nil, fmt.Errorf("invalid FORECAST_HORIZONS entry %q", part)
		}
		if len(out) > 0 && h <= out[len(out)-1] {
			return nil, errors.New("FORECAST_HORIZONS must be strictly ascending")
		}
		out = append(out, h)
	}
	if len(out) == 0 {
		return nil, errors.New("FORECAST_HORIZONS is required")
	}
	return out, nil
}

// parseThresholds reads "category=value" pairs separated by commas.
func parseThresholds(raw string) (map[string]float64, error) {
	out := make(map[string]float64)
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid CONFIDENCE_THRESHOLDS entry %q", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || f < 0 || f > 1 {
			return nil, fmt.Errorf("invalid CONFIDENCE_THRESHOLDS entry %q", pair)
		}
		out[strings.TrimSpace(name)] = f
	}
	return out, nil
}
