package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/oceansentinel/threat-scoring/internal/adapter/http"
	kafkaadapter "github.com/oceansentinel/threat-scoring/internal/adapter/kafka"
	"github.com/oceansentinel/threat-scoring/internal/anomaly"
	"github.com/oceansentinel/threat-scoring/internal/classify"
	"github.com/oceansentinel/threat-scoring/internal/config"
	"github.com/oceansentinel/threat-scoring/internal/engine"
	"github.com/oceansentinel/threat-scoring/internal/feature"
	"github.com/oceansentinel/threat-scoring/internal/forecast"
	"github.com/oceansentinel/threat-scoring/internal/observability"
	"github.com/oceansentinel/threat-scoring/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	pre := feature.NewPreprocessor(feature.Config{MissingStrategy: cfg.MissingStrategy}, logger)
	scorer := anomaly.NewScorer(anomaly.Config{
		Contamination: cfg.Contamination,
		Normalization: cfg.Normalization,
	}, logger)
	predictor := forecast.NewPredictor(forecast.Config{
		Horizons:   cfg.ForecastHorizons,
		MinSamples: cfg.MinHistory,
	}, logger)
	classifier := classify.NewEngine(classify.Config{
		ConfidenceThresholds: cfg.ConfidenceThresholds,
	}, logger)

	eng := engine.New(engine.Config{
		BranchTimeout: cfg.BranchTimeout,
		HistoryWindow: cfg.HistoryWindow,
	}, pre, scorer, predictor, classifier, logger, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, eng, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scoring pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
