package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/noshowrisk/internal/adapters/providers/geolocation"
	"github.com/zatekoja/noshowrisk/internal/app"
	"github.com/zatekoja/noshowrisk/internal/application/services"
	"github.com/zatekoja/noshowrisk/internal/evaluation"
	"github.com/zatekoja/noshowrisk/internal/features"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/observability"
	"github.com/zatekoja/noshowrisk/internal/model"
	"github.com/zatekoja/noshowrisk/pkg/config"
)

func main() {
	force := flag.Bool("force", false, "publish the model artifact even when it fails the quality gates")
	artifactPath := flag.String("model", "", "model artifact path (defaults to MODEL_ARTIFACT_PATH)")
	reportPath := flag.String("report", "", "evaluation report path (defaults to MODEL_REPORT_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-train", cfg.Environment, cfg.Logging)

	if *artifactPath == "" {
		*artifactPath = cfg.Model.ArtifactPath
	}
	if *reportPath == "" {
		*reportPath = cfg.Model.ReportPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, shutdown := app.SetupTelemetry(ctx, cfg)
	defer shutdown()

	sources, err := app.OpenSources(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.Scoring.Source).Msg("Failed to open appointment source")
	}
	defer sources.Close()

	trainer := services.NewTrainingService(
		sources.Appointments,
		sources.Reference,
		features.NewPipeline(geolocation.NewHaversineCalculator()),
		evaluation.NewGuardrails(evaluation.GuardrailConfig{
			MinROCAUC:      cfg.Model.MinROCAUC,
			MaxLogLoss:     cfg.Model.MaxLogLoss,
			BaselineMargin: cfg.Model.BaselineMargin,
		}),
		services.TrainingOptions{
			Model:     model.OptionsFromConfig(cfg.Model, cfg.Split),
			TestRatio: cfg.Split.TestRatio,
		},
		metrics,
	)

	result, err := trainer.Train(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}

	published, err := trainer.Publish(result, *artifactPath, *reportPath, *force)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to publish training output")
	}
	if !published {
		log.Error().Strs("rejections", result.Report.Rejections).Msg("Model rejected; rerun with -force to publish anyway")
		os.Exit(2)
	}

	// Cached range assessments carry the previous model version; drop them.
	if cache, closeCache := app.OpenCache(ctx, cfg); cache != nil {
		removed, err := cache.Purge(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to purge cached assessments")
		} else {
			log.Info().Int("keys", removed).Msg("Purged cached assessments")
		}
		closeCache()
	}
}
