package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/noshowrisk/internal/adapters/providers/geolocation"
	"github.com/zatekoja/noshowrisk/internal/app"
	"github.com/zatekoja/noshowrisk/internal/application/services"
	"github.com/zatekoja/noshowrisk/internal/domain/providers"
	"github.com/zatekoja/noshowrisk/internal/features"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/observability"
	"github.com/zatekoja/noshowrisk/internal/model"
	"github.com/zatekoja/noshowrisk/internal/policy"
	"github.com/zatekoja/noshowrisk/pkg/config"
)

func main() {
	patientID := flag.String("patient", "", "score the next appointment of this patient")
	start := flag.String("start", "", "first day of the range to score (YYYY-MM-DD)")
	end := flag.String("end", "", "last day of the range to score (YYYY-MM-DD, defaults to -start)")
	artifactPath := flag.String("model", "", "model artifact path (defaults to MODEL_ARTIFACT_PATH)")
	fallback := flag.Bool("fallback", false, "score with the rule-based stub instead of a trained model")
	flag.Parse()

	if (*patientID == "") == (*start == "") {
		fmt.Fprintln(os.Stderr, "usage: score -patient ID | -start YYYY-MM-DD [-end YYYY-MM-DD]")
		os.Exit(2)
	}
	if *end == "" {
		*end = *start
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-score", cfg.Environment, cfg.Logging)

	if *artifactPath == "" {
		*artifactPath = cfg.Model.ArtifactPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, shutdown := app.SetupTelemetry(ctx, cfg)
	defer shutdown()

	var scorer providers.RiskScorer
	if *fallback {
		log.Warn().Msg("Scoring with the rule-based stub; probabilities are not calibrated")
		scorer = model.RuleBasedScorer{}
	} else {
		trained, err := model.Load(*artifactPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *artifactPath).Msg("Failed to load model; train one or pass -fallback")
		}
		log.Info().Str("version", trained.Version()).Str("kind", trained.Kind()).Msg("Model loaded")
		scorer = trained
	}

	sources, err := app.OpenSources(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.Scoring.Source).Msg("Failed to open appointment source")
	}
	defer sources.Close()

	var assessor services.RiskAssessor = services.NewRiskService(
		sources.Appointments,
		sources.Reference,
		sources.Profiles,
		scorer,
		features.NewPipeline(geolocation.NewHaversineCalculator()),
		policy.NewEngine(cfg.Policy),
		app.RiskServiceOptions(cfg, scorer),
		metrics,
	)

	cache, closeCache := app.OpenCache(ctx, cfg)
	defer closeCache()
	if cache != nil {
		cached := services.NewCachedRiskService(assessor, cache, cfg.Scoring.CacheTTL, metrics)
		defer cached.Wait()
		assessor = cached
	}

	if *patientID != "" {
		assessment, err := assessor.ScorePatient(ctx, *patientID)
		if err != nil {
			log.Fatal().Err(err).Str("patient_id", *patientID).Msg("Scoring failed")
		}
		writeJSON(assessment)
		return
	}

	assessment, err := assessor.ScoreRange(ctx, *start, *end)
	if err != nil && !services.IsIncomplete(assessment, err) {
		log.Fatal().Err(err).Str("start", *start).Str("end", *end).Msg("Scoring failed")
	}
	writeJSON(assessment)
	if err != nil {
		log.Warn().Err(err).Int("days", len(assessment.Days)).Msg("Range assessment is incomplete")
	}
}

func writeJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write result")
	}
}
