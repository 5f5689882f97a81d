package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/noshowrisk/internal/domain/repositories"
	"github.com/zatekoja/noshowrisk/internal/evaluation"
	"github.com/zatekoja/noshowrisk/internal/features"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/observability"
	"github.com/zatekoja/noshowrisk/internal/model"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

// Candidate names used in evaluation reports
const (
	ProductionCandidate = "gradient_boosting"
	BaselineCandidate   = "logistic_baseline"
)

// TrainingOptions configures a training run
type TrainingOptions struct {
	Model     model.TrainingOptions
	TestRatio float64
	// TopImportances is the number of feature importances kept in the report.
	TopImportances int
}

// TrainingResult holds both fitted models and their held-out evaluation
type TrainingResult struct {
	Production *model.TrainedRiskModel
	Baseline   *model.TrainedRiskModel
	Report     *evaluation.Report
}

// TrainingService fits and evaluates the no-show models from history
type TrainingService struct {
	appointments repositories.AppointmentRepository
	reference    repositories.ReferenceRepository
	pipeline     *features.Pipeline
	runner       *evaluation.Runner
	opts         TrainingOptions
	metrics      *observability.Metrics
}

// NewTrainingService creates a new training service
func NewTrainingService(
	appointments repositories.AppointmentRepository,
	reference repositories.ReferenceRepository,
	pipeline *features.Pipeline,
	guardrails *evaluation.Guardrails,
	opts TrainingOptions,
	metrics *observability.Metrics,
) *TrainingService {
	if opts.TopImportances <= 0 {
		opts.TopImportances = 10
	}
	return &TrainingService{
		appointments: appointments,
		reference:    reference,
		pipeline:     pipeline,
		runner:       evaluation.NewRunner(guardrails),
		opts:         opts,
		metrics:      metrics,
	}
}

// Train builds labeled features from the full history, holds out a
// label-stratified test split, fits the boosted model and the logistic
// baseline on the rest, and evaluates both on the held-out rows.
func (s *TrainingService) Train(ctx context.Context) (*TrainingResult, error) {
	ctx, span := observability.StartSpan(ctx, "TrainingService.Train")
	defer span.End()
	started := time.Now()

	history, err := s.appointments.ListHistory(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to load appointment history: %w", err)
	}
	ref, err := s.reference.ReferenceData(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}

	rows := s.pipeline.BuildTraining(history, ref)
	if len(rows) == 0 {
		return nil, apperrors.NewValidationError("no appointments with an observed outcome to train on")
	}
	positives := 0
	for _, r := range rows {
		positives += r.Label
	}
	log.Info().
		Int("appointments", len(history)).
		Int("labeled", len(rows)).
		Int("no_shows", positives).
		Msg("Built training features")

	train, test := model.StratifiedSplit(rows, s.opts.TestRatio, s.opts.Model.Seed)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	production, err := model.FitGradientBoosting(train, s.opts.Model)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to fit gradient boosting: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	baseline, err := model.FitLogistic(train, s.opts.Model)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to fit logistic baseline: %w", err)
	}

	// Overbooking ceilings read observed rates over every labeled appointment,
	// not just the training split.
	rates := features.NoShowRateBySpecialty(rows)
	production = production.WithSpecialtyNoShowRates(rates)
	baseline = baseline.WithSpecialtyNoShowRates(rates)

	report, err := s.runner.Run([]evaluation.Candidate{
		{Name: ProductionCandidate, Kind: production.Kind(), Scorer: production},
		{Name: BaselineCandidate, Kind: baseline.Kind(), Scorer: baseline},
	}, len(train), test)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to evaluate models: %w", err)
	}

	importances := production.FeatureImportances()
	top := make([]evaluation.Importance, len(importances))
	for i, imp := range importances {
		top[i] = evaluation.Importance{Feature: imp.Feature, Importance: imp.Importance}
	}
	report.WithImportances(top, s.opts.TopImportances)

	for _, m := range report.Models {
		log.Info().
			Str("model", m.Name).
			Str("kind", m.Kind).
			Float64("roc_auc", m.ROCAUC).
			Float64("log_loss", m.LogLoss).
			Int("test_samples", m.Samples).
			Msg("Model evaluated")
	}
	for _, imp := range report.TopImportances {
		log.Debug().Str("feature", imp.Feature).Float64("importance", imp.Importance).Msg("Feature importance")
	}
	if !report.Accepted {
		log.Warn().Strs("rejections", report.Rejections).Msg("Production model failed quality gates")
	}

	if prod := report.Model(ProductionCandidate); prod != nil {
		observability.RecordTraining(ctx, s.metrics, prod.Kind, report.Accepted, prod.ROCAUC)
	}
	log.Info().Dur("elapsed", time.Since(started)).Bool("accepted", report.Accepted).Msg("Training finished")

	return &TrainingResult{
		Production: production,
		Baseline:   baseline,
		Report:     report,
	}, nil
}

// Publish writes the evaluation report and, when the production model passed
// its quality gates or force is set, the model artifact. It reports whether
// the artifact was written.
func (s *TrainingService) Publish(result *TrainingResult, artifactPath, reportPath string, force bool) (bool, error) {
	if result == nil || result.Report == nil {
		return false, apperrors.NewValidationError("nothing to publish")
	}
	if err := evaluation.SaveReport(reportPath, result.Report); err != nil {
		return false, fmt.Errorf("failed to save evaluation report: %w", err)
	}
	if !result.Report.Accepted && !force {
		log.Warn().Str("report", reportPath).Msg("Model artifact not published")
		return false, nil
	}
	if err := result.Production.Save(artifactPath); err != nil {
		return false, fmt.Errorf("failed to save model artifact: %w", err)
	}
	log.Info().
		Str("artifact", artifactPath).
		Str("version", result.Production.Version()).
		Msg("Model artifact published")
	return true, nil
}
