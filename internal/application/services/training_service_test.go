package services_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/noshowrisk/internal/adapters/dataset"
	"github.com/zatekoja/noshowrisk/internal/adapters/providers/geolocation"
	"github.com/zatekoja/noshowrisk/internal/application/services"
	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/internal/evaluation"
	"github.com/zatekoja/noshowrisk/internal/features"
	"github.com/zatekoja/noshowrisk/internal/fixtures"
	"github.com/zatekoja/noshowrisk/internal/model"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

func trainingOptions() services.TrainingOptions {
	return services.TrainingOptions{
		Model: model.TrainingOptions{
			GBM: model.GBMOptions{
				Trees:               60,
				LearningRate:        0.1,
				MaxDepth:            3,
				MinSamplesLeaf:      10,
				L2:                  1,
				Bins:                16,
				EarlyStoppingRounds: 10,
			},
			Logistic:        model.LogisticOptions{Iterations: 200, LearningRate: 0.2, L2: 1},
			ValidationRatio: 0.15,
			Seed:            42,
		},
		TestRatio:      0.2,
		TopImportances: 5,
	}
}

func trainingStore(patients int) *dataset.Store {
	opts := fixtures.DefaultOptions()
	opts.Patients = patients
	ds := fixtures.Generate(opts)
	return dataset.NewStore(ds.Appointments, ds.Reference(), ds.HouseholdIncome)
}

func lenientGuardrails() evaluation.GuardrailConfig {
	return evaluation.GuardrailConfig{MinROCAUC: 0.5, MaxLogLoss: 1, BaselineMargin: 1}
}

func newTrainingService(store *dataset.Store, guardrails evaluation.GuardrailConfig) *services.TrainingService {
	return services.NewTrainingService(
		store,
		store,
		features.NewPipeline(geolocation.NewHaversineCalculator()),
		evaluation.NewGuardrails(guardrails),
		trainingOptions(),
		nil,
	)
}

func TestTrainingService_Train(t *testing.T) {
	service := newTrainingService(trainingStore(200), lenientGuardrails())

	result, err := service.Train(context.Background())
	require.NoError(t, err)

	report := result.Report
	require.Len(t, report.Models, 2)
	prod := report.Model(services.ProductionCandidate)
	require.NotNil(t, prod)
	assert.Equal(t, model.KindGradientBoosting, prod.Kind)
	assert.Greater(t, prod.ROCAUC, 0.6)
	assert.Positive(t, prod.Positives)
	assert.NotNil(t, report.Model(services.BaselineCandidate))
	assert.Equal(t, prod.Samples, report.TestSamples)
	assert.LessOrEqual(t, len(report.TopImportances), 5)
	assert.NotEmpty(t, report.TopImportances)

	assert.NotEmpty(t, result.Production.SpecialtyNoShowRates())
	assert.NotEqual(t, result.Production.Version(), result.Baseline.Version())
}

func TestTrainingService_SpecialtyRatesCoverAllLabeledHistory(t *testing.T) {
	store := trainingStore(120)
	service := newTrainingService(store, lenientGuardrails())

	result, err := service.Train(context.Background())
	require.NoError(t, err)

	history, err := store.ListHistory(context.Background())
	require.NoError(t, err)
	ref, err := store.ReferenceData(context.Background())
	require.NoError(t, err)
	rows := features.NewPipeline(geolocation.NewHaversineCalculator()).BuildTraining(history, ref)
	want := features.NoShowRateBySpecialty(rows)

	require.NotEmpty(t, want)
	for specialty, rate := range want {
		assert.InDelta(t, rate, result.Production.SpecialtyNoShowRates()[specialty], 1e-12, specialty)
		assert.InDelta(t, rate, result.Baseline.SpecialtyNoShowRates()[specialty], 1e-12, specialty)
	}
	assert.Len(t, result.Production.SpecialtyNoShowRates(), len(want))
}

func TestTrainingService_Publish(t *testing.T) {
	t.Run("published model loads back", func(t *testing.T) {
		dir := t.TempDir()
		service := newTrainingService(trainingStore(200), lenientGuardrails())
		result, err := service.Train(context.Background())
		require.NoError(t, err)

		artifact, report := filepath.Join(dir, "model.json"), filepath.Join(dir, "report.json")
		published, err := service.Publish(result, artifact, report, !result.Report.Accepted)
		require.NoError(t, err)
		assert.True(t, published)

		loaded, err := model.Load(artifact)
		require.NoError(t, err)
		assert.Equal(t, result.Production.Version(), loaded.Version())

		saved, err := evaluation.LoadReport(report)
		require.NoError(t, err)
		assert.Len(t, saved.Models, 2)
	})

	t.Run("rejected model only writes the report", func(t *testing.T) {
		dir := t.TempDir()
		service := newTrainingService(trainingStore(80), evaluation.GuardrailConfig{MinROCAUC: 0.999})
		result, err := service.Train(context.Background())
		require.NoError(t, err)
		require.False(t, result.Report.Accepted)

		artifact, report := filepath.Join(dir, "model.json"), filepath.Join(dir, "report.json")
		published, err := service.Publish(result, artifact, report, false)
		require.NoError(t, err)
		assert.False(t, published)

		_, err = os.Stat(artifact)
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(report)
		assert.NoError(t, err)

		published, err = service.Publish(result, artifact, report, true)
		require.NoError(t, err)
		assert.True(t, published)
	})
}

func TestTrainingService_NoLabeledHistory(t *testing.T) {
	repo := new(MockAppointmentRepository)
	ref := new(MockReferenceRepository)
	repo.On("ListHistory", mock.Anything).Return([]*entities.AppointmentRecord{
		appointment("a", "P1", at(1, 9), "card", entities.OutcomeScheduled),
		appointment("b", "P1", at(2, 9), "card", entities.OutcomeCancelled),
	}, nil)
	ref.On("ReferenceData", mock.Anything).Return(testReference(), nil)

	service := services.NewTrainingService(repo, ref,
		features.NewPipeline(geolocation.NewHaversineCalculator()),
		evaluation.NewGuardrails(evaluation.GuardrailConfig{}),
		trainingOptions(),
		nil,
	)

	result, err := service.Train(context.Background())
	assert.Nil(t, result)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
