package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/noshowrisk/internal/application/services"
	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

type MockRiskAssessor struct {
	mock.Mock
}

func (m *MockRiskAssessor) ScorePatient(ctx context.Context, patientID string) (*entities.PatientAssessment, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PatientAssessment), args.Error(1)
}

func (m *MockRiskAssessor) ScoreRange(ctx context.Context, start, end string) (*entities.RangeAssessment, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RangeAssessment), args.Error(1)
}

func (m *MockRiskAssessor) ModelVersion() string {
	return m.Called().String(0)
}

func sampleAssessment() *entities.RangeAssessment {
	mean := 0.4
	return &entities.RangeAssessment{
		Start:        "2024-07-01",
		End:          "2024-07-01",
		Days:         []entities.DayAssessment{{Date: "2024-07-01", Cohort: &entities.RiskCohort{Total: 1, Medium: 1, MeanProbability: &mean}}},
		Aggregate:    &entities.RiskCohort{Total: 1, Medium: 1, MeanProbability: &mean},
		ModelVersion: "v1",
	}
}

func TestCachedRiskService_ScoreRange(t *testing.T) {
	t.Run("serves a cached assessment", func(t *testing.T) {
		next := new(MockRiskAssessor)
		cache := new(MockCacheProvider)
		service := services.NewCachedRiskService(next, cache, 15*time.Minute, nil)

		data, err := json.Marshal(sampleAssessment())
		require.NoError(t, err)
		next.On("ModelVersion").Return("v1")
		cache.On("Get", mock.Anything, "range:2024-07-01:2024-07-01:v1").Return(data, nil)

		assessment, err := service.ScoreRange(context.Background(), "2024-07-01", "2024-07-01")

		require.NoError(t, err)
		assert.Equal(t, sampleAssessment(), assessment)
		next.AssertNotCalled(t, "ScoreRange", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stores a fresh assessment", func(t *testing.T) {
		next := new(MockRiskAssessor)
		cache := new(MockCacheProvider)
		service := services.NewCachedRiskService(next, cache, 15*time.Minute, nil)

		next.On("ModelVersion").Return("v1")
		next.On("ScoreRange", mock.Anything, "2024-07-01", "2024-07-01").Return(sampleAssessment(), nil)
		cache.On("Get", mock.Anything, mock.Anything).Return(nil, apperrors.NewNotFoundError("miss"))
		cache.On("Set", mock.Anything, "range:2024-07-01:2024-07-01:v1", mock.Anything, 900).Return(nil)

		assessment, err := service.ScoreRange(context.Background(), "2024-07-01", "2024-07-01")
		service.Wait()

		require.NoError(t, err)
		assert.Equal(t, 1, assessment.Aggregate.Total)
		cache.AssertExpectations(t)
	})

	t.Run("incomplete assessments are not cached", func(t *testing.T) {
		next := new(MockRiskAssessor)
		cache := new(MockCacheProvider)
		service := services.NewCachedRiskService(next, cache, time.Minute, nil)

		partial := sampleAssessment()
		partial.Incomplete = true
		next.On("ModelVersion").Return("v1")
		next.On("ScoreRange", mock.Anything, mock.Anything, mock.Anything).Return(partial, context.Canceled)
		cache.On("Get", mock.Anything, mock.Anything).Return(nil, apperrors.NewNotFoundError("miss"))

		assessment, err := service.ScoreRange(context.Background(), "2024-07-01", "2024-07-01")
		service.Wait()

		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, assessment.Incomplete)
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid range never reaches the cache", func(t *testing.T) {
		next := new(MockRiskAssessor)
		cache := new(MockCacheProvider)
		service := services.NewCachedRiskService(next, cache, time.Minute, nil)

		_, err := service.ScoreRange(context.Background(), "2024-07-02", "2024-07-01")

		assert.True(t, errors.Is(err, apperrors.ErrInvalidRange))
		cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("cache write failures are not surfaced", func(t *testing.T) {
		next := new(MockRiskAssessor)
		cache := new(MockCacheProvider)
		service := services.NewCachedRiskService(next, cache, time.Minute, nil)

		next.On("ModelVersion").Return("v1")
		next.On("ScoreRange", mock.Anything, mock.Anything, mock.Anything).Return(sampleAssessment(), nil)
		cache.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything, 60).Return(errors.New("redis down"))

		assessment, err := service.ScoreRange(context.Background(), "2024-07-01", "2024-07-01")
		service.Wait()

		require.NoError(t, err)
		assert.NotNil(t, assessment)
	})

	t.Run("undecodable entries are dropped and recomputed", func(t *testing.T) {
		next := new(MockRiskAssessor)
		cache := new(MockCacheProvider)
		service := services.NewCachedRiskService(next, cache, time.Minute, nil)

		key := "range:2024-07-01:2024-07-01:v1"
		next.On("ModelVersion").Return("v1")
		next.On("ScoreRange", mock.Anything, "2024-07-01", "2024-07-01").Return(sampleAssessment(), nil)
		cache.On("Get", mock.Anything, key).Return([]byte("{not json"), nil)
		cache.On("Delete", mock.Anything, key).Return(nil)
		cache.On("Set", mock.Anything, key, mock.Anything, 60).Return(nil)

		assessment, err := service.ScoreRange(context.Background(), "2024-07-01", "2024-07-01")
		service.Wait()

		require.NoError(t, err)
		assert.Equal(t, "v1", assessment.ModelVersion)
		cache.AssertExpectations(t)
	})
}
