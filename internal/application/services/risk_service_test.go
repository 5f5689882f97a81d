package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/noshowrisk/internal/adapters/dataset"
	"github.com/zatekoja/noshowrisk/internal/adapters/providers/geolocation"
	"github.com/zatekoja/noshowrisk/internal/application/services"
	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/internal/domain/providers"
	"github.com/zatekoja/noshowrisk/internal/features"
	"github.com/zatekoja/noshowrisk/internal/fixtures"
	"github.com/zatekoja/noshowrisk/internal/model"
	"github.com/zatekoja/noshowrisk/internal/policy"
	"github.com/zatekoja/noshowrisk/pkg/config"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

func testReference() *entities.ReferenceData {
	return &entities.ReferenceData{
		Facilities: map[string]entities.Coordinates{
			"home": {Latitude: -22.9068, Longitude: -43.1729},
			"far":  {Latitude: -23.0045, Longitude: -43.3650},
		},
		Specialties: map[string]string{
			"card": "Cardiologia",
			"orto": "Ortopedia",
		},
	}
}

func at(day, hour int) time.Time {
	return time.Date(2024, 7, day, hour, 0, 0, 0, time.UTC)
}

func appointment(id, patient string, scheduled time.Time, procedure string, outcome entities.AppointmentOutcome) *entities.AppointmentRecord {
	requested := scheduled.AddDate(0, 0, -10)
	return &entities.AppointmentRecord{
		ID:                   id,
		PatientID:            patient,
		RequestedAt:          &requested,
		ScheduledAt:          scheduled,
		RequestingFacilityID: "home",
		ExecutingFacilityID:  "far",
		ProcedureCode:        procedure,
		PatientAgeBand:       "30-39",
		RiskFlag:             "VERMELHO",
		Outcome:              outcome,
	}
}

func newService(repo *MockAppointmentRepository, ref *MockReferenceRepository, profiles providers.PatientProfileProvider, scorer providers.RiskScorer, opts services.RiskServiceOptions) *services.RiskService {
	return services.NewRiskService(
		repo,
		ref,
		profiles,
		scorer,
		features.NewPipeline(geolocation.NewHaversineCalculator()),
		policy.NewEngine(config.DefaultPolicy()),
		opts,
		nil,
	)
}

func TestRiskService_ScorePatient(t *testing.T) {
	t.Run("scores the open appointment and grants the subsidy", func(t *testing.T) {
		// Arrange
		repo := new(MockAppointmentRepository)
		ref := new(MockReferenceRepository)
		profiles := new(MockPatientProfileProvider)
		scorer := fixedScorer{probabilities: map[string]float64{"open": 0.8, "past": 0.1}}
		service := newService(repo, ref, profiles, scorer, services.RiskServiceOptions{Workers: 1, TopDetails: 5})

		records := []*entities.AppointmentRecord{
			appointment("past", "P1", at(1, 9), "card", entities.OutcomeNoShow),
			appointment("open", "P1", at(10, 9), "card", entities.OutcomeScheduled),
		}
		income := 1500.0
		repo.On("ListByPatient", mock.Anything, "P1").Return(records, nil)
		ref.On("ReferenceData", mock.Anything).Return(testReference(), nil)
		profiles.On("HouseholdIncome", mock.Anything, "P1").Return(&income, nil)

		// Act
		assessment, err := service.ScorePatient(context.Background(), "P1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "open", assessment.AppointmentID)
		assert.Equal(t, "fixed-v1", assessment.ModelVersion)
		assert.Equal(t, entities.RiskTierHigh, assessment.Decision.Tier)
		assert.Len(t, assessment.Decision.Actions, 4)
		require.NotNil(t, assessment.Decision.Subsidy)
		assert.True(t, assessment.Decision.Subsidy.Eligible)
		repo.AssertNotCalled(t, "ListHistory", mock.Anything)
	})

	t.Run("falls back to the latest appointment", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		ref := new(MockReferenceRepository)
		scorer := fixedScorer{probabilities: map[string]float64{"a": 0.5, "b": 0.2}}
		service := newService(repo, ref, nil, scorer, services.RiskServiceOptions{})

		repo.On("ListByPatient", mock.Anything, "P1").Return([]*entities.AppointmentRecord{
			appointment("b", "P1", at(5, 9), "card", entities.OutcomeAttended),
			appointment("a", "P1", at(1, 9), "card", entities.OutcomeAttended),
		}, nil)
		ref.On("ReferenceData", mock.Anything).Return(testReference(), nil)

		assessment, err := service.ScorePatient(context.Background(), "P1")

		require.NoError(t, err)
		assert.Equal(t, "b", assessment.AppointmentID)
		assert.Equal(t, entities.RiskTierLow, assessment.Decision.Tier)
		assert.Equal(t, []entities.InterventionAction{entities.ActionAutomaticConfirmation}, assessment.Decision.Actions)
		assert.Nil(t, assessment.Decision.Subsidy)
	})

	t.Run("unknown patient", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		ref := new(MockReferenceRepository)
		service := newService(repo, ref, nil, fixedScorer{}, services.RiskServiceOptions{})

		repo.On("ListByPatient", mock.Anything, "P404").Return(nil, apperrors.NewNotFoundError("patient P404"))

		assessment, err := service.ScorePatient(context.Background(), "P404")

		assert.Nil(t, assessment)
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("unfitted model is reported, not defaulted", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		ref := new(MockReferenceRepository)
		service := newService(repo, ref, nil, &model.TrainedRiskModel{}, services.RiskServiceOptions{})

		repo.On("ListByPatient", mock.Anything, "P1").Return([]*entities.AppointmentRecord{
			appointment("a", "P1", at(1, 9), "card", entities.OutcomeScheduled),
		}, nil)
		ref.On("ReferenceData", mock.Anything).Return(testReference(), nil)

		assessment, err := service.ScorePatient(context.Background(), "P1")

		assert.Nil(t, assessment)
		assert.True(t, errors.Is(err, apperrors.ErrModelNotTrained))
	})
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantDays   int
		wantErr    bool
	}{
		{"single day", "2024-07-01", "2024-07-01", 1, false},
		{"week", "2024-07-01", "2024-07-07", 7, false},
		{"across month", "2024-06-29", "2024-07-02", 4, false},
		{"inverted", "2024-07-05", "2024-07-01", 0, true},
		{"malformed start", "2024/07/01", "2024-07-02", 0, true},
		{"malformed end", "2024-07-01", "tomorrow", 0, true},
		{"impossible date", "2024-02-30", "2024-03-01", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, err := services.ParseRange(tt.start, tt.end)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperrors.ErrInvalidRange))
				return
			}
			require.NoError(t, err)
			assert.Len(t, days, tt.wantDays)
		})
	}
}

func TestRiskService_ScoreRange(t *testing.T) {
	t.Run("rejects an inverted range before touching storage", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		ref := new(MockReferenceRepository)
		service := newService(repo, ref, nil, fixedScorer{}, services.RiskServiceOptions{Workers: 2})

		assessment, err := service.ScoreRange(context.Background(), "2024-07-05", "2024-07-01")

		assert.Nil(t, assessment)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidRange))
		repo.AssertNotCalled(t, "ListHistory", mock.Anything)
	})

	t.Run("aggregates days, specialties and top risks", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		ref := new(MockReferenceRepository)
		scorer := fixedScorer{probabilities: map[string]float64{"d1a": 0.7, "d1b": 0.2, "d2a": 0.4, "d2x": 0.99}}
		service := newService(repo, ref, nil, scorer, services.RiskServiceOptions{
			Workers:              2,
			TopDetails:           2,
			SpecialtyNoShowRates: map[string]float64{"Cardiologia": 0.3, "Ortopedia": 0.1},
		})

		repo.On("ListHistory", mock.Anything).Return([]*entities.AppointmentRecord{}, nil)
		ref.On("ReferenceData", mock.Anything).Return(testReference(), nil)
		repo.On("ScheduledFor", mock.Anything, at(1, 0)).Return([]*entities.AppointmentRecord{
			appointment("d1a", "P1", at(1, 9), "card", entities.OutcomeScheduled),
			appointment("d1b", "P2", at(1, 10), "orto", entities.OutcomeScheduled),
		}, nil)
		repo.On("ScheduledFor", mock.Anything, at(2, 0)).Return([]*entities.AppointmentRecord{
			appointment("d2a", "P3", at(2, 9), "card", entities.OutcomeScheduled),
			appointment("d2x", "P4", at(2, 11), "card", entities.OutcomeCancelled),
		}, nil)

		assessment, err := service.ScoreRange(context.Background(), "2024-07-01", "2024-07-02")

		require.NoError(t, err)
		assert.False(t, assessment.Incomplete)
		require.Len(t, assessment.Days, 2)
		assert.Equal(t, "2024-07-01", assessment.Days[0].Date)
		assert.Equal(t, 2, assessment.Days[0].Cohort.Total)
		assert.Equal(t, "2024-07-02", assessment.Days[1].Date)
		assert.Equal(t, 1, assessment.Days[1].Cohort.Total)

		agg := assessment.Aggregate
		assert.Equal(t, 3, agg.Total)
		assert.Equal(t, 1, agg.High)
		assert.Equal(t, 1, agg.Medium)
		assert.Equal(t, 1, agg.Low)
		require.NotNil(t, agg.MeanProbability)
		assert.InDelta(t, (0.7+0.2+0.4)/3, *agg.MeanProbability, 1e-9)
		assert.Equal(t, 2, agg.Groups["Cardiologia"].Total)
		assert.Equal(t, 1, agg.Groups["Ortopedia"].Total)

		require.Len(t, assessment.TopRisks, 2)
		assert.Equal(t, "d1a", assessment.TopRisks[0].AppointmentID)
		assert.Equal(t, entities.RiskTierHigh, assessment.TopRisks[0].Tier)
		assert.Equal(t, "d2a", assessment.TopRisks[1].AppointmentID)

		require.Len(t, assessment.Overbooking, 2)
		cardio := assessment.Overbooking[0]
		assert.Equal(t, "Cardiologia", cardio.Specialty)
		require.NotNil(t, cardio.ObservedNoShowRate)
		assert.InDelta(t, 0.3, *cardio.ObservedNoShowRate, 1e-12)
		assert.InDelta(t, 0.15, cardio.Ceiling, 1e-12)
		assert.InDelta(t, 0.15, cardio.Recommended, 1e-12)
		ortho := assessment.Overbooking[1]
		assert.InDelta(t, 0.05, ortho.Ceiling, 1e-12)
		assert.InDelta(t, 0.05, ortho.Recommended, 1e-12)
	})

	t.Run("empty range reports no data", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		ref := new(MockReferenceRepository)
		service := newService(repo, ref, nil, fixedScorer{}, services.RiskServiceOptions{Workers: 3, TopDetails: 20})

		repo.On("ListHistory", mock.Anything).Return([]*entities.AppointmentRecord{}, nil)
		ref.On("ReferenceData", mock.Anything).Return(testReference(), nil)
		repo.On("ScheduledFor", mock.Anything, mock.Anything).Return([]*entities.AppointmentRecord{}, nil)

		assessment, err := service.ScoreRange(context.Background(), "2024-07-01", "2024-07-03")

		require.NoError(t, err)
		assert.Len(t, assessment.Days, 3)
		assert.Zero(t, assessment.Aggregate.Total)
		assert.Nil(t, assessment.Aggregate.MeanProbability)
		assert.Empty(t, assessment.TopRisks)
	})

	t.Run("storage failure aborts the range", func(t *testing.T) {
		repo := new(MockAppointmentRepository)
		ref := new(MockReferenceRepository)
		service := newService(repo, ref, nil, fixedScorer{}, services.RiskServiceOptions{Workers: 2})

		repo.On("ListHistory", mock.Anything).Return([]*entities.AppointmentRecord{}, nil)
		ref.On("ReferenceData", mock.Anything).Return(testReference(), nil)
		repo.On("ScheduledFor", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

		assessment, err := service.ScoreRange(context.Background(), "2024-07-01", "2024-07-02")

		assert.Nil(t, assessment)
		assert.ErrorContains(t, err, "connection reset")
	})
}

func fixtureStore() (*dataset.Store, fixtures.Options) {
	opts := fixtures.DefaultOptions()
	opts.Patients = 60
	opts.ScheduledDays = 6
	opts.ScheduledPerDay = 10
	ds := fixtures.Generate(opts)
	return dataset.NewStore(ds.Appointments, ds.Reference(), ds.HouseholdIncome), opts
}

func TestRiskService_ScoreRange_IndependentOfWorkerCount(t *testing.T) {
	store, opts := fixtureStore()
	start := opts.ScheduledStart.Format(entities.DateLayout)
	end := opts.ScheduledStart.AddDate(0, 0, opts.ScheduledDays-1).Format(entities.DateLayout)

	var results []*entities.RangeAssessment
	for _, workers := range []int{1, 3, 8} {
		service := services.NewRiskService(store, store, store, model.RuleBasedScorer{},
			features.NewPipeline(geolocation.NewHaversineCalculator()),
			policy.NewEngine(config.DefaultPolicy()),
			services.RiskServiceOptions{Workers: workers, TopDetails: 20},
			nil,
		)
		assessment, err := service.ScoreRange(context.Background(), start, end)
		require.NoError(t, err)
		results = append(results, assessment)
	}

	assert.Equal(t, opts.ScheduledDays*opts.ScheduledPerDay, results[0].Aggregate.Total)
	for _, r := range results[1:] {
		assert.Equal(t, results[0].Days, r.Days)
		assert.Equal(t, results[0].Aggregate, r.Aggregate)
		assert.Equal(t, results[0].TopRisks, r.TopRisks)
		assert.Equal(t, results[0].Overbooking, r.Overbooking)
	}
}

// cancellingRepository cancels the scoring context on the n-th day lookup
type cancellingRepository struct {
	*dataset.Store
	mu       sync.Mutex
	calls    int
	cancelOn int
	cancel   context.CancelFunc
}

func (r *cancellingRepository) ScheduledFor(ctx context.Context, day time.Time) ([]*entities.AppointmentRecord, error) {
	r.mu.Lock()
	r.calls++
	if r.calls == r.cancelOn {
		r.cancel()
	}
	r.mu.Unlock()
	return r.Store.ScheduledFor(context.Background(), day)
}

func TestRiskService_ScoreRange_CancellationReturnsCompletedDays(t *testing.T) {
	store, opts := fixtureStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := &cancellingRepository{Store: store, cancelOn: 3, cancel: cancel}

	service := services.NewRiskService(repo, store, store, model.RuleBasedScorer{},
		features.NewPipeline(geolocation.NewHaversineCalculator()),
		policy.NewEngine(config.DefaultPolicy()),
		services.RiskServiceOptions{Workers: 1, TopDetails: 5},
		nil,
	)

	start := opts.ScheduledStart.Format(entities.DateLayout)
	end := opts.ScheduledStart.AddDate(0, 0, opts.ScheduledDays-1).Format(entities.DateLayout)
	assessment, err := service.ScoreRange(ctx, start, end)

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, assessment)
	assert.True(t, assessment.Incomplete)
	assert.True(t, services.IsIncomplete(assessment, err))
	require.Len(t, assessment.Days, 2)
	assert.Equal(t, start, assessment.Days[0].Date)
	assert.Equal(t, 2*opts.ScheduledPerDay, assessment.Aggregate.Total)
}
