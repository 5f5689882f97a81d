package services_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
)

// Mocks

type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) ScheduledFor(ctx context.Context, day time.Time) ([]*entities.AppointmentRecord, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AppointmentRecord), args.Error(1)
}

func (m *MockAppointmentRepository) ListByPatient(ctx context.Context, patientID string) ([]*entities.AppointmentRecord, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AppointmentRecord), args.Error(1)
}

func (m *MockAppointmentRepository) ListHistory(ctx context.Context) ([]*entities.AppointmentRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AppointmentRecord), args.Error(1)
}

type MockReferenceRepository struct {
	mock.Mock
}

func (m *MockReferenceRepository) ReferenceData(ctx context.Context) (*entities.ReferenceData, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReferenceData), args.Error(1)
}

type MockPatientProfileProvider struct {
	mock.Mock
}

func (m *MockPatientProfileProvider) HouseholdIncome(ctx context.Context, patientID string) (*float64, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*float64), args.Error(1)
}

type MockCacheProvider struct {
	mock.Mock
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	args := m.Called(ctx, key, value, expirationSeconds)
	return args.Error(0)
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// fixedScorer returns a preset probability per appointment
type fixedScorer struct {
	probabilities map[string]float64
}

func (s fixedScorer) Version() string { return "fixed-v1" }

func (s fixedScorer) Score(row entities.FeatureRow) (entities.RiskScore, error) {
	return entities.RiskScore{
		Probability: s.probabilities[row.AppointmentID],
		Factors:     []entities.ContributingFactor{{Feature: entities.FeatureLeadTimeDays, Contribution: 0.1}},
	}, nil
}

func (s fixedScorer) ScoreBatch(rows []entities.FeatureRow) ([]entities.RiskScore, error) {
	out := make([]entities.RiskScore, len(rows))
	for i, r := range rows {
		out[i], _ = s.Score(r)
	}
	return out, nil
}
