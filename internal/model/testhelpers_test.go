package model

import (
	"github.com/zatekoja/noshowrisk/internal/adapters/providers/geolocation"
	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/internal/features"
	"github.com/zatekoja/noshowrisk/internal/fixtures"
)

func fixtureRows(patients int) []entities.FeatureRow {
	opts := fixtures.DefaultOptions()
	opts.Patients = patients
	ds := fixtures.Generate(opts)
	return features.NewPipeline(geolocation.NewHaversineCalculator()).BuildTraining(ds.Appointments, ds.Reference())
}

func testOptions() TrainingOptions {
	return TrainingOptions{
		GBM: GBMOptions{
			Trees:               60,
			LearningRate:        0.1,
			MaxDepth:            3,
			MinSamplesLeaf:      10,
			L2:                  1,
			Bins:                16,
			EarlyStoppingRounds: 10,
		},
		Logistic:        LogisticOptions{Iterations: 200, LearningRate: 0.2, L2: 1},
		ValidationRatio: 0.15,
		Seed:            42,
	}
}

func completeRow() entities.FeatureRow {
	return entities.FeatureRow{
		AppointmentID: "A1",
		PatientID:     "P1",
		Numeric: map[string]float64{
			entities.FeatureLeadTimeDays:          12,
			entities.FeatureDayOfWeek:             2,
			entities.FeatureHourOfDay:             9,
			entities.FeatureMonth:                 5,
			entities.FeaturePriorAppointmentCount: 3,
			entities.FeaturePriorNoShowRate:       0.33,
			entities.FeatureDistanceKm:            4.2,
		},
		Categorical: map[string]string{
			entities.FeaturePatientSex:        "F",
			entities.FeaturePatientAgeBand:    "30-39",
			entities.FeatureRiskFlag:          "VERDE",
			entities.FeatureSpecialty:         "Cardiologia",
			entities.FeatureDiagnosisCategory: "Dorsalgia",
		},
	}
}
