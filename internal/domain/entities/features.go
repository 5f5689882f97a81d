package entities

import (
	"math"
	"time"
)

// Feature column names
const (
	FeatureLeadTimeDays          = "lead_time_days"
	FeatureDayOfWeek             = "day_of_week"
	FeatureHourOfDay             = "hour_of_day"
	FeatureMonth                 = "month"
	FeaturePriorAppointmentCount = "prior_appointment_count"
	FeaturePriorNoShowRate       = "prior_no_show_rate"
	FeatureDistanceKm            = "distance_km"

	FeaturePatientSex        = "patient_sex"
	FeaturePatientAgeBand    = "patient_age_band"
	FeatureRiskFlag          = "risk_flag"
	FeatureSpecialty         = "specialty"
	FeatureDiagnosisCategory = "diagnosis_category"
)

// UnknownCategory is assigned when a clinical code has no catalog match
const UnknownCategory = "unknown"

// NumericFeatures lists the numeric columns in model order
func NumericFeatures() []string {
	return []string{
		FeatureLeadTimeDays,
		FeatureDayOfWeek,
		FeatureHourOfDay,
		FeatureMonth,
		FeaturePriorAppointmentCount,
		FeaturePriorNoShowRate,
		FeatureDistanceKm,
	}
}

// CategoricalFeatures lists the categorical columns in model order
func CategoricalFeatures() []string {
	return []string{
		FeaturePatientSex,
		FeaturePatientAgeBand,
		FeatureRiskFlag,
		FeatureSpecialty,
		FeatureDiagnosisCategory,
	}
}

// Missing returns the numeric missing-value marker
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is the missing-value marker
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// PatientHistory is the causal attendance history of a patient as of one appointment
type PatientHistory struct {
	PriorAppointmentCount int     `json:"prior_appointment_count"`
	PriorNoShowCount      int     `json:"prior_no_show_count"`
	PriorNoShowRate       float64 `json:"prior_no_show_rate"`
}

// NewPatientHistory builds a history, defining the rate as 0 when there are no prior appointments
func NewPatientHistory(appointments, noShows int) PatientHistory {
	h := PatientHistory{PriorAppointmentCount: appointments, PriorNoShowCount: noShows}
	if appointments > 0 {
		h.PriorNoShowRate = float64(noShows) / float64(appointments)
	}
	return h
}

// FeatureRow is the model input derived from one appointment.
// A numeric value of Missing() is imputed; an absent key is a schema error.
// An empty categorical value is imputed; an absent key is a schema error.
type FeatureRow struct {
	AppointmentID string             `json:"appointment_id"`
	PatientID     string             `json:"patient_id"`
	ScheduledAt   time.Time          `json:"scheduled_at"`
	Numeric       map[string]float64 `json:"numeric"`
	Categorical   map[string]string  `json:"categorical"`
	Label         int                `json:"label"`
	Labeled       bool               `json:"labeled"`
}
