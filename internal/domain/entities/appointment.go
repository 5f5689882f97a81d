package entities

import (
	"time"
)

// AppointmentOutcome is the normalized attendance status of an appointment
type AppointmentOutcome string

const (
	OutcomeAttended  AppointmentOutcome = "attended"
	OutcomeNoShow    AppointmentOutcome = "no_show"
	OutcomeCancelled AppointmentOutcome = "cancelled"
	OutcomeScheduled AppointmentOutcome = "scheduled"
	OutcomeOther     AppointmentOutcome = "other"
)

// IsObserved reports whether the outcome is a valid observation of attendance
// behavior. Only observed outcomes carry a training label.
func (o AppointmentOutcome) IsObserved() bool {
	return o == OutcomeAttended || o == OutcomeNoShow
}

// AppointmentRecord represents one scheduled encounter as ingested from the
// historical dataset or the schedule store. Records are never mutated after
// ingestion; derived values live in FeatureRow.
type AppointmentRecord struct {
	ID                   string             `json:"id" db:"id"`
	PatientID            string             `json:"patient_id" db:"patient_id"`
	RequestedAt          *time.Time         `json:"requested_at,omitempty" db:"requested_at"`
	ScheduledAt          time.Time          `json:"scheduled_at" db:"scheduled_at"`
	RequestingFacilityID string             `json:"requesting_facility_id" db:"requesting_facility_id"`
	ExecutingFacilityID  string             `json:"executing_facility_id" db:"executing_facility_id"`
	ProcedureCode        string             `json:"procedure_code" db:"procedure_code"`
	DiagnosisCode        string             `json:"diagnosis_code" db:"diagnosis_code"`
	PatientSex           string             `json:"patient_sex" db:"patient_sex"`
	PatientAgeBand       string             `json:"patient_age_band" db:"patient_age_band"`
	RiskFlag             string             `json:"risk_flag" db:"risk_flag"`
	Outcome              AppointmentOutcome `json:"outcome" db:"outcome"`
	RawStatus            string             `json:"raw_status,omitempty" db:"raw_status"`
}

// ScheduledDate returns the calendar day of the appointment in YYYY-MM-DD form
func (a *AppointmentRecord) ScheduledDate() string {
	return a.ScheduledAt.Format(DateLayout)
}

// DateLayout is the calendar-day format used across the scoring surface
const DateLayout = "2006-01-02"

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
