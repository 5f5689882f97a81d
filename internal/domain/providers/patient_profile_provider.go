package providers

import (
	"context"
)

// PatientProfileProvider supplies socioeconomic attributes used by the intervention policy
type PatientProfileProvider interface {
	// HouseholdIncome returns the monthly household income, or nil when unknown
	HouseholdIncome(ctx context.Context, patientID string) (*float64, error)
}
