package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations
type AppointmentRepository interface {
	// ScheduledFor retrieves every appointment whose scheduled day is day
	ScheduledFor(ctx context.Context, day time.Time) ([]*entities.AppointmentRecord, error)

	// ListByPatient retrieves all appointments of a patient ordered by scheduled time
	ListByPatient(ctx context.Context, patientID string) ([]*entities.AppointmentRecord, error)

	// ListHistory retrieves every appointment used to derive patient histories
	ListHistory(ctx context.Context) ([]*entities.AppointmentRecord, error)
}

// ReferenceRepository defines the interface for the lookup tables joined during feature engineering
type ReferenceRepository interface {
	// ReferenceData returns facility locations and clinical catalogs
	ReferenceData(ctx context.Context) (*entities.ReferenceData, error)
}
