package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/internal/domain/repositories"
	"github.com/zatekoja/noshowrisk/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

const appointmentsTable = "appointments"

var appointmentColumns = []interface{}{
	"id", "patient_id", "requested_at", "scheduled_at",
	"requesting_facility_id", "executing_facility_id",
	"procedure_code", "diagnosis_code",
	"patient_sex", "patient_age_band", "risk_flag", "outcome",
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ScheduledFor retrieves every appointment whose scheduled day is day
func (a *AppointmentAdapter) ScheduledFor(ctx context.Context, day time.Time) ([]*entities.AppointmentRecord, error) {
	start := entities.StartOfDay(day)
	query, args, err := a.db.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(
			goqu.C("scheduled_at").Gte(start),
			goqu.C("scheduled_at").Lt(start.AddDate(0, 0, 1)),
		).
		Order(goqu.I("scheduled_at").Asc(), goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.query(ctx, query, args)
}

// ListByPatient retrieves all appointments of a patient ordered by scheduled time
func (a *AppointmentAdapter) ListByPatient(ctx context.Context, patientID string) ([]*entities.AppointmentRecord, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("scheduled_at").Asc(), goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	records, err := a.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient %s has no appointments", patientID))
	}
	return records, nil
}

// ListHistory retrieves every appointment with an observed outcome
func (a *AppointmentAdapter) ListHistory(ctx context.Context) ([]*entities.AppointmentRecord, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From(appointmentsTable).
		Where(goqu.C("outcome").In(string(entities.OutcomeAttended), string(entities.OutcomeNoShow))).
		Order(goqu.I("patient_id").Asc(), goqu.I("scheduled_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.query(ctx, query, args)
}

func (a *AppointmentAdapter) query(ctx context.Context, query string, args []interface{}) ([]*entities.AppointmentRecord, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query appointments", err)
	}
	defer rows.Close()

	var records []*entities.AppointmentRecord
	for rows.Next() {
		record := &entities.AppointmentRecord{}
		var requestedAt sql.NullTime
		var requesting, executing, procedure, diagnosis, sex, ageBand, riskFlag, outcome sql.NullString

		err := rows.Scan(
			&record.ID,
			&record.PatientID,
			&requestedAt,
			&record.ScheduledAt,
			&requesting,
			&executing,
			&procedure,
			&diagnosis,
			&sex,
			&ageBand,
			&riskFlag,
			&outcome,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}

		if requestedAt.Valid {
			t := requestedAt.Time
			record.RequestedAt = &t
		}
		record.RequestingFacilityID = requesting.String
		record.ExecutingFacilityID = executing.String
		record.ProcedureCode = procedure.String
		record.DiagnosisCode = diagnosis.String
		record.PatientSex = sex.String
		record.PatientAgeBand = ageBand.String
		record.RiskFlag = riskFlag.String
		record.Outcome = entities.AppointmentOutcome(outcome.String)
		if record.Outcome == "" {
			record.Outcome = entities.OutcomeOther
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating appointments", err)
	}

	return records, nil
}
