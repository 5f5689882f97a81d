package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/pkg/config"
)

func testDatasetConfig() config.DatasetConfig {
	return config.DatasetConfig{
		AppointmentsTable: "marcacao",
		FacilitiesTable:   "unidade_historico",
		ProceduresTable:   "procedimento",
		DiagnosesTable:    "cids",
		ProfilesTable:     "paciente_perfil",
		AttendedStatuses:  []string{"AGENDAMENTO / CONFIRMADO / EXECUTANTE"},
		NoShowStatuses:    []string{"AGENDAMENTO / FALTA / EXECUTANTE"},
		CancelledStatuses: []string{"AGENDAMENTO / CANCELADO / EXECUTANTE"},
		ScheduledStatuses: []string{"AGENDAMENTO / PENDENTE / EXECUTANTE"},
	}
}

func TestStatusMapper_Outcome(t *testing.T) {
	m := NewStatusMapper(testDatasetConfig())

	tests := []struct {
		status string
		want   entities.AppointmentOutcome
	}{
		{"AGENDAMENTO / FALTA / EXECUTANTE", entities.OutcomeNoShow},
		{"  agendamento / confirmado / executante ", entities.OutcomeAttended},
		{"AGENDAMENTO / CANCELADO / EXECUTANTE", entities.OutcomeCancelled},
		{"AGENDAMENTO / PENDENTE / EXECUTANTE", entities.OutcomeScheduled},
		{"SOLICITACAO / DEVOLVIDA", entities.OutcomeOther},
		{"", entities.OutcomeOther},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Outcome(tt.status))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

	for _, v := range []string{"2024-03-05 14:30:00", "2024-03-05T14:30:00Z", "2024-03-05T14:30:00", "2024-03-05T11:30:00-03:00"} {
		got, err := ParseTimestamp(v)
		require.NoError(t, err, v)
		assert.True(t, want.Equal(got), v)
	}

	day, err := ParseTimestamp("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseTimestamp("05/03/2024")
	assert.Error(t, err)
	_, err = ParseTimestamp(" ")
	assert.Error(t, err)
}

func TestToRecord(t *testing.T) {
	m := NewStatusMapper(testDatasetConfig())

	record, err := m.ToRecord("marcacao:0", AppointmentRow{
		PatientID:           ptr(" 123 "),
		RequestedAt:         ptr("2024-02-20 09:00:00"),
		ScheduledAt:         ptr("2024-03-05 14:30:00"),
		ExecutingFacilityID: ptr("2270001"),
		ProcedureCode:       ptr("0701010010"),
		Status:              ptr("AGENDAMENTO / FALTA / EXECUTANTE"),
	})
	require.NoError(t, err)
	assert.Equal(t, "123", record.PatientID)
	assert.Equal(t, entities.OutcomeNoShow, record.Outcome)
	require.NotNil(t, record.RequestedAt)
	assert.Equal(t, "2024-03-05", record.ScheduledDate())
	assert.Empty(t, record.RequestingFacilityID)

	noRequest, err := m.ToRecord("marcacao:1", AppointmentRow{
		PatientID:   ptr("123"),
		RequestedAt: ptr("not a date"),
		ScheduledAt: ptr("2024-03-05"),
	})
	require.NoError(t, err)
	assert.Nil(t, noRequest.RequestedAt)
	assert.Equal(t, entities.OutcomeOther, noRequest.Outcome)

	_, err = m.ToRecord("marcacao:2", AppointmentRow{PatientID: ptr("123")})
	assert.Error(t, err)
	_, err = m.ToRecord("marcacao:3", AppointmentRow{ScheduledAt: ptr("2024-03-05")})
	assert.Error(t, err)
}

func TestFromRecord_RoundTripsThroughToRecord(t *testing.T) {
	m := NewStatusMapper(testDatasetConfig())
	requested := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	in := &entities.AppointmentRecord{
		ID:             "x",
		PatientID:      "P1",
		RequestedAt:    &requested,
		ScheduledAt:    time.Date(2024, 2, 10, 9, 15, 0, 0, time.UTC),
		PatientAgeBand: "30-39",
		Outcome:        entities.OutcomeAttended,
	}

	row := m.FromRecord(in)
	assert.Equal(t, "AGENDAMENTO / CONFIRMADO / EXECUTANTE", str(row.Status))

	out, err := m.ToRecord("x", row)
	require.NoError(t, err)
	assert.Equal(t, in.ScheduledAt, out.ScheduledAt)
	assert.Equal(t, requested, *out.RequestedAt)
	assert.Equal(t, entities.OutcomeAttended, out.Outcome)
	assert.Equal(t, "30-39", out.PatientAgeBand)
}

func TestToFacilityLocations_SkipsIncompleteRows(t *testing.T) {
	rows := []FacilitySnapshotRow{
		{FacilityID: ptr("1"), Latitude: ptr(-22.9), Longitude: ptr(-43.1), Year: ptr(int64(2024)), Month: ptr(int64(2))},
		{FacilityID: ptr("2"), Latitude: ptr(-22.9)},
		{Latitude: ptr(-22.9), Longitude: ptr(-43.1)},
	}

	locations := ToFacilityLocations(rows)
	require.Len(t, locations, 1)
	assert.Equal(t, "1", locations[0].FacilityID)
	assert.Equal(t, 2024, locations[0].Year)
	assert.Equal(t, 2, locations[0].Month)
}

func TestCatalogs_SkipBlankEntries(t *testing.T) {
	specialties := ToSpecialties([]ProcedureRow{
		{ProcedureCode: ptr("A"), Specialty: ptr("Cardiologia")},
		{ProcedureCode: ptr("B"), Specialty: ptr(" ")},
		{Specialty: ptr("Ortopedia")},
	})
	assert.Equal(t, map[string]string{"A": "Cardiologia"}, specialties)

	incomes := ToHouseholdIncome([]PatientProfileRow{
		{PatientID: ptr("P1"), HouseholdIncome: ptr(1800.0)},
		{PatientID: ptr("P2")},
	})
	assert.Equal(t, map[string]float64{"P1": 1800}, incomes)
}
