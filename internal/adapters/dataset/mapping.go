package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/pkg/config"
)

// timestampLayouts are tried in order when parsing exported timestamps
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000000",
	entities.DateLayout,
}

// StatusMapper maps raw status strings onto appointment outcomes
type StatusMapper struct {
	outcomes map[string]entities.AppointmentOutcome
}

// NewStatusMapper builds a mapper from the configured status lists
func NewStatusMapper(cfg config.DatasetConfig) *StatusMapper {
	m := &StatusMapper{outcomes: make(map[string]entities.AppointmentOutcome)}
	add := func(statuses []string, outcome entities.AppointmentOutcome) {
		for _, s := range statuses {
			m.outcomes[normalizeStatus(s)] = outcome
		}
	}
	add(cfg.AttendedStatuses, entities.OutcomeAttended)
	add(cfg.NoShowStatuses, entities.OutcomeNoShow)
	add(cfg.CancelledStatuses, entities.OutcomeCancelled)
	add(cfg.ScheduledStatuses, entities.OutcomeScheduled)
	return m
}

// Outcome returns the outcome for a raw status; unknown statuses map to other
func (m *StatusMapper) Outcome(status string) entities.AppointmentOutcome {
	if o, ok := m.outcomes[normalizeStatus(status)]; ok {
		return o
	}
	return entities.OutcomeOther
}

// Status returns a raw status string for outcome, the inverse of Outcome
func (m *StatusMapper) Status(outcome entities.AppointmentOutcome) string {
	best := ""
	for raw, o := range m.outcomes {
		if o == outcome && (best == "" || raw < best) {
			best = raw
		}
	}
	return best
}

func normalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseTimestamp parses an exported timestamp. Values without a zone are UTC.
func ParseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

// ToRecord converts a raw row. Rows without a patient or a parsable
// scheduled time cannot be placed in a history and are rejected.
func (m *StatusMapper) ToRecord(id string, row AppointmentRow) (*entities.AppointmentRecord, error) {
	patientID := strings.TrimSpace(str(row.PatientID))
	if patientID == "" {
		return nil, fmt.Errorf("row %s has no patient", id)
	}
	scheduled, err := ParseTimestamp(str(row.ScheduledAt))
	if err != nil {
		return nil, fmt.Errorf("row %s: %w", id, err)
	}

	record := &entities.AppointmentRecord{
		ID:                   id,
		PatientID:            patientID,
		ScheduledAt:          scheduled,
		RequestingFacilityID: strings.TrimSpace(str(row.RequestingFacilityID)),
		ExecutingFacilityID:  strings.TrimSpace(str(row.ExecutingFacilityID)),
		ProcedureCode:        strings.TrimSpace(str(row.ProcedureCode)),
		DiagnosisCode:        strings.TrimSpace(str(row.DiagnosisCode)),
		PatientSex:           strings.TrimSpace(str(row.PatientSex)),
		PatientAgeBand:       strings.TrimSpace(str(row.PatientAgeBand)),
		RiskFlag:             strings.TrimSpace(str(row.RiskFlag)),
		RawStatus:            str(row.Status),
		Outcome:              m.Outcome(str(row.Status)),
	}
	if requested, err := ParseTimestamp(str(row.RequestedAt)); err == nil {
		record.RequestedAt = &requested
	}
	return record, nil
}

// FromRecord converts a record back into its raw row form
func (m *StatusMapper) FromRecord(r *entities.AppointmentRecord) AppointmentRow {
	row := AppointmentRow{
		PatientID:            ptr(r.PatientID),
		ScheduledAt:          ptr(r.ScheduledAt.UTC().Format("2006-01-02 15:04:05")),
		RequestingFacilityID: ptr(r.RequestingFacilityID),
		ExecutingFacilityID:  ptr(r.ExecutingFacilityID),
		ProcedureCode:        ptr(r.ProcedureCode),
		DiagnosisCode:        ptr(r.DiagnosisCode),
		PatientSex:           ptr(r.PatientSex),
		PatientAgeBand:       ptr(r.PatientAgeBand),
		RiskFlag:             ptr(r.RiskFlag),
	}
	if r.RequestedAt != nil {
		row.RequestedAt = ptr(r.RequestedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	status := r.RawStatus
	if status == "" {
		status = m.Status(r.Outcome)
	}
	if status != "" {
		row.Status = ptr(status)
	}
	return row
}

// ToFacilityLocations converts snapshot rows, skipping rows without an id
// or coordinates.
func ToFacilityLocations(rows []FacilitySnapshotRow) []entities.FacilityLocation {
	out := make([]entities.FacilityLocation, 0, len(rows))
	for _, r := range rows {
		id := strings.TrimSpace(str(r.FacilityID))
		if id == "" || r.Latitude == nil || r.Longitude == nil {
			continue
		}
		loc := entities.FacilityLocation{
			FacilityID:  id,
			Coordinates: entities.Coordinates{Latitude: *r.Latitude, Longitude: *r.Longitude},
		}
		if r.Year != nil {
			loc.Year = int(*r.Year)
		}
		if r.Month != nil {
			loc.Month = int(*r.Month)
		}
		out = append(out, loc)
	}
	return out
}

// FromFacilityLocations converts locations into snapshot rows
func FromFacilityLocations(locations []entities.FacilityLocation) []FacilitySnapshotRow {
	out := make([]FacilitySnapshotRow, len(locations))
	for i, l := range locations {
		out[i] = FacilitySnapshotRow{
			FacilityID: ptr(l.FacilityID),
			Latitude:   ptr(l.Coordinates.Latitude),
			Longitude:  ptr(l.Coordinates.Longitude),
			Year:       ptr(int64(l.Year)),
			Month:      ptr(int64(l.Month)),
		}
	}
	return out
}

// ToSpecialties builds the procedure code to specialty catalog
func ToSpecialties(rows []ProcedureRow) map[string]string {
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		code, specialty := strings.TrimSpace(str(r.ProcedureCode)), strings.TrimSpace(str(r.Specialty))
		if code != "" && specialty != "" {
			out[code] = specialty
		}
	}
	return out
}

// ToDiagnosisCategories builds the diagnosis code to category catalog
func ToDiagnosisCategories(rows []DiagnosisRow) map[string]string {
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		code, category := strings.TrimSpace(str(r.DiagnosisCode)), strings.TrimSpace(str(r.Category))
		if code != "" && category != "" {
			out[code] = category
		}
	}
	return out
}

// ToHouseholdIncome builds the patient to household income map
func ToHouseholdIncome(rows []PatientProfileRow) map[string]float64 {
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		id := strings.TrimSpace(str(r.PatientID))
		if id != "" && r.HouseholdIncome != nil {
			out[id] = *r.HouseholdIncome
		}
	}
	return out
}
