package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/pkg/config"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

// Store is an in-memory view of a loaded dataset. It serves appointments,
// reference data and patient profiles, and is safe for concurrent readers.
type Store struct {
	records   []*entities.AppointmentRecord
	byDay     map[string][]*entities.AppointmentRecord
	byPatient map[string][]*entities.AppointmentRecord
	reference *entities.ReferenceData
	incomes   map[string]float64
}

// NewStore indexes already-converted records
func NewStore(records []*entities.AppointmentRecord, reference *entities.ReferenceData, incomes map[string]float64) *Store {
	if reference == nil {
		reference = &entities.ReferenceData{}
	}
	s := &Store{
		records:   records,
		byDay:     make(map[string][]*entities.AppointmentRecord),
		byPatient: make(map[string][]*entities.AppointmentRecord),
		reference: reference,
		incomes:   incomes,
	}
	for _, r := range records {
		if r == nil {
			continue
		}
		day := r.ScheduledAt.UTC().Format(entities.DateLayout)
		s.byDay[day] = append(s.byDay[day], r)
		s.byPatient[r.PatientID] = append(s.byPatient[r.PatientID], r)
	}
	for _, list := range s.byDay {
		sortRecords(list)
	}
	for _, list := range s.byPatient {
		sortRecords(list)
	}
	return s
}

// Open loads every table the store needs. A missing appointments table is
// fatal; missing reference or profile tables degrade to empty lookups.
func Open(ctx context.Context, loader *Loader, cfg config.DatasetConfig) (*Store, error) {
	rows, err := LoadTable[AppointmentRow](ctx, loader, cfg.AppointmentsTable)
	if err != nil {
		return nil, err
	}

	mapper := NewStatusMapper(cfg)
	records := make([]*entities.AppointmentRecord, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		record, err := mapper.ToRecord(fmt.Sprintf("%s:%d", cfg.AppointmentsTable, i), row)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, record)
	}
	if skipped > 0 {
		log.Warn().
			Str("table", cfg.AppointmentsTable).
			Int("skipped", skipped).
			Msg("Skipped appointment rows without patient or scheduled time")
	}

	reference := &entities.ReferenceData{}

	snapshots, err := optionalTable[FacilitySnapshotRow](ctx, loader, cfg.FacilitiesTable)
	if err != nil {
		return nil, err
	}
	reference.Facilities = entities.LatestFacilityLocations(ToFacilityLocations(snapshots))

	procedures, err := optionalTable[ProcedureRow](ctx, loader, cfg.ProceduresTable)
	if err != nil {
		return nil, err
	}
	reference.Specialties = ToSpecialties(procedures)

	diagnoses, err := optionalTable[DiagnosisRow](ctx, loader, cfg.DiagnosesTable)
	if err != nil {
		return nil, err
	}
	reference.DiagnosisCategories = ToDiagnosisCategories(diagnoses)

	profiles, err := optionalTable[PatientProfileRow](ctx, loader, cfg.ProfilesTable)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("appointments", len(records)).
		Int("facilities", len(reference.Facilities)).
		Int("procedures", len(reference.Specialties)).
		Int("diagnoses", len(reference.DiagnosisCategories)).
		Int("profiles", len(profiles)).
		Msg("Dataset loaded")

	return NewStore(records, reference, ToHouseholdIncome(profiles)), nil
}

func optionalTable[T any](ctx context.Context, loader *Loader, table string) ([]T, error) {
	if table == "" {
		return nil, nil
	}
	rows, err := LoadTable[T](ctx, loader, table)
	if errors.Is(err, apperrors.ErrDatasetUnavailable) {
		log.Warn().Str("table", table).Msg("Dataset table unavailable, continuing without it")
		return nil, nil
	}
	return rows, err
}

// ScheduledFor retrieves every appointment whose scheduled day is day
func (s *Store) ScheduledFor(ctx context.Context, day time.Time) ([]*entities.AppointmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	list := s.byDay[day.Format(entities.DateLayout)]
	out := make([]*entities.AppointmentRecord, len(list))
	copy(out, list)
	return out, nil
}

// ListByPatient retrieves all appointments of a patient ordered by scheduled time
func (s *Store) ListByPatient(ctx context.Context, patientID string) ([]*entities.AppointmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	list, ok := s.byPatient[patientID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient %s has no appointments", patientID))
	}
	out := make([]*entities.AppointmentRecord, len(list))
	copy(out, list)
	return out, nil
}

// ListHistory retrieves every appointment used to derive patient histories
func (s *Store) ListHistory(ctx context.Context) ([]*entities.AppointmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*entities.AppointmentRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// ReferenceData returns facility locations and clinical catalogs
func (s *Store) ReferenceData(ctx context.Context) (*entities.ReferenceData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.reference, nil
}

// HouseholdIncome returns the monthly household income, or nil when unknown
func (s *Store) HouseholdIncome(ctx context.Context, patientID string) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	income, ok := s.incomes[patientID]
	if !ok {
		return nil, nil
	}
	return &income, nil
}

// Len returns the number of appointments held by the store
func (s *Store) Len() int {
	return len(s.records)
}

func sortRecords(list []*entities.AppointmentRecord) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].ScheduledAt.Equal(list[j].ScheduledAt) {
			return list[i].ScheduledAt.Before(list[j].ScheduledAt)
		}
		return list[i].ID < list[j].ID
	})
}
