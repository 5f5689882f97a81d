package dataset

import (
	"sort"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/pkg/config"
)

// Snapshot is a complete dataset ready to be written to disk
type Snapshot struct {
	Appointments      []*entities.AppointmentRecord
	FacilityLocations []entities.FacilityLocation
	Specialties       map[string]string
	Diagnoses         map[string]string
	HouseholdIncome   map[string]float64
}

// Export writes snapshot as parquet tables. Appointments are split into
// partitions of at most partitionSize rows; the other tables are written as
// a single partition.
func Export(l *Loader, cfg config.DatasetConfig, snapshot Snapshot, partitionSize int) ([]string, error) {
	if partitionSize <= 0 {
		partitionSize = len(snapshot.Appointments)
	}

	mapper := NewStatusMapper(cfg)
	rows := make([]AppointmentRow, len(snapshot.Appointments))
	for i, r := range snapshot.Appointments {
		rows[i] = mapper.FromRecord(r)
	}

	if err := l.RemoveTable(cfg.AppointmentsTable); err != nil {
		return nil, err
	}

	var written []string
	for part, start := 0, 0; ; part++ {
		end := min(start+partitionSize, len(rows))
		path, err := WritePartition(l, cfg.AppointmentsTable, part, rows[start:end])
		if err != nil {
			return written, err
		}
		written = append(written, path)
		if end >= len(rows) {
			break
		}
		start = end
	}

	path, err := WriteTable(l, cfg.FacilitiesTable, FromFacilityLocations(snapshot.FacilityLocations))
	if err != nil {
		return written, err
	}
	written = append(written, path)

	procedures := make([]ProcedureRow, 0, len(snapshot.Specialties))
	for _, code := range sortedKeys(snapshot.Specialties) {
		procedures = append(procedures, ProcedureRow{ProcedureCode: ptr(code), Specialty: ptr(snapshot.Specialties[code])})
	}
	if path, err = WriteTable(l, cfg.ProceduresTable, procedures); err != nil {
		return written, err
	}
	written = append(written, path)

	diagnoses := make([]DiagnosisRow, 0, len(snapshot.Diagnoses))
	for _, code := range sortedKeys(snapshot.Diagnoses) {
		diagnoses = append(diagnoses, DiagnosisRow{DiagnosisCode: ptr(code), Category: ptr(snapshot.Diagnoses[code])})
	}
	if path, err = WriteTable(l, cfg.DiagnosesTable, diagnoses); err != nil {
		return written, err
	}
	written = append(written, path)

	if len(snapshot.HouseholdIncome) > 0 && cfg.ProfilesTable != "" {
		profiles := make([]PatientProfileRow, 0, len(snapshot.HouseholdIncome))
		for _, id := range sortedKeys(snapshot.HouseholdIncome) {
			profiles = append(profiles, PatientProfileRow{PatientID: ptr(id), HouseholdIncome: ptr(snapshot.HouseholdIncome[id])})
		}
		if path, err = WriteTable(l, cfg.ProfilesTable, profiles); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
