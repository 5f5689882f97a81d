package features

import (
	"math"
	"sort"
	"strings"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/internal/domain/providers"
)

// Pipeline derives model feature rows from appointment records
type Pipeline struct {
	distance providers.DistanceCalculator
}

// NewPipeline creates a new feature pipeline
func NewPipeline(distance providers.DistanceCalculator) *Pipeline {
	return &Pipeline{distance: distance}
}

// BuildTraining derives labeled rows from historical records. Records without
// an observed outcome are dropped. Rows are ordered by (patient, scheduled time).
func (p *Pipeline) BuildTraining(records []*entities.AppointmentRecord, ref *entities.ReferenceData) []entities.FeatureRow {
	eligible := make([]*entities.AppointmentRecord, 0, len(records))
	for _, r := range records {
		if r != nil && r.Outcome.IsObserved() {
			eligible = append(eligible, r)
		}
	}
	sortByPatientAndTime(eligible)

	history := NewHistoryIndex(eligible)
	rows := make([]entities.FeatureRow, len(eligible))
	for i, r := range eligible {
		rows[i] = p.row(r, history, ref)
		rows[i].Labeled = true
		if r.Outcome == entities.OutcomeNoShow {
			rows[i].Label = 1
		}
	}
	return rows
}

// BuildForScoring derives unlabeled rows for targets, with patient history
// taken from the observed records in history. Row order follows targets.
func (p *Pipeline) BuildForScoring(history, targets []*entities.AppointmentRecord, ref *entities.ReferenceData) []entities.FeatureRow {
	return p.BuildWithIndex(NewHistoryIndex(history), targets, ref)
}

// BuildWithIndex is BuildForScoring over a prebuilt history index, for
// callers scoring many batches against the same history.
func (p *Pipeline) BuildWithIndex(idx *HistoryIndex, targets []*entities.AppointmentRecord, ref *entities.ReferenceData) []entities.FeatureRow {
	rows := make([]entities.FeatureRow, 0, len(targets))
	for _, r := range targets {
		if r == nil {
			continue
		}
		rows = append(rows, p.row(r, idx, ref))
	}
	return rows
}

func (p *Pipeline) row(r *entities.AppointmentRecord, history *HistoryIndex, ref *entities.ReferenceData) entities.FeatureRow {
	h := history.At(r.PatientID, r.ScheduledAt)

	var specialties, diagnoses map[string]string
	if ref != nil {
		specialties, diagnoses = ref.Specialties, ref.DiagnosisCategories
	}

	numeric := map[string]float64{
		entities.FeatureLeadTimeDays:          leadTimeDays(r),
		entities.FeatureDayOfWeek:             float64((int(r.ScheduledAt.Weekday()) + 6) % 7),
		entities.FeatureHourOfDay:             float64(r.ScheduledAt.Hour()),
		entities.FeatureMonth:                 float64(r.ScheduledAt.Month()),
		entities.FeaturePriorAppointmentCount: float64(h.PriorAppointmentCount),
		entities.FeaturePriorNoShowRate:       h.PriorNoShowRate,
		entities.FeatureDistanceKm:            p.distanceKm(r, ref),
	}

	categorical := map[string]string{
		entities.FeaturePatientSex:        strings.TrimSpace(r.PatientSex),
		entities.FeaturePatientAgeBand:    strings.TrimSpace(r.PatientAgeBand),
		entities.FeatureRiskFlag:          strings.TrimSpace(r.RiskFlag),
		entities.FeatureSpecialty:         lookup(specialties, r.ProcedureCode),
		entities.FeatureDiagnosisCategory: lookup(diagnoses, r.DiagnosisCode),
	}

	return entities.FeatureRow{
		AppointmentID: r.ID,
		PatientID:     r.PatientID,
		ScheduledAt:   r.ScheduledAt,
		Numeric:       numeric,
		Categorical:   categorical,
	}
}

// DistanceKm returns the requesting-to-executing facility distance for r,
// or the missing marker when either location is unknown.
func (p *Pipeline) DistanceKm(r *entities.AppointmentRecord, ref *entities.ReferenceData) float64 {
	return p.distanceKm(r, ref)
}

func (p *Pipeline) distanceKm(r *entities.AppointmentRecord, ref *entities.ReferenceData) float64 {
	if ref == nil {
		return entities.Missing()
	}
	from, ok := ref.Facilities[r.RequestingFacilityID]
	if !ok {
		return entities.Missing()
	}
	to, ok := ref.Facilities[r.ExecutingFacilityID]
	if !ok {
		return entities.Missing()
	}
	return p.distance.DistanceKm(from, to)
}

func leadTimeDays(r *entities.AppointmentRecord) float64 {
	if r.RequestedAt == nil {
		return entities.Missing()
	}
	requested := entities.StartOfDay(r.RequestedAt.In(r.ScheduledAt.Location()))
	scheduled := entities.StartOfDay(r.ScheduledAt)
	days := math.Round(scheduled.Sub(requested).Hours() / 24)
	return math.Max(0, days)
}

func lookup(catalog map[string]string, code string) string {
	if v, ok := catalog[strings.TrimSpace(code)]; ok && v != "" {
		return v
	}
	return entities.UnknownCategory
}

func sortByPatientAndTime(records []*entities.AppointmentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].PatientID != records[j].PatientID {
			return records[i].PatientID < records[j].PatientID
		}
		return records[i].ScheduledAt.Before(records[j].ScheduledAt)
	})
}
