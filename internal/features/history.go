package features

import (
	"sort"
	"time"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
)

type visit struct {
	at     time.Time
	noShow bool
}

// HistoryIndex answers causal history queries over observed appointments.
// Only attended and no-show records are indexed.
type HistoryIndex struct {
	visits map[string][]visit
	// noShows[p][i] is the number of no-shows among visits[p][:i].
	noShows map[string][]int
}

// NewHistoryIndex builds the index from an unordered set of records
func NewHistoryIndex(records []*entities.AppointmentRecord) *HistoryIndex {
	idx := &HistoryIndex{
		visits:  make(map[string][]visit),
		noShows: make(map[string][]int),
	}

	for _, r := range records {
		if r == nil || !r.Outcome.IsObserved() {
			continue
		}
		idx.visits[r.PatientID] = append(idx.visits[r.PatientID], visit{
			at:     r.ScheduledAt,
			noShow: r.Outcome == entities.OutcomeNoShow,
		})
	}

	for patient, vs := range idx.visits {
		sort.SliceStable(vs, func(i, j int) bool { return vs[i].at.Before(vs[j].at) })
		prefix := make([]int, len(vs)+1)
		for i, v := range vs {
			prefix[i+1] = prefix[i]
			if v.noShow {
				prefix[i+1]++
			}
		}
		idx.noShows[patient] = prefix
	}

	return idx
}

// At returns the patient's history from visits strictly before t.
// Visits sharing the same timestamp never see each other.
func (h *HistoryIndex) At(patientID string, t time.Time) entities.PatientHistory {
	vs := h.visits[patientID]
	n := sort.Search(len(vs), func(i int) bool { return !vs[i].at.Before(t) })
	if n == 0 {
		return entities.NewPatientHistory(0, 0)
	}
	return entities.NewPatientHistory(n, h.noShows[patientID][n])
}
