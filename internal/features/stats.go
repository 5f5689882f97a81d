package features

import (
	"github.com/zatekoja/noshowrisk/internal/domain/entities"
)

// NoShowRateBySpecialty returns the observed no-show rate of labeled rows per specialty
func NoShowRateBySpecialty(rows []entities.FeatureRow) map[string]float64 {
	type tally struct{ total, noShows int }
	tallies := make(map[string]*tally)

	for _, r := range rows {
		if !r.Labeled {
			continue
		}
		specialty := r.Categorical[entities.FeatureSpecialty]
		if specialty == "" {
			specialty = entities.UnknownCategory
		}
		t, ok := tallies[specialty]
		if !ok {
			t = &tally{}
			tallies[specialty] = t
		}
		t.total++
		t.noShows += r.Label
	}

	rates := make(map[string]float64, len(tallies))
	for specialty, t := range tallies {
		rates[specialty] = float64(t.noShows) / float64(t.total)
	}
	return rates
}

// Labels extracts the label column of rows
func Labels(rows []entities.FeatureRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = float64(r.Label)
	}
	return out
}
