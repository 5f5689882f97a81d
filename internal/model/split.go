package model

import (
	"math"
	"math/rand"
	"sort"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
)

// StratifiedSplit partitions rows into train and test sets, holding out
// testRatio of each label class. The split is reproducible for a given seed
// and both sets keep the input order.
func StratifiedSplit(rows []entities.FeatureRow, testRatio float64, seed int64) ([]entities.FeatureRow, []entities.FeatureRow) {
	rng := rand.New(rand.NewSource(seed))

	classSamples := make(map[int][]int)
	for i, r := range rows {
		classSamples[r.Label] = append(classSamples[r.Label], i)
	}

	labels := make([]int, 0, len(classSamples))
	for label := range classSamples {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	held := make(map[int]bool)
	for _, label := range labels {
		samples := classSamples[label]
		rng.Shuffle(len(samples), func(i, j int) {
			samples[i], samples[j] = samples[j], samples[i]
		})

		nTest := int(math.Round(float64(len(samples)) * testRatio))
		if testRatio > 0 && len(samples) >= 2 {
			// keep at least one sample of the class on each side
			nTest = max(1, min(nTest, len(samples)-1))
		}
		nTest = max(0, min(nTest, len(samples)))

		for _, idx := range samples[:nTest] {
			held[idx] = true
		}
	}

	train := make([]entities.FeatureRow, 0, len(rows)-len(held))
	test := make([]entities.FeatureRow, 0, len(held))
	for i, r := range rows {
		if held[i] {
			test = append(test, r)
		} else {
			train = append(train, r)
		}
	}
	return train, test
}
