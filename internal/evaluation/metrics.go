package evaluation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

const probabilityEpsilon = 1e-15

// ROCAUC computes the area under the ROC curve of scores against binary labels.
// Tied scores earn half credit. Returns NaN when either class is absent.
func ROCAUC(labels, scores []float64) float64 {
	if len(labels) == 0 || len(labels) != len(scores) {
		return math.NaN()
	}

	type pair struct {
		score float64
		pos   bool
	}
	pairs := make([]pair, len(scores))
	positives := 0
	for i, s := range scores {
		pairs[i] = pair{score: s, pos: labels[i] == 1}
		if pairs[i].pos {
			positives++
		}
	}
	if positives == 0 || positives == len(labels) {
		return math.NaN()
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })
	y := make([]float64, len(pairs))
	classes := make([]bool, len(pairs))
	for i, p := range pairs {
		y[i] = p.score
		classes[i] = p.pos
	}

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// LogLoss computes mean binary cross-entropy, clipping probabilities to
// [1e-15, 1-1e-15]. Returns 0 for empty input.
func LogLoss(labels, probabilities []float64) float64 {
	if len(labels) == 0 {
		return 0.0
	}

	sum := 0.0
	for i, p := range probabilities {
		p = math.Min(math.Max(p, probabilityEpsilon), 1-probabilityEpsilon)
		sum -= labels[i]*math.Log(p) + (1-labels[i])*math.Log(1-p)
	}
	return sum / float64(len(labels))
}
