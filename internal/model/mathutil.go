package model

import "math"

const probabilityEpsilon = 1e-15

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func clampProbability(p float64) float64 {
	return math.Min(math.Max(p, probabilityEpsilon), 1-probabilityEpsilon)
}

func logLossFromLogits(logits, y []float64) float64 {
	if len(logits) == 0 {
		return 0
	}
	sum := 0.0
	for i, z := range logits {
		p := clampProbability(sigmoid(z))
		sum -= y[i]*math.Log(p) + (1-y[i])*math.Log(1-p)
	}
	return sum / float64(len(logits))
}
