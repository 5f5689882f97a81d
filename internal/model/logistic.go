package model

import (
	"gonum.org/v1/gonum/floats"
)

// LogisticOptions configures the L2-regularized logistic baseline
type LogisticOptions struct {
	Iterations   int
	LearningRate float64
	L2           float64
}

func (o LogisticOptions) withDefaults() LogisticOptions {
	if o.Iterations <= 0 {
		o.Iterations = 300
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.1
	}
	if o.L2 < 0 {
		o.L2 = 0
	}
	return o
}

// LogisticRegression is a linear model over preprocessed features
type LogisticRegression struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

func (l *LogisticRegression) contributions(x []float64) (float64, []float64) {
	contrib := make([]float64, len(x))
	floats.MulTo(contrib, l.Weights, x)
	return l.Intercept, contrib
}

func (l *LogisticRegression) logit(x []float64) float64 {
	return floats.Dot(l.Weights, x) + l.Intercept
}

// fitLogistic minimizes mean log-loss plus (L2 / 2n)·‖w‖² by full-batch gradient descent.
// The intercept is not penalized.
func fitLogistic(X [][]float64, y []float64, opts LogisticOptions) *LogisticRegression {
	opts = opts.withDefaults()
	n := len(X)
	width := 0
	if n > 0 {
		width = len(X[0])
	}

	model := &LogisticRegression{
		Weights:   make([]float64, width),
		Intercept: baseLogit(y),
	}
	if n == 0 {
		return model
	}

	gradW := make([]float64, width)
	scale := 1 / float64(n)
	for it := 0; it < opts.Iterations; it++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0
		for i, x := range X {
			residual := sigmoid(model.logit(x)) - y[i]
			floats.AddScaled(gradW, residual, x)
			gradB += residual
		}
		floats.Scale(scale, gradW)
		floats.AddScaled(gradW, opts.L2*scale, model.Weights)

		floats.AddScaled(model.Weights, -opts.LearningRate, gradW)
		model.Intercept -= opts.LearningRate * gradB * scale
	}
	return model
}
