package evaluation

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/internal/domain/providers"
	"github.com/zatekoja/noshowrisk/internal/features"
)

// Candidate is a fitted scorer under evaluation.
type Candidate struct {
	Name   string
	Kind   string
	Scorer providers.RiskScorer
}

// Runner evaluates candidates on a held-out split.
type Runner struct {
	guardrails *Guardrails
}

// NewRunner creates a runner that gates the production candidate with guardrails
func NewRunner(guardrails *Guardrails) *Runner {
	return &Runner{guardrails: guardrails}
}

// Run scores the test rows with every candidate. The first candidate is the
// production model; the rest are baselines it is gated against.
func (r *Runner) Run(candidates []Candidate, trainSamples int, test []entities.FeatureRow) (*Report, error) {
	report := &Report{
		GeneratedAt:  time.Now().UTC(),
		TrainSamples: trainSamples,
		TestSamples:  len(test),
	}

	labels := features.Labels(test)
	positives := 0
	for _, l := range labels {
		positives += int(l)
	}

	for _, c := range candidates {
		scores, err := c.Scorer.ScoreBatch(test)
		if err != nil {
			return nil, fmt.Errorf("scoring %s: %w", c.Name, err)
		}
		probs := make([]float64, len(scores))
		for i, s := range scores {
			probs[i] = s.Probability
		}

		eval := ModelEvaluation{
			Name:      c.Name,
			Kind:      c.Kind,
			Version:   c.Scorer.Version(),
			ROCAUC:    ROCAUC(labels, probs),
			LogLoss:   LogLoss(labels, probs),
			Samples:   len(test),
			Positives: positives,
		}
		if len(test) > 0 {
			eval.BaseRate = float64(positives) / float64(len(test))
			eval.MeanEstimate = stat.Mean(probs, nil)
		}
		report.Models = append(report.Models, eval)
	}

	if r.guardrails != nil && len(report.Models) > 0 {
		report.Rejections = r.guardrails.Check(report.Models[0], report.Models[1:])
		report.Accepted = len(report.Rejections) == 0
	} else {
		report.Accepted = true
	}

	return report, nil
}

// WithImportances attaches the top n importances to the report.
func (r *Report) WithImportances(importances []Importance, n int) *Report {
	if n > 0 && len(importances) > n {
		importances = importances[:n]
	}
	r.TopImportances = importances
	return r
}

// finite replaces NaN metrics, which JSON cannot encode.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
