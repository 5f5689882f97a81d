package cohort

import (
	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/pkg/config"
)

// Thresholds are the inclusive lower bounds of the MEDIUM and HIGH tiers
type Thresholds struct {
	High   float64
	Medium float64
}

// DefaultThresholds returns HIGH at 0.6 and MEDIUM at 0.3
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.6, Medium: 0.3}
}

// ThresholdsFromPolicy reads tier boundaries from policy configuration
func ThresholdsFromPolicy(p config.PolicyConfig) Thresholds {
	return Thresholds{High: p.HighThreshold, Medium: p.MediumThreshold}
}

// Tier maps a probability to exactly one tier
func (t Thresholds) Tier(p float64) entities.RiskTier {
	switch {
	case p >= t.High:
		return entities.RiskTierHigh
	case p >= t.Medium:
		return entities.RiskTierMedium
	default:
		return entities.RiskTierLow
	}
}

// Aggregator buckets scored appointments into cohorts
type Aggregator struct {
	thresholds Thresholds
}

// NewAggregator creates a new cohort aggregator
func NewAggregator(thresholds Thresholds) *Aggregator {
	return &Aggregator{thresholds: thresholds}
}

// Thresholds returns the tier boundaries in use
func (a *Aggregator) Thresholds() Thresholds {
	return a.thresholds
}

// Aggregate builds a cohort over scored. When groupBy names a categorical
// feature, one sub-cohort is produced per distinct value; appointments without
// the field are grouped under the unknown category.
func (a *Aggregator) Aggregate(scored []entities.ScoredAppointment, groupBy string) *entities.RiskCohort {
	c := &entities.RiskCohort{GroupBy: groupBy}
	if groupBy != "" {
		c.Groups = make(map[string]*entities.RiskCohort)
	}

	for _, s := range scored {
		p := s.Score.Probability
		tier := a.thresholds.Tier(p)
		c.Add(p, tier)

		if groupBy == "" {
			continue
		}
		key := s.Categorical[groupBy]
		if key == "" {
			key = entities.UnknownCategory
		}
		g, ok := c.Groups[key]
		if !ok {
			g = &entities.RiskCohort{}
			c.Groups[key] = g
		}
		g.Add(p, tier)
	}

	return c
}
