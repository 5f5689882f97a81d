package policy

import (
	"fmt"
	"math"
	"sort"

	"github.com/zatekoja/noshowrisk/internal/cohort"
	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/pkg/config"
)

// Engine maps risk scores to outreach actions and specialty no-show rates to
// overbooking ceilings. It holds no mutable state.
type Engine struct {
	cfg        config.PolicyConfig
	thresholds cohort.Thresholds
	priority   map[string]struct{}
}

// NewEngine creates a policy engine from configuration
func NewEngine(cfg config.PolicyConfig) *Engine {
	priority := make(map[string]struct{}, len(cfg.PrioritizedRiskFlags))
	for _, flag := range cfg.PrioritizedRiskFlags {
		priority[flag] = struct{}{}
	}
	return &Engine{
		cfg:        cfg,
		thresholds: cohort.ThresholdsFromPolicy(cfg),
		priority:   priority,
	}
}

// Thresholds returns the tier boundaries the engine decides with
func (e *Engine) Thresholds() cohort.Thresholds {
	return e.thresholds
}

// Decide returns the intervention for one scored appointment
func (e *Engine) Decide(score entities.RiskScore, attrs entities.PatientAttributes) entities.InterventionDecision {
	tier := e.thresholds.Tier(score.Probability)

	switch tier {
	case entities.RiskTierHigh:
		subsidy := e.evaluateSubsidy(attrs)
		return entities.InterventionDecision{
			Tier: tier,
			Actions: []entities.InterventionAction{
				entities.ActionPhoneCall48h,
				entities.ActionSMS24h,
				entities.ActionFacilitatedRescheduling,
				entities.ActionEvaluateTransportSubsidy,
			},
			Subsidy: &subsidy,
		}
	case entities.RiskTierMedium:
		return entities.InterventionDecision{
			Tier:    tier,
			Actions: []entities.InterventionAction{entities.ActionSMS24h},
		}
	default:
		return entities.InterventionDecision{
			Tier:    tier,
			Actions: []entities.InterventionAction{entities.ActionAutomaticConfirmation},
		}
	}
}

// evaluateSubsidy requires every condition; the reasons list the unmet ones
func (e *Engine) evaluateSubsidy(attrs entities.PatientAttributes) entities.SubsidyEvaluation {
	var reasons []string

	incomeLimit := e.cfg.SubsidyIncomeMultiple * e.cfg.MinimumWage
	switch {
	case attrs.HouseholdIncome == nil:
		reasons = append(reasons, "household income unknown")
	case *attrs.HouseholdIncome >= incomeLimit:
		reasons = append(reasons, fmt.Sprintf("household income %.2f not below %.2f", *attrs.HouseholdIncome, incomeLimit))
	}

	switch {
	case entities.IsMissing(attrs.DistanceKm):
		reasons = append(reasons, "distance to facility unknown")
	case attrs.DistanceKm <= e.cfg.SubsidyMinDistanceKm:
		reasons = append(reasons, fmt.Sprintf("distance %.1f km not above %.1f km", attrs.DistanceKm, e.cfg.SubsidyMinDistanceKm))
	}

	if !e.IsPrioritized(attrs.RiskFlag) {
		reasons = append(reasons, "appointment not clinically prioritized")
	}

	return entities.SubsidyEvaluation{Eligible: len(reasons) == 0, Reasons: reasons}
}

// IsPrioritized reports whether a risk flag marks the appointment as clinically prioritized
func (e *Engine) IsPrioritized(riskFlag string) bool {
	_, ok := e.priority[riskFlag]
	return ok
}

// OverbookingCeiling returns the maximum overbooking share allowed for a
// specialty with observed no-show rate r. It is non-decreasing in r.
func (e *Engine) OverbookingCeiling(r float64) float64 {
	switch {
	case r > e.cfg.OverbookingUpperRate:
		return e.cfg.OverbookingUpperCeiling
	case r >= e.cfg.OverbookingLowerRate:
		return e.cfg.OverbookingMiddleCeiling
	default:
		return e.cfg.OverbookingLowerCeiling
	}
}

// RecommendOverbooking produces one recommendation per specialty seen in
// either the observed rates or the predicted cohort. The recommendation is
// the predicted no-show share, capped by the ceiling. A specialty without
// observed history has a nil observed rate and the lowest ceiling.
func (e *Engine) RecommendOverbooking(observed map[string]float64, predicted *entities.RiskCohort) []entities.OverbookingRecommendation {
	specialties := make(map[string]struct{}, len(observed))
	for s := range observed {
		specialties[s] = struct{}{}
	}
	if predicted != nil {
		for s := range predicted.Groups {
			specialties[s] = struct{}{}
		}
	}

	out := make([]entities.OverbookingRecommendation, 0, len(specialties))
	for s := range specialties {
		rec := entities.OverbookingRecommendation{
			Specialty: s,
			Ceiling:   e.cfg.OverbookingLowerCeiling,
		}
		if rate, ok := observed[s]; ok {
			rec.ObservedNoShowRate = &rate
			rec.Ceiling = e.OverbookingCeiling(rate)
		}
		if predicted != nil {
			if g, ok := predicted.Groups[s]; ok && g.MeanProbability != nil {
				mean := *g.MeanProbability
				rec.PredictedNoShowRate = &mean
				rec.Recommended = math.Min(rec.Ceiling, mean)
			}
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Specialty < out[j].Specialty })
	return out
}
