package model

import (
	"math"
	"strconv"
	"strings"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
)

// RuleBasedVersion is reported by RuleBasedScorer
const RuleBasedVersion = "rule-based-stub"

// RuleBasedScorer is a fixed-offset heuristic for environments without
// training data. It is not a validated model and is only used when
// explicitly requested.
type RuleBasedScorer struct{}

const (
	ruleBase       = 0.30
	ruleYoung      = 0.15
	ruleElderly    = 0.10
	rulePriorShare = 0.20
	ruleFloor      = 0.05
	ruleCeiling    = 0.95
)

// Version identifies the stub
func (RuleBasedScorer) Version() string {
	return RuleBasedVersion
}

// Score applies the fixed offsets
func (s RuleBasedScorer) Score(row entities.FeatureRow) (entities.RiskScore, error) {
	if err := validateSchema(row, entities.NumericFeatures(), entities.CategoricalFeatures()); err != nil {
		return entities.RiskScore{}, err
	}

	p := ruleBase
	var factors []entities.ContributingFactor

	if low, high, ok := parseAgeBand(row.Categorical[entities.FeaturePatientAgeBand]); ok {
		switch {
		case high < 30:
			p += ruleYoung
			factors = append(factors, entities.ContributingFactor{Feature: entities.FeaturePatientAgeBand, Contribution: ruleYoung})
		case low >= 70:
			p += ruleElderly
			factors = append(factors, entities.ContributingFactor{Feature: entities.FeaturePatientAgeBand, Contribution: ruleElderly})
		}
	}

	if rate, ok := row.Numeric[entities.FeaturePriorNoShowRate]; ok && !entities.IsMissing(rate) && rate > 0 {
		offset := rulePriorShare * rate
		p += offset
		factors = append(factors, entities.ContributingFactor{Feature: entities.FeaturePriorNoShowRate, Contribution: offset})
	}

	return entities.RiskScore{
		Probability: math.Min(ruleCeiling, math.Max(ruleFloor, p)),
		Factors:     factors,
	}, nil
}

// ScoreBatch scores rows in order
func (s RuleBasedScorer) ScoreBatch(rows []entities.FeatureRow) ([]entities.RiskScore, error) {
	out := make([]entities.RiskScore, len(rows))
	for i, r := range rows {
		score, err := s.Score(r)
		if err != nil {
			return nil, err
		}
		out[i] = score
	}
	return out, nil
}

// parseAgeBand reads bands such as "20-29", "80+" or "80 ou mais"
func parseAgeBand(band string) (int, int, bool) {
	band = strings.TrimSpace(strings.ToLower(band))
	if band == "" {
		return 0, 0, false
	}

	if i := strings.IndexAny(band, "+ "); i > 0 && !strings.Contains(band, "-") {
		low, err := strconv.Atoi(band[:i])
		if err != nil {
			return 0, 0, false
		}
		return low, math.MaxInt32, true
	}

	parts := strings.SplitN(band, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	low, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	high, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return low, high, true
}
