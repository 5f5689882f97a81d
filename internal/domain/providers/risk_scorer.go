package providers

import (
	"github.com/zatekoja/noshowrisk/internal/domain/entities"
)

// RiskScorer estimates no-show probabilities. Implementations must be safe
// for concurrent use.
type RiskScorer interface {
	// Score scores a single feature row
	Score(row entities.FeatureRow) (entities.RiskScore, error)

	// ScoreBatch scores rows, preserving order
	ScoreBatch(rows []entities.FeatureRow) ([]entities.RiskScore, error)

	// Version identifies the trained state behind the scores
	Version() string
}
