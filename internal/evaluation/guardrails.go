package evaluation

import (
	"fmt"
	"math"
)

// GuardrailConfig sets the minimum quality a production model must reach
// before its artifact is published.
type GuardrailConfig struct {
	MinROCAUC  float64
	MaxLogLoss float64
	// BaselineMargin is how far below a baseline's AUC the production model may fall.
	BaselineMargin float64
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MinROCAUC <= 0 {
		config.MinROCAUC = 0.5
	}
	if config.MaxLogLoss <= 0 {
		config.MaxLogLoss = math.Ln2
	}
	return &Guardrails{config: config}
}

// Check returns the reasons the production evaluation should be rejected.
func (g *Guardrails) Check(production ModelEvaluation, baselines []ModelEvaluation) []string {
	var reasons []string
	if math.IsNaN(production.ROCAUC) {
		reasons = append(reasons, "roc_auc undefined: held-out split has a single class")
	} else if production.ROCAUC < g.config.MinROCAUC {
		reasons = append(reasons, fmt.Sprintf("roc_auc %.4f below minimum %.4f", production.ROCAUC, g.config.MinROCAUC))
	}
	if production.LogLoss > g.config.MaxLogLoss {
		reasons = append(reasons, fmt.Sprintf("log_loss %.4f above maximum %.4f", production.LogLoss, g.config.MaxLogLoss))
	}
	for _, b := range baselines {
		if !math.IsNaN(b.ROCAUC) && production.ROCAUC < b.ROCAUC-g.config.BaselineMargin {
			reasons = append(reasons, fmt.Sprintf("roc_auc %.4f trails baseline %s (%.4f)", production.ROCAUC, b.Name, b.ROCAUC))
		}
	}
	return reasons
}
