package evaluation

import "time"

// ModelEvaluation holds held-out metrics for one estimator.
type ModelEvaluation struct {
	Name         string  `json:"name"`
	Kind         string  `json:"kind"`
	Version      string  `json:"version"`
	ROCAUC       float64 `json:"roc_auc"`
	LogLoss      float64 `json:"log_loss"`
	Samples      int     `json:"samples"`
	Positives    int     `json:"positives"`
	BaseRate     float64 `json:"base_rate"`
	MeanEstimate float64 `json:"mean_estimate"`
}

// Importance is a normalized feature importance entry.
type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Report is the outcome of a training run: every candidate's held-out
// metrics plus the importances of the production model.
type Report struct {
	GeneratedAt    time.Time         `json:"generated_at"`
	TrainSamples   int               `json:"train_samples"`
	TestSamples    int               `json:"test_samples"`
	Models         []ModelEvaluation `json:"models"`
	TopImportances []Importance      `json:"top_importances"`
	Accepted       bool              `json:"accepted"`
	Rejections     []string          `json:"rejections,omitempty"`
}

// Model returns the evaluation named name, or nil.
func (r *Report) Model(name string) *ModelEvaluation {
	for i := range r.Models {
		if r.Models[i].Name == name {
			return &r.Models[i]
		}
	}
	return nil
}
