package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type artifact struct {
	Version              string              `json:"version"`
	Kind                 string              `json:"kind"`
	TrainedAt            time.Time           `json:"trained_at"`
	Features             []string            `json:"features"`
	CategoryMappings     map[string][]string `json:"category_mappings"`
	Preprocessor         *Preprocessor       `json:"preprocessor"`
	GradientBoosting     *GradientBoosting   `json:"gradient_boosting,omitempty"`
	Logistic             *LogisticRegression `json:"logistic,omitempty"`
	SpecialtyNoShowRates map[string]float64  `json:"specialty_no_show_rates"`
}

// Save writes the model, its feature list and category mappings as JSON
func (m *TrainedRiskModel) Save(path string) error {
	if m == nil || m.estimator == nil {
		return fmt.Errorf("cannot save an unfitted model")
	}

	a := artifact{
		Version:              m.version,
		Kind:                 m.kind,
		TrainedAt:            m.trainedAt,
		Features:             m.preprocessor.FeatureNames(),
		CategoryMappings:     m.preprocessor.CategoryMappings(),
		Preprocessor:         m.preprocessor,
		GradientBoosting:     m.gbm,
		Logistic:             m.logistic,
		SpecialtyNoShowRates: m.specialtyRates,
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// Load reads a model written by Save
func Load(path string) (*TrainedRiskModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model file: %w", err)
	}
	if a.Preprocessor == nil {
		return nil, fmt.Errorf("model file %s has no preprocessor", path)
	}
	a.Preprocessor.init()

	m := &TrainedRiskModel{
		version:        a.Version,
		kind:           a.Kind,
		trainedAt:      a.TrainedAt,
		preprocessor:   a.Preprocessor,
		specialtyRates: a.SpecialtyNoShowRates,
	}
	switch a.Kind {
	case KindGradientBoosting:
		if a.GradientBoosting == nil {
			return nil, fmt.Errorf("model file %s is missing its trees", path)
		}
		m.gbm = a.GradientBoosting
	case KindLogistic:
		if a.Logistic == nil {
			return nil, fmt.Errorf("model file %s is missing its weights", path)
		}
		m.logistic = a.Logistic
	default:
		return nil, fmt.Errorf("model file %s has unknown kind %q", path, a.Kind)
	}
	m.bindEstimator()
	return m, nil
}
