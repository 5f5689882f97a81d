package model

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	"github.com/zatekoja/noshowrisk/internal/features"
	"github.com/zatekoja/noshowrisk/pkg/config"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

// Estimator kinds
const (
	KindGradientBoosting = "gradient_boosting"
	KindLogistic         = "logistic_regression"
)

type estimator interface {
	// contributions returns the bias and per-column log-odds contributions;
	// their sum is the logit.
	contributions(x []float64) (float64, []float64)
}

// TrainingOptions configures both estimators and the early-stopping split
type TrainingOptions struct {
	GBM             GBMOptions
	Logistic        LogisticOptions
	ValidationRatio float64
	Seed            int64
}

// OptionsFromConfig maps configuration onto training options
func OptionsFromConfig(m config.ModelConfig, s config.SplitConfig) TrainingOptions {
	return TrainingOptions{
		GBM: GBMOptions{
			Trees:               m.Trees,
			LearningRate:        m.LearningRate,
			MaxDepth:            m.MaxDepth,
			MinSamplesLeaf:      m.MinSamplesLeaf,
			L2:                  m.L2,
			Bins:                m.Bins,
			EarlyStoppingRounds: m.EarlyStoppingRounds,
		},
		Logistic: LogisticOptions{
			Iterations:   m.LogisticIterations,
			LearningRate: m.LogisticLearningRate,
			L2:           m.LogisticL2,
		},
		ValidationRatio: s.ValidationRatio,
		Seed:            s.Seed,
	}
}

// FeatureImportance is the share of model importance attributed to one feature
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// TrainedRiskModel holds a fitted preprocessor and estimator. It is never
// mutated after fitting and is safe for concurrent scoring.
type TrainedRiskModel struct {
	version        string
	kind           string
	trainedAt      time.Time
	preprocessor   *Preprocessor
	estimator      estimator
	gbm            *GradientBoosting
	logistic       *LogisticRegression
	specialtyRates map[string]float64
}

// FitGradientBoosting fits the production estimator. A stratified validation
// share of rows drives early stopping.
func FitGradientBoosting(rows []entities.FeatureRow, opts TrainingOptions) (*TrainedRiskModel, error) {
	if err := checkTrainingRows(rows); err != nil {
		return nil, err
	}

	fitRows, valRows := rows, []entities.FeatureRow(nil)
	if opts.ValidationRatio > 0 && opts.GBM.EarlyStoppingRounds > 0 {
		fitRows, valRows = StratifiedSplit(rows, opts.ValidationRatio, opts.Seed)
		if len(fitRows) == 0 {
			fitRows, valRows = rows, nil
		}
	}

	pre, err := FitPreprocessor(fitRows)
	if err != nil {
		return nil, err
	}
	X, y, err := design(pre, fitRows)
	if err != nil {
		return nil, err
	}
	valX, valY, err := design(pre, valRows)
	if err != nil {
		return nil, err
	}

	gbm := fitGradientBoosting(X, y, valX, valY, opts.GBM)
	return newTrainedModel(KindGradientBoosting, pre, gbm, nil, rows), nil
}

// FitLogistic fits the linear baseline over the same preprocessing
func FitLogistic(rows []entities.FeatureRow, opts TrainingOptions) (*TrainedRiskModel, error) {
	if err := checkTrainingRows(rows); err != nil {
		return nil, err
	}

	pre, err := FitPreprocessor(rows)
	if err != nil {
		return nil, err
	}
	X, y, err := design(pre, rows)
	if err != nil {
		return nil, err
	}

	logistic := fitLogistic(X, y, opts.Logistic)
	return newTrainedModel(KindLogistic, pre, nil, logistic, rows), nil
}

func newTrainedModel(kind string, pre *Preprocessor, gbm *GradientBoosting, logistic *LogisticRegression, rows []entities.FeatureRow) *TrainedRiskModel {
	m := &TrainedRiskModel{
		version:        uuid.New().String(),
		kind:           kind,
		trainedAt:      time.Now().UTC(),
		preprocessor:   pre,
		gbm:            gbm,
		logistic:       logistic,
		specialtyRates: features.NoShowRateBySpecialty(rows),
	}
	m.bindEstimator()
	return m
}

func (m *TrainedRiskModel) bindEstimator() {
	switch {
	case m.gbm != nil:
		m.estimator = m.gbm
	case m.logistic != nil:
		m.estimator = m.logistic
	}
}

func checkTrainingRows(rows []entities.FeatureRow) error {
	if len(rows) == 0 {
		return apperrors.NewValidationError("no labeled rows to fit")
	}
	for i, r := range rows {
		if !r.Labeled {
			return apperrors.NewValidationError(fmt.Sprintf("row %d has no label", i))
		}
	}
	return nil
}

func design(pre *Preprocessor, rows []entities.FeatureRow) ([][]float64, []float64, error) {
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x, err := pre.Transform(r)
		if err != nil {
			return nil, nil, err
		}
		X[i] = x
		y[i] = float64(r.Label)
	}
	return X, y, nil
}

// Version identifies this fitted state
func (m *TrainedRiskModel) Version() string {
	if m == nil {
		return ""
	}
	return m.version
}

// Kind is the estimator kind
func (m *TrainedRiskModel) Kind() string {
	return m.kind
}

// TrainedAt is the fitting time
func (m *TrainedRiskModel) TrainedAt() time.Time {
	return m.trainedAt
}

// SpecialtyNoShowRates returns the observed no-show rate per specialty in the training data
func (m *TrainedRiskModel) SpecialtyNoShowRates() map[string]float64 {
	out := make(map[string]float64, len(m.specialtyRates))
	for k, v := range m.specialtyRates {
		out[k] = v
	}
	return out
}

// WithSpecialtyNoShowRates returns a copy of the model carrying rates in
// place of the rates observed in its training rows
func (m *TrainedRiskModel) WithSpecialtyNoShowRates(rates map[string]float64) *TrainedRiskModel {
	out := *m
	out.specialtyRates = make(map[string]float64, len(rates))
	for k, v := range rates {
		out.specialtyRates[k] = v
	}
	return &out
}

// Preprocessor exposes the fitted preprocessing
func (m *TrainedRiskModel) Preprocessor() *Preprocessor {
	return m.preprocessor
}

// Score estimates the no-show probability of one row
func (m *TrainedRiskModel) Score(row entities.FeatureRow) (entities.RiskScore, error) {
	if m == nil || m.estimator == nil || m.preprocessor == nil {
		return entities.RiskScore{}, apperrors.NewModelNotTrainedError()
	}

	x, err := m.preprocessor.Transform(row)
	if err != nil {
		return entities.RiskScore{}, err
	}

	bias, contrib := m.estimator.contributions(x)
	logit := bias
	bySource := make(map[string]float64, len(m.preprocessor.Numeric)+len(m.preprocessor.Categorical))
	for j, source := range m.preprocessor.SourceFeatures() {
		logit += contrib[j]
		bySource[source] += contrib[j]
	}

	return entities.RiskScore{
		Probability: sigmoid(logit),
		Factors:     rankFactors(bySource),
	}, nil
}

// ScoreBatch scores rows in order. Scoring stops at the first invalid row.
func (m *TrainedRiskModel) ScoreBatch(rows []entities.FeatureRow) ([]entities.RiskScore, error) {
	if m == nil || m.estimator == nil {
		return nil, apperrors.NewModelNotTrainedError()
	}
	out := make([]entities.RiskScore, len(rows))
	for i, r := range rows {
		s, err := m.Score(r)
		if err != nil {
			return nil, fmt.Errorf("row %d (appointment %s): %w", i, r.AppointmentID, err)
		}
		out[i] = s
	}
	return out, nil
}

// FeatureImportances returns normalized importances per source feature,
// highest first. Boosting uses total split gain; the baseline uses |weight|.
func (m *TrainedRiskModel) FeatureImportances() []FeatureImportance {
	if m == nil || m.preprocessor == nil {
		return nil
	}

	var raw []float64
	switch {
	case m.gbm != nil:
		raw = m.gbm.importances()
	case m.logistic != nil:
		raw = make([]float64, len(m.logistic.Weights))
		for j, w := range m.logistic.Weights {
			raw[j] = math.Abs(w)
		}
	}

	bySource := make(map[string]float64)
	total := 0.0
	for j, source := range m.preprocessor.SourceFeatures() {
		bySource[source] += raw[j]
		total += raw[j]
	}

	out := make([]FeatureImportance, 0, len(bySource))
	for feature, v := range bySource {
		if total > 0 {
			v /= total
		}
		out = append(out, FeatureImportance{Feature: feature, Importance: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Feature < out[j].Feature
	})
	return out
}

func rankFactors(bySource map[string]float64) []entities.ContributingFactor {
	factors := make([]entities.ContributingFactor, 0, len(bySource))
	for feature, c := range bySource {
		if c == 0 {
			continue
		}
		factors = append(factors, entities.ContributingFactor{Feature: feature, Contribution: c})
	}
	sort.Slice(factors, func(i, j int) bool {
		ai, aj := math.Abs(factors[i].Contribution), math.Abs(factors[j].Contribution)
		if ai != aj {
			return ai > aj
		}
		return factors[i].Feature < factors[j].Feature
	})
	return factors
}
