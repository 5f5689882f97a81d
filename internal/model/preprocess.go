package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/zatekoja/noshowrisk/internal/domain/entities"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

// MissingCategory replaces empty categorical values before encoding
const MissingCategory = "missing"

// Preprocessor imputes, standardizes and one-hot encodes feature rows.
// It is immutable once fitted.
type Preprocessor struct {
	Numeric     []string   `json:"numeric"`
	Medians     []float64  `json:"medians"`
	Means       []float64  `json:"means"`
	Scales      []float64  `json:"scales"`
	Categorical []string   `json:"categorical"`
	Levels      [][]string `json:"levels"`

	offsets []int
	index   []map[string]int
	width   int
}

// FitPreprocessor learns imputation, scaling and encoding from training rows
func FitPreprocessor(rows []entities.FeatureRow) (*Preprocessor, error) {
	p := &Preprocessor{
		Numeric:     entities.NumericFeatures(),
		Categorical: entities.CategoricalFeatures(),
	}

	for _, row := range rows {
		if err := p.validate(row); err != nil {
			return nil, err
		}
	}

	for _, name := range p.Numeric {
		present := make([]float64, 0, len(rows))
		for _, row := range rows {
			if v := row.Numeric[name]; !entities.IsMissing(v) {
				present = append(present, v)
			}
		}

		median := 0.0
		if len(present) > 0 {
			sort.Float64s(present)
			median = stat.Quantile(0.5, stat.Empirical, present, nil)
		}

		imputed := make([]float64, len(rows))
		for i, row := range rows {
			imputed[i] = impute(row.Numeric[name], median)
		}
		mean, std := 0.0, 1.0
		if len(imputed) > 1 {
			mean, std = stat.MeanStdDev(imputed, nil)
		} else if len(imputed) == 1 {
			mean = imputed[0]
		}
		if std == 0 || math.IsNaN(std) {
			std = 1
		}

		p.Medians = append(p.Medians, median)
		p.Means = append(p.Means, mean)
		p.Scales = append(p.Scales, std)
	}

	for _, name := range p.Categorical {
		seen := make(map[string]struct{})
		for _, row := range rows {
			seen[category(row.Categorical[name])] = struct{}{}
		}
		levels := make([]string, 0, len(seen))
		for level := range seen {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		p.Levels = append(p.Levels, levels)
	}

	p.init()
	return p, nil
}

// init rebuilds the derived lookup tables after fitting or decoding
func (p *Preprocessor) init() {
	p.width = len(p.Numeric)
	p.offsets = make([]int, len(p.Categorical))
	p.index = make([]map[string]int, len(p.Categorical))
	for i, levels := range p.Levels {
		p.offsets[i] = p.width
		p.index[i] = make(map[string]int, len(levels))
		for j, level := range levels {
			p.index[i][level] = j
		}
		p.width += len(levels)
	}
}

// Width is the length of a transformed vector
func (p *Preprocessor) Width() int {
	return p.width
}

// Transform converts a row into a dense vector. Unseen categories encode as all zeros.
func (p *Preprocessor) Transform(row entities.FeatureRow) ([]float64, error) {
	if err := p.validate(row); err != nil {
		return nil, err
	}

	x := make([]float64, p.width)
	for i, name := range p.Numeric {
		x[i] = (impute(row.Numeric[name], p.Medians[i]) - p.Means[i]) / p.Scales[i]
	}
	for i, name := range p.Categorical {
		if j, ok := p.index[i][category(row.Categorical[name])]; ok {
			x[p.offsets[i]+j] = 1
		}
	}
	return x, nil
}

// FeatureNames names every column of a transformed vector
func (p *Preprocessor) FeatureNames() []string {
	names := make([]string, 0, p.width)
	names = append(names, p.Numeric...)
	for i, name := range p.Categorical {
		for _, level := range p.Levels[i] {
			names = append(names, name+"="+level)
		}
	}
	return names
}

// SourceFeatures maps every transformed column back to the row feature it came from
func (p *Preprocessor) SourceFeatures() []string {
	sources := make([]string, 0, p.width)
	sources = append(sources, p.Numeric...)
	for i, name := range p.Categorical {
		for range p.Levels[i] {
			sources = append(sources, name)
		}
	}
	return sources
}

// CategoryMappings returns the known levels of every categorical feature
func (p *Preprocessor) CategoryMappings() map[string][]string {
	out := make(map[string][]string, len(p.Categorical))
	for i, name := range p.Categorical {
		out[name] = append([]string(nil), p.Levels[i]...)
	}
	return out
}

func (p *Preprocessor) validate(row entities.FeatureRow) error {
	return validateSchema(row, p.Numeric, p.Categorical)
}

// validateSchema requires every named column to be present. Numeric values
// may carry the missing marker but never infinity.
func validateSchema(row entities.FeatureRow, numeric, categorical []string) error {
	for _, name := range numeric {
		v, ok := row.Numeric[name]
		if !ok {
			return apperrors.NewFeatureSchemaError(name, "is missing")
		}
		if math.IsInf(v, 0) {
			return apperrors.NewFeatureSchemaError(name, "is not finite")
		}
	}
	for _, name := range categorical {
		if _, ok := row.Categorical[name]; !ok {
			return apperrors.NewFeatureSchemaError(name, "is missing")
		}
	}
	return nil
}

func impute(v, median float64) float64 {
	if entities.IsMissing(v) {
		return median
	}
	return v
}

func category(v string) string {
	if v == "" {
		return MissingCategory
	}
	return v
}
