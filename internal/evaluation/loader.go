package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveReport writes a report as indented JSON.
func SaveReport(path string, report *Report) error {
	out := *report
	out.Models = make([]ModelEvaluation, len(report.Models))
	for i, m := range report.Models {
		m.ROCAUC = finite(m.ROCAUC)
		m.LogLoss = finite(m.LogLoss)
		out.Models[i] = m
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// LoadReport reads and validates a report written by SaveReport.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if err := ValidateReport(&report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ValidateReport checks that a report names every model once and carries sane metrics.
func ValidateReport(report *Report) error {
	seen := make(map[string]struct{}, len(report.Models))

	for i, m := range report.Models {
		if m.Name == "" {
			return fmt.Errorf("model at index %d: missing name", i)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("model at index %d: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = struct{}{}

		if m.ROCAUC < 0 || m.ROCAUC > 1 {
			return fmt.Errorf("model %q: roc_auc %v out of range", m.Name, m.ROCAUC)
		}
		if m.LogLoss < 0 {
			return fmt.Errorf("model %q: negative log_loss", m.Name)
		}
		if m.Positives > m.Samples {
			return fmt.Errorf("model %q: more positives than samples", m.Name)
		}
	}

	return nil
}
