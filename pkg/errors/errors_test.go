package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

func TestAppError_IsMatchesSentinelOfType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"dataset", apperrors.NewDatasetUnavailableError("marcacao", nil), apperrors.ErrDatasetUnavailable},
		{"schema", apperrors.NewFeatureSchemaError("lead_time_days", "is missing"), apperrors.ErrFeatureSchema},
		{"range", apperrors.NewInvalidRangeError("end before start", nil), apperrors.ErrInvalidRange},
		{"not trained", apperrors.NewModelNotTrainedError(), apperrors.ErrModelNotTrained},
		{"not found", apperrors.NewNotFoundError("patient 1"), apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("scoring: %w", tt.err)
			assert.True(t, stderrors.Is(wrapped, tt.sentinel))
			assert.False(t, stderrors.Is(wrapped, stderrors.New("other")))
		})
	}
}

func TestAppError_DifferentTypesDoNotMatch(t *testing.T) {
	err := apperrors.NewInvalidRangeError("bad", nil)
	assert.False(t, stderrors.Is(err, apperrors.ErrFeatureSchema))
	assert.False(t, stderrors.Is(apperrors.NewValidationError("x"), apperrors.ErrNotFound))
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("load: %w", apperrors.NewDatasetUnavailableError("cids", nil))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDatasetUnavailable))
	assert.False(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	assert.False(t, apperrors.IsType(stderrors.New("plain"), apperrors.ErrorTypeInternal))
}

func TestAppError_ErrorIncludesCause(t *testing.T) {
	cause := stderrors.New("glob failed")
	err := apperrors.NewDatasetUnavailableError("marcacao", cause)
	assert.Contains(t, err.Error(), "DATASET_UNAVAILABLE")
	assert.Contains(t, err.Error(), "glob failed")
	assert.ErrorIs(t, err, cause)
}
