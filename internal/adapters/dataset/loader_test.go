package dataset

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

func TestLoadTable_MissingTable(t *testing.T) {
	loader := NewLoader(t.TempDir())

	rows, err := LoadTable[ProcedureRow](context.Background(), loader, "procedimento")
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.True(t, errors.Is(err, apperrors.ErrDatasetUnavailable))
}

func TestLoadTable_MissingBaseDirectory(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent"))

	_, err := LoadTable[ProcedureRow](context.Background(), loader, "procedimento")
	assert.True(t, errors.Is(err, apperrors.ErrDatasetUnavailable))
}

func TestLoadTable_ConcatenatesPartitionsInLexicalOrder(t *testing.T) {
	loader := NewLoader(t.TempDir())

	_, err := WritePartition(loader, "procedimento", 1, []ProcedureRow{
		{ProcedureCode: ptr("B"), Specialty: ptr("Ortopedia")},
	})
	require.NoError(t, err)
	_, err = WritePartition(loader, "procedimento", 0, []ProcedureRow{
		{ProcedureCode: ptr("A"), Specialty: ptr("Cardiologia")},
		{ProcedureCode: ptr("C"), Specialty: nil},
	})
	require.NoError(t, err)

	rows, err := LoadTable[ProcedureRow](context.Background(), loader, "procedimento")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "A", str(rows[0].ProcedureCode))
	assert.Equal(t, "C", str(rows[1].ProcedureCode))
	assert.Nil(t, rows[1].Specialty)
	assert.Equal(t, "B", str(rows[2].ProcedureCode))
}

func TestLoadTable_IgnoresOtherTables(t *testing.T) {
	loader := NewLoader(t.TempDir())

	_, err := WriteTable(loader, "cids", []DiagnosisRow{{DiagnosisCode: ptr("I10"), Category: ptr("Hipertensao")}})
	require.NoError(t, err)
	_, err = WriteTable(loader, "cids_legacy", []DiagnosisRow{{DiagnosisCode: ptr("X"), Category: ptr("Y")}})
	require.NoError(t, err)

	rows, err := LoadTable[DiagnosisRow](context.Background(), loader, "cids")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "I10", str(rows[0].DiagnosisCode))
}

func TestWriteTable_ReplacesExistingPartitions(t *testing.T) {
	loader := NewLoader(t.TempDir())

	_, err := WritePartition(loader, "cids", 3, []DiagnosisRow{{DiagnosisCode: ptr("OLD")}})
	require.NoError(t, err)
	path, err := WriteTable(loader, "cids", []DiagnosisRow{{DiagnosisCode: ptr("NEW")}})
	require.NoError(t, err)
	assert.Equal(t, "cids-000000000000.parquet", filepath.Base(path))

	files, err := loader.Partitions("cids")
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestLoadTable_CancelledContext(t *testing.T) {
	loader := NewLoader(t.TempDir())
	_, err := WriteTable(loader, "cids", []DiagnosisRow{{DiagnosisCode: ptr("I10")}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = LoadTable[DiagnosisRow](ctx, loader, "cids")
	assert.ErrorIs(t, err, context.Canceled)
}
