// Package dataset reads the historical scheduling export: one or more
// parquet partitions per table, named <table>-<partition>.parquet.
package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog/log"

	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

// SinglePartition is the partition suffix used by unpartitioned tables
const SinglePartition = "000000000000"

// Loader locates and reads table partitions under a base directory
type Loader struct {
	basePath string
}

// NewLoader creates a loader rooted at basePath
func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

// BasePath returns the directory the loader reads from
func (l *Loader) BasePath() string {
	return l.basePath
}

// Partitions returns the partition files of table in lexical order. A table
// without any partition yields a DatasetUnavailable error.
func (l *Loader) Partitions(table string) ([]string, error) {
	if table == "" {
		return nil, apperrors.NewValidationError("table name is required")
	}
	if _, err := os.Stat(l.basePath); err != nil {
		return nil, apperrors.NewDatasetUnavailableError(table, err)
	}

	files, err := filepath.Glob(filepath.Join(l.basePath, table+"-*.parquet"))
	if err != nil {
		return nil, apperrors.NewDatasetUnavailableError(table, err)
	}
	if len(files) == 0 {
		return nil, apperrors.NewDatasetUnavailableError(table, nil)
	}
	sort.Strings(files)
	return files, nil
}

// LoadTable reads every partition of table and concatenates their rows.
// Partitions are read in lexical order; row order across partitions carries
// no meaning.
func LoadTable[T any](ctx context.Context, l *Loader, table string) ([]T, error) {
	files, err := l.Partitions(table)
	if err != nil {
		return nil, err
	}

	var rows []T
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := parquet.ReadFile[T](file)
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("failed to read partition %s", filepath.Base(file)), err)
		}
		rows = append(rows, part...)
	}

	log.Debug().
		Str("table", table).
		Int("partitions", len(files)).
		Int("rows", len(rows)).
		Msg("Loaded dataset table")
	return rows, nil
}

// WriteTable writes rows as the single partition of table, replacing any
// existing partitions.
func WriteTable[T any](l *Loader, table string, rows []T) (string, error) {
	if err := os.MkdirAll(l.basePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dataset directory: %w", err)
	}
	if err := l.RemoveTable(table); err != nil {
		return "", err
	}

	path := filepath.Join(l.basePath, fmt.Sprintf("%s-%s.parquet", table, SinglePartition))
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", table, err)
	}
	return path, nil
}

// RemoveTable deletes every partition of table. A table without partitions
// is left as is.
func (l *Loader) RemoveTable(table string) error {
	files, err := l.Partitions(table)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeDatasetUnavailable) {
			return nil
		}
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("failed to remove stale partition: %w", err)
		}
	}
	return nil
}

// WritePartition writes rows as one numbered partition of table
func WritePartition[T any](l *Loader, table string, partition int, rows []T) (string, error) {
	if err := os.MkdirAll(l.basePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dataset directory: %w", err)
	}
	path := filepath.Join(l.basePath, fmt.Sprintf("%s-%012d.parquet", table, partition))
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("failed to write %s partition %d: %w", table, partition, err)
	}
	return path, nil
}
