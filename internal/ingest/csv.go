// Package ingest turns tabular input into validated batches.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ReadCSV parses a CSV stream into a batch. The header row defines the
// column order; every required column must be present or the whole input is
// rejected before any record is built. Short rows are padded with absent
// values, long rows are truncated to the header, blank lines are skipped.
func ReadCSV(r io.Reader) (*domain.Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("input is empty: %w", domain.ErrMissingColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(header))
	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		name := strings.TrimSpace(col)
		columns[i] = name
		colIndex[name] = i
	}

	if err := checkRequired(func(col string) bool {
		_, ok := colIndex[col]
		return ok
	}); err != nil {
		return nil, err
	}

	var records []domain.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(records)+2, err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}

		rec := make(domain.Record, len(columns))
		for i, name := range columns {
			if i < len(row) {
				rec[name] = row[i]
			} else {
				rec[name] = ""
			}
		}
		records = append(records, rec)
	}

	return &domain.Batch{Columns: columns, Records: records}, nil
}

// FromRecords builds a batch from already-decoded records (the JSON path).
// Every record must carry all required keys; the batch's column order is the
// canonical required order followed by extra keys in first-seen order.
func FromRecords(records []domain.Record) (*domain.Batch, error) {
	required := domain.RequiredColumns()
	requiredSet := make(map[string]bool, len(required))
	for _, col := range required {
		requiredSet[col] = true
	}

	missing := make(map[string]bool)
	columns := append([]string(nil), required...)
	seen := make(map[string]bool, len(required))
	for _, col := range required {
		seen[col] = true
	}

	for _, rec := range records {
		for _, col := range required {
			if _, ok := rec[col]; !ok {
				missing[col] = true
			}
		}
		extras := make([]string, 0)
		for key := range rec {
			if !seen[key] {
				extras = append(extras, key)
			}
		}
		// Map iteration order is random; extras from one record are added
		// alphabetically so column order stays deterministic.
		sort.Strings(extras)
		for _, key := range extras {
			seen[key] = true
			columns = append(columns, key)
		}
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, col := range required {
			if missing[col] {
				names = append(names, col)
			}
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumns, strings.Join(names, ", "))
	}

	return &domain.Batch{Columns: columns, Records: records}, nil
}

func checkRequired(has func(string) bool) error {
	var missing []string
	for _, col := range domain.RequiredColumns() {
		if !has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}
