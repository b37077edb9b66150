// Package export renders scored batches back to tabular form.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Column names appended to the input columns on export.
const (
	ColRiskScore    = "risk_score"
	ColRiskCategory = "risk_category"
)

// WriteCSV writes a scored batch as CSV: the input columns in their original
// order followed by risk_score and risk_category.
func WriteCSV(w io.Writer, result *domain.BatchResult) error {
	return writeRecords(w, result.Columns, result.Records)
}

// WriteTopCSV writes only the summary's highest-risk selection, with the same
// layout as WriteCSV.
func WriteTopCSV(w io.Writer, result *domain.BatchResult) error {
	return writeRecords(w, result.Columns, result.Summary.TopRisk)
}

func writeRecords(w io.Writer, columns []string, records []domain.ScoredRecord) error {
	cw := csv.NewWriter(w)

	header := append(append([]string(nil), columns...), ColRiskScore, ColRiskCategory)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(header))
	for _, rec := range records {
		for i, col := range columns {
			row[i] = rec.Record.Field(col)
		}
		row[len(columns)] = strconv.Itoa(rec.Score)
		row[len(columns)+1] = rec.Category
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
