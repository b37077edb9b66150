package domain

import (
	"errors"
	"time"
)

// ErrMissingColumns indicates a structurally invalid input: one or more
// required columns are absent. The whole batch is rejected before any record
// is scored.
var ErrMissingColumns = errors.New("missing required columns")

// CategoryCount is a per-category record count. Summaries carry every
// configured category, zero-filled, in declaration order.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// GroupCount is a count per group key (corridor or merchant category),
// sorted descending by count with a lexicographic key tie-break.
type GroupCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// BatchSummary holds the aggregates for one scored batch.
type BatchSummary struct {
	TotalRecords   int             `json:"totalRecords"`
	CategoryCounts []CategoryCount `json:"categoryCounts"`

	// HighestCategory names the top-risk category the HighPct and TopRisk
	// fields refer to.
	HighestCategory string `json:"highestCategory"`

	// MeanScore is the arithmetic mean rounded to 1 decimal; 0 when empty.
	MeanScore float64 `json:"meanScore"`

	// HighPct is the share of records in the highest category, rounded to
	// 1 decimal; 0 when empty.
	HighPct float64 `json:"highPct"`

	// TopRisk holds the highest-category records ordered by descending
	// score, ties broken by input position, truncated to the configured N.
	TopRisk []ScoredRecord `json:"topRisk"`

	// Corridors counts records per UPPER(sender)>UPPER(receiver) pair.
	Corridors []GroupCount `json:"corridors"`

	// RiskyMerchants counts records per merchant category, restricted to
	// the configured risky set.
	RiskyMerchants []GroupCount `json:"riskyMerchants"`
}

// CategoryCountFor returns the count for a named category, 0 when absent.
func (s *BatchSummary) CategoryCountFor(name string) int {
	for _, c := range s.CategoryCounts {
		if c.Name == name {
			return c.Count
		}
	}
	return 0
}

// BatchResult is the full outcome of one batch run: every scored record in
// input order, the summary, and the column order for export. Narrative is
// filled by the caller that presents the result.
type BatchResult struct {
	ID        string    `json:"batchId"`
	CreatedAt time.Time `json:"createdAt"`

	Columns []string       `json:"columns"`
	Records []ScoredRecord `json:"records"`
	Summary BatchSummary   `json:"summary"`

	Narrative  string `json:"narrative,omitempty"`
	DurationMs int64  `json:"durationMs"`
}
