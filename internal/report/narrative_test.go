package report

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestNarrative(t *testing.T) {
	s := &domain.BatchSummary{
		TotalRecords: 3,
		CategoryCounts: []domain.CategoryCount{
			{Name: "Low", Count: 1},
			{Name: "Medium", Count: 1},
			{Name: "High", Count: 1},
		},
		HighestCategory: "High",
		MeanScore:       50.0,
		HighPct:         33.3,
		Corridors:       []domain.GroupCount{{Key: "US>US", Count: 3}},
	}

	want := "Out of 3 transactions, 1 (33.3%) are High risk, 1 are Medium, and 1 are Low. " +
		"Top corridors by volume: US>US (3). " +
		"Risky merchant categories observed: none."
	if got := Narrative(s); got != want {
		t.Errorf("unexpected narrative:\n got: %s\nwant: %s", got, want)
	}
}

func TestNarrativeEmptyBatch(t *testing.T) {
	s := &domain.BatchSummary{
		TotalRecords: 0,
		CategoryCounts: []domain.CategoryCount{
			{Name: "Low"},
			{Name: "Medium"},
			{Name: "High"},
		},
		HighestCategory: "High",
	}

	want := "Out of 0 transactions, 0 (0.0%) are High risk, 0 are Medium, and 0 are Low. " +
		"Top corridors by volume: n/a. " +
		"Risky merchant categories observed: none."
	if got := Narrative(s); got != want {
		t.Errorf("unexpected narrative:\n got: %s\nwant: %s", got, want)
	}
}

func TestNarrativeTruncatesBreakdowns(t *testing.T) {
	s := &domain.BatchSummary{
		TotalRecords: 10,
		CategoryCounts: []domain.CategoryCount{
			{Name: "Low", Count: 10},
			{Name: "Medium"},
			{Name: "High"},
		},
		HighestCategory: "High",
		Corridors: []domain.GroupCount{
			{Key: "US>GB", Count: 4},
			{Key: "US>DE", Count: 3},
			{Key: "GB>FR", Count: 2},
			{Key: "SG>US", Count: 1},
		},
		RiskyMerchants: []domain.GroupCount{
			{Key: "gambling", Count: 6},
			{Key: "crypto", Count: 5},
			{Key: "adult", Count: 4},
			{Key: "gift_cards", Count: 3},
			{Key: "virtual_goods", Count: 2},
			{Key: "extra", Count: 1},
		},
	}

	want := "Out of 10 transactions, 0 (0.0%) are High risk, 0 are Medium, and 10 are Low. " +
		"Top corridors by volume: US>GB (4), US>DE (3), GB>FR (2). " +
		"Risky merchant categories observed: gambling (6), crypto (5), adult (4), gift_cards (3), virtual_goods (2)."
	if got := Narrative(s); got != want {
		t.Errorf("unexpected narrative:\n got: %s\nwant: %s", got, want)
	}
}

func TestNarrativeTwoCategories(t *testing.T) {
	s := &domain.BatchSummary{
		TotalRecords: 5,
		CategoryCounts: []domain.CategoryCount{
			{Name: "Pass", Count: 3},
			{Name: "Review", Count: 2},
		},
		HighestCategory: "Review",
		HighPct:         40.0,
	}

	want := "Out of 5 transactions, 2 (40.0%) are Review risk, and 3 are Pass. " +
		"Top corridors by volume: n/a. " +
		"Risky merchant categories observed: none."
	if got := Narrative(s); got != want {
		t.Errorf("unexpected narrative:\n got: %s\nwant: %s", got, want)
	}
}

func TestNarrativeSingleCategory(t *testing.T) {
	s := &domain.BatchSummary{
		TotalRecords: 4,
		CategoryCounts: []domain.CategoryCount{
			{Name: "Only", Count: 4},
		},
		HighestCategory: "Only",
		HighPct:         100.0,
	}

	want := "Out of 4 transactions, 4 (100.0%) are Only risk. " +
		"Top corridors by volume: n/a. " +
		"Risky merchant categories observed: none."
	if got := Narrative(s); got != want {
		t.Errorf("unexpected narrative:\n got: %s\nwant: %s", got, want)
	}
}
