// Package report renders plain-language summaries of scored batches.
package report

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Slice sizes for the narrative's breakdown lists.
const (
	narrativeCorridors = 3
	narrativeMerchants = 5
)

// Narrative produces a short human-readable summary: the category
// distribution, the busiest corridors, and any risky merchant categories
// observed.
func Narrative(s *domain.BatchSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Out of %d transactions, ", s.TotalRecords)
	b.WriteString(joinClauses(categoryClauses(s)))
	b.WriteString(". ")

	fmt.Fprintf(&b, "Top corridors by volume: %s. ", groupList(s.Corridors, narrativeCorridors, "n/a"))
	fmt.Fprintf(&b, "Risky merchant categories observed: %s.", groupList(s.RiskyMerchants, narrativeMerchants, "none"))
	return b.String()
}

// categoryClauses lists the highest category first with its share, then the
// remaining categories from most to least severe.
func categoryClauses(s *domain.BatchSummary) []string {
	highest := s.HighestCategory
	clauses := []string{
		fmt.Sprintf("%d (%.1f%%) are %s risk", s.CategoryCountFor(highest), s.HighPct, highest),
	}
	for i := len(s.CategoryCounts) - 1; i >= 0; i-- {
		c := s.CategoryCounts[i]
		if c.Name == highest {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%d are %s", c.Count, c.Name))
	}
	return clauses
}

func joinClauses(clauses []string) string {
	switch len(clauses) {
	case 0:
		return ""
	case 1:
		return clauses[0]
	}
	return strings.Join(clauses[:len(clauses)-1], ", ") + ", and " + clauses[len(clauses)-1]
}

func groupList(groups []domain.GroupCount, limit int, empty string) string {
	if len(groups) > limit {
		groups = groups[:limit]
	}
	if len(groups) == 0 {
		return empty
	}
	items := make([]string, len(groups))
	for i, g := range groups {
		items[i] = fmt.Sprintf("%s (%d)", g.Key, g.Count)
	}
	return strings.Join(items, ", ")
}
