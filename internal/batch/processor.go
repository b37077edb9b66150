// Package batch applies the scoring engine across whole record sets and
// aggregates the results.
package batch

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
)

const (
	// DefaultWorkers is the scoring fan-out when the caller does not set one.
	DefaultWorkers = 8

	// DefaultTopN bounds the highest-risk selection in a summary.
	DefaultTopN = 20
)

// Processor scores batches with a pool of workers and computes summary
// aggregates. Each run pins one rule snapshot up front, so a concurrent rule
// reload never splits a batch between rule versions.
type Processor struct {
	engine  *rules.Engine
	workers int
	topN    int
}

// NewProcessor creates a processor. Non-positive workers or topN fall back to
// the package defaults.
func NewProcessor(engine *rules.Engine, workers, topN int) *Processor {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if topN < 1 {
		topN = DefaultTopN
	}
	return &Processor{engine: engine, workers: workers, topN: topN}
}

// Process scores every record of a batch independently and returns the scored
// records in input order together with the summary aggregates. An empty batch
// yields a zero-valued summary, not an error.
func (p *Processor) Process(ctx context.Context, b *domain.Batch) (*domain.BatchResult, error) {
	start := time.Now()
	snap := p.engine.Snapshot()

	scored := make([]domain.ScoredRecord, len(b.Records))
	if err := p.scoreAll(ctx, snap, b.Records, scored); err != nil {
		return nil, err
	}

	result := &domain.BatchResult{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Columns:   append([]string(nil), b.Columns...),
		Records:   scored,
		Summary:   Summarize(snap, scored, p.topN),
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// scoreAll fills out[i] with the scored form of records[i]. Records are
// independent, so workers share nothing but the job index channel.
func (p *Processor) scoreAll(ctx context.Context, snap *rules.Snapshot, records []domain.Record, out []domain.ScoredRecord) error {
	if len(records) == 0 {
		return ctx.Err()
	}

	workers := p.workers
	if workers > len(records) {
		workers = len(records)
	}
	if workers == 1 {
		for i, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = snap.ScoreRecord(rec)
		}
		return nil
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = snap.ScoreRecord(records[i])
			}
		}()
	}

	for i := range records {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return nil
}

// Summarize computes the batch aggregates for a set of scored records against
// the snapshot they were scored with.
func Summarize(snap *rules.Snapshot, scored []domain.ScoredRecord, topN int) domain.BatchSummary {
	rs := snap.RuleSet()

	counts := make([]domain.CategoryCount, len(rs.Categories))
	countIdx := make(map[string]int, len(rs.Categories))
	for i, c := range rs.Categories {
		counts[i] = domain.CategoryCount{Name: c.Name}
		countIdx[c.Name] = i
	}

	var sum int
	for _, rec := range scored {
		sum += rec.Score
		if i, ok := countIdx[rec.Category]; ok {
			counts[i].Count++
		}
	}

	highest := snap.HighestCategory()
	summary := domain.BatchSummary{
		TotalRecords:    len(scored),
		CategoryCounts:  counts,
		HighestCategory: highest,
		TopRisk:         topRisk(scored, highest, topN),
		Corridors:       corridorBreakdown(scored),
		RiskyMerchants:  riskyMerchantBreakdown(rs, scored),
	}
	if len(scored) > 0 {
		summary.MeanScore = round1(float64(sum) / float64(len(scored)))
		high := summary.CategoryCountFor(highest)
		summary.HighPct = round1(100 * float64(high) / float64(len(scored)))
	}
	return summary
}

// topRisk selects the records in the highest-risk category, ordered by
// descending score. The stable sort keeps input order for equal scores.
func topRisk(scored []domain.ScoredRecord, category string, topN int) []domain.ScoredRecord {
	top := make([]domain.ScoredRecord, 0)
	for _, rec := range scored {
		if rec.Category == category {
			top = append(top, rec)
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score > top[j].Score })
	if len(top) > topN {
		top = top[:topN]
	}
	return top
}

func corridorBreakdown(scored []domain.ScoredRecord) []domain.GroupCount {
	counts := make(map[string]int)
	for _, rec := range scored {
		sender := strings.ToUpper(strings.TrimSpace(rec.Record.Field(domain.ColSenderCountry)))
		receiver := strings.ToUpper(strings.TrimSpace(rec.Record.Field(domain.ColReceiverCountry)))
		counts[sender+">"+receiver]++
	}
	return sortedGroups(counts)
}

func riskyMerchantBreakdown(rs domain.RuleSet, scored []domain.ScoredRecord) []domain.GroupCount {
	risky := make(map[string]bool, len(rs.RiskyMerchantCategories))
	for _, cat := range rs.RiskyMerchantCategories {
		risky[strings.ToLower(strings.TrimSpace(cat))] = true
	}

	counts := make(map[string]int)
	for _, rec := range scored {
		label := strings.ToLower(strings.TrimSpace(rec.Record.Field(domain.ColMerchantCat)))
		if risky[label] {
			counts[label]++
		}
	}
	return sortedGroups(counts)
}

func sortedGroups(counts map[string]int) []domain.GroupCount {
	groups := make([]domain.GroupCount, 0, len(counts))
	for key, n := range counts {
		groups = append(groups, domain.GroupCount{Key: key, Count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key < groups[j].Key
	})
	return groups
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
