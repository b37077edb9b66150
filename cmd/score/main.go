// Offline batch scorer for transaction CSV files.
//
// Usage:
//   go run cmd/score/main.go -input transactions.csv -output scored.csv
//
// This tool:
//   1. Reads a transaction CSV (header row with the required columns)
//   2. Scores every record against the rule set (built-in or -rules file)
//   3. Writes the scored CSV (input columns + risk_score + risk_category)
//   4. Prints the batch summary
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/batch"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/export"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/opensource-finance/kestrel/internal/rules"
)

func main() {
	inputPath := flag.String("input", "", "Path to the transaction CSV file")
	outputPath := flag.String("output", "scored_transactions.csv", "Path for the scored CSV")
	rulesPath := flag.String("rules", "", "Path to a YAML rule-set file (default: built-in rules)")
	workers := flag.Int("workers", batch.DefaultWorkers, "Number of concurrent scoring workers")
	topN := flag.Int("top", batch.DefaultTopN, "Size of the top-risk selection")
	summaryOnly := flag.Bool("summary-only", false, "Print the summary without writing a scored CSV")
	verbose := flag.Bool("verbose", false, "Print each scored record")
	flag.Parse()

	if *inputPath == "" {
		fmt.Println("Usage: score -input /path/to/transactions.csv [-output scored.csv]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║              KESTREL SCORE - Batch Risk Scoring               ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nInput:    %s\n", *inputPath)
	fmt.Printf("Rules:    %s\n", rulesSource(*rulesPath))
	fmt.Printf("Workers:  %d\n", *workers)
	fmt.Printf("Top N:    %d\n", *topN)
	fmt.Println()

	// Load the rule set
	ruleSet := domain.DefaultRuleSet()
	if *rulesPath != "" {
		loader, err := rules.NewLoader(*rulesPath)
		if err != nil {
			fmt.Printf("ERROR: Failed to load rules: %v\n", err)
			os.Exit(1)
		}
		ruleSet = loader.RuleSet()
	}

	engine, err := rules.NewEngine(ruleSet)
	if err != nil {
		fmt.Printf("ERROR: Invalid rule set: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Rule set loaded")

	// Read the input CSV
	file, err := os.Open(*inputPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to open input: %v\n", err)
		os.Exit(1)
	}
	b, err := ingest.ReadCSV(file)
	file.Close()
	if err != nil {
		if errors.Is(err, domain.ErrMissingColumns) {
			fmt.Printf("ERROR: Invalid input: %v\n", err)
		} else {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		}
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d records\n", len(b.Records))

	// Score
	fmt.Printf("\nScoring with %d workers...\n", *workers)
	startTime := time.Now()
	processor := batch.NewProcessor(engine, *workers, *topN)
	result, err := processor.Process(context.Background(), b)
	if err != nil {
		fmt.Printf("ERROR: Scoring failed: %v\n", err)
		os.Exit(1)
	}
	duration := time.Since(startTime)
	result.Narrative = report.Narrative(&result.Summary)
	fmt.Printf("✓ Scored %d records in %v\n", result.Summary.TotalRecords, duration.Round(time.Millisecond))

	if *verbose {
		fmt.Println()
		for _, rec := range result.Records {
			marker := " "
			if rec.Category == result.Summary.HighestCategory {
				marker = "!"
			}
			fmt.Printf("%s %-16s | Score: %3d | %-6s | %s\n",
				marker,
				rec.Record.TxnID(),
				rec.Score,
				rec.Category,
				corridorOf(rec.Record),
			)
		}
	}

	// Write the scored CSV
	if !*summaryOnly {
		out, err := os.Create(*outputPath)
		if err != nil {
			fmt.Printf("ERROR: Failed to create output: %v\n", err)
			os.Exit(1)
		}
		if err := export.WriteCSV(out, result); err != nil {
			out.Close()
			fmt.Printf("ERROR: Failed to write output: %v\n", err)
			os.Exit(1)
		}
		out.Close()
		fmt.Printf("✓ Wrote %s\n", *outputPath)
	}

	printResults(result, duration)
}

func rulesSource(path string) string {
	if path != "" {
		return path
	}
	return "built-in defaults"
}

func corridorOf(rec domain.Record) string {
	sender := strings.ToUpper(strings.TrimSpace(rec.Field(domain.ColSenderCountry)))
	receiver := strings.ToUpper(strings.TrimSpace(rec.Field(domain.ColReceiverCountry)))
	return sender + ">" + receiver
}

func printResults(result *domain.BatchResult, duration time.Duration) {
	s := result.Summary

	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        SCORING RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 BATCH STATISTICS\n")
	fmt.Printf("   Total Records:  %d\n", s.TotalRecords)
	fmt.Printf("   Mean Score:     %.1f\n", s.MeanScore)
	fmt.Printf("   %s Risk:      %d (%.1f%%)\n", s.HighestCategory, s.CategoryCountFor(s.HighestCategory), s.HighPct)

	fmt.Printf("\n📈 CATEGORY DISTRIBUTION\n")
	for i := len(s.CategoryCounts) - 1; i >= 0; i-- {
		c := s.CategoryCounts[i]
		fmt.Printf("   %-8s %6d\n", c.Name, c.Count)
	}

	fmt.Printf("\n🔍 TOP CORRIDORS\n")
	printGroups(s.Corridors, 5)

	fmt.Printf("\n🛒 RISKY MERCHANT CATEGORIES\n")
	printGroups(s.RiskyMerchants, 5)

	if len(s.TopRisk) > 0 {
		fmt.Printf("\n🎯 TOP RISK TRANSACTIONS\n")
		limit := len(s.TopRisk)
		if limit > 5 {
			limit = 5
		}
		for _, rec := range s.TopRisk[:limit] {
			fmt.Printf("   %-16s | Score: %3d | %s\n", rec.Record.TxnID(), rec.Score, corridorOf(rec.Record))
		}
	}

	fmt.Printf("\n💡 SUMMARY\n")
	fmt.Printf("   %s\n", result.Narrative)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:  %v\n", duration.Round(time.Millisecond))
	if s.TotalRecords > 0 && duration.Seconds() > 0 {
		fmt.Printf("   Throughput:      %.0f records/sec\n", float64(s.TotalRecords)/duration.Seconds())
	}

	fmt.Println()
}

func printGroups(groups []domain.GroupCount, limit int) {
	if len(groups) == 0 {
		fmt.Println("   none")
		return
	}
	if len(groups) > limit {
		groups = groups[:limit]
	}
	for _, g := range groups {
		fmt.Printf("   %-16s %6d\n", g.Key, g.Count)
	}
}
