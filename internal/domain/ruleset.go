package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRuleSet indicates a rule set that failed validation. Callers
// treat a wrapped ErrInvalidRuleSet as fatal at startup: no record is scored
// against a malformed table.
var ErrInvalidRuleSet = errors.New("invalid rule set")

// CategoryRange maps a category name to an inclusive score range.
type CategoryRange struct {
	Name string `json:"name" yaml:"name"`
	Lo   int    `json:"lo" yaml:"lo"`
	Hi   int    `json:"hi" yaml:"hi"`
}

// RuleSet holds the complete scoring rule tables. It is plain data:
// constructed once (compiled-in defaults or a YAML file), validated at load,
// and never mutated during a run.
type RuleSet struct {
	// HighRiskCountries are uppercase ISO codes that add corridor risk.
	HighRiskCountries []string `json:"highRiskCountries" yaml:"high_risk_countries"`

	// RiskyMerchantCategories are lowercase labels that add merchant risk.
	RiskyMerchantCategories []string `json:"riskyMerchantCategories" yaml:"risky_merchant_categories"`

	// KYCTierScores maps a lowercase tier label to its contribution.
	KYCTierScores map[string]int `json:"kycTierScores" yaml:"kyc_tier_scores"`

	// KYCDefaultScore applies when the tier label is not in the table.
	KYCDefaultScore int `json:"kycDefaultScore" yaml:"kyc_default_score"`

	// Categories are checked in declaration order; first inclusive match wins.
	Categories []CategoryRange `json:"categories" yaml:"categories"`

	// FallbackCategory is returned when no range matches.
	FallbackCategory string `json:"fallbackCategory" yaml:"fallback_category"`
}

// DefaultRuleSet returns the canonical rule tables.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		HighRiskCountries: []string{
			"IR", "KP", "SY", "CU", "RU", "UA", "AF", "IQ", "YE", "SO", "SD", "CD",
		},
		RiskyMerchantCategories: []string{
			"gambling", "crypto", "virtual_goods", "adult", "gift_cards",
		},
		KYCTierScores: map[string]int{
			"tier_1":   10,
			"basic":    10,
			"lite":     10,
			"tier_2":   5,
			"standard": 5,
			"tier_3":   0,
			"enhanced": 0,
			"full":     0,
		},
		KYCDefaultScore: 5,
		Categories: []CategoryRange{
			{Name: "Low", Lo: 0, Hi: 39},
			{Name: "Medium", Lo: 40, Hi: 69},
			{Name: "High", Lo: 70, Hi: 100},
		},
		FallbackCategory: "Low",
	}
}

// Validate checks the rule set and reports every problem at once.
// A failed validation is a startup error, never a per-record one.
func (rs *RuleSet) Validate() error {
	var errs []string

	if len(rs.Categories) == 0 {
		errs = append(errs, "categories must not be empty")
	}

	seen := make(map[string]bool, len(rs.Categories))
	for i, c := range rs.Categories {
		if c.Name == "" {
			errs = append(errs, fmt.Sprintf("categories[%d]: name is required", i))
			continue
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Sprintf("duplicate category name %q", c.Name))
		}
		seen[c.Name] = true
		if c.Lo > c.Hi {
			errs = append(errs, fmt.Sprintf("category %s: lo %d > hi %d", c.Name, c.Lo, c.Hi))
		}
		if c.Lo < 0 || c.Hi > 100 {
			errs = append(errs, fmt.Sprintf("category %s: range [%d,%d] outside [0,100]", c.Name, c.Lo, c.Hi))
		}
	}

	if rs.FallbackCategory == "" {
		errs = append(errs, "fallback_category is required")
	}
	if rs.KYCDefaultScore < 0 {
		errs = append(errs, fmt.Sprintf("kyc_default_score must not be negative, got %d", rs.KYCDefaultScore))
	}
	for tier, score := range rs.KYCTierScores {
		if score < 0 {
			errs = append(errs, fmt.Sprintf("kyc_tier_scores[%s] must not be negative, got %d", tier, score))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidRuleSet, strings.Join(errs, "\n  - "))
	}
	return nil
}

// HighestCategory returns the name of the category with the greatest upper
// bound, used for top-risk selection.
func (rs *RuleSet) HighestCategory() string {
	name := rs.FallbackCategory
	best := -1
	for _, c := range rs.Categories {
		if c.Hi > best {
			best = c.Hi
			name = c.Name
		}
	}
	return name
}
