// Package rules provides the additive risk scoring engine.
package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Score bounds and the base every non-sanctioned record starts from.
const (
	BaseScore      = 10
	MinScore       = 0
	MaxScore       = 100
	SanctionsScore = 100
)

// Engine scores transaction records against a rule set. The active rule set
// can be swapped via Reload; Snapshot pins one immutable view so a batch in
// flight never sees a mix of old and new tables.
type Engine struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// Snapshot is one immutable view of the rule tables with the membership sets
// precomputed. All scoring methods hang off Snapshot and are pure: same
// record in, same score out, no shared state.
type Snapshot struct {
	rules     domain.RuleSet
	countries map[string]bool
	merchants map[string]bool
}

// NewEngine validates the rule set and builds an engine over it.
func NewEngine(rs *domain.RuleSet) (*Engine, error) {
	snap, err := newSnapshot(rs)
	if err != nil {
		return nil, err
	}
	return &Engine{snap: snap}, nil
}

// Reload validates and swaps in a new rule set. On error the engine keeps
// the current one.
func (e *Engine) Reload(rs *domain.RuleSet) error {
	snap, err := newSnapshot(rs)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()
	return nil
}

// Snapshot returns the current rule view. Batch runs call this once and
// score every record against the same tables.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// RuleSet returns a copy of the active rule tables.
func (e *Engine) RuleSet() domain.RuleSet {
	return e.Snapshot().rules
}

// Score scores one record against the active rule set.
func (e *Engine) Score(rec domain.Record) (int, []domain.RiskFactor) {
	return e.Snapshot().Score(rec)
}

// Categorize buckets a score using the active rule set.
func (e *Engine) Categorize(score int) string {
	return e.Snapshot().Categorize(score)
}

func newSnapshot(rs *domain.RuleSet) (*Snapshot, error) {
	if rs == nil {
		return nil, fmt.Errorf("rule set is required")
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	countries := make(map[string]bool, len(rs.HighRiskCountries))
	for _, c := range rs.HighRiskCountries {
		countries[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	merchants := make(map[string]bool, len(rs.RiskyMerchantCategories))
	for _, m := range rs.RiskyMerchantCategories {
		merchants[strings.ToLower(strings.TrimSpace(m))] = true
	}

	return &Snapshot{
		rules:     *rs,
		countries: countries,
		merchants: merchants,
	}, nil
}

// RuleSet returns the tables behind this snapshot.
func (s *Snapshot) RuleSet() domain.RuleSet {
	return s.rules
}

// Score computes the risk score for one record: sanctions short-circuit to
// 100, otherwise base 10 plus each rule's contribution, clamped into
// [0,100]. Absent or malformed fields contribute zero.
func (s *Snapshot) Score(rec domain.Record) (int, []domain.RiskFactor) {
	// Sanctions dominate everything else; checked before any other rule.
	if ParseFlag(rec.Field(domain.ColSanctionedFlag)) {
		return SanctionsScore, []domain.RiskFactor{{
			Name:   "sanctioned_party",
			Detail: "counterparty appears on a sanctions list",
			Points: SanctionsScore,
		}}
	}

	score := BaseScore
	factors := []domain.RiskFactor{{
		Name:   "base",
		Detail: "base score",
		Points: BaseScore,
	}}

	add := func(pts int, name, detail string) {
		score += pts
		factors = append(factors, domain.RiskFactor{Name: name, Detail: detail, Points: pts})
	}

	// Amount tier.
	if amount, ok := ParseNumber(rec.Field(domain.ColAmountUSD)); ok {
		switch {
		case amount > 10000:
			add(20, "amount_tier", "amount above 10000")
		case amount > 5000:
			add(15, "amount_tier", "amount above 5000")
		case amount > 1000:
			add(10, "amount_tier", "amount above 1000")
		}
	}

	// Corridor: cross-border bump and high-risk country membership are
	// independent signals; both can apply.
	sender := strings.ToUpper(strings.TrimSpace(rec.Field(domain.ColSenderCountry)))
	receiver := strings.ToUpper(strings.TrimSpace(rec.Field(domain.ColReceiverCountry)))
	if sender != "" && receiver != "" && sender != receiver {
		add(5, "cross_border", fmt.Sprintf("cross-border corridor %s>%s", sender, receiver))
	}
	if s.countries[sender] || s.countries[receiver] {
		add(15, "high_risk_country", "corridor touches a high-risk country")
	}

	// KYC tier: exactly one contribution per record.
	tier := strings.ToLower(strings.TrimSpace(rec.Field(domain.ColKYCTier)))
	if pts, ok := s.rules.KYCTierScores[tier]; ok {
		if pts != 0 {
			add(pts, "kyc_tier", fmt.Sprintf("kyc tier %s", tier))
		}
	} else if s.rules.KYCDefaultScore != 0 {
		add(s.rules.KYCDefaultScore, "kyc_tier", "unrecognized kyc tier")
	}

	// Velocity: 1h and 24h windows are separate signals.
	if v1, ok := ParseNumber(rec.Field(domain.ColVelocity1h)); ok {
		switch {
		case v1 > 5:
			add(15, "velocity_1h", "more than 5 transactions in 1h")
		case v1 > 2:
			add(8, "velocity_1h", "more than 2 transactions in 1h")
		}
	}
	if v24, ok := ParseNumber(rec.Field(domain.ColVelocity24h)); ok {
		switch {
		case v24 > 20:
			add(10, "velocity_24h", "more than 20 transactions in 24h")
		case v24 > 10:
			add(5, "velocity_24h", "more than 10 transactions in 24h")
		}
	}

	// Merchant category.
	mcc := strings.ToLower(strings.TrimSpace(rec.Field(domain.ColMerchantCat)))
	if s.merchants[mcc] {
		add(10, "risky_merchant", fmt.Sprintf("risky merchant category %s", mcc))
	}

	// Device change.
	if ParseFlag(rec.Field(domain.ColDeviceChange)) {
		add(10, "device_change", "device change on this transaction")
	}

	// Account age.
	if age, ok := ParseNumber(rec.Field(domain.ColCustomerAge)); ok {
		switch {
		case age < 30:
			add(15, "account_age", "account younger than 30 days")
		case age < 90:
			add(10, "account_age", "account younger than 90 days")
		case age < 365:
			add(5, "account_age", "account younger than 365 days")
		}
	}

	// Prior 24h burst.
	if prior, ok := ParseNumber(rec.Field(domain.ColPrior24h)); ok {
		switch {
		case prior > 10:
			add(10, "prior_24h", "more than 10 prior transactions in 24h")
		case prior > 3:
			add(5, "prior_24h", "more than 3 prior transactions in 24h")
		}
	}

	return clamp(score), factors
}

// Categorize walks the configured ranges in declaration order and returns
// the first inclusive match, or the fallback category. Total for any score.
func (s *Snapshot) Categorize(score int) string {
	for _, c := range s.rules.Categories {
		if score >= c.Lo && score <= c.Hi {
			return c.Name
		}
	}
	return s.rules.FallbackCategory
}

// ScoreRecord scores and categorizes one record.
func (s *Snapshot) ScoreRecord(rec domain.Record) domain.ScoredRecord {
	score, factors := s.Score(rec)
	return domain.ScoredRecord{
		Record:   rec,
		Score:    score,
		Category: s.Categorize(score),
		Factors:  factors,
	}
}

// HighestCategory returns the top category name for this snapshot.
func (s *Snapshot) HighestCategory() string {
	return s.rules.HighestCategory()
}

func clamp(score int) int {
	if score > MaxScore {
		return MaxScore
	}
	if score < MinScore {
		return MinScore
	}
	return score
}
