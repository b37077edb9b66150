package rules

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// neutralRecord is a complete record where every rule contributes zero:
// small amount, domestic corridor, full KYC, low velocity, old account.
// Its score is exactly the base score.
func neutralRecord() domain.Record {
	return domain.Record{
		domain.ColTxnID:           "tx-001",
		domain.ColTimestamp:       "2025-06-01T12:00:00Z",
		domain.ColSenderCountry:   "US",
		domain.ColReceiverCountry: "US",
		domain.ColAmountUSD:       "500",
		domain.ColChannel:         "web",
		domain.ColCustomerAge:     "400",
		domain.ColPrior24h:        "1",
		domain.ColSanctionedFlag:  "0",
		domain.ColKYCTier:         "full",
		domain.ColMerchantCat:     "retail",
		domain.ColVelocity1h:      "1",
		domain.ColVelocity24h:     "2",
		domain.ColDeviceChange:    "0",
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(domain.DefaultRuleSet())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func TestScoreBaseline(t *testing.T) {
	engine := newTestEngine(t)

	score, factors := engine.Score(neutralRecord())
	if score != BaseScore {
		t.Errorf("expected score %d, got %d", BaseScore, score)
	}
	if len(factors) != 1 {
		t.Fatalf("expected 1 factor, got %d", len(factors))
	}
	if factors[0].Name != "base" {
		t.Errorf("expected factor 'base', got '%s'", factors[0].Name)
	}
	if got := engine.Categorize(score); got != "Low" {
		t.Errorf("expected category 'Low', got '%s'", got)
	}
}

func TestScoreSanctioned(t *testing.T) {
	engine := newTestEngine(t)

	rec := neutralRecord()
	rec[domain.ColSanctionedFlag] = "1"

	score, factors := engine.Score(rec)
	if score != SanctionsScore {
		t.Errorf("expected score %d, got %d", SanctionsScore, score)
	}
	if len(factors) != 1 {
		t.Fatalf("expected 1 factor, got %d", len(factors))
	}
	if factors[0].Name != "sanctioned_party" {
		t.Errorf("expected factor 'sanctioned_party', got '%s'", factors[0].Name)
	}
	if got := engine.Categorize(score); got != "High" {
		t.Errorf("expected category 'High', got '%s'", got)
	}
}

func TestScoreSanctionedDominates(t *testing.T) {
	engine := newTestEngine(t)

	// The flag wins no matter how malformed or extreme the rest of the
	// record is.
	records := []domain.Record{
		{domain.ColSanctionedFlag: "true"},
		{domain.ColSanctionedFlag: "TRUE", domain.ColAmountUSD: "-999999"},
		{
			domain.ColSanctionedFlag:  " 1 ",
			domain.ColAmountUSD:       "not-a-number",
			domain.ColSenderCountry:   "??",
			domain.ColReceiverCountry: "",
			domain.ColKYCTier:         "platinum",
			domain.ColVelocity1h:      "1e9",
			domain.ColCustomerAge:     "-5",
		},
	}

	for i, rec := range records {
		score, factors := engine.Score(rec)
		if score != SanctionsScore {
			t.Errorf("record %d: expected score %d, got %d", i, SanctionsScore, score)
		}
		if len(factors) != 1 || factors[0].Name != "sanctioned_party" {
			t.Errorf("record %d: expected single sanctioned_party factor, got %v", i, factors)
		}
	}
}

func TestScoreAllRulesFire(t *testing.T) {
	engine := newTestEngine(t)

	rec := domain.Record{
		domain.ColTxnID:           "tx-hot",
		domain.ColTimestamp:       "2025-06-01T12:00:00Z",
		domain.ColSenderCountry:   "US",
		domain.ColReceiverCountry: "IR",
		domain.ColAmountUSD:       "12000",
		domain.ColChannel:         "web",
		domain.ColCustomerAge:     "10",
		domain.ColPrior24h:        "15",
		domain.ColSanctionedFlag:  "0",
		domain.ColKYCTier:         "tier_1",
		domain.ColMerchantCat:     "gambling",
		domain.ColVelocity1h:      "6",
		domain.ColVelocity24h:     "25",
		domain.ColDeviceChange:    "1",
	}

	score, factors := engine.Score(rec)

	// Raw sum is 130; the clamp caps it at 100.
	if score != MaxScore {
		t.Errorf("expected score %d, got %d", MaxScore, score)
	}
	if got := engine.Categorize(score); got != "High" {
		t.Errorf("expected category 'High', got '%s'", got)
	}

	wantFactors := []string{
		"base",
		"amount_tier",
		"cross_border",
		"high_risk_country",
		"kyc_tier",
		"velocity_1h",
		"velocity_24h",
		"risky_merchant",
		"device_change",
		"account_age",
		"prior_24h",
	}
	if len(factors) != len(wantFactors) {
		t.Fatalf("expected %d factors, got %d: %v", len(wantFactors), len(factors), factors)
	}
	total := 0
	for i, f := range factors {
		if f.Name != wantFactors[i] {
			t.Errorf("factor %d: expected '%s', got '%s'", i, wantFactors[i], f.Name)
		}
		total += f.Points
	}
	if total != 130 {
		t.Errorf("expected factor points to sum to 130, got %d", total)
	}
}

func TestScoreAmountTiers(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		amount string
		want   int
	}{
		{"", 0},
		{"   ", 0},
		{"not-a-number", 0},
		{"12,000", 0},
		{"999.99", 0},
		{"1000", 0},
		{"1000.01", 10},
		{"5000", 10},
		{"5000.01", 15},
		{"10000", 15},
		{"10000.01", 20},
		{"250000", 20},
	}

	for _, tt := range tests {
		rec := neutralRecord()
		rec[domain.ColAmountUSD] = tt.amount
		score, _ := engine.Score(rec)
		if got := score - BaseScore; got != tt.want {
			t.Errorf("amount %q: expected +%d, got +%d", tt.amount, tt.want, got)
		}
	}
}

func TestScoreCorridor(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name     string
		sender   string
		receiver string
		want     int
	}{
		{"same country", "US", "US", 0},
		{"cross-border", "US", "GB", 5},
		{"cross-border into high-risk", "US", "IR", 20},
		{"high-risk both sides", "IR", "IR", 15},
		{"high-risk sender only, receiver blank", "RU", "", 15},
		{"both blank", "", "", 0},
		{"one blank, low risk", "", "GB", 0},
		{"case and whitespace normalized same", " us ", "Us", 0},
		{"case normalized cross-border", "us", " gb ", 5},
		{"lowercase high-risk", "us", "ir", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := neutralRecord()
			rec[domain.ColSenderCountry] = tt.sender
			rec[domain.ColReceiverCountry] = tt.receiver
			score, _ := engine.Score(rec)
			if got := score - BaseScore; got != tt.want {
				t.Errorf("corridor %q>%q: expected +%d, got +%d", tt.sender, tt.receiver, tt.want, got)
			}
		})
	}
}

func TestScoreKYCTiers(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		tier string
		want int
	}{
		{"tier_1", 10},
		{"basic", 10},
		{"lite", 10},
		{"tier_2", 5},
		{"standard", 5},
		{"tier_3", 0},
		{"enhanced", 0},
		{"full", 0},
		{"Full", 0},
		{" TIER_1 ", 10},
		{"platinum", 5},
		{"", 5},
	}

	for _, tt := range tests {
		rec := neutralRecord()
		rec[domain.ColKYCTier] = tt.tier
		score, _ := engine.Score(rec)
		if got := score - BaseScore; got != tt.want {
			t.Errorf("kyc tier %q: expected +%d, got +%d", tt.tier, tt.want, got)
		}
	}
}

func TestScoreVelocity(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("OneHourWindow", func(t *testing.T) {
		tests := []struct {
			v1h  string
			want int
		}{
			{"", 0},
			{"0", 0},
			{"2", 0},
			{"2.5", 8},
			{"5", 8},
			{"5.1", 15},
			{"6", 15},
			{"100", 15},
		}
		for _, tt := range tests {
			rec := neutralRecord()
			rec[domain.ColVelocity1h] = tt.v1h
			score, _ := engine.Score(rec)
			if got := score - BaseScore; got != tt.want {
				t.Errorf("velocity_1h %q: expected +%d, got +%d", tt.v1h, tt.want, got)
			}
		}
	})

	t.Run("DayWindow", func(t *testing.T) {
		tests := []struct {
			v24h string
			want int
		}{
			{"", 0},
			{"10", 0},
			{"11", 5},
			{"20", 5},
			{"21", 10},
			{"500", 10},
		}
		for _, tt := range tests {
			rec := neutralRecord()
			rec[domain.ColVelocity24h] = tt.v24h
			score, _ := engine.Score(rec)
			if got := score - BaseScore; got != tt.want {
				t.Errorf("velocity_24h %q: expected +%d, got +%d", tt.v24h, tt.want, got)
			}
		}
	})
}

func TestScoreAccountAge(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		age  string
		want int
	}{
		{"0", 15},
		{"29", 15},
		{"29.9", 15},
		{"30", 10},
		{"89", 10},
		{"90", 5},
		{"364", 5},
		{"365", 0},
		{"4000", 0},
		{"", 0},
	}

	for _, tt := range tests {
		rec := neutralRecord()
		rec[domain.ColCustomerAge] = tt.age
		score, _ := engine.Score(rec)
		if got := score - BaseScore; got != tt.want {
			t.Errorf("account age %q: expected +%d, got +%d", tt.age, tt.want, got)
		}
	}
}

func TestScorePriorActivity(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		prior string
		want  int
	}{
		{"0", 0},
		{"3", 0},
		{"3.5", 5},
		{"4", 5},
		{"10", 5},
		{"11", 10},
		{"50", 10},
		{"", 0},
	}

	for _, tt := range tests {
		rec := neutralRecord()
		rec[domain.ColPrior24h] = tt.prior
		score, _ := engine.Score(rec)
		if got := score - BaseScore; got != tt.want {
			t.Errorf("prior_txn_24h %q: expected +%d, got +%d", tt.prior, tt.want, got)
		}
	}
}

func TestScoreMerchantCategory(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		mcc  string
		want int
	}{
		{"gambling", 10},
		{" GAMBLING ", 10},
		{"crypto", 10},
		{"virtual_goods", 10},
		{"adult", 10},
		{"gift_cards", 10},
		{"retail", 0},
		{"groceries", 0},
		{"", 0},
	}

	for _, tt := range tests {
		rec := neutralRecord()
		rec[domain.ColMerchantCat] = tt.mcc
		score, _ := engine.Score(rec)
		if got := score - BaseScore; got != tt.want {
			t.Errorf("merchant category %q: expected +%d, got +%d", tt.mcc, tt.want, got)
		}
	}
}

func TestScoreDeviceChange(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		flag string
		want int
	}{
		{"1", 10},
		{"true", 10},
		{"TRUE", 10},
		{" true ", 10},
		{"0", 0},
		{"false", 0},
		{"yes", 0},
		{"1.0", 0},
	}

	for _, tt := range tests {
		rec := neutralRecord()
		rec[domain.ColDeviceChange] = tt.flag
		score, _ := engine.Score(rec)
		if got := score - BaseScore; got != tt.want {
			t.Errorf("device change %q: expected +%d, got +%d", tt.flag, tt.want, got)
		}
	}
}

func TestScoreAbsentFieldsAreNeutral(t *testing.T) {
	engine := newTestEngine(t)

	// A record with nothing but an id: only the base score and the KYC
	// default apply. Blank and garbage values score the same as absent ones.
	bare := domain.Record{domain.ColTxnID: "tx-empty"}
	blank := domain.Record{
		domain.ColTxnID:           "tx-blank",
		domain.ColSenderCountry:   "",
		domain.ColReceiverCountry: "",
		domain.ColAmountUSD:       "",
		domain.ColCustomerAge:     "  ",
		domain.ColPrior24h:        "n/a",
		domain.ColSanctionedFlag:  "",
		domain.ColKYCTier:         "",
		domain.ColMerchantCat:     "",
		domain.ColVelocity1h:      "oops",
		domain.ColVelocity24h:     "",
		domain.ColDeviceChange:    "",
	}

	want := BaseScore + 5 // base plus KYC default for the unknown tier

	bareScore, _ := engine.Score(bare)
	if bareScore != want {
		t.Errorf("bare record: expected score %d, got %d", want, bareScore)
	}
	blankScore, _ := engine.Score(blank)
	if blankScore != bareScore {
		t.Errorf("blank record: expected score %d to match bare record, got %d", bareScore, blankScore)
	}
}

func TestScoreDeterminism(t *testing.T) {
	engine := newTestEngine(t)

	rec := neutralRecord()
	rec[domain.ColAmountUSD] = "7500"
	rec[domain.ColReceiverCountry] = "KP"
	rec[domain.ColKYCTier] = "basic"

	firstScore, firstFactors := engine.Score(rec)
	for i := 0; i < 100; i++ {
		score, factors := engine.Score(rec)
		if score != firstScore {
			t.Fatalf("run %d: expected score %d, got %d", i, firstScore, score)
		}
		if len(factors) != len(firstFactors) {
			t.Fatalf("run %d: expected %d factors, got %d", i, len(firstFactors), len(factors))
		}
		for j := range factors {
			if factors[j] != firstFactors[j] {
				t.Fatalf("run %d: factor %d differs: %v vs %v", i, j, factors[j], firstFactors[j])
			}
		}
	}
}

func TestCategorize(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		score int
		want  string
	}{
		{0, "Low"},
		{10, "Low"},
		{39, "Low"},
		{40, "Medium"},
		{55, "Medium"},
		{69, "Medium"},
		{70, "High"},
		{100, "High"},
	}

	for _, tt := range tests {
		if got := engine.Categorize(tt.score); got != tt.want {
			t.Errorf("score %d: expected '%s', got '%s'", tt.score, tt.want, got)
		}
	}

	// Every clamped score maps to some category.
	for score := 0; score <= 100; score++ {
		if got := engine.Categorize(score); got == "" {
			t.Fatalf("score %d: expected a category, got empty string", score)
		}
	}
}

func TestCategorizeDeclarationOrder(t *testing.T) {
	rs := domain.DefaultRuleSet()
	rs.Categories = []domain.CategoryRange{
		{Name: "Watch", Lo: 0, Hi: 100},
		{Name: "Clear", Lo: 0, Hi: 39},
	}
	engine, err := NewEngine(rs)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	// Overlapping ranges resolve to the first declared match.
	if got := engine.Categorize(10); got != "Watch" {
		t.Errorf("expected 'Watch', got '%s'", got)
	}
}

func TestCategorizeFallback(t *testing.T) {
	rs := domain.DefaultRuleSet()
	rs.Categories = []domain.CategoryRange{
		{Name: "Elevated", Lo: 50, Hi: 100},
	}
	rs.FallbackCategory = "Unscored"
	engine, err := NewEngine(rs)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if got := engine.Categorize(10); got != "Unscored" {
		t.Errorf("expected fallback 'Unscored', got '%s'", got)
	}
	if got := engine.Categorize(80); got != "Elevated" {
		t.Errorf("expected 'Elevated', got '%s'", got)
	}
}

func TestScoreRecord(t *testing.T) {
	engine := newTestEngine(t)

	rec := neutralRecord()
	scored := engine.Snapshot().ScoreRecord(rec)

	if scored.Score != BaseScore {
		t.Errorf("expected score %d, got %d", BaseScore, scored.Score)
	}
	if scored.Category != "Low" {
		t.Errorf("expected category 'Low', got '%s'", scored.Category)
	}
	if len(scored.Factors) != 1 {
		t.Errorf("expected 1 factor, got %d", len(scored.Factors))
	}
	if scored.Record.TxnID() != "tx-001" {
		t.Errorf("expected record to be preserved, got txn_id '%s'", scored.Record.TxnID())
	}
}

func TestNewEngineRejectsInvalidRules(t *testing.T) {
	if _, err := NewEngine(nil); err == nil {
		t.Error("expected error for nil rule set")
	}

	rs := domain.DefaultRuleSet()
	rs.Categories = nil
	if _, err := NewEngine(rs); err == nil {
		t.Error("expected error for rule set without categories")
	}
}

func TestEngineReload(t *testing.T) {
	engine := newTestEngine(t)

	next := domain.DefaultRuleSet()
	next.Categories = []domain.CategoryRange{
		{Name: "Pass", Lo: 0, Hi: 59},
		{Name: "Review", Lo: 60, Hi: 100},
	}
	next.FallbackCategory = "Pass"

	if err := engine.Reload(next); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := engine.Categorize(10); got != "Pass" {
		t.Errorf("expected 'Pass' after reload, got '%s'", got)
	}

	// An invalid reload errors and keeps the current tables.
	bad := domain.DefaultRuleSet()
	bad.Categories = nil
	if err := engine.Reload(bad); err == nil {
		t.Fatal("expected error reloading invalid rule set")
	}
	if got := engine.Categorize(10); got != "Pass" {
		t.Errorf("expected 'Pass' after failed reload, got '%s'", got)
	}
}

func TestSnapshotPinsRules(t *testing.T) {
	engine := newTestEngine(t)
	snap := engine.Snapshot()

	next := domain.DefaultRuleSet()
	next.Categories = []domain.CategoryRange{{Name: "Only", Lo: 0, Hi: 100}}
	next.FallbackCategory = "Only"
	if err := engine.Reload(next); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	// The pinned snapshot still categorizes with the tables it was taken
	// from; the engine serves the new ones.
	if got := snap.Categorize(10); got != "Low" {
		t.Errorf("expected snapshot to keep 'Low', got '%s'", got)
	}
	if got := engine.Categorize(10); got != "Only" {
		t.Errorf("expected engine to serve 'Only', got '%s'", got)
	}
}

func TestHighestCategory(t *testing.T) {
	engine := newTestEngine(t)
	if got := engine.Snapshot().HighestCategory(); got != "High" {
		t.Errorf("expected 'High', got '%s'", got)
	}

	rs := domain.DefaultRuleSet()
	rs.Categories = []domain.CategoryRange{
		{Name: "Critical", Lo: 80, Hi: 100},
		{Name: "Normal", Lo: 0, Hi: 79},
	}
	custom, err := NewEngine(rs)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if got := custom.Snapshot().HighestCategory(); got != "Critical" {
		t.Errorf("expected 'Critical', got '%s'", got)
	}
}
