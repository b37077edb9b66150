package domain

import (
	"bytes"
	"encoding/json"
)

// Required input columns, in canonical order. Every input source must carry
// all of them; extra columns are preserved and passed through untouched.
const (
	ColTxnID           = "txn_id"
	ColTimestamp       = "timestamp"
	ColSenderCountry   = "sender_country"
	ColReceiverCountry = "receiver_country"
	ColAmountUSD       = "amount_usd"
	ColChannel         = "channel"
	ColCustomerAge     = "customer_age_days"
	ColPrior24h        = "prior_txn_24h"
	ColSanctionedFlag  = "sanctioned_party_flag"
	ColKYCTier         = "kyc_tier"
	ColMerchantCat     = "merchant_category"
	ColVelocity1h      = "velocity_1h"
	ColVelocity24h     = "velocity_24h"
	ColDeviceChange    = "device_change_flag"
)

// RequiredColumns returns the required column names in canonical order.
// Callers may modify the returned slice.
func RequiredColumns() []string {
	return []string{
		ColTxnID,
		ColTimestamp,
		ColSenderCountry,
		ColReceiverCountry,
		ColAmountUSD,
		ColChannel,
		ColCustomerAge,
		ColPrior24h,
		ColSanctionedFlag,
		ColKYCTier,
		ColMerchantCat,
		ColVelocity1h,
		ColVelocity24h,
		ColDeviceChange,
	}
}

// Record is one transaction as ingested: raw string values keyed by column
// name. Values stay exactly as the source delivered them; all numeric and
// flag interpretation happens in the scoring engine's field parser, so a
// malformed value never fails ingestion.
type Record map[string]string

// Field returns the raw value for a column, or "" when the column is absent.
func (r Record) Field(name string) string {
	return r[name]
}

// TxnID returns the record's identifier column, used in logs and tie-breaks.
func (r Record) TxnID() string {
	return r[ColTxnID]
}

// UnmarshalJSON accepts a JSON object whose values may be strings, numbers,
// booleans, or null, and normalizes every scalar to its tabular string form:
// numbers keep their literal text, true/false become "true"/"false", null
// becomes "". This keeps the JSON surface and the CSV surface on one parsing
// path.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	rec := make(Record, len(raw))
	for k, v := range raw {
		rec[k] = scalarString(v)
	}
	*r = rec
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		// Nested arrays/objects are kept as their JSON text.
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Batch is an ingested record set plus the column order it arrived with.
// Columns always contains every required column; extras follow in input
// order and ride through to export unchanged.
type Batch struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// RiskFactor is one rule contribution to a record's score.
type RiskFactor struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
	Points int    `json:"points"`
}

// ScoredRecord is a Record plus its computed score and category.
type ScoredRecord struct {
	Record   Record       `json:"record"`
	Score    int          `json:"risk_score"`
	Category string       `json:"risk_category"`
	Factors  []RiskFactor `json:"factors,omitempty"`
}
