package rules

import (
	"strconv"
	"strings"
)

// ParseNumber interprets a raw field value as a number. A value that is
// empty, whitespace-only, or not numeric is absent: (0, false), never an
// error. Every numeric rule step goes through this function so malformed
// rows degrade to a zero contribution instead of failing the batch.
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseFlag interprets a raw field value as a boolean flag. The accepted
// truthy forms are exactly "1" and case-insensitive "true"; everything else,
// including unparseable values, is false. Both the sanctioned-party flag and
// the device-change flag use this.
func ParseFlag(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "1" {
		return true
	}
	return strings.EqualFold(s, "true")
}
