package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CanonicalDateLayout is the timestamp format parsed dates are rewritten to.
const CanonicalDateLayout = "2006-01-02T15:04:05.000Z"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
}

// NormalizeDate converts v to CanonicalDateLayout in UTC. Values that match
// no known layout come back unchanged; empty stays empty.
func NormalizeDate(v string) string {
	if t, ok := ParseDate(v); ok {
		return t.Format(CanonicalDateLayout)
	}
	return strings.TrimSpace(v)
}

// ParseDate reads v with the canonical layout or any accepted input layout.
func ParseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(CanonicalDateLayout, v); err == nil {
		return t.UTC(), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseQuantity reads the leading integer of v, 0 when there is none.
func ParseQuantity(v string) int {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	end := 0
	if end < len(v) && (v[end] == '-' || v[end] == '+') {
		end++
	}
	digits := end
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return 0
	}
	return n
}

// ParseAmount reads a money amount such as "5.00" or "$1,250.50"; zero on failure.
func ParseAmount(v string) decimal.Decimal {
	v = strings.TrimSpace(v)
	v = strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// coerceField applies the header-driven conversions to one raw cell value.
// Quantities are kept as strings here and read with ParseQuantity.
func coerceField(normalizedHeader string, v string) string {
	v = strings.TrimSpace(v)
	if strings.Contains(normalizedHeader, "date") {
		return NormalizeDate(v)
	}
	return v
}
