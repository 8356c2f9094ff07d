package checkin

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// The upstream encodes the same concept differently depending on which
// source produced it. Every tolerance rule lives here so the rest of the
// package only sees canonical values.

// coerceBool resolves a boolean-like wire value. true, 1, "1", "true" and
// "yes" are true; everything else, including absence, is false.
func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t == 1
	case int64:
		return t == 1
	case float64:
		return t == 1
	case json.Number:
		n, err := t.Int64()
		return err == nil && n == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "sim":
			return true
		}
	}
	return false
}

// coerceID renders an identifier as a string. Numbers are formatted without
// a fractional part; empty, zero-length and non-scalar values yield "".
func coerceID(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

// coerceInt resolves a count. Anything that is not a finite number, or a
// string holding one, becomes zero. Negative counts are clamped to zero.
func coerceInt(v any) int {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		if !math.IsNaN(t) && !math.IsInf(t, 0) {
			n = int(t)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			n = int(i)
		} else if f, err := t.Float64(); err == nil {
			n = int(f)
		}
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.Atoi(s); err == nil {
			n = i
		} else if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			n = int(f)
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

// coerceAmount resolves a monetary amount. ok is false only when the value
// is absent; a present value that cannot be read as a number yields zero
// with ok true, so the record still takes part in reconciliation.
func coerceAmount(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return t, true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, true
		}
		return decimal.NewFromFloat(t), true
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return d, true
		}
		return decimal.Zero, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, false
		}
		// Brazilian-formatted amounts ("25,50") are common at the door.
		if strings.Contains(s, ",") && !strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", ".")
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return d, true
		}
		return decimal.Zero, true
	}
	return decimal.Zero, true
}

// parseFeeKind maps the labels used across sources onto a FeeKind.
func parseFeeKind(s string) (FeeKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "complimentary", "vip", "free", "cortesia":
		return Complimentary, true
	case "dry_entry", "dry", "seco", "entrada_seca":
		return DryEntry, true
	case "consumption_credit", "consumption", "consuma", "consumacao", "consumação":
		return ConsumptionCredit, true
	}
	return "", false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// parseTimestamp accepts the handful of layouts the upstream emits. Zero
// and malformed values return nil.
func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") || strings.HasPrefix(s, "0001-01-01") {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// normalizeName is the deduplication key for a person's name.
func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func present(s string) bool { return strings.TrimSpace(s) != "" }
