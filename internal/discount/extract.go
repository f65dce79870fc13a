// Package discount recovers discount metadata from the structured record
// enclosing an accepted promo-code occurrence. The primary strategy parses
// the smallest syntactically balanced record around the offset; a windowed
// regex fallback handles malformed or partially streamed payloads.
package discount

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/titanous/json5"
	"golang.org/x/text/currency"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

const (
	// maxLookback bounds the backward scan for candidate opening braces.
	maxLookback = 16 * 1024
	// maxCandidates bounds how many enclosing records are attempted before
	// giving up on structural parsing.
	maxCandidates = 32
	// windowRadius is half the size of the fallback text window.
	windowRadius = 300
)

// FromOffset extracts a discount record for a code occurrence at the given
// byte offset in body. Returns nil when no discount data can be recovered;
// an all-null record is never returned. Extraction is deterministic: the
// same body and offset always yield an identical record.
func FromOffset(body string, offset int) *model.DiscountRecord {
	if offset < 0 || offset >= len(body) {
		return nil
	}

	if rec := fromBalancedRecord(body, offset); rec.Present() {
		return rec
	}
	if rec := fromWindow(body, offset); rec.Present() {
		return rec
	}
	return nil
}

// fromBalancedRecord walks backward from the offset over candidate opening
// braces, nearest first, and tries to parse each balanced slice that
// encloses the offset. The first parse yielding discount fields wins, so
// the smallest enclosing record takes priority over its ancestors.
func fromBalancedRecord(body string, offset int) *model.DiscountRecord {
	stop := offset - maxLookback
	if stop < 0 {
		stop = 0
	}

	tried := 0
	for i := offset; i >= stop && tried < maxCandidates; i-- {
		if body[i] != '{' {
			continue
		}
		end := balancedEnd(body, i)
		if end <= offset {
			continue
		}
		tried++
		parsed, ok := parseRecord(body[i:end])
		if !ok {
			continue
		}
		if rec := fieldsFromRecord(parsed); rec.Present() {
			return rec
		}
	}
	return nil
}

// balancedEnd returns the index one past the brace that closes the record
// opening at start, tracking string quoting and escape sequences. Returns
// -1 when the record never closes within the body.
func balancedEnd(body string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(body); i++ {
		c := body[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
	}
	return -1
}

// parseRecord attempts the parse ladder over a record slice: strict JSON,
// the quote-unescaped variant (streaming/component transports double-escape
// quotes), then JSON5 for trailing commas and unquoted keys.
func parseRecord(slice string) (map[string]any, bool) {
	for _, text := range []string{slice, unescapeQuotes(slice)} {
		var m map[string]any
		if err := json.Unmarshal([]byte(text), &m); err == nil {
			return m, true
		}
		if err := json5.Unmarshal([]byte(text), &m); err == nil {
			return m, true
		}
	}
	return nil, false
}

func unescapeQuotes(s string) string {
	return strings.ReplaceAll(s, `\"`, `"`)
}

// Discount-bearing field names, matched case-insensitively after stripping
// underscores.
var (
	percentKeys  = map[string]bool{"discountoff": true, "percentoff": true, "discountpercentage": true, "percentage": true, "percent": true}
	amountKeys   = map[string]bool{"amountoff": true, "discountamount": true}
	centsKeys    = map[string]bool{"amountoffcents": true, "discountcents": true}
	currencyKeys = map[string]bool{"currency": true, "currencycode": true}
)

func canonKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(k), "_", "")
}

// fieldsFromRecord walks a parsed record depth-first (sorted keys, so the
// walk is deterministic) and normalizes the first value found for each
// discount field.
func fieldsFromRecord(record map[string]any) *model.DiscountRecord {
	rec := &model.DiscountRecord{}
	walkRecord(record, rec)
	return rec
}

func walkRecord(v any, rec *model.DiscountRecord) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ck := canonKey(k)
			switch {
			case percentKeys[ck] && rec.PercentOff == nil:
				rec.PercentOff = normalizePercent(val[k])
			case amountKeys[ck] && rec.AmountOff == nil:
				rec.AmountOff = normalizeAmount(val[k])
			case centsKeys[ck] && rec.AmountOffCents == nil:
				rec.AmountOffCents = normalizeCents(val[k])
			case currencyKeys[ck] && rec.Currency == "":
				rec.Currency = normalizeCurrency(val[k])
			}
		}
		for _, k := range keys {
			walkRecord(val[k], rec)
		}
	case []any:
		for _, child := range val {
			walkRecord(child, rec)
		}
	}
}

// normalizePercent maps the several shapes percent fields arrive in:
// a string with a trailing "%" is taken verbatim, a bare number above 1 is
// already a percent, and a fraction in (0,1] is scaled by 100 (so exactly
// 1.0 means 100 percent).
func normalizePercent(v any) *float64 {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if trimmed, ok := strings.CutSuffix(s, "%"); ok {
			n, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
			if err != nil {
				return nil
			}
			return &n
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return normalizePercent(n)
	case float64:
		switch {
		case val > 1:
			return &val
		case val > 0:
			scaled := val * 100
			return &scaled
		}
	}
	return nil
}

func normalizeAmount(v any) *float64 {
	switch val := v.(type) {
	case float64:
		if val > 0 {
			return &val
		}
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(val, "$")), 64)
		if err == nil && n > 0 {
			return &n
		}
	}
	return nil
}

func normalizeCents(v any) *int64 {
	switch val := v.(type) {
	case float64:
		if val > 0 {
			n := int64(val)
			return &n
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err == nil && n > 0 {
			return &n
		}
	}
	return nil
}

// normalizeCurrency canonicalizes ISO 4217 codes; unrecognized values pass
// through trimmed so the raw signal is not lost.
func normalizeCurrency(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if unit, err := currency.ParseISO(s); err == nil {
		return unit.String()
	}
	return s
}
