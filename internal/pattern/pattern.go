// Package pattern holds the fixed, ordered set of token-recognition rules
// used to locate promo-code-shaped strings in captured response bodies and
// URLs. The rules themselves are stateless; scanning functions return every
// match with its offset so callers can dedupe later.
package pattern

import (
	"regexp"
	"strings"
)

// codeShape is the lexical shape of a promo code: the "promo-" prefix
// followed by at least six lowercase alphanumeric/hyphen characters.
// Matching is case-insensitive; Normalize folds matches to lowercase.
const codeShape = `promo-[a-z0-9][a-z0-9-]{5,}`

// Kind identifies which recognition rule produced a match, in priority order.
type Kind int

const (
	// KindStructured matches the code attribute of an explicit popup promo
	// record, e.g. "popupPromoCode":{"code":"promo-..."}.
	KindStructured Kind = iota
	// KindQueryParam matches a code carried as a URL query parameter.
	KindQueryParam
	// KindQuoted matches any quoted occurrence of the code shape.
	KindQuoted
	// KindBare matches an unquoted occurrence of the code shape.
	KindBare
)

var (
	reStructured = regexp.MustCompile(`(?i)popupPromoCode\\?"?\s*:\s*\\?"?\{?[^{}]{0,200}?\\?"?code\\?"?\s*:\s*\\?"(` + codeShape + `)\\?"`)
	reQueryParam = regexp.MustCompile(`(?i)[?&](?:promo_?code|coupon|code)=(` + codeShape + `)`)
	reQuoted     = regexp.MustCompile(`(?i)\\?"(` + codeShape + `)\\?"`)
	reBare       = regexp.MustCompile(`(?i)\b(` + codeShape + `)\b`)
)

// Rule pairs a recognition kind with its compiled expression.
type Rule struct {
	Kind Kind
	re   *regexp.Regexp
}

// Rules returns the recognition rules in their fixed priority order. The
// slice is freshly allocated; the compiled expressions are shared.
func Rules() []Rule {
	return []Rule{
		{KindStructured, reStructured},
		{KindQueryParam, reQueryParam},
		{KindQuoted, reQuoted},
		{KindBare, reBare},
	}
}

// Match is one located code with the byte offset of the code token itself
// (not of the surrounding rule match) within the scanned text.
type Match struct {
	Kind   Kind
	Code   string
	Offset int
}

// Find runs one rule over text and returns every match. The returned slice
// is nil when nothing matched.
func (r Rule) Find(text string) []Match {
	idx := r.re.FindAllStringSubmatchIndex(text, -1)
	if idx == nil {
		return nil
	}
	matches := make([]Match, 0, len(idx))
	for _, m := range idx {
		// Group 1 is always the code token.
		start, end := m[2], m[3]
		if start < 0 {
			continue
		}
		matches = append(matches, Match{
			Kind:   r.Kind,
			Code:   Normalize(text[start:end]),
			Offset: start,
		})
	}
	return matches
}

// Normalize case-folds a raw code token to its canonical lowercase form.
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// IsCode reports whether s is exactly one well-formed promo code.
var reExact = regexp.MustCompile(`(?i)^` + codeShape + `$`)

func IsCode(s string) bool {
	return reExact.MatchString(s)
}

// prechecks are the cheap substring markers that gate full rule evaluation:
// a body that contains none of them cannot match any rule.
var prechecks = []string{"promo-", "popuppromocode", "code="}

// Possible reports whether text can possibly contain a match, using a cheap
// case-folded substring scan. Full rule evaluation is skipped when false.
func Possible(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range prechecks {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
