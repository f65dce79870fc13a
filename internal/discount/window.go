package discount

import (
	"regexp"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

// Field-shaped expressions applied to the fallback window. These mirror the
// structural field names but tolerate broken or truncated records.
var (
	reWinPercent = regexp.MustCompile(`(?i)"?(?:discount_?off|percent_?off|discount_?percentage)"?\s*:\s*\\?"?\s*([0-9]+(?:\.[0-9]+)?)\s*(%?)`)
	reWinAmount  = regexp.MustCompile(`(?i)"?(?:amount_?off|discount_?amount)"?\s*:\s*\\?"?\s*\$?([0-9]+(?:\.[0-9]+)?)`)
	reWinCents   = regexp.MustCompile(`(?i)"?(?:amount_?off_?cents|discount_?cents)"?\s*:\s*\\?"?\s*([0-9]+)\b`)
	reWinCurr    = regexp.MustCompile(`(?i)"?currency(?:_?code)?"?\s*:\s*\\?"\s*([A-Za-z]{3})\s*\\?"`)
)

// fromWindow recovers discount fields from a fixed-size text window centered
// on the offset when no balanced record could be parsed. Less precise than
// structural parsing, but it salvages data from partially streamed payloads.
func fromWindow(body string, offset int) *model.DiscountRecord {
	lo := offset - windowRadius
	if lo < 0 {
		lo = 0
	}
	hi := offset + windowRadius
	if hi > len(body) {
		hi = len(body)
	}
	window := unescapeQuotes(body[lo:hi])

	rec := &model.DiscountRecord{}
	if m := reWinPercent.FindStringSubmatch(window); m != nil {
		if m[2] == "%" {
			rec.PercentOff = parseFloatPtr(m[1])
		} else {
			rec.PercentOff = normalizePercent(mustFloat(m[1]))
		}
	}
	if m := reWinAmount.FindStringSubmatch(window); m != nil {
		rec.AmountOff = parseFloatPtr(m[1])
	}
	if m := reWinCents.FindStringSubmatch(window); m != nil {
		rec.AmountOffCents = parseIntPtr(m[1])
	}
	if m := reWinCurr.FindStringSubmatch(window); m != nil {
		rec.Currency = normalizeCurrency(m[1])
	}
	return rec
}
