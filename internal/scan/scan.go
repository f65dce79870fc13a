// Package scan applies the pattern library to captured responses, producing
// raw code occurrences. Scanning is pure: no shared match state, every call
// over the same response yields the same occurrences in the same order.
package scan

import (
	"net/url"
	"strings"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
	"github.com/10aburnett/popuppromocodes-script/internal/pattern"
)

// Response scans one captured response and returns every code occurrence in
// it. All pattern rules run over the whole body (no short-circuit), so one
// response can yield multiple occurrences at different offsets; duplicates
// are allowed here and collapsed later by ranking.
//
// onlyCode, when non-empty, restricts the scan to that single normalized
// code; occurrences of other codes are dropped. This serves the discount
// backfill pass, which revisits pages for an already-known code.
func Response(resp *model.CapturedResponse, onlyCode string) []model.CodeOccurrence {
	if resp == nil {
		return nil
	}

	var out []model.CodeOccurrence

	if pattern.Possible(resp.Body) {
		for _, rule := range pattern.Rules() {
			for _, m := range rule.Find(resp.Body) {
				if onlyCode != "" && m.Code != onlyCode {
					continue
				}
				out = append(out, model.CodeOccurrence{
					Code:       m.Code,
					ByteOffset: m.Offset,
					Source:     resp,
				})
			}
		}
	}

	for _, code := range queryParamCodes(resp.URL) {
		if onlyCode != "" && code != onlyCode {
			continue
		}
		out = append(out, model.CodeOccurrence{
			Code:       code,
			ByteOffset: -1,
			FromURL:    true,
			Source:     resp,
		})
	}

	return out
}

// All scans every response in a capture, in order.
func All(responses []model.CapturedResponse, onlyCode string) []model.CodeOccurrence {
	var out []model.CodeOccurrence
	for i := range responses {
		out = append(out, Response(&responses[i], onlyCode)...)
	}
	return out
}

// queryParamCodes extracts well-formed codes carried in the query string of
// a response URL. Parameter order is preserved.
func queryParamCodes(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return nil
	}
	// Walk the raw query directly so occurrence order follows the URL
	// rather than map iteration.
	var codes []string
	for _, pair := range strings.Split(u.RawQuery, "&") {
		_, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		if pattern.IsCode(value) {
			codes = append(codes, pattern.Normalize(value))
		}
	}
	return codes
}
