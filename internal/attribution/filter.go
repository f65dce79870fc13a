// Package attribution decides whether a code occurrence actually belongs to
// the page being inspected or is spillover from unrelated traffic (chat
// feeds, cached cross-product payloads, background polling for other pages).
//
// The decision is an ordered table of pure predicates; the first matching
// rule wins and every verdict carries the rule label for diagnostics. No
// rule keeps state between evaluations.
package attribution

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

// Rule labels, in evaluation order.
const (
	RuleForeignHost      = "foreign_host"
	RuleStructuredRecord = "structured_record"
	RuleQueryIdentity    = "query_identity_match"
	RuleQueryForeign     = "query_foreign"
	RuleRouteReference   = "route_reference"
	RuleUnattributed     = "unattributed"
)

// Verdict is the outcome of evaluating one occurrence.
type Verdict struct {
	Accepted bool
	Rule     string
}

// Filter evaluates occurrences against a fixed page identity. AppHost is
// the expected application domain; responses from any other origin are
// rejected outright.
type Filter struct {
	AppHost string
}

// Evaluate applies the decision table to one occurrence. It is pure: the
// same inputs always produce the same verdict.
func (f Filter) Evaluate(occ model.CodeOccurrence, identity model.PageIdentity) Verdict {
	resp := occ.Source
	if resp == nil {
		return Verdict{Rule: RuleUnattributed}
	}

	// Rule 1: origin host must be the application domain.
	if !f.hostAllowed(resp.URL) {
		return Verdict{Rule: RuleForeignHost}
	}

	// Rule 2: an explicit structured promo record is page-local when the
	// route is referenced, or by default when no route signal exists.
	if hasStructuredRecord(resp.Body) {
		if identity.Route == "" || referencesRoute(resp, identity.Route) {
			return Verdict{Accepted: true, Rule: RuleStructuredRecord}
		}
	}

	// Rule 3: query-submission responses are the dominant spillover source.
	// They are rejected unless the submitted variables reference the
	// current page's identity explicitly.
	if IsQuerySubmission(resp) {
		if referencesIdentity(resp.PostData, identity) {
			return Verdict{Accepted: true, Rule: RuleQueryIdentity}
		}
		return Verdict{Rule: RuleQueryForeign}
	}

	// Rule 4: generic document responses need a route reference.
	if identity.Route != "" && referencesRoute(resp, identity.Route) {
		return Verdict{Accepted: true, Rule: RuleRouteReference}
	}

	return Verdict{Rule: RuleUnattributed}
}

// hostAllowed accepts the configured host and its subdomains. An empty
// AppHost disables the check (useful in unit tests against fixtures).
func (f Filter) hostAllowed(rawURL string) bool {
	if f.AppHost == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	want := strings.ToLower(f.AppHost)
	return host == want || strings.HasSuffix(host, "."+want)
}

// hasStructuredRecord reports whether the body carries an explicit popup
// promo record, in raw or quote-escaped form.
func hasStructuredRecord(body string) bool {
	return strings.Contains(strings.ToLower(body), "popuppromocode")
}

// IsQuerySubmission reports whether the response originated from a request
// that carried a structured payload of variables — a filtered data query —
// as opposed to a plain document fetch. URL shape alone is never used.
func IsQuerySubmission(resp *model.CapturedResponse) bool {
	post := strings.TrimSpace(resp.PostData)
	if post == "" {
		return false
	}
	if strings.HasPrefix(post, "{") {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal([]byte(post), &payload); err != nil {
			return false
		}
		_, ok := payload["variables"]
		return ok
	}
	// Query-string style submissions: key=value pairs without a JSON body.
	return strings.Contains(post, "=")
}

// referencesRoute reports whether the response URL or body mentions the
// page's route, case-insensitively.
func referencesRoute(resp *model.CapturedResponse, route string) bool {
	r := strings.ToLower(route)
	return strings.Contains(strings.ToLower(resp.URL), r) ||
		strings.Contains(strings.ToLower(resp.Body), r)
}

// referencesIdentity reports whether the submitted payload mentions any
// non-empty identity signal of the current page.
func referencesIdentity(postData string, identity model.PageIdentity) bool {
	if identity.Empty() {
		return false
	}
	payload := strings.ToLower(postData)
	for _, signal := range []string{identity.Route, identity.ProductID, identity.CompanyID} {
		if signal != "" && strings.Contains(payload, strings.ToLower(signal)) {
			return true
		}
	}
	return false
}
