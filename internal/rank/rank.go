// Package rank collapses accepted candidates into the single best-evidenced
// result for a page. The weights live in one named Policy so tie-break
// behavior is exact and assertable rather than scattered constants.
package rank

import (
	"sort"
	"strings"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

// Policy is the scoring policy applied to attributed candidates. Higher
// scores win; ties break by capture time (more recent first), then by code
// for total determinism.
type Policy struct {
	// DiscountWeight rewards candidates carrying a discount record. It
	// dominates every other signal combined.
	DiscountWeight int
	// StructuredWeight rewards structured/component payloads over plain
	// HTML sources.
	StructuredWeight int
	// RouteWeight rewards candidates whose page route matches the visited
	// page's route.
	RouteWeight int
}

// DefaultPolicy returns the standard scoring policy.
func DefaultPolicy() Policy {
	return Policy{
		DiscountWeight:   1000,
		StructuredWeight: 40,
		RouteWeight:      30,
	}
}

// Score computes the candidate's score against the page's route.
func (p Policy) Score(c model.AttributedCandidate, pageRoute string) int {
	score := 0
	if c.Discount.Present() {
		score += p.DiscountWeight
	}
	if structuredContentType(c.ContentType) {
		score += p.StructuredWeight
	}
	if pageRoute != "" && strings.EqualFold(c.PageRoute, pageRoute) {
		score += p.RouteWeight
	}
	return score
}

// SelectWinner scores all candidates, collapses duplicates of the same code
// (case-insensitive) to the best-evidenced one, and returns the single best
// surviving candidate. A nil return means no candidate existed — a normal
// outcome, not a failure.
func (p Policy) SelectWinner(candidates []model.AttributedCandidate, pageRoute string) *model.AttributedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	scored := make([]model.AttributedCandidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		scored[i].Score = p.Score(scored[i], pageRoute)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return better(scored[i], scored[j])
	})

	// First occurrence per code after sorting is that code's best.
	survivors := make([]model.AttributedCandidate, 0, len(scored))
	seen := make(map[string]bool, len(scored))
	for _, c := range scored {
		key := strings.ToLower(c.Code)
		if seen[key] {
			continue
		}
		seen[key] = true
		survivors = append(survivors, c)
	}

	winner := survivors[0]
	return &winner
}

// better orders candidates by score, then recency, then code. The recency
// term is the strictly-increasing tie-breaker: between equally scored
// candidates the later capture wins.
func better(a, b model.AttributedCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return strings.ToLower(a.Code) < strings.ToLower(b.Code)
}

// structuredContentType reports whether a content type indicates a
// structured or component payload rather than a plain HTML document.
func structuredContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "json") ||
		strings.Contains(ct, "x-component") ||
		strings.Contains(ct, "javascript")
}
