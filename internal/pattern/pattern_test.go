package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findByKind(t *testing.T, kind Kind, text string) []Match {
	t.Helper()
	for _, rule := range Rules() {
		if rule.Kind == kind {
			return rule.Find(text)
		}
	}
	t.Fatalf("no rule with kind %d", kind)
	return nil
}

func TestStructuredRule(t *testing.T) {
	body := `{"popupPromoCode":{"code":"promo-784ede4b","discountOff":"20%"}}`
	matches := findByKind(t, KindStructured, body)
	require.Len(t, matches, 1)
	assert.Equal(t, "promo-784ede4b", matches[0].Code)
	assert.Equal(t, body[matches[0].Offset:matches[0].Offset+14], "promo-784ede4b")
}

func TestStructuredRule_EscapedQuotes(t *testing.T) {
	body := `self.__next_f.push([1,"{\"popupPromoCode\":{\"code\":\"promo-022d1f18\"}}"])`
	matches := findByKind(t, KindStructured, body)
	require.Len(t, matches, 1)
	assert.Equal(t, "promo-022d1f18", matches[0].Code)
}

func TestQueryParamRule(t *testing.T) {
	text := `see https://whop.com/checkout?promo_code=promo-aa11bb22 for details`
	matches := findByKind(t, KindQueryParam, text)
	require.Len(t, matches, 1)
	assert.Equal(t, "promo-aa11bb22", matches[0].Code)
}

func TestQuotedAndBareRules(t *testing.T) {
	text := `"promo-deadbeef" and bare promo-cafe0123 inline`
	quoted := findByKind(t, KindQuoted, text)
	require.Len(t, quoted, 1)
	assert.Equal(t, "promo-deadbeef", quoted[0].Code)

	bare := findByKind(t, KindBare, text)
	// The bare rule also sees the quoted token; dedup happens at ranking.
	require.Len(t, bare, 2)
	assert.Equal(t, "promo-deadbeef", bare[0].Code)
	assert.Equal(t, "promo-cafe0123", bare[1].Code)
}

func TestRules_CaseFolding(t *testing.T) {
	matches := findByKind(t, KindBare, `PROMO-AABB1122`)
	require.Len(t, matches, 1)
	assert.Equal(t, "promo-aabb1122", matches[0].Code)
}

func TestRules_TooShortCodeIgnored(t *testing.T) {
	assert.Empty(t, findByKind(t, KindBare, `promo-ab1`))
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"promo-784ede4b", true},
		{"PROMO-784EDE4B", true},
		{"promo-ab-cd-12", true},
		{"promo-ab1", false},
		{"code-784ede4b", false},
		{"promo-784ede4b extra", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCode(tt.input))
		})
	}
}

func TestPossible(t *testing.T) {
	assert.True(t, Possible(`x promo-12345678 y`))
	assert.True(t, Possible(`{"popupPromoCode":{}}`))
	assert.True(t, Possible(`?code=nothing`))
	assert.False(t, Possible(`plain html with no markers at all`))
}

func TestRulesOrder(t *testing.T) {
	rules := Rules()
	require.Len(t, rules, 4)
	assert.Equal(t, KindStructured, rules[0].Kind)
	assert.Equal(t, KindQueryParam, rules[1].Kind)
	assert.Equal(t, KindQuoted, rules[2].Kind)
	assert.Equal(t, KindBare, rules[3].Kind)
}
