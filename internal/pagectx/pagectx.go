// Package pagectx derives the page-identity signature used by the
// attribution filter. The route comes from the page URL; product and company
// ids come opportunistically from inline structured data blocks the rendered
// page exposes (embedded JSON metadata, hydration payloads).
package pagectx

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/titanous/json5"
	"go.uber.org/zap"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

// DataProvider is the capability to read inline structured data from the
// rendered page. Implementations may be a live browser session or a
// synthetic provider in tests.
type DataProvider interface {
	// InlineDataBlocks returns the raw text of any inline data blocks the
	// page exposes, in document order.
	InlineDataBlocks(ctx context.Context) ([]string, error)
}

var (
	productKeys = []string{"productId", "product_id", "productID"}
	companyKeys = []string{"companyId", "company_id", "companyID"}

	// Fallback for blocks that are not parseable even as JSON5.
	reProductID = regexp.MustCompile(`(?i)"product_?id"\s*:\s*"([^"]+)"`)
	reCompanyID = regexp.MustCompile(`(?i)"company_?id"\s*:\s*"([^"]+)"`)
)

// Resolve derives the PageIdentity for pageURL. It never fails: a malformed
// URL yields an empty route, a provider error or absent signals yield empty
// ids. The first inline block that yields either id wins.
func Resolve(ctx context.Context, pageURL string, provider DataProvider) model.PageIdentity {
	identity := model.PageIdentity{Route: RouteOf(pageURL)}

	if provider == nil {
		return identity
	}
	blocks, err := provider.InlineDataBlocks(ctx)
	if err != nil {
		zap.L().Debug("pagectx: inline data unavailable", zap.Error(err))
		return identity
	}
	for _, block := range blocks {
		productID, companyID := idsFromBlock(block)
		if productID == "" && companyID == "" {
			continue
		}
		identity.ProductID = productID
		identity.CompanyID = companyID
		break
	}
	return identity
}

// RouteOf returns the first non-empty path segment of rawURL, lowercased,
// or "" when the URL cannot be parsed or has an empty path.
func RouteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			return strings.ToLower(seg)
		}
	}
	return ""
}

// idsFromBlock extracts product/company ids from one inline data block.
// Parsing is tolerant: strict JSON first, JSON5 second, raw regex last.
func idsFromBlock(block string) (productID, companyID string) {
	var parsed any
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		if err := json5.Unmarshal([]byte(block), &parsed); err != nil {
			return regexIDs(block)
		}
	}
	productID = findStringKey(parsed, productKeys)
	companyID = findStringKey(parsed, companyKeys)
	return productID, companyID
}

func regexIDs(block string) (productID, companyID string) {
	if m := reProductID.FindStringSubmatch(block); m != nil {
		productID = m[1]
	}
	if m := reCompanyID.FindStringSubmatch(block); m != nil {
		companyID = m[1]
	}
	return productID, companyID
}

// findStringKey walks a decoded JSON value depth-first and returns the first
// string value stored under any of the given keys.
func findStringKey(v any, keys []string) string {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range keys {
			if s, ok := val[k].(string); ok && s != "" {
				return s
			}
		}
		// Sorted traversal keeps resolution deterministic when several
		// nested objects carry id-shaped fields.
		childKeys := make([]string, 0, len(val))
		for k := range val {
			childKeys = append(childKeys, k)
		}
		sort.Strings(childKeys)
		for _, k := range childKeys {
			if s := findStringKey(val[k], keys); s != "" {
				return s
			}
		}
	case []any:
		for _, child := range val {
			if s := findStringKey(child, keys); s != "" {
				return s
			}
		}
	}
	return ""
}
