// Package discovery collects candidate product-page URLs from index and
// listing pages. It feeds the batch queue; it never decides what the engine
// accepts.
package discovery

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// skipRoutes are first path segments that are never product pages.
var skipRoutes = map[string]bool{
	"api":        true,
	"blog":       true,
	"help":       true,
	"legal":      true,
	"login":      true,
	"signup":     true,
	"terms":      true,
	"privacy":    true,
	"discover":   true,
	"categories": true,
}

// Discoverer fetches index pages and extracts product links on the
// application domain.
type Discoverer struct {
	client  *resty.Client
	appHost string
}

// New creates a Discoverer for the given application domain.
func New(appHost string, timeout time.Duration) *Discoverer {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Discoverer{client: client, appHost: strings.ToLower(appHost)}
}

// Discover fetches indexURL and returns deduplicated product-page URLs in
// document order, capped at limit when limit > 0.
func (d *Discoverer) Discover(ctx context.Context, indexURL string, limit int) ([]string, error) {
	resp, err := d.client.R().SetContext(ctx).Get(indexURL)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: fetch %s", indexURL)
	}
	if resp.StatusCode() >= 400 {
		return nil, eris.Errorf("discovery: fetch %s: status %d", indexURL, resp.StatusCode())
	}

	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: parse %s", indexURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, eris.Wrap(err, "discovery: parse html")
	}

	seen := make(map[string]bool)
	var urls []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		normalized, ok := d.normalize(base, href)
		if !ok || seen[normalized] {
			return
		}
		seen[normalized] = true
		urls = append(urls, normalized)
	})

	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	zap.L().Info("discovery: index scanned",
		zap.String("index", indexURL),
		zap.Int("urls", len(urls)),
	)
	return urls, nil
}

// normalize resolves href against base and keeps only clean product-page
// URLs on the application domain: one non-reserved path segment, no query
// or fragment.
func (d *Discoverer) normalize(base *url.URL, href string) (string, bool) {
	u, err := base.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if d.appHost != "" && host != d.appHost && !strings.HasSuffix(host, "."+d.appHost) {
		return "", false
	}

	segments := splitPath(u.Path)
	if len(segments) == 0 {
		return "", false
	}
	route := strings.ToLower(segments[0])
	if skipRoutes[route] {
		return "", false
	}

	u.RawQuery = ""
	u.Fragment = ""
	u.Path = "/" + strings.Join(segments, "/")
	return u.String(), true
}

func splitPath(p string) []string {
	var segments []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
