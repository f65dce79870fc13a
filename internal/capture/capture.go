// Package capture abstracts the instrumented browser session that observes
// network traffic while a page renders. The Session contract guarantees the
// observer is attached before the first navigation is issued, so early
// responses are never lost.
package capture

import (
	"context"
	"time"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

// Session is one attached traffic observer over one browser tab. Sessions
// are not safe for concurrent use; one session serves one page visit.
type Session interface {
	// Navigate loads a URL. The observer is already attached when this is
	// first called.
	Navigate(ctx context.Context, url string) error
	// Reload forces a re-fetch of the current page. Discount records are
	// frequently only materialized on the second load.
	Reload(ctx context.Context) error
	// WaitQuiescent blocks until no request has been in flight for the
	// settle window, or until the deadline passes. Hitting the deadline is
	// not an error: callers compute a best-effort result from whatever was
	// captured.
	WaitQuiescent(ctx context.Context, settle, deadline time.Duration) error
	// Responses returns a snapshot of everything captured so far.
	Responses() []model.CapturedResponse
	// InlineDataBlocks returns inline structured data exposed by the
	// rendered page, satisfying pagectx.DataProvider.
	InlineDataBlocks(ctx context.Context) ([]string, error)
	// Location returns the page's current URL (after any redirects).
	Location(ctx context.Context) (string, error)
	// Close detaches the observer and releases the tab. Safe to call on
	// every exit path, including after errors.
	Close() error
}

// Driver creates capture sessions. One driver may serve many concurrent
// sessions; each session is independent.
type Driver interface {
	NewSession(ctx context.Context) (Session, error)
}
