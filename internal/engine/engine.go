// Package engine wires capture, identity resolution, scanning, attribution,
// discount recovery and ranking into one extraction per page visit.
package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/10aburnett/popuppromocodes-script/internal/attribution"
	"github.com/10aburnett/popuppromocodes-script/internal/capture"
	"github.com/10aburnett/popuppromocodes-script/internal/discount"
	"github.com/10aburnett/popuppromocodes-script/internal/model"
	"github.com/10aburnett/popuppromocodes-script/internal/pagectx"
	"github.com/10aburnett/popuppromocodes-script/internal/pattern"
	"github.com/10aburnett/popuppromocodes-script/internal/rank"
	"github.com/10aburnett/popuppromocodes-script/internal/scan"
)

// Params tunes one extraction invocation.
type Params struct {
	// Timeout bounds each quiescence wait. When traffic never settles the
	// engine still computes a best-effort result from what was captured.
	Timeout time.Duration
	// RouteHint overrides the route derived from the page URL, for pages
	// that redirect in-page and leave the URL untrustworthy.
	RouteHint string
	// OnlyCode restricts scanning and acceptance to a single known code.
	// Used by the discount backfill pass.
	OnlyCode string
}

// Engine runs the attribution-and-extraction sequence for single pages. It
// holds no state across invocations; one engine may serve concurrent visits,
// each on its own capture session.
type Engine struct {
	driver capture.Driver
	filter attribution.Filter
	policy rank.Policy
	settle time.Duration
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithSettle sets the network-idle window used for quiescence detection.
func WithSettle(d time.Duration) Option {
	return func(e *Engine) { e.settle = d }
}

// WithPolicy replaces the default scoring policy.
func WithPolicy(p rank.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// New builds an engine. appHost is the expected application domain; traffic
// from any other origin is never attributed.
func New(driver capture.Driver, appHost string, opts ...Option) *Engine {
	e := &Engine{
		driver: driver,
		filter: attribution.Filter{AppHost: appHost},
		policy: rank.DefaultPolicy(),
		settle: 1500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract performs one page visit: attach the observer, load, wait for
// quiescence, force a reload (structured promo data frequently only
// materializes on the re-fetch), wait again, then compute the result from
// everything captured. A nil result with nil error means the page simply has
// no attributable code.
func (e *Engine) Extract(ctx context.Context, pageURL string, params Params) (*model.ExtractionResult, error) {
	if params.Timeout <= 0 {
		params.Timeout = 30 * time.Second
	}

	session, err := e.driver.NewSession(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "engine: acquire capture session")
	}
	defer session.Close()

	if err := session.Navigate(ctx, pageURL); err != nil {
		return nil, eris.Wrapf(err, "engine: load %s", pageURL)
	}
	if err := session.WaitQuiescent(ctx, e.settle, params.Timeout); err != nil {
		return nil, eris.Wrap(err, "engine: wait after load")
	}
	if err := session.Reload(ctx); err != nil {
		return nil, eris.Wrapf(err, "engine: reload %s", pageURL)
	}
	if err := session.WaitQuiescent(ctx, e.settle, params.Timeout); err != nil {
		return nil, eris.Wrap(err, "engine: wait after reload")
	}

	finalURL, err := session.Location(ctx)
	if err != nil || finalURL == "" {
		finalURL = pageURL
	}

	identity := pagectx.Resolve(ctx, finalURL, session)
	if params.RouteHint != "" {
		identity.Route = params.RouteHint
	}

	responses := session.Responses()
	zap.L().Debug("engine: capture window complete",
		zap.String("url", pageURL),
		zap.String("route", identity.Route),
		zap.Int("responses", len(responses)),
	)

	return e.Compute(responses, identity, params.OnlyCode), nil
}

// Compute runs the pure half of the pipeline over an immutable capture:
// scan, filter, enrich, rank. Exposed separately so recorded captures can be
// replayed in tests and diagnostics.
func (e *Engine) Compute(responses []model.CapturedResponse, identity model.PageIdentity, onlyCode string) *model.ExtractionResult {
	onlyCode = pattern.Normalize(onlyCode)
	if onlyCode != "" && !pattern.IsCode(onlyCode) {
		zap.L().Warn("engine: ignoring malformed code filter", zap.String("code", onlyCode))
		onlyCode = ""
	}

	occurrences := scan.All(responses, onlyCode)

	var candidates []model.AttributedCandidate
	for _, occ := range occurrences {
		verdict := e.filter.Evaluate(occ, identity)
		if !verdict.Accepted {
			zap.L().Debug("engine: occurrence rejected",
				zap.String("code", occ.Code),
				zap.String("rule", verdict.Rule),
				zap.String("source", occ.Source.URL),
			)
			continue
		}

		var disc *model.DiscountRecord
		if !occ.FromURL {
			disc = discount.FromOffset(occ.Source.Body, occ.ByteOffset)
		}

		candidates = append(candidates, model.AttributedCandidate{
			Code:        occ.Code,
			Discount:    disc,
			SourceURL:   occ.Source.URL,
			ContentType: occ.Source.ContentType,
			Timestamp:   occ.Source.Timestamp,
			PageRoute:   pagectx.RouteOf(occ.Source.URL),
			Reason:      verdict.Rule,
		})
	}

	winner := e.policy.SelectWinner(candidates, identity.Route)
	if winner == nil {
		return nil
	}
	return &model.ExtractionResult{
		Code:        winner.Code,
		Discount:    winner.Discount,
		SourceURL:   winner.SourceURL,
		ContentType: winner.ContentType,
	}
}
