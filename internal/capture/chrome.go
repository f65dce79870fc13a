package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

// ChromeOptions configures the headless Chrome driver.
type ChromeOptions struct {
	Headless  bool
	UserAgent string
	ExecPath  string
	// BodyLimit caps how many bytes of a response body are retained.
	BodyLimit int
}

// DefaultChromeOptions returns the standard driver configuration.
func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{
		Headless:  true,
		BodyLimit: 2 * 1024 * 1024,
	}
}

// ChromeDriver implements Driver over the Chrome DevTools Protocol. One
// driver owns one browser process; each session is a separate tab.
type ChromeDriver struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	opts        ChromeOptions
}

// NewChromeDriver starts a browser allocator with the given options. The
// browser itself launches lazily with the first session.
func NewChromeDriver(ctx context.Context, opts ChromeOptions) *ChromeDriver {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultChromeOptions().BodyLimit
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	return &ChromeDriver{allocCtx: allocCtx, allocCancel: allocCancel, opts: opts}
}

// Close shuts the browser allocator down. Outstanding sessions become
// unusable.
func (d *ChromeDriver) Close() error {
	d.allocCancel()
	return nil
}

// NewSession opens a tab and attaches the network observer before returning,
// so the caller's first navigation is fully captured.
func (d *ChromeDriver) NewSession(ctx context.Context) (Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(d.allocCtx)

	s := &chromeSession{
		ctx:       tabCtx,
		cancel:    tabCancel,
		bodyLimit: d.opts.BodyLimit,
		requests:  make(map[network.RequestID]*pendingRequest),
	}
	s.touch()

	chromedp.ListenTarget(tabCtx, s.handleEvent)

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		tabCancel()
		return nil, eris.Wrap(err, "capture: enable network domain")
	}
	return s, nil
}

// pendingRequest accumulates per-request state across CDP events until the
// response body can be fetched.
type pendingRequest struct {
	url         string
	contentType string
	hasPostData bool
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc

	bodyLimit int

	mu           sync.Mutex
	requests     map[network.RequestID]*pendingRequest
	captured     []model.CapturedResponse
	inflight     int
	lastActivity time.Time
	fetches      sync.WaitGroup
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil {
		return eris.Wrapf(err, "capture: navigate %s", url)
	}
	return nil
}

func (s *chromeSession) Reload(ctx context.Context) error {
	if err := chromedp.Run(s.ctx, chromedp.Reload()); err != nil {
		return eris.Wrap(err, "capture: reload")
	}
	return nil
}

// WaitQuiescent polls until the network has been idle for the settle window.
// Hitting the deadline is not an error; captured traffic up to that point is
// still usable.
func (s *chromeSession) WaitQuiescent(ctx context.Context, settle, deadline time.Duration) error {
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			zap.L().Debug("capture: quiescence deadline hit, proceeding best-effort")
			return nil
		case <-ticker.C:
			s.mu.Lock()
			idle := s.inflight == 0 && time.Since(s.lastActivity) >= settle
			s.mu.Unlock()
			if idle {
				return nil
			}
		}
	}
}

func (s *chromeSession) Responses() []model.CapturedResponse {
	s.fetches.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CapturedResponse, len(s.captured))
	copy(out, s.captured)
	return out
}

// inlineDataJS collects inline structured data blocks: JSON script tags and
// framework hydration payloads.
const inlineDataJS = `Array.from(document.querySelectorAll(
	'script[type="application/json"], script[type="application/ld+json"], script#__NEXT_DATA__'
)).map(function(s) { return s.textContent })`

func (s *chromeSession) InlineDataBlocks(ctx context.Context) ([]string, error) {
	var blocks []string
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(inlineDataJS, &blocks)); err != nil {
		return nil, eris.Wrap(err, "capture: read inline data")
	}
	return blocks, nil
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var loc string
	if err := chromedp.Run(s.ctx, chromedp.Location(&loc)); err != nil {
		return "", eris.Wrap(err, "capture: read location")
	}
	return loc, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

func (s *chromeSession) touch() {
	s.lastActivity = time.Now()
}

// handleEvent tracks request lifecycles. Bodies and post data can only be
// fetched after loadingFinished, and the fetch must run on the session's
// executor, so it happens on a separate goroutine tracked by fetches.
func (s *chromeSession) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		s.mu.Lock()
		s.requests[e.RequestID] = &pendingRequest{
			url:         e.Request.URL,
			hasPostData: e.Request.HasPostData,
		}
		s.inflight++
		s.touch()
		s.mu.Unlock()

	case *network.EventResponseReceived:
		s.mu.Lock()
		if p, ok := s.requests[e.RequestID]; ok {
			p.contentType = e.Response.MimeType
		}
		s.touch()
		s.mu.Unlock()

	case *network.EventLoadingFailed:
		s.mu.Lock()
		delete(s.requests, e.RequestID)
		if s.inflight > 0 {
			s.inflight--
		}
		s.touch()
		s.mu.Unlock()

	case *network.EventLoadingFinished:
		s.mu.Lock()
		p, ok := s.requests[e.RequestID]
		delete(s.requests, e.RequestID)
		if s.inflight > 0 {
			s.inflight--
		}
		s.touch()
		s.mu.Unlock()
		if !ok || !textualContentType(p.contentType) {
			return
		}
		s.fetches.Add(1)
		go s.fetchBody(e.RequestID, p)
	}
}

// fetchBody pulls the response body (and post data for query submissions)
// over the session executor and appends the completed capture.
func (s *chromeSession) fetchBody(id network.RequestID, p *pendingRequest) {
	defer s.fetches.Done()

	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return
	}
	ectx := cdp.WithExecutor(s.ctx, c.Target)

	body, err := network.GetResponseBody(id).Do(ectx)
	if err != nil {
		zap.L().Debug("capture: response body unavailable",
			zap.String("url", p.url),
			zap.Error(err),
		)
		return
	}
	if len(body) > s.bodyLimit {
		body = body[:s.bodyLimit]
	}

	var postData string
	if p.hasPostData {
		if data, err := network.GetRequestPostData(id).Do(ectx); err == nil {
			postData = data
		}
	}

	s.mu.Lock()
	s.captured = append(s.captured, model.CapturedResponse{
		URL:         p.url,
		ContentType: p.contentType,
		Body:        string(body),
		PostData:    postData,
		Timestamp:   time.Now(),
	})
	s.touch()
	s.mu.Unlock()
}

// textualContentType filters out binary payloads (images, fonts, media)
// that can never carry a code.
func textualContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, marker := range []string{"json", "html", "javascript", "xml", "text/", "x-component"} {
		if strings.Contains(ct, marker) {
			return true
		}
	}
	return false
}
