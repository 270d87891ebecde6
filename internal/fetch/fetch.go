// Package fetch is the page acquisition layer: it decides between a cheap
// static HTTP GET and an expensive rendered-browser fetch and returns raw
// HTML either way.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/browser"
	"github.com/tablescout/tablescout/internal/resilience"
)

// Renderer is the rendered-path dependency, satisfied by *browser.Pool.
type Renderer interface {
	Render(ctx context.Context, req browser.RenderRequest) (*browser.RenderResult, error)
}

// Options picks the strategy for one page.
type Options struct {
	// RequiresRender forces the headless browser. Use for pages whose
	// booking calendars are populated by client-side script.
	RequiresRender bool

	// WaitSelector is the content selector the rendered path waits for.
	WaitSelector string

	// WaitTimeout bounds the selector wait. Zero uses the fetcher default.
	WaitTimeout time.Duration

	// Cookies are restored into the browser before navigation.
	Cookies []browser.Cookie
}

// Page is one acquired page.
type Page struct {
	HTML     string
	FinalURL string
	Cookies  []browser.Cookie // only set on the rendered path
}

// Config tunes the fetcher.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	RatePerSecond float64
	MaxRetries    int
	MaxBodyBytes  int64
	WaitTimeout   time.Duration
}

// Fetcher acquires pages with per-host adaptive rate limiting and retries.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	renderer Renderer

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// New creates a Fetcher. renderer may be nil when no rendered path is needed
// (tests, static-only commands); rendered requests then fail cleanly.
func New(cfg Config, renderer Renderer) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 * 1024 * 1024
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 8 * time.Second
	}
	return &Fetcher{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		renderer: renderer,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiter returns the adaptive limiter for a host, creating it on first use.
func (f *Fetcher) limiter(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = NewAdaptiveLimiter(rateLimit(f.cfg.RatePerSecond), 1)
		f.limiters[host] = l
	}
	return l
}

// Page fetches one URL using the strategy in opts.
func (f *Fetcher) Page(ctx context.Context, pageURL string, opts Options) (*Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %q", pageURL)
	}

	lim := f.limiter(u.Host)
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limit wait")
	}

	retry := resilience.RetryConfig{
		MaxAttempts: f.cfg.MaxRetries,
		OnRetry:     resilience.RetryLogger(u.Host, "fetch"),
	}

	if opts.RequiresRender {
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (*Page, error) {
			return f.rendered(ctx, pageURL, opts)
		})
	}
	return resilience.DoVal(ctx, retry, func(ctx context.Context) (*Page, error) {
		return f.static(ctx, pageURL, lim)
	})
}

// static performs a single HTTP GET with a realistic browser user agent.
func (f *Fetcher) static(ctx context.Context, pageURL string, lim *AdaptiveLimiter) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: get")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		lim.OnRateLimit()
		return nil, resilience.NewTransientError(eris.Errorf("fetch: status %d", resp.StatusCode), resp.StatusCode)
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		// Challenges often clear on their own; surface as transient so the
		// retry path gets one more shot before the caller degrades.
		return nil, resilience.NewTransientError(
			eris.Errorf("fetch: blocked (%s)", blockType), resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		err := eris.Errorf("fetch: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	lim.OnSuccess()

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Page{HTML: string(body), FinalURL: finalURL}, nil
}

// rendered fetches through the shared headless browser.
func (f *Fetcher) rendered(ctx context.Context, pageURL string, opts Options) (*Page, error) {
	if f.renderer == nil {
		return nil, eris.New("fetch: rendered path requested but no browser configured")
	}

	waitTimeout := opts.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = f.cfg.WaitTimeout
	}

	res, err := f.renderer.Render(ctx, browser.RenderRequest{
		URL:          pageURL,
		WaitSelector: opts.WaitSelector,
		WaitTimeout:  waitTimeout,
		Cookies:      opts.Cookies,
	})
	if err != nil {
		return nil, eris.Wrap(err, "fetch: render")
	}

	zap.L().Debug("fetch: rendered page",
		zap.String("url", pageURL),
		zap.Int("bytes", len(res.HTML)),
	)
	return &Page{HTML: res.HTML, FinalURL: res.FinalURL, Cookies: res.Cookies}, nil
}
