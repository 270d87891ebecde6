// Package browser owns the process-wide headless Chrome instance. Browser
// startup dominates page-load latency, so one lazily-started instance is
// shared and only restarted when it disconnects. Tabs are cheap, isolated,
// and always explicitly closed.
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cookie is a browser cookie in the shape persisted by the session manager.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
}

// RenderRequest asks for one rendered page.
type RenderRequest struct {
	URL          string
	WaitSelector string        // optional content selector to wait for
	WaitTimeout  time.Duration // bounded; timeout degrades, never fails
	Cookies      []Cookie      // restored before navigation
}

// RenderResult is the outcome of one rendered fetch.
type RenderResult struct {
	HTML     string
	FinalURL string // post-redirect location, used for login detection
	Cookies  []Cookie
}

// Config tunes the shared browser.
type Config struct {
	Headless   bool
	UserAgent  string
	NavTimeout time.Duration
}

// Pool is the size-1 browser pool. The zero value is not usable; use New.
type Pool struct {
	cfg Config

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	// slot serializes tab usage so concurrent scrapes cannot exhaust the
	// single browser's resources.
	slot chan struct{}
}

// New creates a pool. The browser process starts on first use.
func New(cfg Config) *Pool {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	p := &Pool{cfg: cfg, slot: make(chan struct{}, 1)}
	p.slot <- struct{}{}
	return p
}

// start launches the allocator and browser. Callers hold mu.
func (p *Pool) start() error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if p.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.cfg.UserAgent))
	}

	p.allocCtx, p.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	p.browserCtx, p.browserStop = chromedp.NewContext(p.allocCtx)

	// Force the browser process up now so later failures are attributable.
	if err := chromedp.Run(p.browserCtx); err != nil {
		p.stopLocked()
		return eris.Wrap(err, "browser: start")
	}
	zap.L().Info("browser: started", zap.Bool("headless", p.cfg.Headless))
	return nil
}

// Healthy reports whether the running browser is still connected.
func (p *Pool) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.browserCtx != nil && p.browserCtx.Err() == nil
}

// ensure starts or restarts the browser as needed.
func (p *Pool) ensure() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browserCtx != nil && p.browserCtx.Err() == nil {
		return p.browserCtx, nil
	}
	if p.browserCtx != nil {
		zap.L().Warn("browser: disconnected, restarting")
		p.stopLocked()
	}
	if err := p.start(); err != nil {
		return nil, err
	}
	return p.browserCtx, nil
}

func (p *Pool) stopLocked() {
	if p.browserStop != nil {
		p.browserStop()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	p.browserCtx, p.browserStop = nil, nil
	p.allocCtx, p.allocCancel = nil, nil
}

// Close shuts the browser down.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// acquire takes the single tab slot, honoring ctx cancellation.
func (p *Pool) acquire(ctx context.Context) error {
	select {
	case <-p.slot:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "browser: acquire")
	}
}

func (p *Pool) release() {
	p.slot <- struct{}{}
}

// Render navigates a fresh tab to req.URL, waits for the content selector
// within the bounded timeout, and returns whatever loaded. A selector-wait
// timeout is not an error: partial data beats no data.
func (p *Pool) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	browserCtx, err := p.ensure()
	if err != nil {
		return nil, err
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, p.cfg.NavTimeout)
	defer cancel()

	// Propagate caller cancellation into the tab.
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	if len(req.Cookies) > 0 {
		if err := chromedp.Run(tabCtx, setCookies(req.Cookies)); err != nil {
			return nil, eris.Wrap(err, "browser: restore cookies")
		}
	}

	if err := chromedp.Run(tabCtx, chromedp.Navigate(req.URL)); err != nil {
		return nil, eris.Wrap(err, "browser: navigate")
	}

	if req.WaitSelector != "" {
		waitCtx, waitCancel := context.WithTimeout(tabCtx, req.WaitTimeout)
		err := chromedp.Run(waitCtx, chromedp.WaitReady(req.WaitSelector, chromedp.ByQuery))
		waitCancel()
		if err != nil {
			zap.L().Debug("browser: selector wait timed out, proceeding",
				zap.String("url", req.URL),
				zap.String("selector", req.WaitSelector),
			)
		}
	}

	var res RenderResult
	var raw []*network.Cookie
	err = chromedp.Run(tabCtx,
		chromedp.Location(&res.FinalURL),
		chromedp.OuterHTML("html", &res.HTML, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			raw, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, eris.Wrap(err, "browser: extract page")
	}
	res.Cookies = fromCDPCookies(raw)
	return &res, nil
}

// RunTab runs arbitrary actions in a fresh tab. Used by the session manager
// for login form flows.
func (p *Pool) RunTab(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	browserCtx, err := p.ensure()
	if err != nil {
		return err
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()
	if timeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	return chromedp.Run(tabCtx, actions...)
}

// setCookies installs cookies into the tab before navigation.
func setCookies(cookies []Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetCookiesAction reads all cookies from the current tab into out.
func GetCookiesAction(out *[]Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		*out = fromCDPCookies(raw)
		return nil
	})
}

func fromCDPCookies(raw []*network.Cookie) []Cookie {
	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return out
}
