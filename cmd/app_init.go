package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/aggregate"
	"github.com/tablescout/tablescout/internal/browser"
	"github.com/tablescout/tablescout/internal/cache"
	"github.com/tablescout/tablescout/internal/config"
	"github.com/tablescout/tablescout/internal/fetch"
	"github.com/tablescout/tablescout/internal/model"
	"github.com/tablescout/tablescout/internal/resolver"
	"github.com/tablescout/tablescout/internal/scraper"
	"github.com/tablescout/tablescout/internal/session"
	"github.com/tablescout/tablescout/internal/store"
	anthropicpkg "github.com/tablescout/tablescout/pkg/anthropic"
	"github.com/tablescout/tablescout/pkg/websearch"
)

// appEnv holds the initialized store, caches, browser, sessions, resolver,
// and aggregator shared by the search/serve/resolve commands.
type appEnv struct {
	Store      *store.SQLiteStore
	Caches     *cache.Caches
	Browser    *browser.Pool
	Sessions   *session.Manager
	Resolver   *resolver.Resolver
	Aggregator *aggregate.Aggregator
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.Browser != nil {
		ae.Browser.Close()
	}
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initApp wires the full stack. Callers should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	caches := cache.Open(cfg.CacheDir())

	pool := browser.New(browser.Config{
		Headless:   cfg.Browser.Headless,
		UserAgent:  cfg.Fetch.UserAgent,
		NavTimeout: time.Duration(cfg.Browser.NavTimeoutSecs) * time.Second,
	})

	fetcher := fetch.New(fetch.Config{
		UserAgent:     cfg.Fetch.UserAgent,
		Timeout:       time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		RatePerSecond: cfg.Fetch.RatePerSecond,
		MaxRetries:    cfg.Fetch.MaxRetries,
		MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
		WaitTimeout:   time.Duration(cfg.Fetch.WaitTimeoutMs) * time.Millisecond,
	}, pool)

	sessions := session.NewManager(cfg.SessionsDir(), platformAccounts(&cfg.Platforms), pool)

	scrapers := buildScrapers(&cfg.Platforms, fetcher, sessions, caches)
	if len(scrapers) == 0 {
		pool.Close()
		_ = st.Close()
		return nil, eris.New("no platforms enabled")
	}

	searchClient := websearch.NewClient(cfg.Search.Key, websearch.WithBaseURL(cfg.Search.BaseURL))

	// LLM disambiguation is optional. Without a key, ambiguous identity
	// candidates are left unresolved rather than guessed.
	var llm anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		llm = anthropicpkg.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Debug("TABLESCOUT_ANTHROPIC_KEY not set, llm disambiguation disabled")
	}

	res := resolver.New(caches, searchClient, llm, st, cfg.Anthropic.Model)
	agg := aggregate.New(scrapers, res, st, cfg.Aggregate)

	return &appEnv{
		Store:      st,
		Caches:     caches,
		Browser:    pool,
		Sessions:   sessions,
		Resolver:   res,
		Aggregator: agg,
	}, nil
}

// platformAccounts collects configured logins keyed by platform.
func platformAccounts(p *config.PlatformsConfig) map[model.Platform]model.Credential {
	accounts := make(map[model.Platform]model.Credential)
	for _, platform := range model.AllPlatforms {
		pc := p.Platform(string(platform))
		if pc == nil || pc.Account.Email == "" {
			continue
		}
		accounts[platform] = model.Credential{
			Email:    pc.Account.Email,
			Password: pc.Account.Password,
		}
	}
	return accounts
}

// buildScrapers constructs one cached scraper per enabled platform.
func buildScrapers(p *config.PlatformsConfig, fetcher scraper.PageFetcher, sessions *session.Manager, caches *cache.Caches) []scraper.Scraper {
	var scrapers []scraper.Scraper
	add := func(inner scraper.Scraper) {
		scrapers = append(scrapers, &scraper.Cached{Inner: scraper.Guard(inner), Cache: caches.Availability})
	}

	if p.Tabelog.Enabled {
		add(&scraper.Tabelog{BaseURL: p.Tabelog.BaseURL, PageCap: p.Tabelog.PageCap, Fetcher: fetcher})
	}
	if p.Omakase.Enabled {
		add(&scraper.Omakase{BaseURL: p.Omakase.BaseURL, PageCap: p.Omakase.PageCap, Fetcher: fetcher})
	}
	if p.Tablecheck.Enabled {
		add(&scraper.Tablecheck{BaseURL: p.Tablecheck.BaseURL, PageCap: p.Tablecheck.PageCap, Fetcher: fetcher})
	}
	if p.Tableall.Enabled {
		add(&scraper.Tableall{BaseURL: p.Tableall.BaseURL, PageCap: p.Tableall.PageCap, Fetcher: fetcher, Sessions: sessions})
	}
	return scrapers
}
