// Package scraper turns one platform's result markup into the common
// restaurant-plus-availability shape. Parsing is a pure function over HTML;
// fetching, sessions, and caching stay at the edges.
package scraper

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/cache"
	"github.com/tablescout/tablescout/internal/fetch"
	"github.com/tablescout/tablescout/internal/model"
)

// SearchParams is one (city, date) search unit.
type SearchParams struct {
	City      string
	Date      string // ISO calendar date
	PartySize int
	Meal      string // "lunch", "dinner", or empty
}

// Key returns the composite cache key for these params on a platform.
func (p SearchParams) Key(platform model.Platform) string {
	return cache.Key(string(platform), p.City, strconv.Itoa(p.PartySize), p.Meal, p.Date)
}

// Scraper is the common contract every platform implements.
type Scraper interface {
	Platform() model.Platform
	Search(ctx context.Context, params SearchParams) ([]model.DatedRestaurant, error)
}

// PageFetcher abstracts the page acquisition layer for tests.
type PageFetcher interface {
	Page(ctx context.Context, url string, opts fetch.Options) (*fetch.Page, error)
}

// Cached wraps a Scraper with the availability cache: hits skip the network
// entirely, misses are written through.
type Cached struct {
	Inner Scraper
	Cache *cache.Cache[[]model.DatedRestaurant]
}

// Platform implements Scraper.
func (c *Cached) Platform() model.Platform { return c.Inner.Platform() }

// Search implements Scraper with read-through caching.
func (c *Cached) Search(ctx context.Context, params SearchParams) ([]model.DatedRestaurant, error) {
	key := params.Key(c.Inner.Platform())
	if hit, ok := c.Cache.Get(key); ok {
		zap.L().Debug("scraper: cache hit",
			zap.String("platform", string(c.Inner.Platform())),
			zap.String("key", key),
		)
		return hit, nil
	}

	results, err := c.Inner.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.Set(key, results); err != nil {
		zap.L().Warn("scraper: cache write failed", zap.Error(err))
	}
	return results, nil
}
