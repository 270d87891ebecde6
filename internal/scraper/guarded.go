package scraper

import (
	"context"

	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/model"
	"github.com/tablescout/tablescout/internal/resilience"
)

// Guarded wraps a Scraper with a per-platform circuit breaker. A platform
// that keeps failing stops burning requests for every sibling date until
// the reset timeout passes.
type Guarded struct {
	Inner   Scraper
	Breaker *resilience.CircuitBreaker
}

// Guard wraps a scraper with a breaker using default thresholds. State
// transitions are logged per platform.
func Guard(inner Scraper) *Guarded {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("scraper: circuit state change",
			zap.String("platform", string(inner.Platform())),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &Guarded{Inner: inner, Breaker: resilience.NewCircuitBreaker(cfg)}
}

// Platform implements Scraper.
func (g *Guarded) Platform() model.Platform { return g.Inner.Platform() }

// Search implements Scraper through the breaker. An open circuit returns
// resilience.ErrCircuitOpen without touching the platform.
func (g *Guarded) Search(ctx context.Context, params SearchParams) ([]model.DatedRestaurant, error) {
	return resilience.ExecuteVal(ctx, g.Breaker, func(ctx context.Context) ([]model.DatedRestaurant, error) {
		return g.Inner.Search(ctx, params)
	})
}
