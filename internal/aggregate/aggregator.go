// Package aggregate fans a search out across dates and platforms and
// streams progressively refined results back as NDJSON-able events.
package aggregate

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tablescout/tablescout/internal/config"
	"github.com/tablescout/tablescout/internal/model"
	"github.com/tablescout/tablescout/internal/resolver"
	"github.com/tablescout/tablescout/internal/scraper"
	"github.com/tablescout/tablescout/internal/store"
)

// IdentityResolver is the background-resolution dependency, satisfied by
// *resolver.Resolver.
type IdentityResolver interface {
	Resolve(ctx context.Context, ref model.Restaurant) (*resolver.Resolution, error)
	Observe(restaurants []model.Restaurant)
}

// ScoreSource supplies scores saved with past trips, satisfied by
// *store.SQLiteStore.
type ScoreSource interface {
	SavedScores(ctx context.Context) ([]store.SavedScore, error)
}

// Aggregator runs queries against every configured platform scraper.
type Aggregator struct {
	scrapers []scraper.Scraper
	resolver IdentityResolver // nil disables background resolution
	scores   ScoreSource      // nil disables saved-score enrichment
	cfg      config.AggregateConfig
}

// New builds an Aggregator over the given scrapers.
func New(scrapers []scraper.Scraper, res IdentityResolver, scores ScoreSource, cfg config.AggregateConfig) *Aggregator {
	if cfg.MaxConcurrentDates <= 0 {
		cfg.MaxConcurrentDates = 14
	}
	if cfg.ResolveConcurrency <= 0 {
		cfg.ResolveConcurrency = 3
	}
	if cfg.ResolveScoreThreshold <= 0 {
		cfg.ResolveScoreThreshold = 3.7
	}
	return &Aggregator{scrapers: scrapers, resolver: res, scores: scores, cfg: cfg}
}

// Search streams events for one query. The returned channel is closed when
// the stream ends, whether normally or on cancellation. After ctx is
// observed cancelled nothing more is sent.
func (a *Aggregator) Search(ctx context.Context, query model.SearchQuery) <-chan model.StreamEvent {
	ch := make(chan model.StreamEvent)
	go a.run(ctx, query, ch)
	return ch
}

// emit sends one event unless the caller is gone. Every send in this
// package goes through here so a dead consumer can never block or receive.
func emit(ctx context.Context, ch chan<- model.StreamEvent, ev model.StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- ev:
		return true
	}
}

func (a *Aggregator) run(ctx context.Context, query model.SearchQuery, ch chan<- model.StreamEvent) {
	defer close(ch)

	log := zap.L().With(
		zap.String("query_id", uuid.New().String()),
		zap.String("city", query.City),
		zap.Int("dates", len(query.Dates)),
	)

	if err := query.Validate(); err != nil {
		emit(ctx, ch, model.ErrorEvent(err.Error()))
		return
	}

	emit(ctx, ch, model.StreamEvent{
		Type:    model.EventProgress,
		Message: "searching",
		Total:   len(query.Dates),
	})

	saved := a.savedScores(ctx)

	// One concurrent task per date. Tasks never return errors: a failed
	// date emits an empty date event and its siblings keep going.
	var (
		mu        sync.Mutex
		unique    = make(map[string]*model.Restaurant)
		completed int
	)

	g := &errgroup.Group{}
	g.SetLimit(a.cfg.MaxConcurrentDates)

	for _, date := range query.Dates {
		g.Go(func() error {
			records := a.scrapeDate(ctx, query, date)
			if ctx.Err() != nil {
				return nil
			}

			// A restaurant the user saved before may carry a score the
			// platforms did not surface this time.
			for i := range records {
				r := &records[i].Restaurant
				if r.Score == nil {
					if s, ok := saved[r.NormalizedName]; ok {
						r.Score = &s
					}
				}
			}

			mu.Lock()
			completed++
			done := completed
			for i := range records {
				r := records[i].Restaurant
				if existing, ok := unique[r.NormalizedName]; ok {
					mergeRestaurant(existing, r)
				} else {
					clone := r
					unique[r.NormalizedName] = &clone
				}
			}
			mu.Unlock()

			// Emission in completion order: callers see the first finished
			// date while later ones are still scraping.
			if !emit(ctx, ch, model.DateEvent(date, records)) {
				return nil
			}
			emit(ctx, ch, model.StreamEvent{
				Type:    model.EventProgress,
				Message: "date complete",
				Done:    done,
				Total:   len(query.Dates),
			})
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}

	all := make([]model.Restaurant, 0, len(unique))
	for _, r := range unique {
		all = append(all, *r)
	}
	if a.resolver != nil {
		a.resolver.Observe(all)
	}

	if !emit(ctx, ch, model.DoneEvent(len(unique))) {
		return
	}
	log.Info("aggregate: primary phase complete", zap.Int("unique_restaurants", len(unique)))

	a.backgroundResolve(ctx, all, ch)
}

// savedScores loads the trip store's score pairs keyed by normalized name.
// The store is optional and a read failure only costs the enrichment.
func (a *Aggregator) savedScores(ctx context.Context) map[string]float64 {
	if a.scores == nil {
		return nil
	}
	rows, err := a.scores.SavedScores(ctx)
	if err != nil {
		zap.L().Warn("aggregate: saved scores unavailable", zap.Error(err))
		return nil
	}
	m := make(map[string]float64, len(rows))
	for _, row := range rows {
		m[model.NormalizeName(row.Name)] = row.Score
	}
	return m
}

// scrapeDate runs every platform scraper for one date, sequentially per
// platform, and merges the results by restaurant identity.
func (a *Aggregator) scrapeDate(ctx context.Context, query model.SearchQuery, date string) []model.DatedRestaurant {
	params := scraper.SearchParams{
		City:      query.City,
		Date:      date,
		PartySize: query.PartySize,
		Meal:      query.Meal,
	}

	byName := make(map[string]*model.DatedRestaurant)
	var order []string
	for _, s := range a.scrapers {
		if ctx.Err() != nil {
			return nil
		}
		records, err := s.Search(ctx, params)
		if err != nil {
			// One platform's failure costs only its contribution.
			zap.L().Warn("aggregate: platform search failed",
				zap.String("platform", string(s.Platform())),
				zap.String("date", date),
				zap.Error(err),
			)
			continue
		}
		for i := range records {
			rec := records[i]
			if !mealMatches(rec.Availability, query.Meal) {
				continue
			}
			key := rec.Restaurant.NormalizedName
			if existing, ok := byName[key]; ok {
				mergeRestaurant(&existing.Restaurant, rec.Restaurant)
				existing.Availability = mergeAvailability(existing.Availability, rec.Availability)
			} else {
				clone := rec
				byName[key] = &clone
				order = append(order, key)
			}
		}
	}

	sort.Strings(order)
	out := make([]model.DatedRestaurant, 0, len(order))
	for _, key := range order {
		out = append(out, *byName[key])
	}
	return out
}

// backgroundResolve keeps working after done: high-score restaurants still
// missing platform links get identity resolution in bounded batches. The
// abort check runs before every unit so a disconnected caller stops
// consuming search and model quota.
func (a *Aggregator) backgroundResolve(ctx context.Context, all []model.Restaurant, ch chan<- model.StreamEvent) {
	if a.resolver == nil {
		return
	}

	var candidates []model.Restaurant
	for _, r := range all {
		if r.Score == nil || *r.Score < a.cfg.ResolveScoreThreshold {
			continue
		}
		if len(r.PlatformLinks) >= len(model.AllPlatforms) {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return
	}

	g := &errgroup.Group{}
	g.SetLimit(a.cfg.ResolveConcurrency)
	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := a.resolver.Resolve(ctx, cand)
			if err != nil {
				zap.L().Warn("aggregate: background resolution failed",
					zap.String("restaurant", cand.Name),
					zap.Error(err),
				)
				return nil
			}
			if len(res.Links) == 0 {
				return nil
			}
			emit(ctx, ch, model.StreamEvent{
				Type:  model.EventPlatformUpdate,
				Name:  cand.Name,
				Links: res.Links,
			})
			return nil
		})
	}
	_ = g.Wait()
}

// mergeRestaurant folds src's fields into dst, never overwriting known
// values with blanks.
func mergeRestaurant(dst *model.Restaurant, src model.Restaurant) {
	for p, link := range src.PlatformLinks {
		if dst.Link(p) == "" {
			dst.SetLink(p, link)
		}
	}
	if dst.Score == nil {
		dst.Score = src.Score
	}
	if dst.Cuisine == "" {
		dst.Cuisine = src.Cuisine
	}
	if dst.Area == "" {
		dst.Area = src.Area
	}
	if dst.City == "" {
		dst.City = src.City
	}
	if dst.PriceRange == "" {
		dst.PriceRange = src.PriceRange
	}
	if dst.ImageURL == "" {
		dst.ImageURL = src.ImageURL
	}
	if dst.Phone == "" {
		dst.Phone = src.Phone
	}
}

// statusRank orders availability statuses by how much signal they carry.
var statusRank = map[model.AvailabilityStatus]int{
	model.StatusAvailable:   3,
	model.StatusLimited:     2,
	model.StatusUnavailable: 1,
	model.StatusUnknown:     0,
}

// mergeAvailability combines two platforms' views of the same restaurant
// on the same date: any positive signal wins, and time slots are pooled.
// Both inputs may alias slices served out of the availability cache, so
// the merged slots always go into a fresh slice.
func mergeAvailability(a, b model.Availability) model.Availability {
	out := a
	if statusRank[b.Status] > statusRank[a.Status] {
		out.Status = b.Status
	}
	slots := make([]string, 0, len(a.TimeSlots)+len(b.TimeSlots))
	slots = append(slots, a.TimeSlots...)
	seen := make(map[string]struct{}, len(a.TimeSlots))
	for _, s := range a.TimeSlots {
		seen[s] = struct{}{}
	}
	for _, s := range b.TimeSlots {
		if _, ok := seen[s]; !ok {
			slots = append(slots, s)
		}
	}
	sort.Strings(slots)
	out.TimeSlots = slots
	return out
}

// mealMatches drops records whose parsed slots contradict the meal filter.
// Records without slots always pass: unknown is never coerced to a "no".
func mealMatches(av model.Availability, meal string) bool {
	if meal == "" || len(av.TimeSlots) == 0 {
		return true
	}
	meals := model.ClassifyMeals(av.TimeSlots)
	switch meal {
	case "lunch":
		return meals.Lunch
	case "dinner":
		return meals.Dinner
	default:
		return true
	}
}
