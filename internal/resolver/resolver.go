// Package resolver reconciles the same physical restaurant across
// platforms that share no common key. Resolution is staged and
// short-circuits at the first confident stage; "no match" is a normal
// terminal outcome, never an error.
package resolver

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/cache"
	"github.com/tablescout/tablescout/internal/model"
	"github.com/tablescout/tablescout/pkg/anthropic"
	"github.com/tablescout/tablescout/pkg/websearch"
)

// Resolution is the outcome of resolving one restaurant. Empty Links with a
// nil error means no confident match was found anywhere.
type Resolution struct {
	Links map[model.Platform]string `json:"links"`
	Score *float64                  `json:"score,omitempty"`
	Stage string                    `json:"stage"`
}

// Resolution stages, in escalation order.
const (
	StageCached = "cached"
	StageExact  = "exact"
	StageFuzzy  = "fuzzy"
	StageSearch = "search"
	StageLLM    = "llm"
	StageNone   = "none"
)

// PhoneSource supplies saved phone numbers. Satisfied by *store.SQLiteStore.
type PhoneSource interface {
	PhoneByName(ctx context.Context, name string) (string, error)
}

// Resolver runs the staged identity-resolution pipeline.
type Resolver struct {
	caches *cache.Caches
	search websearch.Client
	llm    anthropic.Client
	phones PhoneSource
	model  string
	index  *Index
}

// New builds a Resolver. The in-memory index is seeded from every
// unexpired cached listing; phones may be nil when no local store exists.
func New(caches *cache.Caches, search websearch.Client, llm anthropic.Client, phones PhoneSource, llmModel string) *Resolver {
	var listings []model.Restaurant
	for _, batch := range caches.Listings.Values() {
		listings = append(listings, batch...)
	}
	return &Resolver{
		caches: caches,
		search: search,
		llm:    llm,
		phones: phones,
		model:  llmModel,
		index:  NewIndex(listings),
	}
}

// Observe adds freshly scraped restaurants to the in-memory index and
// writes them through to the listing cache, grouped per city, so the
// index can be reseeded after a restart.
func (r *Resolver) Observe(restaurants []model.Restaurant) {
	byCity := make(map[string][]model.Restaurant)
	for _, rest := range restaurants {
		if rest.NormalizedName == "" {
			continue
		}
		r.index.Add(rest)
		byCity[rest.City] = append(byCity[rest.City], rest)
	}

	for city, batch := range byCity {
		key := cache.Key("observed", city)
		if prior, ok := r.caches.Listings.Get(key); ok {
			batch = mergeBatch(prior, batch)
		}
		if err := r.caches.Listings.Set(key, batch); err != nil {
			zap.L().Warn("resolver: listing cache write failed", zap.Error(err))
		}
	}
}

// mergeBatch appends fresh records to prior ones, replacing any prior
// record with the same normalized name.
func mergeBatch(prior, fresh []model.Restaurant) []model.Restaurant {
	seen := make(map[string]bool, len(fresh))
	for _, rest := range fresh {
		seen[rest.NormalizedName] = true
	}
	merged := make([]model.Restaurant, 0, len(prior)+len(fresh))
	for _, rest := range prior {
		if !seen[rest.NormalizedName] {
			merged = append(merged, rest)
		}
	}
	return append(merged, fresh...)
}

// cacheKey identifies a restaurant for the persistent link and score
// caches. Area is cleaned so suffix variants share an entry.
func cacheKey(ref model.Restaurant) string {
	return cache.Key(ref.NormalizedName, ref.City, CleanArea(ref.Area))
}

// Resolve finds ref's links on the platforms it is missing from. Every
// stage writes through to the persistent cache, so repeating a resolution
// before TTL expiry re-runs nothing expensive.
func (r *Resolver) Resolve(ctx context.Context, ref model.Restaurant) (*Resolution, error) {
	log := zap.L().With(zap.String("restaurant", ref.Name))
	key := cacheKey(ref)

	if cached, ok := r.caches.Links.Get(key); ok {
		res := &Resolution{Links: cached.Links, Stage: StageCached}
		if score, ok := r.caches.Scores.Get(key); ok {
			res.Score = &score
		}
		return res, nil
	}

	// Stage 1: exact normalized-name match against cached listings.
	if matches := r.index.Exact(ref.NormalizedName); len(matches) > 0 {
		links, score := mergeLinks(ref, matches)
		if len(links) > 0 {
			return r.finish(key, ref, links, score, StageExact)
		}
	}

	// Stage 2: fuzzy token match, best shared-token candidate first.
	if matches := r.index.Fuzzy(ref.NormalizedName); len(matches) > 0 {
		links, score := mergeLinks(ref, matches[:1])
		if len(links) > 0 {
			log.Debug("resolver: fuzzy match",
				zap.String("matched", matches[0].Name),
			)
			return r.finish(key, ref, links, score, StageFuzzy)
		}
	}

	// Stages 3-5: external search per missing platform, escalating to
	// model disambiguation when several candidates survive filtering.
	links := make(map[model.Platform]string)
	stage := StageSearch
	for _, platform := range model.AllPlatforms {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ref.Link(platform) != "" {
			continue
		}

		url, usedLLM, err := r.resolveOnPlatform(ctx, ref, platform)
		if err != nil {
			// One platform failing must not lose the others' links.
			log.Warn("resolver: platform lookup failed",
				zap.String("platform", string(platform)),
				zap.Error(err),
			)
			continue
		}
		if usedLLM {
			stage = StageLLM
		}
		if url != "" {
			links[platform] = url
		}
	}

	if len(links) == 0 {
		stage = StageNone
	}
	return r.finish(key, ref, links, ref.Score, stage)
}

// finish writes the outcome through to the persistent caches and shapes
// the Resolution. Negative outcomes are cached too, so unresolvable
// restaurants don't re-trigger searches until the TTL lapses.
func (r *Resolver) finish(key string, ref model.Restaurant, links map[model.Platform]string, score *float64, stage string) (*Resolution, error) {
	if err := r.caches.Links.Set(key, cache.ResolvedLinks{Links: links, Stage: stage}); err != nil {
		return nil, eris.Wrap(err, "resolver: persist links")
	}
	if score == nil {
		score = ref.Score
	}
	if score != nil {
		if err := r.caches.Scores.Set(key, *score); err != nil {
			return nil, eris.Wrap(err, "resolver: persist score")
		}
	}
	return &Resolution{Links: links, Score: score, Stage: stage}, nil
}

// resolveOnPlatform finds ref's page on one platform via site-restricted
// search: first name plus location, then phone-only when a number is
// known, since phone numbers are a near-unique key.
func (r *Resolver) resolveOnPlatform(ctx context.Context, ref model.Restaurant, platform model.Platform) (string, bool, error) {
	domain := platformDomains[platform]
	if domain == "" || r.search == nil {
		return "", false, nil
	}

	location := CleanArea(ref.Area)
	if location == "" {
		location = ref.City
	}
	query := ref.Name
	if location != "" {
		query += " " + location
	}

	resp, err := r.search.Search(ctx, query,
		websearch.WithSiteFilter(domain),
		websearch.WithResultCount(5),
	)
	if err != nil {
		return "", false, eris.Wrap(err, "resolver: name search")
	}
	candidates := filterCandidates(platform, resp.Data)

	// The name pass only trusts candidates whose title plausibly carries
	// the restaurant's name. The phone pass below skips this check since a
	// phone number is a near-unique key on its own.
	candidates = filterByTitle(ref, candidates)

	if len(candidates) == 0 {
		phone := r.phoneFor(ctx, ref)
		if phone == "" {
			return "", false, nil
		}
		resp, err = r.search.Search(ctx, phone,
			websearch.WithSiteFilter(domain),
			websearch.WithResultCount(5),
		)
		if err != nil {
			return "", false, eris.Wrap(err, "resolver: phone search")
		}
		candidates = filterCandidates(platform, resp.Data)
		if len(candidates) == 0 {
			return "", false, nil
		}
	}

	if len(candidates) == 1 {
		r.verifyPhone(ref, candidates[0])
		return candidates[0].URL, false, nil
	}

	if r.llm == nil {
		// Multiple candidates and no disambiguator: a false positive is
		// worse than a false negative.
		return "", false, nil
	}
	pick, err := r.disambiguate(ctx, ref, platform, candidates)
	if err != nil {
		return "", true, err
	}
	if pick < 0 {
		return "", true, nil
	}
	r.verifyPhone(ref, candidates[pick])
	return candidates[pick].URL, true, nil
}

// verifyPhone compares the candidate's visible phone number against the
// reference's. A mismatch downgrades confidence in the match but never
// rejects it alone: platforms show reservation-desk numbers that differ
// from the restaurant's direct line.
func (r *Resolver) verifyPhone(ref model.Restaurant, candidate websearch.Result) {
	if ref.Phone == "" {
		return
	}
	refDigits := digitsOnly(ref.Phone)
	candDigits := extractPhoneDigits(candidate.Description)
	if candDigits == "" || refDigits == "" {
		return
	}
	if !strings.Contains(candDigits, lastN(refDigits, 8)) {
		zap.L().Warn("resolver: candidate phone mismatch, keeping match with reduced confidence",
			zap.String("restaurant", ref.Name),
			zap.String("url", candidate.URL),
		)
	}
}

// phoneFor returns ref's phone, falling back to the local store of saved
// restaurants.
func (r *Resolver) phoneFor(ctx context.Context, ref model.Restaurant) string {
	if ref.Phone != "" {
		return ref.Phone
	}
	if r.phones == nil {
		return ""
	}
	phone, err := r.phones.PhoneByName(ctx, ref.Name)
	if err != nil {
		zap.L().Warn("resolver: phone lookup failed", zap.Error(err))
		return ""
	}
	return phone
}
