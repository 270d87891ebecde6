package cache

import (
	"path/filepath"
	"time"

	"github.com/tablescout/tablescout/internal/model"
)

// Domain TTLs. Listing pages change slowly, calendars shift daily, and
// restaurant identity is effectively stable.
const (
	ListingTTL      = 24 * time.Hour
	AvailabilityTTL = 4 * time.Hour
	LinksTTL        = 30 * 24 * time.Hour
	ScoresTTL       = 30 * 24 * time.Hour
	MediaTTL        = 7 * 24 * time.Hour
	ReviewsTTL      = 7 * 24 * time.Hour
	TranslationTTL  = 30 * 24 * time.Hour
)

// ResolvedLinks is the persisted identity-link cache value.
type ResolvedLinks struct {
	Links map[model.Platform]string `json:"links"`
	Stage string                    `json:"stage"`
}

// Caches bundles one Cache per domain, all rooted in one directory.
// The media, reviews, and translations domains are persisted state shared
// with the trip surfaces that own this data dir; search itself never
// writes them, it only reports and prunes them.
type Caches struct {
	Listings     *Cache[[]model.Restaurant]
	Availability *Cache[[]model.DatedRestaurant]
	Links        *Cache[ResolvedLinks]
	Scores       *Cache[float64]
	Media        *Cache[[]string]
	Reviews      *Cache[[]string]
	Translations *Cache[string]
}

// Open loads every cache domain under dir.
func Open(dir string) *Caches {
	return &Caches{
		Listings:     New[[]model.Restaurant](filepath.Join(dir, "listings.json"), ListingTTL),
		Availability: New[[]model.DatedRestaurant](filepath.Join(dir, "availability.json"), AvailabilityTTL),
		Links:        New[ResolvedLinks](filepath.Join(dir, "links.json"), LinksTTL),
		Scores:       New[float64](filepath.Join(dir, "scores.json"), ScoresTTL),
		Media:        New[[]string](filepath.Join(dir, "media.json"), MediaTTL),
		Reviews:      New[[]string](filepath.Join(dir, "reviews.json"), ReviewsTTL),
		Translations: New[string](filepath.Join(dir, "translations.json"), TranslationTTL),
	}
}

// DomainStat describes one domain for the cache CLI.
type DomainStat struct {
	Domain  string
	Entries int
	TTL     time.Duration
}

// Stats reports entry counts per domain.
func (c *Caches) Stats() []DomainStat {
	return []DomainStat{
		{"listings", c.Listings.Len(), ListingTTL},
		{"availability", c.Availability.Len(), AvailabilityTTL},
		{"links", c.Links.Len(), LinksTTL},
		{"scores", c.Scores.Len(), ScoresTTL},
		{"media", c.Media.Len(), MediaTTL},
		{"reviews", c.Reviews.Len(), ReviewsTTL},
		{"translations", c.Translations.Len(), TranslationTTL},
	}
}

// Prune drops expired entries in every domain, returning the total removed.
func (c *Caches) Prune() (int, error) {
	total := 0
	for _, p := range []interface{ Prune() (int, error) }{
		c.Listings, c.Availability, c.Links, c.Scores, c.Media, c.Reviews, c.Translations,
	} {
		n, err := p.Prune()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
