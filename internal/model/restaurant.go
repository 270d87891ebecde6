// Package model defines the domain types shared across the scraping,
// resolution, and aggregation layers.
package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Platform identifies a booking platform.
type Platform string

const (
	PlatformTabelog    Platform = "tabelog"
	PlatformOmakase    Platform = "omakase"
	PlatformTablecheck Platform = "tablecheck"
	PlatformTableall   Platform = "tableall"
)

// AllPlatforms lists every supported platform in scrape order.
var AllPlatforms = []Platform{
	PlatformTabelog,
	PlatformOmakase,
	PlatformTablecheck,
	PlatformTableall,
}

// Restaurant is one discovered restaurant candidate. Instances are created
// fresh per scrape; the resolver reconciles records for the same physical
// restaurant without destructively merging them.
type Restaurant struct {
	Name           string              `json:"name"`
	NormalizedName string              `json:"normalized_name"`
	PlatformLinks  map[Platform]string `json:"platform_links,omitempty"`
	Score          *float64            `json:"score,omitempty"`
	Cuisine        string              `json:"cuisine,omitempty"`
	Area           string              `json:"area,omitempty"`
	City           string              `json:"city,omitempty"`
	PriceRange     string              `json:"price_range,omitempty"`
	ImageURL       string              `json:"image_url,omitempty"`
	Phone          string              `json:"phone,omitempty"`

	// Extra carries platform-specific fields that have no common slot,
	// keyed by platform-prefixed names (e.g. "tabelog.award").
	Extra map[string]string `json:"extra,omitempty"`
}

// NewRestaurant creates a Restaurant with its normalized name derived.
func NewRestaurant(name string) Restaurant {
	return Restaurant{
		Name:           name,
		NormalizedName: NormalizeName(name),
		PlatformLinks:  make(map[Platform]string),
	}
}

// Link returns the link for a platform, empty when unknown.
func (r *Restaurant) Link(p Platform) string {
	return r.PlatformLinks[p]
}

// SetLink records a platform link, allocating the map if needed.
func (r *Restaurant) SetLink(p Platform, url string) {
	if r.PlatformLinks == nil {
		r.PlatformLinks = make(map[Platform]string)
	}
	r.PlatformLinks[p] = url
}

// InfoScore counts populated optional fields. Used to keep the
// higher-information record when a page lists the same restaurant twice.
func (r *Restaurant) InfoScore() int {
	score := 0
	if r.Score != nil {
		score++
	}
	for _, s := range []string{r.Cuisine, r.Area, r.City, r.PriceRange, r.ImageURL, r.Phone} {
		if s != "" {
			score++
		}
	}
	score += len(r.PlatformLinks)
	return score
}

// stripMarks builds the diacritic-removal transformer. Chained
// transformers carry state across calls, so each caller gets its own.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// NormalizeName lowercases, strips diacritics, and collapses runs of
// non-alphanumerics into single spaces. This is the primary fuzzy-match key,
// so it must be deterministic for a given input. Safe for concurrent use.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	if stripped, _, err := transform.String(stripMarks(), name); err == nil {
		name = stripped
	}

	var b strings.Builder
	b.Grow(len(name))
	lastSpace := false
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
