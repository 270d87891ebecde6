package resolver

import (
	"sync"

	"github.com/tablescout/tablescout/internal/model"
)

// Index is an in-memory lookup over every restaurant seen in cached listing
// results, across all platforms. Exact lookups are by normalized name;
// fuzzy lookups scan with token matching. Safe for concurrent use: one
// query's Observe runs while another query is mid-resolution.
type Index struct {
	mu     sync.RWMutex
	byName map[string][]model.Restaurant
	all    []model.Restaurant
}

// NewIndex builds an index from listing results.
func NewIndex(listings []model.Restaurant) *Index {
	idx := &Index{byName: make(map[string][]model.Restaurant)}
	for _, r := range listings {
		idx.Add(r)
	}
	return idx
}

// Add inserts one restaurant. Entries without a normalized name are
// unmatchable and skipped.
func (idx *Index) Add(r model.Restaurant) {
	if r.NormalizedName == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byName[r.NormalizedName] = append(idx.byName[r.NormalizedName], r)
	idx.all = append(idx.all, r)
}

// Len reports the number of indexed restaurants.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.all)
}

// Exact returns every indexed restaurant whose normalized name equals the
// given one.
func (idx *Index) Exact(normalized string) []model.Restaurant {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.byName[normalized]
}

// Fuzzy returns token-match candidates ordered best-first by shared token
// count. Exact-name entries are excluded; callers try Exact first.
func (idx *Index) Fuzzy(normalized string) []model.Restaurant {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		r      model.Restaurant
		shared int
	}
	var hits []scored
	for _, r := range idx.all {
		if r.NormalizedName == normalized {
			continue
		}
		if nameMatch(normalized, r.NormalizedName) {
			hits = append(hits, scored{r, sharedTokenCount(normalized, r.NormalizedName)})
		}
	}

	// Stable preference for the candidate sharing the most tokens.
	out := make([]model.Restaurant, 0, len(hits))
	for len(hits) > 0 {
		best := 0
		for i := 1; i < len(hits); i++ {
			if hits[i].shared > hits[best].shared {
				best = i
			}
		}
		out = append(out, hits[best].r)
		hits = append(hits[:best], hits[best+1:]...)
	}
	return out
}

// mergeLinks collects platform links from matches that ref does not already
// carry, along with the best score any match knows.
func mergeLinks(ref model.Restaurant, matches []model.Restaurant) (map[model.Platform]string, *float64) {
	links := make(map[model.Platform]string)
	var score *float64
	for _, m := range matches {
		for p, link := range m.PlatformLinks {
			if link == "" || ref.Link(p) != "" {
				continue
			}
			if _, ok := links[p]; !ok {
				links[p] = link
			}
		}
		if m.Score != nil && (score == nil || *m.Score > *score) {
			score = m.Score
		}
	}
	return links, score
}
