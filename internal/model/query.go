package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// MaxQueryDates caps fan-out per query.
const MaxQueryDates = 14

// SearchQuery is one caller request for availability discovery.
type SearchQuery struct {
	City      string   `json:"city"`
	Dates     []string `json:"dates"` // ISO calendar dates
	PartySize int      `json:"party_size"`
	Meal      string   `json:"meal,omitempty"` // "lunch", "dinner", or empty
}

// Validate checks the query before any fan-out begins. Validation failures
// are whole-query errors; everything after fan-out degrades per-unit instead.
func (q *SearchQuery) Validate() error {
	if q.City == "" {
		return eris.New("query: city is required")
	}
	if len(q.Dates) == 0 {
		return eris.New("query: at least one date is required")
	}
	if len(q.Dates) > MaxQueryDates {
		return eris.Errorf("query: at most %d dates per query, got %d", MaxQueryDates, len(q.Dates))
	}
	for _, d := range q.Dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return eris.Errorf("query: invalid date %q", d)
		}
	}
	if q.PartySize < 1 {
		return eris.Errorf("query: party size must be positive, got %d", q.PartySize)
	}
	switch q.Meal {
	case "", "lunch", "dinner":
	default:
		return eris.Errorf("query: invalid meal %q", q.Meal)
	}
	return nil
}
