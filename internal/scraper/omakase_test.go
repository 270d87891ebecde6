package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/tablescout/internal/model"
)

const omakaseListHTML = `<html><body>
<ul>
<li class="restaurant-card">
  <a class="restaurant-card__link" href="/restaurants/sushi-amamoto"></a>
  <h3 class="restaurant-card__name">Sushi Amamoto</h3>
  <p class="restaurant-card__genre">Sushi・Higashi-Azabu</p>
  <p class="restaurant-card__price">JPY 40,000</p>
  <img data-src="https://omakase.example.com/amamoto.jpg" src="data:image/gif;base64,x">
  <a class="reservation-slot" href="/reserve?time=18:00">18:00</a>
</li>
<li class="restaurant-card">
  <h3 class="restaurant-card__name">Kohaku</h3>
  <p class="restaurant-card__genre">Kaiseki・Kagurazaka</p>
  <span class="restaurant-card__soldout">Sold out</span>
</li>
<li class="restaurant-card">
  <h3 class="restaurant-card__name">Matsukawa</h3>
  <p class="restaurant-card__genre">Kaiseki・Akasaka</p>
</li>
</ul>
<a class="pagination__next is-disabled" href="#">Next</a>
</body></html>`

func TestParseOmakaseList(t *testing.T) {
	t.Parallel()

	records, hasNext, err := parseOmakaseList(omakaseListHTML, "https://omakase.in", "2025-05-10")
	require.NoError(t, err)
	assert.False(t, hasNext, "disabled next link must not trigger pagination")
	require.Len(t, records, 3)

	amamoto := records[0]
	assert.Equal(t, "Sushi Amamoto", amamoto.Restaurant.Name)
	assert.Equal(t, "https://omakase.in/restaurants/sushi-amamoto",
		amamoto.Restaurant.Link(model.PlatformOmakase))
	assert.Equal(t, "Sushi", amamoto.Restaurant.Cuisine)
	assert.Equal(t, "Higashi-Azabu", amamoto.Restaurant.Area)
	assert.Equal(t, "https://omakase.example.com/amamoto.jpg", amamoto.Restaurant.ImageURL)
	assert.Equal(t, model.StatusAvailable, amamoto.Availability.Status)
	assert.Equal(t, []string{"18:00"}, amamoto.Availability.TimeSlots)

	assert.Equal(t, model.StatusUnavailable, records[1].Availability.Status)

	// No soldout marker and no slots: no signal either way.
	assert.Equal(t, model.StatusUnknown, records[2].Availability.Status)
}

func TestOmakaseSearch_SinglePage(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{fallback: omakaseListHTML}
	s := &Omakase{BaseURL: "https://omakase.in", PageCap: 5, Fetcher: f}

	records, err := s.Search(context.Background(), SearchParams{
		City: "Tokyo", Date: "2025-05-10", PartySize: 2,
	})
	require.NoError(t, err)
	assert.Len(t, records, 3)
	require.Len(t, f.requests, 1)
	assert.Contains(t, f.requests[0], "date=2025-05-10")
	assert.Contains(t, f.requests[0], "area=tokyo")
	assert.Contains(t, f.requests[0], "seats=2")
}
