package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/fetch"
	"github.com/tablescout/tablescout/internal/model"
)

// Tabelog scrapes tabelog listing pages. Listings are server-rendered, so
// the static path suffices.
type Tabelog struct {
	BaseURL string
	PageCap int
	Fetcher PageFetcher
}

// Platform implements Scraper.
func (t *Tabelog) Platform() model.Platform { return model.PlatformTabelog }

// Search paginates the date-filtered listing up to the page cap, stopping
// early when no next-page link is present. A single failed page costs only
// that page's contribution.
func (t *Tabelog) Search(ctx context.Context, params SearchParams) ([]model.DatedRestaurant, error) {
	pageCap := t.PageCap
	if pageCap <= 0 {
		pageCap = 20
	}

	var all []model.DatedRestaurant
	for page := 1; page <= pageCap; page++ {
		pageURL := t.listURL(params, page)
		fetched, err := t.Fetcher.Page(ctx, pageURL, fetch.Options{})
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			zap.L().Warn("tabelog: page fetch failed, skipping",
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}

		records, hasNext, err := parseTabelogList(fetched.HTML, t.BaseURL, params.Date)
		if err != nil {
			zap.L().Warn("tabelog: parse failed, skipping page",
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}
		all = append(all, records...)
		if !hasNext {
			break
		}
	}
	return dedupe(all, model.PlatformTabelog), nil
}

// listURL builds the paginated, date-filtered listing URL.
func (t *Tabelog) listURL(params SearchParams, page int) string {
	q := url.Values{}
	q.Set("svd", compactDate(params.Date))
	q.Set("svps", strconv.Itoa(params.PartySize))
	if svt := mealStartTime(params.Meal); svt != "" {
		q.Set("svt", svt)
	}
	return fmt.Sprintf("%s/%s/rstLst/%d/?%s", t.BaseURL, url.PathEscape(strings.ToLower(params.City)), page, q.Encode())
}

// parseTabelogList extracts restaurant cards from one listing page. Pure:
// the same HTML always yields the same records.
func parseTabelogList(html, baseURL, date string) ([]model.DatedRestaurant, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, eris.Wrap(err, "tabelog: parse html")
	}

	var records []model.DatedRestaurant
	doc.Find("div.list-rst").Each(func(_ int, card *goquery.Selection) {
		nameLink := card.Find("a.list-rst__rst-name-target").First()
		name := strings.TrimSpace(nameLink.Text())
		if name == "" {
			return
		}

		r := model.NewRestaurant(name)
		if href, ok := nameLink.Attr("href"); ok {
			r.SetLink(model.PlatformTabelog, absoluteURL(baseURL, href))
		}
		r.Score = parseScore(card.Find("span.c-rating__val").First().Text())
		r.Cuisine, r.Area = splitGenreArea(card.Find("div.list-rst__area-genre").First().Text(), "/")
		r.PriceRange = strings.TrimSpace(card.Find("span.list-rst__budget-val").First().Text())
		r.ImageURL = imageURL(card)

		var slots []string
		card.Find("a.booking-vacancy__time").Each(func(_ int, link *goquery.Selection) {
			if href, ok := link.Attr("href"); ok {
				if slot, ok := slotFromBookingLink(href); ok {
					slots = append(slots, slot)
					return
				}
			}
			if slot, ok := normalizeSlot(link.Text()); ok {
				slots = append(slots, slot)
			}
		})
		slots = sortSlots(slots)

		// Presence on a date-filtered page is itself the availability
		// signal; slots refine it when the reserve widget is present.
		records = append(records, model.DatedRestaurant{
			Restaurant: r,
			Availability: model.Availability{
				Date:      date,
				Status:    model.StatusAvailable,
				TimeSlots: slots,
			},
		})
	})

	hasNext := doc.Find("a.c-pagination__arrow--next").Length() > 0
	return records, hasNext, nil
}
