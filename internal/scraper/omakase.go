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

// Omakase scrapes the curated omakase listing. The catalog is small, so the
// page cap stays low.
type Omakase struct {
	BaseURL string
	PageCap int
	Fetcher PageFetcher
}

// Platform implements Scraper.
func (o *Omakase) Platform() model.Platform { return model.PlatformOmakase }

// Search implements Scraper.
func (o *Omakase) Search(ctx context.Context, params SearchParams) ([]model.DatedRestaurant, error) {
	pageCap := o.PageCap
	if pageCap <= 0 {
		pageCap = 5
	}

	var all []model.DatedRestaurant
	for page := 1; page <= pageCap; page++ {
		q := url.Values{}
		q.Set("date", params.Date)
		q.Set("seats", strconv.Itoa(params.PartySize))
		q.Set("area", strings.ToLower(params.City))
		q.Set("page", strconv.Itoa(page))
		pageURL := fmt.Sprintf("%s/restaurants?%s", o.BaseURL, q.Encode())

		fetched, err := o.Fetcher.Page(ctx, pageURL, fetch.Options{})
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			zap.L().Warn("omakase: page fetch failed, skipping",
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}

		records, hasNext, err := parseOmakaseList(fetched.HTML, o.BaseURL, params.Date)
		if err != nil {
			zap.L().Warn("omakase: parse failed, skipping page",
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
	return dedupe(all, model.PlatformOmakase), nil
}

// parseOmakaseList extracts restaurant cards from one curated listing page.
func parseOmakaseList(html, baseURL, date string) ([]model.DatedRestaurant, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, eris.Wrap(err, "omakase: parse html")
	}

	var records []model.DatedRestaurant
	doc.Find("li.restaurant-card").Each(func(_ int, card *goquery.Selection) {
		name := strings.TrimSpace(card.Find("h3.restaurant-card__name").First().Text())
		if name == "" {
			return
		}

		r := model.NewRestaurant(name)
		if href, ok := card.Find("a.restaurant-card__link").First().Attr("href"); ok {
			r.SetLink(model.PlatformOmakase, absoluteURL(baseURL, href))
		}
		// Genre text uses the katakana middle dot as delimiter.
		r.Cuisine, r.Area = splitGenreArea(card.Find("p.restaurant-card__genre").First().Text(), "・")
		r.PriceRange = strings.TrimSpace(card.Find("p.restaurant-card__price").First().Text())
		r.ImageURL = imageURL(card)

		var slots []string
		soldOut := card.Find("span.restaurant-card__soldout").Length() > 0
		card.Find("a.reservation-slot").Each(func(_ int, link *goquery.Selection) {
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

		status := model.StatusAvailable
		switch {
		case soldOut:
			status = model.StatusUnavailable
		case len(slots) == 0:
			// Card present but no slot widget rendered: no signal either way.
			status = model.StatusUnknown
		}

		records = append(records, model.DatedRestaurant{
			Restaurant: r,
			Availability: model.Availability{
				Date:      date,
				Status:    status,
				TimeSlots: slots,
			},
		})
	})

	hasNext := doc.Find("a.pagination__next").Not(".is-disabled").Length() > 0
	return records, hasNext, nil
}
