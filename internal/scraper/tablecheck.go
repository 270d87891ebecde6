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

// Tablecheck scrapes tablecheck search results. The time-slot chips are
// populated by client-side script after load, so this platform always takes
// the rendered path and waits for the shop list to appear.
type Tablecheck struct {
	BaseURL string
	PageCap int
	Fetcher PageFetcher
}

// Platform implements Scraper.
func (t *Tablecheck) Platform() model.Platform { return model.PlatformTablecheck }

// Search implements Scraper.
func (t *Tablecheck) Search(ctx context.Context, params SearchParams) ([]model.DatedRestaurant, error) {
	pageCap := t.PageCap
	if pageCap <= 0 {
		pageCap = 10
	}

	var all []model.DatedRestaurant
	for page := 1; page <= pageCap; page++ {
		q := url.Values{}
		q.Set("start_date", params.Date)
		q.Set("num_people", strconv.Itoa(params.PartySize))
		q.Set("page", strconv.Itoa(page))
		if params.Meal != "" {
			q.Set("service_mode", params.Meal)
		}
		pageURL := fmt.Sprintf("%s/%s/search?%s", t.BaseURL, url.PathEscape(strings.ToLower(params.City)), q.Encode())

		fetched, err := t.Fetcher.Page(ctx, pageURL, fetch.Options{
			RequiresRender: true,
			WaitSelector:   "div.shop-list",
		})
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			zap.L().Warn("tablecheck: page fetch failed, skipping",
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}

		records, hasNext, err := parseTablecheckList(fetched.HTML, t.BaseURL, params.Date)
		if err != nil {
			zap.L().Warn("tablecheck: parse failed, skipping page",
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
	return dedupe(all, model.PlatformTablecheck), nil
}

// parseTablecheckList extracts shop cards from one rendered results page.
func parseTablecheckList(html, baseURL, date string) ([]model.DatedRestaurant, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, eris.Wrap(err, "tablecheck: parse html")
	}

	var records []model.DatedRestaurant
	doc.Find("div.shop-card").Each(func(_ int, card *goquery.Selection) {
		nameLink := card.Find("a.shop-card__name").First()
		name := strings.TrimSpace(nameLink.Text())
		if name == "" {
			return
		}

		r := model.NewRestaurant(name)
		if href, ok := nameLink.Attr("href"); ok {
			r.SetLink(model.PlatformTablecheck, absoluteURL(baseURL, href))
		}
		r.Score = parseScore(card.Find("span.shop-card__rating").First().Text())
		r.Cuisine, r.Area = splitGenreArea(card.Find("p.shop-card__tags").First().Text(), "|")
		r.PriceRange = strings.TrimSpace(card.Find("span.shop-card__budget").First().Text())
		r.ImageURL = imageURL(card)

		var slots []string
		card.Find("a.timeslot-chip").Each(func(_ int, chip *goquery.Selection) {
			if href, ok := chip.Attr("href"); ok {
				if slot, ok := slotFromBookingLink(href); ok {
					slots = append(slots, slot)
					return
				}
			}
			if slot, ok := normalizeSlot(chip.Text()); ok {
				slots = append(slots, slot)
			}
		})
		slots = sortSlots(slots)

		status := model.StatusAvailable
		if len(slots) == 0 {
			if card.Find("span.shop-card__waitlist").Length() > 0 {
				status = model.StatusLimited
			} else {
				// Chips may simply not have rendered before the wait
				// timeout expired.
				status = model.StatusUnknown
			}
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

	hasNext := doc.Find("a[rel='next']").Length() > 0
	return records, hasNext, nil
}
