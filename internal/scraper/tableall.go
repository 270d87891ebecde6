package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/fetch"
	"github.com/tablescout/tablescout/internal/model"
	"github.com/tablescout/tablescout/internal/session"
)

// SessionSource abstracts the session manager for tests.
type SessionSource interface {
	Acquire(ctx context.Context, p model.Platform) (*model.Session, func(), error)
	Reauthenticate(ctx context.Context, sess *model.Session) error
}

// Tableall scrapes the members-only tableall listing. Pages are gated
// behind login and the availability grid is script-rendered, so every fetch
// goes through the browser with restored session cookies.
type Tableall struct {
	BaseURL  string
	PageCap  int
	Fetcher  PageFetcher
	Sessions SessionSource
}

// Platform implements Scraper.
func (t *Tableall) Platform() model.Platform { return model.PlatformTableall }

// Search implements Scraper. The session is held for the whole pagination
// run and released on every path.
func (t *Tableall) Search(ctx context.Context, params SearchParams) ([]model.DatedRestaurant, error) {
	sess, release, err := t.Sessions.Acquire(ctx, model.PlatformTableall)
	if err != nil {
		return nil, err
	}
	defer release()

	pageCap := t.PageCap
	if pageCap <= 0 {
		pageCap = 5
	}

	var all []model.DatedRestaurant
	for page := 1; page <= pageCap; page++ {
		q := url.Values{}
		q.Set("area", strings.ToLower(params.City))
		q.Set("page", strconv.Itoa(page))
		pageURL := fmt.Sprintf("%s/restaurants?%s", t.BaseURL, q.Encode())

		fetched, err := t.fetchAuthed(ctx, pageURL, sess)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			zap.L().Warn("tableall: page fetch failed, skipping",
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}

		records, hasNext, err := parseTableallList(fetched.HTML, t.BaseURL, params)
		if err != nil {
			zap.L().Warn("tableall: parse failed, skipping page",
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
	return dedupe(all, model.PlatformTableall), nil
}

// fetchAuthed fetches a page with session cookies, transparently
// re-authenticating once when the navigation lands on a login page.
func (t *Tableall) fetchAuthed(ctx context.Context, pageURL string, sess *model.Session) (*fetch.Page, error) {
	opts := fetch.Options{
		RequiresRender: true,
		WaitSelector:   "table.availability-grid",
		Cookies:        session.Cookies(sess),
	}
	page, err := t.Fetcher.Page(ctx, pageURL, opts)
	if err != nil {
		return nil, err
	}
	if !session.DetectLoginRedirect(page.FinalURL) {
		return page, nil
	}

	if err := t.Sessions.Reauthenticate(ctx, sess); err != nil {
		return nil, eris.Wrap(err, "tableall: reauthenticate")
	}
	opts.Cookies = session.Cookies(sess)
	page, err = t.Fetcher.Page(ctx, pageURL, opts)
	if err != nil {
		return nil, err
	}
	if session.DetectLoginRedirect(page.FinalURL) {
		return nil, eris.New("tableall: still redirected to login after re-authentication")
	}
	return page, nil
}

// parseTableallList extracts restaurant rows and their availability grids.
func parseTableallList(html, baseURL string, params SearchParams) ([]model.DatedRestaurant, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, eris.Wrap(err, "tableall: parse html")
	}

	baseYear := yearOf(params.Date)

	var records []model.DatedRestaurant
	doc.Find("section.restaurant-row").Each(func(_ int, row *goquery.Selection) {
		nameLink := row.Find("a.restaurant-row__name").First()
		name := strings.TrimSpace(nameLink.Text())
		if name == "" {
			return
		}

		r := model.NewRestaurant(name)
		if href, ok := nameLink.Attr("href"); ok {
			r.SetLink(model.PlatformTableall, absoluteURL(baseURL, href))
		}
		r.Cuisine, r.Area = splitGenreArea(row.Find("p.restaurant-row__genre").First().Text(), "/")
		r.ImageURL = imageURL(row)

		grid := parseAvailabilityGrid(row.Find("table.availability-grid").First(), baseYear)
		records = append(records, model.DatedRestaurant{
			Restaurant:   r,
			Availability: grid.forDate(params.Date, params.Meal),
		})
	})

	hasNext := doc.Find("a.pager__next").Not(".is-disabled").Length() > 0
	return records, hasNext, nil
}

// availabilityGrid is the parsed per-date, per-meal availability table.
type availabilityGrid struct {
	dates  []string // ISO, column order
	lunch  map[string]bool
	dinner map[string]bool
}

// forDate reduces the grid to one Availability for the requested date.
func (g *availabilityGrid) forDate(date, meal string) model.Availability {
	av := model.Availability{Date: date, Status: model.StatusUnknown}

	known := false
	for _, d := range g.dates {
		if d == date {
			known = true
			break
		}
	}
	if !known {
		// Date not covered by the grid: no signal, and unknown must not
		// degrade to unavailable downstream.
		return av
	}

	lunchOpen := g.lunch[date]
	dinnerOpen := g.dinner[date]

	var open bool
	switch meal {
	case "lunch":
		open = lunchOpen
	case "dinner":
		open = dinnerOpen
	default:
		open = lunchOpen || dinnerOpen
	}

	if open {
		av.Status = model.StatusAvailable
	} else {
		av.Status = model.StatusUnavailable
	}
	return av
}

var monthAbbrevs = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// parseAvailabilityGrid reads the grid table: the header row carries
// month-abbreviation + day labels (with year rollover when the month
// decreases), body rows alternate meal type detected via icon class, and a
// cell is open when it carries the available marker class.
func parseAvailabilityGrid(table *goquery.Selection, baseYear int) *availabilityGrid {
	grid := &availabilityGrid{
		lunch:  make(map[string]bool),
		dinner: make(map[string]bool),
	}
	if table.Length() == 0 {
		return grid
	}

	year := baseYear
	var prevMonth time.Month
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		if i == 0 {
			return // corner cell above the meal-icon column
		}
		month, day, ok := parseGridHeader(th.Text())
		if !ok {
			grid.dates = append(grid.dates, "")
			return
		}
		if prevMonth != 0 && month < prevMonth {
			year++
		}
		prevMonth = month
		grid.dates = append(grid.dates, time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02"))
	})

	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		var target map[string]bool
		switch {
		case tr.Find("i.icon-lunch").Length() > 0:
			target = grid.lunch
		case tr.Find("i.icon-dinner").Length() > 0:
			target = grid.dinner
		default:
			return
		}

		tr.Children().Each(func(col int, cell *goquery.Selection) {
			if col == 0 {
				return // meal-icon cell, lines up with the corner header
			}
			idx := col - 1
			if idx >= len(grid.dates) || grid.dates[idx] == "" {
				return
			}
			if cell.HasClass("is-available") || cell.Find(".mark-available").Length() > 0 {
				target[grid.dates[idx]] = true
			}
		})
	})

	return grid
}

// parseGridHeader parses labels like "May 10" or "Dec 31".
func parseGridHeader(text string) (time.Month, int, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) != 2 {
		return 0, 0, false
	}
	month, ok := monthAbbrevs[strings.ToLower(fields[0])[:min(3, len(fields[0]))]]
	if !ok {
		return 0, 0, false
	}
	day, err := strconv.Atoi(fields[1])
	if err != nil || day < 1 || day > 31 {
		return 0, 0, false
	}
	return month, day, true
}

func yearOf(isoDate string) int {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return time.Now().Year()
	}
	return t.Year()
}
