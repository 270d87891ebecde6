package scraper

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tablescout/tablescout/internal/model"
)

// dedupe collapses records that share a key (platform URL, falling back to
// normalized name), keeping the higher-information record.
func dedupe(records []model.DatedRestaurant, platform model.Platform) []model.DatedRestaurant {
	seen := make(map[string]int) // key → index into out
	out := make([]model.DatedRestaurant, 0, len(records))

	for _, rec := range records {
		key := rec.Restaurant.PlatformLinks[platform]
		if key == "" {
			key = rec.Restaurant.NormalizedName
		}
		if key == "" {
			out = append(out, rec)
			continue
		}

		if idx, ok := seen[key]; ok {
			if rec.Restaurant.InfoScore() > out[idx].Restaurant.InfoScore() {
				out[idx] = rec
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, rec)
	}
	return out
}

// slotParamKeys are the booking-link query parameters that carry a time.
var slotParamKeys = []string{"svt", "time", "start_time", "reserved_time", "seat_time"}

var hhmmRe = regexp.MustCompile(`^([01]?\d|2[0-3]):?([0-5]\d)$`)

// slotFromBookingLink extracts an HH:MM slot from a booking link's query
// parameters. Accepts both "18:30" and compact "1830" forms.
func slotFromBookingLink(href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	q := u.Query()
	for _, key := range slotParamKeys {
		if v := q.Get(key); v != "" {
			if slot, ok := normalizeSlot(v); ok {
				return slot, true
			}
		}
	}
	return "", false
}

// normalizeSlot canonicalizes a time string into zero-padded HH:MM.
func normalizeSlot(v string) (string, bool) {
	m := hhmmRe.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	return strconv.Itoa(hour/10) + strconv.Itoa(hour%10) + ":" + m[2], true
}

// sortSlots orders HH:MM strings chronologically and drops duplicates.
func sortSlots(slots []string) []string {
	if len(slots) == 0 {
		return slots
	}
	uniq := make(map[string]struct{}, len(slots))
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if _, ok := uniq[s]; ok {
			continue
		}
		uniq[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

var bgImageRe = regexp.MustCompile(`background-image\s*:\s*url\(['"]?([^'")]+)['"]?\)`)

// imageURL extracts a restaurant photo from a card, preferring a
// background-image style attribute and falling back to lazy-load image
// attributes.
func imageURL(card *goquery.Selection) string {
	found := ""
	card.Find("[style*='background-image']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		style, _ := sel.Attr("style")
		if m := bgImageRe.FindStringSubmatch(style); m != nil {
			found = m[1]
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	img := card.Find("img").First()
	for _, attr := range []string{"data-original", "data-src", "data-lazy", "src"} {
		if v, ok := img.Attr(attr); ok && v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

// parseScore parses a platform score, rejecting values outside 0–5.
func parseScore(text string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}

// splitGenreArea splits combined "cuisine <delim> area" text.
func splitGenreArea(text, delim string) (cuisine, area string) {
	parts := strings.SplitN(text, delim, 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(text), ""
}

// absoluteURL resolves href against base when it is relative.
func absoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(u).String()
}

// compactDate turns "2006-01-02" into "20060102" for URL query params.
func compactDate(isoDate string) string {
	return strings.ReplaceAll(isoDate, "-", "")
}

// mealStartTime maps a meal filter to the platform's svt-style start time.
func mealStartTime(meal string) string {
	switch meal {
	case "lunch":
		return "1200"
	case "dinner":
		return "1900"
	default:
		return ""
	}
}
