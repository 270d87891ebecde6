package resolver

import (
	"regexp"
	"strings"

	"github.com/tablescout/tablescout/internal/model"
	"github.com/tablescout/tablescout/pkg/websearch"
)

// platformURLShapes match a restaurant detail page on each platform.
// Search results that don't fit the shape are category pages, articles, or
// unrelated listings.
var platformURLShapes = map[model.Platform]*regexp.Regexp{
	model.PlatformTabelog:    regexp.MustCompile(`tabelog\.com/(en/)?[a-z]+/A\d{4}/A\d{6}/\d+/?`),
	model.PlatformOmakase:    regexp.MustCompile(`omakase\.in/(en/)?r(estaurants)?/[\w-]+/?`),
	model.PlatformTablecheck: regexp.MustCompile(`tablecheck\.com/(en|ja)/[\w-]+/?`),
	model.PlatformTableall:   regexp.MustCompile(`tableall\.com/restaurants?/[\w-]+/?`),
}

// platformDomains restrict search queries to one platform's site.
var platformDomains = map[model.Platform]string{
	model.PlatformTabelog:    "tabelog.com",
	model.PlatformOmakase:    "omakase.in",
	model.PlatformTablecheck: "tablecheck.com",
	model.PlatformTableall:   "tableall.com",
}

// nonDiningKeywords exclude results for a restaurant's cake shop, delivery
// arm, or catering service, which share the name but not the tables.
var nonDiningKeywords = []string{
	"cake", "patisserie", "delivery", "takeout", "take-out", "catering",
	"online shop", "gift",
}

// filterCandidates keeps results whose URL fits the platform's detail-page
// shape and whose title doesn't look like a non-dining product.
func filterCandidates(platform model.Platform, results []websearch.Result) []websearch.Result {
	shape := platformURLShapes[platform]
	var out []websearch.Result
	for _, res := range results {
		if shape != nil && !shape.MatchString(res.URL) {
			continue
		}
		if looksNonDining(res.Title) {
			continue
		}
		out = append(out, res)
	}
	return out
}

func looksNonDining(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range nonDiningKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// filterByTitle keeps candidates whose title carries every token of the
// reference name, transliteration variants included.
func filterByTitle(ref model.Restaurant, candidates []websearch.Result) []websearch.Result {
	refTokens := tokens(ref.NormalizedName)
	if len(refTokens) == 0 {
		return candidates
	}
	var out []websearch.Result
	for _, c := range candidates {
		if allTokensMatch(refTokens, tokens(model.NormalizeName(c.Title))) {
			out = append(out, c)
		}
	}
	return out
}

var phoneRe = regexp.MustCompile(`\+?\d[\d\-\s().]{6,}\d`)

// extractPhoneDigits pulls the first phone-looking run out of free text
// and reduces it to bare digits.
func extractPhoneDigits(text string) string {
	m := phoneRe.FindString(text)
	if m == "" {
		return ""
	}
	return digitsOnly(m)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
