package resolver

import (
	"regexp"
	"strings"
)

// areaSuffixes lists location-word suffixes that platforms append
// inconsistently to neighborhood names.
var areaSuffixes = []string{
	" station", " sta.", " sta", " eki",
	" ward", "-ku", " ku",
	" city", "-shi",
	" area", " district",
}

// directionalPrefixes are stripped because one platform writes
// "Nishi-Azabu" where another writes "Azabu".
var directionalPrefixes = []string{
	"nishi-", "higashi-", "kita-", "minami-",
	"west ", "east ", "north ", "south ",
}

var chomeRe = regexp.MustCompile(`\s*\d+(-\d+)*([\s-]*(chome|chōme|丁目))?\s*$`)

// CleanArea reduces a scraped neighborhood label to the bare place name
// used in search queries. "Nishi-Azabu 4-chome" and "Azabu Station" both
// clean to a form that matches "azabu".
func CleanArea(area string) string {
	s := strings.ToLower(strings.TrimSpace(area))
	if s == "" {
		return ""
	}

	s = chomeRe.ReplaceAllString(s, "")

	for _, suffix := range areaSuffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSuffix(s, suffix)
			break
		}
	}

	for _, prefix := range directionalPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}

	return strings.TrimSpace(s)
}

// wordMatch reports whether two name tokens refer to the same word. Tokens
// match when equal, or when one is a prefix of the other and the shorter is
// at least 70% of the longer's length. That tolerates transliteration
// variants like "saito"/"saitou" without conflating unrelated names.
// Symmetric by construction.
func wordMatch(a, b string) bool {
	if a == b {
		return a != ""
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return false
	}
	if float64(len(shorter)) < 0.7*float64(len(longer)) {
		return false
	}
	return strings.HasPrefix(longer, shorter)
}

// tokens splits an already-normalized name into its word tokens.
func tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// nameMatch reports whether two normalized names plausibly refer to the
// same restaurant: every token on one side must match some token on the
// other.
func nameMatch(a, b string) bool {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	return allTokensMatch(ta, tb) || allTokensMatch(tb, ta)
}

func allTokensMatch(from, to []string) bool {
	for _, t := range from {
		matched := false
		for _, u := range to {
			if wordMatch(t, u) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// sharedTokenCount counts tokens of a that match some token of b, used to
// rank multiple fuzzy candidates.
func sharedTokenCount(a, b string) int {
	count := 0
	for _, t := range tokens(a) {
		for _, u := range tokens(b) {
			if wordMatch(t, u) {
				count++
				break
			}
		}
	}
	return count
}
