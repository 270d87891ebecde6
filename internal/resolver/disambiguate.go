package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/model"
	"github.com/tablescout/tablescout/pkg/anthropic"
	"github.com/tablescout/tablescout/pkg/websearch"
)

const disambiguationSystem = `You match restaurant listings across reservation platforms.
Given a reference restaurant and numbered candidate pages, answer with the number of the single candidate that is the same physical restaurant, or "none".
Rules:
- Transliteration variants of the same name (e.g. "Saito" vs "Saitou") are the same restaurant.
- A branch in a different neighborhood is NOT the same restaurant.
- A cake shop, delivery service, or catering arm sharing the name is NOT the same restaurant.
- When uncertain, answer "none". A wrong link is worse than no link.
Answer with only the number or "none", nothing else.`

var bareIntRe = regexp.MustCompile(`^\d+$`)

// disambiguate asks the model to pick the candidate matching ref. Returns
// the index into candidates, or -1 for "none". A reply that is neither a
// valid number nor "none" is an error.
func (r *Resolver) disambiguate(ctx context.Context, ref model.Restaurant, platform model.Platform, candidates []websearch.Result) (int, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Reference restaurant:\n- Name: %s\n", ref.Name)
	if ref.Area != "" {
		fmt.Fprintf(&b, "- Area: %s\n", ref.Area)
	}
	if ref.City != "" {
		fmt.Fprintf(&b, "- City: %s\n", ref.City)
	}
	if ref.Phone != "" {
		fmt.Fprintf(&b, "- Phone: %s\n", ref.Phone)
	}
	if ref.Cuisine != "" {
		fmt.Fprintf(&b, "- Cuisine: %s\n", ref.Cuisine)
	}
	fmt.Fprintf(&b, "\nCandidates on %s:\n", platform)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, c.Title, c.URL, c.Description)
	}
	b.WriteString("\nWhich candidate is the same restaurant?")

	resp, err := r.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.model,
		MaxTokens: 16,
		System:    []anthropic.SystemBlock{{Text: disambiguationSystem}},
		Messages:  []anthropic.Message{{Role: "user", Content: b.String()}},
	})
	if err != nil {
		return -1, eris.Wrap(err, "resolver: disambiguation request")
	}
	resp.Usage.LogCost(r.model, "disambiguation")

	answer := strings.ToLower(strings.TrimSpace(resp.Text()))
	if answer == "none" {
		return -1, nil
	}
	if !bareIntRe.MatchString(answer) {
		return -1, eris.Errorf("resolver: unparseable disambiguation answer %q", answer)
	}

	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(candidates) {
		zap.L().Warn("resolver: disambiguation answer out of range",
			zap.String("answer", answer),
			zap.Int("candidates", len(candidates)),
		)
		return -1, nil
	}
	return n - 1, nil
}
