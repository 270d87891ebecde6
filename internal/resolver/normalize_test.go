package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordMatch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want bool
	}{
		{"saito", "saitou", true},
		{"saito", "saito", true},
		{"saito", "tanaka", false},
		{"den", "denden", false}, // 3/6 is below the length ratio
		{"sushi", "sushiya", true},
		{"a", "ab", false},
		{"", "", false},
		{"", "saito", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, wordMatch(tc.a, tc.b), "wordMatch(%q, %q)", tc.a, tc.b)
		assert.Equal(t, wordMatch(tc.a, tc.b), wordMatch(tc.b, tc.a),
			"wordMatch must be symmetric for (%q, %q)", tc.a, tc.b)
	}
}

func TestNameMatch(t *testing.T) {
	t.Parallel()

	assert.True(t, nameMatch("sushi saito", "sushi saitou"))
	assert.True(t, nameMatch("saito", "sushi saito"), "subset of tokens on one side matches")
	assert.False(t, nameMatch("sushi saito", "sushi tanaka"))
	assert.False(t, nameMatch("", "sushi saito"))
}

func TestCleanArea(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Azabu Station":       "azabu",
		"Nishi-Azabu":         "azabu",
		"Nishi-Azabu 4-chome": "azabu",
		"Shibuya-ku":          "shibuya",
		"Ginza 5-3":           "ginza",
		"Akasaka":             "akasaka",
		"":                    "",
		"West Shinjuku":       "shinjuku",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanArea(in), "CleanArea(%q)", in)
	}
}

func TestSharedTokenCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, sharedTokenCount("sushi saito", "sushi saitou akasaka"))
	assert.Equal(t, 0, sharedTokenCount("den", "florilege"))
}
