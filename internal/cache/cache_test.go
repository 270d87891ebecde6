package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/tablescout/internal/model"
)

func TestCache_WriteThenRead(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "listings.json")
	c := New[[]model.Restaurant](path, ListingTTL)

	want := []model.Restaurant{model.NewRestaurant("Sushi Saitou")}
	key := Key("tabelog", "tokyo", "2", "dinner", "2025-05-10")
	require.NoError(t, c.Set(key, want))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCache_Miss(t *testing.T) {
	t.Parallel()

	c := New[string](filepath.Join(t.TempDir(), "x.json"), time.Hour)
	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	c := New[int](filepath.Join(t.TempDir(), "x.json"), 4*time.Hour).
		WithNow(func() time.Time { return now })

	require.NoError(t, c.Set("k", 42))

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, got)

	now = now.Add(4*time.Hour + time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry past TTL must miss")
}

func TestCache_ValuesSkipsExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	c := New[int](filepath.Join(t.TempDir(), "x.json"), 4*time.Hour).
		WithNow(func() time.Time { return now })

	require.NoError(t, c.Set("old", 1))
	now = now.Add(3 * time.Hour)
	require.NoError(t, c.Set("fresh", 2))
	now = now.Add(2 * time.Hour)

	assert.Equal(t, []int{2}, c.Values())
}

func TestCache_SurvivesReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scores.json")
	c := New[float64](path, ScoresTTL)
	require.NoError(t, c.Set("sushi saitou|tokyo|roppongi", 4.6))

	reloaded := New[float64](path, ScoresTTL)
	got, ok := reloaded.Get("sushi saitou|tokyo|roppongi")
	require.True(t, ok)
	assert.InDelta(t, 4.6, got, 1e-9)
}

func TestCache_CorruptFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := New[string](path, time.Hour)
	assert.Equal(t, 0, c.Len())

	// And it is still writable afterwards.
	require.NoError(t, c.Set("k", "v"))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestCache_Prune(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	c := New[int](filepath.Join(t.TempDir(), "x.json"), time.Hour).
		WithNow(func() time.Time { return now })

	require.NoError(t, c.Set("old", 1))
	now = now.Add(2 * time.Hour)
	require.NoError(t, c.Set("new", 2))

	removed, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "tabelog|tokyo|2|dinner", Key("tabelog", "tokyo", "2", "dinner"))
	assert.Equal(t, "a||c", Key("a", "", "c"), "empty parts keep their position")
}

func TestCaches_OpenAndStats(t *testing.T) {
	t.Parallel()

	cs := Open(t.TempDir())
	require.NoError(t, cs.Scores.Set("den|tokyo|jingumae", 4.8))

	stats := cs.Stats()
	byDomain := make(map[string]int)
	for _, s := range stats {
		byDomain[s.Domain] = s.Entries
	}
	assert.Equal(t, 1, byDomain["scores"])
	assert.Equal(t, 0, byDomain["listings"])
}
