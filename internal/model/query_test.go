package model

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuery() SearchQuery {
	return SearchQuery{
		City:      "tokyo",
		Dates:     []string{"2025-05-10", "2025-05-11"},
		PartySize: 2,
		Meal:      "dinner",
	}
}

func TestSearchQuery_Validate(t *testing.T) {
	t.Parallel()

	q := validQuery()
	require.NoError(t, q.Validate())

	missing := validQuery()
	missing.City = ""
	assert.Error(t, missing.Validate())

	noDates := validQuery()
	noDates.Dates = nil
	assert.Error(t, noDates.Validate())

	badDate := validQuery()
	badDate.Dates = []string{"05/10/2025"}
	assert.Error(t, badDate.Validate())

	badParty := validQuery()
	badParty.PartySize = 0
	assert.Error(t, badParty.Validate())

	badMeal := validQuery()
	badMeal.Meal = "brunch"
	assert.Error(t, badMeal.Validate())

	noMeal := validQuery()
	noMeal.Meal = ""
	assert.NoError(t, noMeal.Validate())
}

func TestSearchQuery_Validate_DateCap(t *testing.T) {
	t.Parallel()

	q := validQuery()
	q.Dates = nil
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxQueryDates+1; i++ {
		q.Dates = append(q.Dates, base.AddDate(0, 0, i).Format("2006-01-02"))
	}
	assert.Error(t, q.Validate())

	q.Dates = q.Dates[:MaxQueryDates]
	assert.NoError(t, q.Validate())
}

func TestSession_Fresh(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	s := Session{Platform: PlatformTableall}
	assert.False(t, s.Fresh(now), "no cookies")

	s.CookieBlob = []byte(`[{"name":"sid","value":"abc"}]`)
	s.LastLoginAt = now.Add(-23 * time.Hour)
	assert.True(t, s.Fresh(now))

	s.LastLoginAt = now.Add(-25 * time.Hour)
	assert.False(t, s.Fresh(now), "cookies older than a day")
}

func TestStreamEvent_Line(t *testing.T) {
	t.Parallel()

	ev := DateEvent("2025-05-10", nil)
	line, err := ev.Line()
	require.NoError(t, err)
	assert.Contains(t, string(line), `"type":"date"`)
	assert.Contains(t, string(line), `"count":0`, "zero counts must serialize")

	done := DoneEvent(0)
	line, err = done.Line()
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf(`{"type":"%s","total_restaurants":0}`, EventDone), string(line))
}
