//go:build !integration

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/tablescout/internal/model"
)

// stubSearcher replays canned events on every Search call.
type stubSearcher struct {
	events []model.StreamEvent
}

func (s *stubSearcher) Search(ctx context.Context, query model.SearchQuery) <-chan model.StreamEvent {
	ch := make(chan model.StreamEvent)
	go func() {
		defer close(ch)
		for _, ev := range s.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func TestBuildRouter_HealthEndpoint(t *testing.T) {
	router := buildRouter(&stubSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	err := json.Unmarshal(rr.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_SearchRejectsInvalidQuery(t *testing.T) {
	router := buildRouter(&stubSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/search?date=2025-05-10", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "city is required")
}

func TestBuildRouter_SearchStreamsNDJSON(t *testing.T) {
	n := 1
	stub := &stubSearcher{events: []model.StreamEvent{
		{Type: model.EventProgress, Message: "searching", Total: 1},
		model.DateEvent("2025-05-10", nil),
		{Type: model.EventDone, TotalRestaurants: &n},
	}}
	router := buildRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/search?city=tokyo&date=2025-05-10&party_size=2", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/x-ndjson", rr.Header().Get("Content-Type"))

	var types []string
	scanner := bufio.NewScanner(rr.Body)
	for scanner.Scan() {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		types = append(types, ev["type"].(string))
	}
	assert.Equal(t, []string{"progress", "date", "done"}, types)
}

func TestQueryFromRequest_CommaSeparatedDates(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/search?city=tokyo&date=2025-05-10,2025-05-11&meal=dinner", nil)

	query, err := queryFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "tokyo", query.City)
	assert.Equal(t, []string{"2025-05-10", "2025-05-11"}, query.Dates)
	assert.Equal(t, 2, query.PartySize)
	assert.Equal(t, "dinner", query.Meal)
}

func TestQueryFromRequest_BadPartySize(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/search?city=tokyo&date=2025-05-10&party_size=two", nil)

	_, err := queryFromRequest(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "party_size")
}

func TestParsePlatform(t *testing.T) {
	p, err := parsePlatform("tabelog")
	require.NoError(t, err)
	assert.Equal(t, model.PlatformTabelog, p)

	_, err = parsePlatform("opentable")
	require.Error(t, err)
}
