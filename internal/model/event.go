package model

import "encoding/json"

// EventType tags one line of the NDJSON output stream.
type EventType string

const (
	EventProgress       EventType = "progress"
	EventDate           EventType = "date"
	EventResult         EventType = "result"
	EventPlatformUpdate EventType = "platform-update"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// StreamEvent is one tagged event on the result stream. The payload shapes
// are the output contract of the whole core: callers render incrementally
// as lines arrive, so fields must stay stable.
type StreamEvent struct {
	Type EventType `json:"type"`

	// progress
	Message string `json:"message,omitempty"`
	Done    int    `json:"done,omitempty"`
	Total   int    `json:"total,omitempty"`

	// date
	Date        string            `json:"date,omitempty"`
	Restaurants []DatedRestaurant `json:"restaurants,omitempty"`
	Count       *int              `json:"count,omitempty"`

	// result / platform-update
	Restaurant *Restaurant         `json:"restaurant,omitempty"`
	Name       string              `json:"name,omitempty"`
	Links      map[Platform]string `json:"links,omitempty"`

	// done
	TotalRestaurants *int `json:"total_restaurants,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// Line marshals the event as one NDJSON line (no trailing newline).
func (e StreamEvent) Line() ([]byte, error) {
	return json.Marshal(e)
}

// DateEvent builds a date event. Count is always set, so zero-result dates
// are distinguishable from omitted fields.
func DateEvent(date string, restaurants []DatedRestaurant) StreamEvent {
	n := len(restaurants)
	return StreamEvent{
		Type:        EventDate,
		Date:        date,
		Restaurants: restaurants,
		Count:       &n,
	}
}

// DoneEvent builds the terminal done event.
func DoneEvent(totalRestaurants int) StreamEvent {
	return StreamEvent{Type: EventDone, TotalRestaurants: &totalRestaurants}
}

// ErrorEvent builds a whole-query error event.
func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Type: EventError, Error: msg}
}
