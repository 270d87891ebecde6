package model

import (
	"strconv"
	"strings"
)

// AvailabilityStatus is the observed booking state for one restaurant-date.
type AvailabilityStatus string

const (
	StatusAvailable   AvailabilityStatus = "available"
	StatusLimited     AvailabilityStatus = "limited"
	StatusUnavailable AvailabilityStatus = "unavailable"

	// StatusUnknown means no signal could be extracted. Downstream logic
	// must never treat it as unavailable, since that changes booking decisions.
	StatusUnknown AvailabilityStatus = "unknown"
)

// Availability is one (restaurant, date) observation.
type Availability struct {
	Date      string             `json:"date"` // ISO calendar date
	Status    AvailabilityStatus `json:"status"`
	TimeSlots []string           `json:"time_slots,omitempty"` // ordered HH:MM
}

// MealAvailability is derived from time slots by an hour threshold.
type MealAvailability struct {
	Lunch  bool `json:"lunch"`
	Dinner bool `json:"dinner"`
}

// lunchCutoffHour separates lunch from dinner slots.
const lunchCutoffHour = 15

// ClassifyMeals derives lunch/dinner flags from HH:MM slots. Pure: the same
// slots always yield the same flags. Unparseable slots are ignored.
func ClassifyMeals(slots []string) MealAvailability {
	var meals MealAvailability
	for _, slot := range slots {
		hh, _, ok := strings.Cut(slot, ":")
		if !ok {
			continue
		}
		hour, err := strconv.Atoi(hh)
		if err != nil || hour < 0 || hour > 23 {
			continue
		}
		if hour < lunchCutoffHour {
			meals.Lunch = true
		} else {
			meals.Dinner = true
		}
	}
	return meals
}

// DatedRestaurant pairs a restaurant with its availability for one date.
type DatedRestaurant struct {
	Restaurant   Restaurant   `json:"restaurant"`
	Availability Availability `json:"availability"`
}
