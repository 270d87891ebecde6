package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMeals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		slots []string
		want  MealAvailability
	}{
		{"lunch and dinner", []string{"12:00", "19:30"}, MealAvailability{Lunch: true, Dinner: true}},
		{"dinner only", []string{"20:00"}, MealAvailability{Lunch: false, Dinner: true}},
		{"empty", []string{}, MealAvailability{}},
		{"nil", nil, MealAvailability{}},
		{"boundary is dinner", []string{"15:00"}, MealAvailability{Dinner: true}},
		{"just before boundary is lunch", []string{"14:59"}, MealAvailability{Lunch: true}},
		{"unparseable slots ignored", []string{"noon", "25:00", "18:00"}, MealAvailability{Dinner: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ClassifyMeals(tt.slots))
		})
	}
}

func TestClassifyMeals_Deterministic(t *testing.T) {
	t.Parallel()

	slots := []string{"11:30", "13:00", "17:30", "21:00"}
	first := ClassifyMeals(slots)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ClassifyMeals(slots))
	}
}
