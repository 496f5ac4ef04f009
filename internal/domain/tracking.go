package domain

import "time"

// TrackedMeal records what was actually eaten for a given date and slot. A
// tracked meal either references a catalog recipe or carries ad-hoc macros.
type TrackedMeal struct {
	Date      time.Time
	Slot      MealSlot
	RecipeID  string
	Macros    Macros
	Eaten     bool
	UpdatedAt time.Time
}

// CheckIn is a daily weight and mood entry. Weight and mood are both optional;
// a zero mood means not recorded.
type CheckIn struct {
	Date      time.Time
	WeightKg  float64
	Mood      int
	Note      string
	CreatedAt time.Time
}
