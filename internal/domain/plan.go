package domain

import "time"

// MealSlot identifies the position of a meal within a day.
type MealSlot string

const (
	SlotBreakfast MealSlot = "breakfast"
	SlotLunch     MealSlot = "lunch"
	SlotDinner    MealSlot = "dinner"
	SlotSnack     MealSlot = "snack"
)

// ValidSlot reports whether the slot is one of the known values.
func ValidSlot(s MealSlot) bool {
	switch s {
	case SlotBreakfast, SlotLunch, SlotDinner, SlotSnack:
		return true
	}
	return false
}

// PlannedMeal assigns a recipe to one slot of one day.
type PlannedMeal struct {
	Date     time.Time
	Slot     MealSlot
	RecipeID string
	Servings float64
}

// WeekPlan is the generated plan for the seven days starting at WeekStart.
type WeekPlan struct {
	ID        string
	WeekStart time.Time
	Meals     []PlannedMeal
	CreatedAt time.Time
}

// GroceryItem is one aggregated line of a derived grocery list.
type GroceryItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}
