// Package domain defines the core types for meal planning and tracking.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrRecipeNotFound is returned when a recipe cannot be located.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrPlanNotFound is returned when no week plan exists for the requested week.
	ErrPlanNotFound = errors.New("week plan not found")
)

// Macros holds per-serving macronutrient totals.
type Macros struct {
	Calories int     `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// Add accumulates another macro set scaled by servings.
func (m Macros) Add(other Macros, servings float64) Macros {
	return Macros{
		Calories: m.Calories + int(float64(other.Calories)*servings),
		ProteinG: m.ProteinG + other.ProteinG*servings,
		CarbsG:   m.CarbsG + other.CarbsG*servings,
		FatG:     m.FatG + other.FatG*servings,
	}
}

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Recipe is a catalog entry with per-serving macros.
type Recipe struct {
	ID          string
	Name        string
	Tags        []string
	Macros      Macros
	PrepMinutes int
	Ingredients []Ingredient
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasTag reports whether the recipe carries the given tag.
func (r Recipe) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// RecipeCursor models the pagination token for recipe listings.
type RecipeCursor struct {
	CreatedAt time.Time
	ID        string
}
