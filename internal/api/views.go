package api

import (
	"errors"
	"strings"
	"time"

	"example.com/mealplan/internal/domain"
)

// CreateRecipeRequest is the payload for POST /v1/recipes.
type CreateRecipeRequest struct {
	Name        string              `json:"name"`
	Tags        []string            `json:"tags"`
	Macros      domain.Macros       `json:"macros"`
	PrepMinutes int                 `json:"prep_minutes"`
	Ingredients []domain.Ingredient `json:"ingredients"`
}

// Validate ensures request correctness.
func (r CreateRecipeRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if r.Macros.Calories <= 0 {
		return errors.New("macros.calories must be > 0")
	}
	return nil
}

// RecipeView exposes a catalog entry.
type RecipeView struct {
	RecipeID    string              `json:"recipe_id"`
	Name        string              `json:"name"`
	Tags        []string            `json:"tags"`
	Macros      domain.Macros       `json:"macros"`
	PrepMinutes int                 `json:"prep_minutes"`
	Ingredients []domain.Ingredient `json:"ingredients"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ListRecipesResponse packages list results.
type ListRecipesResponse struct {
	Items      []RecipeView `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// GeneratePlanRequest is the payload for POST /v1/plans. Targets may be given
// directly or derived from a profile; profile wins when both are present.
type GeneratePlanRequest struct {
	WeekStart     string              `json:"week_start"`
	Targets       domain.MacroTargets `json:"targets"`
	Profile       *domain.Profile     `json:"profile,omitempty"`
	PreferredTags []string            `json:"preferred_tags,omitempty"`
}

// PlannedMealView is one slot assignment of a plan.
type PlannedMealView struct {
	Date     string  `json:"date"`
	Slot     string  `json:"slot"`
	RecipeID string  `json:"recipe_id"`
	Servings float64 `json:"servings"`
}

// PlanView exposes a week plan.
type PlanView struct {
	PlanID    string            `json:"plan_id"`
	WeekStart string            `json:"week_start"`
	Meals     []PlannedMealView `json:"meals"`
	CreatedAt time.Time         `json:"created_at"`
}

// GroceryListResponse packages a derived grocery list.
type GroceryListResponse struct {
	Items []domain.GroceryItem `json:"items"`
}

// TrackMealRequest is the payload for PUT /v1/tracking/meals.
type TrackMealRequest struct {
	Date     string        `json:"date"`
	Slot     string        `json:"slot"`
	RecipeID string        `json:"recipe_id,omitempty"`
	Macros   domain.Macros `json:"macros"`
	Eaten    bool          `json:"eaten"`
}

// TrackedMealView exposes a tracking entry.
type TrackedMealView struct {
	Date     string        `json:"date"`
	Slot     string        `json:"slot"`
	RecipeID string        `json:"recipe_id,omitempty"`
	Macros   domain.Macros `json:"macros"`
	Eaten    bool          `json:"eaten"`
}

// CheckInRequest is the payload for PUT /v1/checkins.
type CheckInRequest struct {
	Date     string  `json:"date"`
	WeightKg float64 `json:"weight_kg"`
	Mood     int     `json:"mood"`
	Note     string  `json:"note"`
}

// CheckInView exposes a daily check-in.
type CheckInView struct {
	Date     string  `json:"date"`
	WeightKg float64 `json:"weight_kg"`
	Mood     int     `json:"mood"`
	Note     string  `json:"note"`
}

// QueueActivityRequest is the payload for POST /v1/activities.
type QueueActivityRequest struct {
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	ActivityType string    `json:"activity_type"`
	Exertion     int       `json:"exertion"`
	Calories     int       `json:"calories"`
	Source       string    `json:"source,omitempty"`
}

// Validate ensures request correctness.
func (r QueueActivityRequest) Validate() error {
	if strings.TrimSpace(r.ActivityType) == "" {
		return errors.New("activity_type is required")
	}
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return errors.New("started_at and ended_at are required")
	}
	if !r.EndedAt.After(r.StartedAt) {
		return errors.New("ended_at must be after started_at")
	}
	if r.Exertion < 1 || r.Exertion > 10 {
		return errors.New("exertion must be between 1 and 10")
	}
	if r.Calories < 0 {
		return errors.New("calories must not be negative")
	}
	return nil
}

// ActivityView exposes a manual activity log.
type ActivityView struct {
	ActivityID     string     `json:"activity_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        time.Time  `json:"ended_at"`
	ActivityType   string     `json:"activity_type"`
	Exertion       int        `json:"exertion"`
	Calories       int        `json:"calories"`
	Source         string     `json:"source"`
	SyncStatus     string     `json:"sync_status"`
	HealthRecordID *string    `json:"health_record_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	SyncedAt       *time.Time `json:"synced_at,omitempty"`
}

// NutritionDayRequest carries one day's intake totals for the health store.
type NutritionDayRequest struct {
	Calories int     `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// QueuedResponse acknowledges an accepted outbox item.
type QueuedResponse struct {
	ItemID int64 `json:"item_id"`
}

// PermissionsResponse reports the required and granted permission tokens.
type PermissionsResponse struct {
	Required []string `json:"required"`
	Granted  []string `json:"granted"`
}

// UpdatePermissionsRequest replaces the granted permission set.
type UpdatePermissionsRequest struct {
	Granted []string `json:"granted"`
}

// SyncRequest is the optional payload for POST /v1/sync.
type SyncRequest struct {
	DaysBack int `json:"days_back"`
}

func toRecipeView(recipe domain.Recipe) RecipeView {
	return RecipeView{
		RecipeID:    recipe.ID,
		Name:        recipe.Name,
		Tags:        recipe.Tags,
		Macros:      recipe.Macros,
		PrepMinutes: recipe.PrepMinutes,
		Ingredients: recipe.Ingredients,
		CreatedAt:   recipe.CreatedAt,
		UpdatedAt:   recipe.UpdatedAt,
	}
}

func toPlanView(plan domain.WeekPlan) PlanView {
	view := PlanView{
		PlanID:    plan.ID,
		WeekStart: plan.WeekStart.Format(dateLayout),
		Meals:     make([]PlannedMealView, 0, len(plan.Meals)),
		CreatedAt: plan.CreatedAt,
	}
	for _, meal := range plan.Meals {
		view.Meals = append(view.Meals, PlannedMealView{
			Date:     meal.Date.Format(dateLayout),
			Slot:     string(meal.Slot),
			RecipeID: meal.RecipeID,
			Servings: meal.Servings,
		})
	}
	return view
}

func toTrackedMealView(meal domain.TrackedMeal) TrackedMealView {
	return TrackedMealView{
		Date:     meal.Date.Format(dateLayout),
		Slot:     string(meal.Slot),
		RecipeID: meal.RecipeID,
		Macros:   meal.Macros,
		Eaten:    meal.Eaten,
	}
}

func toCheckInView(checkin domain.CheckIn) CheckInView {
	return CheckInView{
		Date:     checkin.Date.Format(dateLayout),
		WeightKg: checkin.WeightKg,
		Mood:     checkin.Mood,
		Note:     checkin.Note,
	}
}

func toActivityView(activity domain.ManualActivityLog) ActivityView {
	return ActivityView{
		ActivityID:     activity.ID,
		StartedAt:      activity.StartedAt,
		EndedAt:        activity.EndedAt,
		ActivityType:   activity.ActivityType,
		Exertion:       activity.Exertion,
		Calories:       activity.Calories,
		Source:         activity.Source,
		SyncStatus:     string(activity.SyncStatus),
		HealthRecordID: activity.HealthRecordID,
		CreatedAt:      activity.CreatedAt,
		SyncedAt:       activity.SyncedAt,
	}
}
