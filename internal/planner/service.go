// Package planner generates weekly meal plans and derives grocery lists.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"example.com/mealplan/internal/domain"
)

// ErrNoRecipes indicates the catalog is empty so no plan can be generated.
var ErrNoRecipes = errors.New("recipe catalog is empty")

// Repository captures the persistence operations the planner needs.
type Repository interface {
	ListRecipes(ctx context.Context, cursor *domain.RecipeCursor, limit int) ([]domain.Recipe, *domain.RecipeCursor, error)
	GetRecipe(ctx context.Context, recipeID string) (*domain.Recipe, error)
	SaveWeekPlan(ctx context.Context, plan domain.WeekPlan) error
	GetWeekPlan(ctx context.Context, weekStart time.Time) (*domain.WeekPlan, error)
	ListTrackedMeals(ctx context.Context, start, end time.Time) ([]domain.TrackedMeal, error)
}

// Service orchestrates plan generation and grocery derivation.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Planned slots per day and their share of the daily macro targets.
var slotShares = []struct {
	slot  domain.MealSlot
	share float64
}{
	{domain.SlotBreakfast, 0.25},
	{domain.SlotLunch, 0.35},
	{domain.SlotDinner, 0.40},
}

// GenerateWeekPlan builds and persists a plan for the seven days starting at
// weekStart, picking the best-ranked recipe per slot against the daily macro
// targets.
func (s *Service) GenerateWeekPlan(ctx context.Context, weekStart time.Time, targets domain.MacroTargets, preferredTags []string) (*domain.WeekPlan, error) {
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, ErrNoRecipes
	}

	plan := domain.WeekPlan{
		ID:        uuid.NewString(),
		WeekStart: weekStart,
		CreatedAt: time.Now().UTC(),
	}

	usage := make(map[string]int)
	for offset := 0; offset < 7; offset++ {
		date := weekStart.AddDate(0, 0, offset)
		for _, sc := range slotShares {
			slotTarget := domain.MacroTargets{
				Calories: int(float64(targets.Calories) * sc.share),
				ProteinG: targets.ProteinG * sc.share,
			}
			pick := pickRecipe(catalog, slotTarget, usage, preferredTags)
			usage[pick.ID]++
			plan.Meals = append(plan.Meals, domain.PlannedMeal{
				Date:     date,
				Slot:     sc.slot,
				RecipeID: pick.ID,
				Servings: 1,
			})
		}
	}

	if err := s.repo.SaveWeekPlan(ctx, plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetWeekPlan loads a persisted plan.
func (s *Service) GetWeekPlan(ctx context.Context, weekStart time.Time) (*domain.WeekPlan, error) {
	plan, err := s.repo.GetWeekPlan(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

// GroceryList aggregates the ingredients of all not-yet-eaten planned meals
// for the week, grouped by ingredient name and unit.
func (s *Service) GroceryList(ctx context.Context, weekStart time.Time) ([]domain.GroceryItem, error) {
	plan, err := s.repo.GetWeekPlan(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}

	weekEnd := weekStart.AddDate(0, 0, 6)
	tracked, err := s.repo.ListTrackedMeals(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	eaten := make(map[string]bool, len(tracked))
	for _, meal := range tracked {
		if meal.Eaten {
			eaten[mealKey(meal.Date, meal.Slot)] = true
		}
	}

	totals := make(map[string]*domain.GroceryItem)
	for _, meal := range plan.Meals {
		if eaten[mealKey(meal.Date, meal.Slot)] {
			continue
		}
		recipe, err := s.repo.GetRecipe(ctx, meal.RecipeID)
		if err != nil {
			return nil, err
		}
		if recipe == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrRecipeNotFound, meal.RecipeID)
		}
		for _, ing := range recipe.Ingredients {
			key := ing.Name + "|" + ing.Unit
			if item, ok := totals[key]; ok {
				item.Quantity += ing.Quantity * meal.Servings
				continue
			}
			totals[key] = &domain.GroceryItem{
				Name:     ing.Name,
				Quantity: ing.Quantity * meal.Servings,
				Unit:     ing.Unit,
			}
		}
	}

	out := make([]domain.GroceryItem, 0, len(totals))
	for _, item := range totals {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Unit < out[j].Unit
	})
	return out, nil
}

func (s *Service) loadCatalog(ctx context.Context) ([]domain.Recipe, error) {
	var (
		all    []domain.Recipe
		cursor *domain.RecipeCursor
	)
	for {
		page, next, err := s.repo.ListRecipes(ctx, cursor, 100)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == nil {
			return all, nil
		}
		cursor = next
	}
}

func mealKey(date time.Time, slot domain.MealSlot) string {
	return date.Format("2006-01-02") + "|" + string(slot)
}
