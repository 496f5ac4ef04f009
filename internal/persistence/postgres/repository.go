// Package postgres provides Postgres-backed persistence for the catalog,
// plans, tracking logs, health summaries, and sync state.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/mealplan/internal/domain"
)

const dateLayout = "2006-01-02"

// Repository owns the connection pool; each call runs its own transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertRecipe inserts or replaces a catalog entry.
func (r *Repository) UpsertRecipe(ctx context.Context, recipe domain.Recipe) error {
	ingredients, err := json.Marshal(recipe.Ingredients)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO recipes (recipe_id, name, tags, calories, protein_g, carbs_g, fat_g, prep_minutes, ingredients, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (recipe_id) DO UPDATE SET
            name=EXCLUDED.name, tags=EXCLUDED.tags, calories=EXCLUDED.calories,
            protein_g=EXCLUDED.protein_g, carbs_g=EXCLUDED.carbs_g, fat_g=EXCLUDED.fat_g,
            prep_minutes=EXCLUDED.prep_minutes, ingredients=EXCLUDED.ingredients,
            updated_at=NOW()`

	_, err = r.pool.Exec(ctx, stmt,
		recipe.ID,
		recipe.Name,
		recipe.Tags,
		recipe.Macros.Calories,
		recipe.Macros.ProteinG,
		recipe.Macros.CarbsG,
		recipe.Macros.FatG,
		recipe.PrepMinutes,
		ingredients,
		recipe.CreatedAt,
		recipe.UpdatedAt,
	)
	return err
}

// GetRecipe retrieves a recipe by ID, nil when absent.
func (r *Repository) GetRecipe(ctx context.Context, recipeID string) (*domain.Recipe, error) {
	const query = `SELECT recipe_id, name, tags, calories, protein_g, carbs_g, fat_g, prep_minutes, ingredients, created_at, updated_at
        FROM recipes WHERE recipe_id=$1`

	recipe, err := scanRecipe(r.pool.QueryRow(ctx, query, recipeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return recipe, nil
}

// ListRecipes returns recipes newest first with cursor pagination.
func (r *Repository) ListRecipes(ctx context.Context, cursor *domain.RecipeCursor, limit int) ([]domain.Recipe, *domain.RecipeCursor, error) {
	args := []interface{}{limit}
	query := `SELECT recipe_id, name, tags, calories, protein_g, carbs_g, fat_g, prep_minutes, ingredients, created_at, updated_at
        FROM recipes`

	if cursor != nil {
		query += ` WHERE (created_at, recipe_id) < ($2, $3::uuid)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, recipe_id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Recipe, 0, limit)
	for rows.Next() {
		recipe, scanErr := scanRecipe(rows)
		if scanErr != nil {
			return nil, nil, scanErr
		}
		results = append(results, *recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.RecipeCursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.RecipeCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(row rowScanner) (*domain.Recipe, error) {
	var (
		recipe      domain.Recipe
		ingredients []byte
	)
	if err := row.Scan(
		&recipe.ID, &recipe.Name, &recipe.Tags,
		&recipe.Macros.Calories, &recipe.Macros.ProteinG, &recipe.Macros.CarbsG, &recipe.Macros.FatG,
		&recipe.PrepMinutes, &ingredients, &recipe.CreatedAt, &recipe.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ingredients, &recipe.Ingredients); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// SaveWeekPlan replaces the plan for its week inside a single transaction.
func (r *Repository) SaveWeekPlan(ctx context.Context, plan domain.WeekPlan) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	weekStart := plan.WeekStart.Format(dateLayout)
	if _, err := tx.Exec(ctx, `DELETE FROM week_plans WHERE week_start=$1`, weekStart); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO week_plans (plan_id, week_start, created_at) VALUES ($1,$2,$3)`,
		plan.ID, weekStart, plan.CreatedAt,
	); err != nil {
		return err
	}

	for _, meal := range plan.Meals {
		if _, err := tx.Exec(ctx,
			`INSERT INTO planned_meals (plan_id, meal_date, slot, recipe_id, servings) VALUES ($1,$2,$3,$4,$5)`,
			plan.ID, meal.Date.Format(dateLayout), string(meal.Slot), meal.RecipeID, meal.Servings,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetWeekPlan loads the plan starting at weekStart, nil when absent.
func (r *Repository) GetWeekPlan(ctx context.Context, weekStart time.Time) (*domain.WeekPlan, error) {
	var plan domain.WeekPlan
	err := r.pool.QueryRow(ctx,
		`SELECT plan_id, week_start, created_at FROM week_plans WHERE week_start=$1`,
		weekStart.Format(dateLayout),
	).Scan(&plan.ID, &plan.WeekStart, &plan.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT meal_date, slot, recipe_id, servings FROM planned_meals
         WHERE plan_id=$1 ORDER BY meal_date, slot`,
		plan.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var meal domain.PlannedMeal
		var slot string
		if err := rows.Scan(&meal.Date, &slot, &meal.RecipeID, &meal.Servings); err != nil {
			return nil, err
		}
		meal.Slot = domain.MealSlot(slot)
		plan.Meals = append(plan.Meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &plan, nil
}
