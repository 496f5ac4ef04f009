// Command seed loads a recipe catalog from a JSON file into postgres,
// optionally enriching missing macros from the nutrition database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/mealplan/internal/config"
	"example.com/mealplan/internal/domain"
	"example.com/mealplan/internal/nutrition"
	persistence "example.com/mealplan/internal/persistence/postgres"
)

type seedRecipe struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Tags        []string            `json:"tags"`
	Macros      *domain.Macros      `json:"macros"`
	PrepMinutes int                 `json:"prep_minutes"`
	Ingredients []domain.Ingredient `json:"ingredients"`
}

func main() {
	var (
		catalogPath = flag.String("catalog", "recipes.json", "path to the recipe catalog JSON file")
		enrich      = flag.Bool("enrich", false, "look up missing macros in the nutrition database")
	)
	flag.Parse()

	cfg := config.Load()

	raw, err := os.ReadFile(*catalogPath)
	if err != nil {
		log.Fatalf("failed to read catalog: %v", err)
	}

	var entries []seedRecipe
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Fatalf("failed to parse catalog: %v", err)
	}
	if len(entries) == 0 {
		log.Fatal("catalog is empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)

	var nutritionClient *nutrition.Client
	if *enrich {
		nutritionClient = nutrition.NewClient(cfg.NutritionAPIURL)
	}

	seeded := 0
	for _, entry := range entries {
		recipe := newRecipe(entry, time.Now().UTC())

		switch {
		case entry.Macros != nil:
			recipe.Macros = *entry.Macros
		case nutritionClient != nil:
			macros, err := nutritionClient.LookupMacros(ctx, entry.Name)
			if err != nil {
				log.Printf("macro lookup failed for %q: %v", entry.Name, err)
			} else if macros != nil {
				recipe.Macros = *macros
			}
		}

		if err := repo.UpsertRecipe(ctx, recipe); err != nil {
			log.Fatalf("failed to seed recipe %q: %v", entry.Name, err)
		}
		seeded++
	}

	log.Printf("seeded %d recipes from %s", seeded, *catalogPath)
}

// newRecipe builds a catalog entry into a storable recipe. UpsertRecipe
// writes the timestamp columns explicitly, so they must be populated here.
func newRecipe(entry seedRecipe, now time.Time) domain.Recipe {
	recipe := domain.Recipe{
		ID:          entry.ID,
		Name:        entry.Name,
		Tags:        entry.Tags,
		PrepMinutes: entry.PrepMinutes,
		Ingredients: entry.Ingredients,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if recipe.ID == "" {
		recipe.ID = uuid.NewString()
	}
	return recipe
}
