//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/mealplan/internal/domain"
	"example.com/mealplan/internal/health"
)

func TestRecipeRoundTripAndPagination(t *testing.T) {
	ctx := context.Background()
	repo, _, cleanup := setupRepository(t, ctx)
	defer cleanup()

	var ids []string
	for i := 0; i < 3; i++ {
		recipe := domain.Recipe{
			ID:   uuid.NewString(),
			Name: "Recipe " + string(rune('A'+i)),
			Tags: []string{"test"},
			Macros: domain.Macros{
				Calories: 400 + i*100,
				ProteinG: 30,
				CarbsG:   45,
				FatG:     12,
			},
			PrepMinutes: 15,
			Ingredients: []domain.Ingredient{{Name: "oats", Quantity: 60, Unit: "g"}},
			CreatedAt:   time.Now().UTC().Add(time.Duration(i) * time.Second),
			UpdatedAt:   time.Now().UTC(),
		}
		require.NoError(t, repo.UpsertRecipe(ctx, recipe))
		ids = append(ids, recipe.ID)
	}

	stored, err := repo.GetRecipe(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "Recipe A", stored.Name)
	require.Equal(t, 400, stored.Macros.Calories)
	require.Len(t, stored.Ingredients, 1)

	missing, err := repo.GetRecipe(ctx, uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, missing)

	// Page through newest first.
	page1, cursor, err := repo.ListRecipes(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotNil(t, cursor)

	page2, cursor, err := repo.ListRecipes(ctx, cursor, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.Nil(t, cursor)

	seen := map[string]bool{}
	for _, recipe := range append(page1, page2...) {
		seen[recipe.ID] = true
	}
	require.Len(t, seen, 3)
}

func TestWeekPlanReplacesOnSave(t *testing.T) {
	ctx := context.Background()
	repo, _, cleanup := setupRepository(t, ctx)
	defer cleanup()

	recipeID := seedRecipe(t, ctx, repo)
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	first := domain.WeekPlan{
		ID:        uuid.NewString(),
		WeekStart: weekStart,
		Meals: []domain.PlannedMeal{
			{Date: weekStart, Slot: domain.SlotBreakfast, RecipeID: recipeID, Servings: 1},
			{Date: weekStart, Slot: domain.SlotLunch, RecipeID: recipeID, Servings: 2},
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.SaveWeekPlan(ctx, first))

	second := first
	second.ID = uuid.NewString()
	second.Meals = first.Meals[:1]
	require.NoError(t, repo.SaveWeekPlan(ctx, second))

	stored, err := repo.GetWeekPlan(ctx, weekStart)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, second.ID, stored.ID)
	require.Len(t, stored.Meals, 1)
}

func TestCreateManualActivityEnqueuesOutboxItem(t *testing.T) {
	ctx := context.Background()
	repo, pool, cleanup := setupRepository(t, ctx)
	defer cleanup()

	activity := domain.ManualActivityLog{
		ID:           uuid.NewString(),
		StartedAt:    time.Now().UTC().Add(-time.Hour),
		EndedAt:      time.Now().UTC(),
		ActivityType: "run",
		Exertion:     7,
		Calories:     450,
		Source:       "manual",
		SyncStatus:   domain.SyncStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.CreateManualActivity(ctx, activity))

	// The log row and its outbox item land in the same transaction.
	var kind, status string
	err := pool.QueryRow(ctx,
		`SELECT kind, status FROM outbox_items WHERE payload->>'activity_id' = $1`,
		activity.ID,
	).Scan(&kind, &status)
	require.NoError(t, err)
	require.Equal(t, "activity_upsert", kind)
	require.Equal(t, "pending", status)

	listed, err := repo.ListManualActivities(ctx,
		activity.StartedAt.Add(-time.Minute), activity.EndedAt.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, domain.SyncStatusPending, listed[0].SyncStatus)

	syncedAt := time.Now().UTC()
	require.NoError(t, repo.MarkActivitySynced(ctx, activity.ID, activity.ID, syncedAt))

	listed, err = repo.ListManualActivities(ctx,
		activity.StartedAt.Add(-time.Minute), activity.EndedAt.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, domain.SyncStatusSynced, listed[0].SyncStatus)
	require.NotNil(t, listed[0].SyncedAt)
	require.NotNil(t, listed[0].HealthRecordID)
	require.Equal(t, activity.ID, *listed[0].HealthRecordID)
}

func TestReplaceDailySummariesUpdatesReadMarker(t *testing.T) {
	ctx := context.Background()
	repo, _, cleanup := setupRepository(t, ctx)
	defer cleanup()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	summaries := []health.DailySummary{
		{Date: day, SleepMinutes: 420, LightMinutes: 420, SleepSessions: 1, Provenance: health.SummaryProvenance},
		{Date: day.AddDate(0, 0, 1), ExerciseMinutes: 30, ExerciseSessions: 1, ModerateIntensity: 1, Provenance: health.SummaryProvenance},
	}
	require.NoError(t, repo.ReplaceDailySummaries(ctx, summaries, day.AddDate(0, 0, 1)))

	// A later pass overwrites the same dates instead of duplicating them.
	summaries[0].SleepMinutes = 450
	summaries[0].LightMinutes = 450
	require.NoError(t, repo.ReplaceDailySummaries(ctx, summaries, day.AddDate(0, 0, 1)))

	stored, err := repo.ListDailySummaries(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, 450, stored[0].SleepMinutes)

	marker, err := repo.GetSyncState(ctx, stateKeyLastReadDate)
	require.NoError(t, err)
	require.Equal(t, day.AddDate(0, 0, 1).Format(dateLayout), marker)
}

func TestSyncStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _, cleanup := setupRepository(t, ctx)
	defer cleanup()

	empty, err := repo.GetSyncState(ctx, "last_synced_at")
	require.NoError(t, err)
	require.Empty(t, empty)

	require.NoError(t, repo.PutSyncState(ctx, "last_synced_at", "2026-03-02T06:00:00Z"))
	require.NoError(t, repo.PutSyncState(ctx, "last_synced_at", "2026-03-03T06:00:00Z"))

	stored, err := repo.GetSyncState(ctx, "last_synced_at")
	require.NoError(t, err)
	require.Equal(t, "2026-03-03T06:00:00Z", stored)
}

func TestTrackedMealAndCheckInUpserts(t *testing.T) {
	ctx := context.Background()
	repo, _, cleanup := setupRepository(t, ctx)
	defer cleanup()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	meal := domain.TrackedMeal{
		Date:   day,
		Slot:   domain.SlotLunch,
		Macros: domain.Macros{Calories: 650, ProteinG: 45},
		Eaten:  false,
	}
	require.NoError(t, repo.UpsertTrackedMeal(ctx, meal))
	meal.Eaten = true
	require.NoError(t, repo.UpsertTrackedMeal(ctx, meal))

	meals, err := repo.ListTrackedMeals(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	require.True(t, meals[0].Eaten)

	checkin := domain.CheckIn{Date: day, WeightKg: 79.8, Mood: 4, Note: "slept well"}
	require.NoError(t, repo.UpsertCheckIn(ctx, checkin))
	checkin.WeightKg = 79.5
	require.NoError(t, repo.UpsertCheckIn(ctx, checkin))

	checkins, err := repo.ListCheckIns(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, checkins, 1)
	require.Equal(t, 79.5, checkins[0].WeightKg)
}

func seedRecipe(t *testing.T, ctx context.Context, repo *Repository) string {
	t.Helper()
	recipe := domain.Recipe{
		ID:        uuid.NewString(),
		Name:      "Seed Recipe",
		Macros:    domain.Macros{Calories: 500, ProteinG: 35},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.UpsertRecipe(ctx, recipe))
	return recipe.ID
}

func setupRepository(t *testing.T, ctx context.Context) (*Repository, *pgxpool.Pool, func()) {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("mealplan"),
		postgrescontainer.WithUsername("mealplan"),
		postgrescontainer.WithPassword("mealplan"),
	)
	require.NoError(t, err)

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pg.Terminate(ctx)
	}
	return NewRepository(pool), pool, cleanup
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(500 * time.Millisecond)
	}
}
