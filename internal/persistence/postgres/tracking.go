package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/mealplan/internal/domain"
	"example.com/mealplan/internal/observability"
	"example.com/mealplan/internal/outbox"
)

// UpsertTrackedMeal records what was eaten for a date and slot.
func (r *Repository) UpsertTrackedMeal(ctx context.Context, meal domain.TrackedMeal) error {
	const stmt = `INSERT INTO tracked_meals (meal_date, slot, recipe_id, calories, protein_g, carbs_g, fat_g, eaten, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
        ON CONFLICT (meal_date, slot) DO UPDATE SET
            recipe_id=EXCLUDED.recipe_id, calories=EXCLUDED.calories,
            protein_g=EXCLUDED.protein_g, carbs_g=EXCLUDED.carbs_g, fat_g=EXCLUDED.fat_g,
            eaten=EXCLUDED.eaten, updated_at=NOW()`

	_, err := r.pool.Exec(ctx, stmt,
		meal.Date.Format(dateLayout), string(meal.Slot), nullIfEmpty(meal.RecipeID),
		meal.Macros.Calories, meal.Macros.ProteinG, meal.Macros.CarbsG, meal.Macros.FatG,
		meal.Eaten,
	)
	return err
}

// ListTrackedMeals returns tracked meals within [start, end] inclusive.
func (r *Repository) ListTrackedMeals(ctx context.Context, start, end time.Time) ([]domain.TrackedMeal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT meal_date, slot, COALESCE(recipe_id::text, ''), calories, protein_g, carbs_g, fat_g, eaten, updated_at
         FROM tracked_meals WHERE meal_date BETWEEN $1 AND $2
         ORDER BY meal_date, slot`,
		start.Format(dateLayout), end.Format(dateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TrackedMeal
	for rows.Next() {
		var meal domain.TrackedMeal
		var slot string
		if err := rows.Scan(&meal.Date, &slot, &meal.RecipeID,
			&meal.Macros.Calories, &meal.Macros.ProteinG, &meal.Macros.CarbsG, &meal.Macros.FatG,
			&meal.Eaten, &meal.UpdatedAt); err != nil {
			return nil, err
		}
		meal.Slot = domain.MealSlot(slot)
		out = append(out, meal)
	}
	return out, rows.Err()
}

// UpsertCheckIn records the daily weight/mood entry.
func (r *Repository) UpsertCheckIn(ctx context.Context, checkin domain.CheckIn) error {
	const stmt = `INSERT INTO checkins (checkin_date, weight_kg, mood, note, created_at)
        VALUES ($1,$2,$3,$4,NOW())
        ON CONFLICT (checkin_date) DO UPDATE SET
            weight_kg=EXCLUDED.weight_kg, mood=EXCLUDED.mood, note=EXCLUDED.note`

	_, err := r.pool.Exec(ctx, stmt,
		checkin.Date.Format(dateLayout), checkin.WeightKg, checkin.Mood, checkin.Note,
	)
	return err
}

// ListCheckIns returns check-ins within [start, end] inclusive.
func (r *Repository) ListCheckIns(ctx context.Context, start, end time.Time) ([]domain.CheckIn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT checkin_date, COALESCE(weight_kg, 0), COALESCE(mood, 0), note, created_at
         FROM checkins WHERE checkin_date BETWEEN $1 AND $2
         ORDER BY checkin_date`,
		start.Format(dateLayout), end.Format(dateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CheckIn
	for rows.Next() {
		var checkin domain.CheckIn
		if err := rows.Scan(&checkin.Date, &checkin.WeightKg, &checkin.Mood, &checkin.Note, &checkin.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, checkin)
	}
	return out, rows.Err()
}

// CreateManualActivity persists the log and its outbox item inside a single
// transaction, so a crash between the two never leaves one without the other.
func (r *Repository) CreateManualActivity(ctx context.Context, activity domain.ManualActivityLog) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO manual_activity_logs
        (activity_id, started_at, ended_at, activity_type, exertion, calories, source, sync_status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	if _, err := tx.Exec(ctx, stmt,
		activity.ID, activity.StartedAt, activity.EndedAt, activity.ActivityType,
		activity.Exertion, activity.Calories, activity.Source,
		string(activity.SyncStatus), activity.CreatedAt,
	); err != nil {
		return err
	}

	if _, err := outbox.InsertInTx(ctx, tx, outbox.ActivityUpsertPayload{
		ActivityID:   activity.ID,
		StartedAt:    activity.StartedAt,
		EndedAt:      activity.EndedAt,
		ActivityType: activity.ActivityType,
		Calories:     activity.Calories,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityLogged(activity.CreatedAt)
	return nil
}

// ListManualActivities returns logs whose start time falls within [start, end).
func (r *Repository) ListManualActivities(ctx context.Context, start, end time.Time) ([]domain.ManualActivityLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT activity_id, started_at, ended_at, activity_type, exertion, calories, source, sync_status, health_record_id, created_at, synced_at
         FROM manual_activity_logs
         WHERE started_at >= $1 AND started_at < $2
         ORDER BY started_at`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ManualActivityLog
	for rows.Next() {
		var activity domain.ManualActivityLog
		var status string
		if err := rows.Scan(&activity.ID, &activity.StartedAt, &activity.EndedAt, &activity.ActivityType,
			&activity.Exertion, &activity.Calories, &activity.Source, &status,
			&activity.HealthRecordID, &activity.CreatedAt, &activity.SyncedAt); err != nil {
			return nil, err
		}
		activity.SyncStatus = domain.SyncStatus(status)
		out = append(out, activity)
	}
	return out, rows.Err()
}

// MarkActivitySynced flips the outbox status mirror when the item resolves.
func (r *Repository) MarkActivitySynced(ctx context.Context, activityID, healthRecordID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE manual_activity_logs SET sync_status=$1, health_record_id=$2, synced_at=$3 WHERE activity_id=$4`,
		string(domain.SyncStatusSynced), healthRecordID, at, activityID,
	)
	return err
}

// MarkActivitySyncFailed records a failed replay on the mirror.
func (r *Repository) MarkActivitySyncFailed(ctx context.Context, activityID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE manual_activity_logs SET sync_status=$1 WHERE activity_id=$2`,
		string(domain.SyncStatusFailed), activityID,
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
