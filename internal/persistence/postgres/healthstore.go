package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/mealplan/internal/health"
)

// Sync-state key updated alongside summary writes.
const stateKeyLastReadDate = "last_read_date"

// ReplaceDailySummaries overwrites the summary rows for the aggregated span
// and advances the last-read-date marker in one transaction. Summaries are
// recomputed wholesale per pass, never patched.
func (r *Repository) ReplaceDailySummaries(ctx context.Context, summaries []health.DailySummary, lastReadDate time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO daily_summaries
        (summary_date, sleep_minutes, deep_minutes, rem_minutes, light_minutes, sleep_sessions,
         exercise_minutes, active_calories, exercise_sessions, high_intensity, moderate_intensity, low_intensity,
         provenance, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())
        ON CONFLICT (summary_date) DO UPDATE SET
            sleep_minutes=EXCLUDED.sleep_minutes, deep_minutes=EXCLUDED.deep_minutes,
            rem_minutes=EXCLUDED.rem_minutes, light_minutes=EXCLUDED.light_minutes,
            sleep_sessions=EXCLUDED.sleep_sessions, exercise_minutes=EXCLUDED.exercise_minutes,
            active_calories=EXCLUDED.active_calories, exercise_sessions=EXCLUDED.exercise_sessions,
            high_intensity=EXCLUDED.high_intensity, moderate_intensity=EXCLUDED.moderate_intensity,
            low_intensity=EXCLUDED.low_intensity, provenance=EXCLUDED.provenance, updated_at=NOW()`

	for _, s := range summaries {
		if _, err := tx.Exec(ctx, stmt,
			s.Date.Format(dateLayout),
			s.SleepMinutes, s.DeepMinutes, s.RemMinutes, s.LightMinutes, s.SleepSessions,
			s.ExerciseMinutes, s.ActiveCalories, s.ExerciseSessions,
			s.HighIntensity, s.ModerateIntensity, s.LowIntensity,
			s.Provenance,
		); err != nil {
			return err
		}
	}

	if err := putSyncStateTx(ctx, tx, stateKeyLastReadDate, lastReadDate.Format(dateLayout)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListDailySummaries returns summaries within [start, end] inclusive, ascending.
func (r *Repository) ListDailySummaries(ctx context.Context, start, end time.Time) ([]health.DailySummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT summary_date, sleep_minutes, deep_minutes, rem_minutes, light_minutes, sleep_sessions,
                exercise_minutes, active_calories, exercise_sessions, high_intensity, moderate_intensity, low_intensity,
                provenance
         FROM daily_summaries WHERE summary_date BETWEEN $1 AND $2
         ORDER BY summary_date`,
		start.Format(dateLayout), end.Format(dateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []health.DailySummary
	for rows.Next() {
		var s health.DailySummary
		if err := rows.Scan(&s.Date, &s.SleepMinutes, &s.DeepMinutes, &s.RemMinutes, &s.LightMinutes, &s.SleepSessions,
			&s.ExerciseMinutes, &s.ActiveCalories, &s.ExerciseSessions,
			&s.HighIntensity, &s.ModerateIntensity, &s.LowIntensity, &s.Provenance); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSyncState returns the value for a sync-state key, empty when absent.
func (r *Repository) GetSyncState(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT state_value FROM sync_state WHERE state_key=$1`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// PutSyncState upserts a sync-state key.
func (r *Repository) PutSyncState(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sync_state (state_key, state_value, updated_at) VALUES ($1,$2,NOW())
         ON CONFLICT (state_key) DO UPDATE SET state_value=EXCLUDED.state_value, updated_at=NOW()`,
		key, value,
	)
	return err
}

func putSyncStateTx(ctx context.Context, tx pgx.Tx, key, value string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO sync_state (state_key, state_value, updated_at) VALUES ($1,$2,NOW())
         ON CONFLICT (state_key) DO UPDATE SET state_value=EXCLUDED.state_value, updated_at=NOW()`,
		key, value,
	)
	return err
}
