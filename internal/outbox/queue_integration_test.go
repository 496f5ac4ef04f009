//go:build integration

package outbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestQueueDrainIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	queue := NewQueue(pool)

	beforeSynced := testutil.ToFloat64(syncedCounter)
	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeHistogram := histogramSampleCount(t)

	id1, err := queue.Enqueue(ctx, NutritionUpsertPayload{Date: "2026-03-01", Calories: 1800})
	require.NoError(t, err)
	id2, err := queue.Enqueue(ctx, NutritionUpsertPayload{Date: "2026-03-02", Calories: 1900})
	require.NoError(t, err)
	id3, err := queue.Enqueue(ctx, NutritionUpsertPayload{Date: "2026-03-03", Calories: 2000})
	require.NoError(t, err)

	stats, err := queue.Drain(ctx, 10, func(_ context.Context, item Item) error {
		if item.ID == id2 {
			return errors.New("provider rejected record")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, DrainStats{Processed: 3, Synced: 2, Failed: 1}, stats)

	// Synced items are pruned; the failed one survives with its error and
	// bumped attempt counter.
	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_items WHERE item_id IN ($1, $2)`, id1, id3).Scan(&count))
	require.Zero(t, count)

	var status string
	var attempts int
	var lastError string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT status, attempts, last_error FROM outbox_items WHERE item_id = $1`, id2,
	).Scan(&status, &attempts, &lastError))
	require.Equal(t, string(StatusFailed), status)
	require.Equal(t, 1, attempts)
	require.Contains(t, lastError, "provider rejected record")

	require.InDelta(t, beforeSynced+2, testutil.ToFloat64(syncedCounter), 0.0001)
	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)
	require.InDelta(t, 1, testutil.ToFloat64(pendingGauge), 0.0001)
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, drainDuration.Write(&metric))
	return metric.GetHistogram().GetSampleCount()
}

func TestQueueRetriesFailedItems(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	queue := NewQueue(pool)

	id, err := queue.Enqueue(ctx, NutritionDeletePayload{Date: "2026-03-04"})
	require.NoError(t, err)

	_, err = queue.Drain(ctx, 10, func(context.Context, Item) error {
		return errors.New("transient")
	})
	require.NoError(t, err)

	// The failed item is picked up again on the next pass.
	stats, err := queue.Drain(ctx, 10, func(context.Context, Item) error { return nil })
	require.NoError(t, err)
	require.Equal(t, 1, stats.Synced)

	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_items WHERE item_id = $1`, id).Scan(&count))
	require.Zero(t, count)
}

func TestQueueRecoversItemsStuckInProcessing(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	queue := NewQueue(pool)

	id, err := queue.Enqueue(ctx, NutritionUpsertPayload{Date: "2026-03-05", Calories: 2200})
	require.NoError(t, err)

	// Simulate a process killed mid-drain.
	_, err = pool.Exec(ctx,
		`UPDATE outbox_items SET status = $1, attempts = 1 WHERE item_id = $2`,
		string(StatusProcessing), id)
	require.NoError(t, err)

	stats, err := queue.Drain(ctx, 10, func(context.Context, Item) error { return nil })
	require.NoError(t, err)
	require.Equal(t, 1, stats.Synced)
}

func TestQueuePendingCountTracksLifecycle(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	queue := NewQueue(pool)

	var observed []int
	queue.OnPendingChange(func(count int) { observed = append(observed, count) })

	_, err := queue.Enqueue(ctx, NutritionUpsertPayload{Date: "2026-03-06", Calories: 1700})
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, NutritionUpsertPayload{Date: "2026-03-07", Calories: 1750})
	require.NoError(t, err)

	count, err := queue.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	_, err = queue.Drain(ctx, 10, func(context.Context, Item) error { return nil })
	require.NoError(t, err)

	count, err = queue.PendingCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	require.Equal(t, []int{1, 2, 0}, observed)
}

func TestQueueDrainRespectsLimitOldestFirst(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	queue := NewQueue(pool)

	first, err := queue.Enqueue(ctx, NutritionUpsertPayload{Date: "2026-03-08", Calories: 1600})
	require.NoError(t, err)
	second, err := queue.Enqueue(ctx, NutritionUpsertPayload{Date: "2026-03-09", Calories: 1650})
	require.NoError(t, err)

	var applied []int64
	stats, err := queue.Drain(ctx, 1, func(_ context.Context, item Item) error {
		applied = append(applied, item.ID)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Processed)
	require.Equal(t, []int64{first}, applied)

	count, err := queue.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var status string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT status FROM outbox_items WHERE item_id = $1`, second).Scan(&status))
	require.Equal(t, string(StatusPending), status)
}

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
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
	return pool, cleanup
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../db/postgres/migrations/0001_init.up.sql",
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
