package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queue is the durable at-least-once delivery queue backed by the
// outbox_items table. Items are drained oldest first; one item's failure
// never blocks its siblings; synced items are pruned after each drain.
type Queue struct {
	pool *pgxpool.Pool

	mu          sync.Mutex
	subscribers []func(int)
}

// NewQueue constructs a Queue.
func NewQueue(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

// InsertInTx records an item inside a caller-owned transaction so the item
// commits atomically with any co-located local write.
func InsertInTx(ctx context.Context, tx pgx.Tx, payload Payload) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal outbox payload: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO outbox_items (kind, payload, status, attempts)
         VALUES ($1, $2, $3, 0)
         RETURNING item_id`,
		string(payload.Kind()), body, string(StatusPending),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Enqueue inserts an item in its own transaction and publishes the new
// pending count.
func (q *Queue) Enqueue(ctx context.Context, payload Payload) (int64, error) {
	tx, err := q.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	id, err := InsertInTx(ctx, tx, payload)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	q.PublishPendingCount(ctx)
	return id, nil
}

// PendingCount reports the number of items awaiting delivery.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := q.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_items WHERE status IN ($1, $2)`,
		string(StatusPending), string(StatusFailed),
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// OnPendingChange registers a callback invoked with the pending count after
// every enqueue and drain.
func (q *Queue) OnPendingChange(fn func(int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subscribers = append(q.subscribers, fn)
}

// PublishPendingCount recomputes the pending count and notifies subscribers.
func (q *Queue) PublishPendingCount(ctx context.Context) {
	count, err := q.PendingCount(ctx)
	if err != nil {
		log.Printf("outbox: pending count query failed: %v", err)
		return
	}
	pendingGauge.Set(float64(count))

	q.mu.Lock()
	subs := make([]func(int), len(q.subscribers))
	copy(subs, q.subscribers)
	q.mu.Unlock()

	for _, fn := range subs {
		fn(count)
	}
}

// DrainStats summarises one drain pass.
type DrainStats struct {
	Processed int
	Synced    int
	Failed    int
}

// Drain replays up to limit items oldest first. Items left in processing by a
// killed process are picked up again alongside pending and failed ones. Each
// item is marked processing with its attempt counter bumped before apply, then
// resolved to synced or failed independently of its siblings. Synced items are
// pruned after the batch.
func (q *Queue) Drain(ctx context.Context, limit int, apply func(context.Context, Item) error) (DrainStats, error) {
	start := time.Now()
	defer func() {
		drainDuration.Observe(time.Since(start).Seconds())
		q.PublishPendingCount(ctx)
	}()

	items, err := q.fetchRetryable(ctx, limit)
	if err != nil {
		return DrainStats{}, err
	}

	var stats DrainStats
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := q.markProcessing(ctx, item.ID); err != nil {
			return stats, err
		}
		stats.Processed++

		if applyErr := apply(ctx, item); applyErr != nil {
			stats.Failed++
			failedCounter.Inc()
			if err := q.markFailed(ctx, item.ID, applyErr.Error()); err != nil {
				return stats, err
			}
			continue
		}

		stats.Synced++
		syncedCounter.Inc()
		if err := q.markSynced(ctx, item.ID); err != nil {
			return stats, err
		}
	}

	if err := q.pruneSynced(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

func (q *Queue) fetchRetryable(ctx context.Context, limit int) ([]Item, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT item_id, kind, payload, status, attempts, last_error, created_at, updated_at
         FROM outbox_items
         WHERE status IN ($1, $2, $3)
         ORDER BY created_at, item_id
         LIMIT $4`,
		string(StatusPending), string(StatusFailed), string(StatusProcessing), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0, limit)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Kind, &item.Payload, &item.Status, &item.Attempts, &item.LastError, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (q *Queue) markProcessing(ctx context.Context, id int64) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE outbox_items SET status=$1, attempts=attempts+1, updated_at=NOW() WHERE item_id=$2`,
		string(StatusProcessing), id,
	)
	return err
}

func (q *Queue) markSynced(ctx context.Context, id int64) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE outbox_items SET status=$1, last_error=NULL, updated_at=NOW() WHERE item_id=$2`,
		string(StatusSynced), id,
	)
	return err
}

func (q *Queue) markFailed(ctx context.Context, id int64, message string) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE outbox_items SET status=$1, last_error=$2, updated_at=NOW() WHERE item_id=$3`,
		string(StatusFailed), message, id,
	)
	return err
}

func (q *Queue) pruneSynced(ctx context.Context) error {
	_, err := q.pool.Exec(ctx,
		`DELETE FROM outbox_items WHERE status=$1`, string(StatusSynced),
	)
	return err
}
