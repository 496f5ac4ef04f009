package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/mealplan/internal/health"
	"example.com/mealplan/internal/observability"
	"example.com/mealplan/internal/outbox"
)

// Sync-state key for the last successful pass timestamp. The last-read-date
// key is maintained by the store alongside summary writes.
const StateKeyLastSyncedAt = "last_synced_at"

// ErrSyncInProgress is returned when a pass is requested while one is running.
var ErrSyncInProgress = errors.New("sync pass already in progress")

// Store captures the local-store operations the orchestrator drives.
type Store interface {
	ReplaceDailySummaries(ctx context.Context, summaries []health.DailySummary, lastReadDate time.Time) error
	GetSyncState(ctx context.Context, key string) (string, error)
	PutSyncState(ctx context.Context, key, value string) error
	MarkActivitySynced(ctx context.Context, activityID, healthRecordID string, at time.Time) error
	MarkActivitySyncFailed(ctx context.Context, activityID string) error
}

type drainQueue interface {
	Drain(ctx context.Context, limit int, apply func(context.Context, outbox.Item) error) (outbox.DrainStats, error)
	PendingCount(ctx context.Context) (int, error)
	OnPendingChange(fn func(int))
}

// Orchestrator coordinates permission checks, summary aggregation, outbox
// draining, and sync-state bookkeeping into one serial sync pass.
type Orchestrator struct {
	provider   health.ProviderClient
	store      Store
	queue      drainQueue
	state      *StateHolder
	loc        *time.Location
	drainLimit int
	now        func() time.Time

	syncMu           sync.Mutex
	shutdownComplete chan struct{}
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLocation sets the time zone used for calendar-date bucketing.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) { o.loc = loc }
}

// WithDrainLimit caps how many outbox items one pass replays.
func WithDrainLimit(limit int) Option {
	return func(o *Orchestrator) { o.drainLimit = limit }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator wires the orchestrator and seeds state from the store.
func NewOrchestrator(provider health.ProviderClient, store Store, queue drainQueue, state *StateHolder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:         provider,
		store:            store,
		queue:            queue,
		state:            state,
		loc:              time.Local,
		drainLimit:       100,
		now:              time.Now,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	queue.OnPendingChange(state.SetPendingOutbox)
	return o
}

// SeedState loads persisted sync state and the pending count into the holder.
// Called once at startup.
func (o *Orchestrator) SeedState(ctx context.Context) error {
	raw, err := o.store.GetSyncState(ctx, StateKeyLastSyncedAt)
	if err != nil {
		return err
	}
	var lastSynced *time.Time
	if raw != "" {
		parsed, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			return fmt.Errorf("parse %s: %w", StateKeyLastSyncedAt, parseErr)
		}
		lastSynced = &parsed
	}

	pending, err := o.queue.PendingCount(ctx)
	if err != nil {
		return err
	}

	o.state.Update(func(s *ConnectionState) {
		s.LastSyncedAt = lastSynced
		s.PendingOutbox = pending
	})
	return nil
}

// Start launches the periodic sync loop. It should be called in a goroutine.
// Pacing is entirely loop-driven; the queue itself enforces no backoff.
func (o *Orchestrator) Start(ctx context.Context, interval time.Duration, daysBack int) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		close(o.shutdownComplete)
	}()

	for {
		if err := o.SyncNow(ctx, daysBack); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrSyncInProgress) {
			log.Printf("syncer: pass failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the periodic loop stops.
func (o *Orchestrator) Wait() {
	<-o.shutdownComplete
}

// SyncNow runs one pass covering [today-(daysBack-1), today]. Availability and
// permission gaps are normal outcomes surfaced as state, not errors. Pass-level
// failures are recorded in lastError and also returned so callers can log them.
func (o *Orchestrator) SyncNow(ctx context.Context, daysBack int) error {
	if !o.syncMu.TryLock() {
		return ErrSyncInProgress
	}
	defer o.syncMu.Unlock()

	if daysBack < 1 {
		daysBack = 1
	}

	status, err := o.provider.SDKStatus(ctx)
	if err != nil {
		status = health.SDKStatusUnavailable
	}
	if status != health.SDKStatusAvailable {
		o.state.Update(func(s *ConnectionState) {
			s.Availability = status
			s.HasPermissions = false
			s.IsSyncing = false
		})
		return nil
	}

	granted, err := o.provider.GrantedPermissions(ctx)
	if err != nil {
		o.state.Update(func(s *ConnectionState) {
			s.Availability = status
			s.IsSyncing = false
			s.LastError = err.Error()
		})
		return err
	}

	missing := missingPermissions(granted)
	hasPermissions := len(missing) == 0
	o.state.Update(func(s *ConnectionState) {
		s.Availability = status
		s.HasPermissions = hasPermissions
		s.IsSyncing = hasPermissions
		if !hasPermissions {
			s.LastError = "missing health permissions: " + strings.Join(missing, ", ")
		}
	})
	if !hasPermissions {
		return nil
	}

	if err := o.refreshSummaries(ctx, daysBack); err != nil {
		o.recordFailure(err)
		return err
	}

	if err := o.drainOutbox(ctx); err != nil {
		o.recordFailure(err)
		return err
	}

	completedAt := o.now().UTC()
	if err := o.store.PutSyncState(ctx, StateKeyLastSyncedAt, completedAt.Format(time.RFC3339)); err != nil {
		o.recordFailure(err)
		return err
	}

	o.state.Update(func(s *ConnectionState) {
		s.IsSyncing = false
		s.LastError = ""
		s.LastSyncedAt = &completedAt
	})
	observability.RecordSyncCompleted(completedAt)
	return nil
}

// refreshSummaries reads the raw record streams, aggregates them, and
// overwrites the summary rows plus the last-read-date marker in one
// transaction. Partial progress here is deliberately kept if a later step
// fails: summaries are best-effort cached data.
func (o *Orchestrator) refreshSummaries(ctx context.Context, daysBack int) error {
	today := health.DateOf(o.now().In(o.loc))
	start := time.Date(today.Year(), today.Month(), today.Day()-(daysBack-1), 0, 0, 0, 0, o.loc)
	readRange := health.TimeRange{Start: start, End: health.NextDate(today)}

	sleeps, err := o.provider.ReadSleepSessions(ctx, readRange)
	if err != nil {
		return fmt.Errorf("read sleep sessions: %w", err)
	}
	exercises, err := o.provider.ReadExerciseSessions(ctx, readRange)
	if err != nil {
		return fmt.Errorf("read exercise sessions: %w", err)
	}
	calories, err := o.provider.ReadActiveCalories(ctx, readRange)
	if err != nil {
		return fmt.Errorf("read active calories: %w", err)
	}

	summaries := health.AggregateDailySummaries(o.loc, start, today, sleeps, exercises, calories)
	return o.store.ReplaceDailySummaries(ctx, summaries, today)
}

func (o *Orchestrator) drainOutbox(ctx context.Context) error {
	_, err := o.queue.Drain(ctx, o.drainLimit, o.applyItem)
	return err
}

// applyItem routes one outbox item to its health-store write. Apply errors are
// recorded on the item by the drain loop; only infrastructure errors abort.
func (o *Orchestrator) applyItem(ctx context.Context, item outbox.Item) error {
	payload, err := outbox.DecodePayload(item)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case outbox.ActivityUpsertPayload:
		return o.applyActivityUpsert(ctx, p)
	case outbox.NutritionUpsertPayload:
		return o.applyNutritionUpsert(ctx, p)
	case outbox.NutritionDeletePayload:
		return o.provider.DeleteNutritionRecords(ctx, []string{outbox.NutritionClientRecordID(p.Date)})
	default:
		return fmt.Errorf("no applier for outbox item kind %q", item.Kind)
	}
}

// applyActivityUpsert writes the exercise session and active-calories pair for
// a manual activity. The two records share the time range but carry distinct
// client record ids so each write is independently idempotent.
func (o *Orchestrator) applyActivityUpsert(ctx context.Context, p outbox.ActivityUpsertPayload) error {
	session := health.ExerciseSession{
		ClientRecordID: p.ActivityID,
		StartedAt:      p.StartedAt,
		EndedAt:        p.EndedAt,
		ExerciseType:   string(ClassifyActivityType(p.ActivityType)),
		Title:          p.ActivityType,
	}
	if err := o.provider.InsertExerciseSession(ctx, session); err != nil {
		o.markActivityFailed(ctx, p.ActivityID)
		return fmt.Errorf("insert exercise session: %w", err)
	}

	caloriesRec := health.ActiveCaloriesRecord{
		ClientRecordID: outbox.ActivityCaloriesRecordID(p.ActivityID),
		StartedAt:      p.StartedAt,
		EndedAt:        p.EndedAt,
		EnergyKcal:     float64(p.Calories),
	}
	if err := o.provider.InsertActiveCalories(ctx, caloriesRec); err != nil {
		o.markActivityFailed(ctx, p.ActivityID)
		return fmt.Errorf("insert active calories: %w", err)
	}

	return o.store.MarkActivitySynced(ctx, p.ActivityID, p.ActivityID, o.now().UTC())
}

// applyNutritionUpsert writes the day's intake as a one-minute record at local
// noon, keyed by the date-derived client record id.
func (o *Orchestrator) applyNutritionUpsert(ctx context.Context, p outbox.NutritionUpsertPayload) error {
	day, err := time.ParseInLocation("2006-01-02", p.Date, o.loc)
	if err != nil {
		return fmt.Errorf("parse nutrition date %q: %w", p.Date, err)
	}
	noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, o.loc)

	return o.provider.InsertNutritionRecord(ctx, health.NutritionRecord{
		ClientRecordID: outbox.NutritionClientRecordID(p.Date),
		StartedAt:      noon,
		EndedAt:        noon.Add(time.Minute),
		Calories:       p.Calories,
		ProteinG:       p.ProteinG,
		CarbsG:         p.CarbsG,
		FatG:           p.FatG,
		MealName:       "daily total",
	})
}

func (o *Orchestrator) markActivityFailed(ctx context.Context, activityID string) {
	// Best effort: the outbox item keeps the authoritative failure record.
	_ = o.store.MarkActivitySyncFailed(ctx, activityID)
}

func (o *Orchestrator) recordFailure(err error) {
	o.state.Update(func(s *ConnectionState) {
		s.IsSyncing = false
		s.LastError = err.Error()
	})
}

func missingPermissions(granted map[string]struct{}) []string {
	var missing []string
	for _, token := range health.RequiredPermissions() {
		if _, ok := granted[token]; !ok {
			missing = append(missing, token)
		}
	}
	sort.Strings(missing)
	return missing
}

// ClassifyActivityType maps a free-form activity label onto the health store's
// category set by case-insensitive substring match. Best effort, not
// exhaustive; unrecognised labels fall back to "other".
func ClassifyActivityType(activityType string) health.ExerciseCategory {
	label := strings.ToLower(activityType)
	switch {
	case strings.Contains(label, "walk"):
		return health.CategoryWalking
	case strings.Contains(label, "run"):
		return health.CategoryRunning
	case strings.Contains(label, "cycle"):
		return health.CategoryCycling
	case strings.Contains(label, "lift"):
		return health.CategoryStrength
	case strings.Contains(label, "hiit"):
		return health.CategoryHIIT
	default:
		return health.CategoryOther
	}
}
