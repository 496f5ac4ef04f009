// Package outbox persists and replays pending writes against the health store.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"
)

// ItemKind discriminates the closed set of outbox payloads.
type ItemKind string

const (
	KindActivityUpsert  ItemKind = "activity_upsert"
	KindNutritionUpsert ItemKind = "nutrition_upsert"
	KindNutritionDelete ItemKind = "nutrition_delete"
)

// Status is the lifecycle state of an outbox item. Transitions are
// pending/failed -> processing -> synced|failed; synced is terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSynced     Status = "synced"
	StatusFailed     Status = "failed"
)

// Payload is implemented by the typed payloads of each item kind.
type Payload interface {
	Kind() ItemKind
}

// ActivityUpsertPayload replays a manual activity as an exercise session plus
// an active-calories record.
type ActivityUpsertPayload struct {
	ActivityID   string    `json:"activity_id"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	ActivityType string    `json:"activity_type"`
	Calories     int       `json:"calories"`
}

// Kind implements Payload.
func (ActivityUpsertPayload) Kind() ItemKind { return KindActivityUpsert }

// NutritionUpsertPayload replays one day's intake totals. Date is formatted
// as 2006-01-02 and also derives the client record id, so repeated upserts
// for the same date overwrite rather than duplicate.
type NutritionUpsertPayload struct {
	Date     string  `json:"date"`
	Calories int     `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// Kind implements Payload.
func (NutritionUpsertPayload) Kind() ItemKind { return KindNutritionUpsert }

// NutritionDeletePayload removes the nutrition record for one date.
type NutritionDeletePayload struct {
	Date string `json:"date"`
}

// Kind implements Payload.
func (NutritionDeletePayload) Kind() ItemKind { return KindNutritionDelete }

// NutritionClientRecordID derives the stable client record id for a date's
// nutrition record. Upserts and deletes for a date must target the same id.
func NutritionClientRecordID(date string) string {
	return "nutrition-" + date
}

// ActivityCaloriesRecordID derives the client record id for the
// active-calories record paired with a manual activity.
func ActivityCaloriesRecordID(activityID string) string {
	return activityID + "-calories"
}

// Item is one pending or historical write intended for the health store.
type Item struct {
	ID        int64
	Kind      ItemKind
	Payload   json.RawMessage
	Status    Status
	Attempts  int
	LastError *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DecodePayload unmarshals an item's payload into its typed form.
func DecodePayload(item Item) (Payload, error) {
	switch item.Kind {
	case KindActivityUpsert:
		var p ActivityUpsertPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", item.Kind, err)
		}
		return p, nil
	case KindNutritionUpsert:
		var p NutritionUpsertPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", item.Kind, err)
		}
		return p, nil
	case KindNutritionDelete:
		var p NutritionDeletePayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", item.Kind, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown outbox item kind %q", item.Kind)
	}
}
