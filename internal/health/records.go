// Package health models the platform health store's records and the daily
// summary aggregation derived from them.
package health

import "time"

// SDKStatus reports availability of the underlying health service.
type SDKStatus string

const (
	SDKStatusAvailable      SDKStatus = "available"
	SDKStatusUnavailable    SDKStatus = "unavailable"
	SDKStatusUpdateRequired SDKStatus = "update_required"
)

// Permission tokens for the health store.
const (
	PermissionReadSleep           = "health.read.sleep"
	PermissionReadExercise        = "health.read.exercise"
	PermissionReadActiveCalories  = "health.read.active_calories"
	PermissionWriteExercise       = "health.write.exercise"
	PermissionWriteActiveCalories = "health.write.active_calories"
	PermissionReadNutrition       = "health.read.nutrition"
	PermissionWriteNutrition      = "health.write.nutrition"
)

// RequiredPermissions returns the full permission set the sync pass needs.
func RequiredPermissions() []string {
	return []string{
		PermissionReadSleep,
		PermissionReadExercise,
		PermissionReadActiveCalories,
		PermissionWriteExercise,
		PermissionWriteActiveCalories,
		PermissionReadNutrition,
		PermissionWriteNutrition,
	}
}

// TimeRange bounds a record query.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SleepStages breaks a sleep session into stage durations. Stage minutes may
// sum to less than the session duration when the device left gaps untracked.
type SleepStages struct {
	DeepMinutes  int `json:"deep_minutes"`
	RemMinutes   int `json:"rem_minutes"`
	LightMinutes int `json:"light_minutes"`
}

// SleepSession is one recorded sleep period.
type SleepSession struct {
	ClientRecordID string       `json:"client_record_id"`
	StartedAt      time.Time    `json:"started_at"`
	EndedAt        time.Time    `json:"ended_at"`
	Stages         *SleepStages `json:"stages,omitempty"`
}

// ExerciseSession is one recorded workout.
type ExerciseSession struct {
	ClientRecordID string    `json:"client_record_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	ExerciseType   string    `json:"exercise_type"`
	Title          string    `json:"title,omitempty"`
}

// ActiveCaloriesRecord carries energy burned over a time range.
type ActiveCaloriesRecord struct {
	ClientRecordID string    `json:"client_record_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	EnergyKcal     float64   `json:"energy_kcal"`
}

// NutritionRecord carries one day's logged intake.
type NutritionRecord struct {
	ClientRecordID string    `json:"client_record_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	Calories       int       `json:"calories"`
	ProteinG       float64   `json:"protein_g"`
	CarbsG         float64   `json:"carbs_g"`
	FatG           float64   `json:"fat_g"`
	MealName       string    `json:"meal_name,omitempty"`
}

// ExerciseCategory is the health store's coarse activity taxonomy.
type ExerciseCategory string

const (
	CategoryWalking  ExerciseCategory = "walking"
	CategoryRunning  ExerciseCategory = "running"
	CategoryCycling  ExerciseCategory = "cycling"
	CategoryStrength ExerciseCategory = "strength_training"
	CategoryHIIT     ExerciseCategory = "hiit"
	CategoryOther    ExerciseCategory = "other"
)
