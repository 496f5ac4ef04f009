package health

import (
	"math"
	"sort"
	"time"
)

// DailySummary is one aggregated row per calendar date.
type DailySummary struct {
	Date              time.Time `json:"date"`
	SleepMinutes      int       `json:"sleep_minutes"`
	DeepMinutes       int       `json:"deep_minutes"`
	RemMinutes        int       `json:"rem_minutes"`
	LightMinutes      int       `json:"light_minutes"`
	SleepSessions     int       `json:"sleep_sessions"`
	ExerciseMinutes   int       `json:"exercise_minutes"`
	ActiveCalories    int       `json:"active_calories"`
	ExerciseSessions  int       `json:"exercise_sessions"`
	HighIntensity     int       `json:"high_intensity"`
	ModerateIntensity int       `json:"moderate_intensity"`
	LowIntensity      int       `json:"low_intensity"`
	Provenance        string    `json:"provenance"`
}

// SummaryProvenance tags rows produced by the aggregator.
const SummaryProvenance = "health_provider"

// Intensity tier thresholds in minutes.
const (
	highIntensityMin     = 45
	moderateIntensityMin = 25
)

// AggregateDailySummaries converts raw records covering [start, end] (inclusive
// calendar dates in loc) into exactly one summary per date, ascending. Days
// with no records still produce a zero-valued row. Sessions are bucketed
// entirely under the calendar date of their start time; midnight-spanning
// sessions are not split.
func AggregateDailySummaries(loc *time.Location, start, end time.Time, sleeps []SleepSession, exercises []ExerciseSession, calories []ActiveCaloriesRecord) []DailySummary {
	if loc == nil {
		loc = time.Local
	}

	byDate := make(map[string]*DailySummary)
	startDay := DateOf(start.In(loc))
	endDay := DateOf(end.In(loc))
	for day := startDay; !day.After(endDay); day = NextDate(day) {
		byDate[dateKey(day)] = &DailySummary{Date: day, Provenance: SummaryProvenance}
	}

	for _, s := range sleeps {
		summary, ok := byDate[dateKey(DateOf(s.StartedAt.In(loc)))]
		if !ok {
			continue
		}
		total := wholeMinutes(s.StartedAt, s.EndedAt)
		summary.SleepMinutes += total
		summary.SleepSessions++

		if s.Stages == nil {
			summary.LightMinutes += total
			continue
		}
		deep := clampNonNegative(s.Stages.DeepMinutes)
		rem := clampNonNegative(s.Stages.RemMinutes)
		light := clampNonNegative(s.Stages.LightMinutes)
		switch staged := deep + rem + light; {
		case staged > total:
			// The breakdown cannot claim more minutes than the session
			// lasted. Scale it down to fit, light absorbs the rounding.
			deep = deep * total / staged
			rem = rem * total / staged
			light = total - deep - rem
		case staged < total:
			// Untracked gaps between the stage breakdown and the session
			// duration count as light sleep.
			light += total - staged
		}
		summary.DeepMinutes += deep
		summary.RemMinutes += rem
		summary.LightMinutes += light
	}

	for _, e := range exercises {
		summary, ok := byDate[dateKey(DateOf(e.StartedAt.In(loc)))]
		if !ok {
			continue
		}
		minutes := wholeMinutes(e.StartedAt, e.EndedAt)
		summary.ExerciseMinutes += minutes
		summary.ExerciseSessions++
		switch {
		case minutes >= highIntensityMin:
			summary.HighIntensity++
		case minutes >= moderateIntensityMin:
			summary.ModerateIntensity++
		case minutes >= 1:
			summary.LowIntensity++
		}
	}

	for _, c := range calories {
		summary, ok := byDate[dateKey(DateOf(c.StartedAt.In(loc)))]
		if !ok {
			continue
		}
		summary.ActiveCalories += int(math.Round(c.EnergyKcal))
	}

	out := make([]DailySummary, 0, len(byDate))
	for _, summary := range byDate {
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// DateOf truncates a time to midnight in its own location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextDate returns the following calendar date, DST-safe.
func NextDate(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location())
}

func dateKey(day time.Time) string {
	return day.Format("2006-01-02")
}

func wholeMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int(d.Minutes())
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
