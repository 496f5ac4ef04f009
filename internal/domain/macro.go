package domain

import (
	"errors"
	"fmt"
	"math"
)

// Sex is used by the BMR formula.
type Sex string

const (
	SexFemale Sex = "female"
	SexMale   Sex = "male"
)

// Goal adjusts daily calories relative to maintenance.
type Goal string

const (
	GoalLose     Goal = "lose"
	GoalMaintain Goal = "maintain"
	GoalGain     Goal = "gain"
)

// Profile carries the inputs for macro target calculation.
type Profile struct {
	Sex           Sex     `json:"sex"`
	AgeYears      int     `json:"age_years"`
	HeightCm      float64 `json:"height_cm"`
	WeightKg      float64 `json:"weight_kg"`
	ActivityLevel string  `json:"activity_level"`
	Goal          Goal    `json:"goal"`
}

// MacroTargets is the daily target derived from a profile.
type MacroTargets struct {
	Calories int     `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

var activityFactors = map[string]float64{
	"sedentary": 1.2,
	"light":     1.375,
	"moderate":  1.55,
	"active":    1.725,
	"athlete":   1.9,
}

var goalAdjustments = map[Goal]float64{
	GoalLose:     -500,
	GoalMaintain: 0,
	GoalGain:     300,
}

// ErrInvalidProfile indicates out-of-range macro calculator inputs.
var ErrInvalidProfile = errors.New("invalid profile")

// CalculateMacroTargets derives daily targets using Mifflin-St Jeor BMR, an
// activity multiplier, and a goal adjustment. Protein is set at 1.8 g/kg, fat
// at 30% of calories, carbs take the remainder.
func CalculateMacroTargets(p Profile) (MacroTargets, error) {
	if p.AgeYears <= 0 || p.HeightCm <= 0 || p.WeightKg <= 0 {
		return MacroTargets{}, fmt.Errorf("%w: age, height and weight must be positive", ErrInvalidProfile)
	}
	factor, ok := activityFactors[p.ActivityLevel]
	if !ok {
		return MacroTargets{}, fmt.Errorf("%w: unknown activity level %q", ErrInvalidProfile, p.ActivityLevel)
	}
	adjustment, ok := goalAdjustments[p.Goal]
	if !ok {
		return MacroTargets{}, fmt.Errorf("%w: unknown goal %q", ErrInvalidProfile, p.Goal)
	}

	bmr := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.AgeYears)
	switch p.Sex {
	case SexMale:
		bmr += 5
	case SexFemale:
		bmr -= 161
	default:
		return MacroTargets{}, fmt.Errorf("%w: unknown sex %q", ErrInvalidProfile, p.Sex)
	}

	calories := bmr*factor + adjustment
	if calories < 1200 {
		calories = 1200
	}

	protein := 1.8 * p.WeightKg
	fat := calories * 0.30 / 9
	carbs := (calories - protein*4 - fat*9) / 4
	if carbs < 0 {
		carbs = 0
	}

	return MacroTargets{
		Calories: int(math.Round(calories)),
		ProteinG: math.Round(protein*10) / 10,
		CarbsG:   math.Round(carbs*10) / 10,
		FatG:     math.Round(fat*10) / 10,
	}, nil
}
