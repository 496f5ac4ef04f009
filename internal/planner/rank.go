package planner

import "example.com/mealplan/internal/domain"

// Ranking weights. Macro closeness dominates; repeats are discouraged and
// preferred tags give a small nudge.
const (
	varietyPenalty = 0.30
	tagBonus       = 0.15
)

// scoreRecipe rates a recipe against a slot's macro target. Higher is better.
func scoreRecipe(recipe domain.Recipe, target domain.MacroTargets, timesUsed int, preferredTags []string) float64 {
	score := 0.0

	if target.Calories > 0 {
		diff := float64(recipe.Macros.Calories - target.Calories)
		if diff < 0 {
			diff = -diff
		}
		score -= diff / float64(target.Calories)
	}
	if target.ProteinG > 0 {
		diff := recipe.Macros.ProteinG - target.ProteinG
		if diff < 0 {
			diff = -diff
		}
		score -= 0.5 * diff / target.ProteinG
	}

	score -= varietyPenalty * float64(timesUsed)

	for _, tag := range preferredTags {
		if recipe.HasTag(tag) {
			score += tagBonus
		}
	}
	return score
}

// pickRecipe returns the best-scoring recipe; ties break by name so
// generation stays deterministic.
func pickRecipe(catalog []domain.Recipe, target domain.MacroTargets, usage map[string]int, preferredTags []string) domain.Recipe {
	best := catalog[0]
	bestScore := scoreRecipe(best, target, usage[best.ID], preferredTags)

	for _, candidate := range catalog[1:] {
		score := scoreRecipe(candidate, target, usage[candidate.ID], preferredTags)
		if score > bestScore || (score == bestScore && candidate.Name < best.Name) {
			best = candidate
			bestScore = score
		}
	}
	return best
}
