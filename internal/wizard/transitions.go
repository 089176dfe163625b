package wizard

import "github.com/stevenxxzgs/omnilaze-universal/internal/models"

// Transition table for the ordering flow. Both Advance and FinishEdit
// consult these functions, so the branch rule has one source of truth.

// chosenFoodType returns the value of the food-type answer, or "" if the
// branch step has not been answered yet.
func chosenFoodType(answers map[int]models.Answer) string {
	if a, ok := answers[StepFoodType]; ok {
		return a.Value
	}
	return ""
}

// Relevant reports whether step idx applies given the chosen food type.
// Beverages carry no allergy or preference attributes, so those steps are
// skipped on the beverage branch.
func (r Registry) Relevant(idx int, foodType string) bool {
	if !r.Contains(idx) {
		return false
	}
	if foodType == models.FoodTypeBeverage {
		switch idx {
		case StepAllergy, StepPreference:
			return false
		}
	}
	return true
}

// NextStep returns the first relevant step after from that has no answer
// yet, or StepCompleted if none remains.
func (r Registry) NextStep(from int, answers map[int]models.Answer) int {
	foodType := chosenFoodType(answers)
	for idx := from + 1; idx < len(r); idx++ {
		if !r.Relevant(idx, foodType) {
			continue
		}
		if _, answered := answers[idx]; answered {
			continue
		}
		return idx
	}
	return StepCompleted
}

// FirstUnanswered returns the first relevant step with no answer, scanning
// the whole registry. Used to relocate the flow after a branch change.
func (r Registry) FirstUnanswered(answers map[int]models.Answer) int {
	return r.NextStep(-1, answers)
}

// BranchDetermining reports whether idx is a step whose answer changes
// which subsequent steps are required.
func BranchDetermining(idx int) bool {
	return idx == StepFoodType
}

// BranchDependent reports whether the answer at idx loses its meaning when
// the branch choice changes and must be re-entered.
func BranchDependent(idx int) bool {
	return idx == StepBudget
}
