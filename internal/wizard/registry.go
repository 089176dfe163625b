// Package wizard implements the step-by-step ordering flow: a declarative
// step registry, a single-source-of-truth transition table, and an
// edit-aware state machine that owns all wizard state mutations.
package wizard

import "github.com/stevenxxzgs/omnilaze-universal/internal/models"

// Step indices into the default registry. The ordering is the default
// linear path; the transition table may skip steps.
const (
	StepAddress    = 0
	StepFoodType   = 1
	StepAllergy    = 2
	StepPreference = 3
	StepBudget     = 4
	StepPayment    = 5
)

// Out-of-band completedAnswers keys and sentinels.
const (
	// PhoneAnswerKey indexes the phone number captured during auth. It is
	// not part of the step sequence and is never editable.
	PhoneAnswerKey = -1
	// StepCompleted is the currentStep sentinel meaning the flow is done.
	StepCompleted = -2
)

// Registry is an ordered, immutable list of step definitions.
type Registry []models.StepDefinition

// DefaultRegistry returns the standard ordering flow.
func DefaultRegistry() Registry {
	return Registry{
		{Prompt: "Where should we deliver your order?", Kind: models.AnswerKindAddress},
		{Prompt: "Would you like food or a beverage?", Kind: models.AnswerKindFoodType},
		{Prompt: "Any dietary restrictions?", Kind: models.AnswerKindAllergy, Optional: true},
		{Prompt: "Any taste preferences?", Kind: models.AnswerKindPreference, Optional: true},
		{Prompt: "How much can we spend on your order?", Kind: models.AnswerKindBudget},
		{Prompt: "Please scan the code to pay and confirm your order", Kind: models.AnswerKindPayment},
	}
}

// Step returns the definition at idx. It panics on out-of-range indices;
// callers must only pass indices previously validated against the registry.
func (r Registry) Step(idx int) models.StepDefinition {
	return r[idx]
}

// Contains reports whether idx addresses a step in the registry.
func (r Registry) Contains(idx int) bool {
	return idx >= 0 && idx < len(r)
}
