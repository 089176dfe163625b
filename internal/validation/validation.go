// Package validation provides pure input validation for the ordering wizard.
//
// Validation is side-effect free: callers are responsible for surfacing the
// error message and triggering any feedback cue.
package validation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

// User-facing validation messages.
const (
	MsgIncompleteAddress = "please enter a complete delivery address"
	MsgInvalidPhone      = "please enter a valid 11-digit phone number"
	MsgInvalidBudget     = "please set a reasonable budget amount"
	MsgBudgetBelowMin    = "budget must be at least 10"
)

// phoneRegex matches an 11-digit mobile number: leading 1, second digit 3-9.
var phoneRegex = regexp.MustCompile(`^1[3-9]\d{9}$`)

// Result is the outcome of validating a single input value.
type Result struct {
	IsValid      bool
	ErrorMessage string
}

func ok() Result {
	return Result{IsValid: true}
}

func fail(message string) Result {
	return Result{IsValid: false, ErrorMessage: message}
}

// ValidatePhoneNumber reports whether phone is a well-formed mobile number.
func ValidatePhoneNumber(phone string) bool {
	return phoneRegex.MatchString(phone)
}

// Validate checks value against the rules for the given answer kind.
// Allergy, preference, food type and payment inputs are always valid here;
// choice enforcement for those belongs to the input widgets.
func Validate(kind models.AnswerKind, value string) Result {
	switch kind {
	case models.AnswerKindAddress:
		if len([]rune(strings.TrimSpace(value))) < models.MinAddressLength {
			return fail(MsgIncompleteAddress)
		}
		return ok()
	case models.AnswerKindPhone:
		if !ValidatePhoneNumber(value) {
			return fail(MsgInvalidPhone)
		}
		return ok()
	case models.AnswerKindBudget:
		return validateBudget(value)
	default:
		return ok()
	}
}

// validateBudget distinguishes "no amount" from "below minimum".
func validateBudget(value string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fail(MsgInvalidBudget)
	}
	amount, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || amount <= 0 {
		return fail(MsgInvalidBudget)
	}
	if amount < models.MinBudget {
		return fail(MsgBudgetBelowMin)
	}
	return ok()
}
