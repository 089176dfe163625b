package validation

import (
	"testing"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

func TestValidatePhoneNumber(t *testing.T) {
	valid := []string{"13800138000", "19912345678", "15012345678"}
	for _, phone := range valid {
		if !ValidatePhoneNumber(phone) {
			t.Errorf("expected %s to be valid", phone)
		}
	}
	invalid := []string{"", "12345678901", "1380013800", "138001380000", "23800138000", "1380013800a"}
	for _, phone := range invalid {
		if ValidatePhoneNumber(phone) {
			t.Errorf("expected %s to be invalid", phone)
		}
	}
}

func TestValidateAddress(t *testing.T) {
	res := Validate(models.AnswerKindAddress, "上海市浦东新区")
	if !res.IsValid {
		t.Errorf("expected multi-byte address to pass, got %q", res.ErrorMessage)
	}
	res = Validate(models.AnswerKindAddress, "ab")
	if res.IsValid {
		t.Error("expected short address to fail")
	}
	if res.ErrorMessage != MsgIncompleteAddress {
		t.Errorf("unexpected message: %q", res.ErrorMessage)
	}
	// Surrounding whitespace does not count toward the minimum length.
	res = Validate(models.AnswerKindAddress, "   ab   ")
	if res.IsValid {
		t.Error("expected padded short address to fail")
	}
}

func TestValidateBudget(t *testing.T) {
	cases := []struct {
		value   string
		valid   bool
		message string
	}{
		{"50", true, ""},
		{"10", true, ""},
		{"5", false, MsgBudgetBelowMin},
		{"0", false, MsgInvalidBudget},
		{"-10", false, MsgInvalidBudget},
		{"", false, MsgInvalidBudget},
		{"abc", false, MsgInvalidBudget},
	}
	for _, c := range cases {
		res := Validate(models.AnswerKindBudget, c.value)
		if res.IsValid != c.valid {
			t.Errorf("budget %q: expected valid=%v, got %v", c.value, c.valid, res.IsValid)
		}
		if !c.valid && res.ErrorMessage != c.message {
			t.Errorf("budget %q: expected message %q, got %q", c.value, c.message, res.ErrorMessage)
		}
	}
}

func TestValidateAlwaysValidKinds(t *testing.T) {
	for _, kind := range []models.AnswerKind{models.AnswerKindFoodType, models.AnswerKindAllergy, models.AnswerKindPreference, models.AnswerKindPayment} {
		if res := Validate(kind, ""); !res.IsValid {
			t.Errorf("expected empty %s input to be valid", kind)
		}
	}
}
