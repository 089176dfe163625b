// Package models defines the core data structures for the OmniLaze ordering service.
//
// It includes the wizard answer and step types, user/order entities, and the
// request/response bodies shared between the API server and its clients.
package models

import (
	"errors"
	"time"
)

// AnswerKind identifies what kind of input a wizard step collects.
type AnswerKind string

const (
	// AnswerKindAddress is the delivery address input.
	AnswerKindAddress AnswerKind = "address"
	// AnswerKindPhone is the phone number captured during authentication.
	AnswerKindPhone AnswerKind = "phone"
	// AnswerKindFoodType is the food-vs-beverage choice.
	AnswerKindFoodType AnswerKind = "foodType"
	// AnswerKindAllergy is the dietary restrictions input.
	AnswerKindAllergy AnswerKind = "allergy"
	// AnswerKindPreference is the taste preferences input.
	AnswerKindPreference AnswerKind = "preference"
	// AnswerKindBudget is the budget amount input.
	AnswerKindBudget AnswerKind = "budget"
	// AnswerKindPayment is the payment confirmation step.
	AnswerKindPayment AnswerKind = "payment"
)

// Food type values for the branch-determining step.
const (
	// FoodTypeFood routes the flow through allergy and preference steps.
	FoodTypeFood = "food"
	// FoodTypeBeverage skips allergy and preference steps entirely.
	FoodTypeBeverage = "beverage"
)

// Validation constants shared by the wizard and the API server.
const (
	// MinAddressLength is the minimum trimmed length of a delivery address.
	MinAddressLength = 5
	// MinBudget is the minimum budget amount in currency units.
	MinBudget = 10
	// PhoneNumberLength is the required length of a mobile phone number.
	PhoneNumberLength = 11
	// VerificationCodeLength is the required length of an SMS verification code.
	VerificationCodeLength = 6
	// MinInviteCodeLength is the minimum length of an invite code.
	MinInviteCodeLength = 4
	// MinFeedbackRating and MaxFeedbackRating bound order feedback ratings.
	MinFeedbackRating = 1
	MaxFeedbackRating = 5
)

// Timing constants shared by auth, codes, and the persistence bridge.
const (
	// ResendCooldown is how long a user must wait before re-requesting a code.
	ResendCooldown = 180 * time.Second
	// VerificationCodeTTL is how long an issued verification code stays valid.
	VerificationCodeTTL = 10 * time.Minute
	// SessionTTL is the lifetime of a persisted login session.
	SessionTTL = 7 * 24 * time.Hour
	// ConversationTTL is the lifetime of a persisted conversation snapshot.
	ConversationTTL = 24 * time.Hour
)

// Error variables for wizard and auth state violations.
var (
	ErrNotAuthenticated   = errors.New("wizard requires authentication before accepting input")
	ErrFlowComplete       = errors.New("wizard flow is already complete")
	ErrEditInProgress     = errors.New("another edit is already in progress")
	ErrNoEditInProgress   = errors.New("no edit is in progress")
	ErrStepNotCompleted   = errors.New("step has not been completed yet")
	ErrStepNotEditable    = errors.New("step is not editable")
	ErrInvalidStateChange = errors.New("invalid order state transition")
	ErrRequestInFlight    = errors.New("request already in flight")
	ErrResendCooldown     = errors.New("resend cooldown is active")
)

// Answer is a confirmed response to a single wizard step.
type Answer struct {
	Kind  AnswerKind `json:"type"`
	Value string     `json:"value"`
}

// StepDefinition is an immutable registry entry describing one wizard step.
type StepDefinition struct {
	Prompt   string     `json:"prompt"`
	Kind     AnswerKind `json:"kind"`
	Optional bool       `json:"optional,omitempty"`
}

// Identity carries the authenticated user returned by the auth sub-flow.
type Identity struct {
	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	IsNewUser   bool   `json:"is_new_user"`
}

// OrderState tracks the two-phase order submission lifecycle.
type OrderState string

const (
	// OrderStateNone means no order has been created for this session.
	OrderStateNone OrderState = "none"
	// OrderStateCreated means a draft order exists server-side.
	OrderStateCreated OrderState = "created"
	// OrderStateSubmitted means the order has been finalized.
	OrderStateSubmitted OrderState = "submitted"
)

// CanTransitionTo reports whether the order state may move to next.
// Transitions are monotonic: none -> created -> submitted.
func (s OrderState) CanTransitionTo(next OrderState) bool {
	switch s {
	case OrderStateNone:
		return next == OrderStateCreated
	case OrderStateCreated:
		return next == OrderStateSubmitted
	default:
		return false
	}
}

// OrderReceipt reports the outcome of an order submission attempt back to
// the wizard. State reflects how far the two-phase commit progressed.
type OrderReceipt struct {
	State       OrderState `json:"state"`
	OrderID     string     `json:"order_id,omitempty"`
	OrderNumber string     `json:"order_number,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// User is a registered account row.
type User struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
	InviteCode  string    `json:"invite_code,omitempty"`
}

// VerificationCode is an issued SMS code, single-use with a fixed TTL.
type VerificationCode struct {
	PhoneNumber string    `json:"phone_number"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
	Used        bool      `json:"used"`
	CreatedAt   time.Time `json:"created_at"`
}

// InviteCode is a single-use signup code.
type InviteCode struct {
	Code   string     `json:"code"`
	Used   bool       `json:"used"`
	UsedBy string     `json:"used_by,omitempty"`
	UsedAt *time.Time `json:"used_at,omitempty"`
}

// Order statuses as persisted server-side.
const (
	// OrderStatusDraft marks an order created but not yet submitted.
	OrderStatusDraft = "draft"
	// OrderStatusSubmitted marks a finalized order.
	OrderStatusSubmitted = "submitted"
)

// Order is a persisted order row.
type Order struct {
	ID                  string     `json:"id"`
	OrderNumber         string     `json:"order_number"`
	UserID              string     `json:"user_id"`
	PhoneNumber         string     `json:"phone_number"`
	Status              string     `json:"status"`
	OrderDate           string     `json:"order_date"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
	SubmittedAt         *time.Time `json:"submitted_at,omitempty"`
	DeliveryAddress     string     `json:"delivery_address"`
	DietaryRestrictions []string   `json:"dietary_restrictions"`
	FoodPreferences     []string   `json:"food_preferences"`
	BudgetAmount        float64    `json:"budget_amount"`
	BudgetCurrency      string     `json:"budget_currency"`
	FoodType            string     `json:"food_type,omitempty"`
	IsFreeOrder         bool       `json:"is_free_order,omitempty"`
	UserRating          int        `json:"user_rating,omitempty"`
	UserFeedback        string     `json:"user_feedback,omitempty"`
	FeedbackSubmittedAt *time.Time `json:"feedback_submitted_at,omitempty"`
	IsDeleted           bool       `json:"-"`
}

// OrderFormData is the completed wizard form sent with create-order.
type OrderFormData struct {
	Address     string   `json:"address"`
	Allergies   []string `json:"allergies"`
	Preferences []string `json:"preferences"`
	Budget      string   `json:"budget"`
	FoodType    string   `json:"foodType,omitempty"`
	IsFreeOrder bool     `json:"isFreeOrder,omitempty"`
}
