// Package models defines the REST request and response bodies for the API.
package models

// SendCodeRequest is the body of POST /send-verification-code.
type SendCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// SendCodeResponse is the reply to a verification-code request. DevCode is
// only populated when the server runs in development mode.
type SendCodeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	DevCode string `json:"dev_code,omitempty"`
}

// LoginRequest is the body of POST /login-with-phone.
type LoginRequest struct {
	PhoneNumber      string `json:"phone_number"`
	VerificationCode string `json:"verification_code"`
}

// LoginResponse is the reply to a phone login. UserID is empty for new users
// until they redeem an invite code.
type LoginResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	UserID      string `json:"user_id,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	IsNewUser   bool   `json:"is_new_user,omitempty"`
	Token       string `json:"token,omitempty"`
}

// InviteRequest is the body of POST /verify-invite-code.
type InviteRequest struct {
	PhoneNumber string `json:"phone_number"`
	InviteCode  string `json:"invite_code"`
}

// InviteResponse is the reply to an invite-code redemption.
type InviteResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	UserID      string `json:"user_id,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Token       string `json:"token,omitempty"`
}

// CreateOrderRequest is the body of POST /create-order.
type CreateOrderRequest struct {
	UserID      string        `json:"user_id"`
	PhoneNumber string        `json:"phone_number"`
	FormData    OrderFormData `json:"form_data"`
}

// CreateOrderResponse is the reply to a draft-order creation.
type CreateOrderResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	OrderID     string `json:"order_id,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}

// SubmitOrderRequest is the body of POST /submit-order.
type SubmitOrderRequest struct {
	OrderID string `json:"order_id"`
}

// SubmitOrderResponse is the reply to an order submission.
type SubmitOrderResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	OrderNumber string `json:"order_number,omitempty"`
}

// FeedbackRequest is the body of POST /order-feedback.
type FeedbackRequest struct {
	OrderID  string `json:"order_id"`
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// FeedbackResponse is the reply to an order-feedback submission.
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OrdersResponse is the reply to GET /orders/{userId}.
type OrdersResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Orders  []Order `json:"orders"`
	Count   int     `json:"count"`
}

// ErrorResponse is the generic failure envelope shared by all endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Error creates a failure envelope with the given message.
func Error(message string) ErrorResponse {
	return ErrorResponse{Success: false, Message: message}
}
