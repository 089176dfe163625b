package client

import (
	"context"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

// MockBackend is a test double for Backend. Each operation records its
// calls and delegates to an optional function field; unset fields return
// a success envelope.
type MockBackend struct {
	SendVerificationCodeFn func(ctx context.Context, phoneNumber string) (models.SendCodeResponse, error)
	LoginWithPhoneFn       func(ctx context.Context, phoneNumber, code string) (models.LoginResponse, error)
	VerifyInviteCodeFn     func(ctx context.Context, phoneNumber, inviteCode string) (models.InviteResponse, error)
	CreateOrderFn          func(ctx context.Context, req models.CreateOrderRequest) (models.CreateOrderResponse, error)
	SubmitOrderFn          func(ctx context.Context, orderID string) (models.SubmitOrderResponse, error)
	GetUserOrdersFn        func(ctx context.Context, userID string) (models.OrdersResponse, error)
	SubmitOrderFeedbackFn  func(ctx context.Context, req models.FeedbackRequest) (models.FeedbackResponse, error)

	SendCodeCalls    []string
	LoginCalls       []string
	InviteCalls      []string
	CreateOrderCalls []models.CreateOrderRequest
	SubmitOrderCalls []string
	FeedbackCalls    []models.FeedbackRequest
}

// NewMockBackend creates an empty mock backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (m *MockBackend) SendVerificationCode(ctx context.Context, phoneNumber string) (models.SendCodeResponse, error) {
	m.SendCodeCalls = append(m.SendCodeCalls, phoneNumber)
	if m.SendVerificationCodeFn != nil {
		return m.SendVerificationCodeFn(ctx, phoneNumber)
	}
	return models.SendCodeResponse{Success: true, Message: "verification code sent"}, nil
}

func (m *MockBackend) LoginWithPhone(ctx context.Context, phoneNumber, code string) (models.LoginResponse, error) {
	m.LoginCalls = append(m.LoginCalls, phoneNumber+":"+code)
	if m.LoginWithPhoneFn != nil {
		return m.LoginWithPhoneFn(ctx, phoneNumber, code)
	}
	return models.LoginResponse{Success: true, Message: "verified", UserID: "user-1", PhoneNumber: phoneNumber}, nil
}

func (m *MockBackend) VerifyInviteCode(ctx context.Context, phoneNumber, inviteCode string) (models.InviteResponse, error) {
	m.InviteCalls = append(m.InviteCalls, phoneNumber+":"+inviteCode)
	if m.VerifyInviteCodeFn != nil {
		return m.VerifyInviteCodeFn(ctx, phoneNumber, inviteCode)
	}
	return models.InviteResponse{Success: true, Message: "registered", UserID: "user-1", PhoneNumber: phoneNumber}, nil
}

func (m *MockBackend) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (models.CreateOrderResponse, error) {
	m.CreateOrderCalls = append(m.CreateOrderCalls, req)
	if m.CreateOrderFn != nil {
		return m.CreateOrderFn(ctx, req)
	}
	return models.CreateOrderResponse{Success: true, Message: "order created", OrderID: "order-1", OrderNumber: "ORD20250101001"}, nil
}

func (m *MockBackend) SubmitOrder(ctx context.Context, orderID string) (models.SubmitOrderResponse, error) {
	m.SubmitOrderCalls = append(m.SubmitOrderCalls, orderID)
	if m.SubmitOrderFn != nil {
		return m.SubmitOrderFn(ctx, orderID)
	}
	return models.SubmitOrderResponse{Success: true, Message: "order submitted", OrderNumber: "ORD20250101001"}, nil
}

func (m *MockBackend) GetUserOrders(ctx context.Context, userID string) (models.OrdersResponse, error) {
	if m.GetUserOrdersFn != nil {
		return m.GetUserOrdersFn(ctx, userID)
	}
	return models.OrdersResponse{Success: true, Orders: []models.Order{}, Count: 0}, nil
}

func (m *MockBackend) SubmitOrderFeedback(ctx context.Context, req models.FeedbackRequest) (models.FeedbackResponse, error) {
	m.FeedbackCalls = append(m.FeedbackCalls, req)
	if m.SubmitOrderFeedbackFn != nil {
		return m.SubmitOrderFeedbackFn(ctx, req)
	}
	return models.FeedbackResponse{Success: true, Message: "feedback recorded"}, nil
}
