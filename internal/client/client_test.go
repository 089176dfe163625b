package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without base URL")
	}
}

func TestSendVerificationCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send-verification-code" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req models.SendCodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.PhoneNumber != "13800138000" {
			t.Errorf("unexpected phone: %q", req.PhoneNumber)
		}
		json.NewEncoder(w).Encode(models.SendCodeResponse{Success: true, Message: "sent", DevCode: "123456"})
	}))
	defer srv.Close()

	c, err := NewClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := c.SendVerificationCode(context.Background(), "13800138000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.DevCode != "123456" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestServerRejectionIsNotAnError(t *testing.T) {
	// Non-2xx replies carry a success=false envelope; the client surfaces
	// the envelope, not a transport error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.Error("Incorrect verification code"))
	}))
	defer srv.Close()

	c, err := NewClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := c.LoginWithPhone(context.Background(), "13800138000", "000000")
	if err != nil {
		t.Fatalf("rejection must not be a transport error: %v", err)
	}
	if resp.Success || resp.Message != "Incorrect verification code" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestTransportFailureIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately, so requests fail to connect

	c, err := NewClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.SendVerificationCode(context.Background(), "13800138000"); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestOrderLifecycleCalls(t *testing.T) {
	var gotCreate models.CreateOrderRequest
	var gotSubmit models.SubmitOrderRequest
	var gotFeedback models.FeedbackRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/create-order":
			json.NewDecoder(r.Body).Decode(&gotCreate)
			json.NewEncoder(w).Encode(models.CreateOrderResponse{Success: true, OrderID: "order-1", OrderNumber: "ORD1"})
		case "/submit-order":
			json.NewDecoder(r.Body).Decode(&gotSubmit)
			json.NewEncoder(w).Encode(models.SubmitOrderResponse{Success: true, OrderNumber: "ORD1"})
		case "/order-feedback":
			json.NewDecoder(r.Body).Decode(&gotFeedback)
			json.NewEncoder(w).Encode(models.FeedbackResponse{Success: true})
		case "/orders/user-1":
			json.NewEncoder(w).Encode(models.OrdersResponse{Success: true, Orders: []models.Order{{ID: "order-1"}}, Count: 1})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	createResp, err := c.CreateOrder(ctx, models.CreateOrderRequest{
		UserID:      "user-1",
		PhoneNumber: "13800138000",
		FormData:    models.OrderFormData{Address: "海淀区中关村大街1号", Budget: "50"},
	})
	if err != nil || !createResp.Success {
		t.Fatalf("CreateOrder: %+v err=%v", createResp, err)
	}
	if gotCreate.FormData.Address != "海淀区中关村大街1号" {
		t.Errorf("unexpected create payload: %+v", gotCreate)
	}

	submitResp, err := c.SubmitOrder(ctx, "order-1")
	if err != nil || !submitResp.Success {
		t.Fatalf("SubmitOrder: %+v err=%v", submitResp, err)
	}
	if gotSubmit.OrderID != "order-1" {
		t.Errorf("unexpected submit payload: %+v", gotSubmit)
	}

	fbResp, err := c.SubmitOrderFeedback(ctx, models.FeedbackRequest{OrderID: "order-1", Rating: 5, Feedback: "great"})
	if err != nil || !fbResp.Success {
		t.Fatalf("SubmitOrderFeedback: %+v err=%v", fbResp, err)
	}
	if gotFeedback.Rating != 5 {
		t.Errorf("unexpected feedback payload: %+v", gotFeedback)
	}

	ordersResp, err := c.GetUserOrders(ctx, "user-1")
	if err != nil || !ordersResp.Success || ordersResp.Count != 1 {
		t.Fatalf("GetUserOrders: %+v err=%v", ordersResp, err)
	}
}
