package order

import (
	"context"
	"errors"
	"testing"

	"github.com/stevenxxzgs/omnilaze-universal/internal/client"
	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

func testIdentity() models.Identity {
	return models.Identity{UserID: "user-1", PhoneNumber: "13800138000"}
}

func testForm() models.OrderFormData {
	return models.OrderFormData{
		Address:     "海淀区中关村大街1号",
		Allergies:   []string{},
		Preferences: []string{},
		Budget:      "50",
		FoodType:    models.FoodTypeFood,
	}
}

func TestConfirmRunsCreateThenSubmit(t *testing.T) {
	backend := client.NewMockBackend()
	c := NewCoordinator(backend)

	receipt, err := c.Confirm(context.Background(), testIdentity(), testForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.State != models.OrderStateSubmitted {
		t.Fatalf("expected submitted, got %v", receipt.State)
	}
	if receipt.OrderID != "order-1" || receipt.OrderNumber != "ORD20250101001" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
	if len(backend.CreateOrderCalls) != 1 || len(backend.SubmitOrderCalls) != 1 {
		t.Errorf("expected one create and one submit, got %d/%d", len(backend.CreateOrderCalls), len(backend.SubmitOrderCalls))
	}
	if backend.SubmitOrderCalls[0] != "order-1" {
		t.Errorf("submit must use the created draft ID, got %q", backend.SubmitOrderCalls[0])
	}
}

func TestCreateFailureBlocksSubmit(t *testing.T) {
	backend := client.NewMockBackend()
	backend.CreateOrderFn = func(ctx context.Context, req models.CreateOrderRequest) (models.CreateOrderResponse, error) {
		return models.CreateOrderResponse{}, errors.New("connection refused")
	}
	c := NewCoordinator(backend)

	receipt, err := c.Confirm(context.Background(), testIdentity(), testForm())
	if err == nil {
		t.Fatal("expected error")
	}
	if receipt.State != models.OrderStateNone {
		t.Errorf("expected state none after create failure, got %v", receipt.State)
	}
	if len(backend.SubmitOrderCalls) != 0 {
		t.Error("submit must never run after a failed create")
	}
}

func TestCreateRejectionBlocksSubmit(t *testing.T) {
	backend := client.NewMockBackend()
	backend.CreateOrderFn = func(ctx context.Context, req models.CreateOrderRequest) (models.CreateOrderResponse, error) {
		return models.CreateOrderResponse{Success: false, Message: "budget too low"}, nil
	}
	c := NewCoordinator(backend)

	receipt, err := c.Confirm(context.Background(), testIdentity(), testForm())
	if err != nil {
		t.Fatalf("server rejection is not a transport error: %v", err)
	}
	if receipt.State != models.OrderStateNone || receipt.Message != "budget too low" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
	if len(backend.SubmitOrderCalls) != 0 {
		t.Error("submit must never run after a rejected create")
	}
}

func TestSubmitFailureRetryReusesDraft(t *testing.T) {
	backend := client.NewMockBackend()
	submits := 0
	backend.SubmitOrderFn = func(ctx context.Context, orderID string) (models.SubmitOrderResponse, error) {
		submits++
		if submits == 1 {
			return models.SubmitOrderResponse{}, errors.New("timeout")
		}
		return models.SubmitOrderResponse{Success: true, Message: "order submitted", OrderNumber: "ORD1"}, nil
	}
	c := NewCoordinator(backend)

	receipt, err := c.Confirm(context.Background(), testIdentity(), testForm())
	if err == nil {
		t.Fatal("expected submit error")
	}
	if receipt.State != models.OrderStateCreated {
		t.Fatalf("expected draft to survive failed submit, got %v", receipt.State)
	}

	receipt, err = c.Confirm(context.Background(), testIdentity(), testForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.State != models.OrderStateSubmitted {
		t.Fatalf("expected submitted after retry, got %v", receipt.State)
	}
	// The retry must not create a second draft.
	if len(backend.CreateOrderCalls) != 1 {
		t.Errorf("expected one create call, got %d", len(backend.CreateOrderCalls))
	}
	if len(backend.SubmitOrderCalls) != 2 {
		t.Errorf("expected two submit calls, got %d", len(backend.SubmitOrderCalls))
	}
}

func TestConfirmAfterSubmittedShortCircuits(t *testing.T) {
	backend := client.NewMockBackend()
	c := NewCoordinator(backend)

	if _, err := c.Confirm(context.Background(), testIdentity(), testForm()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	receipt, err := c.Confirm(context.Background(), testIdentity(), testForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.State != models.OrderStateSubmitted {
		t.Fatalf("expected submitted, got %v", receipt.State)
	}
	if len(backend.CreateOrderCalls) != 1 || len(backend.SubmitOrderCalls) != 1 {
		t.Error("a submitted order must not hit the backend again")
	}
}

func TestResetDiscardsStaleResponses(t *testing.T) {
	backend := client.NewMockBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	backend.CreateOrderFn = func(ctx context.Context, req models.CreateOrderRequest) (models.CreateOrderResponse, error) {
		close(entered)
		<-release
		return models.CreateOrderResponse{Success: true, OrderID: "stale-order", OrderNumber: "ORD-STALE"}, nil
	}
	c := NewCoordinator(backend)

	done := make(chan models.OrderReceipt)
	go func() {
		receipt, _ := c.Confirm(context.Background(), testIdentity(), testForm())
		done <- receipt
	}()

	// Wait for the create call to be in flight, then abandon the attempt.
	<-entered
	c.Reset()
	close(release)
	receipt := <-done

	if receipt.State != models.OrderStateNone {
		t.Errorf("stale create response must be discarded, got %v", receipt.State)
	}
	state, orderID, _ := c.State()
	if state != models.OrderStateNone || orderID != "" {
		t.Errorf("expected clean state after reset, got %v %q", state, orderID)
	}
	if len(backend.SubmitOrderCalls) != 0 {
		t.Error("submit must not run for a superseded attempt")
	}
}
