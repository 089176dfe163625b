// Package order implements the two-phase order submission sub-flow:
// create a draft, then submit it, triggered by the wizard's payment
// confirmation step.
package order

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stevenxxzgs/omnilaze-universal/internal/client"
	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

// Coordinator drives the create -> submit pair against the backend. It
// keeps the draft across failed submits so a retry re-uses the existing
// order instead of creating a duplicate, and it discards responses that
// arrive after the attempt they belong to was superseded.
type Coordinator struct {
	mu      sync.Mutex
	backend client.Backend

	state       models.OrderState
	orderID     string
	orderNumber string

	// attempt tokens in-flight work; Reset bumps it so stale responses
	// are discarded instead of silently applied.
	attempt uint64
}

// NewCoordinator creates an order submission coordinator.
func NewCoordinator(backend client.Backend) *Coordinator {
	slog.Debug("Creating order coordinator")
	return &Coordinator{backend: backend, state: models.OrderStateNone}
}

// State returns the order lifecycle state with its identifiers.
func (c *Coordinator) State() (models.OrderState, string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.orderID, c.orderNumber
}

// receiptLocked snapshots the coordinator's state into a receipt.
func (c *Coordinator) receiptLocked(message string) models.OrderReceipt {
	return models.OrderReceipt{
		State:       c.state,
		OrderID:     c.orderID,
		OrderNumber: c.orderNumber,
		Message:     message,
	}
}

// Confirm runs the two-phase commit. Create is only called when no draft
// exists; a failed submit leaves the draft in place and a later Confirm
// retries submit only. Create failure never proceeds to submit.
func (c *Coordinator) Confirm(ctx context.Context, identity models.Identity, form models.OrderFormData) (models.OrderReceipt, error) {
	c.mu.Lock()
	if c.state == models.OrderStateSubmitted {
		receipt := c.receiptLocked("order already submitted")
		c.mu.Unlock()
		return receipt, nil
	}
	token := c.attempt
	c.mu.Unlock()

	if receipt, err, done := c.createDraft(ctx, token, identity, form); done {
		return receipt, err
	}
	return c.submitDraft(ctx, token)
}

// createDraft creates the draft order if none exists. done is true when
// Confirm must stop here (failure or stale response).
func (c *Coordinator) createDraft(ctx context.Context, token uint64, identity models.Identity, form models.OrderFormData) (models.OrderReceipt, error, bool) {
	c.mu.Lock()
	if c.state != models.OrderStateNone {
		c.mu.Unlock()
		return models.OrderReceipt{}, nil, false
	}
	c.mu.Unlock()

	resp, err := c.backend.CreateOrder(ctx, models.CreateOrderRequest{
		UserID:      identity.UserID,
		PhoneNumber: identity.PhoneNumber,
		FormData:    form,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.attempt {
		slog.Debug("Order create response discarded, attempt superseded")
		return c.receiptLocked(""), nil, true
	}
	if err != nil {
		slog.Error("Order create failed", "error", err)
		return c.receiptLocked("failed to create order"), err, true
	}
	if !resp.Success {
		slog.Warn("Order create rejected", "message", resp.Message)
		return c.receiptLocked(resp.Message), nil, true
	}

	c.state = models.OrderStateCreated
	c.orderID = resp.OrderID
	c.orderNumber = resp.OrderNumber
	slog.Info("Order draft created", "orderID", c.orderID, "orderNumber", c.orderNumber)
	return models.OrderReceipt{}, nil, false
}

// submitDraft finalizes the existing draft.
func (c *Coordinator) submitDraft(ctx context.Context, token uint64) (models.OrderReceipt, error) {
	c.mu.Lock()
	orderID := c.orderID
	c.mu.Unlock()

	resp, err := c.backend.SubmitOrder(ctx, orderID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.attempt {
		slog.Debug("Order submit response discarded, attempt superseded")
		return c.receiptLocked(""), nil
	}
	if err != nil {
		// Draft stays server-side; a later Confirm retries submit only.
		slog.Error("Order submit failed", "orderID", orderID, "error", err)
		return c.receiptLocked("failed to submit order"), err
	}
	if !resp.Success {
		slog.Warn("Order submit rejected", "orderID", orderID, "message", resp.Message)
		return c.receiptLocked(resp.Message), nil
	}

	c.state = models.OrderStateSubmitted
	if resp.OrderNumber != "" {
		c.orderNumber = resp.OrderNumber
	}
	slog.Info("Order submitted", "orderID", orderID, "orderNumber", c.orderNumber)
	return c.receiptLocked(resp.Message), nil
}

// Reset abandons the current order attempt. Any in-flight responses for
// the old attempt are discarded when they arrive.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	c.state = models.OrderStateNone
	c.orderID = ""
	c.orderNumber = ""
	slog.Info("Order coordinator reset")
}
