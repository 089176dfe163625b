// Package client provides the REST client for the OmniLaze backend consumed
// by the auth and order sub-flows.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

// Backend defines the backend operations the wizard's sub-flows depend on.
type Backend interface {
	SendVerificationCode(ctx context.Context, phoneNumber string) (models.SendCodeResponse, error)
	LoginWithPhone(ctx context.Context, phoneNumber, code string) (models.LoginResponse, error)
	VerifyInviteCode(ctx context.Context, phoneNumber, inviteCode string) (models.InviteResponse, error)
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (models.CreateOrderResponse, error)
	SubmitOrder(ctx context.Context, orderID string) (models.SubmitOrderResponse, error)
	GetUserOrders(ctx context.Context, userID string) (models.OrdersResponse, error)
	SubmitOrderFeedback(ctx context.Context, req models.FeedbackRequest) (models.FeedbackResponse, error)
}

// DefaultTimeout bounds each backend request.
const DefaultTimeout = 15 * time.Second

// Opts holds configuration options for the backend client.
type Opts struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Option defines a configuration option for the backend client.
type Option func(*Opts)

// WithBaseURL sets the backend base URL.
func WithBaseURL(baseURL string) Option {
	return func(o *Opts) { o.BaseURL = baseURL }
}

// WithHTTPClient injects a custom HTTP client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client is the HTTP implementation of Backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client for the given base URL.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	slog.Debug("Backend client created", "baseURL", cfg.BaseURL)
	return &Client{baseURL: cfg.BaseURL, http: cfg.HTTPClient}, nil
}

// postJSON posts body to path and decodes the JSON reply into out.
// Non-2xx statuses are not errors here: the reply envelope carries
// success=false with a server message, which callers surface as-is.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("Backend request failed", "path", path, "error", err)
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Error("Backend response decode failed", "path", path, "status", resp.StatusCode, "error", err)
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	slog.Debug("Backend request completed", "path", path, "status", resp.StatusCode)
	return nil
}

// getJSON fetches path and decodes the JSON reply into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("Backend request failed", "path", path, "error", err)
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Error("Backend response decode failed", "path", path, "status", resp.StatusCode, "error", err)
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// SendVerificationCode requests an SMS verification code for the phone number.
func (c *Client) SendVerificationCode(ctx context.Context, phoneNumber string) (models.SendCodeResponse, error) {
	var out models.SendCodeResponse
	err := c.postJSON(ctx, "/send-verification-code", models.SendCodeRequest{PhoneNumber: phoneNumber}, &out)
	return out, err
}

// LoginWithPhone verifies the code and logs the user in.
func (c *Client) LoginWithPhone(ctx context.Context, phoneNumber, code string) (models.LoginResponse, error) {
	var out models.LoginResponse
	err := c.postJSON(ctx, "/login-with-phone", models.LoginRequest{PhoneNumber: phoneNumber, VerificationCode: code}, &out)
	return out, err
}

// VerifyInviteCode redeems an invite code for a new user.
func (c *Client) VerifyInviteCode(ctx context.Context, phoneNumber, inviteCode string) (models.InviteResponse, error) {
	var out models.InviteResponse
	err := c.postJSON(ctx, "/verify-invite-code", models.InviteRequest{PhoneNumber: phoneNumber, InviteCode: inviteCode}, &out)
	return out, err
}

// CreateOrder creates a draft order.
func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (models.CreateOrderResponse, error) {
	var out models.CreateOrderResponse
	err := c.postJSON(ctx, "/create-order", req, &out)
	return out, err
}

// SubmitOrder finalizes a previously created draft order.
func (c *Client) SubmitOrder(ctx context.Context, orderID string) (models.SubmitOrderResponse, error) {
	var out models.SubmitOrderResponse
	err := c.postJSON(ctx, "/submit-order", models.SubmitOrderRequest{OrderID: orderID}, &out)
	return out, err
}

// GetUserOrders lists the user's orders, newest first.
func (c *Client) GetUserOrders(ctx context.Context, userID string) (models.OrdersResponse, error) {
	var out models.OrdersResponse
	err := c.getJSON(ctx, "/orders/"+url.PathEscape(userID), &out)
	return out, err
}

// SubmitOrderFeedback records a rating and feedback text for an order.
func (c *Client) SubmitOrderFeedback(ctx context.Context, req models.FeedbackRequest) (models.FeedbackResponse, error) {
	var out models.FeedbackResponse
	err := c.postJSON(ctx, "/order-feedback", req, &out)
	return out, err
}
