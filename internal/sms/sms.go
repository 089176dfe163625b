// Package sms delivers verification codes to users' phones.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers a verification code to a phone number.
type Sender interface {
	SendVerificationCode(ctx context.Context, phoneNumber, code string) error
}

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// TwilioSender sends verification codes over SMS via the Twilio REST API.
type TwilioSender struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioSender creates a Twilio-backed SMS sender. Options missing from
// opts fall back to the TWILIO_* environment variables.
func NewTwilioSender(opts ...Option) (*TwilioSender, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio SMS client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &TwilioSender{
		client:     client,
		fromNumber: cfg.FromNumber,
	}, nil
}

// SendVerificationCode sends the code as an SMS message.
func (s *TwilioSender) SendVerificationCode(ctx context.Context, phoneNumber, code string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("+86" + phoneNumber)
	params.SetFrom(s.fromNumber)
	params.SetBody(fmt.Sprintf("Your OmniLaze verification code is %s. It expires in 10 minutes.", code))

	_, err := s.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendVerificationCode failed", "to", phoneNumber, "error", err)
		return fmt.Errorf("failed to send verification code to %s: %w", phoneNumber, err)
	}

	slog.Debug("Verification code sent", "to", phoneNumber)
	return nil
}

// MockSender records sent codes for tests.
type MockSender struct {
	SentCodes []SentCode
	Err       error
}

// SentCode is one recorded SendVerificationCode call.
type SentCode struct {
	PhoneNumber string
	Code        string
}

func NewMockSender() *MockSender {
	return &MockSender{SentCodes: []SentCode{}}
}

func (m *MockSender) SendVerificationCode(ctx context.Context, phoneNumber, code string) error {
	if m.Err != nil {
		return m.Err
	}
	m.SentCodes = append(m.SentCodes, SentCode{PhoneNumber: phoneNumber, Code: code})
	return nil
}
